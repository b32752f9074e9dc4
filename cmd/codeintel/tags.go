package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"codeintel/internal/discover"
	cierrors "codeintel/internal/errors"
	"codeintel/internal/scip"
	"codeintel/internal/symbols"
	"codeintel/internal/tags"
)

var (
	tagsFile     string
	tagsLanguage string
	tagsKind     string
	tagsScope    string
	tagsLimit    int
	tagsCodeMap  bool
	tagsSource   string
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Build and query the symbol table",
	Long: `Build the symbol table from the configured tag source and list tags.

The source is tags.source in .codeintel/config.json: ctags runs Universal
Ctags and stores its output in tags.file, scip reads a SCIP index, treesitter
parses the sources directly and file reads a stored tag stream.

Examples:
  codeintel tags --kind class
  codeintel tags --file app/models.py --codemap
  codeintel tags --language python --scope Repository`,
	Args: cobra.NoArgs,
	RunE: runTags,
}

var tagsEnclosingCmd = &cobra.Command{
	Use:   "enclosing <file> <line>",
	Short: "Find the innermost symbol containing a line",
	Args:  cobra.ExactArgs(2),
	RunE:  runTagsEnclosing,
}

func init() {
	tagsCmd.Flags().StringVar(&tagsFile, "file", "", "Only tags in this file")
	tagsCmd.Flags().StringVar(&tagsLanguage, "language", "", "Only tags of this language")
	tagsCmd.Flags().StringVar(&tagsKind, "kind", "", "Only tags of this kind")
	tagsCmd.Flags().StringVar(&tagsScope, "scope", "", "Only tags whose scope contains this text")
	tagsCmd.Flags().IntVar(&tagsLimit, "limit", 0, "Maximum tags to print (0 = all)")
	tagsCmd.Flags().BoolVar(&tagsCodeMap, "codemap", false, "Print the code map of --file instead of a tag list")
	tagsCmd.PersistentFlags().StringVar(&tagsSource, "source", "", "Override tags.source (ctags, scip, treesitter, file)")
	tagsCmd.AddCommand(tagsEnclosingCmd)
	rootCmd.AddCommand(tagsCmd)
}

// TagsResponseCLI is a filtered tag listing.
type TagsResponseCLI struct {
	Source    string           `json:"source"`
	Stats     *tags.ParseStats `json:"stats,omitempty"`
	Summary   tags.Summary     `json:"summary"`
	Total     int              `json:"total"`
	Truncated bool             `json:"truncated,omitempty"`
	Tags      []tags.Tag       `json:"tags"`
}

// CodeMapResponseCLI is the structure of one file.
type CodeMapResponseCLI struct {
	*tags.CodeMap
}

// EnclosingResponseCLI answers tags enclosing.
type EnclosingResponseCLI struct {
	File  string    `json:"file"`
	Line  int       `json:"line"`
	Found bool      `json:"found"`
	ID    string    `json:"id,omitempty"`
	Tag   *tags.Tag `json:"tag,omitempty"`
}

func runTags(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	ctx := cmd.Context()

	idx, src, err := e.loadIndex(ctx)
	if err != nil {
		return err
	}

	file := ""
	if tagsFile != "" {
		file = e.relPath(tagsFile)
	}

	if tagsCodeMap {
		if file == "" {
			return cierrors.New(cierrors.ConfigInvalid, "--codemap needs --file", nil)
		}
		cache, err := tags.NewCodeMapCache(idx, e.cfg.Tags.CacheSize)
		if err != nil {
			return cierrors.New(cierrors.ConfigInvalid, "invalid tags.cacheSize", err)
		}
		cm, ok := cache.Get(file)
		if !ok {
			return cierrors.New(cierrors.IndexMissing, fmt.Sprintf("no tags for %s", file), nil)
		}
		return e.print(&CodeMapResponseCLI{CodeMap: cm})
	}

	found := idx.Filter(tags.FilterOptions{
		Language: tagsLanguage,
		Kind:     tagsKind,
		Scope:    tagsScope,
		Path:     file,
	})
	resp := &TagsResponseCLI{
		Source:  src.name,
		Stats:   src.stats,
		Summary: idx.Summary(),
		Total:   len(found),
		Tags:    found,
	}
	if resp.Tags == nil {
		resp.Tags = []tags.Tag{}
	}
	if tagsLimit > 0 && len(resp.Tags) > tagsLimit {
		resp.Tags = resp.Tags[:tagsLimit]
		resp.Truncated = true
	}
	return e.print(resp)
}

func runTagsEnclosing(cmd *cobra.Command, args []string) error {
	line, err := strconv.Atoi(args[1])
	if err != nil || line < 1 {
		return cierrors.New(cierrors.ConfigInvalid, fmt.Sprintf("invalid line number %q", args[1]), err)
	}

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	ctx := cmd.Context()

	idx, _, err := e.loadIndex(ctx)
	if err != nil {
		return err
	}

	resp := &EnclosingResponseCLI{File: e.relPath(args[0]), Line: line}
	if t, ok := idx.FindEnclosing(resp.File, line); ok {
		resp.Found = true
		resp.ID = t.ID()
		resp.Tag = &t
	}
	return e.print(resp)
}

// tagSource records where the index came from.
type tagSource struct {
	name  string
	stats *tags.ParseStats
}

// loadIndex builds the tag index from the configured source.
func (e *env) loadIndex(ctx context.Context) (*tags.Index, tagSource, error) {
	source := e.cfg.Tags.Source
	if tagsSource != "" {
		source = tagsSource
	}
	src := tagSource{name: source}

	var (
		found []tags.Tag
		stats tags.ParseStats
		err   error
	)
	switch source {
	case "file":
		found, stats, err = loadTagsFile(e.path(e.cfg.Tags.File), e.logger)
		src.stats = &stats
	case "ctags":
		found, stats, err = tags.RunCtags(ctx, e.cfg.Tags.CtagsCommand, e.root, e.logger)
		switch {
		case err == nil:
			if werr := writeTagsFile(e.path(e.cfg.Tags.File), found); werr != nil {
				e.logger.Warn("Failed to store tags", "file", e.cfg.Tags.File, "error", werr.Error())
			}
		case cierrors.IsCode(err, cierrors.ToolUnavailable):
			stored := e.path(e.cfg.Tags.File)
			if _, statErr := os.Stat(stored); statErr != nil {
				return nil, src, err
			}
			e.logger.Warn("ctags unavailable, using stored tags", "file", stored)
			src.name = "file"
			found, stats, err = loadTagsFile(stored, e.logger)
		}
		src.stats = &stats
	case "scip":
		index, lerr := scip.LoadIndex(e.path(e.cfg.Tags.ScipIndexPath))
		if lerr != nil {
			return nil, src, lerr
		}
		found = scip.ToTags(index, e.logger)
	case "treesitter":
		found, err = extractTreeSitter(ctx, e.root, e.logger)
	default:
		return nil, src, cierrors.New(cierrors.ConfigInvalid, fmt.Sprintf("unknown tag source %q", source), nil)
	}
	if err != nil {
		return nil, src, err
	}
	e.logger.Debug("Tag index built", "source", src.name, "tags", len(found))
	return tags.BuildIndex(found), src, nil
}

func loadTagsFile(path string, logger *slog.Logger) ([]tags.Tag, tags.ParseStats, error) {
	found, stats, err := tags.LoadFile(path, logger)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, stats, cierrors.New(cierrors.IndexMissing, fmt.Sprintf("tag file not found at %s", path), err)
		}
		return nil, stats, cierrors.New(cierrors.InternalError, "failed to read tag file", err)
	}
	return found, stats, nil
}

func writeTagsFile(path string, found []tags.Tag) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tags.WriteStream(f, found); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func extractTreeSitter(ctx context.Context, root string, logger *slog.Logger) ([]tags.Tag, error) {
	if !symbols.IsAvailable() {
		return nil, cierrors.New(cierrors.ToolUnavailable, "tree-sitter support is not compiled in (build with CGO_ENABLED=1)", nil)
	}
	entries, err := discover.Files(root, discover.Options{})
	if err != nil {
		return nil, cierrors.New(cierrors.InternalError, "failed to list source files", err)
	}
	var files []string
	for _, fe := range entries {
		if _, ok := symbols.LanguageFromPath(fe.Path); ok {
			files = append(files, fe.Path)
		}
	}
	return symbols.NewExtractor(logger).ExtractDirectory(ctx, root, files)
}

// relPath makes a user supplied path repo-relative with forward slashes.
func (e *env) relPath(p string) string {
	if filepath.IsAbs(p) {
		if rel, err := filepath.Rel(e.root, p); err == nil && !strings.HasPrefix(rel, "..") {
			p = rel
		}
	}
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "./")
}
