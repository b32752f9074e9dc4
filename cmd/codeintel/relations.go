package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"codeintel/internal/diagram"
	"codeintel/internal/discover"
	cierrors "codeintel/internal/errors"
	"codeintel/internal/relations"
)

var (
	relationsLanguages   []string
	relationsCycles      bool
	relationsAncestors   string
	relationsDescendants string
)

var relationsCmd = &cobra.Command{
	Use:   "relations [path]",
	Short: "Extract inheritance, implementation and composition relationships",
	Long: `Extract structural relationships from source files with per-language
regular expression patterns.

Builtin patterns cover python, java, csharp, typescript and go. YAML or TOML
files in relations.configDir add languages or replace builtin ones.

Examples:
  codeintel relations
  codeintel relations src/models --cycles
  codeintel relations --ancestors OrderService`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRelations,
}

func init() {
	relationsCmd.Flags().StringSliceVar(&relationsLanguages, "language", nil, "Limit to these languages (default: relations.languages, or all)")
	relationsCmd.Flags().BoolVar(&relationsCycles, "cycles", false, "Report relationship cycles")
	relationsCmd.Flags().StringVar(&relationsAncestors, "ancestors", "", "Report the supertypes of this entity")
	relationsCmd.Flags().StringVar(&relationsDescendants, "descendants", "", "Report the subtypes of this entity")
	rootCmd.AddCommand(relationsCmd)
}

// RelationsResponseCLI lists extracted relationships.
type RelationsResponseCLI struct {
	Path          string                   `json:"path"`
	Files         int                      `json:"files"`
	ByKind        map[relations.Kind]int   `json:"byKind"`
	Relationships []relations.Relationship `json:"relationships"`
	Cycles        [][]string               `json:"cycles"` // nil unless --cycles
	Entity        string                   `json:"entity,omitempty"`
	Ancestors     []string                 `json:"ancestors,omitempty"`
	Descendants   []string                 `json:"descendants,omitempty"`
}

func runRelations(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()
	ctx := cmd.Context()

	target := "."
	if len(args) == 1 {
		target = args[0]
	}
	ext, err := e.extractRelations(ctx, target, relationsLanguages)
	if err != nil {
		return err
	}
	rels := relations.Flatten(ext.results)

	resp := &RelationsResponseCLI{
		Path:          ext.path,
		Files:         len(ext.results),
		ByKind:        make(map[relations.Kind]int),
		Relationships: rels,
	}
	if resp.Relationships == nil {
		resp.Relationships = []relations.Relationship{}
	}
	for _, r := range rels {
		resp.ByKind[r.Kind]++
	}

	if relationsCycles || relationsAncestors != "" || relationsDescendants != "" {
		g := diagram.FromRelationships(rels)
		if relationsCycles {
			resp.Cycles = g.Cycles()
			if resp.Cycles == nil {
				resp.Cycles = [][]string{}
			}
		}
		if relationsAncestors != "" {
			resp.Entity = relationsAncestors
			resp.Ancestors = g.Ancestors(relationsAncestors)
		}
		if relationsDescendants != "" {
			resp.Entity = relationsDescendants
			resp.Descendants = g.Descendants(relationsDescendants)
		}
	}
	return e.print(resp)
}

// extraction is the outcome of extractRelations.
type extraction struct {
	path     string
	registry *relations.Registry
	results  []relations.FileResult
}

// extractRelations extracts relationships from target, a file or a
// directory under the project root.
func (e *env) extractRelations(ctx context.Context, target string, languages []string) (*extraction, error) {
	reg, err := relations.LoadConfigs(e.path(e.cfg.Relations.ConfigDir), e.logger)
	if err != nil {
		return nil, cierrors.New(cierrors.ConfigInvalid, "failed to load relationship configs", err)
	}
	if len(languages) == 0 {
		languages = e.cfg.Relations.Languages
	}
	reg = reg.Restrict(languages)

	rel := e.relPath(target)
	ext := &extraction{path: rel, registry: reg}

	info, err := os.Stat(filepath.Join(e.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, cierrors.New(cierrors.IndexMissing, fmt.Sprintf("%s does not exist", target), err)
	}
	if !info.IsDir() {
		found, ok, err := relations.ExtractFile(reg, e.root, rel)
		if err != nil {
			return nil, cierrors.New(cierrors.InternalError, "failed to read "+rel, err)
		}
		if !ok {
			return nil, cierrors.New(cierrors.ConfigInvalid, fmt.Sprintf("no relationship patterns for %s", rel), nil)
		}
		lang := ""
		if ex, ok := reg.ForPath(rel); ok {
			lang = ex.Config().Name
		}
		ext.results = []relations.FileResult{{Path: rel, Language: lang, Relationships: found}}
		return ext, nil
	}

	var include []string
	if rel != "." {
		include = []string{rel + "/**"}
	}
	filter, err := discover.NewFilter(include, e.cfg.Relations.Exclude)
	if err != nil {
		return nil, cierrors.New(cierrors.ConfigInvalid, "invalid relations.exclude pattern", err)
	}
	results, err := relations.ExtractDir(ctx, e.root, relations.DirOptions{
		Registry:    reg,
		Filter:      filter,
		Parallelism: e.cfg.Relations.Parallelism,
		Logger:      e.logger,
	})
	if err != nil {
		return nil, cierrors.New(cierrors.InternalError, "relationship extraction failed", err)
	}
	ext.results = results
	return ext, nil
}

// dominantLanguage is the language with the most extracted files; ties go
// to the name that sorts first.
func (x *extraction) dominantLanguage() string {
	counts := make(map[string]int)
	for _, r := range x.results {
		if r.Language != "" {
			counts[r.Language]++
		}
	}
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Strings(names)
	best := ""
	for _, n := range names {
		if best == "" || counts[n] > counts[best] {
			best = n
		}
	}
	return best
}
