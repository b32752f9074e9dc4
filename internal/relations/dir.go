package relations

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"codeintel/internal/discover"
	"codeintel/internal/slogutil"
)

// DirOptions configures ExtractDir.
type DirOptions struct {
	Registry *Registry
	Filter   *discover.Filter
	// Parallelism bounds concurrent file reads; <= 0 means 1.
	Parallelism int
	Logger      *slog.Logger
}

// FileResult holds the relationships found in one file.
type FileResult struct {
	Path          string         `json:"path"`
	Language      string         `json:"language"`
	Relationships []Relationship `json:"relationships"`
}

// ExtractDir extracts relationships from every file under root that has a
// registered extension and passes the filter. Results are ordered by path.
// Unreadable files are logged and skipped; only discovery errors and
// cancellation are returned.
func ExtractDir(ctx context.Context, root string, opts DirOptions) ([]FileResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	reg := opts.Registry
	if reg == nil {
		reg = Builtin(logger)
	}

	files, err := discover.Files(root, discover.Options{
		Extensions: reg.Extensions(),
		Filter:     opts.Filter,
	})
	if err != nil {
		return nil, err
	}

	results := make([]FileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	limit := opts.Parallelism
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ex, ok := reg.ForPath(f.Path)
			if !ok {
				return nil
			}
			src, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(f.Path)))
			if err != nil {
				logger.Warn("Skipping unreadable source file", "path", f.Path, "error", err.Error())
				return nil
			}
			results[i] = FileResult{
				Path:          f.Path,
				Language:      ex.Config().Name,
				Relationships: ex.Extract(f.Path, src),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := results[:0]
	for _, r := range results {
		if r.Path != "" {
			out = append(out, r)
		}
	}
	logger.Debug("Extracted relationships", "root", root, "files", len(out))
	return out, nil
}

// Flatten concatenates the relationships of results in order.
func Flatten(results []FileResult) []Relationship {
	var out []Relationship
	for _, r := range results {
		out = append(out, r.Relationships...)
	}
	return out
}

// ExtractFile reads and extracts one file. ok is false when no language
// is registered for its extension.
func ExtractFile(reg *Registry, root, rel string) ([]Relationship, bool, error) {
	ex, ok := reg.ForPath(rel)
	if !ok {
		return nil, false, nil
	}
	src, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, true, err
	}
	return ex.Extract(rel, src), true, nil
}
