// Package discover finds source files in a repository.
package discover

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path string // repo-relative, slash separated
	Ext  string // lowercased, with the leading dot
}

// Options narrows Files.
type Options struct {
	// Extensions limits results to these lowercased extensions (".py").
	// Empty means every extension.
	Extensions map[string]bool
	// Filter applies include/exclude globs to the relative path.
	Filter *Filter
}

var skipDirs = map[string]struct{}{
	"__pycache__":  {},
	"node_modules": {},
	"vendor":       {},
	"venv":         {},
	"build":        {},
	"dist":         {},
	"bin":          {},
	"obj":          {},
	"target":       {},
}

// SkipDir reports whether a directory with this name is never descended
// into: hidden directories and well-known build or dependency outputs.
func SkipDir(name string) bool {
	_, skip := skipDirs[name]
	return skip || (strings.HasPrefix(name, ".") && name != "." && name != "..")
}

// Files walks root and returns matching files sorted by path. Hidden
// entries, well-known build directories and paths ignored by the root
// .gitignore are skipped.
func Files(root string, opts Options) ([]FileEntry, error) {
	gi := loadGitignore(root)

	var results []FileEntry
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()

		if d.IsDir() {
			if p == root {
				return nil
			}
			if SkipDir(name) {
				return filepath.SkipDir
			}
			if rel, err := filepath.Rel(root, p); err == nil && gi != nil && gi.MatchesPath(filepath.ToSlash(rel)+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") || d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(name))
		if len(opts.Extensions) > 0 && !opts.Extensions[ext] {
			return nil
		}
		if !opts.Filter.Match(rel) {
			return nil
		}

		results = append(results, FileEntry{Path: rel, Ext: ext})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})
	return results, nil
}

// Paths returns just the relative paths of entries.
func Paths(entries []FileEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
