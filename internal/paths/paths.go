package paths

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	// DataDirName is the per-project directory holding config, tags and traces
	DataDirName = ".codeintel"
	// TracesDirName is the trace directory inside the data directory
	TracesDirName = "traces"
	// ConfigFileName is the config file inside the data directory
	ConfigFileName = "config.json"
	// TagsFileName is the default ctags JSON stream inside the data directory
	TagsFileName = "tags.jsonl"
)

// FindProjectRoot walks up from start until it finds a directory containing
// a .codeintel or .git entry. It returns start itself when neither is found.
func FindProjectRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	dir := abs
	for {
		for _, marker := range []string{DataDirName, ".git"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}

// DataDir returns the .codeintel directory of a project root
func DataDir(root string) string {
	return filepath.Join(root, DataDirName)
}

// TracesDir returns the default trace directory of a project root
func TracesDir(root string) string {
	return filepath.Join(root, DataDirName, TracesDirName)
}

// ConfigPath returns the config file path of a project root
func ConfigPath(root string) string {
	return filepath.Join(root, DataDirName, ConfigFileName)
}

// TagsPath returns the default tag stream path of a project root
func TagsPath(root string) string {
	return filepath.Join(root, DataDirName, TagsFileName)
}

// CanonicalizePath converts an absolute path to a repo-relative canonical path
// - Resolves symlinks to real paths
// - Makes path relative to repo root
// - Converts backslashes to forward slashes
func CanonicalizePath(absolutePath string, repoRoot string) (string, error) {
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		// If the file doesn't exist yet, use the path as-is
		if os.IsNotExist(err) {
			resolved = absolutePath
		} else {
			return "", err
		}
	}

	repoRootResolved, err := filepath.EvalSymlinks(repoRoot)
	if err != nil {
		if os.IsNotExist(err) {
			repoRootResolved = repoRoot
		} else {
			return "", err
		}
	}

	relativePath, err := filepath.Rel(repoRootResolved, resolved)
	if err != nil {
		return "", err
	}

	return filepath.ToSlash(relativePath), nil
}

// IsWithinRepo checks if a path is within the repository root
func IsWithinRepo(p string, repoRoot string) bool {
	canonical, err := CanonicalizePath(p, repoRoot)
	if err != nil {
		return false
	}
	return canonical != ".." && !strings.HasPrefix(canonical, "../")
}

// NormalizePath converts backslashes to forward slashes and strips a
// leading "./".
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}

// ModuleOf returns the slash-separated directory of a repo-relative file
// path, or "." for files at the root.
func ModuleOf(relPath string) string {
	dir := path.Dir(NormalizePath(relPath))
	if dir == "" {
		return "."
	}
	return dir
}

// FileStem returns the base name of a path without its extension
func FileStem(p string) string {
	base := path.Base(NormalizePath(p))
	if ext := path.Ext(base); ext != "" && ext != base {
		return strings.TrimSuffix(base, ext)
	}
	return base
}

// JoinRepoPath joins a repo root with a canonical path
func JoinRepoPath(repoRoot string, canonicalPath string) string {
	normalizedPath := strings.ReplaceAll(canonicalPath, "\\", "/")
	parts := strings.Split(normalizedPath, "/")
	return filepath.Join(append([]string{repoRoot}, parts...)...)
}
