package deadcode

import (
	"fmt"
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// ExclusionRules decides which dead symbols are not worth reporting.
type ExclusionRules struct {
	entryPoints bool
	testFiles   bool
	patterns    []compiledPattern
}

type compiledPattern struct {
	raw string
	g   glob.Glob
}

// NewExclusionRules compiles the user patterns of opts.
func NewExclusionRules(opts Options) (*ExclusionRules, error) {
	r := &ExclusionRules{entryPoints: opts.SkipEntryPoints, testFiles: opts.SkipTestFiles}
	for _, p := range opts.ExcludePatterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, compiledPattern{raw: p, g: g})
	}
	return r, nil
}

// Empty reports whether r excludes nothing.
func (r *ExclusionRules) Empty() bool {
	return r == nil || (!r.entryPoints && !r.testFiles && len(r.patterns) == 0)
}

// ShouldExclude returns a reason if the symbol should be excluded, or empty string if not.
func (r *ExclusionRules) ShouldExclude(sym Symbol) string {
	if r == nil {
		return ""
	}
	name := sym.Name
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}

	if r.entryPoints {
		if name == "main" || name == "init" || name == "__init__" || name == "__main__" {
			return "entry point function"
		}
		if strings.HasPrefix(name, "Test") || strings.HasPrefix(name, "Benchmark") ||
			strings.HasPrefix(name, "Fuzz") || strings.HasPrefix(name, "test_") {
			return "test or benchmark function"
		}
		if strings.HasPrefix(name, "Example") {
			return "example function for documentation"
		}
		if isDunder(name) {
			return "runtime protocol method"
		}
		if sym.Kind == "method" && commonMethods[name] {
			return "common interface implementation"
		}
	}

	if r.testFiles && IsTestFile(sym.File) {
		return "test file"
	}
	if r.entryPoints && isGeneratedFile(sym.File) {
		return "generated file"
	}

	for _, p := range r.patterns {
		if p.g.Match(sym.File) || p.g.Match(sym.Name) {
			return "matches exclusion pattern: " + p.raw
		}
		if !strings.Contains(p.raw, "/") && p.g.Match(path.Base(sym.File)) {
			return "matches exclusion pattern: " + p.raw
		}
	}
	return ""
}

func isDunder(name string) bool {
	return len(name) > 4 && strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}

// Methods callers reach through an interface or the runtime rather than by
// name.
var commonMethods = map[string]bool{
	"String": true, "Error": true,
	"Read": true, "Write": true, "Close": true, "Seek": true,
	"Len": true, "Less": true, "Swap": true,
	"MarshalText": true, "UnmarshalText": true,
	"MarshalBinary": true, "UnmarshalBinary": true,
	"MarshalJSON": true, "UnmarshalJSON": true,
	"Scan": true, "Value": true,
	"ServeHTTP": true,
	"toString": true, "equals": true, "hashCode": true, "compareTo": true,
	"ToString": true, "Equals": true, "GetHashCode": true, "Dispose": true,
	"constructor": true,
}

var generatedPatterns = []string{
	"_generated.",
	"_gen.go",
	".pb.go",
	".pb.gw.go",
	"_pb2.py",
	".designer.cs",
	".g.cs",
	"mock_",
	"mocks/",
	"generated/",
	"zz_generated",
	"wire_gen.go",
}

func isGeneratedFile(p string) bool {
	lower := strings.ToLower(p)
	for _, pattern := range generatedPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// IsTestFile checks if a file path is a test file.
func IsTestFile(p string) bool {
	base := path.Base(p)
	switch {
	case strings.HasSuffix(p, "_test.go"),
		strings.HasSuffix(p, "_test.py"),
		strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py"),
		strings.HasSuffix(base, "Test.java"),
		strings.HasSuffix(base, "Tests.cs"),
		strings.Contains(base, ".test."),
		strings.Contains(base, ".spec."):
		return true
	}
	slashed := "/" + p
	for _, dir := range []string{"/test/", "/tests/", "/__tests__/"} {
		if strings.Contains(slashed, dir) {
			return true
		}
	}
	return false
}
