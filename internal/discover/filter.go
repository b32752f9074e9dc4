package discover

import (
	"fmt"
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// Filter matches repo-relative slash paths against include and exclude
// globs. "**" crosses directories and "*" stays within one. A pattern
// without a slash is matched against the base name only.
type Filter struct {
	include []matcher
	exclude []matcher
}

type matcher struct {
	g        glob.Glob
	baseOnly bool
}

// NewFilter compiles the patterns. An empty include list includes everything.
func NewFilter(include, exclude []string) (*Filter, error) {
	inc, err := compileGlobs(include)
	if err != nil {
		return nil, err
	}
	exc, err := compileGlobs(exclude)
	if err != nil {
		return nil, err
	}
	return &Filter{include: inc, exclude: exc}, nil
}

func compileGlobs(patterns []string) ([]matcher, error) {
	matchers := make([]matcher, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", p, err)
		}
		matchers = append(matchers, matcher{g: g, baseOnly: !strings.Contains(p, "/")})
	}
	return matchers, nil
}

func (m matcher) match(rel string) bool {
	if m.baseOnly {
		return m.g.Match(path.Base(rel))
	}
	return m.g.Match(rel)
}

// Match reports whether rel is included and not excluded. A nil Filter
// matches everything.
func (f *Filter) Match(rel string) bool {
	if f == nil {
		return true
	}
	if len(f.include) > 0 && !anyMatch(f.include, rel) {
		return false
	}
	return !anyMatch(f.exclude, rel)
}

// Excluded reports whether rel matches an exclude pattern.
func (f *Filter) Excluded(rel string) bool {
	return f != nil && anyMatch(f.exclude, rel)
}

func anyMatch(ms []matcher, rel string) bool {
	for _, m := range ms {
		if m.match(rel) {
			return true
		}
	}
	return false
}
