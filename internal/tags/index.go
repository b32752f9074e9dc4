package tags

import (
	"sort"
	"strings"
)

// Index holds every tag of a workspace with lookups by file, name, kind,
// scope and language. Kind and language keys are lowercased.
type Index struct {
	tags       []Tag
	files      []string
	byFile     map[string][]int
	byName     map[string][]int
	byKind     map[string][]int
	byScope    map[string][]int
	byLanguage map[string][]int
}

// BuildIndex indexes tags. Per-file lists are ordered by LineStart, keeping
// input order for equal lines.
func BuildIndex(tags []Tag) *Index {
	idx := &Index{
		tags:       tags,
		byFile:     make(map[string][]int),
		byName:     make(map[string][]int),
		byKind:     make(map[string][]int),
		byScope:    make(map[string][]int),
		byLanguage: make(map[string][]int),
	}

	for i, t := range tags {
		if _, seen := idx.byFile[t.Path]; !seen {
			idx.files = append(idx.files, t.Path)
		}
		idx.byFile[t.Path] = append(idx.byFile[t.Path], i)
		idx.byName[t.Name] = append(idx.byName[t.Name], i)
		idx.byKind[strings.ToLower(t.Kind)] = append(idx.byKind[strings.ToLower(t.Kind)], i)
		if t.Scope != "" {
			idx.byScope[t.Scope] = append(idx.byScope[t.Scope], i)
		}
		if t.Language != "" {
			lang := strings.ToLower(t.Language)
			idx.byLanguage[lang] = append(idx.byLanguage[lang], i)
		}
	}

	sort.Strings(idx.files)
	for _, ids := range idx.byFile {
		sort.SliceStable(ids, func(a, b int) bool {
			return tags[ids[a]].LineStart < tags[ids[b]].LineStart
		})
	}
	return idx
}

// Len returns the number of indexed tags.
func (idx *Index) Len() int { return len(idx.tags) }

// Tags returns all tags in input order.
func (idx *Index) Tags() []Tag { return idx.tags }

// Files returns the indexed file paths, sorted.
func (idx *Index) Files() []string { return idx.files }

// ByName returns every tag with the given name.
func (idx *Index) ByName(name string) []Tag { return idx.pick(idx.byName[name]) }

// ByKind returns every tag of the given kind.
func (idx *Index) ByKind(kind string) []Tag { return idx.pick(idx.byKind[strings.ToLower(kind)]) }

// ByScope returns every tag whose Scope equals scope exactly.
func (idx *Index) ByScope(scope string) []Tag { return idx.pick(idx.byScope[scope]) }

// ByLanguage returns every tag of the given language.
func (idx *Index) ByLanguage(lang string) []Tag {
	return idx.pick(idx.byLanguage[strings.ToLower(lang)])
}

// FileTags returns the tags of one file ordered by LineStart.
func (idx *Index) FileTags(path string) []Tag { return idx.pick(idx.byFile[path]) }

func (idx *Index) pick(ids []int) []Tag {
	if len(ids) == 0 {
		return nil
	}
	out := make([]Tag, len(ids))
	for i, id := range ids {
		out[i] = idx.tags[id]
	}
	return out
}

// FilterOptions narrows Filter. Empty fields match everything.
type FilterOptions struct {
	Language string
	Kind     string
	// Scope matches as a substring of the tag's scope.
	Scope string
	Path  string
}

// Filter returns tags matching every set option, in input order. Language
// and kind compare case-insensitively.
func (idx *Index) Filter(opts FilterOptions) []Tag {
	var out []Tag
	for _, t := range idx.tags {
		if opts.Language != "" && !strings.EqualFold(t.Language, opts.Language) {
			continue
		}
		if opts.Kind != "" && !strings.EqualFold(t.Kind, opts.Kind) {
			continue
		}
		if opts.Scope != "" && !strings.Contains(t.Scope, opts.Scope) {
			continue
		}
		if opts.Path != "" && t.Path != opts.Path {
			continue
		}
		out = append(out, t)
	}
	return out
}

// FindEnclosing returns the innermost tag of path whose range contains line.
// Among candidates the larger LineStart wins; equal starts prefer the
// smaller range.
func (idx *Index) FindEnclosing(path string, line int) (Tag, bool) {
	var (
		best  Tag
		found bool
	)
	for _, id := range idx.byFile[path] {
		t := idx.tags[id]
		if t.LineStart > line {
			break
		}
		if !t.Contains(line) {
			continue
		}
		if !found || t.LineStart > best.LineStart ||
			(t.LineStart == best.LineStart && t.Span() < best.Span()) {
			best, found = t, true
		}
	}
	return best, found
}

// Summary counts tags by kind and language.
type Summary struct {
	Files      int            `json:"files"`
	Tags       int            `json:"tags"`
	ByKind     map[string]int `json:"byKind"`
	ByLanguage map[string]int `json:"byLanguage"`
}

// Summary returns tag counts for reporting.
func (idx *Index) Summary() Summary {
	s := Summary{
		Files:      len(idx.files),
		Tags:       len(idx.tags),
		ByKind:     make(map[string]int, len(idx.byKind)),
		ByLanguage: make(map[string]int, len(idx.byLanguage)),
	}
	for k, ids := range idx.byKind {
		s.ByKind[k] = len(ids)
	}
	for l, ids := range idx.byLanguage {
		s.ByLanguage[l] = len(ids)
	}
	return s
}
