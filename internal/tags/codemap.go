package tags

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CodeMap is the per-file view over an Index.
type CodeMap struct {
	Path      string           `json:"path"`
	Tags      []Tag            `json:"tags"`
	Classes   map[string][]Tag `json:"classes"`
	Functions map[string][]Tag `json:"functions"`
	Variables []Tag            `json:"variables"`
	// Hierarchy maps a scope name to the tags whose Scope is exactly that name.
	Hierarchy map[string][]Tag `json:"hierarchy"`
}

// CodeMap builds the CodeMap of one file. ok is false when the index holds
// no tags for path.
func (idx *Index) CodeMap(path string) (*CodeMap, bool) {
	fileTags := idx.FileTags(path)
	cm := &CodeMap{
		Path:      path,
		Tags:      fileTags,
		Classes:   make(map[string][]Tag),
		Functions: make(map[string][]Tag),
		Hierarchy: make(map[string][]Tag),
	}
	for _, t := range fileTags {
		switch t.Family() {
		case FamilyClass:
			cm.Classes[t.Name] = append(cm.Classes[t.Name], t)
		case FamilyFunction:
			cm.Functions[t.Name] = append(cm.Functions[t.Name], t)
		case FamilyVariable:
			cm.Variables = append(cm.Variables, t)
		}
		if t.Scope != "" {
			cm.Hierarchy[t.Scope] = append(cm.Hierarchy[t.Scope], t)
		}
	}
	return cm, len(fileTags) > 0
}

// Children returns the tags directly scoped to name.
func (cm *CodeMap) Children(name string) []Tag {
	return cm.Hierarchy[name]
}

// CodeMapCache keeps recently built CodeMaps of one Index. It is safe for
// concurrent use.
type CodeMapCache struct {
	idx   *Index
	cache *lru.Cache[string, *CodeMap]
}

// NewCodeMapCache creates a cache holding at most size CodeMaps.
func NewCodeMapCache(idx *Index, size int) (*CodeMapCache, error) {
	cache, err := lru.New[string, *CodeMap](size)
	if err != nil {
		return nil, fmt.Errorf("creating codemap cache: %w", err)
	}
	return &CodeMapCache{idx: idx, cache: cache}, nil
}

// Get returns the CodeMap of path, building it on first use.
func (c *CodeMapCache) Get(path string) (*CodeMap, bool) {
	if cm, ok := c.cache.Get(path); ok {
		return cm, true
	}
	cm, ok := c.idx.CodeMap(path)
	if !ok {
		return cm, false
	}
	c.cache.Add(path, cm)
	return cm, true
}

// Len returns the number of cached CodeMaps.
func (c *CodeMapCache) Len() int {
	return c.cache.Len()
}
