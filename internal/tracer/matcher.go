package tracer

import (
	"strings"

	"codeintel/internal/tags"
)

// MatchQuality is the confidence level of a frame-to-tag match.
type MatchQuality string

const (
	// MatchExact means file, line range and name agree.
	MatchExact MatchQuality = "exact"
	// MatchStrong means file and name agree.
	MatchStrong MatchQuality = "strong"
	// MatchWeak means module and name, or only a globally unique name, agree.
	MatchWeak MatchQuality = "weak"
	// MatchUnmatched means no tag could be chosen.
	MatchUnmatched MatchQuality = "unmatched"
)

// Confidence returns the confidence score for a match quality level.
func (q MatchQuality) Confidence() float64 {
	switch q {
	case MatchExact:
		return 0.95
	case MatchStrong:
		return 0.85
	case MatchWeak:
		return 0.60
	default:
		return 0.0
	}
}

func (q MatchQuality) rank() int {
	switch q {
	case MatchExact:
		return 3
	case MatchStrong:
		return 2
	case MatchWeak:
		return 1
	default:
		return 0
	}
}

// SymbolMatch is the outcome of matching one frame.
type SymbolMatch struct {
	SymbolID   string       `json:"symbolId,omitempty"`
	Quality    MatchQuality `json:"quality"`
	Confidence float64      `json:"confidence"`
	MatchBasis []string     `json:"matchBasis"`
}

// Matcher resolves frames to function tags so executed IDs line up with
// the IDs dead-code detection compares against.
type Matcher struct {
	idx        *tags.Index
	minQuality MatchQuality
}

// NewMatcher returns a matcher over the function-like tags of idx.
// Resolve only accepts matches of at least minQuality; empty means strong.
func NewMatcher(idx *tags.Index, minQuality MatchQuality) *Matcher {
	if minQuality == "" {
		minQuality = MatchStrong
	}
	return &Matcher{idx: idx, minQuality: minQuality}
}

// Resolve implements Resolver.
func (m *Matcher) Resolve(f Frame) (string, bool) {
	match := m.Match(f)
	if match.Quality == MatchUnmatched || match.Quality.rank() < m.minQuality.rank() {
		return "", false
	}
	return match.SymbolID, true
}

// Match finds the function tag that best explains f.
func (m *Matcher) Match(f Frame) SymbolMatch {
	// 1. file + line + name
	if f.File != "" && f.Line > 0 {
		if tag, ok := m.idx.FindEnclosing(f.File, f.Line); ok &&
			tag.Family() == tags.FamilyFunction && namesMatch(tag.QualifiedName(), f.Function) {
			return SymbolMatch{
				SymbolID:   tag.ID(),
				Quality:    MatchExact,
				Confidence: MatchExact.Confidence(),
				MatchBasis: []string{"file_path", "function_name", "line_number"},
			}
		}
	}

	// 2. file + name
	if f.File != "" {
		if tag, ok := uniqueByName(m.idx.FileTags(f.File), f.Function); ok {
			return SymbolMatch{
				SymbolID:   tag.ID(),
				Quality:    MatchStrong,
				Confidence: MatchStrong.Confidence(),
				MatchBasis: []string{"file_path", "function_name"},
			}
		}
	}

	candidates := m.idx.ByName(lastSegment(f.Function))

	// 3. module + name
	if f.Module != "" {
		var inModule []tags.Tag
		for _, t := range candidates {
			if t.Module() == f.Module {
				inModule = append(inModule, t)
			}
		}
		if tag, ok := uniqueByName(inModule, f.Function); ok {
			return SymbolMatch{
				SymbolID:   tag.ID(),
				Quality:    MatchWeak,
				Confidence: MatchWeak.Confidence(),
				MatchBasis: []string{"module", "function_name"},
			}
		}
	}

	// 4. globally unique name
	if tag, ok := uniqueByName(candidates, f.Function); ok {
		return SymbolMatch{
			SymbolID:   tag.ID(),
			Quality:    MatchWeak,
			Confidence: 0.50,
			MatchBasis: []string{"function_name_global"},
		}
	}

	return SymbolMatch{
		Quality:    MatchUnmatched,
		Confidence: 0,
		MatchBasis: []string{"no_match"},
	}
}

// namesMatch compares a tag's qualified name with a frame function,
// allowing either side to omit the enclosing type.
func namesMatch(indexName, frameName string) bool {
	if indexName == frameName {
		return true
	}
	if idx := strings.LastIndex(indexName, "."); idx >= 0 && indexName[idx+1:] == frameName {
		return true
	}
	if idx := strings.LastIndex(frameName, "."); idx >= 0 && frameName[idx+1:] == indexName {
		return true
	}
	return false
}

func lastSegment(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// uniqueByName returns the single function tag matching name.
func uniqueByName(candidates []tags.Tag, name string) (tags.Tag, bool) {
	var (
		match tags.Tag
		count int
	)
	for _, t := range candidates {
		if t.Family() != tags.FamilyFunction || !namesMatch(t.QualifiedName(), name) {
			continue
		}
		if count > 0 && t.ID() == match.ID() {
			continue
		}
		match = t
		count++
	}
	return match, count == 1
}
