// Package tags parses symbol-index tag streams and builds per-file CodeMaps
// and workspace-wide indices over them.
package tags

import (
	"strings"

	"codeintel/internal/paths"
)

// Tag is one declared symbol as reported by an indexer. Tags are immutable
// once parsed.
type Tag struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Kind      string `json:"kind"`
	Language  string `json:"language,omitempty"`
	LineStart int    `json:"line"`
	LineEnd   int    `json:"end,omitempty"` // 0 when the indexer gave no end line
	Scope     string `json:"scope,omitempty"`
	ScopeKind string `json:"scopeKind,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
}

// QualifiedName returns Scope.Name, or Name for unscoped tags.
func (t Tag) QualifiedName() string {
	if t.Scope == "" {
		return t.Name
	}
	return t.Scope + "." + t.Name
}

// Module returns the slash directory of the tag's file, "." at the root.
func (t Tag) Module() string {
	return paths.ModuleOf(t.Path)
}

// ID returns module::qualifiedName, the identifier shared with the tracer.
func (t Tag) ID() string {
	return t.Module() + "::" + t.QualifiedName()
}

// lastLine treats a missing or inverted end line as a one-line range.
func (t Tag) lastLine() int {
	if t.LineEnd < t.LineStart {
		return t.LineStart
	}
	return t.LineEnd
}

// Contains reports whether line falls in [LineStart, max(LineStart, LineEnd)].
func (t Tag) Contains(line int) bool {
	return line >= t.LineStart && line <= t.lastLine()
}

// Span is the number of lines covered minus one.
func (t Tag) Span() int {
	return t.lastLine() - t.LineStart
}

// Family groups indexer kinds into the three buckets a CodeMap tracks.
type Family int

const (
	FamilyOther Family = iota
	FamilyClass
	FamilyFunction
	FamilyVariable
)

var kindFamilies = map[string]Family{
	"class":     FamilyClass,
	"struct":    FamilyClass,
	"interface": FamilyClass,
	"enum":      FamilyClass,
	"type":      FamilyClass,
	"trait":     FamilyClass,
	"record":    FamilyClass,
	"typedef":   FamilyClass,

	"function":        FamilyFunction,
	"method":          FamilyFunction,
	"func":            FamilyFunction,
	"constructor":     FamilyFunction,
	"member function": FamilyFunction,

	"variable": FamilyVariable,
	"field":    FamilyVariable,
	"member":   FamilyVariable,
	"constant": FamilyVariable,
	"property": FamilyVariable,
	"var":      FamilyVariable,
}

// KindFamily classifies a kind name, case-insensitively.
func KindFamily(kind string) Family {
	return kindFamilies[strings.ToLower(kind)]
}

// Family returns the tag's kind family. Universal Ctags reports Python
// methods with kind "member".
func (t Tag) Family() Family {
	if strings.EqualFold(t.Kind, "member") && strings.EqualFold(t.Language, "python") {
		return FamilyFunction
	}
	return KindFamily(t.Kind)
}

func (f Family) String() string {
	switch f {
	case FamilyClass:
		return "class"
	case FamilyFunction:
		return "function"
	case FamilyVariable:
		return "variable"
	default:
		return "other"
	}
}
