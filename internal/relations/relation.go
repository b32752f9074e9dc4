// Package relations extracts structural relationships (inheritance,
// interface implementation, composition) from source text using
// per-language regular expressions.
//
// Each relationship is attributed to the nearest preceding type
// declaration in the file. This is a flat line scan, not a parse: a
// relationship inside a nested or same-line sibling declaration can be
// attributed to the wrong enclosing type.
package relations

import (
	"fmt"
	"strings"
)

// Kind is the type of a relationship.
type Kind string

const (
	Inherits   Kind = "inherits"
	Implements Kind = "implements"
	Composes   Kind = "composes"
)

// Kinds lists every kind in extraction order.
var Kinds = []Kind{Inherits, Implements, Composes}

// Label is the edge label used in diagrams.
func (k Kind) Label() string {
	switch k {
	case Inherits:
		return "inherits-from"
	case Implements:
		return "implements"
	case Composes:
		return "has-a"
	default:
		return string(k)
	}
}

// Structural reports whether k stays an external edge in containment mode.
func (k Kind) Structural() bool {
	return k == Inherits || k == Implements
}

// ParseKind accepts a kind name or its label.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds {
		if s == string(k) || s == k.Label() {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown relationship kind %q", s)
}

func (k Kind) order() int {
	for i, o := range Kinds {
		if o == k {
			return i
		}
	}
	return len(Kinds)
}

// Relationship is one typed edge between two entity names.
type Relationship struct {
	Kind   Kind   `json:"kind"`
	Source string `json:"source"`
	Target string `json:"target"`
	// ContextClass is the declaration the match was attributed to, nil when
	// no declaration precedes it.
	ContextClass *string `json:"context_class"`
	// ExtraInfo holds the field name for composition.
	ExtraInfo string `json:"extra_info,omitempty"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

// Context returns the context class or "" when unresolved.
func (r Relationship) Context() string {
	if r.ContextClass == nil {
		return ""
	}
	return *r.ContextClass
}

// Key identifies a relationship regardless of where it was found.
func (r Relationship) Key() string {
	ctx := "\x00"
	if r.ContextClass != nil {
		ctx = *r.ContextClass
	}
	return strings.Join([]string{string(r.Kind), r.Source, r.Target, ctx, r.ExtraInfo}, "\x1f")
}

func (r Relationship) String() string {
	s := fmt.Sprintf("%s %s %s", r.Source, r.Kind.Label(), r.Target)
	if r.ExtraInfo != "" {
		s += " (" + r.ExtraInfo + ")"
	}
	return s
}

func strPtr(s string) *string { return &s }
