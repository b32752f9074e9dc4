// Package diagram turns extracted relationships into class diagrams.
package diagram

import (
	"codeintel/internal/relations"
)

// EntityKind is how an entity is drawn.
type EntityKind string

const (
	KindClass     EntityKind = "class"
	KindInterface EntityKind = "interface"
)

// Entity is one named type in the graph.
type Entity struct {
	Name string     `json:"name"`
	Kind EntityKind `json:"kind"`
	// File is the first file the entity was seen declaring something in.
	// Types only ever seen as targets have no file.
	File string `json:"file,omitempty"`
}

// Graph accumulates relationships between entities. Entities keep the
// order in which they were first seen. A Graph is not safe for concurrent
// use.
type Graph struct {
	entities []*Entity
	byName   map[string]int
	rels     []relations.Relationship
	seen     map[string]bool
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		byName: make(map[string]int),
		seen:   make(map[string]bool),
	}
}

// FromRelationships builds a graph from rels in order.
func FromRelationships(rels []relations.Relationship) *Graph {
	g := NewGraph()
	for _, r := range rels {
		g.AddRelationship(r)
	}
	return g
}

// AddEntity inserts name if missing and returns it. A known entity without
// a file takes file.
func (g *Graph) AddEntity(name, file string) *Entity {
	if i, ok := g.byName[name]; ok {
		e := g.entities[i]
		if e.File == "" {
			e.File = file
		}
		return e
	}
	e := &Entity{Name: name, Kind: KindClass, File: file}
	g.byName[name] = len(g.entities)
	g.entities = append(g.entities, e)
	return e
}

// AddRelationship records rel, creating its source, target and context
// entities as needed. Relationships differing only in File or Line are
// the same; AddRelationship reports whether rel was new.
func (g *Graph) AddRelationship(rel relations.Relationship) bool {
	if rel.Source == "" || rel.Target == "" {
		return false
	}
	key := rel.Key()
	if g.seen[key] {
		return false
	}
	g.seen[key] = true

	g.AddEntity(rel.Source, rel.File)
	if rel.ContextClass != nil && *rel.ContextClass != rel.Source {
		g.AddEntity(*rel.ContextClass, rel.File)
	}
	target := g.AddEntity(rel.Target, "")
	if rel.Kind == relations.Implements {
		target.Kind = KindInterface
	}
	g.rels = append(g.rels, rel)
	return true
}

// Entity looks up an entity by name.
func (g *Graph) Entity(name string) (Entity, bool) {
	i, ok := g.byName[name]
	if !ok {
		return Entity{}, false
	}
	return *g.entities[i], true
}

// Entities returns the entities in first-seen order.
func (g *Graph) Entities() []Entity {
	out := make([]Entity, len(g.entities))
	for i, e := range g.entities {
		out[i] = *e
	}
	return out
}

// Relationships returns the distinct relationships in insertion order.
func (g *Graph) Relationships() []relations.Relationship {
	return append([]relations.Relationship(nil), g.rels...)
}

// Len returns the number of entities.
func (g *Graph) Len() int { return len(g.entities) }

// Stats summarizes the graph.
type Stats struct {
	Entities   int                    `json:"entities"`
	Interfaces int                    `json:"interfaces"`
	ByKind     map[relations.Kind]int `json:"byKind"`
}

// Stats counts entities and relationships.
func (g *Graph) Stats() Stats {
	s := Stats{Entities: len(g.entities), ByKind: make(map[relations.Kind]int)}
	for _, e := range g.entities {
		if e.Kind == KindInterface {
			s.Interfaces++
		}
	}
	for _, r := range g.rels {
		s.ByKind[r.Kind]++
	}
	return s
}
