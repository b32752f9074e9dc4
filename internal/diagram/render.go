package diagram

import (
	"fmt"
	"sort"
	"strings"

	"codeintel/internal/relations"
)

// Style is the output syntax.
type Style string

const (
	StyleMermaid Style = "mermaid"
	StyleDOT     Style = "dot"
)

// Mode decides where composition is drawn.
type Mode string

const (
	// ModeFlat draws every relationship as an edge.
	ModeFlat Mode = "flat"
	// ModeContainment draws composition as member lines inside the owning
	// entity and keeps only inheritance and implementation as edges.
	ModeContainment Mode = "containment"
)

// Grouping values for RenderConfig.GroupBy.
const (
	GroupNone = "none"
	GroupFile = "file"
)

// RenderConfig controls Render.
type RenderConfig struct {
	Style     Style
	Mode      Mode
	Direction string // TB, BT, LR or RL
	GroupBy   string
	// MemberPrefixes and MemberColors are keyed by relationship kind.
	MemberPrefixes map[string]string
	MemberColors   map[string]string
}

// DefaultRenderConfig returns a top-to-bottom Mermaid containment diagram.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		Style:     StyleMermaid,
		Mode:      ModeContainment,
		Direction: "TB",
		GroupBy:   GroupNone,
	}
}

// WithHints fills fields left empty in c from language rendering hints.
func (c RenderConfig) WithHints(h relations.Rendering) RenderConfig {
	if c.GroupBy == "" {
		c.GroupBy = h.GroupBy
	}
	if c.Mode == "" {
		switch h.ContainmentMode {
		case "flat":
			c.Mode = ModeFlat
		case "subgraph":
			c.Mode = ModeContainment
		}
	}
	c.MemberPrefixes = mergeHints(c.MemberPrefixes, h.MemberPrefixes)
	c.MemberColors = mergeHints(c.MemberColors, h.MemberColors)
	return c
}

func mergeHints(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	out := make(map[string]string, len(dst)+len(src))
	for k, v := range src {
		out[k] = v
	}
	for k, v := range dst {
		out[k] = v
	}
	return out
}

func (c RenderConfig) validate() (RenderConfig, error) {
	switch c.Style {
	case StyleMermaid, StyleDOT:
	case "":
		c.Style = StyleMermaid
	default:
		return c, fmt.Errorf("unknown diagram style %q", c.Style)
	}
	switch c.Mode {
	case ModeFlat, ModeContainment:
	case "":
		c.Mode = ModeContainment
	default:
		return c, fmt.Errorf("unknown diagram mode %q", c.Mode)
	}
	switch strings.ToUpper(c.Direction) {
	case "TB", "BT", "LR", "RL":
		c.Direction = strings.ToUpper(c.Direction)
	case "", "TD":
		c.Direction = "TB"
	default:
		return c, fmt.Errorf("unknown diagram direction %q", c.Direction)
	}
	switch c.GroupBy {
	case GroupNone, GroupFile:
	case "":
		c.GroupBy = GroupNone
	default:
		return c, fmt.Errorf("unknown diagram grouping %q", c.GroupBy)
	}
	return c, nil
}

// Member is one line drawn inside an entity box.
type Member struct {
	Kind   relations.Kind
	Field  string
	Target string
}

// node is an entity with the members it draws.
type node struct {
	Entity
	members []Member
}

// writer is implemented once per Style.
type writer interface {
	begin(sb *strings.Builder, cfg RenderConfig)
	beginGroup(sb *strings.Builder, id int, name string)
	endGroup(sb *strings.Builder)
	node(sb *strings.Builder, n node, cfg RenderConfig, indent string)
	nodeStyle(sb *strings.Builder, n node, cfg RenderConfig)
	edge(sb *strings.Builder, rel relations.Relationship)
	end(sb *strings.Builder)
}

func writerFor(s Style) writer {
	if s == StyleDOT {
		return dotWriter{}
	}
	return mermaidWriter{}
}

// Render writes the graph in cfg.Style. Containment mode omits composition
// relationships whose context class is unknown.
func (g *Graph) Render(cfg RenderConfig) (string, error) {
	cfg, err := cfg.validate()
	if err != nil {
		return "", err
	}
	w := writerFor(cfg.Style)

	members := make(map[string][]Member)
	var edges []relations.Relationship
	for _, r := range g.rels {
		if cfg.Mode == ModeContainment && !r.Kind.Structural() {
			if r.ContextClass != nil {
				members[*r.ContextClass] = append(members[*r.ContextClass], Member{
					Kind: r.Kind, Field: r.ExtraInfo, Target: r.Target,
				})
			}
			continue
		}
		edges = append(edges, r)
	}

	nodes := make([]node, len(g.entities))
	for i, e := range g.entities {
		nodes[i] = node{Entity: *e, members: members[e.Name]}
	}

	var sb strings.Builder
	w.begin(&sb, cfg)
	if cfg.GroupBy == GroupFile {
		groups, loose := groupByFile(nodes)
		for i, grp := range groups {
			w.beginGroup(&sb, i, grp.file)
			for _, n := range grp.nodes {
				w.node(&sb, n, cfg, "        ")
			}
			w.endGroup(&sb)
		}
		for _, n := range loose {
			w.node(&sb, n, cfg, "    ")
		}
	} else {
		for _, n := range nodes {
			w.node(&sb, n, cfg, "    ")
		}
	}
	for _, n := range nodes {
		w.nodeStyle(&sb, n, cfg)
	}
	for _, r := range edges {
		w.edge(&sb, r)
	}
	w.end(&sb)
	return sb.String(), nil
}

type fileGroup struct {
	file  string
	nodes []node
}

// groupByFile clusters nodes by file, ordered by file name. Nodes without
// a file are returned separately.
func groupByFile(nodes []node) ([]fileGroup, []node) {
	byFile := make(map[string]*fileGroup)
	var (
		loose []node
		files []string
	)
	for _, n := range nodes {
		if n.File == "" {
			loose = append(loose, n)
			continue
		}
		grp, ok := byFile[n.File]
		if !ok {
			grp = &fileGroup{file: n.File}
			byFile[n.File] = grp
			files = append(files, n.File)
		}
		grp.nodes = append(grp.nodes, n)
	}
	sort.Strings(files)
	groups := make([]fileGroup, len(files))
	for i, f := range files {
		groups[i] = *byFile[f]
	}
	return groups, loose
}

func memberLine(m Member, cfg RenderConfig) string {
	prefix := cfg.MemberPrefixes[string(m.Kind)]
	if m.Field == "" {
		return prefix + m.Target
	}
	return prefix + m.Field + " : " + m.Target
}

// memberColor returns the fill of a node with members, "" when unset.
func memberColor(n node, cfg RenderConfig) string {
	for _, m := range n.members {
		if c := cfg.MemberColors[string(m.Kind)]; c != "" {
			return c
		}
	}
	return ""
}

// Extension returns the file extension for diagram text of style s.
func Extension(s Style) string {
	if s == StyleDOT {
		return ".dot"
	}
	return ".mmd"
}
