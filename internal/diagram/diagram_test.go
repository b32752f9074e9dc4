package diagram

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	cierrors "codeintel/internal/errors"
	"codeintel/internal/relations"
)

func ctx(s string) *string { return &s }

func rel(kind relations.Kind, source, target string, context *string, extra string) relations.Relationship {
	return relations.Relationship{Kind: kind, Source: source, Target: target, ContextClass: context, ExtraInfo: extra}
}

func scenarioGraph() *Graph {
	return FromRelationships([]relations.Relationship{
		rel(relations.Inherits, "B", "A", ctx("B"), ""),
		rel(relations.Composes, "B", "C", ctx("B"), "_c"),
	})
}

func render(t *testing.T, g *Graph, cfg RenderConfig) string {
	t.Helper()
	out, err := g.Render(cfg)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return out
}

func TestGraph_AddRelationship(t *testing.T) {
	g := NewGraph()
	r := rel(relations.Implements, "Service", "IService", ctx("Service"), "")
	r.File, r.Line = "svc.cs", 3
	if !g.AddRelationship(r) {
		t.Fatal("first insert should be new")
	}
	r.Line = 40
	if g.AddRelationship(r) {
		t.Error("relationship differing only in line should be a duplicate")
	}
	if g.AddRelationship(relations.Relationship{Kind: relations.Inherits, Source: "X"}) {
		t.Error("relationship without target should be ignored")
	}

	g.AddRelationship(rel(relations.Composes, "Helper", "Repo", ctx("Outer"), "repo"))

	var names []string
	for _, e := range g.Entities() {
		names = append(names, e.Name)
	}
	want := []string{"Service", "IService", "Helper", "Outer", "Repo"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("entities = %v, want %v", names, want)
	}
	if e, _ := g.Entity("IService"); e.Kind != KindInterface {
		t.Errorf("implements target kind = %s, want interface", e.Kind)
	}
	if e, _ := g.Entity("Service"); e.File != "svc.cs" {
		t.Errorf("Service file = %q", e.File)
	}
	if len(g.Relationships()) != 2 {
		t.Errorf("got %d relationships, want 2", len(g.Relationships()))
	}
	st := g.Stats()
	if st.Entities != 5 || st.Interfaces != 1 || st.ByKind[relations.Composes] != 1 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestRender_MermaidFlat(t *testing.T) {
	got := render(t, scenarioGraph(), RenderConfig{Style: StyleMermaid, Mode: ModeFlat})
	want := `classDiagram
    direction TB
    class B
    class A
    class C
    B --|> A : inherits-from
    B --> C : has-a
`
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestRender_MermaidContainment(t *testing.T) {
	got := render(t, scenarioGraph(), RenderConfig{Style: StyleMermaid, Mode: ModeContainment})
	want := `classDiagram
    direction TB
    class B {
        _c : C
    }
    class A
    class C
    B --|> A : inherits-from
`
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestRender_DOT(t *testing.T) {
	g := scenarioGraph()
	flat := render(t, g, RenderConfig{Style: StyleDOT, Mode: ModeFlat, Direction: "lr"})
	want := `digraph relationships {
    rankdir=LR;
    node [shape=record, fontname="Helvetica"];
    edge [fontname="Helvetica", fontsize=10];
    "B" [label="{B}"];
    "A" [label="{A}"];
    "C" [label="{C}"];
    "B" -> "A" [label="inherits-from", arrowhead=empty];
    "B" -> "C" [label="has-a", arrowhead=vee];
}
`
	if flat != want {
		t.Errorf("got:\n%s\nwant:\n%s", flat, want)
	}

	contained := render(t, g, RenderConfig{
		Style:          StyleDOT,
		Mode:           ModeContainment,
		MemberPrefixes: map[string]string{"composes": "-"},
		MemberColors:   map[string]string{"composes": "#eeeeee"},
	})
	if !strings.Contains(contained, `"B" [label="{B|-_c : C\l}", style=filled, fillcolor="#eeeeee"];`) {
		t.Errorf("missing member record in:\n%s", contained)
	}
	if strings.Contains(contained, "has-a") {
		t.Errorf("containment should not draw composition edges:\n%s", contained)
	}
}

func TestRender_ContainmentWithoutCompositionMatchesFlat(t *testing.T) {
	g := FromRelationships([]relations.Relationship{
		rel(relations.Inherits, "Dog", "Animal", ctx("Dog"), ""),
		rel(relations.Implements, "Dog", "IPet", ctx("Dog"), ""),
		rel(relations.Inherits, "Cat", "Animal", nil, ""),
	})
	for _, style := range []Style{StyleMermaid, StyleDOT} {
		t.Run(string(style), func(t *testing.T) {
			flat := render(t, g, RenderConfig{Style: style, Mode: ModeFlat})
			contained := render(t, g, RenderConfig{Style: style, Mode: ModeContainment})
			if flat != contained {
				t.Errorf("flat and containment differ:\n%s\n---\n%s", flat, contained)
			}
		})
	}
}

func TestRender_UnresolvedCompositionOnlyInFlat(t *testing.T) {
	g := FromRelationships([]relations.Relationship{
		rel(relations.Composes, "util", "Cache", nil, "cache"),
	})
	flat := render(t, g, RenderConfig{Mode: ModeFlat})
	if !strings.Contains(flat, "util --> Cache : has-a") {
		t.Errorf("flat should draw the edge:\n%s", flat)
	}
	contained := render(t, g, RenderConfig{Mode: ModeContainment})
	if strings.Contains(contained, "has-a") || strings.Contains(contained, "cache : Cache") {
		t.Errorf("containment should omit unresolved composition:\n%s", contained)
	}
}

func TestRender_InterfaceAndIDs(t *testing.T) {
	g := FromRelationships([]relations.Relationship{
		rel(relations.Implements, "pkg.Impl", "IThing", ctx("pkg.Impl"), ""),
	})
	got := render(t, g, RenderConfig{Mode: ModeFlat})
	for _, want := range []string{
		"class pkg_Impl[\"pkg.Impl\"]\n",
		"class IThing {\n        <<interface>>\n    }\n",
		"pkg_Impl ..|> IThing : implements\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestRender_GroupByFile(t *testing.T) {
	r1 := rel(relations.Inherits, "B", "A", ctx("B"), "")
	r1.File = "a.cs"
	r2 := rel(relations.Inherits, "D", "B", ctx("D"), "")
	r2.File = "d.cs"
	g := FromRelationships([]relations.Relationship{r1, r2})

	mm := render(t, g, RenderConfig{Mode: ModeFlat, GroupBy: GroupFile})
	for _, want := range []string{
		"    namespace a_cs {\n        class B\n    }\n",
		"    namespace d_cs {\n        class D\n    }\n",
		"    class A\n",
	} {
		if !strings.Contains(mm, want) {
			t.Errorf("missing %q in:\n%s", want, mm)
		}
	}

	dot := render(t, g, RenderConfig{Style: StyleDOT, Mode: ModeFlat, GroupBy: GroupFile})
	if !strings.Contains(dot, "subgraph cluster_0 {\n        label=\"a.cs\";\n        \"B\" [label=\"{B}\"];\n    }") {
		t.Errorf("missing cluster in:\n%s", dot)
	}
}

func TestRender_MermaidStylesOutsideNamespaces(t *testing.T) {
	r := rel(relations.Composes, "B", "C", ctx("B"), "_c")
	r.File = "b.cs"
	g := FromRelationships([]relations.Relationship{r})

	got := render(t, g, RenderConfig{
		Mode:         ModeContainment,
		GroupBy:      GroupFile,
		MemberColors: map[string]string{"composes": "#eeeeee"},
	})
	end := strings.Index(got, "    }\n")
	style := strings.Index(got, "    style B fill:#eeeeee\n")
	if end < 0 || style < 0 {
		t.Fatalf("missing namespace or style line in:\n%s", got)
	}
	if style < end {
		t.Errorf("style line written inside the namespace:\n%s", got)
	}
	if strings.Contains(got, "        style ") {
		t.Errorf("style line indented as a namespace member:\n%s", got)
	}
}

func TestRender_InvalidConfig(t *testing.T) {
	g := scenarioGraph()
	tests := []RenderConfig{
		{Style: "plantuml"},
		{Mode: "nested"},
		{Direction: "diagonal"},
		{GroupBy: "module"},
	}
	for _, cfg := range tests {
		if _, err := g.Render(cfg); err == nil {
			t.Errorf("Render(%+v) should fail", cfg)
		}
	}
}

func TestRenderConfig_WithHints(t *testing.T) {
	hints := relations.Rendering{
		GroupBy:         "file",
		ContainmentMode: "flat",
		MemberPrefixes:  map[string]string{"composes": "+"},
	}
	cfg := RenderConfig{MemberPrefixes: map[string]string{"composes": "-"}}.WithHints(hints)
	if cfg.GroupBy != "file" || cfg.Mode != ModeFlat {
		t.Errorf("hints not applied: %+v", cfg)
	}
	if cfg.MemberPrefixes["composes"] != "-" {
		t.Error("explicit prefix should win over hint")
	}

	explicit := RenderConfig{Mode: ModeContainment}.WithHints(hints)
	if explicit.Mode != ModeContainment {
		t.Error("explicit mode should win over hint")
	}
}

func TestCycles(t *testing.T) {
	g := FromRelationships([]relations.Relationship{
		rel(relations.Inherits, "A", "B", ctx("A"), ""),
		rel(relations.Composes, "B", "A", ctx("B"), "owner"),
		rel(relations.Composes, "Node", "Node", ctx("Node"), "next"),
		rel(relations.Inherits, "D", "A", ctx("D"), ""),
	})
	got := g.Cycles()
	want := [][]string{{"A", "B"}, {"Node"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Cycles() = %v, want %v", got, want)
	}
}

func TestCycles_LargeRing(t *testing.T) {
	const n = 20000
	g := NewGraph()
	for i := 0; i < n; i++ {
		g.AddRelationship(rel(relations.Composes, fmt.Sprintf("T%d", i), fmt.Sprintf("T%d", (i+1)%n), nil, ""))
	}
	cycles := g.Cycles()
	if len(cycles) != 1 || len(cycles[0]) != n {
		t.Fatalf("expected one cycle of %d, got %d cycles", n, len(cycles))
	}
}

func TestAncestorsAndDescendants(t *testing.T) {
	g := FromRelationships([]relations.Relationship{
		rel(relations.Inherits, "Puppy", "Dog", ctx("Puppy"), ""),
		rel(relations.Inherits, "Dog", "Animal", ctx("Dog"), ""),
		rel(relations.Implements, "Dog", "IPet", ctx("Dog"), ""),
		rel(relations.Composes, "Animal", "Puppy", ctx("Animal"), "young"),
		rel(relations.Inherits, "Animal", "Dog", ctx("Animal"), ""),
	})
	if got := g.Ancestors("Puppy"); !reflect.DeepEqual(got, []string{"Dog", "Animal", "IPet"}) {
		t.Errorf("Ancestors(Puppy) = %v", got)
	}
	if got := g.Ancestors("IPet"); got != nil {
		t.Errorf("Ancestors(IPet) = %v, want none", got)
	}
	if got := g.Descendants("IPet"); !reflect.DeepEqual(got, []string{"Dog", "Puppy", "Animal"}) {
		t.Errorf("Descendants(IPet) = %v", got)
	}
	if got := g.Ancestors("missing"); got != nil {
		t.Errorf("unknown entity should have no ancestors, got %v", got)
	}
}

func TestConvert_MissingTool(t *testing.T) {
	for _, style := range []Style{StyleMermaid, StyleDOT} {
		t.Run(string(style), func(t *testing.T) {
			err := Convert(context.Background(), ConvertOptions{
				Style:          style,
				Source:         "classDiagram\n",
				Output:         filepath.Join(t.TempDir(), "out.svg"),
				MermaidCommand: "codeintel-no-such-mmdc",
				DotCommand:     "codeintel-no-such-dot",
			})
			if !cierrors.IsCode(err, cierrors.ToolUnavailable) {
				t.Errorf("expected TOOL_UNAVAILABLE, got %v", err)
			}
		})
	}
}

func TestExtension(t *testing.T) {
	if Extension(StyleDOT) != ".dot" || Extension(StyleMermaid) != ".mmd" {
		t.Error("unexpected extensions")
	}
}
