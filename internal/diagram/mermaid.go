package diagram

import (
	"fmt"
	"strings"

	"codeintel/internal/relations"
)

type mermaidWriter struct{}

var mermaidIDReplacer = strings.NewReplacer(
	":", "_",
	"/", "_",
	".", "_",
	"-", "_",
	" ", "_",
	"(", "",
	")", "",
	"*", "ptr_",
	"<", "_",
	">", "_",
	",", "_",
	"$", "_",
)

func mermaidID(s string) string {
	id := mermaidIDReplacer.Replace(s)
	if len(id) > 0 && id[0] >= '0' && id[0] <= '9' {
		id = "n" + id
	}
	return id
}

var mermaidLabelReplacer = strings.NewReplacer(
	"\"", "#quot;",
	"<", "&lt;",
	">", "&gt;",
)

func escapeMermaidLabel(s string) string {
	return mermaidLabelReplacer.Replace(s)
}

func (mermaidWriter) begin(sb *strings.Builder, cfg RenderConfig) {
	sb.WriteString("classDiagram\n")
	fmt.Fprintf(sb, "    direction %s\n", cfg.Direction)
}

func (mermaidWriter) beginGroup(sb *strings.Builder, _ int, name string) {
	fmt.Fprintf(sb, "    namespace %s {\n", mermaidID(name))
}

func (mermaidWriter) endGroup(sb *strings.Builder) {
	sb.WriteString("    }\n")
}

func (mermaidWriter) node(sb *strings.Builder, n node, cfg RenderConfig, indent string) {
	id := mermaidID(n.Name)
	decl := "class " + id
	if id != n.Name {
		decl += fmt.Sprintf("[\"%s\"]", escapeMermaidLabel(n.Name))
	}

	if n.Kind != KindInterface && len(n.members) == 0 {
		sb.WriteString(indent + decl + "\n")
		return
	}
	sb.WriteString(indent + decl + " {\n")
	if n.Kind == KindInterface {
		sb.WriteString(indent + "    <<interface>>\n")
	}
	for _, m := range n.members {
		sb.WriteString(indent + "    " + memberLine(m, cfg) + "\n")
	}
	sb.WriteString(indent + "}\n")
}

// nodeStyle is written at the top level; namespace bodies only hold classes.
func (mermaidWriter) nodeStyle(sb *strings.Builder, n node, cfg RenderConfig) {
	if c := memberColor(n, cfg); c != "" {
		fmt.Fprintf(sb, "    style %s fill:%s\n", mermaidID(n.Name), c)
	}
}

func mermaidArrow(k relations.Kind) string {
	switch k {
	case relations.Inherits:
		return "--|>"
	case relations.Implements:
		return "..|>"
	default:
		return "-->"
	}
}

func (mermaidWriter) edge(sb *strings.Builder, r relations.Relationship) {
	fmt.Fprintf(sb, "    %s %s %s : %s\n", mermaidID(r.Source), mermaidArrow(r.Kind), mermaidID(r.Target), r.Kind.Label())
}

func (mermaidWriter) end(*strings.Builder) {}
