package diagram

import (
	"fmt"
	"strings"

	"codeintel/internal/relations"
)

type dotWriter struct{}

func dotID(s string) string {
	return fmt.Sprintf("\"%s\"", strings.ReplaceAll(s, "\"", "\\\""))
}

var dotRecordReplacer = strings.NewReplacer(
	"\"", "\\\"",
	"{", "\\{",
	"}", "\\}",
	"|", "\\|",
	"<", "\\<",
	">", "\\>",
	"\n", "\\n",
)

func escapeDOTRecord(s string) string {
	return dotRecordReplacer.Replace(s)
}

func (dotWriter) begin(sb *strings.Builder, cfg RenderConfig) {
	sb.WriteString("digraph relationships {\n")
	fmt.Fprintf(sb, "    rankdir=%s;\n", cfg.Direction)
	sb.WriteString("    node [shape=record, fontname=\"Helvetica\"];\n")
	sb.WriteString("    edge [fontname=\"Helvetica\", fontsize=10];\n")
}

func (dotWriter) beginGroup(sb *strings.Builder, id int, name string) {
	fmt.Fprintf(sb, "    subgraph cluster_%d {\n", id)
	fmt.Fprintf(sb, "        label=%s;\n", dotID(name))
}

func (dotWriter) endGroup(sb *strings.Builder) {
	sb.WriteString("    }\n")
}

func (dotWriter) node(sb *strings.Builder, n node, cfg RenderConfig, indent string) {
	title := escapeDOTRecord(n.Name)
	if n.Kind == KindInterface {
		title = "«interface»\\n" + title
	}
	label := "{" + title
	if len(n.members) > 0 {
		label += "|"
		for _, m := range n.members {
			label += escapeDOTRecord(memberLine(m, cfg)) + "\\l"
		}
	}
	label += "}"

	attrs := fmt.Sprintf("label=\"%s\"", label)
	if c := memberColor(n, cfg); c != "" {
		attrs += fmt.Sprintf(", style=filled, fillcolor=%s", dotID(c))
	}
	fmt.Fprintf(sb, "%s%s [%s];\n", indent, dotID(n.Name), attrs)
}

func (dotWriter) nodeStyle(*strings.Builder, node, RenderConfig) {}

func (dotWriter) edge(sb *strings.Builder, r relations.Relationship) {
	var style string
	switch r.Kind {
	case relations.Inherits:
		style = "arrowhead=empty"
	case relations.Implements:
		style = "arrowhead=empty, style=dashed"
	default:
		style = "arrowhead=vee"
	}
	fmt.Fprintf(sb, "    %s -> %s [label=%s, %s];\n", dotID(r.Source), dotID(r.Target), dotID(r.Kind.Label()), style)
}

func (dotWriter) end(sb *strings.Builder) {
	sb.WriteString("}\n")
}
