package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"codeintel/internal/relations"
	"codeintel/internal/tracer"
	"codeintel/internal/version"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *InitResponseCLI:
		return formatInitHuman(v), nil
	case *VersionResponseCLI:
		return version.Full(), nil
	case *TagsResponseCLI:
		return formatTagsHuman(v), nil
	case *CodeMapResponseCLI:
		return formatCodeMapHuman(v), nil
	case *EnclosingResponseCLI:
		return formatEnclosingHuman(v), nil
	case *RelationsResponseCLI:
		return formatRelationsHuman(v), nil
	case *DiagramResponseCLI:
		return formatDiagramHuman(v), nil
	case *TraceReplayResponseCLI:
		return formatReplayHuman(v), nil
	case *TraceListResponseCLI:
		return formatTraceListHuman(v), nil
	case *TraceLabelsResponseCLI:
		return formatLabelsHuman(v), nil
	case *TraceShowResponseCLI:
		return formatTraceShowHuman(v), nil
	case *TraceCompareResponseCLI:
		return formatCompareHuman(v), nil
	case *TraceTrendResponseCLI:
		return formatTrendHuman(v), nil
	case *TraceHotResponseCLI:
		return formatHotHuman(v), nil
	case *TraceDeadcodeResponseCLI:
		return formatDeadcodeHuman(v), nil
	case *TraceRebuildResponseCLI:
		return fmt.Sprintf("Rebuilt trace catalog in %s: %d traces indexed", v.Dir, v.Indexed), nil
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

func header(b *strings.Builder, title string) {
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
}

func formatInitHuman(resp *InitResponseCLI) string {
	var b strings.Builder
	if !resp.Created {
		b.WriteString("codeintel already initialized.\n")
		b.WriteString(fmt.Sprintf("Configuration at: %s\n", resp.ConfigPath))
		b.WriteString("\nRun 'codeintel init --force' to reinitialize.")
		return b.String()
	}
	b.WriteString("codeintel initialized.\n")
	b.WriteString(fmt.Sprintf("Configuration at: %s\n", resp.ConfigPath))
	b.WriteString(fmt.Sprintf("Traces stored in: %s\n", resp.TracesDir))
	b.WriteString("\nNext steps:\n")
	b.WriteString("  codeintel tags           build the symbol table\n")
	b.WriteString("  codeintel diagram        render a class diagram\n")
	b.WriteString("  codeintel trace replay   record a trace from call events")
	return b.String()
}

func formatTagsHuman(resp *TagsResponseCLI) string {
	var b strings.Builder
	header(&b, fmt.Sprintf("Tags (%s)", resp.Source))

	b.WriteString(fmt.Sprintf("Index: %d tags in %d files\n", resp.Summary.Tags, resp.Summary.Files))
	if resp.Stats != nil && (resp.Stats.Malformed > 0 || resp.Stats.Ignored > 0) {
		b.WriteString(fmt.Sprintf("Skipped: %d malformed, %d non-tag records\n", resp.Stats.Malformed, resp.Stats.Ignored))
	}
	b.WriteString(fmt.Sprintf("Matched: %d\n\n", resp.Total))

	for _, t := range resp.Tags {
		b.WriteString(fmt.Sprintf("  %s:%d  %-10s %s\n", t.Path, t.LineStart, t.Kind, t.QualifiedName()))
	}
	if resp.Truncated {
		b.WriteString(fmt.Sprintf("  ... %d more\n", resp.Total-len(resp.Tags)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatCodeMapHuman(resp *CodeMapResponseCLI) string {
	var b strings.Builder
	header(&b, "Code map: "+resp.Path)
	b.WriteString(fmt.Sprintf("Classes: %d  Functions: %d  Variables: %d\n\n",
		len(resp.Classes), len(resp.Functions), len(resp.Variables)))
	for _, t := range resp.Tags {
		indent := "  "
		if t.Scope != "" {
			indent += strings.Repeat("  ", strings.Count(t.Scope, ".")+1)
		}
		b.WriteString(fmt.Sprintf("%s%s %s  (line %d)\n", indent, t.Kind, t.Name, t.LineStart))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatEnclosingHuman(resp *EnclosingResponseCLI) string {
	if !resp.Found {
		return fmt.Sprintf("%s:%d is not inside any known symbol", resp.File, resp.Line)
	}
	t := resp.Tag
	end := t.LineEnd
	if end < t.LineStart {
		end = t.LineStart
	}
	return fmt.Sprintf("%s:%d is inside %s %s (lines %d-%d)\nID: %s",
		resp.File, resp.Line, t.Kind, t.QualifiedName(), t.LineStart, end, resp.ID)
}

func formatRelationsHuman(resp *RelationsResponseCLI) string {
	var b strings.Builder
	header(&b, "Relationships: "+resp.Path)

	b.WriteString(fmt.Sprintf("Files: %d  Relationships: %d\n", resp.Files, len(resp.Relationships)))
	for _, k := range relations.Kinds {
		b.WriteString(fmt.Sprintf("  %-14s %d\n", k.Label(), resp.ByKind[k]))
	}
	b.WriteString("\n")

	for _, r := range resp.Relationships {
		b.WriteString("  " + r.String())
		if r.File != "" {
			b.WriteString(fmt.Sprintf("  (%s:%d)", r.File, r.Line))
		}
		b.WriteString("\n")
	}

	if resp.Cycles != nil {
		b.WriteString("\nCycles:\n")
		if len(resp.Cycles) == 0 {
			b.WriteString("  none\n")
		}
		for _, c := range resp.Cycles {
			b.WriteString("  " + strings.Join(c, " <-> ") + "\n")
		}
	}
	if resp.Ancestors != nil {
		b.WriteString(fmt.Sprintf("\nAncestors of %s:\n  %s\n", resp.Entity, joinOrNone(resp.Ancestors)))
	}
	if resp.Descendants != nil {
		b.WriteString(fmt.Sprintf("\nDescendants of %s:\n  %s\n", resp.Entity, joinOrNone(resp.Descendants)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatDiagramHuman(resp *DiagramResponseCLI) string {
	var b strings.Builder
	if resp.Diagram != "" {
		b.WriteString(resp.Diagram)
	}
	if resp.Output != "" {
		b.WriteString(fmt.Sprintf("Wrote %s diagram (%s, %d entities) to %s\n",
			resp.Style, resp.Mode, resp.Stats.Entities, resp.Output))
	}
	if resp.Image != "" {
		b.WriteString(fmt.Sprintf("Rendered image to %s\n", resp.Image))
	}
	if resp.ImageError != "" {
		b.WriteString(fmt.Sprintf("Image not rendered: %s\n", resp.ImageError))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatReplayHuman(resp *TraceReplayResponseCLI) string {
	var b strings.Builder
	header(&b, "Trace recorded: "+resp.ID)
	b.WriteString(fmt.Sprintf("Label:    %s\n", resp.Label))
	b.WriteString(fmt.Sprintf("Session:  %s\n", resp.SessionID))
	b.WriteString(fmt.Sprintf("Events:   %d lines, %d calls, %d returns", resp.Replay.Lines, resp.Replay.Calls, resp.Replay.Returns))
	if resp.Replay.Malformed > 0 {
		b.WriteString(fmt.Sprintf(", %d malformed", resp.Replay.Malformed))
	}
	b.WriteString("\n\n")
	writeSummary(&b, resp.Summary)
	return strings.TrimRight(b.String(), "\n")
}

func writeSummary(b *strings.Builder, s tracer.Summary) {
	b.WriteString(fmt.Sprintf("Total calls:        %d\n", s.TotalCalls))
	b.WriteString(fmt.Sprintf("Unique paths:       %d\n", s.UniquePaths))
	b.WriteString(fmt.Sprintf("Functions executed: %d\n", s.FunctionsExecuted))
	if s.HottestPath != nil {
		b.WriteString(fmt.Sprintf("Hottest path:       %s (%d)\n", s.HottestPath, s.HottestCount))
	}
}

func formatTraceListHuman(resp *TraceListResponseCLI) string {
	if len(resp.Traces) == 0 {
		return "No traces stored. Record one with 'codeintel trace replay'."
	}
	var b strings.Builder
	header(&b, fmt.Sprintf("Traces (%d)", len(resp.Traces)))
	for _, t := range resp.Traces {
		b.WriteString(fmt.Sprintf("  %-40s %s  calls=%d paths=%d funcs=%d\n",
			t.ID, t.Timestamp.Local().Format(time.DateTime),
			t.Summary.TotalCalls, t.Summary.UniquePaths, t.Summary.FunctionsExecuted))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatLabelsHuman(resp *TraceLabelsResponseCLI) string {
	if len(resp.Labels) == 0 {
		return "No trace labels."
	}
	var b strings.Builder
	header(&b, fmt.Sprintf("Labels (%d)", len(resp.Labels)))
	for _, l := range resp.Labels {
		b.WriteString(fmt.Sprintf("  %-20s %3d traces  latest %s\n", l.Label, l.Count, l.Latest))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTraceShowHuman(resp *TraceShowResponseCLI) string {
	var b strings.Builder
	header(&b, "Trace "+resp.ID)
	b.WriteString(fmt.Sprintf("Label:    %s\n", resp.Label))
	b.WriteString(fmt.Sprintf("Recorded: %s\n", resp.Timestamp.Local().Format(time.RFC3339)))
	if len(resp.Digest) > 16 {
		b.WriteString(fmt.Sprintf("Digest:   %s\n", resp.Digest[:16]))
	}
	b.WriteString("\n")
	writeSummary(&b, resp.Summary)
	b.WriteString(fmt.Sprintf("Heat:               %d hot, %d warm, %d cold\n",
		resp.Heat[tracer.Hot], resp.Heat[tracer.Warm], resp.Heat[tracer.Cold]))

	if len(resp.TopPaths) > 0 {
		b.WriteString("\nMost called paths:\n")
		writePaths(&b, resp.TopPaths)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writePaths(b *strings.Builder, paths []tracer.PathStat) {
	for _, p := range paths {
		b.WriteString(fmt.Sprintf("  %6d  %-4s  %s\n", p.Count, p.Heat, p.Edge))
	}
}

func formatCompareHuman(resp *TraceCompareResponseCLI) string {
	var b strings.Builder
	header(&b, fmt.Sprintf("Compare %s -> %s", resp.A, resp.B))
	if resp.Unchanged {
		b.WriteString("Call graphs are identical.")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("New paths (%d):\n", len(resp.NewPaths)))
	for _, e := range resp.NewPaths {
		b.WriteString("  + " + e.String() + "\n")
	}
	b.WriteString(fmt.Sprintf("\nRemoved paths (%d):\n", len(resp.RemovedPaths)))
	for _, e := range resp.RemovedPaths {
		b.WriteString("  - " + e.String() + "\n")
	}
	b.WriteString(fmt.Sprintf("\nFrequency changes (%d):\n", len(resp.FrequencyChanges)))
	for _, c := range resp.FrequencyChanges {
		b.WriteString(fmt.Sprintf("  %s: %d -> %d (%+d, %+.1f%%)\n",
			c.Path, c.CountA, c.CountB, c.Delta, c.DeltaPercent))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTrendHuman(resp *TraceTrendResponseCLI) string {
	var b strings.Builder
	header(&b, fmt.Sprintf("Trend of %s for %s", resp.Metric, resp.Label))
	for _, p := range resp.Points {
		b.WriteString(fmt.Sprintf("  %s  %10.0f  %s\n", p.Timestamp.Local().Format(time.DateTime), p.Value, p.ID))
	}
	if t := resp.Trend; t != nil {
		b.WriteString(fmt.Sprintf("\nDirection:  %s\n", t.Direction))
		b.WriteString(fmt.Sprintf("Velocity:   %+.2f per day\n", t.Velocity))
		b.WriteString(fmt.Sprintf("In 30 days: %.0f (r² %.2f)\n", t.Projection30d, t.RSquared))
	}
	b.WriteString(fmt.Sprintf("Change:     %+.1f%% since first trace", resp.PercentChange))
	return b.String()
}

func formatHotHuman(resp *TraceHotResponseCLI) string {
	var b strings.Builder
	header(&b, "Call path heat: "+resp.ID)
	b.WriteString(fmt.Sprintf("%d hot (>100), %d warm (>10), %d cold\n\n",
		resp.Heat[tracer.Hot], resp.Heat[tracer.Warm], resp.Heat[tracer.Cold]))
	writePaths(&b, resp.Paths)
	return strings.TrimRight(b.String(), "\n")
}

func formatDeadcodeHuman(resp *TraceDeadcodeResponseCLI) string {
	var b strings.Builder
	header(&b, "Never executed: "+resp.ID)
	s := resp.Summary
	b.WriteString(fmt.Sprintf("Known functions: %d  Executed: %d  Dead: %d",
		s.TotalSymbols, s.Executed, s.DeadCount))
	if s.ExcludedCount > 0 {
		b.WriteString(fmt.Sprintf("  Excluded: %d", s.ExcludedCount))
	}
	b.WriteString(fmt.Sprintf("\nEstimated dead lines: %d\n", s.EstimatedLines))

	if len(s.ByKind) > 0 {
		kinds := make([]string, 0, len(s.ByKind))
		for k := range s.ByKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		parts := make([]string, 0, len(kinds))
		for _, k := range kinds {
			parts = append(parts, fmt.Sprintf("%s=%d", k, s.ByKind[k]))
		}
		b.WriteString("By kind: " + strings.Join(parts, " ") + "\n")
	}
	b.WriteString("\n")

	for _, item := range resp.Dead {
		b.WriteString(fmt.Sprintf("  %s:%d  %s", item.File, item.Line, item.ID))
		if item.Excluded != "" {
			b.WriteString(fmt.Sprintf("  [excluded: %s]", item.Excluded))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
