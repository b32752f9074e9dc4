package main

import (
	"strings"
	"testing"

	"codeintel/internal/deadcode"
	"codeintel/internal/relations"
	"codeintel/internal/tags"
	"codeintel/internal/tracer"
	"codeintel/internal/tracestore"
)

func TestFormatResponse_JSON(t *testing.T) {
	resp := map[string]interface{}{
		"key": "value",
		"num": 42,
	}

	result, err := FormatResponse(resp, FormatJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result, `"key": "value"`) {
		t.Error("JSON output missing expected key")
	}
	if !strings.Contains(result, `"num": 42`) {
		t.Error("JSON output missing expected number")
	}
}

func TestFormatResponse_UnsupportedFormat(t *testing.T) {
	_, err := FormatResponse(map[string]string{"key": "value"}, "xml")
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if !strings.Contains(err.Error(), "unsupported format") {
		t.Errorf("error should mention unsupported format, got: %v", err)
	}
}

func TestFormatResponse_RelationsCyclesKey(t *testing.T) {
	resp := &RelationsResponseCLI{Path: ".", Relationships: []relations.Relationship{}, Cycles: [][]string{}}
	result, err := FormatResponse(resp, FormatJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result, `"cycles": []`) {
		t.Errorf("an empty cycle report must still be present:\n%s", result)
	}
}

func TestFormatHuman_UnknownTypeFallsBackToJSON(t *testing.T) {
	resp := struct {
		Foo string `json:"foo"`
	}{Foo: "bar"}

	result, err := formatHuman(resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result, `"foo": "bar"`) {
		t.Errorf("missing JSON content: %s", result)
	}
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		flag    string
		want    OutputFormat
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"human", FormatHuman, false},
		{"", FormatJSON, false}, // nil stdout is not a terminal
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			got, err := resolveFormat(tt.flag, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolveFormat(%q) error = %v, wantErr %v", tt.flag, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("resolveFormat(%q) = %q, want %q", tt.flag, got, tt.want)
			}
		})
	}
}

func TestFormatTagsHuman(t *testing.T) {
	resp := &TagsResponseCLI{
		Source:  "file",
		Stats:   &tags.ParseStats{Lines: 3, Tags: 2, Malformed: 1},
		Summary: tags.Summary{Files: 1, Tags: 2},
		Total:   2,
		Tags: []tags.Tag{
			{Name: "Repo", Path: "app/repo.py", Kind: "class", LineStart: 3},
		},
		Truncated: true,
	}
	out := formatTagsHuman(resp)
	for _, want := range []string{"Tags (file)", "1 malformed", "app/repo.py:3", "Repo", "... 1 more"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatRelationsHuman(t *testing.T) {
	resp := &RelationsResponseCLI{
		Path:  ".",
		Files: 1,
		ByKind: map[relations.Kind]int{
			relations.Inherits: 1,
		},
		Relationships: []relations.Relationship{
			{Kind: relations.Inherits, Source: "Dog", Target: "Animal", File: "zoo.py", Line: 4},
		},
		Cycles:    [][]string{},
		Entity:    "Dog",
		Ancestors: []string{"Animal"},
	}
	out := formatRelationsHuman(resp)
	for _, want := range []string{"Dog inherits-from Animal", "(zoo.py:4)", "Cycles:\n  none", "Ancestors of Dog:\n  Animal"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatCompareHuman(t *testing.T) {
	same := &TraceCompareResponseCLI{Comparison: &tracestore.Comparison{A: "a", B: "b"}, Unchanged: true}
	if out := formatCompareHuman(same); !strings.Contains(out, "identical") {
		t.Errorf("unchanged comparison output: %s", out)
	}

	changed := &TraceCompareResponseCLI{Comparison: &tracestore.Comparison{
		A:        "a",
		B:        "b",
		NewPaths: []tracer.Edge{{Caller: "f", Callee: "h"}},
		FrequencyChanges: []tracestore.FrequencyChange{
			{Path: tracer.Edge{Caller: "f", Callee: "g"}, CountA: 10, CountB: 15, Delta: 5, DeltaPercent: 50},
		},
	}}
	out := formatCompareHuman(changed)
	for _, want := range []string{"+ f -> h", "f -> g: 10 -> 15 (+5, +50.0%)", "Removed paths (0)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatHotHuman(t *testing.T) {
	resp := &TraceHotResponseCLI{
		ID:   "run_1",
		Heat: map[tracer.Heat]int{tracer.Hot: 1, tracer.Warm: 0, tracer.Cold: 1},
		Paths: []tracer.PathStat{
			{Edge: tracer.Edge{Caller: "a", Callee: "b"}, Count: 150, Heat: tracer.Hot},
			{Edge: tracer.Edge{Caller: "a", Callee: "c"}, Count: 2, Heat: tracer.Cold},
		},
	}
	out := formatHotHuman(resp)
	for _, want := range []string{"1 hot (>100), 0 warm (>10), 1 cold", "150  hot   a -> b"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatDeadcodeHuman(t *testing.T) {
	resp := &TraceDeadcodeResponseCLI{
		ID: "run_1",
		Result: &deadcode.Result{
			Dead: []deadcode.Item{
				{Symbol: deadcode.Symbol{ID: "app::unused", File: "app/main.py", Line: 11}},
				{Symbol: deadcode.Symbol{ID: "app::main", File: "app/main.py", Line: 1}, Excluded: "entry point"},
			},
			Summary: deadcode.Summary{
				TotalSymbols:  3,
				Executed:      1,
				DeadCount:     1,
				ExcludedCount: 1,
				ByKind:        map[string]int{"function": 1},
			},
		},
	}
	out := formatDeadcodeHuman(resp)
	for _, want := range []string{"Known functions: 3", "Excluded: 1", "function=1", "app/main.py:11  app::unused", "[excluded: entry point]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
