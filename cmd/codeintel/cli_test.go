package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codeintel/internal/paths"
	"codeintel/internal/tracer"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustExecute(t *testing.T, v interface{}, args ...string) {
	t.Helper()
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("codeintel %s: %v", strings.Join(args, " "), err)
	}
	if v != nil {
		if err := json.Unmarshal([]byte(out), v); err != nil {
			t.Fatalf("codeintel %s: bad JSON %v:\n%s", strings.Join(args, " "), err, out)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeEvents(t *testing.T, path string, helperCalls int) {
	t.Helper()
	events := []tracer.Event{{Event: "call", Function: "main", File: "app/main.py", Module: "app"}}
	for i := 0; i < helperCalls; i++ {
		events = append(events,
			tracer.Event{Event: "call", Function: "helper", File: "app/main.py", Module: "app"},
			tracer.Event{Event: "return"})
	}
	events = append(events, tracer.Event{Event: "return"})

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := tracer.WriteEvents(f, events); err != nil {
		t.Fatal(err)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	root := t.TempDir()

	var first InitResponseCLI
	mustExecute(t, &first, "--root", root, "--format", "json", "init")
	if !first.Created {
		t.Error("first init should create the data directory")
	}
	if _, err := os.Stat(paths.ConfigPath(root)); err != nil {
		t.Fatalf("config not written: %v", err)
	}

	var second InitResponseCLI
	mustExecute(t, &second, "--root", root, "--format", "json", "init")
	if second.Created {
		t.Error("second init should report the existing directory")
	}
}

func TestTraceWorkflow(t *testing.T) {
	root := t.TempDir()
	t.Setenv("CODEINTEL_TAGS_SOURCE", "file")
	mustExecute(t, nil, "--root", root, "--format", "json", "init")

	writeFile(t, paths.TagsPath(root), strings.Join([]string{
		`{"_type":"tag","name":"main","path":"app/main.py","kind":"function","language":"Python","line":1,"end":5}`,
		`{"_type":"tag","name":"helper","path":"app/main.py","kind":"function","language":"Python","line":7,"end":9}`,
		`{"_type":"tag","name":"unused","path":"app/main.py","kind":"function","language":"Python","line":11,"end":20}`,
	}, "\n")+"\n")

	base := filepath.Join(root, "base.jsonl")
	writeEvents(t, base, 2)
	next := filepath.Join(root, "next.jsonl")
	writeEvents(t, next, 3)

	var rec TraceReplayResponseCLI
	mustExecute(t, &rec, "--root", root, "--format", "json", "trace", "replay", base, "--label", "base")
	if !rec.Resolved {
		t.Error("replay should resolve against the stored tags")
	}
	if rec.Replay.Calls != 3 || rec.Summary.TotalCalls != 2 {
		t.Errorf("replay = %+v summary = %+v", rec.Replay, rec.Summary)
	}
	mustExecute(t, nil, "--root", root, "--format", "json", "trace", "replay", next, "--label", "next")

	var list TraceListResponseCLI
	mustExecute(t, &list, "--root", root, "--format", "json", "trace", "list")
	if len(list.Traces) != 2 || list.Traces[0].Label != "next" {
		t.Errorf("list = %+v, want next first", list.Traces)
	}

	var show TraceShowResponseCLI
	mustExecute(t, &show, "--root", root, "--format", "json", "trace", "show", "base")
	if len(show.TopPaths) != 1 || show.TopPaths[0].Caller != "app::main" || show.TopPaths[0].Callee != "app::helper" {
		t.Errorf("top paths = %+v", show.TopPaths)
	}

	var cmp TraceCompareResponseCLI
	mustExecute(t, &cmp, "--root", root, "--format", "json", "trace", "compare", "base", "next")
	if len(cmp.FrequencyChanges) != 1 || cmp.FrequencyChanges[0].Delta != 1 {
		t.Errorf("compare = %+v", cmp.Comparison)
	}

	var dead TraceDeadcodeResponseCLI
	mustExecute(t, &dead, "--root", root, "--format", "json", "trace", "deadcode", "base")
	if len(dead.Dead) != 1 || dead.Dead[0].ID != "app::unused" {
		t.Errorf("dead = %+v", dead.Dead)
	}

	if _, err := execute(t, "--root", root, "--format", "json", "trace", "show", "missing"); err == nil {
		t.Error("showing an unknown label should fail")
	}
}

func TestRelationsAndDiagram(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "zoo.py"), `class Animal:
    pass

class Dog(Animal):
    def __init__(self):
        self.owner: Person = None
`)

	var rels RelationsResponseCLI
	mustExecute(t, &rels, "--root", root, "--format", "json", "relations", "--cycles")
	if rels.Files != 1 || len(rels.Relationships) == 0 {
		t.Fatalf("relations = %+v", rels)
	}
	if rels.Relationships[0].Source != "Dog" || rels.Relationships[0].Target != "Animal" {
		t.Errorf("first relationship = %+v", rels.Relationships[0])
	}
	if rels.Cycles == nil || len(rels.Cycles) != 0 {
		t.Errorf("cycles = %v, want empty", rels.Cycles)
	}

	out := filepath.Join(root, "out", "classes.mmd")
	var d DiagramResponseCLI
	mustExecute(t, &d, "--root", root, "--format", "json", "diagram", "--style", "mermaid", "--mode", "flat", "--out", out)
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("diagram not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "classDiagram") || !strings.Contains(string(data), "Animal") {
		t.Errorf("diagram = %s", data)
	}
	if d.Diagram != "" {
		t.Error("diagram text should not be echoed when --out is set")
	}
}
