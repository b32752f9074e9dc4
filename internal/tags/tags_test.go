package tags

import (
	"bytes"
	"context"
	"strings"
	"testing"

	cierrors "codeintel/internal/errors"
)

const sampleStream = `{"_type":"tag","name":"A","path":"src/shapes.py","language":"Python","line":1,"end":10,"kind":"class"}
{"_type":"tag","name":"m","path":"src/shapes.py","language":"Python","line":2,"end":3,"kind":"method","scope":"A","scopeKind":"class"}
{"_type":"ptag","name":"JSON_OUTPUT_VERSION","path":"0.0"}
{"_type":"tag","name":"count","path":"src/shapes.py","language":"Python","line":5,"kind":"variable","scope":"A","scopeKind":"class"}
not json at all

{"_type":"tag","name":"helper","path":"./main.py","language":"Python","line":1,"end":4,"kind":"function"}
{"_type":"tag","path":"main.py","kind":"function","line":9}
{"name":"untyped","path":"main.py","kind":"function","line":12}
`

func parseSample(t *testing.T) ([]Tag, ParseStats) {
	t.Helper()
	tags, stats, err := ParseStream(strings.NewReader(sampleStream), nil)
	if err != nil {
		t.Fatalf("ParseStream failed: %v", err)
	}
	return tags, stats
}

func TestParseStream(t *testing.T) {
	tags, stats := parseSample(t)

	if len(tags) != 4 {
		t.Fatalf("len(tags) = %d, want 4", len(tags))
	}
	if stats.Tags != 4 {
		t.Errorf("stats.Tags = %d, want 4", stats.Tags)
	}
	// ptag, blank line and untyped record
	if stats.Ignored != 3 {
		t.Errorf("stats.Ignored = %d, want 3", stats.Ignored)
	}
	// bad json and the nameless tag
	if stats.Malformed != 2 {
		t.Errorf("stats.Malformed = %d, want 2", stats.Malformed)
	}
	if tags[3].Path != "main.py" {
		t.Errorf("path should be normalized, got %q", tags[3].Path)
	}
	if tags[1].LineEnd != 3 || tags[1].Scope != "A" || tags[1].ScopeKind != "class" {
		t.Errorf("unexpected method tag: %+v", tags[1])
	}
}

func TestParseStream_NoTrailingNewline(t *testing.T) {
	in := `{"_type":"tag","name":"x","path":"a.go","kind":"func","line":3}`
	tags, _, err := ParseStream(strings.NewReader(in), nil)
	if err != nil {
		t.Fatalf("ParseStream failed: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "x" {
		t.Fatalf("tags = %+v, want one tag x", tags)
	}
}

func TestWriteStream_ReadBack(t *testing.T) {
	tags, _ := parseSample(t)

	var buf bytes.Buffer
	if err := WriteStream(&buf, tags); err != nil {
		t.Fatalf("WriteStream failed: %v", err)
	}
	back, stats, err := ParseStream(&buf, nil)
	if err != nil {
		t.Fatalf("ParseStream failed: %v", err)
	}
	if stats.Malformed != 0 || stats.Ignored != 0 {
		t.Errorf("written stream should be clean, stats = %+v", stats)
	}
	if len(back) != len(tags) {
		t.Fatalf("len = %d, want %d", len(back), len(tags))
	}
	for i := range tags {
		if back[i] != tags[i] {
			t.Errorf("tag %d = %+v, want %+v", i, back[i], tags[i])
		}
	}
}

func TestTag_Identity(t *testing.T) {
	tests := []struct {
		name      string
		tag       Tag
		wantQName string
		wantID    string
	}{
		{"scoped", Tag{Name: "m", Path: "src/shapes.py", Scope: "A"}, "A.m", "src::A.m"},
		{"unscoped at root", Tag{Name: "main", Path: "main.go"}, "main", ".::main"},
		{"nested scope", Tag{Name: "run", Path: "pkg/a/b.go", Scope: "Outer.Inner"}, "Outer.Inner.run", "pkg/a::Outer.Inner.run"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tag.QualifiedName(); got != tt.wantQName {
				t.Errorf("QualifiedName() = %q, want %q", got, tt.wantQName)
			}
			if got := tt.tag.ID(); got != tt.wantID {
				t.Errorf("ID() = %q, want %q", got, tt.wantID)
			}
		})
	}
}

func TestTag_Contains(t *testing.T) {
	tests := []struct {
		name string
		tag  Tag
		line int
		want bool
	}{
		{"inside", Tag{LineStart: 2, LineEnd: 5}, 4, true},
		{"start", Tag{LineStart: 2, LineEnd: 5}, 2, true},
		{"end", Tag{LineStart: 2, LineEnd: 5}, 5, true},
		{"after", Tag{LineStart: 2, LineEnd: 5}, 6, false},
		{"before", Tag{LineStart: 2, LineEnd: 5}, 1, false},
		{"no end line", Tag{LineStart: 7}, 7, true},
		{"no end line after", Tag{LineStart: 7}, 8, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tag.Contains(tt.line); got != tt.want {
				t.Errorf("Contains(%d) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestKindFamily(t *testing.T) {
	tests := []struct {
		kind string
		want Family
	}{
		{"class", FamilyClass},
		{"Struct", FamilyClass},
		{"interface", FamilyClass},
		{"method", FamilyFunction},
		{"func", FamilyFunction},
		{"constructor", FamilyFunction},
		{"field", FamilyVariable},
		{"constant", FamilyVariable},
		{"namespace", FamilyOther},
		{"", FamilyOther},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			if got := KindFamily(tt.kind); got != tt.want {
				t.Errorf("KindFamily(%q) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestTagFamily_PythonMember(t *testing.T) {
	tests := []struct {
		name string
		tag  Tag
		want Family
	}{
		{"python method", Tag{Name: "m", Kind: "member", Language: "Python", Scope: "A", ScopeKind: "class"}, FamilyFunction},
		{"python lowercase", Tag{Name: "m", Kind: "member", Language: "python"}, FamilyFunction},
		{"c member", Tag{Name: "x", Kind: "member", Language: "C", Scope: "point"}, FamilyVariable},
		{"python variable", Tag{Name: "X", Kind: "variable", Language: "Python"}, FamilyVariable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tag.Family(); got != tt.want {
				t.Errorf("Family() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodeMap_ClassWithMethod(t *testing.T) {
	idx := BuildIndex([]Tag{
		{Name: "A", Path: "a.py", Kind: "class", LineStart: 1, LineEnd: 10},
		{Name: "m", Path: "a.py", Kind: "method", LineStart: 2, LineEnd: 3, Scope: "A", ScopeKind: "class"},
	})

	cm, ok := idx.CodeMap("a.py")
	if !ok {
		t.Fatal("CodeMap(a.py) not found")
	}
	children := cm.Hierarchy["A"]
	if len(children) != 1 || children[0].Name != "m" {
		t.Fatalf("Hierarchy[A] = %+v, want exactly m", children)
	}
	if len(cm.Classes["A"]) != 1 {
		t.Errorf("Classes[A] = %+v, want one tag", cm.Classes["A"])
	}
	if len(cm.Functions["m"]) != 1 {
		t.Errorf("Functions[m] = %+v, want one tag", cm.Functions["m"])
	}
	if _, ok := cm.Hierarchy[""]; ok {
		t.Error("unscoped tags must not appear in Hierarchy")
	}
}

func TestCodeMap_HierarchyInvariant(t *testing.T) {
	tags, _ := parseSample(t)
	idx := BuildIndex(tags)

	for _, file := range idx.Files() {
		cm, _ := idx.CodeMap(file)
		for scope, children := range cm.Hierarchy {
			for _, c := range children {
				if c.Scope != scope {
					t.Errorf("%s: Hierarchy[%q] holds %q with scope %q", file, scope, c.Name, c.Scope)
				}
			}
		}
	}
}

func TestCodeMap_Ordering(t *testing.T) {
	idx := BuildIndex([]Tag{
		{Name: "late", Path: "f.go", Kind: "func", LineStart: 20},
		{Name: "early", Path: "f.go", Kind: "func", LineStart: 1},
		{Name: "same1", Path: "f.go", Kind: "var", LineStart: 5},
		{Name: "same2", Path: "f.go", Kind: "var", LineStart: 5},
	})

	cm, _ := idx.CodeMap("f.go")
	var names []string
	for _, tag := range cm.Tags {
		names = append(names, tag.Name)
	}
	if got := strings.Join(names, ","); got != "early,same1,same2,late" {
		t.Errorf("order = %s, want early,same1,same2,late", got)
	}
	if len(cm.Variables) != 2 {
		t.Errorf("len(Variables) = %d, want 2", len(cm.Variables))
	}
}

func TestCodeMap_Unknown(t *testing.T) {
	idx := BuildIndex(nil)
	cm, ok := idx.CodeMap("missing.go")
	if ok {
		t.Error("CodeMap of unknown file should report not found")
	}
	if cm == nil || len(cm.Hierarchy) != 0 {
		t.Errorf("unknown file should yield an empty CodeMap, got %+v", cm)
	}
}

func TestFindEnclosing(t *testing.T) {
	idx := BuildIndex([]Tag{
		{Name: "Outer", Path: "x.cs", Kind: "class", LineStart: 1, LineEnd: 50},
		{Name: "Inner", Path: "x.cs", Kind: "class", LineStart: 10, LineEnd: 30, Scope: "Outer"},
		{Name: "Run", Path: "x.cs", Kind: "method", LineStart: 12, LineEnd: 20, Scope: "Outer.Inner"},
		{Name: "Wide", Path: "x.cs", Kind: "method", LineStart: 12, LineEnd: 25, Scope: "Outer.Inner"},
		{Name: "After", Path: "x.cs", Kind: "method", LineStart: 40, LineEnd: 45, Scope: "Outer"},
		{Name: "Other", Path: "y.cs", Kind: "class", LineStart: 1, LineEnd: 100},
	})

	tests := []struct {
		line   int
		want   string
		wantOK bool
	}{
		{5, "Outer", true},
		{11, "Inner", true},
		{15, "Run", true},
		{22, "Wide", true},
		{28, "Inner", true},
		{42, "After", true},
		{46, "Outer", true},
		{51, "", false},
	}

	for _, tt := range tests {
		got, ok := idx.FindEnclosing("x.cs", tt.line)
		if ok != tt.wantOK {
			t.Errorf("FindEnclosing(%d) ok = %v, want %v", tt.line, ok, tt.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if got.Name != tt.want {
			t.Errorf("FindEnclosing(%d) = %s, want %s", tt.line, got.Name, tt.want)
		}
		if !got.Contains(tt.line) {
			t.Errorf("FindEnclosing(%d) returned %s whose range excludes the line", tt.line, got.Name)
		}
	}
}

func TestFilter(t *testing.T) {
	tags, _ := parseSample(t)
	idx := BuildIndex(tags)

	tests := []struct {
		name string
		opts FilterOptions
		want []string
	}{
		{"all", FilterOptions{}, []string{"A", "m", "count", "helper"}},
		{"language case-insensitive", FilterOptions{Language: "python"}, []string{"A", "m", "count", "helper"}},
		{"kind", FilterOptions{Kind: "METHOD"}, []string{"m"}},
		{"scope substring", FilterOptions{Scope: "A"}, []string{"m", "count"}},
		{"path", FilterOptions{Path: "main.py"}, []string{"helper"}},
		{"no match", FilterOptions{Language: "Go"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, tag := range idx.Filter(tt.opts) {
				got = append(got, tag.Name)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Filter(%+v) = %v, want %v", tt.opts, got, tt.want)
			}
		})
	}
}

func TestIndexLookups(t *testing.T) {
	tags, _ := parseSample(t)
	idx := BuildIndex(tags)

	if got := idx.Files(); strings.Join(got, ",") != "main.py,src/shapes.py" {
		t.Errorf("Files() = %v", got)
	}
	if len(idx.ByScope("A")) != 2 {
		t.Errorf("ByScope(A) = %d tags, want 2", len(idx.ByScope("A")))
	}
	if len(idx.ByKind("Class")) != 1 {
		t.Errorf("ByKind(Class) = %d tags, want 1", len(idx.ByKind("Class")))
	}
	if len(idx.ByLanguage("PYTHON")) != 4 {
		t.Errorf("ByLanguage(PYTHON) = %d tags, want 4", len(idx.ByLanguage("PYTHON")))
	}
	if len(idx.ByName("helper")) != 1 {
		t.Errorf("ByName(helper) = %d tags, want 1", len(idx.ByName("helper")))
	}

	s := idx.Summary()
	if s.Files != 2 || s.Tags != 4 || s.ByKind["method"] != 1 {
		t.Errorf("Summary() = %+v", s)
	}
}

func TestCodeMapCache(t *testing.T) {
	tags, _ := parseSample(t)
	cache, err := NewCodeMapCache(BuildIndex(tags), 1)
	if err != nil {
		t.Fatalf("NewCodeMapCache failed: %v", err)
	}

	first, ok := cache.Get("src/shapes.py")
	if !ok {
		t.Fatal("Get(src/shapes.py) not found")
	}
	again, _ := cache.Get("src/shapes.py")
	if first != again {
		t.Error("second Get should return the cached CodeMap")
	}

	if _, ok := cache.Get("main.py"); !ok {
		t.Fatal("Get(main.py) not found")
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (size-bounded)", cache.Len())
	}

	if _, ok := cache.Get("nope.py"); ok {
		t.Error("unknown path should not be found")
	}
	if cache.Len() != 1 {
		t.Error("unknown paths should not be cached")
	}
}

func TestNewCodeMapCache_InvalidSize(t *testing.T) {
	if _, err := NewCodeMapCache(BuildIndex(nil), 0); err == nil {
		t.Error("size 0 should be rejected")
	}
}

func TestRunCtags_Missing(t *testing.T) {
	_, _, err := RunCtags(context.Background(), "definitely-not-a-ctags-binary", t.TempDir(), nil)
	if !cierrors.IsCode(err, cierrors.ToolUnavailable) {
		t.Errorf("err = %v, want TOOL_UNAVAILABLE", err)
	}
}
