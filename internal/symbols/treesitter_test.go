//go:build cgo

package symbols

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"codeintel/internal/tags"
)

func findTag(found []tags.Tag, name, kind string) (tags.Tag, bool) {
	for _, t := range found {
		if t.Name == name && t.Kind == kind {
			return t, true
		}
	}
	return tags.Tag{}, false
}

func TestExtractSource_Go(t *testing.T) {
	source := []byte(`package main

type Handler struct {
	db *Database
}

type Store interface {
	Find(id string) error
}

func NewHandler(db *Database) *Handler {
	return &Handler{db: db}
}

func (h *Handler) Get(id string) (*Item, error) {
	return h.db.Find(id)
}
`)

	found, err := NewExtractor(nil).ExtractSource(context.Background(), "svc/handler.go", source, LangGo)
	if err != nil {
		t.Fatalf("ExtractSource failed: %v", err)
	}

	tests := []struct {
		name, kind, scope string
		line              int
	}{
		{"Handler", "struct", "", 3},
		{"Store", "interface", "", 7},
		{"NewHandler", "function", "", 11},
		{"Get", "method", "Handler", 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, ok := findTag(found, tt.name, tt.kind)
			if !ok {
				t.Fatalf("missing %s %s in %+v", tt.kind, tt.name, found)
			}
			if tag.Scope != tt.scope {
				t.Errorf("Scope = %q, want %q", tag.Scope, tt.scope)
			}
			if tag.LineStart != tt.line {
				t.Errorf("LineStart = %d, want %d", tag.LineStart, tt.line)
			}
			if tag.Language != "Go" || tag.Path != "svc/handler.go" {
				t.Errorf("unexpected tag metadata: %+v", tag)
			}
		})
	}

	get, _ := findTag(found, "Get", "method")
	if get.ID() != "svc::Handler.Get" {
		t.Errorf("ID() = %q, want svc::Handler.Get", get.ID())
	}
}

func TestExtractSource_Python(t *testing.T) {
	source := []byte(`class Shape:
    def area(self):
        def inner():
            return 0
        return inner()

    @property
    def name(self):
        return "shape"


def make():
    return Shape()
`)

	found, err := NewExtractor(nil).ExtractSource(context.Background(), "shapes.py", source, LangPython)
	if err != nil {
		t.Fatalf("ExtractSource failed: %v", err)
	}

	if _, ok := findTag(found, "Shape", "class"); !ok {
		t.Error("missing class Shape")
	}
	area, ok := findTag(found, "area", "method")
	if !ok || area.Scope != "Shape" || area.LineEnd != 5 {
		t.Errorf("area = %+v, want method scoped to Shape ending at 5", area)
	}
	if name, ok := findTag(found, "name", "method"); !ok || name.Scope != "Shape" {
		t.Errorf("decorated method not scoped: %+v", name)
	}
	if _, ok := findTag(found, "make", "function"); !ok {
		t.Error("missing function make")
	}
	for _, tag := range found {
		if tag.Name == "inner" {
			t.Error("nested functions should not be indexed")
		}
	}
}

func TestExtractSource_CSharp(t *testing.T) {
	source := []byte(`namespace App {
    public class Service : BaseService, IService {
        private Repo _repo;
        public Service(Repo repo) { _repo = repo; }
        public void Run() { }
    }
}
`)

	found, err := NewExtractor(nil).ExtractSource(context.Background(), "Service.cs", source, LangCSharp)
	if err != nil {
		t.Fatalf("ExtractSource failed: %v", err)
	}
	if _, ok := findTag(found, "Service", "class"); !ok {
		t.Errorf("missing class Service in %+v", found)
	}
	if run, ok := findTag(found, "Run", "method"); !ok || run.Scope != "Service" {
		t.Errorf("Run = %+v, want method scoped to Service", run)
	}
	if ctor, ok := findTag(found, "Service", "constructor"); !ok || ctor.Scope != "Service" {
		t.Errorf("constructor = %+v, want scoped to Service", ctor)
	}
}

func TestExtractDirectory(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"a/one.py":  "def one():\n    pass\n",
		"b/two.ts":  "class Two {\n  run(): void {}\n}\n",
		"README.md": "# nothing\n",
	}
	for rel, body := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}

	found, err := NewExtractor(nil).ExtractDirectory(context.Background(), root,
		[]string{"a/one.py", "b/two.ts", "README.md", "missing.py"})
	if err != nil {
		t.Fatalf("ExtractDirectory failed: %v", err)
	}

	if _, ok := findTag(found, "one", "function"); !ok {
		t.Error("missing function one")
	}
	if run, ok := findTag(found, "run", "method"); !ok || run.Scope != "Two" {
		t.Errorf("run = %+v, want method scoped to Two", run)
	}
}
