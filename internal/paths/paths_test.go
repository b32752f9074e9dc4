package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, DataDirName), 0755); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "src", "pkg", "deep")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot failed: %v", err)
	}
	want, _ := filepath.Abs(root)
	if got != want {
		t.Errorf("FindProjectRoot = %q, want %q", got, want)
	}
}

func TestFindProjectRoot_GitMarker(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "cmd")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FindProjectRoot(sub)
	if err != nil {
		t.Fatalf("FindProjectRoot failed: %v", err)
	}
	want, _ := filepath.Abs(root)
	if got != want {
		t.Errorf("FindProjectRoot = %q, want %q", got, want)
	}
}

func TestDataLayout(t *testing.T) {
	root := filepath.FromSlash("/work/project")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"data dir", DataDir(root), filepath.Join(root, ".codeintel")},
		{"traces dir", TracesDir(root), filepath.Join(root, ".codeintel", "traces")},
		{"config", ConfigPath(root), filepath.Join(root, ".codeintel", "config.json")},
		{"tags", TagsPath(root), filepath.Join(root, ".codeintel", "tags.jsonl")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestCanonicalizePath(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "src", "main.py")
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file, []byte("x = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := CanonicalizePath(file, root)
	if err != nil {
		t.Fatalf("CanonicalizePath failed: %v", err)
	}
	if got != "src/main.py" {
		t.Errorf("CanonicalizePath = %q, want src/main.py", got)
	}

	if !IsWithinRepo(file, root) {
		t.Error("file inside root should be within repo")
	}
	if IsWithinRepo(filepath.Dir(root), root) {
		t.Error("parent of root should not be within repo")
	}
}

func TestModuleOf(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"main.py", "."},
		{"./main.py", "."},
		{"src/app/models.py", "src/app"},
		{"src\\app\\models.py", "src/app"},
		{"lib/x.go", "lib"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := ModuleOf(tt.path); got != tt.want {
				t.Errorf("ModuleOf(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestFileStem(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"src/service.py", "service"},
		{"Program.cs", "Program"},
		{"Makefile", "Makefile"},
		{"dir/.env", ".env"},
		{"a/b/archive.tar.gz", "archive.tar"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := FileStem(tt.path); got != tt.want {
				t.Errorf("FileStem(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestJoinRepoPath(t *testing.T) {
	got := JoinRepoPath("/repo", "src/app/main.go")
	want := filepath.Join("/repo", "src", "app", "main.go")
	if got != want {
		t.Errorf("JoinRepoPath = %q, want %q", got, want)
	}
}
