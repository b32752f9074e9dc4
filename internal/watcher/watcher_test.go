package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"codeintel/internal/discover"
)

func TestEventTypeString(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      string
	}{
		{EventCreate, "create"},
		{EventModify, "modify"},
		{EventDelete, "delete"},
		{EventRename, "rename"},
		{EventType(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.eventType.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBatchDebouncerAdd(t *testing.T) {
	var received []Event
	var mu sync.Mutex

	emit := func(events []Event) {
		mu.Lock()
		received = events
		mu.Unlock()
	}

	b := NewBatchDebouncer(50*time.Millisecond, emit)
	b.Add(Event{Type: EventCreate, Path: "file1.go"})
	b.Add(Event{Type: EventModify, Path: "file2.go"})
	b.Add(Event{Type: EventDelete, Path: "file3.go"})
	b.Add(Event{Type: EventModify, Path: "file1.go"})

	if b.EventCount() != 3 {
		t.Errorf("EventCount() = %d, want 3", b.EventCount())
	}

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 3 {
		t.Fatalf("Should have received 3 events, got %d", len(received))
	}
	if received[0].Path != "file1.go" || received[0].Type != EventModify {
		t.Errorf("duplicate path should keep its latest event, got %+v", received[0])
	}
}

func TestBatchDebouncerCancel(t *testing.T) {
	var called bool
	var mu sync.Mutex

	b := NewBatchDebouncer(50*time.Millisecond, func(events []Event) {
		mu.Lock()
		called = true
		mu.Unlock()
	})
	b.Add(Event{Type: EventCreate, Path: "file.go"})
	b.Cancel()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	if called {
		t.Error("Emit should not be called after cancel")
	}
	mu.Unlock()

	if b.EventCount() != 0 {
		t.Errorf("EventCount() = %d, want 0 after cancel", b.EventCount())
	}
}

func TestBatchDebouncerFlush(t *testing.T) {
	var received []Event
	b := NewBatchDebouncer(time.Hour, func(events []Event) { received = events })
	b.Add(Event{Type: EventCreate, Path: "a.py"})
	b.Flush()
	if len(received) != 1 {
		t.Errorf("Flush should emit immediately, got %v", received)
	}

	received = nil
	b.Flush()
	if received != nil {
		t.Error("Flush with nothing pending should not emit")
	}
}

func TestRelevant(t *testing.T) {
	root := t.TempDir()
	filter, err := discover.NewFilter(nil, []string{"gen/**"})
	if err != nil {
		t.Fatal(err)
	}
	w, err := New(root, Config{Extensions: map[string]bool{".py": true}, Filter: filter}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.fs.Close()

	tests := []struct {
		path string
		want bool
	}{
		{"app/models.py", true},
		{"app/README.md", false},
		{".git/index", false},
		{"app/.cache/x.py", false},
		{"node_modules/pkg/x.py", false},
		{"gen/pb.py", false},
		{"Models.PY", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, got := w.relevant(filepath.Join(w.root, filepath.FromSlash(tt.path)))
			if got != tt.want {
				t.Errorf("relevant(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
	if _, ok := w.relevant(filepath.Join(filepath.Dir(w.root), "outside.py")); ok {
		t.Error("paths outside the root are not relevant")
	}
}

func TestWatcherDeliversChanges(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "pkg"), 0755); err != nil {
		t.Fatal(err)
	}

	batches := make(chan []Event, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, root, Config{Debounce: 50 * time.Millisecond, Extensions: map[string]bool{".go": true}},
			func(events []Event) { batches <- events })
	}()

	// give the watcher time to register directories
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(root, "pkg", "a.go"), []byte("package pkg\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case events := <-batches:
		if len(events) != 1 || events[0].Path != "pkg/a.go" {
			t.Errorf("events = %+v, want one for pkg/a.go", events)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change batch delivered")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

func TestWatchNilHandler(t *testing.T) {
	if err := Watch(context.Background(), t.TempDir(), Config{}, nil); err != ErrNoHandler {
		t.Errorf("Watch(nil) = %v, want ErrNoHandler", err)
	}
}
