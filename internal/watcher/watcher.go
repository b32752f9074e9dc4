// Package watcher reports batched source file changes under a directory.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"codeintel/internal/discover"
	"codeintel/internal/slogutil"
)

// EventType represents the type of file system event
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

// String returns a string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event represents a file system event
type Event struct {
	Type EventType
	// Path is relative to the watched root, with forward slashes.
	Path      string
	Timestamp time.Time
}

// ChangeHandler is called with each debounced batch of changes.
type ChangeHandler func(events []Event)

// Config contains watcher configuration
type Config struct {
	Debounce time.Duration
	// Extensions limits events to these lowercased extensions; empty means all.
	Extensions map[string]bool
	// Filter applies include/exclude globs to the relative path.
	Filter *discover.Filter
	Logger *slog.Logger
}

// DefaultDebounce is used when Config.Debounce is zero.
const DefaultDebounce = 300 * time.Millisecond

// Watcher watches a source tree for changes.
type Watcher struct {
	root    string
	config  Config
	logger  *slog.Logger
	handler ChangeHandler
	fs      *fsnotify.Watcher
	batch   *BatchDebouncer
}

// New creates a watcher for root. Call Run to start delivering events.
func New(root string, config Config, handler ChangeHandler) (*Watcher, error) {
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if config.Logger == nil {
		config.Logger = slogutil.NewDiscardLogger()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:    abs,
		config:  config,
		logger:  config.Logger,
		handler: handler,
		fs:      fsw,
	}
	w.batch = NewBatchDebouncer(config.Debounce, w.emit)
	return w, nil
}

// Run watches until ctx is done. Pending events are flushed before it
// returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fs.Close() }()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	w.logger.Info("Watching for changes", "root", w.root, "debounce", w.config.Debounce.String())

	for {
		select {
		case <-ctx.Done():
			w.batch.Flush()
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				w.batch.Flush()
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				w.batch.Flush()
				return nil
			}
			w.logger.Warn("File watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != w.root && discover.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(p); err != nil {
			if p == w.root {
				return err
			}
			w.logger.Debug("Cannot watch directory", "path", p, "error", err.Error())
		}
		return nil
	})
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !discover.SkipDir(filepath.Base(ev.Name)) {
				if err := w.addRecursive(ev.Name); err != nil {
					w.logger.Debug("Cannot watch new directory", "path", ev.Name, "error", err.Error())
				}
			}
			return
		}
	}

	rel, ok := w.relevant(ev.Name)
	if !ok {
		return
	}
	w.batch.Add(Event{Type: convertOp(ev.Op), Path: rel, Timestamp: time.Now()})
}

// relevant returns the slash-separated relative path of name when it is a
// source file the watcher reports on.
func (w *Watcher) relevant(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return "", false
		}
	}
	if dir := filepath.Dir(rel); dir != "." {
		for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
			if discover.SkipDir(part) {
				return "", false
			}
		}
	}
	if len(w.config.Extensions) > 0 && !w.config.Extensions[strings.ToLower(filepath.Ext(rel))] {
		return "", false
	}
	if !w.config.Filter.Match(rel) {
		return "", false
	}
	return rel, true
}

func (w *Watcher) emit(events []Event) {
	w.logger.Debug("Source changes detected", "eventCount", len(events))
	if w.handler != nil {
		w.handler(events)
	}
}

func convertOp(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventCreate
	case op.Has(fsnotify.Remove):
		return EventDelete
	case op.Has(fsnotify.Rename):
		return EventRename
	default:
		return EventModify
	}
}

// ErrNoHandler is returned by Watch when handler is nil.
var ErrNoHandler = errors.New("watcher: nil change handler")

// Watch is New followed by Run.
func Watch(ctx context.Context, root string, config Config, handler ChangeHandler) error {
	if handler == nil {
		return ErrNoHandler
	}
	w, err := New(root, config, handler)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
