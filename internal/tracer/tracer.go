// Package tracer records weighted call graphs of running code.
//
// Only one Tracer can be active in a process. Instrumented code reports
// calls through Enter, which forwards to the active Tracer. The traced code
// must run on a single goroutine: calls from concurrent goroutines share one
// shadow stack and produce wrong caller attribution without any error.
package tracer

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"codeintel/internal/discover"
	cierrors "codeintel/internal/errors"
	"codeintel/internal/slogutil"
)

// State is the lifecycle state of a Tracer.
type State int

const (
	Idle State = iota
	Tracing
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Tracing:
		return "tracing"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Resolver maps a frame to a canonical function ID.
type Resolver interface {
	Resolve(f Frame) (string, bool)
}

// Options configures a Tracer.
type Options struct {
	// Project limits tracing to frames whose repo-relative file matches.
	// Frames without a file carry nothing to match and are always traced.
	Project *discover.Filter
	// Root makes absolute runtime file paths repo-relative.
	Root string
	// Resolver, when set, replaces frame IDs it recognizes.
	Resolver Resolver
	Logger   *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

var active atomic.Pointer[Tracer]

// Active returns the tracer currently registered with the process hook.
func Active() *Tracer {
	return active.Load()
}

type stackEntry struct {
	id      string
	tracked bool
}

// Tracer accumulates call edges between Start and Stop.
type Tracer struct {
	opts    Options
	logger  *slog.Logger
	session string

	mu       sync.Mutex
	state    State
	started  time.Time
	calls    map[Edge]int
	executed map[string]bool
	stack    []stackEntry
}

// New returns an idle tracer.
func New(opts Options) *Tracer {
	if opts.Logger == nil {
		opts.Logger = slogutil.NewDiscardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracer{opts: opts, logger: opts.Logger}
}

// State returns the current state.
func (t *Tracer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SessionID returns the ID assigned by Start, "" before that.
func (t *Tracer) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// Start registers t as the process-wide tracer. It fails with TRACER_ACTIVE
// when another tracer is registered and TRACER_STATE unless t is idle.
func (t *Tracer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Idle {
		return cierrors.New(cierrors.TracerState,
			fmt.Sprintf("cannot start a tracer that is %s", t.state), nil)
	}
	if !active.CompareAndSwap(nil, t) {
		other := active.Load()
		err := cierrors.New(cierrors.TracerActive, "another tracing session is active", nil)
		if other != nil {
			err = err.WithDetails(map[string]string{"session": other.session})
		}
		return err
	}

	t.state = Tracing
	t.session = uuid.NewString()
	t.started = t.opts.Now()
	t.calls = make(map[Edge]int)
	t.executed = make(map[string]bool)
	t.stack = t.stack[:0]
	t.logger.Debug("Tracing started", "session", t.session)
	return nil
}

// Stop deregisters t and freezes what it recorded into a Trace labelled
// label.
func (t *Tracer) Stop(label string) (*Trace, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Tracing {
		return nil, cierrors.New(cierrors.TracerState,
			fmt.Sprintf("cannot stop a tracer that is %s", t.state), nil)
	}
	active.CompareAndSwap(t, nil)
	t.state = Stopped

	tr := &Trace{
		Label:     label,
		SessionID: t.session,
		Timestamp: t.opts.Now(),
		CallGraph: t.calls,
		Executed:  t.executed,
	}
	t.calls, t.executed, t.stack = nil, nil, nil
	t.logger.Debug("Tracing stopped", "session", tr.SessionID,
		"edges", len(tr.CallGraph), "functions", len(tr.Executed),
		"duration", tr.Timestamp.Sub(t.started).String())
	return tr, nil
}

// Run traces fn from a fresh tracer and returns its Trace.
func Run(opts Options, label string, fn func()) (*Trace, error) {
	t := New(opts)
	if err := t.Start(); err != nil {
		return nil, err
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.logger.Warn("Traced function panicked", "panic", fmt.Sprint(r))
			}
		}()
		fn()
	}()
	return t.Stop(label)
}

// Call records entry into f. The caller is the nearest tracked frame on the
// shadow stack; a tracked call without one marks f executed without an
// edge. Frames outside the project are pushed untracked so Return stays
// balanced.
func (t *Tracer) Call(f Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Tracing {
		return
	}

	if !t.inProject(f) {
		t.stack = append(t.stack, stackEntry{})
		return
	}
	id := t.idOf(f)
	t.executed[id] = true
	for i := len(t.stack) - 1; i >= 0; i-- {
		if t.stack[i].tracked {
			t.calls[Edge{Caller: t.stack[i].id, Callee: id}]++
			break
		}
	}
	t.stack = append(t.stack, stackEntry{id: id, tracked: true})
}

// Return records exit from the most recent call.
func (t *Tracer) Return() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Tracing || len(t.stack) == 0 {
		return
	}
	t.stack = t.stack[:len(t.stack)-1]
}

// Depth returns the shadow stack depth.
func (t *Tracer) Depth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.stack)
}

func (t *Tracer) inProject(f Frame) bool {
	if f.File == "" {
		return true
	}
	return t.opts.Project.Match(f.File)
}

func (t *Tracer) idOf(f Frame) string {
	if t.opts.Resolver != nil {
		if id, ok := t.opts.Resolver.Resolve(f); ok {
			return id
		}
	}
	return f.ID()
}
