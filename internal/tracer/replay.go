package tracer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"codeintel/internal/paths"
)

// Event is one line of a recorded call/return stream.
type Event struct {
	Event    string `json:"event"` // "call" or "return"
	Function string `json:"function,omitempty"`
	File     string `json:"file,omitempty"`
	Module   string `json:"module,omitempty"`
	Line     int    `json:"line,omitempty"`
}

// ReplayStats counts what Replay did with its input.
type ReplayStats struct {
	Lines     int `json:"lines"`
	Calls     int `json:"calls"`
	Returns   int `json:"returns"`
	Malformed int `json:"malformed"`
}

const replayCheckEvery = 4096

// Replay feeds a JSON-lines event stream into t, which must be tracing.
// Malformed lines are logged and skipped. Replay returns on read errors
// and cancellation.
func (t *Tracer) Replay(ctx context.Context, r io.Reader) (ReplayStats, error) {
	var stats ReplayStats
	if st := t.State(); st != Tracing {
		return stats, fmt.Errorf("replay needs a tracing session, tracer is %s", st)
	}

	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, readErr := br.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			stats.Lines++
			if stats.Lines%replayCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return stats, err
				}
			}
			t.replayLine(line, &stats)
		}
		if readErr == io.EOF {
			return stats, nil
		}
		if readErr != nil {
			return stats, fmt.Errorf("reading events: %w", readErr)
		}
	}
}

func (t *Tracer) replayLine(line []byte, stats *ReplayStats) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		stats.Malformed++
		t.logger.Warn("Skipping malformed trace event", "line", stats.Lines, "error", err.Error())
		return
	}
	switch ev.Event {
	case "call":
		if ev.Function == "" {
			stats.Malformed++
			t.logger.Warn("Skipping call event without function", "line", stats.Lines)
			return
		}
		stats.Calls++
		t.Call(Frame{
			Function: ev.Function,
			File:     paths.NormalizePath(ev.File),
			Module:   ev.Module,
			Line:     ev.Line,
		})
	case "return":
		stats.Returns++
		t.Return()
	default:
		stats.Malformed++
		t.logger.Warn("Skipping unknown trace event", "line", stats.Lines, "event", ev.Event)
	}
}

// WriteEvents encodes events in the format Replay reads.
func WriteEvents(w io.Writer, events []Event) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return bw.Flush()
}
