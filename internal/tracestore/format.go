package tracestore

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"codeintel/internal/tracer"
)

// FormatVersion is written into every trace file.
const FormatVersion = 1

// fileTrace is the on-disk form. call_graph keys are JSON arrays
// ["caller","callee"] so edges survive a round trip through a JSON object.
type fileTrace struct {
	Version         int             `json:"version"`
	Label           string          `json:"label"`
	ID              string          `json:"id,omitempty"`
	SessionID       string          `json:"session_id,omitempty"`
	Timestamp       string          `json:"timestamp"`
	CallGraph       map[string]int  `json:"call_graph"`
	CalledFunctions []string        `json:"called_functions"`
	Summary         *tracer.Summary `json:"summary,omitempty"`
	Digest          string          `json:"digest,omitempty"`
}

func edgeKey(e tracer.Edge) string {
	b, _ := json.Marshal([2]string{e.Caller, e.Callee})
	return string(b)
}

func parseEdgeKey(key string) (tracer.Edge, error) {
	var pair [2]string
	if err := json.Unmarshal([]byte(key), &pair); err != nil {
		return tracer.Edge{}, fmt.Errorf("invalid call_graph key %s: %w", strconv.Quote(key), err)
	}
	return tracer.Edge{Caller: pair[0], Callee: pair[1]}, nil
}

// Encode serializes a trace as indented JSON.
func Encode(tr *tracer.Trace) ([]byte, error) {
	summary := tr.Summary()
	ft := fileTrace{
		Version:         FormatVersion,
		Label:           tr.Label,
		ID:              tr.ID,
		SessionID:       tr.SessionID,
		Timestamp:       tr.Timestamp.UTC().Format(time.RFC3339Nano),
		CallGraph:       make(map[string]int, len(tr.CallGraph)),
		CalledFunctions: tr.ExecutedList(),
		Summary:         &summary,
		Digest:          Digest(tr),
	}
	for e, n := range tr.CallGraph {
		ft.CallGraph[edgeKey(e)] = n
	}
	return json.MarshalIndent(ft, "", "  ")
}

// Decode parses trace data, transparently decompressing zstd frames.
func Decode(data []byte, dec *zstd.Decoder) (*tracer.Trace, error) {
	if isZstd(data) {
		if dec == nil {
			return nil, fmt.Errorf("compressed trace needs a zstd decoder")
		}
		raw, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompressing trace: %w", err)
		}
		data = raw
	}

	var ft fileTrace
	if err := json.Unmarshal(data, &ft); err != nil {
		return nil, fmt.Errorf("parsing trace: %w", err)
	}
	if ft.Version > FormatVersion {
		return nil, fmt.Errorf("trace format version %d is newer than supported version %d", ft.Version, FormatVersion)
	}
	ts, err := time.Parse(time.RFC3339Nano, ft.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("parsing trace timestamp: %w", err)
	}

	tr := &tracer.Trace{
		ID:        ft.ID,
		Label:     ft.Label,
		SessionID: ft.SessionID,
		Timestamp: ts,
		CallGraph: make(map[tracer.Edge]int, len(ft.CallGraph)),
		Executed:  make(map[string]bool, len(ft.CalledFunctions)),
	}
	for key, n := range ft.CallGraph {
		e, err := parseEdgeKey(key)
		if err != nil {
			return nil, err
		}
		tr.CallGraph[e] = n
	}
	for _, fn := range ft.CalledFunctions {
		tr.Executed[fn] = true
	}
	return tr, nil
}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

func isZstd(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

// Digest is the hex blake2b-256 of the canonical call graph and executed
// set. Traces with equal digests recorded the same behaviour.
func Digest(tr *tracer.Trace) string {
	h, _ := blake2b.New256(nil)
	for _, e := range tr.Edges() {
		fmt.Fprintf(h, "e\x00%s\x00%s\x00%d\n", e.Caller, e.Callee, tr.CallGraph[e])
	}
	for _, fn := range tr.ExecutedList() {
		fmt.Fprintf(h, "f\x00%s\n", fn)
	}
	return hex.EncodeToString(h.Sum(nil))
}
