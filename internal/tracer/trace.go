package tracer

import (
	"sort"
	"time"
)

// Edge is one caller to callee transition.
type Edge struct {
	Caller string `json:"caller"`
	Callee string `json:"callee"`
}

func (e Edge) String() string { return e.Caller + " -> " + e.Callee }

// Trace is the frozen result of one tracing session. Traces are never
// mutated after Stop returns them.
type Trace struct {
	ID        string          `json:"id,omitempty"`
	Label     string          `json:"label"`
	SessionID string          `json:"session_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	CallGraph map[Edge]int    `json:"-"`
	Executed  map[string]bool `json:"-"`
}

// ExecutedList returns the executed function IDs, sorted.
func (tr *Trace) ExecutedList() []string {
	out := make([]string, 0, len(tr.Executed))
	for id := range tr.Executed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Edges returns the call graph edges sorted by caller then callee.
func (tr *Trace) Edges() []Edge {
	out := make([]Edge, 0, len(tr.CallGraph))
	for e := range tr.CallGraph {
		out = append(out, e)
	}
	SortEdges(out)
	return out
}

// SortEdges orders edges by caller then callee.
func SortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Caller != edges[j].Caller {
			return edges[i].Caller < edges[j].Caller
		}
		return edges[i].Callee < edges[j].Callee
	})
}

// Summary is the per-trace aggregate used for trends.
type Summary struct {
	TotalCalls        int   `json:"total_calls"`
	UniquePaths       int   `json:"unique_paths"`
	FunctionsExecuted int   `json:"functions_executed"`
	HottestPath       *Edge `json:"hottest_path"`
	HottestCount      int   `json:"hottest_count"`
}

// Summary aggregates the trace. The hottest path breaks count ties by
// edge order.
func (tr *Trace) Summary() Summary {
	s := Summary{
		UniquePaths:       len(tr.CallGraph),
		FunctionsExecuted: len(tr.Executed),
	}
	for _, e := range tr.Edges() {
		n := tr.CallGraph[e]
		s.TotalCalls += n
		if s.HottestPath == nil || n > s.HottestCount {
			edge := e
			s.HottestPath = &edge
			s.HottestCount = n
		}
	}
	return s
}

// Heat classifies an edge by call count.
type Heat string

const (
	Hot  Heat = "hot"
	Warm Heat = "warm"
	Cold Heat = "cold"
)

// Classification thresholds: more than HotThreshold calls is hot, more
// than WarmThreshold is warm.
const (
	HotThreshold  = 100
	WarmThreshold = 10
)

// Classify returns the heat of an edge called count times.
func Classify(count int) Heat {
	switch {
	case count > HotThreshold:
		return Hot
	case count > WarmThreshold:
		return Warm
	default:
		return Cold
	}
}

// PathStat is one classified call edge.
type PathStat struct {
	Edge
	Count int  `json:"count"`
	Heat  Heat `json:"heat"`
}

// HotPaths classifies every edge of tr, most called first.
func HotPaths(tr *Trace) []PathStat {
	out := make([]PathStat, 0, len(tr.CallGraph))
	for _, e := range tr.Edges() {
		n := tr.CallGraph[e]
		out = append(out, PathStat{Edge: e, Count: n, Heat: Classify(n)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// HeatCounts counts edges per heat.
func HeatCounts(paths []PathStat) map[Heat]int {
	out := map[Heat]int{Hot: 0, Warm: 0, Cold: 0}
	for _, p := range paths {
		out[p.Heat]++
	}
	return out
}
