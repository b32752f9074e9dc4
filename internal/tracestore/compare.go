package tracestore

import (
	"sort"

	"codeintel/internal/tracer"
)

// FrequencyChange is an edge present in both traces with different counts.
type FrequencyChange struct {
	Path         tracer.Edge `json:"path"`
	CountA       int         `json:"count_a"`
	CountB       int         `json:"count_b"`
	Delta        int         `json:"delta"`
	DeltaPercent float64     `json:"delta_percent"`
}

// Comparison is the difference between trace A and trace B.
type Comparison struct {
	A                string            `json:"a"`
	B                string            `json:"b"`
	NewPaths         []tracer.Edge     `json:"new_paths"`
	RemovedPaths     []tracer.Edge     `json:"removed_paths"`
	FrequencyChanges []FrequencyChange `json:"frequency_changes"`
}

// Unchanged reports whether the two traces have identical call graphs.
func (c *Comparison) Unchanged() bool {
	return len(c.NewPaths) == 0 && len(c.RemovedPaths) == 0 && len(c.FrequencyChanges) == 0
}

// CompareTraces diffs two traces. It reads both and modifies neither.
// Every list is sorted by caller then callee.
func CompareTraces(a, b *tracer.Trace) *Comparison {
	c := &Comparison{
		A:                name(a),
		B:                name(b),
		NewPaths:         []tracer.Edge{},
		RemovedPaths:     []tracer.Edge{},
		FrequencyChanges: []FrequencyChange{},
	}
	for e, countB := range b.CallGraph {
		countA, ok := a.CallGraph[e]
		if !ok {
			c.NewPaths = append(c.NewPaths, e)
			continue
		}
		if countA != countB {
			delta := countB - countA
			pct := 0.0
			if countA != 0 {
				pct = float64(delta) / float64(countA) * 100
			}
			c.FrequencyChanges = append(c.FrequencyChanges, FrequencyChange{
				Path:         e,
				CountA:       countA,
				CountB:       countB,
				Delta:        delta,
				DeltaPercent: pct,
			})
		}
	}
	for e := range a.CallGraph {
		if _, ok := b.CallGraph[e]; !ok {
			c.RemovedPaths = append(c.RemovedPaths, e)
		}
	}

	tracer.SortEdges(c.NewPaths)
	tracer.SortEdges(c.RemovedPaths)
	sort.Slice(c.FrequencyChanges, func(i, j int) bool {
		pi, pj := c.FrequencyChanges[i].Path, c.FrequencyChanges[j].Path
		if pi.Caller != pj.Caller {
			return pi.Caller < pj.Caller
		}
		return pi.Callee < pj.Callee
	})
	return c
}

func name(tr *tracer.Trace) string {
	if tr.ID != "" {
		return tr.ID
	}
	return tr.Label
}
