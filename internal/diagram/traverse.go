package diagram

import (
	"sort"

	"codeintel/internal/relations"
)

// adjacency returns successor lists by entity index for the relationships
// keep accepts, and which entities have a self edge.
func (g *Graph) adjacency(keep func(relations.Kind) bool) ([][]int, []bool) {
	adj := make([][]int, len(g.entities))
	self := make([]bool, len(g.entities))
	for _, r := range g.rels {
		if keep != nil && !keep(r.Kind) {
			continue
		}
		from, to := g.byName[r.Source], g.byName[r.Target]
		if from == to {
			self[from] = true
		}
		adj[from] = append(adj[from], to)
	}
	return adj, self
}

// Cycles returns every strongly connected component with more than one
// entity or a self edge, over all relationship kinds. Names inside a cycle
// and the cycles themselves are sorted.
func (g *Graph) Cycles() [][]string {
	adj, self := g.adjacency(nil)
	n := len(g.entities)

	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var (
		stack  []int
		cycles [][]string
		next   int
	)

	type frame struct{ v, edge int }
	visit := func(v int) {
		index[v], low[v] = next, next
		next++
		stack = append(stack, v)
		onStack[v] = true
	}

	for s := 0; s < n; s++ {
		if index[s] >= 0 {
			continue
		}
		visit(s)
		calls := []frame{{v: s}}
		for len(calls) > 0 {
			f := &calls[len(calls)-1]
			if f.edge < len(adj[f.v]) {
				w := adj[f.v][f.edge]
				f.edge++
				if index[w] < 0 {
					visit(w)
					calls = append(calls, frame{v: w})
				} else if onStack[w] && index[w] < low[f.v] {
					low[f.v] = index[w]
				}
				continue
			}

			v := f.v
			calls = calls[:len(calls)-1]
			if len(calls) > 0 {
				if p := calls[len(calls)-1].v; low[v] < low[p] {
					low[p] = low[v]
				}
			}
			if low[v] != index[v] {
				continue
			}
			var comp []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, g.entities[w].Name)
				if w == v {
					break
				}
			}
			if len(comp) > 1 || self[v] {
				sort.Strings(comp)
				cycles = append(cycles, comp)
			}
		}
	}

	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

// Ancestors returns every entity reachable from name over inheritance and
// implementation edges, nearest first. name itself is never included.
func (g *Graph) Ancestors(name string) []string {
	start, ok := g.byName[name]
	if !ok {
		return nil
	}
	adj, _ := g.adjacency(relations.Kind.Structural)

	visited := make([]bool, len(g.entities))
	visited[start] = true
	queue := []int{start}
	var out []string
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, w := range adj[v] {
			if visited[w] {
				continue
			}
			visited[w] = true
			out = append(out, g.entities[w].Name)
			queue = append(queue, w)
		}
	}
	return out
}

// Descendants returns every entity that reaches name over inheritance and
// implementation edges, nearest first.
func (g *Graph) Descendants(name string) []string {
	start, ok := g.byName[name]
	if !ok {
		return nil
	}
	adj, _ := g.adjacency(relations.Kind.Structural)
	reverse := make([][]int, len(adj))
	for from, tos := range adj {
		for _, to := range tos {
			reverse[to] = append(reverse[to], from)
		}
	}

	visited := make([]bool, len(g.entities))
	visited[start] = true
	queue := []int{start}
	var out []string
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, w := range reverse[v] {
			if visited[w] {
				continue
			}
			visited[w] = true
			out = append(out, g.entities[w].Name)
			queue = append(queue, w)
		}
	}
	return out
}
