package depgraph

import (
	"sort"

	"gopkg.in/gyuho/goraph.v2"
)

// SortResult is the output of Sort: a leaves-first URL order plus every
// cycle detected along the way, per spec §4.3.
type SortResult struct {
	Sorted []string
	Cycles [][]string
}

// Sort topologically orders a url -> [url] dependency map, leaves first,
// without ever failing on a cycle. It first tries goraph's
// TopologicalSort, which covers the common case (a genuine DAG, as almost
// every real FHIR package is) in one pass; FHIR profile graphs do
// legitimately contain cycles (e.g. mutually-referencing extensions), so on
// any cycle it falls back to the hand-rolled cycle-tolerant DFS the
// compiler's resilience guarantee (degrade-to-Any rather than fail) depends
// on.
func Sort(deps map[string][]string) SortResult {
	if sorted, ok := tryGoraph(deps); ok {
		return SortResult{Sorted: sorted}
	}
	return dfsPostOrder(deps)
}

func tryGoraph(deps map[string][]string) ([]string, bool) {
	g := goraph.NewGraph()
	for url := range deps {
		g.AddNode(goraph.NewNode(url))
	}
	for url, ds := range deps {
		for _, d := range ds {
			if _, exists := deps[d]; !exists {
				continue // dependency outside the registered set; nothing to order it against
			}
			if err := g.AddEdge(goraph.NewNode(d).ID(), goraph.NewNode(url).ID(), 1); err != nil {
				return nil, false
			}
		}
	}

	ids, isDAG := goraph.TopologicalSort(g)
	if !isDAG {
		return nil, false
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out, true
}

// dfsPostOrder implements the cycle-tolerant algorithm described in spec
// §4.3 directly: a depth-first post-order traversal with a visiting set to
// detect back edges. A back edge records the current DFS path as a cycle
// but does not abort traversal; the node already on the path is treated as
// already in progress and is not re-entered.
func dfsPostOrder(deps map[string][]string) SortResult {
	var (
		visited  = make(map[string]bool)
		visiting = make(map[string]bool)
		order    []string
		cycles   [][]string
		path     []string
	)

	urls := make([]string, 0, len(deps))
	for url := range deps {
		urls = append(urls, url)
	}
	sort.Strings(urls) // deterministic traversal start order

	var visit func(url string)
	visit = func(url string) {
		if visited[url] {
			return
		}
		if visiting[url] {
			cycles = append(cycles, cyclePath(path, url))
			return
		}
		visiting[url] = true
		path = append(path, url)

		children := append([]string{}, deps[url]...)
		sort.Strings(children)
		for _, dep := range children {
			visit(dep)
		}

		path = path[:len(path)-1]
		visiting[url] = false
		visited[url] = true
		order = append(order, url)
	}

	for _, url := range urls {
		visit(url)
	}

	return SortResult{Sorted: order, Cycles: cycles}
}

// cyclePath extracts the portion of path from its first occurrence of back
// to the end, plus back itself, describing the cycle that was just closed.
func cyclePath(path []string, back string) []string {
	for i, u := range path {
		if u == back {
			cycle := append([]string{}, path[i:]...)
			return append(cycle, back)
		}
	}
	return []string{back}
}

// Comparator returns a total-order comparator over URLs built from a
// SortResult: URLs in Sorted order before index; a URL present in Sorted
// always precedes one that isn't; otherwise lexicographic, per §4.3.
func (r SortResult) Comparator() func(a, b string) bool {
	index := make(map[string]int, len(r.Sorted))
	for i, url := range r.Sorted {
		index[url] = i
	}
	return func(a, b string) bool {
		ia, aok := index[a]
		ib, bok := index[b]
		switch {
		case aok && bok:
			return ia < ib
		case aok && !bok:
			return true
		case !aok && bok:
			return false
		default:
			return a < b
		}
	}
}
