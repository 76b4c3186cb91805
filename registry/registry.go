// Package registry implements the Resource Registry: it accepts decoded
// ResourceFile descriptors, deduplicates overlapping definitions of the
// same canonical URL, and exposes them for the rest of the compiler in a
// stable order.
package registry

import (
	"sort"
	"sync"

	"github.com/gofhir/fhirschema/resourcefile"
)

// Registry deduplicates ResourceFiles by canonical URL using the cascade
// described in spec §4.1: prefer active status, then non-experimental, then
// the lexicographically greatest date, then a stable tie-break by file
// path. Registration order does not matter; the cascade is reapplied
// whenever a URL collides.
type Registry struct {
	mu      sync.Mutex
	byURL   map[string]*resourcefile.ResourceFile
	order   []string // insertion order of first-seen URLs, for stable iteration
	dropped []DroppedEntry
}

// DroppedEntry records a ResourceFile that lost the dedup cascade to
// another definition of the same URL.
type DroppedEntry struct {
	URL         string
	FilePath    string
	KeptPath    string
	Reason      string
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{byURL: make(map[string]*resourcefile.ResourceFile)}
}

// Register adds rf to the registry, applying the dedup cascade if a
// ResourceFile with the same URL is already registered.
func (r *Registry) Register(rf *resourcefile.ResourceFile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byURL[rf.URL]
	if !ok {
		r.byURL[rf.URL] = rf
		r.order = append(r.order, rf.URL)
		return
	}

	winner, loser, reason := pickWinner(existing, rf)
	r.byURL[rf.URL] = winner
	r.dropped = append(r.dropped, DroppedEntry{
		URL:      rf.URL,
		FilePath: loser.FilePath,
		KeptPath: winner.FilePath,
		Reason:   reason,
	})
}

// RegisterAll registers every ResourceFile in files.
func (r *Registry) RegisterAll(files []*resourcefile.ResourceFile) {
	for _, rf := range files {
		r.Register(rf)
	}
}

// Get returns the registered ResourceFile for url, if any.
func (r *Registry) Get(url string) (*resourcefile.ResourceFile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rf, ok := r.byURL[url]
	return rf, ok
}

// All returns every registered ResourceFile in first-registration order.
// The Dependency Analyzer and Topological Sorter re-order this for compile
// purposes; this order only needs to be stable, not semantically meaningful.
func (r *Registry) All() []*resourcefile.ResourceFile {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*resourcefile.ResourceFile, 0, len(r.order))
	for _, url := range r.order {
		out = append(out, r.byURL[url])
	}
	return out
}

// Len reports how many distinct URLs are registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byURL)
}

// Dropped returns every ResourceFile that lost the dedup cascade, in the
// order it was dropped.
func (r *Registry) Dropped() []DroppedEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DroppedEntry, len(r.dropped))
	copy(out, r.dropped)
	return out
}

// pickWinner applies the §4.1 cascade to two ResourceFiles sharing a URL.
// Each step only narrows the field if doing so leaves at least one
// candidate; the final tie-break is always decisive.
func pickWinner(a, b *resourcefile.ResourceFile) (winner, loser *resourcefile.ResourceFile, reason string) {
	candidates := []*resourcefile.ResourceFile{a, b}

	candidates, reason1 := filterStep(candidates, func(rf *resourcefile.ResourceFile) bool {
		return rf.Status == resourcefile.StatusActive
	}, "status=active")
	if len(candidates) == 1 {
		return candidates[0], other(a, b, candidates[0]), reason1
	}

	candidates, reason2 := filterStep(candidates, func(rf *resourcefile.ResourceFile) bool {
		return rf.Status != resourcefile.StatusRetired
	}, "status!=retired")
	if len(candidates) == 1 {
		return candidates[0], other(a, b, candidates[0]), reason2
	}

	candidates, reason3 := filterStep(candidates, func(rf *resourcefile.ResourceFile) bool {
		return !rf.Experimental
	}, "experimental=false")
	if len(candidates) == 1 {
		return candidates[0], other(a, b, candidates[0]), reason3
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Date > best.Date {
			best = c
		}
	}
	if allDatesEqual(candidates) == false {
		return best, other(a, b, best), "greatest date"
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].FilePath < candidates[j].FilePath })
	return candidates[0], other(a, b, candidates[0]), "stable file-path tie-break"
}

// filterStep keeps only candidates matching pred, unless doing so would
// eliminate everyone, in which case the original set passes through
// unchanged (§4.1: "each step filters only if the remaining set is
// non-empty and strictly smaller").
func filterStep(candidates []*resourcefile.ResourceFile, pred func(*resourcefile.ResourceFile) bool, reason string) ([]*resourcefile.ResourceFile, string) {
	var kept []*resourcefile.ResourceFile
	for _, c := range candidates {
		if pred(c) {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 || len(kept) == len(candidates) {
		return candidates, ""
	}
	return kept, reason
}

func allDatesEqual(candidates []*resourcefile.ResourceFile) bool {
	if len(candidates) == 0 {
		return true
	}
	first := candidates[0].Date
	for _, c := range candidates[1:] {
		if c.Date != first {
			return false
		}
	}
	return true
}

func other(a, b, winner *resourcefile.ResourceFile) *resourcefile.ResourceFile {
	if winner == a {
		return b
	}
	return a
}
