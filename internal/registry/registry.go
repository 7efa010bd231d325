// Package registry implements the goroutine-local "current graph" state
// described in SPEC_FULL.md #2/#5: the thread-local active-graph pointer
// the hijacked POSIX entry points consult, plus one per-lane map of built
// graphs keyed by graph_id. Each graph carries its own backend, so the
// source's separate scgraphs/io_urings/thread_pools maps (SPEC_FULL.md #12,
// "Thread-local maps keyed by graph_id") are kept here as that single
// map. A graph can be built and looked up via HasGraph
// without being the currently active one; "active" and "exists" are
// deliberately distinct concepts, matching the original's separation.
//
// Go has no first-class thread-local storage, but every graph/backend is
// documented (SPEC_FULL.md #5) to live strictly within one goroutine, so a
// goroutine-id-keyed registry reached via runtime.Goexit-safe bookkeeping
// is unnecessary: the simplest faithful translation is a registry
// parameterized by an explicit caller-supplied "lane" key; package scgapi
// registers graphs here and package hijack reads the active one, both from
// the one goroutine that entered the graph — enforced by RegisterActive rejecting
// a second concurrent registration (SPEC_FULL.md #9, "Open question on
// ordering across concurrent graphs": nested enter_scgraph on the same
// thread is rejected, not composed).
package registry

import (
	"sync"

	"github.com/perf-analysis/internal/scgraph"
	"github.com/perf-analysis/pkg/errors"
)

// lane holds one goroutine's registry state. lanes maps each
// caller-supplied *LaneKey (obtained through NewLane) to its state.
type lane struct {
	mu     sync.Mutex
	active *scgraph.Graph
	built  map[uint32]*scgraph.Graph
}

var (
	lanesMu sync.Mutex
	lanes   = map[*LaneKey]*lane{}
)

// LaneKey is an opaque per-goroutine identity token. Callers obtain one via
// NewLane at the point they first enter engine code on a given goroutine
// (e.g. a sync.Pool-recycled worker, or main()) and retain it for the
// goroutine's lifetime; every package hijack entry point takes it as an
// explicit parameter. The demo CLI and tests hold the *LaneKey directly since they, like the source, run one graph
// per OS thread/goroutine.
type LaneKey struct{}

// NewLane allocates a fresh lane identity. Call once per goroutine that
// will register active graphs.
func NewLane() *LaneKey {
	k := &LaneKey{}
	lanesMu.Lock()
	lanes[k] = &lane{built: make(map[uint32]*scgraph.Graph)}
	lanesMu.Unlock()
	return k
}

// DropLane releases a lane's bookkeeping, e.g. at goroutine/thread exit.
func DropLane(k *LaneKey) {
	lanesMu.Lock()
	delete(lanes, k)
	lanesMu.Unlock()
}

func get(k *LaneKey) *lane {
	lanesMu.Lock()
	l, ok := lanes[k]
	lanesMu.Unlock()
	if !ok {
		errors.Fatal(errors.CodePluginMisuse, "registry: unknown lane (NewLane was never called, or DropLane already ran)")
	}
	return l
}

// AddGraph registers a newly built graph under its id within this lane, so
// it can be found later via HasGraph/Lookup without being active.
func AddGraph(k *LaneKey, g *scgraph.Graph) {
	l := get(k)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.built[g.ID]; exists {
		errors.Fatal(errors.CodePluginMisuse, "registry: duplicate graph id")
	}
	l.built[g.ID] = g
}

// HasGraph reports whether a graph with this id was registered in this
// lane (SPEC_FULL.md #6, has_scgraph).
func HasGraph(k *LaneKey, graphID uint32) bool {
	l := get(k)
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.built[graphID]
	return ok
}

// Lookup returns the registered graph for graphID in this lane.
func Lookup(k *LaneKey, graphID uint32) (*scgraph.Graph, bool) {
	l := get(k)
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.built[graphID]
	return g, ok
}

// RegisterActive installs g as this lane's currently active graph
// (SPEC_FULL.md #4.6/#6, register_active/enter_scgraph). At most one graph
// may be active per lane at a time: a second call before the first
// UnregisterActive is a fatal plugin-misuse error, enforcing the "reject
// nested enter_scgraph calls on the same thread" rule of SPEC_FULL.md #9.
func RegisterActive(k *LaneKey, g *scgraph.Graph) {
	l := get(k)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active != nil {
		errors.Fatal(errors.CodePluginMisuse, "registry: nested enter_scgraph on the same lane is not supported")
	}
	l.active = g
}

// UnregisterActive clears this lane's active graph (leave_scgraph).
func UnregisterActive(k *LaneKey) {
	l := get(k)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = nil
}

// Active returns this lane's currently active graph, or nil if none is
// registered — the condition under which hijacked entry points fall
// through to the real POSIX call (SPEC_FULL.md #4.7).
func Active(k *LaneKey) *scgraph.Graph {
	l := get(k)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}
