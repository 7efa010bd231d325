package registry

import (
	"testing"

	"github.com/perf-analysis/internal/backend/ring"
	"github.com/perf-analysis/internal/scgraph"
)

func newTestGraph(id uint32) *scgraph.Graph {
	be := ring.New(4, false)
	return scgraph.NewGraph(id, 1, be, 2)
}

func TestAddGraphAndLookup(t *testing.T) {
	k := NewLane()
	defer DropLane(k)

	if HasGraph(k, 1) {
		t.Fatal("graph 1 should not exist yet")
	}

	g := newTestGraph(1)
	AddGraph(k, g)

	if !HasGraph(k, 1) {
		t.Fatal("graph 1 should exist after AddGraph")
	}
	got, ok := Lookup(k, 1)
	if !ok || got != g {
		t.Fatal("Lookup should return the same graph instance that was added")
	}
}

func TestAddGraphDuplicateIDPanics(t *testing.T) {
	k := NewLane()
	defer DropLane(k)

	AddGraph(k, newTestGraph(5))
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate graph id")
		}
	}()
	AddGraph(k, newTestGraph(5))
}

func TestRegisterActiveAndUnregister(t *testing.T) {
	k := NewLane()
	defer DropLane(k)

	if Active(k) != nil {
		t.Fatal("no graph should be active on a fresh lane")
	}

	g := newTestGraph(2)
	RegisterActive(k, g)
	if Active(k) != g {
		t.Fatal("Active should return the registered graph")
	}

	UnregisterActive(k)
	if Active(k) != nil {
		t.Fatal("Active should be nil after UnregisterActive")
	}
}

func TestRegisterActiveNestedPanics(t *testing.T) {
	k := NewLane()
	defer DropLane(k)

	RegisterActive(k, newTestGraph(3))
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on nested RegisterActive")
		}
	}()
	RegisterActive(k, newTestGraph(4))
}

func TestLanesAreIndependent(t *testing.T) {
	k1 := NewLane()
	k2 := NewLane()
	defer DropLane(k1)
	defer DropLane(k2)

	g := newTestGraph(9)
	AddGraph(k1, g)

	if HasGraph(k2, 9) {
		t.Fatal("a graph added to one lane must not be visible from another")
	}
}

func TestGetOnUnknownLanePanics(t *testing.T) {
	k := &LaneKey{} // never passed to NewLane
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when using a lane key that was never registered")
		}
	}()
	HasGraph(k, 1)
}

func TestDropLaneInvalidatesLane(t *testing.T) {
	k := NewLane()
	DropLane(k)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic after the lane has been dropped")
		}
	}()
	HasGraph(k, 1)
}
