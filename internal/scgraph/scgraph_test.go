package scgraph_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/perf-analysis/internal/backend/ring"
	"github.com/perf-analysis/internal/nodes"
	"github.com/perf-analysis/internal/scgraph"
)

// buildOpenCloseChain wires a two-node open->close graph over a ring
// backend, mirroring the simplest possible SPEC_FULL.md graph shape.
func buildOpenCloseChain(t *testing.T, path string) (*scgraph.Graph, *nodes.OpenNode, *nodes.CloseNode) {
	t.Helper()
	be := ring.New(4, false)
	g := scgraph.NewGraph(1, 1, be, 2)

	var openedFd int
	open := nodes.NewOpenNode(1, g, []int{0}, false,
		func([]int) (string, int, uint32, bool) { return path, os.O_RDONLY, 0, true },
		func(_ []int, rc int64) { openedFd = int(rc) },
	)
	closeN := nodes.NewCloseNode(2, g, []int{0},
		func([]int) (int, bool) { return openedFd, true },
		nil,
	)
	open.SetNext(closeN, false)
	closeN.SetNext(nil, false)

	g.AddNode(open, true)
	g.AddNode(closeN, false)
	g.SetBuilt()
	return g, open, closeN
}

func TestGetFrontierAndIssueAdvance(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if err := os.WriteFile(path, []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}

	g, open, closeN := buildOpenCloseChain(t, path)
	defer g.ClearAllReqs()

	frontier, ep := scgraph.GetFrontier(g)
	if frontier.NodeID() != open.NodeID() {
		t.Fatalf("frontier = %d, want open node", frontier.NodeID())
	}
	open.CheckArgs(ep, path, os.O_RDONLY, 0)
	rc := open.Issue(ep, nil)
	if rc < 0 {
		t.Fatalf("open rc = %d, want a valid fd", rc)
	}

	frontier2, ep2 := scgraph.GetFrontier(g)
	if frontier2.NodeID() != closeN.NodeID() {
		t.Fatalf("frontier = %d, want close node", frontier2.NodeID())
	}
	closeN.CheckArgs(ep2, int(rc))
	if rc2 := closeN.Issue(ep2, nil); rc2 != 0 {
		t.Fatalf("close rc = %d, want 0", rc2)
	}
}

func TestSetBuiltRequiresStartNode(t *testing.T) {
	be := ring.New(2, false)
	g := scgraph.NewGraph(2, 1, be, 1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when SetBuilt is called with no start node")
		}
	}()
	g.SetBuilt()
}

func TestAddNodeAfterBuiltPanics(t *testing.T) {
	be := ring.New(2, false)
	g := scgraph.NewGraph(3, 1, be, 1)
	n := nodes.NewCloseNode(1, g, nil, func([]int) (int, bool) { return -1, true }, nil)
	g.AddNode(n, true)
	g.SetBuilt()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when adding a node to an already-built graph")
		}
	}()
	g.AddNode(nodes.NewCloseNode(2, g, nil, func([]int) (int, bool) { return -1, true }, nil), false)
}

func TestDuplicateNodeIDPanics(t *testing.T) {
	be := ring.New(2, false)
	g := scgraph.NewGraph(4, 1, be, 1)
	g.AddNode(nodes.NewCloseNode(1, g, nil, func([]int) (int, bool) { return -1, true }, nil), true)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate node id")
		}
	}()
	g.AddNode(nodes.NewCloseNode(1, g, nil, func([]int) (int, bool) { return -1, true }, nil), false)
}

func TestBranchNodePicksDecidedChild(t *testing.T) {
	be := ring.New(2, false)
	g := scgraph.NewGraph(5, 1, be, 1)

	endA := nodes.NewCloseNode(2, g, nil, func([]int) (int, bool) { return -1, true }, nil)
	endB := nodes.NewCloseNode(3, g, nil, func([]int) (int, bool) { return -1, true }, nil)

	br := scgraph.NewBranchNode(1, "branch", 2, g, nil, func(_ []int) (int, bool) { return 1, true })
	br.AppendChild(endA, -1)
	br.AppendChild(endB, -1)

	g.AddNode(br, true)
	g.AddNode(endA, false)
	g.AddNode(endB, false)
	g.SetBuilt()

	frontier, _ := scgraph.GetFrontier(g)
	if frontier.NodeID() != endB.NodeID() {
		t.Fatalf("GetFrontier landed on node %d, want the decided child (%d)", frontier.NodeID(), endB.NodeID())
	}
}

func TestBranchNodeWrongArityPanics(t *testing.T) {
	be := ring.New(2, false)
	g := scgraph.NewGraph(6, 1, be, 1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic constructing a branch node with arity <= 1")
		}
	}()
	scgraph.NewBranchNode(1, "branch", 1, g, nil, func(_ []int) (int, bool) { return 0, true })
}

func TestBranchAppendMoreChildrenThanArityPanics(t *testing.T) {
	be := ring.New(2, false)
	g := scgraph.NewGraph(7, 1, be, 1)
	br := scgraph.NewBranchNode(1, "branch", 2, g, nil, func(_ []int) (int, bool) { return 0, true })
	br.AppendEndNode()
	br.AppendEndNode()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic appending more children than declared arity")
		}
	}()
	br.AppendEndNode()
}

func TestResetToStartRestoresFrontierAndClearsPools(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if err := os.WriteFile(path, []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}

	g, open, closeN := buildOpenCloseChain(t, path)
	defer g.ClearAllReqs()

	frontier, ep := scgraph.GetFrontier(g)
	open.CheckArgs(ep, path, os.O_RDONLY, 0)
	rc := open.Issue(ep, nil)

	frontier2, ep2 := scgraph.GetFrontier(g)
	closeN.CheckArgs(ep2, int(rc))
	closeN.Issue(ep2, nil)

	g.ResetToStart()

	frontier3, _ := scgraph.GetFrontier(g)
	if frontier3.NodeID() != frontier.NodeID() {
		t.Fatalf("after ResetToStart frontier = %d, want the start node %d", frontier3.NodeID(), frontier.NodeID())
	}
}

func TestClearAllReqsIsIdempotentOnNilBackend(t *testing.T) {
	g := scgraph.NewGraph(8, 0, nil, 1)
	if err := g.ClearAllReqs(); err != nil {
		t.Fatalf("ClearAllReqs on a graph with no backend: %v", err)
	}
}

// TestWeakEdgeBlocksPreIssueAcrossAPureHop builds the counter-example from
// SPEC_FULL.md #4.4.1's foreactability rule: a Weak edge into a pure node,
// then a Must edge into a side-effecting one (weak -> fstat -> pwrite). The
// peek-ahead walk must prepare fstat (pure, always foreactable) but must
// never prepare pwrite: once the walk has crossed a Weak edge, a later Must
// edge does not "clear" that — the real frontier may still take the weak
// edge's alternative and never reach pwrite at all.
func TestWeakEdgeBlocksPreIssueAcrossAPureHop(t *testing.T) {
	be := ring.New(4, false)
	g := scgraph.NewGraph(11, 0, be, 4)
	defer g.ClearAllReqs()

	open := nodes.NewOpenNode(1, g, nil, true,
		func([]int) (string, int, uint32, bool) { return "/dev/null", os.O_RDONLY, 0, true }, nil)
	fstat := nodes.NewFstatNode(2, g, nil, func([]int) (int, bool) { return 0, true }, nil)
	pwrite := nodes.NewPwriteNode(3, g, nil, func([]int) (int, []byte, int64, bool) { return 0, []byte("x"), 0, true }, nil)
	closeN := nodes.NewCloseNode(4, g, nil, func([]int) (int, bool) { return 0, true }, nil)

	open.SetNext(fstat, true) // weak
	fstat.SetNext(pwrite, false)
	pwrite.SetNext(closeN, false)
	closeN.SetNext(nil, false)

	g.AddNode(open, true)
	g.AddNode(fstat, false)
	g.AddNode(pwrite, false)
	g.AddNode(closeN, false)
	g.SetBuilt()

	frontier, ep := scgraph.GetFrontier(g)
	if frontier.NodeID() != open.NodeID() {
		t.Fatalf("frontier = %d, want open node", frontier.NodeID())
	}
	open.CheckArgs(ep, "/dev/null", os.O_RDONLY, 0)
	if rc := open.Issue(ep, nil); rc < 0 {
		t.Fatalf("open rc = %d, want a valid fd", rc)
	}

	if got := fstat.Stage(ep); got < scgraph.StagePrepared {
		t.Fatalf("fstat stage after peek = %s, want at least Prepared (pure node across a Weak edge is foreactable)", got)
	}
	if got := pwrite.Stage(ep); got >= scgraph.StagePrepared {
		t.Fatalf("pwrite stage after peek = %s, want less than Prepared (side-effecting node past a Weak edge must never be pre-issued)", got)
	}
}

func TestNewGraphRejectsOutOfRangeTotalDims(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for totalDims out of range")
		}
	}()
	scgraph.NewGraph(9, 9, nil, 1)
}
