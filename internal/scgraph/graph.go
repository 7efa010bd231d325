package scgraph

import (
	"github.com/perf-analysis/internal/backend"
	"github.com/perf-analysis/internal/epoch"
	"github.com/perf-analysis/pkg/collections"
	"github.com/perf-analysis/pkg/errors"
	"github.com/perf-analysis/pkg/utils"
)

// Graph is the container of nodes, frontier state, peek state, pre-issue
// depth, and backend pointer described in SPEC_FULL.md #3/#4.6.
//
// A Graph is strictly goroutine-local: exactly one goroutine drives it at a
// time, enforced by package registry rather than by any locking here (the
// source's threads map onto goroutines, and there is no cross-goroutine
// sharing of graph state by design).
type Graph struct {
	ID            uint32
	TotalDims     int
	Backend       backend.Backend
	PreIssueDepth int

	Log utils.Logger

	nodes           map[uint32]Node
	initialFrontier Node

	frontier      Node
	frontierEpoch *epoch.List

	peekhead         Node
	peekheadEdge     EdgeType
	peekheadEpoch    *epoch.List
	peekheadDistance int
	peekheadHitEnd   bool
	peekheadSawWeak  bool

	numPrepared      int
	preparedDistance int
	pendingFlush     []pendingPrep

	built bool
}

// pendingPrep records a node prepared during this peek pass but not yet
// confirmed submitted, so maybeFlushPrepared can transition it to OnTheFly
// once the backend accepts the batch.
type pendingPrep struct {
	node *SyscallNode
	ep   *epoch.List
}

// NewGraph allocates a graph. totalDims is fixed at creation and bounds the
// width of every EpochList used within it.
func NewGraph(id uint32, totalDims int, be backend.Backend, preIssueDepth int) *Graph {
	if totalDims < 0 || totalDims > 8 {
		errors.Fatal(errors.CodePluginMisuse, "scgraph: total_dims out of supported range (0-8)")
	}
	if preIssueDepth < 0 {
		errors.Fatal(errors.CodePluginMisuse, "scgraph: pre_issue_depth must be non-negative")
	}
	return &Graph{
		ID:               id,
		TotalDims:        totalDims,
		Backend:          be,
		PreIssueDepth:    preIssueDepth,
		Log:              &utils.NullLogger{},
		nodes:            make(map[uint32]Node),
		frontierEpoch:    epoch.New(totalDims),
		peekheadEpoch:    epoch.New(totalDims),
		peekheadDistance: -1,
		preparedDistance: -1,
	}
}

// AddNode registers a node; exactly one node must be flagged is_start.
func (g *Graph) AddNode(node Node, isStart bool) {
	if g.built {
		errors.Fatal(errors.CodePluginMisuse, "scgraph: cannot add nodes to an already-built graph")
	}
	if _, exists := g.nodes[node.NodeID()]; exists {
		errors.Fatal(errors.CodePluginMisuse, "scgraph: duplicate node id")
	}
	g.nodes[node.NodeID()] = node
	if isStart {
		if g.initialFrontier != nil {
			errors.Fatal(errors.CodePluginMisuse, "scgraph: more than one start node declared")
		}
		g.initialFrontier = node
		g.frontier = node
		g.peekhead = node
	}
}

// Node looks up a registered node by id, as used by the plugin-facing API
// when wiring edges after construction.
func (g *Graph) Node(id uint32) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// AllNodes returns every node registered in the graph, in no particular
// order. Exposed for introspection tooling (scgdemo dump-graph) that needs
// to enumerate the graph's structure without driving it.
func (g *Graph) AllNodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// InitialNodeID returns the graph's declared start node id, if one has
// been added yet.
func (g *Graph) InitialNodeID() (uint32, bool) {
	if g.initialFrontier == nil {
		return 0, false
	}
	return g.initialFrontier.NodeID(), true
}

// SetBuilt marks the graph structurally complete, after checking that it
// has a start node. It then walks every node reachable from the start,
// using a Bitset indexed by node id so that loops are not revisited — the
// same traversal idiom the teacher uses for graph/BFS bookkeeping. The walk
// rejects nothing: cycles and unwired successors are accepted as they are.
func (g *Graph) SetBuilt() {
	if g.initialFrontier == nil {
		errors.Fatal(errors.CodePluginMisuse, "scgraph: no start node declared before SetBuilt")
	}
	visited := collections.NewBitset(len(g.nodes) + 1)
	var walk func(n Node)
	walk = func(n Node) {
		if n == nil {
			return
		}
		id := int(n.NodeID())
		if visited.Test(id) {
			return
		}
		visited.Set(id)
		switch n.Type() {
		case NodeBranch:
			bn := n.(*BranchNode)
			for _, c := range bn.children {
				walk(c)
			}
		default:
			sn := n.(syscallAPI)
			next, _ := sn.nextNode()
			walk(next)
		}
	}
	walk(g.initialFrontier)
	g.built = true
}

// IsBuilt reports whether SetBuilt has been called.
func (g *Graph) IsBuilt() bool { return g.built }

// ResetToStart restores frontier to the initial node, zeros all epoch
// counters, clears peek state, and resets every node's value pools,
// returning recyclable buffers to their free-lists.
func (g *Graph) ResetToStart() {
	g.frontier = g.initialFrontier
	g.frontierEpoch.Reset()
	g.peekhead = g.initialFrontier
	g.peekheadEpoch.Reset()
	g.peekheadEdge = EdgeMust
	g.peekheadDistance = -1
	g.peekheadHitEnd = false
	g.peekheadSawWeak = false
	g.numPrepared = 0
	g.preparedDistance = -1

	for _, n := range g.nodes {
		switch n.Type() {
		case NodeBranch:
			n.(*BranchNode).ResetValuePools()
		default:
			n.(interface{ ResetCommon() }).ResetCommon()
			if r, ok := n.(ArgPoolResetter); ok {
				r.ResetArgPools()
			}
		}
	}
}

// ClearAllReqs drains the backend at wrapper exit (SPEC_FULL.md #4.6).
func (g *Graph) ClearAllReqs() error {
	if g.Backend == nil {
		return nil
	}
	if err := g.Backend.CleanUp(); err != nil {
		errors.FatalWrap(errors.CodeBackendWaitFailed, "scgraph: backend clean_up failed", err)
	}
	g.numPrepared = 0
	g.preparedDistance = -1
	return nil
}

// FrontierEpoch exposes the current frontier epoch, e.g. for diagnostics.
func (g *Graph) FrontierEpoch() *epoch.List { return g.frontierEpoch }

// GetFrontier walks past any already-decided BranchNodes (generating
// decisions on demand) and returns the current frontier SyscallNode and its
// epoch (SPEC_FULL.md #4.7). Callers type-assert the returned Node to their
// expected concrete syscall node type.
func GetFrontier(g *Graph) (Node, *epoch.List) {
	for g.frontier != nil && g.frontier.Type() == NodeBranch {
		bn := g.frontier.(*BranchNode)
		g.Log.WithFields(map[string]any{"graph_id": g.ID, "node_id": bn.id}).
			Debug("branch node in frontier")
		if !bn.hasDecision(g.frontierEpoch) {
			if !bn.GenerateDecision(g.frontierEpoch) {
				errors.Fatal(errors.CodePluginMisuse, "scgraph: frontier branch decision generator not ready (plugin must be able to decide by this point)")
			}
		}
		g.frontier = bn.PickBranch(g.frontierEpoch, true)
	}
	if g.frontier == nil {
		errors.Fatal(errors.CodePluginMisuse, "scgraph: frontier walked off the end of the graph")
	}
	if !g.frontier.Type().IsSyscall() {
		errors.Fatal(errors.CodePluginMisuse, "scgraph: frontier landed on a non-syscall node")
	}
	return g.frontier, g.frontierEpoch
}
