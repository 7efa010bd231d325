package scgraph

import (
	"github.com/perf-analysis/internal/epoch"
	"github.com/perf-analysis/internal/valuepool"
	"github.com/perf-analysis/pkg/errors"
)

// DecisionFunc is the caller-supplied branch decision generator: given the
// raw epoch counters, return the chosen child index and whether it was
// possible to decide yet.
type DecisionFunc func(epochCounters []int) (int, bool)

// BranchNode is a multi-way branch, possibly with loop back-edges
// (SPEC_FULL.md #3/#4.5).
type BranchNode struct {
	id        uint32
	name      string
	graph     *Graph
	assocDims []int

	numChildren int
	children    []Node
	// epochDims[i] >= 0 means traversing to children[i] is a back-edge that
	// increments dimension epochDims[i]; -1 means a forward edge.
	epochDims []int

	decision *valuepool.Pool[int]
	arggen   DecisionFunc
}

// NewBranchNode constructs a branch with the given arity. Children and
// their edge kinds are appended afterward via AppendChild/AppendEndNode.
func NewBranchNode(id uint32, name string, numChildren int, g *Graph, assocDims []int, arggen DecisionFunc) *BranchNode {
	if numChildren <= 1 {
		errors.Fatal(errors.CodePluginMisuse, "scgraph: branch node must have more than one child")
	}
	return &BranchNode{
		id:          id,
		name:        name,
		graph:       g,
		assocDims:   assocDims,
		numChildren: numChildren,
		decision:    valuepool.New[int](assocDims),
		arggen:      arggen,
	}
}

// SetName overrides the branch's display name.
func (b *BranchNode) SetName(name string) { b.name = name }

func (b *BranchNode) NodeID() uint32   { return b.id }
func (b *BranchNode) Name() string     { return b.name }
func (b *BranchNode) Type() NodeType   { return NodeBranch }
func (b *BranchNode) AssocDims() []int { return b.assocDims }

// AppendChild appends a child node. epochDim >= 0 flags a back-edge that
// increments that dimension when taken.
func (b *BranchNode) AppendChild(child Node, epochDim int) {
	if len(b.children) >= b.numChildren {
		errors.Fatal(errors.CodePluginMisuse, "scgraph: branch node has more children than declared arity")
	}
	b.children = append(b.children, child)
	b.epochDims = append(b.epochDims, epochDim)
}

// AppendEndNode appends a nil "end of graph" child.
func (b *BranchNode) AppendEndNode() {
	b.AppendChild(nil, -1)
}

// GenerateDecision invokes the plugin's decision generator, installing the
// result into the decision pool. Returns false ("not ready") without
// installing anything.
func (b *BranchNode) GenerateDecision(ep *epoch.List) bool {
	if b.decision.Has(ep) {
		errors.Fatal(errors.CodePluginMisuse, "scgraph: GenerateDecision called when decision already set")
	}
	d, ok := b.arggen(ep.Raw())
	if !ok {
		return false
	}
	if d < 0 || d >= b.numChildren {
		errors.Fatal(errors.CodePluginMisuse, "scgraph: branch decision generator returned out-of-range child index")
	}
	b.decision.Set(ep, d)
	return true
}

// PickBranch fetches the decided child, optionally removing the decision
// from its pool (do_remove), and increments the epoch dimension on a
// back-edge. Precondition: the decision has been set.
//
// Ground truth distinguishes two call sites (SPEC_FULL.md #12): the
// peek-ahead walk calls this with doRemove=false (peeking is speculative
// and must not consume state the real frontier still needs), while
// GetFrontier (the real traversal) calls it with doRemove=true.
func (b *BranchNode) PickBranch(ep *epoch.List, doRemove bool) Node {
	d := b.decision.Get(ep)
	child := b.children[d]

	if doRemove {
		b.decision.Remove(ep)
	}

	if b.epochDims[d] >= 0 {
		ep.Increment(b.epochDims[d])
	}

	return child
}

func (b *BranchNode) hasDecision(ep *epoch.List) bool { return b.decision.Has(ep) }

// Children and EpochDims expose the branch's wiring for introspection
// tooling (scgdemo dump-graph). A nil entry in Children is the
// end-of-graph sentinel appended by AppendEndNode.
func (b *BranchNode) Children() []Node  { return b.children }
func (b *BranchNode) EpochDims() []int  { return b.epochDims }

// ResetValuePools clears the decision pool. Called from SCGraph.ResetToStart.
func (b *BranchNode) ResetValuePools() {
	b.decision.Reset()
}
