package scgraph

import (
	"github.com/perf-analysis/internal/backend"
	"github.com/perf-analysis/internal/epoch"
	"github.com/perf-analysis/internal/valuepool"
	"github.com/perf-analysis/pkg/errors"
)

// Behavior is the common contract every concrete syscall node subtype must
// provide (SPEC_FULL.md #4.4, hooks a/b/d/e). CheckArgs is deliberately not
// part of this interface: it is called by the hijacked entry point with a
// concrete, call-specific signature (e.g. Pread's CheckArgs takes fd,
// count, offset), not by the generic Issue/peek machinery.
type Behavior interface {
	// GenerateArgs calls the plugin's arggen callback and installs results
	// into this node's argument pools, returning false if not ready yet.
	GenerateArgs(ep *epoch.List) bool

	// SyscallSync performs the blocking POSIX call synchronously and
	// returns its raw return code. outputBuf is the caller-supplied
	// destination (e.g. a []byte for pread), present whenever the frontier
	// call site has reached this node for real.
	SyscallSync(ep *epoch.List, outputBuf any) int64

	// FillRingEntry / FillPoolEntry populate a backend submission record
	// for the ring and worker-pool backends respectively (distinct hooks
	// per SPEC_FULL.md #4.4, since the two backends' entry shapes and
	// buffer-readiness handling differ).
	FillRingEntry(epochSum int) backend.Entry
	FillPoolEntry(epochSum int) backend.Entry

	// ReflectResult optionally post-processes an asynchronously filled
	// internal buffer into the caller's output buffer.
	ReflectResult(ep *epoch.List, outputBuf any)

	// RemoveOneEpoch invokes the plugin's rcsave callback with the final
	// return code, then removes this epoch from every argument pool,
	// returning recyclable buffers to their free-list.
	RemoveOneEpoch(ep *epoch.List)
}

// SyscallNode holds the fields and lifecycle common to every syscall node
// subtype (SPEC_FULL.md #3, SyscallNode). Concrete subtypes (package nodes)
// embed *SyscallNode and pass themselves as the Behavior at construction so
// that the common Issue()/peek logic dispatches back into subtype-specific
// code through the self field — the Go analogue of the source's virtual
// dispatch without deep inheritance.
type SyscallNode struct {
	id        uint32
	name      string
	nodeType  NodeType
	graph     *Graph
	assocDims []int

	self Behavior

	next SyscallLike
	edge EdgeType

	// neverAsyncFlag excludes this node from pre-issue regardless of
	// purity or edge type (SPEC_FULL.md #4.4's syscall table marks lseek
	// "never async": its cursor side effect on the fd is local but still
	// must happen in the program's own order, not speculatively). Set via
	// SetNeverAsync from the one constructor that needs it.
	neverAsyncFlag bool

	stage *valuepool.Pool[Stage]
	rc    *valuepool.Pool[int64]
}

// SyscallLike is any node that may legally follow a SyscallNode: another
// SyscallNode (via its concrete wrapper) or a BranchNode.
type SyscallLike = Node

// NewSyscallNode constructs the common state for a syscall node subtype.
// pure selects NodeSyscallPure vs NodeSyscallSideEffecting.
func NewSyscallNode(id uint32, name string, pure bool, g *Graph, assocDims []int, self Behavior) *SyscallNode {
	if g == nil {
		errors.Fatal(errors.CodePluginMisuse, "scgraph: syscall node created with nil graph")
	}
	nt := NodeSyscallSideEffecting
	if pure {
		nt = NodeSyscallPure
	}
	for _, d := range assocDims {
		if d < 0 || d >= g.TotalDims {
			errors.Fatal(errors.CodePluginMisuse, "scgraph: assoc dim out of range for node")
		}
	}
	return &SyscallNode{
		id:        id,
		name:      name,
		nodeType:  nt,
		graph:     g,
		assocDims: assocDims,
		self:      self,
		stage:     valuepool.New[Stage](assocDims),
		rc:        valuepool.New[int64](assocDims),
	}
}

// -- Node interface --

func (n *SyscallNode) NodeID() uint32    { return n.id }
func (n *SyscallNode) Name() string      { return n.name }
func (n *SyscallNode) Type() NodeType    { return n.nodeType }
func (n *SyscallNode) AssocDims() []int  { return n.assocDims }
func (n *SyscallNode) Graph() *Graph     { return n.graph }

// -- backend.Preparable --

func (n *SyscallNode) FillRingEntry(epochSum int) backend.Entry { return n.self.FillRingEntry(epochSum) }
func (n *SyscallNode) FillPoolEntry(epochSum int) backend.Entry { return n.self.FillPoolEntry(epochSum) }

// -- shared accessors used by concrete subtypes --

// Stage returns the node's stage at ep, or StageNotReady if no value was
// ever installed there.
func (n *SyscallNode) Stage(ep *epoch.List) Stage {
	if !n.stage.Has(ep) {
		return StageNotReady
	}
	return n.stage.Get(ep)
}

func (n *SyscallNode) SetStage(ep *epoch.List, s Stage) { n.stage.Set(ep, s) }

// RC returns the stored return code at ep. Precondition: stage is Finished.
func (n *SyscallNode) RC(ep *epoch.List) int64 { return n.rc.Get(ep) }

func (n *SyscallNode) SetRC(ep *epoch.List, rc int64) { n.rc.Set(ep, rc) }

// RemoveCommon clears the common stage/rc pools at ep. Issue calls this
// right after the subtype's RemoveOneEpoch has cleared its own arg pools.
func (n *SyscallNode) RemoveCommon(ep *epoch.List) {
	n.stage.Remove(ep)
	n.rc.Remove(ep)
}

// ResetCommon clears every stage/rc entry. Called from SCGraph.ResetToStart.
func (n *SyscallNode) ResetCommon() {
	n.stage.Reset()
	n.rc.Reset()
}

// ArgPoolResetter is optionally implemented by a concrete syscall node type
// to clear its own argument pool(s) from SCGraph.ResetToStart. It must be an
// exported method: unlike the peek-ahead hooks below, a node's argument
// pool lives in package nodes, not package scgraph, so the reset hook
// cannot be reached through unexported-method promotion (a type outside
// package scgraph can never declare a method that shadows — or stands in
// for — an unexported scgraph-identified method; it would only hide it).
type ArgPoolResetter interface {
	ResetArgPools()
}

// syscallAPI collects the unexported peek-ahead hooks the graph-level walk
// needs to operate generically over arbitrary Node values whose dynamic
// type is always a concrete wrapper from package nodes. Every concrete
// syscall node type satisfies this automatically by embedding *SyscallNode
// and never declaring a method of the same name itself: Go promotes
// unexported methods to the embedding type, and interface satisfaction
// honors promoted methods even across package boundaries, as long as the
// embedding type doesn't shadow them with a same-named method of its own
// (which would hide the original regardless of package, since shadowing is
// resolved by plain identifier, not by the method's declaring package).
type syscallAPI interface {
	Node
	nextNode() (Node, EdgeType)
	stageAt(ep *epoch.List) Stage
	tryGenerateArgs(ep *epoch.List) bool
	markPrepared(g *Graph, ep *epoch.List) error
	neverAsync() bool
}

// SetNeverAsync excludes this node from pre-issue: peek-ahead will generate
// its arguments (harmless) but never hand it to the backend, so it always
// reaches the frontier ArgReady and executes via the synchronous path in
// Issue. Used by lseek (SPEC_FULL.md #4.4's syscall table, "never async").
func (n *SyscallNode) SetNeverAsync() { n.neverAsyncFlag = true }

func (n *SyscallNode) neverAsync() bool { return n.neverAsyncFlag }

// NextSetter is satisfied by every concrete syscall node type (via
// *SyscallNode method promotion), used by the plugin-facing API to wire
// syscall_set_next without depending on a specific concrete node type.
type NextSetter interface {
	Node
	SetNext(next Node, weak bool)
}

// SetName overrides the node's display name, e.g. to the caller-chosen
// name passed to add_syscall_<type> (SPEC_FULL.md #6), distinct from the
// constructor's hardcoded syscall-type name used for logging defaults.
func (n *SyscallNode) SetName(name string) { n.name = name }

// SetNext wires this node's successor and outgoing edge type.
func (n *SyscallNode) SetNext(next Node, weak bool) {
	n.next = next
	if weak {
		n.edge = EdgeWeak
	} else {
		n.edge = EdgeMust
	}
}

func (n *SyscallNode) nextNode() (Node, EdgeType) { return n.next, n.edge }

// Next exposes this node's successor and outgoing edge type for
// introspection tooling (scgdemo dump-graph); the peek-ahead walk uses the
// unexported nextNode instead.
func (n *SyscallNode) Next() (Node, EdgeType) { return n.next, n.edge }

// -- peek-ahead helpers (unexported; satisfied transitively by every
// concrete node type that embeds *SyscallNode, via method promotion) --

func (n *SyscallNode) stageAt(ep *epoch.List) Stage { return n.Stage(ep) }

// tryGenerateArgs installs args via the plugin callback if not already
// ArgReady at ep, returning whether the node is now ArgReady.
func (n *SyscallNode) tryGenerateArgs(ep *epoch.List) bool {
	if n.Stage(ep) == StageArgReady {
		return true
	}
	if !n.self.GenerateArgs(ep) {
		return false
	}
	n.SetStage(ep, StageArgReady)
	return true
}

// markPrepared transitions the node to Prepared at ep and hands it to the
// backend, recording it on the graph's pending-flush list so
// maybeFlushPrepared can transition it to OnTheFly once SubmitAll succeeds.
func (n *SyscallNode) markPrepared(g *Graph, ep *epoch.List) error {
	n.SetStage(ep, StagePrepared)
	epochSum := n.AssocSum(ep)
	if err := g.Backend.Prepare(n, epochSum); err != nil {
		return err
	}
	g.pendingFlush = append(g.pendingFlush, pendingPrep{node: n, ep: ep.Clone()})
	return nil
}

// Issue executes the peek-ahead pre-issue algorithm and then advances the
// frontier by handling this node itself (SPEC_FULL.md #4.4.1-#4.4.2). This
// node must be the graph's current frontier.
func (n *SyscallNode) Issue(ep *epoch.List, outputBuf any) int64 {
	g := n.graph
	if g.frontier == nil || g.frontier.NodeID() != n.id {
		errors.Fatal(errors.CodePluginMisuse, "scgraph: Issue called on non-frontier node")
	}
	if !ep.SameAs(g.frontierEpoch) {
		errors.Fatal(errors.CodePluginMisuse, "scgraph: Issue called with mismatched epoch")
	}

	peekAhead(g)
	maybeFlushPrepared(g)

	switch n.Stage(ep) {
	case StageNotReady:
		errors.Fatal(errors.CodePluginMisuse, "scgraph: Issue reached node that never had CheckArgs called")
	case StageArgReady:
		rc := n.self.SyscallSync(ep, outputBuf)
		n.SetRC(ep, rc)
		n.SetStage(ep, StageFinished)
	case StagePrepared:
		// A transient state only possible in refactorings that can submit
		// after a frontier node needs its own result; this implementation
		// always flushes before a frontier node can reach its own Issue.
		errors.Fatal(errors.CodePluginMisuse, "scgraph: frontier node stuck in Prepared stage")
	case StageOnTheFly:
		drainUntil(g, n, ep)
		n.self.ReflectResult(ep, outputBuf)
	case StageFinished:
		errors.Fatal(errors.CodePluginMisuse, "scgraph: Issue called twice for same epoch")
	}

	g.frontier = n.next
	g.peekheadDistance--
	g.preparedDistance--

	rc := n.RC(ep)
	n.self.RemoveOneEpoch(ep)
	n.RemoveCommon(ep)
	return rc
}

// drainUntil loops CompleteOne until the completion belonging to (target,
// epoch) is observed, applying every completion seen along the way —
// including ones for other nodes or epochs — to their owning node.
func drainUntil(g *Graph, target *SyscallNode, ep *epoch.List) {
	wantSum := target.AssocSum(ep)
	for {
		prep, epochSum, rc, err := g.Backend.CompleteOne()
		if err != nil {
			errors.FatalWrap(errors.CodeBackendWaitFailed, "scgraph: backend completion wait failed", err)
		}
		sn, ok := prep.(*SyscallNode)
		if !ok {
			errors.Fatal(errors.CodePluginMisuse, "scgraph: backend returned non-syscall-node completion")
		}
		sn.SetRCSum(epochSum, rc)
		sn.SetStageSum(epochSum, StageFinished)
		if sn == target && epochSum == wantSum {
			return
		}
	}
}

// AssocSum computes this node's epoch-sum for ep.
func (n *SyscallNode) AssocSum(ep *epoch.List) int { return ep.Sum(n.assocDims) }

// SetStageSum / SetRCSum update a node's pools from a raw epoch-sum
// (decoded from an entry id) rather than a full EpochList — used by
// drainUntil, which only ever sees the sum a completed entry carried.
func (n *SyscallNode) SetStageSum(sum int, s Stage) { n.stage.SetSum(sum, s) }
func (n *SyscallNode) SetRCSum(sum int, rc int64)   { n.rc.SetSum(sum, rc) }
