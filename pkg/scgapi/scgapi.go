// Package scgapi is the plugin-facing graph-construction API of
// SPEC_FULL.md #6: the functions a generated/hand-written plugin calls
// once per graph, on first entry to the wrapped host function, to build
// the static SCGraph the engine then drives. It is a thin, validating
// front door onto internal/scgraph, internal/registry, and
// internal/envconfig — the core engine has no dependency in the other
// direction.
package scgapi

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/perf-analysis/internal/envconfig"
	"github.com/perf-analysis/internal/nodes"
	"github.com/perf-analysis/internal/registry"
	"github.com/perf-analysis/internal/scgraph"
	"github.com/perf-analysis/pkg/errors"
	"github.com/perf-analysis/pkg/telemetry"
	"github.com/perf-analysis/pkg/utils"
)

var tracer = otel.Tracer("github.com/perf-analysis/pkg/scgapi")

// API is bound to one lane (one goroutine's worth of graphs), mirroring
// the source's thread_local plugin-facing globals. A demo program or test
// creates one API per goroutine that will build/enter graphs.
type API struct {
	lane *registry.LaneKey
	log  utils.Logger

	// spans holds the in-flight trace span covering each graph's current
	// Enter/LeaveSCGraph bracket, keyed by graph id. Populated only when
	// telemetry.Enabled(); otherwise every operation below is a cheap
	// no-op against the global no-op TracerProvider.
	spans map[uint32]trace.Span
}

// New allocates a fresh API bound to a new lane. Pass a Logger to receive
// the engine's Debug-level lifecycle logging (SPEC_FULL.md #10.1); nil
// defaults to utils.NullLogger, matching Graph's own default.
func New(log utils.Logger) *API {
	if log == nil {
		log = &utils.NullLogger{}
	}
	return &API{lane: registry.NewLane(), log: log, spans: make(map[uint32]trace.Span)}
}

// Close releases this API's lane bookkeeping.
func (a *API) Close() { registry.DropLane(a.lane) }

// Lane exposes the lane this API is bound to, so callers can drive the
// hijacked entry points of pkg/hijack against the same lane that
// EnterSCGraph/LeaveSCGraph install as active here.
func (a *API) Lane() *registry.LaneKey { return a.lane }

// CreateSCGraph allocates the graph and its backend based on process-wide
// configuration (SPEC_FULL.md #6). A graph id must never be reused: this
// calling registry.AddGraph, which is fatal on a duplicate id within this
// lane.
func (a *API) CreateSCGraph(graphID uint32, totalDims int) *scgraph.Graph {
	if !envconfig.UseForeactor() {
		// USE_FOREACTOR=no: every subsequent plugin-API call on this graph
		// id becomes a no-op per SPEC_FULL.md #6; callers detect this via
		// HasSCGraph returning false and skip wiring the graph.
		return nil
	}
	cfg := envconfig.ForGraph(graphID)
	be := envconfig.SelectBackend(cfg)
	g := scgraph.NewGraph(graphID, totalDims, be, cfg.Depth)
	g.Log = a.log.WithField("graph_id", graphID)
	registry.AddGraph(a.lane, g)
	return g
}

// HasSCGraph reports whether graphID was created in this lane (and is
// thus live to drive, vs. USE_FOREACTOR having disabled the engine).
func (a *API) HasSCGraph(graphID uint32) bool {
	return registry.HasGraph(a.lane, graphID)
}

// graphOrNop resolves graphID to its Graph, or nil if the plugin API call
// should be a no-op (USE_FOREACTOR=no never created it).
func (a *API) graphOrNop(graphID uint32) *scgraph.Graph {
	g, ok := registry.Lookup(a.lane, graphID)
	if !ok {
		return nil
	}
	return g
}

// --- add_syscall_<type> ---

func (a *API) AddSyscallOpen(graphID, nodeID uint32, name string, assocDims []int, pure bool, arggen nodes.OpenArggen, rcsave nodes.OpenRcsave, isStart bool) *nodes.OpenNode {
	g := a.graphOrNop(graphID)
	if g == nil {
		return nil
	}
	n := nodes.NewOpenNode(nodeID, g, assocDims, pure, arggen, rcsave)
	n.SetName(name)
	g.AddNode(n, isStart)
	return n
}

func (a *API) AddSyscallOpenat(graphID, nodeID uint32, name string, assocDims []int, pure bool, arggen nodes.OpenatArggen, rcsave nodes.OpenatRcsave, isStart bool) *nodes.OpenatNode {
	g := a.graphOrNop(graphID)
	if g == nil {
		return nil
	}
	n := nodes.NewOpenatNode(nodeID, g, assocDims, pure, arggen, rcsave)
	n.SetName(name)
	g.AddNode(n, isStart)
	return n
}

func (a *API) AddSyscallClose(graphID, nodeID uint32, name string, assocDims []int, arggen nodes.CloseArggen, rcsave nodes.CloseRcsave, isStart bool) *nodes.CloseNode {
	g := a.graphOrNop(graphID)
	if g == nil {
		return nil
	}
	n := nodes.NewCloseNode(nodeID, g, assocDims, arggen, rcsave)
	n.SetName(name)
	g.AddNode(n, isStart)
	return n
}

// AddSyscallPread registers a pread node. preAllocBufSize bounds the size
// of the internal buffer lazily allocated when the destination isn't known
// at pre-issue time (SPEC_FULL.md #6/#9); 0 defers to PreadNode's
// allocate-on-demand sizing per call.
func (a *API) AddSyscallPread(graphID, nodeID uint32, name string, assocDims []int, arggen nodes.PreadArggen, rcsave nodes.PreadRcsave, isStart bool, preAllocBufSize int) *nodes.PreadNode {
	g := a.graphOrNop(graphID)
	if g == nil {
		return nil
	}
	n := nodes.NewPreadNode(nodeID, g, assocDims, arggen, rcsave)
	n.SetName(name)
	if preAllocBufSize > 0 {
		n.PreAllocate(preAllocBufSize, g.PreIssueDepth+1)
	}
	g.AddNode(n, isStart)
	return n
}

func (a *API) AddSyscallPwrite(graphID, nodeID uint32, name string, assocDims []int, arggen nodes.PwriteArggen, rcsave nodes.PwriteRcsave, isStart bool) *nodes.PwriteNode {
	g := a.graphOrNop(graphID)
	if g == nil {
		return nil
	}
	n := nodes.NewPwriteNode(nodeID, g, assocDims, arggen, rcsave)
	n.SetName(name)
	g.AddNode(n, isStart)
	return n
}

func (a *API) AddSyscallLseek(graphID, nodeID uint32, name string, assocDims []int, arggen nodes.LseekArggen, rcsave nodes.LseekRcsave, isStart bool) *nodes.LseekNode {
	g := a.graphOrNop(graphID)
	if g == nil {
		return nil
	}
	n := nodes.NewLseekNode(nodeID, g, assocDims, arggen, rcsave)
	n.SetName(name)
	g.AddNode(n, isStart)
	return n
}

func (a *API) AddSyscallFstat(graphID, nodeID uint32, name string, assocDims []int, arggen nodes.FstatArggen, rcsave nodes.FstatRcsave, isStart bool) *nodes.FstatNode {
	g := a.graphOrNop(graphID)
	if g == nil {
		return nil
	}
	n := nodes.NewFstatNode(nodeID, g, assocDims, arggen, rcsave)
	n.SetName(name)
	g.AddNode(n, isStart)
	return n
}

func (a *API) AddSyscallFstatat(graphID, nodeID uint32, name string, assocDims []int, arggen nodes.FstatatArggen, rcsave nodes.FstatatRcsave, isStart bool) *nodes.FstatatNode {
	g := a.graphOrNop(graphID)
	if g == nil {
		return nil
	}
	n := nodes.NewFstatatNode(nodeID, g, assocDims, arggen, rcsave)
	n.SetName(name)
	g.AddNode(n, isStart)
	return n
}

// AddBranchNode registers a BranchNode. Children are attached afterward
// via BranchAppendChild/BranchAppendEndNode.
func (a *API) AddBranchNode(graphID, nodeID uint32, name string, assocDims []int, arggen scgraph.DecisionFunc, numChildren int, isStart bool) *scgraph.BranchNode {
	g := a.graphOrNop(graphID)
	if g == nil {
		return nil
	}
	n := scgraph.NewBranchNode(nodeID, name, numChildren, g, assocDims, arggen)
	g.AddNode(n, isStart)
	return n
}

// SyscallSetNext wires from's successor to to (or the end-of-graph
// sentinel if toID is absent from the graph), with the given edge type.
func (a *API) SyscallSetNext(graphID uint32, fromID, toID uint32, weak bool) {
	g := a.graphOrNop(graphID)
	if g == nil {
		return
	}
	from := mustNode(g, fromID)
	ns, ok := from.(scgraph.NextSetter)
	if !ok {
		errors.Fatal(errors.CodePluginMisuse, "scgapi: syscall_set_next called on a non-syscall node id")
	}
	to, ok := g.Node(toID)
	if !ok {
		errors.Fatal(errors.CodePluginMisuse, "scgapi: syscall_set_next target node id not found")
	}
	ns.SetNext(to, weak)
}

// BranchAppendChild appends a child to a branch node. epochDim >= 0 flags
// a loop back-edge that increments that dimension when taken.
func (a *API) BranchAppendChild(graphID, branchID, childID uint32, epochDim int) {
	g := a.graphOrNop(graphID)
	if g == nil {
		return
	}
	bn := mustBranch(g, branchID)
	child, ok := g.Node(childID)
	if !ok {
		errors.Fatal(errors.CodePluginMisuse, "scgapi: branch_append_child target node id not found")
	}
	bn.AppendChild(child, epochDim)
}

// BranchAppendEndNode appends an end-of-graph child to a branch node.
func (a *API) BranchAppendEndNode(graphID, branchID uint32) {
	g := a.graphOrNop(graphID)
	if g == nil {
		return
	}
	mustBranch(g, branchID).AppendEndNode()
}

// SetSCGraphBuilt marks the graph structurally complete.
func (a *API) SetSCGraphBuilt(graphID uint32) {
	g := a.graphOrNop(graphID)
	if g == nil {
		return
	}
	g.SetBuilt()
}

// EnterSCGraph frames the host function's execution: installs this
// graph as the lane's active graph (SPEC_FULL.md #6). A no-op when
// USE_FOREACTOR disabled the engine (graphOrNop returns nil).
func (a *API) EnterSCGraph(graphID uint32) {
	g := a.graphOrNop(graphID)
	if g == nil {
		return
	}
	if !g.IsBuilt() {
		errors.Fatal(errors.CodePluginMisuse, "scgapi: enter_scgraph called on a graph that was never set_scgraph_built")
	}
	registry.RegisterActive(a.lane, g)

	if telemetry.Enabled() {
		_, span := tracer.Start(context.Background(), "scgraph.execute",
			trace.WithAttributes(
				attribute.Int64("scg.graph_id", int64(graphID)),
				attribute.Int64("scg.pre_issue_depth", int64(g.PreIssueDepth)),
			))
		a.spans[graphID] = span
	}
}

// LeaveSCGraph drains outstanding requests, resets the graph to its
// initial frontier/epoch, and clears the lane's active-graph pointer
// (SPEC_FULL.md #4.6/#6).
func (a *API) LeaveSCGraph(graphID uint32) {
	g := a.graphOrNop(graphID)
	if g == nil {
		return
	}
	if err := g.ClearAllReqs(); err != nil {
		if span, ok := a.spans[graphID]; ok {
			span.RecordError(err)
			delete(a.spans, graphID)
			span.End()
		}
		errors.FatalWrap(errors.CodeBackendWaitFailed, "scgapi: leave_scgraph drain failed", err)
	}
	g.ResetToStart()
	registry.UnregisterActive(a.lane)

	if span, ok := a.spans[graphID]; ok {
		delete(a.spans, graphID)
		span.End()
	}
}

func mustNode(g *scgraph.Graph, id uint32) scgraph.Node {
	n, ok := g.Node(id)
	if !ok {
		errors.Fatal(errors.CodePluginMisuse, "scgapi: unknown node id")
	}
	return n
}

func mustBranch(g *scgraph.Graph, id uint32) *scgraph.BranchNode {
	n := mustNode(g, id)
	bn, ok := n.(*scgraph.BranchNode)
	if !ok {
		errors.Fatal(errors.CodePluginMisuse, "scgapi: node id does not refer to a branch node")
	}
	return bn
}
