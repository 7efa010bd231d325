// Package nodes implements the eight concrete storage-I/O syscall node
// types named in SPEC_FULL.md #4.4's syscall table. Each type embeds
// *scgraph.SyscallNode and passes itself as the node's Behavior, giving the
// common Issue()/peek-ahead machinery virtual-dispatch-like access to
// call-specific argument handling without deep inheritance.
package nodes

import (
	"github.com/perf-analysis/internal/backend"
	"github.com/perf-analysis/internal/epoch"
	"github.com/perf-analysis/internal/posix"
	"github.com/perf-analysis/internal/scgraph"
	"github.com/perf-analysis/internal/valuepool"
)

// OpenArggen generates open(2) arguments for a not-yet-reached epoch. It
// returns ready=false when the plugin cannot decide the arguments yet
// (SPEC_FULL.md #9, "dynamic args tri-state").
type OpenArggen func(epochCounters []int) (path string, flags int, mode uint32, ready bool)

// OpenRcsave receives the final return code once an epoch finishes.
type OpenRcsave func(epochCounters []int, rc int64)

type openArgs struct {
	path  string
	flags int
	mode  uint32
}

// OpenNode wraps the open(2) syscall. It is pure with respect to prior file
// state in the sense the spec's table uses ("Pure"/"SideEffecting" refers to
// whether the call mutates durable state reachable by a later racing call;
// open creates/truncates a path so it is constructed side-effecting by its
// caller, see NewOpenNode's pure parameter).
type OpenNode struct {
	*scgraph.SyscallNode
	args   *valuepool.Pool[openArgs]
	arggen OpenArggen
	rcsave OpenRcsave
}

// NewOpenNode constructs an open(2) node. pure should be false whenever
// O_CREAT/O_TRUNC are possible; callers that know the path is opened
// read-only may pass true so the foreactability rule treats it as safe to
// pre-issue across a weak edge.
func NewOpenNode(id uint32, g *scgraph.Graph, assocDims []int, pure bool, arggen OpenArggen, rcsave OpenRcsave) *OpenNode {
	n := &OpenNode{
		args:   valuepool.New[openArgs](assocDims),
		arggen: arggen,
		rcsave: rcsave,
	}
	n.SyscallNode = scgraph.NewSyscallNode(id, "open", pure, g, assocDims, n)
	return n
}

// CheckArgs installs arguments known at the real call site. It is a no-op
// if peek-ahead already installed them for this epoch.
func (n *OpenNode) CheckArgs(ep *epoch.List, path string, flags int, mode uint32) {
	if n.Stage(ep) == scgraph.StageArgReady {
		return
	}
	n.args.Set(ep, openArgs{path, flags, mode})
	n.SetStage(ep, scgraph.StageArgReady)
}

// GenerateArgs implements scgraph.Behavior for the peek-ahead path.
func (n *OpenNode) GenerateArgs(ep *epoch.List) bool {
	path, flags, mode, ready := n.arggen(ep.Raw())
	if !ready {
		return false
	}
	n.args.Set(ep, openArgs{path, flags, mode})
	return true
}

// SyscallSync implements scgraph.Behavior.
func (n *OpenNode) SyscallSync(ep *epoch.List, _ any) int64 {
	a := n.args.Get(ep)
	return posix.Open(a.path, a.flags, a.mode)
}

// FillRingEntry implements scgraph.Behavior.
func (n *OpenNode) FillRingEntry(epochSum int) backend.Entry {
	a := n.args.GetSum(epochSum)
	return backend.Entry{Kind: backend.KindOpen, Path: a.path, Flags: a.flags, Mode: a.mode}
}

// FillPoolEntry implements scgraph.Behavior.
func (n *OpenNode) FillPoolEntry(epochSum int) backend.Entry { return n.FillRingEntry(epochSum) }

// ReflectResult implements scgraph.Behavior. open has no internal buffer.
func (n *OpenNode) ReflectResult(*epoch.List, any) {}

// RemoveOneEpoch implements scgraph.Behavior.
func (n *OpenNode) RemoveOneEpoch(ep *epoch.List) {
	if n.rcsave != nil {
		n.rcsave(ep.Raw(), n.RC(ep))
	}
	n.args.Remove(ep)
}

// ResetArgPools implements scgraph.ArgPoolResetter.
func (n *OpenNode) ResetArgPools() { n.args.Reset() }
