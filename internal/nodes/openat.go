package nodes

import (
	"github.com/perf-analysis/internal/backend"
	"github.com/perf-analysis/internal/epoch"
	"github.com/perf-analysis/internal/posix"
	"github.com/perf-analysis/internal/scgraph"
	"github.com/perf-analysis/internal/valuepool"
)

// OpenatArggen generates openat(2) arguments.
type OpenatArggen func(epochCounters []int) (dirfd int, path string, flags int, mode uint32, ready bool)

// OpenatRcsave receives the final return code.
type OpenatRcsave func(epochCounters []int, rc int64)

type openatArgs struct {
	dirfd int
	path  string
	flags int
	mode  uint32
}

// OpenatNode wraps the openat(2) syscall.
type OpenatNode struct {
	*scgraph.SyscallNode
	args   *valuepool.Pool[openatArgs]
	arggen OpenatArggen
	rcsave OpenatRcsave
}

func NewOpenatNode(id uint32, g *scgraph.Graph, assocDims []int, pure bool, arggen OpenatArggen, rcsave OpenatRcsave) *OpenatNode {
	n := &OpenatNode{
		args:   valuepool.New[openatArgs](assocDims),
		arggen: arggen,
		rcsave: rcsave,
	}
	n.SyscallNode = scgraph.NewSyscallNode(id, "openat", pure, g, assocDims, n)
	return n
}

func (n *OpenatNode) CheckArgs(ep *epoch.List, dirfd int, path string, flags int, mode uint32) {
	if n.Stage(ep) == scgraph.StageArgReady {
		return
	}
	n.args.Set(ep, openatArgs{dirfd, path, flags, mode})
	n.SetStage(ep, scgraph.StageArgReady)
}

func (n *OpenatNode) GenerateArgs(ep *epoch.List) bool {
	dirfd, path, flags, mode, ready := n.arggen(ep.Raw())
	if !ready {
		return false
	}
	n.args.Set(ep, openatArgs{dirfd, path, flags, mode})
	return true
}

func (n *OpenatNode) SyscallSync(ep *epoch.List, _ any) int64 {
	a := n.args.Get(ep)
	return posix.Openat(a.dirfd, a.path, a.flags, a.mode)
}

func (n *OpenatNode) FillRingEntry(epochSum int) backend.Entry {
	a := n.args.GetSum(epochSum)
	return backend.Entry{Kind: backend.KindOpenat, Dirfd: a.dirfd, Path: a.path, Flags: a.flags, Mode: a.mode}
}

func (n *OpenatNode) FillPoolEntry(epochSum int) backend.Entry { return n.FillRingEntry(epochSum) }

func (n *OpenatNode) ReflectResult(*epoch.List, any) {}

func (n *OpenatNode) RemoveOneEpoch(ep *epoch.List) {
	if n.rcsave != nil {
		n.rcsave(ep.Raw(), n.RC(ep))
	}
	n.args.Remove(ep)
}

func (n *OpenatNode) ResetArgPools() { n.args.Reset() }
