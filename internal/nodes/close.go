package nodes

import (
	"github.com/perf-analysis/internal/backend"
	"github.com/perf-analysis/internal/epoch"
	"github.com/perf-analysis/internal/posix"
	"github.com/perf-analysis/internal/scgraph"
	"github.com/perf-analysis/internal/valuepool"
)

// CloseArggen generates close(2) arguments.
type CloseArggen func(epochCounters []int) (fd int, ready bool)

// CloseRcsave receives the final return code.
type CloseRcsave func(epochCounters []int, rc int64)

// CloseNode wraps the close(2) syscall. It is always side-effecting: once
// issued, the fd is no longer valid for any later node.
type CloseNode struct {
	*scgraph.SyscallNode
	args   *valuepool.Pool[int]
	arggen CloseArggen
	rcsave CloseRcsave
}

func NewCloseNode(id uint32, g *scgraph.Graph, assocDims []int, arggen CloseArggen, rcsave CloseRcsave) *CloseNode {
	n := &CloseNode{
		args:   valuepool.New[int](assocDims),
		arggen: arggen,
		rcsave: rcsave,
	}
	n.SyscallNode = scgraph.NewSyscallNode(id, "close", false, g, assocDims, n)
	return n
}

func (n *CloseNode) CheckArgs(ep *epoch.List, fd int) {
	if n.Stage(ep) == scgraph.StageArgReady {
		return
	}
	n.args.Set(ep, fd)
	n.SetStage(ep, scgraph.StageArgReady)
}

func (n *CloseNode) GenerateArgs(ep *epoch.List) bool {
	fd, ready := n.arggen(ep.Raw())
	if !ready {
		return false
	}
	n.args.Set(ep, fd)
	return true
}

func (n *CloseNode) SyscallSync(ep *epoch.List, _ any) int64 {
	return posix.Close(n.args.Get(ep))
}

func (n *CloseNode) FillRingEntry(epochSum int) backend.Entry {
	return backend.Entry{Kind: backend.KindClose, Fd: n.args.GetSum(epochSum)}
}

func (n *CloseNode) FillPoolEntry(epochSum int) backend.Entry { return n.FillRingEntry(epochSum) }

func (n *CloseNode) ReflectResult(*epoch.List, any) {}

func (n *CloseNode) RemoveOneEpoch(ep *epoch.List) {
	if n.rcsave != nil {
		n.rcsave(ep.Raw(), n.RC(ep))
	}
	n.args.Remove(ep)
}

func (n *CloseNode) ResetArgPools() { n.args.Reset() }
