package nodes

import (
	"github.com/perf-analysis/internal/backend"
	"github.com/perf-analysis/internal/epoch"
	"github.com/perf-analysis/internal/posix"
	"github.com/perf-analysis/internal/scgraph"
	"github.com/perf-analysis/internal/valuepool"
)

// PwriteArggen generates pwrite(2) arguments, including the bytes to write
// (which, unlike pread's destination, must be known up front to pre-issue).
type PwriteArggen func(epochCounters []int) (fd int, buf []byte, offset int64, ready bool)

// PwriteRcsave receives the final return code.
type PwriteRcsave func(epochCounters []int, rc int64)

type pwriteArgs struct {
	fd     int
	buf    []byte
	offset int64
}

// PwriteNode wraps the pwrite(2) syscall. Always side-effecting.
type PwriteNode struct {
	*scgraph.SyscallNode
	args   *valuepool.Pool[pwriteArgs]
	arggen PwriteArggen
	rcsave PwriteRcsave
}

func NewPwriteNode(id uint32, g *scgraph.Graph, assocDims []int, arggen PwriteArggen, rcsave PwriteRcsave) *PwriteNode {
	n := &PwriteNode{
		args:   valuepool.New[pwriteArgs](assocDims),
		arggen: arggen,
		rcsave: rcsave,
	}
	n.SyscallNode = scgraph.NewSyscallNode(id, "pwrite", false, g, assocDims, n)
	return n
}

func (n *PwriteNode) CheckArgs(ep *epoch.List, fd int, buf []byte, offset int64) {
	if n.Stage(ep) == scgraph.StageArgReady {
		return
	}
	n.args.Set(ep, pwriteArgs{fd, buf, offset})
	n.SetStage(ep, scgraph.StageArgReady)
}

func (n *PwriteNode) GenerateArgs(ep *epoch.List) bool {
	fd, buf, offset, ready := n.arggen(ep.Raw())
	if !ready {
		return false
	}
	n.args.Set(ep, pwriteArgs{fd, buf, offset})
	return true
}

func (n *PwriteNode) SyscallSync(ep *epoch.List, _ any) int64 {
	a := n.args.Get(ep)
	return posix.Pwrite(a.fd, a.buf, a.offset)
}

func (n *PwriteNode) FillRingEntry(epochSum int) backend.Entry {
	a := n.args.GetSum(epochSum)
	return backend.Entry{Kind: backend.KindPwrite, Fd: a.fd, Buf: a.buf, Count: len(a.buf), Offset: a.offset}
}

func (n *PwriteNode) FillPoolEntry(epochSum int) backend.Entry { return n.FillRingEntry(epochSum) }

func (n *PwriteNode) ReflectResult(*epoch.List, any) {}

func (n *PwriteNode) RemoveOneEpoch(ep *epoch.List) {
	if n.rcsave != nil {
		n.rcsave(ep.Raw(), n.RC(ep))
	}
	n.args.Remove(ep)
}

func (n *PwriteNode) ResetArgPools() { n.args.Reset() }
