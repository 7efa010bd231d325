package nodes

import (
	"github.com/perf-analysis/internal/backend"
	"github.com/perf-analysis/internal/epoch"
	"github.com/perf-analysis/internal/posix"
	"github.com/perf-analysis/internal/scgraph"
	"github.com/perf-analysis/internal/valuepool"
)

// LseekArggen generates lseek(2) arguments.
type LseekArggen func(epochCounters []int) (fd int, offset int64, whence int, ready bool)

// LseekRcsave receives the final return code (the resulting offset, or a
// negative errno).
type LseekRcsave func(epochCounters []int, rc int64)

type lseekArgs struct {
	fd     int
	offset int64
	whence int
}

// LseekNode wraps the lseek(2) syscall. SPEC_FULL.md #4.4's syscall table
// marks it side-effecting (it mutates the fd's cursor, which a racing
// pread/pwrite on the same fd would observe) and "never async": it is
// excluded from pre-issue altogether regardless of edge type, and always
// executes on the synchronous path when the frontier reaches it.
type LseekNode struct {
	*scgraph.SyscallNode
	args   *valuepool.Pool[lseekArgs]
	arggen LseekArggen
	rcsave LseekRcsave
}

func NewLseekNode(id uint32, g *scgraph.Graph, assocDims []int, arggen LseekArggen, rcsave LseekRcsave) *LseekNode {
	n := &LseekNode{
		args:   valuepool.New[lseekArgs](assocDims),
		arggen: arggen,
		rcsave: rcsave,
	}
	n.SyscallNode = scgraph.NewSyscallNode(id, "lseek", false, g, assocDims, n)
	n.SetNeverAsync()
	return n
}

func (n *LseekNode) CheckArgs(ep *epoch.List, fd int, offset int64, whence int) {
	if n.Stage(ep) == scgraph.StageArgReady {
		return
	}
	n.args.Set(ep, lseekArgs{fd, offset, whence})
	n.SetStage(ep, scgraph.StageArgReady)
}

func (n *LseekNode) GenerateArgs(ep *epoch.List) bool {
	fd, offset, whence, ready := n.arggen(ep.Raw())
	if !ready {
		return false
	}
	n.args.Set(ep, lseekArgs{fd, offset, whence})
	return true
}

func (n *LseekNode) SyscallSync(ep *epoch.List, _ any) int64 {
	a := n.args.Get(ep)
	return posix.Seek(a.fd, a.offset, a.whence)
}

func (n *LseekNode) FillRingEntry(epochSum int) backend.Entry {
	a := n.args.GetSum(epochSum)
	return backend.Entry{Kind: backend.KindLseek, Fd: a.fd, Offset: a.offset, Whence: a.whence}
}

func (n *LseekNode) FillPoolEntry(epochSum int) backend.Entry { return n.FillRingEntry(epochSum) }

func (n *LseekNode) ReflectResult(*epoch.List, any) {}

func (n *LseekNode) RemoveOneEpoch(ep *epoch.List) {
	if n.rcsave != nil {
		n.rcsave(ep.Raw(), n.RC(ep))
	}
	n.args.Remove(ep)
}

func (n *LseekNode) ResetArgPools() { n.args.Reset() }
