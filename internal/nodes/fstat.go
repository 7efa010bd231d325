package nodes

import (
	"golang.org/x/sys/unix"

	"github.com/perf-analysis/internal/backend"
	"github.com/perf-analysis/internal/epoch"
	"github.com/perf-analysis/internal/posix"
	"github.com/perf-analysis/internal/scgraph"
	"github.com/perf-analysis/internal/valuepool"
)

// FstatArggen generates fstat(2) arguments.
type FstatArggen func(epochCounters []int) (fd int, ready bool)

// FstatRcsave receives the final return code.
type FstatRcsave func(epochCounters []int, rc int64)

// FstatNode wraps the fstat(2) syscall. Pure: it only observes metadata.
//
// A prepared entry hands the backend a pointer into rawStat's pool (the
// same by-reference pattern pread uses for its read buffer) so the backend
// can fill in the raw result directly, with no separate result-delivery
// channel back to the node.
type FstatNode struct {
	*scgraph.SyscallNode
	args    *valuepool.Pool[int]
	rawStat *valuepool.Pool[*unix.Stat_t]
	arggen  FstatArggen
	rcsave  FstatRcsave
}

func NewFstatNode(id uint32, g *scgraph.Graph, assocDims []int, arggen FstatArggen, rcsave FstatRcsave) *FstatNode {
	n := &FstatNode{
		args:    valuepool.New[int](assocDims),
		rawStat: valuepool.New[*unix.Stat_t](assocDims),
		arggen:  arggen,
		rcsave:  rcsave,
	}
	n.SyscallNode = scgraph.NewSyscallNode(id, "fstat", true, g, assocDims, n)
	return n
}

func (n *FstatNode) CheckArgs(ep *epoch.List, fd int) {
	if n.Stage(ep) == scgraph.StageArgReady {
		return
	}
	n.args.Set(ep, fd)
	n.SetStage(ep, scgraph.StageArgReady)
}

func (n *FstatNode) GenerateArgs(ep *epoch.List) bool {
	fd, ready := n.arggen(ep.Raw())
	if !ready {
		return false
	}
	n.args.Set(ep, fd)
	return true
}

// SyscallSync implements scgraph.Behavior. outputBuf, if non-nil, must be
// *ModernStat.
func (n *FstatNode) SyscallSync(ep *epoch.List, outputBuf any) int64 {
	fd := n.args.Get(ep)
	raw, rc := posix.Fstat(fd)
	if rc == 0 && outputBuf != nil {
		*outputBuf.(*ModernStat) = translateStat(&raw)
	}
	return rc
}

func (n *FstatNode) FillRingEntry(epochSum int) backend.Entry {
	st := &unix.Stat_t{}
	n.rawStat.SetSum(epochSum, st)
	return backend.Entry{Kind: backend.KindFstat, Fd: n.args.GetSum(epochSum), StatOut: st}
}

func (n *FstatNode) FillPoolEntry(epochSum int) backend.Entry { return n.FillRingEntry(epochSum) }

// ReflectResult translates the backend-filled stat buffer into the caller's
// *ModernStat. Only reached on the async (OnTheFly) path.
func (n *FstatNode) ReflectResult(ep *epoch.List, outputBuf any) {
	if outputBuf == nil {
		return
	}
	raw := n.rawStat.Get(ep)
	*outputBuf.(*ModernStat) = translateStat(raw)
}

func (n *FstatNode) RemoveOneEpoch(ep *epoch.List) {
	if n.rcsave != nil {
		n.rcsave(ep.Raw(), n.RC(ep))
	}
	n.args.Remove(ep)
	if n.rawStat.Has(ep) {
		n.rawStat.Remove(ep)
	}
}

func (n *FstatNode) ResetArgPools() {
	n.args.Reset()
	n.rawStat.Reset()
}
