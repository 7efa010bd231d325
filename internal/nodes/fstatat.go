package nodes

import (
	"golang.org/x/sys/unix"

	"github.com/perf-analysis/internal/backend"
	"github.com/perf-analysis/internal/epoch"
	"github.com/perf-analysis/internal/posix"
	"github.com/perf-analysis/internal/scgraph"
	"github.com/perf-analysis/internal/valuepool"
)

// FstatatArggen generates fstatat(2) arguments.
type FstatatArggen func(epochCounters []int) (dirfd int, path string, flags int, ready bool)

// FstatatRcsave receives the final return code.
type FstatatRcsave func(epochCounters []int, rc int64)

type fstatatArgs struct {
	dirfd int
	path  string
	flags int
}

// FstatatNode wraps the fstatat(2) syscall. Pure, same result-delivery
// shape as FstatNode.
type FstatatNode struct {
	*scgraph.SyscallNode
	args    *valuepool.Pool[fstatatArgs]
	rawStat *valuepool.Pool[*unix.Stat_t]
	arggen  FstatatArggen
	rcsave  FstatatRcsave
}

func NewFstatatNode(id uint32, g *scgraph.Graph, assocDims []int, arggen FstatatArggen, rcsave FstatatRcsave) *FstatatNode {
	n := &FstatatNode{
		args:    valuepool.New[fstatatArgs](assocDims),
		rawStat: valuepool.New[*unix.Stat_t](assocDims),
		arggen:  arggen,
		rcsave:  rcsave,
	}
	n.SyscallNode = scgraph.NewSyscallNode(id, "fstatat", true, g, assocDims, n)
	return n
}

func (n *FstatatNode) CheckArgs(ep *epoch.List, dirfd int, path string, flags int) {
	if n.Stage(ep) == scgraph.StageArgReady {
		return
	}
	n.args.Set(ep, fstatatArgs{dirfd, path, flags})
	n.SetStage(ep, scgraph.StageArgReady)
}

func (n *FstatatNode) GenerateArgs(ep *epoch.List) bool {
	dirfd, path, flags, ready := n.arggen(ep.Raw())
	if !ready {
		return false
	}
	n.args.Set(ep, fstatatArgs{dirfd, path, flags})
	return true
}

func (n *FstatatNode) SyscallSync(ep *epoch.List, outputBuf any) int64 {
	a := n.args.Get(ep)
	raw, rc := posix.Fstatat(a.dirfd, a.path, a.flags)
	if rc == 0 && outputBuf != nil {
		*outputBuf.(*ModernStat) = translateStat(&raw)
	}
	return rc
}

func (n *FstatatNode) FillRingEntry(epochSum int) backend.Entry {
	a := n.args.GetSum(epochSum)
	st := &unix.Stat_t{}
	n.rawStat.SetSum(epochSum, st)
	return backend.Entry{Kind: backend.KindFstatat, Dirfd: a.dirfd, Path: a.path, Flags: a.flags, StatOut: st}
}

func (n *FstatatNode) FillPoolEntry(epochSum int) backend.Entry { return n.FillRingEntry(epochSum) }

func (n *FstatatNode) ReflectResult(ep *epoch.List, outputBuf any) {
	if outputBuf == nil {
		return
	}
	raw := n.rawStat.Get(ep)
	*outputBuf.(*ModernStat) = translateStat(raw)
}

func (n *FstatatNode) RemoveOneEpoch(ep *epoch.List) {
	if n.rcsave != nil {
		n.rcsave(ep.Raw(), n.RC(ep))
	}
	n.args.Remove(ep)
	if n.rawStat.Has(ep) {
		n.rawStat.Remove(ep)
	}
}

func (n *FstatatNode) ResetArgPools() {
	n.args.Reset()
	n.rawStat.Reset()
}
