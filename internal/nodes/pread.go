package nodes

import (
	"github.com/perf-analysis/internal/backend"
	"github.com/perf-analysis/internal/epoch"
	"github.com/perf-analysis/internal/posix"
	"github.com/perf-analysis/internal/scgraph"
	"github.com/perf-analysis/internal/valuepool"
)

// PreadArggen generates pread(2) arguments.
type PreadArggen func(epochCounters []int) (fd int, count int, offset int64, ready bool)

// PreadBufHint optionally supplies the real destination buffer for a
// not-yet-reached epoch, when the caller already knows it (e.g. a fixed
// buffer reused every loop iteration) before the frontier actually reaches
// this node. Returning ready=false defers to the node's own internal
// buffer, exactly as if no hint were registered.
type PreadBufHint func(epochCounters []int) (buf []byte, ready bool)

// PreadRcsave receives the final return code (bytes read, or a negative
// errno).
type PreadRcsave func(epochCounters []int, rc int64)

type preadArgs struct {
	fd     int
	count  int
	offset int64
}

// PreadNode wraps the pread(2) syscall. A pre-issued read ordinarily lands
// in a node-owned internal buffer (SPEC_FULL.md #9/#12, since the real call
// site's destination buffer isn't known until the frontier actually reaches
// this node); ReflectResult then copies that buffer into the caller's
// destination. When a PreadBufHint is registered (SetBufHint) and reports
// the true destination buffer ready ahead of time, FillRingEntry/
// FillPoolEntry write directly into it instead — skip_memcpy, grounded in
// libforeactor's SyscallPread::PrepUringSqe/PrepUpoolSqe checking
// buf.Has(epoch_sum) — and ReflectResult becomes a no-op for that epoch,
// since the backend already delivered the bytes to their final home. The
// internal buffer, when used, is lazily allocated per epoch and returned to
// a free-list on RemoveOneEpoch so a hot loop doesn't allocate every
// iteration. The synchronous path (SyscallSync) never touches either pool —
// it reads straight into the caller's buffer, exactly as a direct pread(2)
// call would.
type PreadNode struct {
	*scgraph.SyscallNode
	args        *valuepool.Pool[preadArgs]
	internalBuf *valuepool.Pool[[]byte]
	destBuf     *valuepool.Pool[[]byte]
	freeList    [][]byte
	arggen      PreadArggen
	bufHint     PreadBufHint
	rcsave      PreadRcsave
}

func NewPreadNode(id uint32, g *scgraph.Graph, assocDims []int, arggen PreadArggen, rcsave PreadRcsave) *PreadNode {
	n := &PreadNode{
		args:   valuepool.New[preadArgs](assocDims),
		arggen: arggen,
		rcsave: rcsave,
	}
	n.internalBuf = valuepool.NewWithEvict[[]byte](assocDims, func(buf []byte) {
		n.freeList = append(n.freeList, buf)
	})
	n.destBuf = valuepool.New[[]byte](assocDims)
	n.SyscallNode = scgraph.NewSyscallNode(id, "pread", true, g, assocDims, n)
	return n
}

// SetBufHint registers the optional destination-buffer-ready callback
// (SPEC_FULL.md #12, buf_ready/skip_memcpy). Must be called before the
// graph starts driving this node.
func (n *PreadNode) SetBufHint(hint PreadBufHint) { n.bufHint = hint }

// PreAllocate seeds the free-list with count buffers of size bytes each,
// so the hot loop never allocates on its first pre_issue_depth+1 iterations
// (SPEC_FULL.md #5/#9/#12: pre_alloc_buf_size from add_syscall_pread).
func (n *PreadNode) PreAllocate(size, count int) {
	for i := 0; i < count; i++ {
		n.freeList = append(n.freeList, make([]byte, size))
	}
}

func (n *PreadNode) allocBuf(size int) []byte {
	for i, b := range n.freeList {
		if cap(b) >= size {
			n.freeList = append(n.freeList[:i], n.freeList[i+1:]...)
			return b[:size]
		}
	}
	return make([]byte, size)
}

func (n *PreadNode) CheckArgs(ep *epoch.List, fd int, count int, offset int64) {
	if n.Stage(ep) == scgraph.StageArgReady {
		return
	}
	n.args.Set(ep, preadArgs{fd, count, offset})
	n.SetStage(ep, scgraph.StageArgReady)
}

func (n *PreadNode) GenerateArgs(ep *epoch.List) bool {
	fd, count, offset, ready := n.arggen(ep.Raw())
	if !ready {
		return false
	}
	n.args.Set(ep, preadArgs{fd, count, offset})
	if n.bufHint != nil && !n.destBuf.Has(ep) {
		if buf, ready := n.bufHint(ep.Raw()); ready {
			n.destBuf.Set(ep, buf)
		}
	}
	return true
}

// SyscallSync implements scgraph.Behavior. outputBuf must be a []byte of
// at least the installed count.
func (n *PreadNode) SyscallSync(ep *epoch.List, outputBuf any) int64 {
	a := n.args.Get(ep)
	return posix.Pread(a.fd, outputBuf.([]byte)[:a.count], a.offset)
}

func (n *PreadNode) FillRingEntry(epochSum int) backend.Entry {
	a := n.args.GetSum(epochSum)
	if n.destBuf.HasSum(epochSum) {
		// The real destination is already known: read straight into it and
		// let ReflectResult become a no-op for this epoch.
		return backend.Entry{Kind: backend.KindPread, Fd: a.fd, Buf: n.destBuf.GetSum(epochSum), Count: a.count, Offset: a.offset}
	}
	buf := n.allocBuf(a.count)
	n.internalBuf.SetSum(epochSum, buf)
	return backend.Entry{Kind: backend.KindPread, Fd: a.fd, Buf: buf, Count: a.count, Offset: a.offset}
}

func (n *PreadNode) FillPoolEntry(epochSum int) backend.Entry { return n.FillRingEntry(epochSum) }

// ReflectResult copies the internally-read buffer into the caller's
// destination. Only reached on the async (OnTheFly) path. When the buf hint
// fast path was taken for this epoch, the backend already wrote directly
// into outputBuf, so there is nothing to copy.
func (n *PreadNode) ReflectResult(ep *epoch.List, outputBuf any) {
	if n.destBuf.Has(ep) {
		return
	}
	src := n.internalBuf.Get(ep)
	dst := outputBuf.([]byte)
	copy(dst, src)
}

func (n *PreadNode) RemoveOneEpoch(ep *epoch.List) {
	if n.rcsave != nil {
		n.rcsave(ep.Raw(), n.RC(ep))
	}
	n.args.Remove(ep)
	if n.internalBuf.Has(ep) {
		n.internalBuf.Remove(ep)
	}
	if n.destBuf.Has(ep) {
		n.destBuf.Remove(ep)
	}
}

func (n *PreadNode) ResetArgPools() {
	n.args.Reset()
	n.internalBuf.Reset()
	n.destBuf.Reset()
}
