// Package backend defines the plug-replaceable asynchronous engine contract
// that the syscall graph issues prepared work against, plus the entry
// identifier wire format shared by every implementation.
package backend

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/perf-analysis/pkg/errors"
)

// Kind tags which POSIX call an Entry carries arguments for.
type Kind int

const (
	KindOpen Kind = iota
	KindOpenat
	KindClose
	KindPread
	KindPwrite
	KindLseek
	KindFstat
	KindFstatat
)

func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindOpenat:
		return "openat"
	case KindClose:
		return "close"
	case KindPread:
		return "pread"
	case KindPwrite:
		return "pwrite"
	case KindLseek:
		return "lseek"
	case KindFstat:
		return "fstat"
	case KindFstatat:
		return "fstatat"
	default:
		return "unknown"
	}
}

// Entry is the backend-agnostic submission record a node fills in. It plays
// the role of both the ring backend's io_uring SQE and the worker-pool
// backend's ThreadPoolSQEntry — a flat union of every field any supported
// syscall might need.
type Entry struct {
	Kind   Kind
	Fd     int
	Dirfd  int
	Path   string
	Flags  int
	Mode   uint32
	Buf    []byte
	Count  int
	Offset int64
	Whence int

	// StatOut is written through directly by the backend executing a
	// Kind == KindFstat/KindFstatat entry, the same by-reference pattern
	// Buf uses for pread/pwrite: the node owns the pointee and reads it
	// back after completion, so no separate result-delivery path is
	// needed between a backend and the node that prepared the entry.
	StatOut *unix.Stat_t

	// Link, when true, promises that the submission immediately following
	// this one in the same prepared batch must complete after this one
	// does.
	Link bool
}

// Preparable is the surface a graph node must expose to a Backend. It is
// satisfied by *scgraph.SyscallNode (and, by promotion, by every concrete
// syscall node type that embeds it) without backend importing scgraph —
// avoiding an import cycle while keeping the relationship exactly as
// described in SPEC_FULL.md #4.3/#4.4.
type Preparable interface {
	NodeID() uint32
	FillRingEntry(epochSum int) Entry
	FillPoolEntry(epochSum int) Entry
}

// Backend is the engine contract of SPEC_FULL.md #4.3: accept prepared
// entries, submit them as a batch, harvest completions one by one.
type Backend interface {
	// Prepare records an intention to submit; implementations must preserve
	// the order in which prepares arrive.
	Prepare(node Preparable, epochSum int) error

	// SubmitAll dispatches every recorded entry and returns how many were
	// submitted. It must fail with a BackendSubmitFailed AppError if the
	// underlying mechanism rejects the batch.
	SubmitAll() (int, error)

	// CompleteOne blocks until at least one in-flight entry completes and
	// returns its identity and raw return code. It must fail with a
	// BackendWaitFailed AppError only on an unrecoverable backend error.
	CompleteOne() (Preparable, int, int64, error)

	// CleanUp discards the prepared list and drains all in-flight entries.
	CleanUp() error
}

// EntryID is the fixed-width wire identifier of SPEC_FULL.md #6:
// (node_reference << K) | epoch_sum.
type EntryID uint64

// epochSumBits is K: the width reserved for the epoch-sum component. The
// remaining 64-K bits hold a node reference. The source packs a raw 48-bit
// pointer with a 16-bit epoch-sum; a Go implementation cannot safely fold
// an arbitrary heap pointer into an integer this way (the runtime does not
// promise pointer stability across optimizations the way a C++ allocator's
// address does under reinterpret_cast), so node_reference here is a small
// stable integer id assigned at AddNode time instead of an address. This
// still satisfies the spec's bijection requirement on (node, epoch-sum)
// pairs actually used, at the cost of a node-id registry held by the
// encoding side (see EncodeEntryID).
const epochSumBits = 20

const maxEpochSum = 1<<epochSumBits - 1

// EncodeEntryID packs node identity and epoch-sum into a single EntryID,
// rejecting any epoch-sum that would not fit in the reserved width.
func EncodeEntryID(nodeID uint32, epochSum int) (EntryID, error) {
	if epochSum < 0 || epochSum > maxEpochSum {
		return 0, errors.New(errors.CodeArgMismatch,
			fmt.Sprintf("entry id: epoch sum %d exceeds %d-bit width", epochSum, epochSumBits))
	}
	return EntryID(uint64(nodeID)<<epochSumBits | uint64(epochSum)), nil
}

// DecodeEntryID reverses EncodeEntryID.
func DecodeEntryID(id EntryID) (nodeID uint32, epochSum int) {
	nodeID = uint32(uint64(id) >> epochSumBits)
	epochSum = int(uint64(id) & maxEpochSum)
	return
}
