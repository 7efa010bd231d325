package ring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/perf-analysis/internal/backend"
)

type fakeNode struct {
	id    uint32
	entry backend.Entry
}

func (f *fakeNode) NodeID() uint32                          { return f.id }
func (f *fakeNode) FillRingEntry(epochSum int) backend.Entry { return f.entry }
func (f *fakeNode) FillPoolEntry(epochSum int) backend.Entry { return f.entry }

func TestRingPreadReadsRealData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data")
	if err := os.WriteFile(path, []byte("abcdefghij"), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	b := New(4, false)
	defer b.CleanUp()

	buf := make([]byte, 3)
	n := &fakeNode{id: 1, entry: backend.Entry{Kind: backend.KindPread, Fd: int(f.Fd()), Buf: buf, Offset: 2}}
	if err := b.Prepare(n, 0); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	submitted, err := b.SubmitAll()
	if err != nil {
		t.Fatalf("SubmitAll: %v", err)
	}
	if submitted != 1 {
		t.Fatalf("submitted = %d, want 1", submitted)
	}

	_, _, rc, err := b.CompleteOne()
	if err != nil {
		t.Fatalf("CompleteOne: %v", err)
	}
	if rc != int64(len(buf)) {
		t.Fatalf("pread rc = %d, want %d", rc, len(buf))
	}
	if string(buf) != "cde" {
		t.Fatalf("pread buf = %q, want %q", buf, "cde")
	}
}

func TestRingLinkedChainCompletesInOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data")
	if err := os.WriteFile(path, []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	b := New(4, false)
	defer b.CleanUp()

	buf1 := make([]byte, 2)
	buf2 := make([]byte, 2)
	n1 := &fakeNode{id: 1, entry: backend.Entry{Kind: backend.KindPread, Fd: int(f.Fd()), Buf: buf1, Offset: 0, Link: true}}
	n2 := &fakeNode{id: 2, entry: backend.Entry{Kind: backend.KindPread, Fd: int(f.Fd()), Buf: buf2, Offset: 2}}

	if err := b.Prepare(n1, 0); err != nil {
		t.Fatal(err)
	}
	if err := b.Prepare(n2, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := b.SubmitAll(); err != nil {
		t.Fatal(err)
	}

	seen := map[uint32]bool{}
	for i := 0; i < 2; i++ {
		node, _, rc, err := b.CompleteOne()
		if err != nil {
			t.Fatalf("CompleteOne: %v", err)
		}
		if rc < 0 {
			t.Fatalf("unexpected negative rc: %d", rc)
		}
		seen[node.NodeID()] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("expected both nodes to complete, saw %v", seen)
	}
}

func TestRingPrepareAfterCleanUpFails(t *testing.T) {
	b := New(2, false)
	if err := b.CleanUp(); err != nil {
		t.Fatal(err)
	}
	if err := b.Prepare(&fakeNode{id: 1}, 0); err == nil {
		t.Fatal("expected Prepare to fail after CleanUp")
	}
}

func TestRingPrepareQueueFullFails(t *testing.T) {
	b := New(1, false)
	defer b.CleanUp()

	if err := b.Prepare(&fakeNode{id: 1, entry: backend.Entry{Kind: backend.KindClose, Fd: -1}}, 0); err != nil {
		t.Fatalf("first Prepare should succeed: %v", err)
	}
	if err := b.Prepare(&fakeNode{id: 2, entry: backend.Entry{Kind: backend.KindClose, Fd: -1}}, 1); err == nil {
		t.Fatal("expected second Prepare to fail once the submission queue is full")
	}
}

func TestRingSubmitAllNoopWhenNothingStaged(t *testing.T) {
	b := New(2, false)
	defer b.CleanUp()

	n, err := b.SubmitAll()
	if err != nil {
		t.Fatalf("SubmitAll: %v", err)
	}
	if n != 0 {
		t.Fatalf("submitted = %d, want 0", n)
	}
}
