package pool

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

func TestPoolOpenSubmitComplete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data")
	if err := os.WriteFile(path, []byte("hello world"), 0644); err != nil {
		t.Fatal(err)
	}

	b := New(2, 4)
	defer b.CleanUp()

	n := &fakeNode{id: 1, entry: backend.Entry{Kind: backend.KindOpen, Path: path, Flags: os.O_RDONLY}}
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

	node, epochSum, rc, err := b.CompleteOne()
	if err != nil {
		t.Fatalf("CompleteOne: %v", err)
	}
	if node.NodeID() != 1 {
		t.Fatalf("NodeID = %d, want 1", node.NodeID())
	}
	if epochSum != 0 {
		t.Fatalf("epochSum = %d, want 0", epochSum)
	}
	if rc < 0 {
		t.Fatalf("open rc = %d, want a valid fd", rc)
	}
	closeFD(t, int(rc))
}

func TestPoolPreadReadsRealData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data")
	want := []byte("0123456789")
	if err := os.WriteFile(path, want, 0644); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	b := New(1, 4)
	defer b.CleanUp()

	buf := make([]byte, 4)
	n := &fakeNode{id: 2, entry: backend.Entry{
		Kind:   backend.KindPread,
		Fd:     int(f.Fd()),
		Buf:    buf,
		Offset: 3,
	}}
	if err := b.Prepare(n, 0); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, err := b.SubmitAll(); err != nil {
		t.Fatalf("SubmitAll: %v", err)
	}
	_, _, rc, err := b.CompleteOne()
	if err != nil {
		t.Fatalf("CompleteOne: %v", err)
	}
	if rc != int64(len(buf)) {
		t.Fatalf("pread rc = %d, want %d", rc, len(buf))
	}
	if string(buf) != "3456" {
		t.Fatalf("pread buf = %q, want %q", buf, "3456")
	}
}

func TestPoolPrepareAfterCleanUpFails(t *testing.T) {
	b := New(1, 1)
	if err := b.CleanUp(); err != nil {
		t.Fatal(err)
	}
	if err := b.Prepare(&fakeNode{id: 1}, 0); err == nil {
		t.Fatal("expected Prepare to fail after CleanUp")
	}
}

func TestPoolSubmitAllQueueFullFails(t *testing.T) {
	b := New(1, 1)
	defer b.CleanUp()

	for i := 0; i < 16; i++ {
		n := &fakeNode{id: uint32(i), entry: backend.Entry{Kind: backend.KindClose, Fd: -1}}
		if err := b.Prepare(n, i); err != nil {
			t.Fatalf("Prepare: %v", err)
		}
	}
	if _, err := b.SubmitAll(); err == nil {
		t.Fatal("expected SubmitAll to fail when the batch exceeds queue capacity")
	}
}

func closeFD(t *testing.T, fd int) {
	t.Helper()
	if fd >= 0 {
		os.NewFile(uintptr(fd), "").Close()
	}
}
