package hijack_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/perf-analysis/internal/backend/ring"
	"github.com/perf-analysis/internal/nodes"
	"github.com/perf-analysis/internal/registry"
	"github.com/perf-analysis/internal/scgraph"
	"github.com/perf-analysis/pkg/hijack"
)

func TestOpenCloseFallbackWithNoActiveGraph(t *testing.T) {
	lane := registry.NewLane()
	defer registry.DropLane(lane)

	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}

	fd, err := hijack.Open(lane, path, os.O_RDONLY, 0)
	if err != nil {
		t.Fatalf("Open fallback: %v", err)
	}
	if fd < 0 {
		t.Fatalf("Open fallback fd = %d, want non-negative", fd)
	}
	if err := hijack.Close(lane, fd); err != nil {
		t.Fatalf("Close fallback: %v", err)
	}
}

func TestPreadFallbackReadsRealData(t *testing.T) {
	lane := registry.NewLane()
	defer registry.DropLane(lane)

	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("0123456789"), 0644); err != nil {
		t.Fatal(err)
	}
	fd, err := hijack.Open(lane, path, os.O_RDONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer hijack.Close(lane, fd)

	buf := make([]byte, 4)
	n, err := hijack.Pread(lane, fd, buf, 3)
	if err != nil {
		t.Fatalf("Pread fallback: %v", err)
	}
	if n != 4 {
		t.Fatalf("Pread fallback n = %d, want 4", n)
	}
	if string(buf) != "3456" {
		t.Fatalf("Pread fallback buf = %q, want %q", buf, "3456")
	}
}

func TestFstatFallbackReportsSize(t *testing.T) {
	lane := registry.NewLane()
	defer registry.DropLane(lane)

	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, make([]byte, 11), 0644); err != nil {
		t.Fatal(err)
	}
	fd, err := hijack.Open(lane, path, os.O_RDONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer hijack.Close(lane, fd)

	var st nodes.ModernStat
	if err := hijack.Fstat(lane, fd, &st); err != nil {
		t.Fatalf("Fstat fallback: %v", err)
	}
	if st.Size != 11 {
		t.Fatalf("Fstat fallback size = %d, want 11", st.Size)
	}
}

func TestFrontierTypeMismatchPanics(t *testing.T) {
	lane := registry.NewLane()
	defer registry.DropLane(lane)

	be := ring.New(2, false)
	g := scgraph.NewGraph(1, 0, be, 1)
	closeN := nodes.NewCloseNode(1, g, nil, func([]int) (int, bool) { return -1, true }, nil)
	g.AddNode(closeN, true)
	g.SetBuilt()

	registry.AddGraph(lane, g)
	registry.RegisterActive(lane, g)
	defer registry.UnregisterActive(lane)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic: frontier is a CloseNode, but Pread expects a PreadNode")
		}
	}()
	hijack.Pread(lane, 0, make([]byte, 1), 0)
}
