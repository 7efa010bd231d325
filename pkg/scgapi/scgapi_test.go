package scgapi_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/perf-analysis/internal/envconfig"
	"github.com/perf-analysis/pkg/scgapi"
)

func enableForeactor(t *testing.T, graphID uint32, depth, queue int) {
	t.Helper()
	t.Setenv("USE_FOREACTOR", "yes")
	t.Setenv("DEPTH_"+itoa(graphID), itoa(uint32(depth)))
	t.Setenv("QUEUE_"+itoa(graphID), itoa(uint32(queue)))
	envconfig.Reset()
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestCreateSCGraphDisabledByUseForeactor(t *testing.T) {
	t.Setenv("USE_FOREACTOR", "no")
	envconfig.Reset()

	a := scgapi.New(nil)
	defer a.Close()

	g := a.CreateSCGraph(1, 1)
	if g != nil {
		t.Fatal("CreateSCGraph should return nil when USE_FOREACTOR disables the engine")
	}
	if a.HasSCGraph(1) {
		t.Fatal("HasSCGraph should report false when the engine is disabled")
	}

	// Every subsequent call on this graph id must be a silent no-op.
	a.EnterSCGraph(1)
	a.LeaveSCGraph(1)
	a.SetSCGraphBuilt(1)
}

func TestBuildSimpleChainAndDriveIt(t *testing.T) {
	enableForeactor(t, 10, 4, 8)

	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	a := scgapi.New(nil)
	defer a.Close()

	g := a.CreateSCGraph(10, 1)
	if g == nil {
		t.Fatal("CreateSCGraph returned nil with USE_FOREACTOR enabled")
	}
	if !a.HasSCGraph(10) {
		t.Fatal("HasSCGraph should report true once created")
	}

	var fd int
	open := a.AddSyscallOpen(10, 1, "open", []int{0}, false,
		func([]int) (string, int, uint32, bool) { return path, os.O_RDONLY, 0, true },
		func(_ []int, rc int64) { fd = int(rc) },
		true,
	)
	closeN := a.AddSyscallClose(10, 2, "close", []int{0},
		func([]int) (int, bool) { return fd, true },
		nil,
		false,
	)
	a.SyscallSetNext(10, 1, 2, false)
	a.SetSCGraphBuilt(10)

	a.EnterSCGraph(10)
	ep := g.FrontierEpoch()
	open.CheckArgs(ep, path, os.O_RDONLY, 0)
	rc := open.Issue(ep, nil)
	if rc < 0 {
		t.Fatalf("open rc = %d", rc)
	}

	ep2 := g.FrontierEpoch()
	closeN.CheckArgs(ep2, int(rc))
	if rc2 := closeN.Issue(ep2, nil); rc2 != 0 {
		t.Fatalf("close rc = %d, want 0", rc2)
	}
	a.LeaveSCGraph(10)
}

func TestEnterSCGraphBeforeBuiltPanics(t *testing.T) {
	enableForeactor(t, 11, 2, 4)

	a := scgapi.New(nil)
	defer a.Close()

	a.CreateSCGraph(11, 0)
	a.AddSyscallClose(11, 1, "close", nil, func([]int) (int, bool) { return -1, true }, nil, true)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic entering a graph that was never set_scgraph_built")
		}
	}()
	a.EnterSCGraph(11)
}

func TestBranchWiringThroughAPI(t *testing.T) {
	enableForeactor(t, 12, 2, 4)

	a := scgapi.New(nil)
	defer a.Close()

	a.CreateSCGraph(12, 0)
	br := a.AddBranchNode(12, 1, "branch", nil, func(_ []int) (int, bool) { return 0, true }, 2, true)
	a.AddSyscallClose(12, 2, "end-a", nil, func([]int) (int, bool) { return -1, true }, nil, false)
	a.BranchAppendChild(12, 1, 2, -1)
	a.BranchAppendEndNode(12, 1)
	a.SetSCGraphBuilt(12)

	if br.NodeID() != 1 {
		t.Fatalf("branch node id = %d, want 1", br.NodeID())
	}
}

func TestSyscallSetNextUnknownTargetPanics(t *testing.T) {
	enableForeactor(t, 13, 2, 4)

	a := scgapi.New(nil)
	defer a.Close()

	a.CreateSCGraph(13, 0)
	a.AddSyscallClose(13, 1, "close", nil, func([]int) (int, bool) { return -1, true }, nil, true)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic wiring syscall_set_next to an unknown node id")
		}
	}()
	a.SyscallSetNext(13, 1, 99, false)
}
