package demoscenarios

import (
	"fmt"
	"os"

	"github.com/perf-analysis/pkg/hijack"
	"github.com/perf-analysis/pkg/scgapi"
	"github.com/perf-analysis/pkg/utils"
)

// chainState is the plugin-private scratch a generated wrapper keeps on
// its own stack across the calls it interposes: here, just the fd open
// hands back for the reads and close that follow it in the same chain.
type chainState struct {
	fd      int
	fdReady bool
}

// RunChain drives the "simple chain" scenario of spec.md #8: open, two
// sequential preads, close, with no branching. The two pread arggens
// return ready=false until open's rcsave has recorded the real fd, which
// is the ordinary case for a dependent-argument chain — pre-issue stalls
// at that data barrier until the real call supplies it.
func RunChain(log utils.Logger, path string, opts BackendOpts) (*Result, error) {
	const graphID = uint32(1)
	setGraphEnv(graphID, opts)

	api := scgapi.New(log)
	defer api.Close()

	st := &chainState{}
	api.CreateSCGraph(graphID, 1)

	api.AddSyscallOpen(graphID, 1, "open", nil, false,
		func([]int) (string, int, uint32, bool) { return path, os.O_RDONLY, 0, true },
		func(_ []int, rc int64) {
			if rc >= 0 {
				st.fd = int(rc)
				st.fdReady = true
			}
		}, true)
	api.AddSyscallPread(graphID, 2, "read1", nil,
		func([]int) (int, int, int64, bool) {
			if !st.fdReady {
				return 0, 0, 0, false
			}
			return st.fd, 64, 0, true
		}, nil, false, 64)
	api.AddSyscallPread(graphID, 3, "read2", nil,
		func([]int) (int, int, int64, bool) {
			if !st.fdReady {
				return 0, 0, 0, false
			}
			return st.fd, 64, 64, true
		}, nil, false, 64)
	api.AddSyscallClose(graphID, 4, "close", nil,
		func([]int) (int, bool) {
			if !st.fdReady {
				return 0, false
			}
			return st.fd, true
		}, nil, false)

	api.SyscallSetNext(graphID, 1, 2, false)
	api.SyscallSetNext(graphID, 2, 3, false)
	api.SyscallSetNext(graphID, 3, 4, false)
	api.SetSCGraphBuilt(graphID)

	if !api.HasSCGraph(graphID) {
		return nil, fmt.Errorf("demoscenarios: USE_FOREACTOR disabled, chain scenario has nothing to drive")
	}

	api.EnterSCGraph(graphID)
	defer api.LeaveSCGraph(graphID)

	lane := api.Lane()
	res := &Result{Name: "chain"}

	fd, err := hijack.Open(lane, path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	res.Steps = append(res.Steps, "open")

	buf1 := make([]byte, 64)
	n1, err := hijack.Pread(lane, fd, buf1, 0)
	if err != nil {
		res.Failures++
	} else {
		res.BytesRead += n1
	}
	res.Steps = append(res.Steps, "read1")

	buf2 := make([]byte, 64)
	n2, err := hijack.Pread(lane, fd, buf2, 64)
	if err != nil {
		res.Failures++
	} else {
		res.BytesRead += n2
	}
	res.Steps = append(res.Steps, "read2")

	if err := hijack.Close(lane, fd); err != nil {
		res.Failures++
	}
	res.Steps = append(res.Steps, "close")

	return res, nil
}
