package demoscenarios

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/perf-analysis/pkg/hijack"
	"github.com/perf-analysis/pkg/scgapi"
	"github.com/perf-analysis/pkg/utils"
)

// RunDrain drives the "drain on exit" scenario of spec.md #8: it builds
// the same loop graph as RunLoop with a pre-issue depth deep enough that
// several iterations are prepared and submitted to the backend ahead of
// the frontier, then leaves the graph after consuming only the first
// iteration's result — forcing LeaveSCGraph's ClearAllReqs to drain every
// in-flight entry the peek-ahead walk had already queued, rather than
// leaving them to complete on their own after the caller has moved on.
func RunDrain(log utils.Logger, path string, opts BackendOpts) (*Result, error) {
	const graphID = uint32(5)
	setGraphEnv(graphID, opts)

	fd, err := unix.Open(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("setup open: %w", err)
	}

	api := scgapi.New(log)
	defer api.Close()
	api.CreateSCGraph(graphID, 1)

	loopDim := []int{0}

	api.AddBranchNode(graphID, 1, "loop_cond", loopDim,
		func(epochCounters []int) (int, bool) {
			if epochCounters[0] < loopIterations {
				return 0, true
			}
			return 1, true
		}, 2, true)

	api.AddSyscallPread(graphID, 2, "read_iter", loopDim,
		func(epochCounters []int) (int, int, int64, bool) {
			idx := epochCounters[0] - 1
			return fd, loopBlockSize, int64(idx * loopBlockSize), true
		}, nil, false, loopBlockSize)

	api.AddSyscallClose(graphID, 3, "close", nil,
		func([]int) (int, bool) { return fd, true }, nil, false)

	api.BranchAppendChild(graphID, 1, 2, 0)
	api.BranchAppendChild(graphID, 1, 3, -1)
	api.SyscallSetNext(graphID, 2, 1, false)
	api.SetSCGraphBuilt(graphID)

	if !api.HasSCGraph(graphID) {
		return nil, fmt.Errorf("demoscenarios: USE_FOREACTOR disabled, drain scenario has nothing to drive")
	}

	api.EnterSCGraph(graphID)

	lane := api.Lane()
	res := &Result{Name: "drain"}

	// Consume a single iteration, then abandon the loop early — peek-ahead
	// has likely already prepared and submitted later iterations to the
	// backend by this point, since opts.Depth should exceed 1 for this
	// scenario to demonstrate anything.
	buf := make([]byte, loopBlockSize)
	n, err := hijack.Pread(lane, fd, buf, 0)
	if err != nil {
		res.Failures++
	} else {
		res.BytesRead += n
	}
	res.Steps = append(res.Steps, "read_iter")
	res.LoopRounds = 1
	res.EarlyExit = true
	res.DrainForced = true

	api.LeaveSCGraph(graphID)
	unix.Close(fd)

	return res, nil
}
