package demoscenarios

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/perf-analysis/pkg/hijack"
	"github.com/perf-analysis/pkg/scgapi"
	"github.com/perf-analysis/pkg/utils"
)

// loopIterations is the fixed number of read iterations the loop scenario
// drives. The graph's branch decision and the demo's own driving loop both
// derive it from this constant rather than from anything discovered at
// runtime, matching the requirement that a plugin's decision generator
// mirror the real application loop it shadows exactly (SPEC_FULL.md #9).
const loopIterations = 4
const loopBlockSize = 32

// RunLoop drives the "loop" scenario of spec.md #8: a fixed number of
// sequential pread iterations over one fd, modeled as a BranchNode with a
// back-edge into itself that increments the loop's epoch dimension each
// time the body is taken, followed by a close once the count is exhausted.
func RunLoop(log utils.Logger, path string, opts BackendOpts) (*Result, error) {
	const graphID = uint32(3)
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
			// The branch increments dim 0 on entry to this node, so by the
			// time peek-ahead or the real frontier reaches read_iter for
			// the Nth body (0-indexed), epochCounters[0] == N+1.
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
		return nil, fmt.Errorf("demoscenarios: USE_FOREACTOR disabled, loop scenario has nothing to drive")
	}

	api.EnterSCGraph(graphID)
	defer api.LeaveSCGraph(graphID)

	lane := api.Lane()
	res := &Result{Name: "loop"}

	for i := 0; i < loopIterations; i++ {
		buf := make([]byte, loopBlockSize)
		n, err := hijack.Pread(lane, fd, buf, int64(i*loopBlockSize))
		if err != nil {
			res.Failures++
		} else {
			res.BytesRead += n
		}
		res.Steps = append(res.Steps, "read_iter")
		res.LoopRounds++
	}

	if err := hijack.Close(lane, fd); err != nil {
		res.Failures++
	}
	res.Steps = append(res.Steps, "close")

	return res, nil
}
