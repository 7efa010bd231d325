package demoscenarios

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/perf-analysis/internal/nodes"
	"github.com/perf-analysis/pkg/hijack"
	"github.com/perf-analysis/pkg/scgapi"
	"github.com/perf-analysis/pkg/utils"
)

// RunBranch drives the "branch with early exit" scenario of spec.md #8:
// fstat the file, then branch on its size into a big-read or small-read
// path, then close. The fd is opened before the graph is entered (as if
// the host function received it from an earlier, non-interposed call),
// so everything past the branch decision is statically knowable and the
// engine can pre-issue across it once the decision resolves.
func RunBranch(log utils.Logger, path string, sizeThreshold int64, opts BackendOpts) (*Result, error) {
	const graphID = uint32(2)
	setGraphEnv(graphID, opts)

	fd, err := unix.Open(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("setup open: %w", err)
	}

	api := scgapi.New(log)
	defer api.Close()
	api.CreateSCGraph(graphID, 1)

	var statSize int64
	var haveStat bool

	api.AddSyscallFstat(graphID, 1, "fstat", nil,
		func([]int) (int, bool) { return fd, true }, nil, true)

	api.AddBranchNode(graphID, 2, "size_branch", nil,
		func([]int) (int, bool) {
			if !haveStat {
				return 0, false
			}
			if statSize >= sizeThreshold {
				return 0, true
			}
			return 1, true
		}, 2, false)

	api.AddSyscallPread(graphID, 3, "big_read", nil,
		func([]int) (int, int, int64, bool) { return fd, 4096, 0, true }, nil, false, 4096)
	api.AddSyscallPread(graphID, 4, "small_read", nil,
		func([]int) (int, int, int64, bool) { return fd, 16, 0, true }, nil, false, 16)

	api.AddSyscallClose(graphID, 5, "close", nil,
		func([]int) (int, bool) { return fd, true }, nil, false)

	api.SyscallSetNext(graphID, 1, 2, false)
	api.BranchAppendChild(graphID, 2, 3, -1)
	api.BranchAppendChild(graphID, 2, 4, -1)
	api.SyscallSetNext(graphID, 3, 5, false)
	api.SyscallSetNext(graphID, 4, 5, false)
	api.SetSCGraphBuilt(graphID)

	if !api.HasSCGraph(graphID) {
		return nil, fmt.Errorf("demoscenarios: USE_FOREACTOR disabled, branch scenario has nothing to drive")
	}

	api.EnterSCGraph(graphID)
	defer api.LeaveSCGraph(graphID)

	lane := api.Lane()
	res := &Result{Name: "branch"}

	var st nodes.ModernStat
	if err := hijack.Fstat(lane, fd, &st); err != nil {
		return nil, fmt.Errorf("fstat: %w", err)
	}
	statSize = st.Size
	haveStat = true
	res.Steps = append(res.Steps, "fstat")

	bigPath := st.Size >= sizeThreshold
	res.EarlyExit = !bigPath

	var buf []byte
	var n int
	if bigPath {
		buf = make([]byte, 4096)
		n, err = hijack.Pread(lane, fd, buf, 0)
		res.Steps = append(res.Steps, "big_read")
	} else {
		buf = make([]byte, 16)
		n, err = hijack.Pread(lane, fd, buf, 0)
		res.Steps = append(res.Steps, "small_read")
	}
	if err != nil {
		res.Failures++
	} else {
		res.BytesRead += n
	}

	if err := hijack.Close(lane, fd); err != nil {
		res.Failures++
	}
	res.Steps = append(res.Steps, "close")

	return res, nil
}
