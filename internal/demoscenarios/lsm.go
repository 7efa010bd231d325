package demoscenarios

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/perf-analysis/pkg/hijack"
	"github.com/perf-analysis/pkg/scgapi"
	"github.com/perf-analysis/pkg/utils"
)

// RunLSM drives the "LSM-style multi-level get" scenario of spec.md #8: a
// lookup probes one pread per storage level, and every level is read even
// after an earlier level has returned data.
// Every level's fd is opened ahead of graph entry and every read's offset
// is a fixed per-level constant, so none of the levels' arguments depend
// on an earlier level's result — exactly the shape the pre-issue algorithm
// is meant to exploit, since the whole chain can be prepared at once up to
// pre_issue_depth regardless of which level eventually reports the hit.
func RunLSM(log utils.Logger, levelPaths []string, opts BackendOpts) (*Result, error) {
	const graphID = uint32(4)
	setGraphEnv(graphID, opts)

	fds := make([]int, len(levelPaths))
	for i, p := range levelPaths {
		fd, err := unix.Open(p, os.O_RDONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("setup open level %d: %w", i, err)
		}
		fds[i] = fd
	}
	defer func() {
		for _, fd := range fds {
			unix.Close(fd)
		}
	}()

	api := scgapi.New(log)
	defer api.Close()
	api.CreateSCGraph(graphID, 1)

	const recordSize = 256
	// Every level reads into its own fixed-size record buffer, known up
	// front rather than allocated at the real call site: a natural fit for
	// the buf_ready fast path (SPEC_FULL.md #12), since peek-ahead can hand
	// the backend the final destination directly instead of bouncing
	// through a node-owned internal buffer and memcpy.
	bufs := make([][]byte, len(fds))
	for i := range bufs {
		bufs[i] = make([]byte, recordSize)
	}
	for i := range fds {
		fd := fds[i]
		buf := bufs[i]
		nodeID := uint32(i + 1)
		n := api.AddSyscallPread(graphID, nodeID, fmt.Sprintf("level_%d_get", i), nil,
			func([]int) (int, int, int64, bool) { return fd, recordSize, 0, true },
			nil, i == 0, recordSize)
		if n != nil {
			n.SetBufHint(func([]int) ([]byte, bool) { return buf, true })
		}
	}
	for i := 0; i < len(fds)-1; i++ {
		api.SyscallSetNext(graphID, uint32(i+1), uint32(i+2), false)
	}
	api.SetSCGraphBuilt(graphID)

	if !api.HasSCGraph(graphID) {
		return nil, fmt.Errorf("demoscenarios: USE_FOREACTOR disabled, lsm scenario has nothing to drive")
	}

	api.EnterSCGraph(graphID)
	defer api.LeaveSCGraph(graphID)

	lane := api.Lane()
	res := &Result{Name: "lsm"}

	for i, fd := range fds {
		buf := bufs[i]
		n, err := hijack.Pread(lane, fd, buf, 0)
		step := fmt.Sprintf("level_%d_get", i)
		res.Steps = append(res.Steps, step)
		if err != nil {
			res.Failures++
			continue
		}
		res.BytesRead += n
		if n > 0 {
			// Found it at this level; real LSM code would stop here, but
			// the graph was built assuming every level always gets probed,
			// so the demo keeps walking to exercise the full pre-issue window.
		}
	}

	return res, nil
}
