// Package demoscenarios builds and drives the six literal end-to-end SCG
// scenarios used by cmd/scgdemo (spec.md #8): a simple chain, a branch with
// early exit, a loop, an LSM-style multi-level get, the worker-pool
// backend, and drain-on-exit. Each scenario wires a graph through
// pkg/scgapi exactly the way a generated plugin would, then drives it
// through pkg/hijack's entry points — the same call surface a wrapped host
// function uses — so the demo exercises the full interposition path rather
// than poking the graph directly.
//
// This package is demo-only: it calls os.Setenv to populate the
// DEPTH_/QUEUE_/UTHREADS_ variables internal/envconfig scans, standing in
// for the linker-supplied plugin configuration a real deployment would set
// before the process starts.
package demoscenarios

import (
	"fmt"
	"os"
	"strconv"

	"github.com/perf-analysis/internal/envconfig"
)

// BackendOpts controls which backend a scenario's graph selects, mirroring
// the DEPTH_/QUEUE_/UTHREADS_ environment knobs of SPEC_FULL.md #6.
type BackendOpts struct {
	Depth      int
	QueueDepth int // ring backend only
	NumWorkers int // > 0 selects the worker-pool backend
}

func setGraphEnv(graphID uint32, opts BackendOpts) {
	id := strconv.FormatUint(uint64(graphID), 10)
	os.Setenv("USE_FOREACTOR", "yes")
	// Scenarios reuse small graph ids across independent runs within the
	// same process (e.g. the CLI's "run all" mode); envconfig's per-id
	// cache must be dropped first or a later run would silently inherit an
	// earlier run's backend choice (SPEC_FULL.md #6, "read once on first
	// entry" is a per-process, not per-call, contract in the real engine,
	// but the demo driver reenters with fresh env on purpose).
	envconfig.Reset()
	os.Setenv("DEPTH_"+id, strconv.Itoa(opts.Depth))
	if opts.NumWorkers > 0 {
		os.Setenv("UTHREADS_"+id, strconv.Itoa(opts.NumWorkers))
		os.Unsetenv("QUEUE_" + id)
	} else {
		os.Unsetenv("UTHREADS_" + id)
		os.Setenv("QUEUE_"+id, strconv.Itoa(opts.QueueDepth))
	}
}

// Result summarizes one scenario run for the CLI to print.
type Result struct {
	Name        string
	Steps       []string
	BytesRead   int
	Failures    int
	LoopRounds  int
	EarlyExit   bool
	DrainForced bool
}

func (r *Result) String() string {
	return fmt.Sprintf("%s: steps=%v bytes=%d failures=%d loop_rounds=%d early_exit=%v drain_forced=%v",
		r.Name, r.Steps, r.BytesRead, r.Failures, r.LoopRounds, r.EarlyExit, r.DrainForced)
}

// WriteFixture creates a small file under path for a scenario to operate
// on, used by the CLI's scenario setup when the caller didn't point it at
// an existing file.
func WriteFixture(path string, content []byte) error {
	return os.WriteFile(path, content, 0644)
}
