package envconfig

import (
	"github.com/perf-analysis/internal/backend"
	"github.com/perf-analysis/internal/backend/pool"
	"github.com/perf-analysis/internal/backend/ring"
)

// SelectBackend implements the sole backend-selection rule of SPEC_FULL.md
// #12 (ground truth: foreactor.cpp's foreactor_CreateSCGraph):
// UTHREADS_<id> <= 0 picks the ring backend, otherwise the worker pool with
// that many workers. UTHREADS_<id> is the only selector — there is no
// separate ring/pool toggle alongside it.
func SelectBackend(cfg GraphConfig) backend.Backend {
	if cfg.UsesWorkerPool() {
		return pool.New(cfg.NumWorkers, cfg.QueueDepth)
	}
	return ring.New(cfg.QueueDepth, cfg.SQEAsync)
}
