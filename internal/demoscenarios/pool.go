package demoscenarios

import "github.com/perf-analysis/pkg/utils"

// RunPoolBackend drives the "worker-pool backend" scenario of spec.md #8:
// the same chain as RunChain, but with opts.NumWorkers > 0 so
// internal/envconfig.SelectBackend picks internal/backend/pool instead of
// the ring backend, exercising the errgroup-based worker loop and CPU
// affinity pinning path.
func RunPoolBackend(log utils.Logger, path string, numWorkers int) (*Result, error) {
	res, err := RunChain(log, path, BackendOpts{Depth: 4, NumWorkers: numWorkers})
	if res != nil {
		res.Name = "pool"
	}
	return res, err
}
