package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/perf-analysis/internal/demoscenarios"
)

var (
	backendDepth      int
	backendQueueDepth int
	backendWorkers    int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one of the bundled SCG scenarios",
}

func backendOpts() demoscenarios.BackendOpts {
	return demoscenarios.BackendOpts{
		Depth:      backendDepth,
		QueueDepth: backendQueueDepth,
		NumWorkers: backendWorkers,
	}
}

func fixturePath(name string) string {
	return filepath.Join(dataDir, name)
}

var runChainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Run the simple open/read/read/close chain scenario",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := fixturePath("chain.dat")
		if err := demoscenarios.WriteFixture(path, make([]byte, 128)); err != nil {
			return err
		}
		res, err := demoscenarios.RunChain(logger, path, backendOpts())
		if err != nil {
			return err
		}
		fmt.Println(res.String())
		return nil
	},
}

var runBranchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Run the fstat/branch/read/close scenario",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := fixturePath("branch.dat")
		if err := demoscenarios.WriteFixture(path, make([]byte, 8192)); err != nil {
			return err
		}
		res, err := demoscenarios.RunBranch(logger, path, 4096, backendOpts())
		if err != nil {
			return err
		}
		fmt.Println(res.String())
		return nil
	},
}

var runLoopCmd = &cobra.Command{
	Use:   "loop",
	Short: "Run the fixed-iteration read loop scenario",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := fixturePath("loop.dat")
		if err := demoscenarios.WriteFixture(path, make([]byte, 512)); err != nil {
			return err
		}
		res, err := demoscenarios.RunLoop(logger, path, backendOpts())
		if err != nil {
			return err
		}
		fmt.Println(res.String())
		return nil
	},
}

var runLSMCmd = &cobra.Command{
	Use:   "lsm",
	Short: "Run the LSM-style multi-level get scenario",
	RunE: func(cmd *cobra.Command, args []string) error {
		levels := make([]string, 3)
		for i := range levels {
			levels[i] = fixturePath(fmt.Sprintf("lsm_level_%d.dat", i))
			if err := demoscenarios.WriteFixture(levels[i], make([]byte, 1024)); err != nil {
				return err
			}
		}
		res, err := demoscenarios.RunLSM(logger, levels, backendOpts())
		if err != nil {
			return err
		}
		fmt.Println(res.String())
		return nil
	},
}

var runPoolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Run the chain scenario against the worker-pool backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := fixturePath("pool.dat")
		if err := demoscenarios.WriteFixture(path, make([]byte, 128)); err != nil {
			return err
		}
		workers := backendWorkers
		if workers <= 0 {
			workers = 2
		}
		res, err := demoscenarios.RunPoolBackend(logger, path, workers)
		if err != nil {
			return err
		}
		fmt.Println(res.String())
		return nil
	},
}

var runDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Run the drain-on-exit scenario",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := fixturePath("drain.dat")
		if err := demoscenarios.WriteFixture(path, make([]byte, 512)); err != nil {
			return err
		}
		res, err := demoscenarios.RunDrain(logger, path, backendOpts())
		if err != nil {
			return err
		}
		fmt.Println(res.String())
		return nil
	},
}

var runAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Run every bundled scenario in sequence",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, sub := range []*cobra.Command{runChainCmd, runBranchCmd, runLoopCmd, runLSMCmd, runPoolCmd, runDrainCmd} {
			if err := sub.RunE(sub, nil); err != nil {
				return fmt.Errorf("%s: %w", sub.Use, err)
			}
		}
		return nil
	},
}

func init() {
	runCmd.PersistentFlags().IntVar(&backendDepth, "depth", 4, "pre-issue depth (DEPTH_<id>)")
	runCmd.PersistentFlags().IntVar(&backendQueueDepth, "queue", 8, "ring backend submission queue depth (QUEUE_<id>)")
	runCmd.PersistentFlags().IntVar(&backendWorkers, "workers", 0, "worker count; >0 selects the worker-pool backend (UTHREADS_<id>)")

	runCmd.AddCommand(runChainCmd, runBranchCmd, runLoopCmd, runLSMCmd, runPoolCmd, runDrainCmd, runAllCmd)
	rootCmd.AddCommand(runCmd)
}
