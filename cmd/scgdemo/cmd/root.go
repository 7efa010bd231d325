package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/perf-analysis/internal/democonfig"
	"github.com/perf-analysis/pkg/utils"
)

var (
	verbose    bool
	configPath string
	dataDir    string

	logger utils.Logger
	demoCfg *democonfig.EngineDemoConfig
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "scgdemo",
	Short: "Drive the syscall graph engine's bundled demo scenarios",
	Long: `scgdemo builds and runs the syscall graph (SCG) engine's bundled
demo scenarios: a simple call chain, a branch with early exit, a loop, an
LSM-style multi-level get, the worker-pool backend, and drain-on-exit.

Each scenario wires a graph through the engine's plugin-facing API and
drives it through the hijacked POSIX entry points, exercising the same
pre-issue/asynchronous-completion machinery a real wrapped function uses.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := utils.LevelInfo
		if verbose {
			level = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(level, os.Stdout)

		cfg, err := democonfig.Load(configPath)
		if err != nil {
			return err
		}
		demoCfg = cfg
		if dataDir == "" {
			dataDir = cfg.Demo.DataDir
		}
		return os.MkdirAll(dataDir, 0755)
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to scgdemo config file (optional)")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "directory for scenario fixture files (defaults to demo.data_dir)")
}
