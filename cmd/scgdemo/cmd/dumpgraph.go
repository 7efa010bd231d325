package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/perf-analysis/internal/demoscenarios"
	"github.com/perf-analysis/pkg/writer"
)

var dumpGraphCmd = &cobra.Command{
	Use:   "dump-graph [chain|branch|loop|lsm|drain]",
	Short: "Build one of the bundled scenario graphs and print its structure as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, g, graphID, err := demoscenarios.BuildNamed(logger, args[0], backendOpts())
		if err != nil {
			return err
		}
		defer api.Close()

		dump := demoscenarios.DumpGraph(graphID, g)
		w := writer.NewPrettyJSONWriter[demoscenarios.GraphDump]()
		if err := w.Write(dump, os.Stdout); err != nil {
			return fmt.Errorf("write graph dump: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpGraphCmd)
}
