// Command logstage runs the log staging server and inspects staged files.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "logstage",
		Short:         "Local write buffering for log ingestion",
		Long:          "logstage accepts Arrow IPC log batches over HTTP and stages them as one file per stream and schema until they are flushed.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newInspectCmd())
	return rootCmd
}
