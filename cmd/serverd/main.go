// Command serverd runs the block server: it loads configuration, wires
// the connection handler, world, and worker pool together via
// server.Server, and serves until interrupted.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "serverd",
	Short: "serverd runs the block server core runtime",
	Long: `serverd hosts the connection handler, protocol router, column
store, and worker pool that make up the block server core. Run "serverd
run" to start serving, or "serverd version" to print build info.`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to a config file (falls back to BLOCKSERVER_ env vars and defaults)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
