package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nebulouslabs/blockserver/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the serverd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("serverd %s (protocol %d, %s build, rev %s, %s, %s/%s, %s)\n",
			build.Version, build.ProtocolVersion, build.Release, build.GitRevision,
			build.BuildTime, runtime.GOOS, runtime.GOARCH, runtime.Version())
	},
}
