package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nebulouslabs/blockserver/persist"
	"github.com/nebulouslabs/blockserver/server"
	"github.com/nebulouslabs/blockserver/session"
	"github.com/nebulouslabs/blockserver/world/generate"
)

var logPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start serving connections until interrupted",
	RunE:  runServe,
}

func init() {
	runCmd.Flags().StringVar(&logPath, "log", "serverd.log", "path to the server log file")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	settings, err := persist.Load(configPath)
	if err != nil {
		return err
	}

	log, err := persist.NewLogger(logPath)
	if err != nil {
		return err
	}
	defer log.Close()

	data := persist.NewMemoryDataProvider(log)

	registry := generate.NewRegistry()
	registry.RegisterDefaultGenerator(0, generate.FlatGenerator{
		Layers: []generate.FlatLayer{
			{Height: 1, BlockID: 7}, // bedrock
			{Height: 3, BlockID: 3}, // dirt
			{Height: 1, BlockID: 2}, // grass
		},
		Biome: 1,
	})
	registry.RegisterPopulator(0, generate.NoopPopulator{})

	srv, err := server.New(server.Config{
		Settings: settings,
		Data:     data,
		Registry: registry,
		Log:      log,
		PanicHook: func(recovered interface{}) {
			log.WithField("recovered", recovered).Error("fatal panic, aborting")
		},
	})
	if err != nil {
		return err
	}

	session.RegisterHandlers(srv.Router())

	if err := srv.Start(); err != nil {
		return err
	}
	log.WithField("binds", settings.Binds).Info("serverd is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received")
	return srv.Shutdown()
}
