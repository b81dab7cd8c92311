package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crowdcast/presenced/internal/api"
	"github.com/crowdcast/presenced/internal/config"
	"github.com/crowdcast/presenced/internal/engine"
	"github.com/crowdcast/presenced/internal/logger"
	"github.com/crowdcast/presenced/internal/obsws"
	"github.com/crowdcast/presenced/internal/probe"
	"github.com/crowdcast/presenced/internal/registry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the presence daemon",
	Long: `Start the presenced daemon: connect to OBS, mirror its capture
sources, poll the frontmost application and serve presence state over
the REST/WebSocket API.`,
	Example: `  # Start daemon on default port (8099)
  presenced serve

  # Start daemon on custom port
  presenced serve --port 9099

  # Start with specific config file
  presenced serve --config /path/to/config.yaml

  # Start with debug logging
  presenced serve --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to initialize config manager: %w", err)
	}

	// Override port from flag if provided
	if viper.IsSet("server_port") {
		if port := viper.GetInt("server_port"); port > 0 {
			configMgr.SetPort(port)
		}
	}

	// Override log level from flag if provided
	if viper.IsSet("log_level") {
		if logLevel := viper.GetString("log_level"); logLevel != "" {
			configMgr.SetLogLevel(logLevel)
		}
	}

	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, true)
	log := logger.WithComponent("serve")
	log.Info().Str("path", configMgr.GetConfigPath()).Msg("Configuration loaded")

	prb := probe.New()
	defer prb.Close()
	log.Info().Str("probe", prb.Name()).Msg("Platform probe ready")

	reg := registry.New(cfg.MaxTrackedSources)
	eng := engine.New(reg, prb, engine.Options{
		PollInterval:  time.Duration(cfg.PollIntervalMs) * time.Millisecond,
		ManualCapture: cfg.ManualCapture,
	})
	eng.Start()

	obsClient := obsws.New(cfg.OBS.Host, cfg.OBS.Port, cfg.OBS.Password)
	obsClient.Start()
	eng.Attach(obsClient.Events())

	server := api.NewServer(eng, obsClient, prb.Name())
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.ServerPort)
	}()

	log.Info().Int("port", cfg.ServerPort).Msg("presenced is running, press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("Shutting down")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("API server shutdown failed")
	}
	obsClient.Close()
	eng.Stop()
	return nil
}
