package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "presenced",
		Short: "presenced - Capture presence daemon for OBS window capture",
		Long: `presenced watches the capture sources of a running OBS instance and
decides, every 200ms, whether any of them targets the application
currently in the foreground. The aggregate "presence" signal is
published over a WebSocket the moment it flips.

Features:
  • Track OBS window capture sources over obs-websocket
  • Frontmost application detection on macOS, Windows and X11
  • Manual capture override for Wayland sessions
  • Edge-triggered presence events over WebSocket
  • REST API for state queries and control`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/presenced/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "daemon port (default is 8099)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	// Bind flags to viper
	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
