package main

import (
	"fmt"
	"os"

	"github.com/najoast/runtimeapi/config"
	"github.com/spf13/cobra"
)

const appName = "runtimeapi"

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Runtime API subsystem",
	Long: `runtimeapi serves runtime API queries about relay chain blocks from a
state snapshot, recording the outcome of every request.`,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	rootCmd.SilenceUsage = true
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (searched for when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

// loadConfig loads the configuration and applies the command line overrides.
// It also returns the file the configuration came from, empty for defaults.
func loadConfig() (*config.Config, string, error) {
	cfg, path, err := config.NewLoader().LoadWithPath(cfgFile)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = config.LogLevel(logLevel)
		if err := cfg.Validate(); err != nil {
			return nil, "", err
		}
	}
	return cfg, path, nil
}
