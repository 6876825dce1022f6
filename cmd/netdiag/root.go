package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hakim/netdiag/internal/config"
	"github.com/hakim/netdiag/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	cfg       *config.Config
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "netdiag",
	Short: "DNS leak, IP purity and privacy diagnostics",
	Long: `netdiag checks how your connection looks from the outside.

It detects DNS leaks, scores the reputation ("purity") of an IP address and
reports whether an address looks like a proxy, VPN or Tor exit. Every check
asks a chain of public data sources in order and falls back to offline
heuristics when none of them answer, so a result is always produced.

Results are cached per category, stored in a local database and can be
compared over time with 'netdiag diff'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for commands that don't need it
		skipConfig := map[string]bool{
			"init":       true,
			"help":       true,
			"version":    true,
			"completion": true,
		}

		if skipConfig[cmd.Name()] {
			logger = logging.Setup(levelFlag("info"), logFormat)
			return nil
		}

		// An explicit --config must exist; the default path is optional
		var err error
		if _, statErr := os.Stat(cfgFile); statErr == nil || cmd.Flags().Changed("config") {
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
		} else if errors.Is(statErr, os.ErrNotExist) {
			cfg = config.DefaultConfig()
		} else {
			return fmt.Errorf("checking config file: %w", statErr)
		}

		format := cfg.Log.Format
		if cmd.Flags().Changed("log-format") {
			format = logFormat
		}
		logger = logging.Setup(levelFlag(cfg.Log.Level), format)
		return nil
	},
}

// levelFlag lets --verbose override the configured level
func levelFlag(configured string) string {
	if verbose {
		return "debug"
	}
	return configured
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "netdiag.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose (debug) logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	// Version flag
	rootCmd.Version = "0.1.0-dev"
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
