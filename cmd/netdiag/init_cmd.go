package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hakim/netdiag/internal/config"
	"github.com/hakim/netdiag/internal/storage"
	"github.com/spf13/cobra"
)

var (
	initForce bool
	initDir   string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize netdiag with default configuration",
	Long: `Creates a default configuration file (netdiag.yaml), the report directory,
and the database used to store detection history.

The generated file lists every data source per category in probe order.
Sources that need an API key (AbuseIPDB, whoer) are listed but only used
once a key is filled in.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := filepath.Join(initDir, "netdiag.yaml")

		// Check if config already exists
		if _, err := os.Stat(configPath); err == nil && !initForce {
			return fmt.Errorf("config file already exists at %s. Use --force to overwrite", configPath)
		}

		// Create default config
		if err := config.WriteDefault(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		fmt.Printf("Created %s with default configuration\n", configPath)

		// Load the config we just created to get paths
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Create report directory
		if err := storage.EnsureDir(loaded.ReportDir); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
		fmt.Printf("Created report directory: %s\n", loaded.ReportDir)

		// Initialize database
		store, err := storage.NewStore(loaded.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()
		fmt.Printf("Initialized database: %s\n", loaded.DBPath)

		// Print success message
		fmt.Println()
		fmt.Println("netdiag initialized successfully!")
		fmt.Println("Run 'netdiag check' to review your data sources.")

		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing config file")
	initCmd.Flags().StringVar(&initDir, "dir", ".", "output directory")
	rootCmd.AddCommand(initCmd)
}
