package main

import (
	"fmt"

	"github.com/hakim/netdiag/internal/models"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show detection history for an IP address",
	Long: `Display a formatted table of past detections for an IP address.

Detections are listed newest-first. Each row shows the record ID (truncated),
detection time, category, risk score, threat level and where the result came
from. DNS leak checks have no subject address and are stored under "local".

Without --ip, the subjects that have stored history are listed instead.

Use --limit to cap the number of rows shown (default: 10).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Step 1: Get flags
		ip, _ := cmd.Flags().GetString("ip")
		categoryFlag, _ := cmd.Flags().GetString("category")
		limit, _ := cmd.Flags().GetInt("limit")

		var category models.Category
		if categoryFlag != "" {
			c, ok := models.ParseCategory(categoryFlag)
			if !ok {
				return fmt.Errorf("unknown category %q", categoryFlag)
			}
			category = c
		}

		// Step 2: Config check
		if cfg == nil {
			return fmt.Errorf("config not loaded. Run 'netdiag init' first to create config")
		}

		// Step 3: Open bbolt store
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if ip == "" {
			subjects, err := store.Subjects()
			if err != nil {
				return fmt.Errorf("listing subjects: %w", err)
			}
			if len(subjects) == 0 {
				fmt.Println("No detection history yet. Run 'netdiag detect' first.")
				return nil
			}
			fmt.Println("Subjects with stored history:")
			for _, s := range subjects {
				fmt.Printf("  %s\n", s)
			}
			return nil
		}

		// Step 4: List records (sorted newest-first by store.ListDetections)
		records, err := store.ListDetections(ip, category)
		if err != nil {
			return fmt.Errorf("listing detections for %s: %w", ip, err)
		}

		if len(records) == 0 {
			fmt.Printf("No detection history found for %s\n", ip)
			return nil
		}

		// Step 5: Apply limit
		if limit > 0 && len(records) > limit {
			records = records[:limit]
		}

		// Step 6: Print formatted table
		const separator = "────────────────────────────────────────────────────────────────────────────"

		fmt.Printf("\nDetection History for %s\n", ip)
		fmt.Println(separator)
		fmt.Printf("  %-3s  %-12s  %-17s  %-9s  %-5s  %-8s  %s\n", "#", "Record ID", "Detected", "Category", "Risk", "Level", "Source")
		fmt.Println(separator)

		for i, rec := range records {
			detected := rec.DetectedAt.UTC().Format("2006-01-02 15:04")
			risk, level, source := "-", "-", "-"
			if rec.Result != nil {
				risk = fmt.Sprintf("%d", rec.Result.RiskScore)
				level = string(rec.Result.ThreatLevel)
				source = formatSource(rec.Result)
			}

			fmt.Printf("  %-3d  %-12s  %-17s  %-9s  %-5s  %-8s  %s\n",
				i+1, shortID(rec.ID), detected, rec.Category, risk, level, source)
		}

		fmt.Println(separator)
		fmt.Printf("Total: %d detection(s)\n\n", len(records))

		return nil
	},
}

// formatSource combines the data source with the provider that answered.
// Returns just the data source when no provider is recorded.
func formatSource(r *models.DetectionResult) string {
	if r.Provider == "" || r.Provider == models.Unknown {
		return string(r.DataSource)
	}
	return fmt.Sprintf("%s (%s)", r.DataSource, r.Provider)
}

func init() {
	historyCmd.Flags().String("ip", "", "IP address to show (\"local\" for DNS leak checks)")
	historyCmd.Flags().String("category", "", "Only show one category: dns-leak, purity or privacy")
	historyCmd.Flags().Int("limit", 10, "Maximum number of detections to display")
	rootCmd.AddCommand(historyCmd)
}
