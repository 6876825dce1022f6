package main

import (
	"fmt"

	"github.com/hakim/netdiag/internal/diff"
	"github.com/hakim/netdiag/internal/models"
	"github.com/hakim/netdiag/internal/report"
	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare the two latest detections for an IP address",
	Long: `Compare the most recent detection of a category against the one before it.

Reports the risk score delta, threat level change, new and resolved threats,
DNS resolvers that appeared or went away, and indicators that flipped (leaking,
listed, proxy, VPN, Tor).

Use --output to write the comparison as a markdown file instead of printing it.

Examples:
  netdiag diff --ip 203.0.113.5 --category purity
  netdiag diff --category dns-leak
  netdiag diff --ip 203.0.113.5 --category privacy -o privacy-diff.md`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Step 1: Get flags
		ip, _ := cmd.Flags().GetString("ip")
		categoryFlag, _ := cmd.Flags().GetString("category")
		output, _ := cmd.Flags().GetString("output")

		category, ok := models.ParseCategory(categoryFlag)
		if !ok {
			return fmt.Errorf("unknown category %q (expected dns-leak, purity or privacy)", categoryFlag)
		}
		subject := models.SubjectKey(ip)

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

		// Step 4: Find the two latest records
		records, err := store.ListDetections(subject, category)
		if err != nil {
			return fmt.Errorf("listing detections for %s: %w", subject, err)
		}
		if len(records) == 0 {
			fmt.Printf("[!] No %s detections found for %s\n", category, subject)
			return nil
		}
		if len(records) == 1 {
			fmt.Printf("[!] Only one %s detection found for %s, nothing to compare yet\n", category, subject)
			return nil
		}

		current, previous := records[0], records[1]
		fmt.Printf("[*] Current:  %s (%s)\n", shortID(current.ID), current.DetectedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("[*] Previous: %s (%s)\n", shortID(previous.ID), previous.DetectedAt.Format("2006-01-02 15:04:05"))

		// Step 5: Compute diff
		result, err := diff.Compute(current, previous)
		if err != nil {
			return fmt.Errorf("computing diff: %w", err)
		}

		// Step 6: Write or print the markdown
		if output != "" {
			if err := report.WriteDiffReport(result, output); err != nil {
				return err
			}
			fmt.Printf("[+] Diff report written to %s\n", output)
		} else {
			fmt.Println()
			fmt.Print(report.RenderDiff(result))
		}

		// Step 7: Print summary
		fmt.Println()
		if !result.HasChanges() {
			fmt.Printf("[+] No changes since the previous detection\n")
			return nil
		}
		fmt.Printf("[+] Diff complete!\n")
		fmt.Printf("    Risk:      %d -> %d\n", result.PreviousRisk, result.CurrentRisk)
		fmt.Printf("    Threats:   +%d new, -%d resolved\n", len(result.NewThreats), len(result.ResolvedThreats))
		if category == models.CategoryDNSLeak {
			fmt.Printf("    Resolvers: +%d added, -%d removed\n", len(result.AddedServers), len(result.RemovedServers))
		}
		if len(result.FlagChanges) > 0 {
			fmt.Printf("    Flags:     %d changed\n", len(result.FlagChanges))
		}

		return nil
	},
}

func init() {
	diffCmd.Flags().String("ip", "", "IP address to compare (empty for DNS leak checks)")
	diffCmd.Flags().String("category", "", "Category to compare: dns-leak, purity or privacy (required)")
	diffCmd.Flags().StringP("output", "o", "", "Write the diff as markdown to this file")
	diffCmd.MarkFlagRequired("category")
	rootCmd.AddCommand(diffCmd)
}
