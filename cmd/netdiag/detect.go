package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hakim/netdiag/internal/models"
	"github.com/hakim/netdiag/internal/pipeline"
	"github.com/hakim/netdiag/internal/report"
	"github.com/hakim/netdiag/internal/storage"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect [dns-leak|purity|privacy|all]...",
	Short: "Run one or more detection categories",
	Long: `Run detection categories against an IP address (default: your own).

Each category asks its configured sources in order and stops at the first one
that answers. When none answer, offline heuristics produce the result, so a
detection always completes.

  dns-leak  which resolvers answer your DNS queries, and whether they leak
  purity    reputation of the address (abuse reports, hosting, blacklists)
  privacy   whether the address looks like a proxy, VPN or Tor exit

Categories can be selected as arguments, via --preset, or trimmed with --skip.
Every result is stored so 'netdiag history' and 'netdiag diff' work across runs.

Examples:
  netdiag detect
  netdiag detect dns-leak
  netdiag detect purity privacy --ip 1.1.1.1
  netdiag detect --preset full
  netdiag detect all --skip dns-leak --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// ── 1. Read all flags ──────────────────────────────────────────────────
		ip, _ := cmd.Flags().GetString("ip")
		presetName, _ := cmd.Flags().GetString("preset")
		skipFlag, _ := cmd.Flags().GetString("skip")
		writeReport, _ := cmd.Flags().GetBool("report")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		webhookURL, _ := cmd.Flags().GetString("notify-webhook")
		scopeFlag, _ := cmd.Flags().GetString("scope")
		asJSON, _ := cmd.Flags().GetBool("json")

		// ── 2. Config check ────────────────────────────────────────────────────
		if cfg == nil {
			return fmt.Errorf("config not loaded. Run 'netdiag init' first to create config")
		}

		// ── 3. Apply preset (arguments override preset values) ────────────────
		var categories []models.Category
		if presetName != "" {
			preset, err := pipeline.GetPreset(presetName)
			if err != nil {
				return err
			}
			progress(asJSON, "[*] Using preset: %s (%s)\n", preset.Name, preset.Description)

			categories = preset.Categories
			if !cmd.Flags().Changed("report") {
				writeReport = preset.Report
			}
		}

		if len(args) > 0 {
			parsed, err := parseCategories(args)
			if err != nil {
				return err
			}
			categories = parsed
		}

		var skip []models.Category
		if skipFlag != "" {
			parsed, err := parseCategories(splitCSV(skipFlag))
			if err != nil {
				return fmt.Errorf("--skip: %w", err)
			}
			skip = parsed
		}

		// ── 4. Scope ───────────────────────────────────────────────────────────
		scope := &pipeline.ScopeConfig{
			AllowedCIDRs: append(append([]string(nil), cfg.Scope.AllowedCIDRs...), splitCSV(scopeFlag)...),
		}
		if ip != "" {
			if err := scope.ValidateIP(ip); err != nil {
				return fmt.Errorf("scope check failed: %w", err)
			}
			if len(scope.AllowedCIDRs) > 0 {
				progress(asJSON, "[*] Scope validated: %s is in scope\n", ip)
			}
		}

		// ── 5. Open store and engine ───────────────────────────────────────────
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		// ── 6. Build SessionConfig ─────────────────────────────────────────────
		sessionCfg := pipeline.SessionConfig{
			Subject:    ip,
			Categories: categories,
			Skip:       skip,
			Scope:      scope,
			Timeout:    timeout,
			Logger:     logger,
			OnCategoryStart: func(category models.Category) {
				progress(asJSON, "[*] %s: checking...\n", category)
			},
			OnCategoryDone: func(category models.Category, res *models.DetectionResult, err error, elapsed time.Duration) {
				if err != nil {
					progress(asJSON, "[!] %s: FAILED (%s)\n", category, elapsed.Round(time.Millisecond))
					return
				}
				progress(asJSON, "[+] %s: risk %d/100 (%s) via %s (%s)\n",
					category, res.RiskScore, res.ThreatLevel, res.Provider, elapsed.Round(time.Millisecond))
			},
		}

		// ── 7. Run the session ─────────────────────────────────────────────────
		target := ip
		if target == "" {
			target = "this connection"
		}
		progress(asJSON, "[*] Starting detection for %s\n", target)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := pipeline.RunSession(ctx, sessionCfg, engine, store)
		if err != nil {
			return fmt.Errorf("detection failed: %w", err)
		}

		// ── 8. Markdown report ─────────────────────────────────────────────────
		var reportPath string
		if writeReport {
			if err := storage.EnsureDir(cfg.ReportDir); err != nil {
				return fmt.Errorf("creating report directory: %w", err)
			}
			reportPath = storage.ReportPath(cfg.ReportDir, result.Subject, result.Session.StartedAt)
			if err := report.WriteSessionReport(result.Session, result.Results, reportPath); err != nil {
				fmt.Fprintf(os.Stderr, "[!] Warning: %v\n", err)
				reportPath = ""
			}
		}

		// ── 9. Webhook notification (non-fatal) ────────────────────────────────
		if webhookURL == "" {
			webhookURL = cfg.Notify.WebhookURL
		}
		if webhookURL != "" {
			notifyCfg := pipeline.NotifyConfig{WebhookURL: webhookURL}
			if notifyErr := notifyCfg.SendCompletion(result); notifyErr != nil {
				fmt.Fprintf(os.Stderr, "[!] Warning: webhook notification failed: %v\n", notifyErr)
			} else {
				progress(asJSON, "[+] Completion notification sent to %s\n", webhookURL)
			}
		}

		// ── 10. Print results ──────────────────────────────────────────────────
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		fmt.Println()
		for _, r := range result.Results {
			printResult(r)
		}

		fmt.Printf("[+] Detection complete!\n")
		fmt.Printf("    Subject:   %s\n", result.Subject)
		fmt.Printf("    Session:   %s\n", result.SessionID)
		fmt.Printf("    Status:    %s\n", result.Status)
		fmt.Printf("    Elapsed:   %s\n", result.Elapsed.Round(time.Millisecond))
		if reportPath != "" {
			fmt.Printf("    Report:    %s\n", reportPath)
		}

		if len(result.Errors) > 0 {
			fmt.Println()
			fmt.Println("[!] Category errors:")
			for category, errMsg := range result.Errors {
				fmt.Printf("    %-10s %s\n", category+":", errMsg)
			}
		}

		return nil
	},
}

func init() {
	detectCmd.Flags().String("ip", "", "IP address to check (default: your public address)")
	detectCmd.Flags().String("preset", "", "Named preset: "+strings.Join(pipeline.PresetNames(), ", "))
	detectCmd.Flags().String("skip", "", "Comma-separated categories to skip")
	detectCmd.Flags().Bool("report", false, "Write a markdown report to the report directory")
	detectCmd.Flags().Duration("timeout", 2*time.Minute, "Total detection timeout")
	detectCmd.Flags().String("notify-webhook", "", "HTTP webhook URL to POST a completion summary to (overrides config)")
	detectCmd.Flags().String("scope", "", "Comma-separated allowed CIDRs, added to scope.allowed_cidrs")
	detectCmd.Flags().Bool("json", false, "Print the session result as JSON")

	rootCmd.AddCommand(detectCmd)
}

// progress prints a status line unless JSON output was requested
func progress(quiet bool, format string, a ...any) {
	if quiet {
		return
	}
	fmt.Printf(format, a...)
}

// printResult renders one category result as an indented block
func printResult(r *models.DetectionResult) {
	fmt.Printf("── %s ──\n", r.Category)
	if r.IP != "" {
		fmt.Printf("    IP:        %s\n", r.IP)
	}
	fmt.Printf("    Risk:      %d/100 (%s)\n", r.RiskScore, r.ThreatLevel)
	fmt.Printf("    Privacy:   %d/100\n", r.PrivacyScore)
	fmt.Printf("    Source:    %s (%s)\n", r.DataSource, r.Provider)

	switch r.Category {
	case models.CategoryDNSLeak:
		fmt.Printf("    Leaking:   %s\n", yesNo(r.IsLeaking))
		fmt.Printf("    Resolvers: %s\n", strings.Join(r.DNSServers, ", "))
	case models.CategoryPurity:
		fmt.Printf("    Location:  %s (%s)\n", r.Location, r.ISP)
		fmt.Printf("    Listed:    %s, abuse history: %s, reports: %d\n",
			yesNo(r.IsListed), yesNo(r.HasAbuseHistory), r.TotalReports)
	case models.CategoryPrivacy:
		fmt.Printf("    Location:  %s (%s)\n", r.Location, r.ISP)
		fmt.Printf("    Proxy:     %s, VPN: %s, Tor: %s\n", yesNo(r.UsingProxy), yesNo(r.UsingVPN), yesNo(r.UsingTor))
	}

	for _, t := range r.Threats {
		fmt.Printf("    [!] %s: %s\n", t.Type, t.Description)
	}
	fmt.Printf("    %s\n\n", r.Explanation)
}
