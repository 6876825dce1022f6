package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/hakim/netdiag/internal/config"
	"github.com/hakim/netdiag/internal/models"
	"github.com/hakim/netdiag/internal/probe"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the configured data sources",
	Long: `List every configured data source per category in probe order, with its
status: ready, disabled, or missing key.

With --live each ready source is queried once (against 8.8.8.8, or the DNS
leak test domain for DoH resolvers) and the outcome and latency are shown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		live, _ := cmd.Flags().GetBool("live")
		subject, _ := cmd.Flags().GetString("subject")

		reports := cfg.CheckSources()

		var opts probe.Options
		if live {
			client, err := probe.NewHTTPClient(cfg.Network.SOCKS5)
			if err != nil {
				return fmt.Errorf("creating http client: %w", err)
			}
			opts = probe.Options{Client: client, Logger: logger, UserAgent: cfg.Network.UserAgent}
		}

		// Create table writer
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		if live {
			fmt.Fprintln(w, "Category\tSource\tProvider\tStatus\tLive\tTime")
			fmt.Fprintln(w, "--------\t------\t--------\t------\t----\t----")
		} else {
			fmt.Fprintln(w, "Category\tSource\tProvider\tStatus")
			fmt.Fprintln(w, "--------\t------\t--------\t------")
		}

		ready := 0
		for _, r := range reports {
			if r.Status == config.StatusReady {
				ready++
			}
			if !live {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Category, r.Source.Name, r.Source.Provider, r.Status)
				continue
			}

			outcome, elapsed := "-", "-"
			if r.Status == config.StatusReady {
				outcome, elapsed = liveCheck(cmd.Context(), r.Source, subject, opts)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.Category, r.Source.Name, r.Source.Provider, r.Status, outcome, elapsed)
		}

		w.Flush()

		// Print summary
		fmt.Println()
		fmt.Printf("Summary: %d/%d sources ready\n", ready, len(reports))
		if ready == 0 {
			fmt.Println("[!] Warning: no source is ready; every check will use local detection")
		}

		return nil
	},
}

// liveCheck queries one source and reports ok/absent with elapsed time
func liveCheck(ctx context.Context, src config.SourceConfig, subject string, opts probe.Options) (string, string) {
	p, err := probe.Build(src, opts)
	if err != nil {
		return "error", "-"
	}
	target := subject
	if p.Kind() == models.KindDoH {
		target = cfg.DNSLeak.TestDomain
	}

	start := time.Now()
	res, ok := p.Fetch(ctx, target)
	elapsed := time.Since(start).Round(time.Millisecond).String()
	if !ok {
		return "absent", elapsed
	}
	if len(res.Servers) > 0 {
		return fmt.Sprintf("ok (%d server(s))", len(res.Servers)), elapsed
	}
	return "ok", elapsed
}

func init() {
	checkCmd.Flags().Bool("live", false, "query every ready source once")
	checkCmd.Flags().String("subject", "8.8.8.8", "address used for live IP lookups")
	rootCmd.AddCommand(checkCmd)
}
