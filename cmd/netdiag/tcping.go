package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/hakim/netdiag/internal/latency"
	"github.com/hakim/netdiag/internal/models"
	"github.com/spf13/cobra"
)

var tcpingCmd = &cobra.Command{
	Use:   "tcping <host>",
	Short: "Approximate TCP port checks with HTTPS HEAD requests",
	Long: `Check which ports on a host accept connections.

Each port is probed with an HTTPS HEAD request to host:port. Any response, or a
TLS/protocol error after connecting, means open. A refused connection means
closed. A timeout means filtered.

Without --ports a list of common service ports is checked.

Examples:
  netdiag tcping example.com
  netdiag tcping example.com --ports 22,80,443,8000-8010`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		portsFlag, _ := cmd.Flags().GetString("ports")

		ports, err := latency.ParsePorts(portsFlag)
		if err != nil {
			return fmt.Errorf("--ports: %w", err)
		}

		opts, err := latencyOptions()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		count := len(ports)
		if count == 0 {
			count = len(latency.CommonPorts)
		}
		fmt.Printf("[*] Checking %d port(s) on %s\n\n", count, args[0])

		results, err := latency.TCPing(ctx, args[0], ports, opts)
		if err != nil {
			return fmt.Errorf("tcping failed: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "Port\tService\tStatus\tTime")
		fmt.Fprintln(w, "----\t-------\t------\t----")

		open := 0
		for _, r := range results {
			elapsed := "-"
			if r.Status == models.PortOpen {
				open++
				elapsed = fmt.Sprintf("%.2f ms", r.ResponseTimeMs)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.Port, r.ServiceName, r.Status, elapsed)
		}
		w.Flush()

		fmt.Println()
		fmt.Printf("Summary: %d/%d open\n", open, len(results))
		return nil
	},
}

func init() {
	tcpingCmd.Flags().String("ports", "", "comma-separated ports or ranges (default: common ports)")
	rootCmd.AddCommand(tcpingCmd)
}
