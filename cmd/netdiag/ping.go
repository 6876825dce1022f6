package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/hakim/netdiag/internal/latency"
	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping <host>",
	Short: "Approximate ping with timed HTTPS HEAD requests",
	Long: `Measure round-trip time to a host by sending sequential HTTPS HEAD requests.

ICMP needs raw sockets, so each "packet" is one HEAD request to https://host.
Any HTTP response counts as received; timeouts and connection errors count as
lost. Times include TLS setup and are higher than a real ICMP ping.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := latencyOptions()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("count") {
			opts.Count, _ = cmd.Flags().GetInt("count")
		}
		if opts.Count <= 0 {
			opts.Count = latency.DefaultCount
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		fmt.Printf("[*] HEAD https://%s, %d request(s)\n", args[0], opts.Count)
		result, err := latency.Ping(ctx, args[0], opts)
		if err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}

		for i, ms := range result.Times {
			fmt.Printf("    seq=%d time=%.2f ms\n", i+1, ms)
		}

		fmt.Println()
		fmt.Printf("--- %s ping statistics ---\n", result.Host)
		fmt.Printf("%d sent, %d received, %.1f%% loss\n",
			result.Packets, result.Received, result.LossPercentage)
		if result.Received > 0 {
			fmt.Printf("min/avg/max = %.2f/%.2f/%.2f ms\n", result.MinTime, result.AvgTime, result.MaxTime)
		}
		return nil
	},
}

func init() {
	pingCmd.Flags().IntP("count", "c", latency.DefaultCount, "number of requests")
	rootCmd.AddCommand(pingCmd)
}
