package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var ipCmd = &cobra.Command{
	Use:   "ip [address]",
	Short: "Show your public IP address and where it is located",
	Long: `Resolve your public IP address (or use the given one) and look up its
location and ISP.

The public address comes from the first of several "what is my IP" services
that answers. Location comes from the configured geo sources, then the offline
GeoIP database when one is configured.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		ctx := context.Background()

		var ip string
		if len(args) == 1 {
			ip = args[0]
		} else {
			ip, err = engine.CurrentIP(ctx)
			if err != nil {
				return fmt.Errorf("resolving public IP: %w", err)
			}
		}

		info := engine.IPInfo(ctx, ip)

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "IP:\t%s\n", info.IP)
		fmt.Fprintf(w, "Country:\t%s (%s)\n", info.Country, info.CountryCode)
		fmt.Fprintf(w, "Region:\t%s\n", info.Region)
		fmt.Fprintf(w, "City:\t%s\n", info.City)
		fmt.Fprintf(w, "ISP:\t%s\n", info.ISP)
		fmt.Fprintf(w, "Timezone:\t%s\n", info.Timezone)
		fmt.Fprintf(w, "Source:\t%s\n", info.Source)
		return w.Flush()
	},
}

func init() {
	ipCmd.Flags().Bool("json", false, "print as JSON")
	rootCmd.AddCommand(ipCmd)
}
