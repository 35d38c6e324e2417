package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <address>",
	Short: "Resolve one address through the cached geocoder",
	Long: `Resolve one address the way a crawl would: the same query variants, the same
cache file and the same rate limit. A successful lookup is saved to the cache.

Use --city and --region to add the locality and region slugs a crawl would
pass along with the address.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// A one-off lookup always talks to the provider.
		cfg.Geocode.Enabled = true
		if err := cfg.Validate("geocode"); err != nil {
			return err
		}

		city, _ := cmd.Flags().GetString("city")
		region, _ := cmd.Flags().GetString("region")
		address := strings.TrimSpace(args[0])
		if address == "" {
			return eris.New("geocode: address is empty")
		}

		geo := newGeocoder(cfg)
		loaded := geo.Load()
		zap.L().Debug("geocode cache loaded", zap.Int("entries", loaded))

		out := cmd.OutOrStdout()
		for _, q := range geo.BuildQueries(address, city, region) {
			_, _ = fmt.Fprintf(out, "query: %s\n", q)
		}

		pt := geo.Resolve(ctx, address, city, region)
		if err := geo.Save(); err != nil {
			return eris.Wrap(err, "geocode: save cache")
		}
		if pt == nil {
			return eris.Errorf("geocode: no result for %q", address)
		}

		_, _ = fmt.Fprintf(out, "%.6f, %.6f\n", pt.Lat(), pt.Lon())
		return nil
	},
}

func init() {
	geocodeCmd.Flags().String("city", "", "locality slug appended to the queries")
	geocodeCmd.Flags().String("region", "", "region slug appended to the queries")
	rootCmd.AddCommand(geocodeCmd)
}
