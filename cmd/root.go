package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codefornorway/civic-scrapers/internal/config"
	"github.com/codefornorway/civic-scrapers/internal/geoscraper"
	"github.com/codefornorway/civic-scrapers/internal/site"
)

// Exit statuses.
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitInterrupted = 130
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "civic-scrapers",
	Short: "Crawl civic support organizations into geocoded location records",
	Long: `Crawls an organization's hierarchy of regional and local chapter pages,
extracts one record per local chapter, geocodes addresses through a cached,
rate-limited Nominatim client and writes the result set as JSON.

The written record set can be converted to GeoJSON, XLSX or Shapefile and
served through a small read-only HTTP API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, geoscraper.ErrInterrupted):
		return exitInterrupted
	case errors.Is(err, site.ErrUnknownSite):
		return exitUsage
	default:
		return exitFailure
	}
}

func main() {
	err := rootCmd.Execute()
	_ = zap.L().Sync()
	os.Exit(exitCode(err))
}
