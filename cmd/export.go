package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/codefornorway/civic-scrapers/internal/export"
	"github.com/codefornorway/civic-scrapers/internal/geoscraper"
)

var exportCmd = &cobra.Command{
	Use:   "export [org]",
	Short: "Convert a written record set to GeoJSON, XLSX or Shapefile",
	Long: `Convert a record set written by "scrape" into another format.

The input defaults to the record file "scrape" writes for the organization
and the output to the same path with the format's extension. GeoJSON and
Shapefile exports skip records without coordinates.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("export"); err != nil {
			return err
		}

		formatStr, _ := cmd.Flags().GetString("format")
		format, err := export.ParseFormat(formatStr)
		if err != nil {
			return err
		}

		input, _ := cmd.Flags().GetString("input")
		if input == "" {
			reg, err := buildRegistry(cfg.Sites.ProfilesPath)
			if err != nil {
				return err
			}
			s, err := reg.Get(orgArg(args))
			if err != nil {
				return err
			}
			input = filepath.Join(cfg.Crawl.OutputDir, s.OutputName()+".json")
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = exportPath(input, format)
		}

		locs, err := geoscraper.ReadRecords(input)
		if err != nil {
			return eris.Wrap(err, "export")
		}

		n, err := export.Write(format, output, locs)
		if err != nil {
			return eris.Wrap(err, "export")
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d of %d records to %s\n", n, len(locs), output)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", string(export.GeoJSON), "output format: geojson, xlsx, shp")
	exportCmd.Flags().String("input", "", "record set to convert (default: the file scrape writes for org)")
	exportCmd.Flags().String("output", "", "destination file (default input path with the format's extension)")
	rootCmd.AddCommand(exportCmd)
}

// exportPath swaps the input's extension for the format's.
func exportPath(input string, f export.Format) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + f.Ext()
}
