package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/codefornorway/civic-scrapers/internal/site"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List the organizations that can be scraped",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := buildRegistry(cfg.Sites.ProfilesPath)
		if err != nil {
			return err
		}
		printSites(cmd.OutOrStdout(), reg.All())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sitesCmd)
}

func printSites(out io.Writer, sites []site.Site) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tORGANIZATION\tINDEX\tOUTPUT")
	_, _ = fmt.Fprintln(w, "----\t------------\t-----\t------")
	for _, s := range sites {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s.json\n", s.Name(), s.Organization(), s.IndexURL(), s.OutputName())
	}
	_ = w.Flush()
}
