package main

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codefornorway/civic-scrapers/internal/config"
	"github.com/codefornorway/civic-scrapers/internal/discovery"
	"github.com/codefornorway/civic-scrapers/internal/fetcher"
	"github.com/codefornorway/civic-scrapers/internal/geoscraper"
	"github.com/codefornorway/civic-scrapers/internal/metrics"
	"github.com/codefornorway/civic-scrapers/internal/model"
	"github.com/codefornorway/civic-scrapers/internal/progress"
	"github.com/codefornorway/civic-scrapers/internal/scrape"
	"github.com/codefornorway/civic-scrapers/internal/site"
	"github.com/codefornorway/civic-scrapers/internal/store"
	"github.com/codefornorway/civic-scrapers/pkg/geocode"
)

const defaultOrg = "rodekors"

var scrapeCmd = &cobra.Command{
	Use:   "scrape [org]",
	Short: "Crawl an organization's local chapters into a JSON record set",
	Long: `Crawl an organization's region and locality pages and write one record per
locality to <output-dir>/<name>.json, where <name> is the
organization's output name ("rodekors-local" for rodekors).

The organization defaults to "rodekors". Run "civic-scrapers sites" for the
full list. Flags override the crawl and geocode sections of the config.

An interrupted run (SIGINT, SIGTERM) writes the records gathered so far to
<output-dir>/<name>.partial.json, saves the geocode cache and exits 130.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := applyScrapeFlags(cmd, cfg); err != nil {
			return err
		}
		if err := cfg.Validate("scrape"); err != nil {
			return err
		}

		reg, err := buildRegistry(cfg.Sites.ProfilesPath)
		if err != nil {
			return err
		}
		s, err := reg.Get(orgArg(args))
		if err != nil {
			return err
		}

		log := zap.L().With(zap.String("command", "scrape"), zap.String("site", s.Name()))

		f := newFetcher(cfg)
		geo := newGeocoder(cfg)
		disc := discovery.New(f, s, discovery.WithExclude(cfg.Crawl.ExcludePaths))
		ext := scrape.NewExtractor(f, s, geo)

		var crawlMetrics *metrics.Crawl
		reporters := []geoscraper.Reporter{progress.Stderr(s.Name())}
		if cfg.Crawl.MetricsFile != "" {
			crawlMetrics = metrics.NewCrawl(s.Name())
			reporters = append(reporters, crawlMetrics)
		}

		engineOpts := []geoscraper.Option{
			geoscraper.WithConcurrency(cfg.Crawl.Concurrency),
			geoscraper.WithSleep(cfg.Crawl.Sleep()),
			geoscraper.WithOutputDir(cfg.Crawl.OutputDir),
			geoscraper.WithGeocodeCache(geo),
			geoscraper.WithReporter(geoscraper.Reporters(reporters...)),
		}

		if cfg.Store.Driver != "" {
			st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			engineOpts = append(engineOpts, geoscraper.WithSink(st))
		}

		engine := geoscraper.NewEngine(s, disc, ext, engineOpts...)

		out := cmd.OutOrStdout()
		printOptions(out, s, cfg, engine.OutputPath())

		log.Info("starting scrape",
			zap.Int("concurrency", cfg.Crawl.Concurrency),
			zap.Bool("geocode", cfg.Geocode.Enabled),
		)

		summary, err := engine.Run(ctx, geoscraper.RunOpts{
			OnlyRegion:   cfg.Crawl.OnlyRegion,
			OnlyLocality: cfg.Crawl.OnlyLocality,
		})
		if summary != nil {
			printSummary(out, summary, geo.Stats())
		}
		if crawlMetrics != nil {
			if mErr := crawlMetrics.WriteTextfile(cfg.Crawl.MetricsFile); mErr != nil {
				log.Error("failed to write metrics file", zap.Error(mErr))
			}
		}
		if err != nil {
			return eris.Wrap(err, "scrape")
		}
		return nil
	},
}

func init() {
	f := scrapeCmd.Flags()
	f.Int("concurrency", 0, "parallel page extractions (default from config)")
	f.Duration("sleep", 0, "pause after each page, e.g. 300ms (default from config)")
	f.String("only-region", "", "restrict the crawl to one region slug")
	f.String("only-locality", "", "restrict the crawl to one locality slug")
	f.Bool("geocode", false, "geocode addresses when the page has no coordinates")
	f.Duration("geo-rate", 0, "pause after each geocoder call, e.g. 1.1s (default from config)")
	f.Int("max-geocodes", 0, "geocoder call budget for the run (default from config)")
	f.String("output-dir", "", "directory for the record files (default from config)")
	f.String("metrics-file", "", "write Prometheus textfile metrics for the run to this path")
	rootCmd.AddCommand(scrapeCmd)
}

// applyScrapeFlags copies explicitly set flags over the loaded config.
func applyScrapeFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("concurrency") {
		n, _ := flags.GetInt("concurrency")
		c.Crawl.Concurrency = n
	}
	if flags.Changed("sleep") {
		d, _ := flags.GetDuration("sleep")
		if d < 0 {
			return eris.New("scrape: --sleep must be >= 0")
		}
		c.Crawl.SleepMs = int(d / time.Millisecond)
	}
	if flags.Changed("only-region") {
		v, _ := flags.GetString("only-region")
		c.Crawl.OnlyRegion = strings.ToLower(strings.TrimSpace(v))
	}
	if flags.Changed("only-locality") {
		v, _ := flags.GetString("only-locality")
		c.Crawl.OnlyLocality = strings.ToLower(strings.TrimSpace(v))
	}
	if flags.Changed("geocode") {
		v, _ := flags.GetBool("geocode")
		c.Geocode.Enabled = v
	}
	if flags.Changed("geo-rate") {
		d, _ := flags.GetDuration("geo-rate")
		if d < 0 {
			return eris.New("scrape: --geo-rate must be >= 0")
		}
		c.Geocode.RateMs = int(d / time.Millisecond)
	}
	if flags.Changed("max-geocodes") {
		n, _ := flags.GetInt("max-geocodes")
		c.Geocode.MaxCalls = n
	}
	if flags.Changed("output-dir") {
		v, _ := flags.GetString("output-dir")
		c.Crawl.OutputDir = v
	}
	if flags.Changed("metrics-file") {
		v, _ := flags.GetString("metrics-file")
		c.Crawl.MetricsFile = v
	}
	return nil
}

func orgArg(args []string) string {
	if len(args) == 0 {
		return defaultOrg
	}
	org := strings.ToLower(strings.TrimSpace(args[0]))
	if org == "" {
		return defaultOrg
	}
	return org
}

// buildRegistry returns the built-in sites plus any profiles from path.
func buildRegistry(profilesPath string) (*site.Registry, error) {
	reg := site.DefaultRegistry()
	if profilesPath == "" {
		return reg, nil
	}
	if err := reg.RegisterProfiles(profilesPath); err != nil {
		return nil, eris.Wrapf(err, "load site profiles %s", profilesPath)
	}
	return reg, nil
}

func newFetcher(c *config.Config) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:         c.Crawl.UserAgent,
		Timeout:           c.Crawl.Timeout(),
		MaxAttempts:       c.Crawl.MaxAttempts,
		BaseDelay:         c.Crawl.Backoff(),
		RequestsPerSecond: c.Crawl.RequestsPerSecond,
	})
}

func newGeocoder(c *config.Config) *geocode.Geocoder {
	provider := geocode.NewNominatim(geocode.NominatimOptions{
		BaseURL:      c.Geocode.BaseURL,
		CountryCodes: c.Geocode.CountryCodes,
		UserAgent:    c.Crawl.UserAgent,
		Timeout:      c.Geocode.Timeout(),
	})
	return geocode.New(
		geocode.WithEnabled(c.Geocode.Enabled),
		geocode.WithRate(c.Geocode.Rate()),
		geocode.WithMaxCalls(c.Geocode.MaxCalls),
		geocode.WithProvider(provider),
		geocode.WithCache(geocode.NewCache(c.Geocode.CachePath)),
		geocode.WithCountry(c.Geocode.Country),
	)
}

// printOptions writes the runtime configuration table shown before a crawl.
func printOptions(out io.Writer, s site.Site, c *config.Config, outputPath string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Organization:\t%s (%s)\n", s.Organization(), s.Name())
	_, _ = fmt.Fprintf(w, "Index:\t%s\n", s.IndexURL())
	_, _ = fmt.Fprintf(w, "Concurrency:\t%d\n", c.Crawl.Concurrency)
	_, _ = fmt.Fprintf(w, "Sleep:\t%s\n", c.Crawl.Sleep())
	_, _ = fmt.Fprintf(w, "Only region:\t%s\n", orDash(c.Crawl.OnlyRegion))
	_, _ = fmt.Fprintf(w, "Only locality:\t%s\n", orDash(c.Crawl.OnlyLocality))
	_, _ = fmt.Fprintf(w, "Geocode:\t%t\n", c.Geocode.Enabled)
	if c.Geocode.Enabled {
		_, _ = fmt.Fprintf(w, "  Rate:\t%s\n", c.Geocode.Rate())
		_, _ = fmt.Fprintf(w, "  Max calls:\t%d\n", c.Geocode.MaxCalls)
		_, _ = fmt.Fprintf(w, "  Cache:\t%s\n", c.Geocode.CachePath)
	}
	_, _ = fmt.Fprintf(w, "Output:\t%s\n", outputPath)
	if c.Store.Driver != "" {
		_, _ = fmt.Fprintf(w, "Store:\t%s\n", c.Store.Driver)
	}
	if c.Crawl.MetricsFile != "" {
		_, _ = fmt.Fprintf(w, "Metrics:\t%s\n", c.Crawl.MetricsFile)
	}
	_ = w.Flush()
}

// printSummary writes the end-of-run counts.
func printSummary(out io.Writer, s *model.Summary, geo geocode.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if s.Interrupted {
		_, _ = fmt.Fprintln(w, "Run interrupted; partial results saved.")
	}
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", s.RunID)
	_, _ = fmt.Fprintf(w, "Discovered:\t%d\n", s.Discovered)
	_, _ = fmt.Fprintf(w, "Processed:\t%d\n", s.Processed)
	_, _ = fmt.Fprintf(w, "Written:\t%d\n", s.Counts.Written)
	_, _ = fmt.Fprintf(w, "  Coords from page:\t%d\n", s.Counts.CoordsFromPage)
	_, _ = fmt.Fprintf(w, "  Coords geocoded:\t%d\n", s.Counts.CoordsGeocoded)
	_, _ = fmt.Fprintf(w, "  Geocode missed:\t%d\n", s.Counts.GeocodeMissed)
	_, _ = fmt.Fprintf(w, "  No address:\t%d\n", s.Counts.SkippedNoAddress)
	_, _ = fmt.Fprintf(w, "Errors:\t%d\n", s.Counts.Errors)
	if geo.Calls > 0 || geo.CacheHits > 0 {
		_, _ = fmt.Fprintf(w, "Geocoder:\t%d calls, %d cache hits, %d budget skips\n", geo.Calls, geo.CacheHits, geo.BudgetSkips)
	}
	_, _ = fmt.Fprintf(w, "Output:\t%s\n", s.OutputPath)
	_, _ = fmt.Fprintf(w, "Elapsed:\t%s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	_ = w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
