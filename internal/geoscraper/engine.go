package geoscraper

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/codefornorway/civic-scrapers/internal/discovery"
	"github.com/codefornorway/civic-scrapers/internal/model"
	"github.com/codefornorway/civic-scrapers/internal/site"
)

// ErrInterrupted is returned by Run after the partial record set has been
// written because the context was cancelled.
var ErrInterrupted = eris.New("geoscraper: run interrupted")

const (
	defaultConcurrency = 5
	defaultSleep       = 300 * time.Millisecond
	defaultOutputDir   = "data"
)

// Engine orchestrates one crawl of a site.
type Engine struct {
	site        site.Site
	discoverer  Discoverer
	extractor   PageExtractor
	cache       CacheStore
	reporter    Reporter
	sink        Sink
	outputDir   string
	concurrency int
	sleep       time.Duration
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithConcurrency sets the worker pool size.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithSleep sets the pause a worker takes after each page.
func WithSleep(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.sleep = d
		}
	}
}

// WithOutputDir sets where record files are written.
func WithOutputDir(dir string) Option {
	return func(e *Engine) {
		if dir != "" {
			e.outputDir = dir
		}
	}
}

// WithGeocodeCache makes the engine load the cache at start and save it at
// the end.
func WithGeocodeCache(c CacheStore) Option {
	return func(e *Engine) { e.cache = c }
}

// WithReporter sets the progress reporter.
func WithReporter(r Reporter) Option {
	return func(e *Engine) {
		if r != nil {
			e.reporter = r
		}
	}
}

// WithSink adds a sink that receives the records of a completed run.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// NewEngine creates an Engine for s.
func NewEngine(s site.Site, d Discoverer, x PageExtractor, opts ...Option) *Engine {
	e := &Engine{
		site:        s,
		discoverer:  d,
		extractor:   x,
		reporter:    nopReporter{},
		outputDir:   defaultOutputDir,
		concurrency: defaultConcurrency,
		sleep:       defaultSleep,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunOpts scopes a run. Filters compare URL path slugs exactly.
type RunOpts struct {
	OnlyRegion   string
	OnlyLocality string
}

// OutputPath returns the primary record file for the engine's site.
func (e *Engine) OutputPath() string {
	return filepath.Join(e.outputDir, e.site.OutputName()+".json")
}

// PartialPath returns the record file written on interruption.
func (e *Engine) PartialPath() string {
	return filepath.Join(e.outputDir, e.site.OutputName()+".partial.json")
}

// Run crawls the site. Per-page failures are counted and logged but never
// stop the run. When ctx is cancelled no further pages are scheduled, the
// records gathered so far are written to PartialPath and ErrInterrupted is
// returned along with the summary.
func (e *Engine) Run(ctx context.Context, opts RunOpts) (*model.Summary, error) {
	r := &run{
		engine: e,
		log: zap.L().With(
			zap.String("component", "geoscraper.engine"),
			zap.String("site", e.site.Name()),
		),
		summary: &model.Summary{
			RunID:     uuid.NewString(),
			Site:      e.site.Name(),
			StartedAt: e.now().UTC(),
		},
	}
	r.log = r.log.With(zap.String("run_id", r.summary.RunID))

	if e.cache != nil {
		n := e.cache.Load()
		r.log.Info("geocode cache loaded", zap.Int("entries", n))
	}

	urls, err := r.discover(ctx, opts)
	if err != nil {
		if ctx.Err() != nil {
			return r.finalize(ctx, true)
		}
		return nil, err
	}
	r.summary.Discovered = len(urls)
	r.log.Info("localities selected", zap.Int("count", len(urls)))

	r.extractAll(ctx, urls)

	return r.finalize(ctx, ctx.Err() != nil)
}

// run holds the state of a single Run call.
type run struct {
	engine    *Engine
	log       *zap.Logger
	summary   *model.Summary
	counters  model.Counters
	processed atomic.Int64
	// results is indexed like the scheduled URLs so the output keeps
	// discovery order. Each task writes only its own slot.
	results []*model.Location
}

func (r *run) discover(ctx context.Context, opts RunOpts) ([]string, error) {
	e := r.engine
	regions, err := e.discoverer.DiscoverRegions(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "geoscraper: discover regions")
	}

	var onlyRegion string
	if opts.OnlyRegion != "" {
		onlyRegion = e.site.RegionURL(opts.OnlyRegion)
	}

	localities := discovery.NewLinkSet()
	for _, regionURL := range regions.URLs() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if onlyRegion != "" && regionURL != onlyRegion {
			continue
		}
		set, err := e.discoverer.DiscoverLocalities(ctx, regionURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.log.Error("region failed", zap.String("url", regionURL), zap.Error(err))
			continue
		}
		localities.Merge(set)
	}

	var urls []string
	for _, u := range localities.URLs() {
		if opts.OnlyLocality != "" && e.site.ParsePath(u).Locality != opts.OnlyLocality {
			continue
		}
		urls = append(urls, u)
	}
	if opts.OnlyRegion != "" || opts.OnlyLocality != "" {
		r.log.Info("scope filter applied",
			zap.String("only_region", opts.OnlyRegion),
			zap.String("only_locality", opts.OnlyLocality),
			zap.Int("matched", len(urls)),
		)
	}
	return urls, nil
}

func (r *run) extractAll(ctx context.Context, urls []string) {
	e := r.engine
	r.results = make([]*model.Location, len(urls))
	e.reporter.Start(len(urls))

	// Tasks never return errors; a failed page must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, u := range urls {
		if ctx.Err() != nil {
			r.log.Warn("interrupted, not scheduling remaining pages", zap.Int("remaining", len(urls)-i))
			break
		}
		g.Go(func() error {
			// g.Go may have blocked on a free slot past cancellation.
			if ctx.Err() != nil {
				return nil
			}
			r.task(ctx, i, u)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *run) task(ctx context.Context, i int, pageURL string) {
	e := r.engine
	loc, meta, err := e.extractor.Extract(ctx, pageURL)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			// Abandoned by cancellation, not a page failure.
			return
		}
		r.counters.Errors.Add(1)
		r.log.Error("page failed", zap.String("url", pageURL), zap.Error(err))
	case !loc.HasAddress():
		r.counters.SkippedNoAddress.Add(1)
		r.log.Debug("skipped, no address", zap.String("url", pageURL))
	default:
		r.results[i] = loc
		r.counters.Written.Add(1)
		switch meta.CoordSource {
		case model.CoordPage, model.CoordRegex:
			r.counters.CoordsFromPage.Add(1)
		case model.CoordGeocode:
			r.counters.CoordsGeocoded.Add(1)
		}
		if meta.GeocodeTried && loc.Coordinates == nil {
			r.counters.GeocodeMissed.Add(1)
		}
	}

	n := r.processed.Add(1)
	e.reporter.Update(int(n), r.counters.Snapshot())

	if e.sleep > 0 {
		t := time.NewTimer(e.sleep)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}
}

// records returns the kept records in discovery order, never nil.
func (r *run) records() []model.Location {
	out := make([]model.Location, 0, len(r.results))
	for _, loc := range r.results {
		if loc != nil {
			out = append(out, *loc)
		}
	}
	return out
}

func (r *run) finalize(ctx context.Context, interrupted bool) (*model.Summary, error) {
	e := r.engine
	e.reporter.Stop()

	records := r.records()
	r.summary.Processed = r.processed.Load()
	r.summary.Counts = r.counters.Snapshot()
	r.summary.Interrupted = interrupted

	if interrupted {
		r.summary.OutputPath = e.PartialPath()
		if err := writeRecords(r.summary.OutputPath, records); err != nil {
			r.log.Error("write partial output", zap.Error(err))
		}
		if err := r.saveCache(); err != nil {
			r.log.Error("save geocode cache", zap.Error(err))
		}
		r.summary.FinishedAt = e.now().UTC()
		r.logSummary("run interrupted")
		return r.summary, ErrInterrupted
	}

	r.summary.OutputPath = e.OutputPath()
	if err := writeRecords(r.summary.OutputPath, records); err != nil {
		// Keep the geocode work even when the output cannot be written.
		if cerr := r.saveCache(); cerr != nil {
			r.log.Error("save geocode cache", zap.Error(cerr))
		}
		return r.summary, err
	}
	if err := r.saveCache(); err != nil {
		return r.summary, err
	}
	if e.sink != nil {
		if err := e.sink.SaveLocations(ctx, r.summary.RunID, records); err != nil {
			return r.summary, eris.Wrap(err, "geoscraper: sink")
		}
		r.log.Info("records stored", zap.Int("count", len(records)))
	}

	r.summary.FinishedAt = e.now().UTC()
	r.logSummary("run complete")
	return r.summary, nil
}

func (r *run) saveCache() error {
	if r.engine.cache == nil {
		return nil
	}
	return eris.Wrap(r.engine.cache.Save(), "geoscraper: save geocode cache")
}

func (r *run) logSummary(msg string) {
	c := r.summary.Counts
	r.log.Info(msg,
		zap.String("output", r.summary.OutputPath),
		zap.Int("discovered", r.summary.Discovered),
		zap.Int64("processed", r.summary.Processed),
		zap.Int64("written", c.Written),
		zap.Int64("coords_from_page", c.CoordsFromPage),
		zap.Int64("coords_geocoded", c.CoordsGeocoded),
		zap.Int64("geocode_missed", c.GeocodeMissed),
		zap.Int64("skipped_no_address", c.SkippedNoAddress),
		zap.Int64("errors", c.Errors),
		zap.Duration("elapsed", r.engine.now().Sub(r.summary.StartedAt)),
	)
}
