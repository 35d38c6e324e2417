package geoscraper

import (
	"context"

	"github.com/codefornorway/civic-scrapers/internal/discovery"
	"github.com/codefornorway/civic-scrapers/internal/model"
	"github.com/codefornorway/civic-scrapers/internal/scrape"
	"github.com/codefornorway/civic-scrapers/pkg/geocode"
)

// Discoverer finds the pages to extract. *discovery.Discoverer implements
// it.
type Discoverer interface {
	DiscoverRegions(ctx context.Context) (*discovery.LinkSet, error)
	DiscoverLocalities(ctx context.Context, regionURL string) (*discovery.LinkSet, error)
}

// PageExtractor turns one page into a record. *scrape.Extractor implements
// it.
type PageExtractor interface {
	Extract(ctx context.Context, pageURL string) (*model.Location, scrape.Meta, error)
}

// CacheStore is the persisted geocode cache as seen by the engine: loaded
// once at start and flushed once at the end.
type CacheStore interface {
	Load() int
	Save() error
}

// Reporter receives progress. Update is called after every finished task,
// possibly from several goroutines.
type Reporter interface {
	Start(total int)
	Update(processed int, counts model.CounterSnapshot)
	Stop()
}

// Sink receives the final record set of a completed run.
type Sink interface {
	SaveLocations(ctx context.Context, runID string, locs []model.Location) error
}

var (
	_ Discoverer    = (*discovery.Discoverer)(nil)
	_ PageExtractor = (*scrape.Extractor)(nil)
	_ CacheStore    = (*geocode.Geocoder)(nil)
)

type nopReporter struct{}

func (nopReporter) Start(int) {}
func (nopReporter) Update(int, model.CounterSnapshot) {}
func (nopReporter) Stop() {}

// Reporters fans progress out to every non-nil reporter in rs.
func Reporters(rs ...Reporter) Reporter {
	var out multiReporter
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type multiReporter []Reporter

func (m multiReporter) Start(total int) {
	for _, r := range m {
		r.Start(total)
	}
}

func (m multiReporter) Update(processed int, counts model.CounterSnapshot) {
	for _, r := range m {
		r.Update(processed, counts)
	}
}

func (m multiReporter) Stop() {
	for _, r := range m {
		r.Stop()
	}
}
