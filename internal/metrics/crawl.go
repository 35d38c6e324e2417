// Package metrics exposes Prometheus collectors for crawl runs and the
// read-only API. Each collector set owns its registry so tests and
// repeated runs in one process never collide on registration.
package metrics

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/codefornorway/civic-scrapers/internal/model"
)

// Crawl records the progress of one run. It implements the engine's
// Reporter interface and can be written out as a node-exporter textfile
// once the run ends.
type Crawl struct {
	reg *prometheus.Registry

	discovered prometheus.Gauge
	processed  prometheus.Gauge
	records    *prometheus.GaugeVec
	finished   prometheus.Gauge

	mu      sync.Mutex
	highest int
}

// NewCrawl creates the collectors for a crawl of site.
func NewCrawl(site string) *Crawl {
	labels := prometheus.Labels{"site": site}
	c := &Crawl{
		reg: prometheus.NewRegistry(),
		discovered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "civic_crawl_discovered_pages",
			Help:        "Locality pages discovered in the current run.",
			ConstLabels: labels,
		}),
		processed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "civic_crawl_processed_pages",
			Help:        "Locality pages finished in the current run, including failures.",
			ConstLabels: labels,
		}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "civic_crawl_records",
			Help:        "Run counters partitioned by kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		finished: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "civic_crawl_last_finished_timestamp_seconds",
			Help:        "Unix time the last run stopped.",
			ConstLabels: labels,
		}),
	}
	c.reg.MustRegister(c.discovered, c.processed, c.records, c.finished)
	return c
}

// Registry returns the registry holding the crawl collectors.
func (c *Crawl) Registry() *prometheus.Registry { return c.reg }

// Start implements the Reporter interface.
func (c *Crawl) Start(total int) {
	c.discovered.Set(float64(total))
}

// Update implements the Reporter interface. Out-of-order updates from
// concurrent workers never move the processed gauge backwards.
func (c *Crawl) Update(processed int, counts model.CounterSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if processed < c.highest {
		return
	}
	c.highest = processed
	c.processed.Set(float64(processed))
	c.records.WithLabelValues("written").Set(float64(counts.Written))
	c.records.WithLabelValues("coords_from_page").Set(float64(counts.CoordsFromPage))
	c.records.WithLabelValues("coords_geocoded").Set(float64(counts.CoordsGeocoded))
	c.records.WithLabelValues("geocode_missed").Set(float64(counts.GeocodeMissed))
	c.records.WithLabelValues("skipped_no_address").Set(float64(counts.SkippedNoAddress))
	c.records.WithLabelValues("errors").Set(float64(counts.Errors))
}

// Stop implements the Reporter interface.
func (c *Crawl) Stop() {
	c.finished.Set(float64(time.Now().Unix()))
}

// WriteTextfile writes the collectors in the text exposition format,
// creating the parent directory when needed.
func (c *Crawl) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "metrics: create dir %s", dir)
		}
	}
	if err := prometheus.WriteToTextfile(path, c.reg); err != nil {
		return eris.Wrapf(err, "metrics: write %s", path)
	}
	return nil
}
