// Package geocode resolves free-text addresses to coordinates through a
// persistent cache and a serialized, rate-spaced external provider.
package geocode

import (
	"context"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Option configures a Geocoder.
type Option func(*Geocoder)

// WithEnabled turns network lookups on or off. A disabled geocoder resolves
// nothing.
func WithEnabled(enabled bool) Option {
	return func(g *Geocoder) { g.enabled = enabled }
}

// WithRate sets the mandatory pause after every provider call.
func WithRate(d time.Duration) Option {
	return func(g *Geocoder) { g.rate = d }
}

// WithMaxCalls caps the number of provider calls for the geocoder's lifetime.
func WithMaxCalls(n int) Option {
	return func(g *Geocoder) { g.maxCalls = int64(n) }
}

// WithProvider sets the external search provider.
func WithProvider(p Provider) Option {
	return func(g *Geocoder) { g.provider = p }
}

// WithCache sets the cache.
func WithCache(c *Cache) Option {
	return func(g *Geocoder) { g.cache = c }
}

// WithCountry sets the country name appended to every query.
func WithCountry(country string) Option {
	return func(g *Geocoder) { g.country = country }
}

// Stats counts geocoder activity.
type Stats struct {
	Calls        int64 `json:"calls"`
	CacheHits    int64 `json:"cache_hits"`
	Misses       int64 `json:"misses"`
	BudgetSkips  int64 `json:"budget_skips"`
	CacheEntries int   `json:"cache_entries"`
}

// Geocoder resolves addresses. Only one provider call is in flight at any
// time, and each call is followed by the configured pause before the next
// one may start. Cache hits skip both the gate and the budget.
type Geocoder struct {
	enabled  bool
	rate     time.Duration
	maxCalls int64
	country  string
	provider Provider
	cache    *Cache

	// gate admits one provider call at a time.
	gate chan struct{}

	calls       atomic.Int64
	hits        atomic.Int64
	misses      atomic.Int64
	budgetSkips atomic.Int64
	budgetOnce  atomic.Bool
}

// New creates a Geocoder. Defaults: disabled, 1100ms pause, 10000 calls,
// Nominatim, in-memory cache at .cache/geocode-cache.json, Norway.
func New(opts ...Option) *Geocoder {
	g := &Geocoder{
		rate:     1100 * time.Millisecond,
		maxCalls: 10000,
		country:  "Norway",
		gate:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.provider == nil {
		g.provider = NewNominatim(NominatimOptions{})
	}
	if g.cache == nil {
		g.cache = NewCache(".cache/geocode-cache.json")
	}
	return g
}

// Enabled reports whether network lookups are allowed.
func (g *Geocoder) Enabled() bool { return g.enabled }

// Load reads the persisted cache.
func (g *Geocoder) Load() int { return g.cache.Load() }

// Save persists the cache if it changed.
func (g *Geocoder) Save() error { return g.cache.Save() }

// Stats returns a snapshot of the counters.
func (g *Geocoder) Stats() Stats {
	return Stats{
		Calls:        g.calls.Load(),
		CacheHits:    g.hits.Load(),
		Misses:       g.misses.Load(),
		BudgetSkips:  g.budgetSkips.Load(),
		CacheEntries: g.cache.Len(),
	}
}

// Key returns the cache key for query under the given provider tag.
func Key(provider, query string) string {
	return provider + ":" + strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// Resolve tries each query from BuildQueries in order and returns the first
// hit. It returns nil without any network activity when the geocoder is
// disabled or the address is empty.
func (g *Geocoder) Resolve(ctx context.Context, address, city, region string) *Point {
	if !g.enabled || strings.TrimSpace(address) == "" {
		return nil
	}
	for _, q := range g.BuildQueries(address, city, region) {
		if ctx.Err() != nil {
			return nil
		}
		if p := g.Lookup(ctx, q); p != nil {
			return p
		}
	}
	return nil
}

// Lookup resolves a single query. Provider errors and empty or malformed
// answers yield nil and are not cached.
func (g *Geocoder) Lookup(ctx context.Context, query string) *Point {
	log := zap.L().With(zap.String("component", "geocode"), zap.String("query", query))
	key := Key(g.provider.Name(), query)

	if p, ok := g.cache.Get(key); ok {
		g.hits.Add(1)
		log.Debug("geocode cache hit", zap.Float64("lat", p.Lat()), zap.Float64("lon", p.Lon()))
		return &p
	}
	if g.budgetExhausted() {
		return nil
	}

	select {
	case g.gate <- struct{}{}:
	case <-ctx.Done():
		return nil
	}
	defer func() { <-g.gate }()

	// Another worker may have resolved the same query while we waited.
	if p, ok := g.cache.Get(key); ok {
		g.hits.Add(1)
		return &p
	}
	if g.budgetExhausted() {
		return nil
	}

	g.calls.Add(1)
	log.Debug("geocoding")
	p, err := g.provider.Search(ctx, query)
	g.pause(ctx)

	if err != nil {
		g.misses.Add(1)
		log.Warn("geocode error", zap.Error(err))
		return nil
	}
	if p == nil || !finite(p.Lat()) || !finite(p.Lon()) {
		g.misses.Add(1)
		log.Debug("no geocode result")
		return nil
	}

	g.cache.Put(key, *p)
	log.Debug("geocode ok", zap.Float64("lat", p.Lat()), zap.Float64("lon", p.Lon()))
	return p
}

func (g *Geocoder) budgetExhausted() bool {
	if g.calls.Load() < g.maxCalls {
		return false
	}
	g.budgetSkips.Add(1)
	if g.budgetOnce.CompareAndSwap(false, true) {
		zap.L().Warn("geocode call budget reached, skipping further lookups",
			zap.Int64("max_calls", g.maxCalls),
		)
	}
	return true
}

// pause holds the gate for the configured spacing. It returns early when ctx
// is cancelled.
func (g *Geocoder) pause(ctx context.Context) {
	if g.rate <= 0 {
		return
	}
	t := time.NewTimer(g.rate)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
