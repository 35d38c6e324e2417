// Package discovery walks a site's two-level locality hierarchy and returns
// the canonical URLs of every locality page.
package discovery

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/codefornorway/civic-scrapers/internal/fetcher"
	"github.com/codefornorway/civic-scrapers/internal/site"
)

const headingSelector = "h1, h2, h3, h4, h5, h6"

// Discoverer finds region and locality pages.
type Discoverer struct {
	fetcher fetcher.Fetcher
	site    site.Site
	exclude *PathMatcher
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithExclude drops URLs matching any of the glob patterns.
func WithExclude(patterns []string) Option {
	return func(d *Discoverer) { d.exclude = NewPathMatcher(patterns) }
}

// New creates a Discoverer for s.
func New(f fetcher.Fetcher, s site.Site, opts ...Option) *Discoverer {
	d := &Discoverer{fetcher: f, site: s}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DiscoverRegions fetches the hierarchy index and returns every region link.
func (d *Discoverer) DiscoverRegions(ctx context.Context) (*LinkSet, error) {
	index := d.site.IndexURL()
	doc, err := d.load(ctx, index)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: regions")
	}

	set := NewLinkSet()
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if d.site.IsRegionLink(href) {
			d.add(set, href)
		}
	})

	zap.L().Info("regions discovered",
		zap.String("index", index),
		zap.Int("count", set.Len()),
		zap.Strings("exclude", d.exclude.Patterns()),
	)
	return set, nil
}

// DiscoverLocalities fetches a region page and returns its locality links.
// Links are read from the section under the "localities in" heading; when
// that heading is missing or yields nothing, the whole page is scanned.
func (d *Discoverer) DiscoverLocalities(ctx context.Context, regionURL string) (*LinkSet, error) {
	doc, err := d.load(ctx, regionURL)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: localities of %s", regionURL)
	}
	region := d.site.ParsePath(regionURL).Region

	set := NewLinkSet()
	collect := func(links *goquery.Selection) {
		links.Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if d.site.IsLocalityLink(href, region) {
				d.add(set, href)
			}
		})
	}

	heading := doc.Find(headingSelector).FilterFunction(func(_ int, h *goquery.Selection) bool {
		return d.site.IsLocalitiesHeading(h.Text())
	}).First()

	source := "page"
	if heading.Length() > 0 {
		heading.NextUntil(stopSelector(goquery.NodeName(heading))).Each(func(_ int, el *goquery.Selection) {
			collect(el.Filter("a[href]"))
			collect(el.Find("a[href]"))
		})
		source = "section"
	}
	if set.Len() == 0 {
		collect(doc.Find("a[href]"))
		source = "page"
	}

	zap.L().Info("localities discovered",
		zap.String("region", regionURL),
		zap.String("source", source),
		zap.Int("count", set.Len()),
	)
	return set, nil
}

func (d *Discoverer) add(set *LinkSet, href string) {
	abs, ok := d.site.Canonical(href)
	if !ok || d.exclude.IsExcluded(abs) {
		return
	}
	set.Add(abs)
}

func (d *Discoverer) load(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := d.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "parse %s", pageURL)
	}
	return doc, nil
}

// stopSelector returns the headings that end the section under a heading
// of the given tag: every heading of the same or a higher level.
func stopSelector(tag string) string {
	level := 6
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		level = int(tag[1] - '0')
	}
	parts := make([]string, 0, level)
	for i := 1; i <= level; i++ {
		parts = append(parts, "h"+string(rune('0'+i)))
	}
	return strings.Join(parts, ", ")
}
