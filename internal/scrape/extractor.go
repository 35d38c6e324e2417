package scrape

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/codefornorway/civic-scrapers/internal/fetcher"
	"github.com/codefornorway/civic-scrapers/internal/model"
	"github.com/codefornorway/civic-scrapers/internal/site"
	"github.com/codefornorway/civic-scrapers/internal/textnorm"
)

const headingSelector = "h1, h2, h3, h4, h5, h6"

// Meta describes how a record's coordinates were obtained. It feeds run
// statistics only.
type Meta struct {
	CoordSource  model.CoordSource
	GeocodeTried bool
}

// Extractor reads locality pages for one site.
type Extractor struct {
	fetcher  fetcher.Fetcher
	site     site.Site
	resolver Resolver
	addrRe   *regexp.Regexp
}

// NewExtractor creates an Extractor. resolver may be nil.
func NewExtractor(f fetcher.Fetcher, s site.Site, resolver Resolver) *Extractor {
	return &Extractor{
		fetcher:  f,
		site:     s,
		resolver: resolver,
		addrRe:   addressPattern(s.AddressLabels()),
	}
}

// Extract fetches pageURL and parses it. Fetch failures are returned as
// *ExtractError.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (*model.Location, Meta, error) {
	zap.L().Debug("extract", zap.String("url", pageURL))
	body, err := e.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, Meta{}, &ExtractError{URL: pageURL, Err: err}
	}
	return e.Parse(ctx, pageURL, body)
}

// page is the parsed state shared by the field strategies.
type page struct {
	url  *url.URL
	raw  string
	doc  *goquery.Document
	site site.Site
	h1   *goquery.Selection
	mark marker
	addr *regexp.Regexp
}

// Parse extracts a record from already fetched HTML. Missing fields are
// left empty; only an unparseable document is an error.
func (e *Extractor) Parse(ctx context.Context, pageURL, body string) (*model.Location, Meta, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, Meta{}, &ExtractError{URL: pageURL, Err: eris.Wrap(err, "parse url")}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, Meta{}, &ExtractError{URL: pageURL, Err: eris.Wrap(err, "parse html")}
	}

	p := &page{url: u, raw: body, doc: doc, site: e.site, addr: e.addrRe}
	p.h1 = doc.Find(e.site.Selectors().Name).First()
	p.mark = readMarker(p)

	path := e.site.ParsePath(pageURL)
	loc := &model.Location{
		Name:         textnorm.Space(p.h1.Text()),
		Description:  firstOf(p, leadParagraph, metaDescription, paragraphAfterHeading, paragraphInHeadingSection),
		Image:        firstOf(p, ogImage, firstImage),
		Address:      firstOf(p, definitionListAddress, markerAddress, textAddress),
		Email:        firstOf(p, emailNearHeading, emailInBody),
		Source:       pageURL,
		Notes:        notesSection(p),
		Organization: e.site.Organization(),
		City:         textnorm.Slug(path.Locality),
	}

	var meta Meta
	switch {
	case p.mark.Point != nil:
		loc.Coordinates = &model.Coordinates{Lat: p.mark.Point.Lat(), Lon: p.mark.Point.Lon()}
		meta.CoordSource = model.CoordPage
	default:
		pt := firstLatLng(p.raw)
		if pt == nil {
			pt = firstLatLng(visibleText(doc.Selection))
		}
		if pt != nil {
			loc.Coordinates = &model.Coordinates{Lat: pt.Lat(), Lon: pt.Lon()}
			meta.CoordSource = model.CoordRegex
		}
	}

	if loc.Coordinates == nil && loc.Address != "" && e.resolver != nil && e.resolver.Enabled() {
		meta.GeocodeTried = true
		if pt := e.resolver.Resolve(ctx, loc.Address, path.Locality, path.Region); pt != nil {
			loc.Coordinates = &model.Coordinates{Lat: pt.Lat(), Lon: pt.Lon()}
			meta.CoordSource = model.CoordGeocode
		}
	}

	return loc, meta, nil
}

// addressPattern matches a label followed by text ending in a four-digit
// postal code and the next word. The label may not be the tail of a longer
// word, so "E-postadresse" does not count.
func addressPattern(labels []string) *regexp.Regexp {
	if len(labels) == 0 {
		return nil
	}
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = regexp.QuoteMeta(l)
	}
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\-])(?:` + strings.Join(quoted, "|") + `)\s*:?\s*(.{1,80}?\b\d{4}\s+\p{L}[\p{L}\-]*)`)
}
