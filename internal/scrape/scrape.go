// Package scrape turns a locality page into a model.Location. Each field is
// read by an ordered chain of strategies; the first one that yields a value
// wins and a field no strategy can fill is left empty.
package scrape

import (
	"context"
	"fmt"

	"github.com/codefornorway/civic-scrapers/pkg/geocode"
)

// Resolver looks up coordinates for an address. *geocode.Geocoder
// implements it.
type Resolver interface {
	Enabled() bool
	Resolve(ctx context.Context, address, city, region string) *geocode.Point
}

var _ Resolver = (*geocode.Geocoder)(nil)

// ExtractError reports a page that could not be extracted.
type ExtractError struct {
	URL string
	Err error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}
