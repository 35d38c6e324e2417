// Package fetcher retrieves page content over HTTP with bounded retries.
package fetcher

import (
	"context"
	"fmt"
)

// Fetcher defines the interface for downloading page content.
type Fetcher interface {
	// Fetch GETs the URL and returns the textual body. It fails with a
	// *FetchError once every attempt has been used.
	Fetch(ctx context.Context, url string) (string, error)
}

// FetchError reports a page that could not be retrieved.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
