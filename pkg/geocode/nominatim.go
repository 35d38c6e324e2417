package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultNominatimURL is the public OpenStreetMap search endpoint.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"

// Provider resolves a free-text query to a point. A nil point with a nil
// error means the provider had no result.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) (*Point, error)
}

// NominatimOptions configures a Nominatim provider.
type NominatimOptions struct {
	BaseURL      string
	CountryCodes string
	UserAgent    string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Nominatim queries an OpenStreetMap Nominatim search endpoint.
type Nominatim struct {
	opts   NominatimOptions
	client *http.Client
}

// NewNominatim creates a provider. Zero options fall back to the public
// endpoint, Norway and a 20s timeout.
func NewNominatim(opts NominatimOptions) *Nominatim {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultNominatimURL
	}
	if opts.CountryCodes == "" {
		opts.CountryCodes = "no"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Nominatim{opts: opts, client: client}
}

// Name returns the provider tag used in cache keys.
func (n *Nominatim) Name() string { return "nominatim" }

type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Search runs one query and returns the first result.
func (n *Nominatim) Search(ctx context.Context, query string) (*Point, error) {
	params := url.Values{
		"q":              {query},
		"countrycodes":   {n.opts.CountryCodes},
		"format":         {"jsonv2"},
		"limit":          {"1"},
		"addressdetails": {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.opts.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	if n.opts.UserAgent != "" {
		req.Header.Set("User-Agent", n.opts.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}
	if len(places) == 0 {
		return nil, nil
	}

	lat, latErr := strconv.ParseFloat(places[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(places[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, eris.Errorf("geocode: nominatim bad coordinates %q,%q", places[0].Lat, places[0].Lon)
	}
	return &Point{lat, lon}, nil
}
