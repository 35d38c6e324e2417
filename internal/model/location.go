package model

import (
	"encoding/json"
	"math"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
)

// Coordinates is a latitude/longitude pair. It serializes as a two-element
// JSON array [lat, lon], matching the geocode cache file format.
type Coordinates struct {
	Lat float64
	Lon float64
}

// NewCoordinates returns a pair when both values are finite.
func NewCoordinates(lat, lon float64) (*Coordinates, bool) {
	if !finite(lat) || !finite(lon) {
		return nil, false
	}
	return &Coordinates{Lat: lat, Lon: lon}, true
}

// Valid reports whether both values are finite numbers.
func (c Coordinates) Valid() bool {
	return finite(c.Lat) && finite(c.Lon)
}

// MarshalJSON encodes the pair as [lat, lon].
func (c Coordinates) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Lat, c.Lon})
}

// UnmarshalJSON decodes a [lat, lon] array.
func (c *Coordinates) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return eris.Wrap(err, "model: decode coordinates")
	}
	if len(pair) != 2 {
		return eris.Errorf("model: coordinates need 2 values, got %d", len(pair))
	}
	c.Lat, c.Lon = pair[0], pair[1]
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Location is one extracted locality record.
type Location struct {
	Name         string       `json:"name,omitempty"`
	Description  string       `json:"description,omitempty"`
	Image        string       `json:"image,omitempty"`
	Address      string       `json:"address,omitempty"`
	Email        string       `json:"email,omitempty"`
	Source       string       `json:"source"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	Organization string       `json:"organization"`
	City         string       `json:"city,omitempty"`
}

// HasAddress reports whether the record carries an address. Records without
// one are never written.
func (l *Location) HasAddress() bool {
	return l != nil && l.Address != ""
}

// CoordSource names the strategy that supplied a record's coordinates.
type CoordSource string

const (
	CoordNone    CoordSource = ""
	CoordPage    CoordSource = "page"
	CoordRegex   CoordSource = "regex"
	CoordGeocode CoordSource = "geocode"
)

// Counters holds run-wide tallies. The orchestrator owns the only instance
// for a run; readers use Snapshot.
type Counters struct {
	Written          atomic.Int64
	CoordsFromPage   atomic.Int64
	CoordsGeocoded   atomic.Int64
	GeocodeMissed    atomic.Int64
	SkippedNoAddress atomic.Int64
	Errors           atomic.Int64
}

// CounterSnapshot is a point-in-time copy of Counters.
type CounterSnapshot struct {
	Written          int64 `json:"total_written"`
	CoordsFromPage   int64 `json:"coords_from_page"`
	CoordsGeocoded   int64 `json:"coords_geocoded"`
	GeocodeMissed    int64 `json:"geocode_missed"`
	SkippedNoAddress int64 `json:"skipped_no_address"`
	Errors           int64 `json:"errors"`
}

// Snapshot copies the current values.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Written:          c.Written.Load(),
		CoordsFromPage:   c.CoordsFromPage.Load(),
		CoordsGeocoded:   c.CoordsGeocoded.Load(),
		GeocodeMissed:    c.GeocodeMissed.Load(),
		SkippedNoAddress: c.SkippedNoAddress.Load(),
		Errors:           c.Errors.Load(),
	}
}

// Summary describes a finished (or interrupted) run.
type Summary struct {
	RunID       string          `json:"run_id"`
	Site        string          `json:"site"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Discovered  int             `json:"discovered"`
	Processed   int64           `json:"processed"`
	Interrupted bool            `json:"interrupted"`
	OutputPath  string          `json:"output_path"`
	Counts      CounterSnapshot `json:"counts"`
}
