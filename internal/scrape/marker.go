package scrape

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/codefornorway/civic-scrapers/internal/textnorm"
	"github.com/codefornorway/civic-scrapers/pkg/geocode"
)

// marker is the payload of an inline map widget: [lat, lng, "address"].
type marker struct {
	Point   *geocode.Point
	Address string
}

// readMarker returns the first map-marker payload on the page.
func readMarker(p *page) marker {
	sel := p.site.Selectors()
	raw, ok := p.doc.Find(sel.Marker).First().Attr(sel.MarkerAttr)
	if !ok {
		return marker{}
	}
	return parseMarker(raw)
}

// parseMarker decodes a marker attribute. Single-quoted payloads are
// accepted.
func parseMarker(raw string) marker {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return marker{}
	}
	var arr []any
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		if err := json.Unmarshal([]byte(strings.ReplaceAll(raw, "'", `"`)), &arr); err != nil {
			return marker{}
		}
	}

	var m marker
	if len(arr) > 2 {
		if s, ok := arr[2].(string); ok {
			m.Address = textnorm.Space(s)
		}
	}
	if len(arr) > 1 {
		lat, ok1 := toFloat(arr[0])
		lng, ok2 := toFloat(arr[1])
		if ok1 && ok2 {
			m.Point = finitePoint(lat, lng)
		}
	}
	return m
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func finitePoint(lat, lng float64) *geocode.Point {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return nil
	}
	return &geocode.Point{lat, lng}
}
