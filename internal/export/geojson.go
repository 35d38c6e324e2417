package export

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/codefornorway/civic-scrapers/internal/model"
)

// FeatureCollection builds point features (lon, lat order, WGS84) for every
// record with coordinates. The source URL is the feature id.
func FeatureCollection(locs []model.Location) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(locs))}
	for _, l := range locs {
		if l.Coordinates == nil || !l.Coordinates.Valid() {
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         l.Source,
			Geometry:   geom.NewPointFlat(geom.XY, []float64{l.Coordinates.Lon, l.Coordinates.Lat}),
			Properties: properties(l),
		})
	}
	return fc
}

func properties(l model.Location) map[string]any {
	props := map[string]any{
		"source":       l.Source,
		"organization": l.Organization,
	}
	for k, v := range map[string]string{
		"name":        l.Name,
		"description": l.Description,
		"image":       l.Image,
		"address":     l.Address,
		"email":       l.Email,
		"notes":       l.Notes,
		"city":        l.City,
	} {
		if v != "" {
			props[k] = v
		}
	}
	return props
}

// WriteGeoJSON writes a FeatureCollection to path.
func WriteGeoJSON(path string, locs []model.Location) (int, error) {
	fc := FeatureCollection(locs)
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return 0, eris.Wrap(err, "export: encode geojson")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return 0, eris.Wrapf(err, "export: write %s", path)
	}
	return len(fc.Features), nil
}
