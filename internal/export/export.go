// Package export converts a record set into formats used outside the
// pipeline: GeoJSON for maps, XLSX for spreadsheets and ESRI Shapefile for
// GIS tools.
package export

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/codefornorway/civic-scrapers/internal/model"
)

// Format is an export file format.
type Format string

const (
	GeoJSON   Format = "geojson"
	XLSX      Format = "xlsx"
	Shapefile Format = "shp"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{GeoJSON, XLSX, Shapefile}
}

// ParseFormat converts a name such as "geojson" or "shapefile" to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "geojson", "json":
		return GeoJSON, nil
	case "xlsx", "excel":
		return XLSX, nil
	case "shp", "shapefile":
		return Shapefile, nil
	default:
		return "", eris.Errorf("export: unknown format %q (valid: geojson, xlsx, shp)", s)
	}
}

// Ext returns the file extension for f, with the dot.
func (f Format) Ext() string {
	if f == GeoJSON {
		return ".geojson"
	}
	return "." + string(f)
}

// Write exports locs to path and returns how many records were written.
// GeoJSON and Shapefile skip records without coordinates.
func Write(f Format, path string, locs []model.Location) (int, error) {
	var (
		n   int
		err error
	)
	switch f {
	case GeoJSON:
		n, err = WriteGeoJSON(path, locs)
	case XLSX:
		n, err = WriteXLSX(path, locs)
	case Shapefile:
		n, err = WriteShapefile(path, locs)
	default:
		return 0, eris.Errorf("export: unknown format %q", f)
	}
	if err != nil {
		return 0, err
	}
	zap.L().Info("export written",
		zap.String("format", string(f)),
		zap.String("path", path),
		zap.Int("records", n),
		zap.Int("skipped", len(locs)-n),
	)
	return n, nil
}
