package export

import (
	"os"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/codefornorway/civic-scrapers/internal/model"
)

// wgs84 is the .prj content for EPSG:4326.
const wgs84 = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["Degree",0.017453292519943295]]`

// dbfFields lists the attribute columns. DBF names are limited to ten
// bytes and strings to 254.
var dbfFields = []shp.Field{
	shp.StringField("NAME", 120),
	shp.StringField("ORG", 60),
	shp.StringField("CITY", 60),
	shp.StringField("ADDRESS", 120),
	shp.StringField("EMAIL", 80),
	shp.StringField("SOURCE", 254),
}

// shapefileBase returns path without its .shp extension, the way
// shp.Create derives the sibling file names.
func shapefileBase(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".shp") {
		return path[:len(path)-len(".shp")]
	}
	return path
}

// WriteShapefile writes a point shapefile (.shp, .shx, .dbf and .prj) for
// records with coordinates.
func WriteShapefile(path string, locs []model.Location) (int, error) {
	base := shapefileBase(path)
	w, err := shp.Create(base+".shp", shp.POINT)
	if err != nil {
		return 0, eris.Wrapf(err, "export: create shapefile %s", path)
	}
	if err := w.SetFields(dbfFields); err != nil {
		w.Close()
		return 0, eris.Wrap(err, "export: set dbf fields")
	}

	var n int
	for _, l := range locs {
		if l.Coordinates == nil || !l.Coordinates.Valid() {
			continue
		}
		idx := int(w.Write(&shp.Point{X: l.Coordinates.Lon, Y: l.Coordinates.Lat}))
		for i, v := range []string{l.Name, l.Organization, l.City, l.Address, l.Email, l.Source} {
			if err := w.WriteAttribute(idx, i, truncateBytes(v, int(dbfFields[i].Size))); err != nil {
				w.Close()
				return 0, eris.Wrapf(err, "export: write attribute for %s", l.Source)
			}
		}
		n++
	}
	w.Close()

	// go-shp names the attribute table base+"dbf", without the dot.
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return 0, eris.Wrapf(err, "export: rename attribute table for %s", path)
	}

	prj := base + ".prj"
	if err := os.WriteFile(prj, []byte(wgs84), 0o644); err != nil {
		return 0, eris.Wrapf(err, "export: write %s", prj)
	}
	return n, nil
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
