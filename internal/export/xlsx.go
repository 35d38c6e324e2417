package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/codefornorway/civic-scrapers/internal/model"
)

var xlsxHeader = []string{
	"Name", "Organization", "City", "Address", "Email",
	"Latitude", "Longitude", "Description", "Image", "Source",
}

// WriteXLSX writes one sheet with a header row and a row per record.
// Coordinates are numeric cells, left blank when unknown.
func WriteXLSX(path string, locs []model.Location) (int, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Locations")
	if err != nil {
		return 0, eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range xlsxHeader {
		header.AddCell().SetString(h)
	}

	for _, l := range locs {
		row := sheet.AddRow()
		for _, v := range []string{l.Name, l.Organization, l.City, l.Address, l.Email} {
			row.AddCell().SetString(v)
		}
		lat, lon := row.AddCell(), row.AddCell()
		if l.Coordinates != nil {
			lat.SetFloat(l.Coordinates.Lat)
			lon.SetFloat(l.Coordinates.Lon)
		}
		for _, v := range []string{l.Description, l.Image, l.Source} {
			row.AddCell().SetString(v)
		}
	}

	if err := f.Save(path); err != nil {
		return 0, eris.Wrapf(err, "export: save %s", path)
	}
	return len(locs), nil
}
