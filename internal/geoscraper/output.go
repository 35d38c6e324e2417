package geoscraper

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/codefornorway/civic-scrapers/internal/model"
)

// writeRecords writes locs as an indented JSON array, replacing path
// atomically. HTML in notes is written as is.
func writeRecords(path string, locs []model.Location) error {
	if locs == nil {
		locs = []model.Location{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(locs); err != nil {
		return eris.Wrap(err, "geoscraper: encode records")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "geoscraper: create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "geoscraper: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return eris.Wrapf(err, "geoscraper: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "geoscraper: close %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "geoscraper: rename to %s", path)
	}
	return nil
}

// ReadRecords loads a record file written by the engine.
func ReadRecords(path string) ([]model.Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geoscraper: read %s", path)
	}
	var locs []model.Location
	if err := json.Unmarshal(data, &locs); err != nil {
		return nil, eris.Wrapf(err, "geoscraper: decode %s", path)
	}
	return locs, nil
}
