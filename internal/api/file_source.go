package api

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/codefornorway/civic-scrapers/internal/geoscraper"
	"github.com/codefornorway/civic-scrapers/internal/model"
	"github.com/codefornorway/civic-scrapers/internal/store"
	"github.com/codefornorway/civic-scrapers/internal/textnorm"
)

// FileSource serves records from a record file written by a crawl. The
// file is read once, on first use.
type FileSource struct {
	path string

	once sync.Once
	locs []model.Location
	err  error
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// ListLocations filters the file's records the way the stores do: city
// exact, query a substring of name or address, both ignoring case and
// diacritics.
func (s *FileSource) ListLocations(_ context.Context, f store.LocationFilter) ([]model.Location, error) {
	s.once.Do(func() {
		s.locs, s.err = geoscraper.ReadRecords(s.path)
		sort.SliceStable(s.locs, func(i, j int) bool { return s.locs[i].Source < s.locs[j].Source })
	})
	if s.err != nil {
		return nil, s.err
	}

	city := textnorm.Fold(f.City)
	query := textnorm.Fold(f.Query)
	var out []model.Location
	for _, l := range s.locs {
		if city != "" && textnorm.Fold(l.City) != city {
			continue
		}
		if f.Organization != "" && l.Organization != f.Organization {
			continue
		}
		if query != "" && !strings.Contains(textnorm.Fold(l.Name), query) && !strings.Contains(textnorm.Fold(l.Address), query) {
			continue
		}
		out = append(out, l)
	}

	offset := min(max(f.Offset, 0), len(out))
	out = out[offset:]
	limit := f.Limit
	if limit <= 0 {
		limit = 500
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
