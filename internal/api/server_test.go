package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefornorway/civic-scrapers/internal/model"
	"github.com/codefornorway/civic-scrapers/internal/store"
)

type stubSource struct {
	locs   []model.Location
	err    error
	filter store.LocationFilter
}

func (s *stubSource) ListLocations(_ context.Context, f store.LocationFilter) ([]model.Location, error) {
	s.filter = f
	return s.locs, s.err
}

var fixture = []model.Location{
	{
		Name:         "Tromsø Røde Kors",
		Address:      "Storgata 10, 9008 Tromsø",
		Source:       "https://www.rodekors.no/lokalforeninger/troms/tromso/",
		Coordinates:  &model.Coordinates{Lat: 69.6492, Lon: 18.9553},
		Notes:        "<p>Hei</p>",
		Organization: "Røde Kors",
		City:         "Tromso",
	},
	{
		Name:         "Bodø Røde Kors",
		Address:      "Havnegata 1, 8006 Bodø",
		Source:       "https://www.rodekors.no/lokalforeninger/nordland/bodo/",
		Organization: "Røde Kors",
		City:         "Bodo",
	},
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := get(t, NewServer(&stubSource{}, nil).Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListLocations(t *testing.T) {
	t.Parallel()

	src := &stubSource{locs: fixture}
	rec := get(t, NewServer(src, nil).Handler(), "/v1/locations?city=Tromso&q=storgata&limit=10&offset=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.LocationFilter{City: "Tromso", Query: "storgata", Limit: 10, Offset: 2}, src.filter)

	var body struct {
		Count     int              `json:"count"`
		Locations []model.Location `json:"locations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, fixture, body.Locations)
	assert.Contains(t, rec.Body.String(), `"notes":"<p>Hei</p>"`)
}

func TestListLocations_EmptyIsArray(t *testing.T) {
	t.Parallel()

	rec := get(t, NewServer(&stubSource{}, nil).Handler(), "/v1/locations")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0,"locations":[]}`, rec.Body.String())
}

func TestListLocations_BadParams(t *testing.T) {
	t.Parallel()

	h := NewServer(&stubSource{}, nil).Handler()
	for _, target := range []string{"/v1/locations?limit=x", "/v1/locations?offset=-1"} {
		rec := get(t, h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestListLocations_SourceError(t *testing.T) {
	t.Parallel()

	rec := get(t, NewServer(&stubSource{err: errors.New("db down")}, nil).Handler(), "/v1/locations")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestLocationsGeoJSON(t *testing.T) {
	t.Parallel()

	rec := get(t, NewServer(&stubSource{locs: fixture}, nil).Handler(), "/v1/locations.geojson")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			ID string `json:"id"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, fixture[0].Source, fc.Features[0].ID)
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	h := NewServer(&stubSource{locs: fixture}, nil).Handler()
	require.Equal(t, http.StatusOK, get(t, h, "/v1/locations").Code)
	require.Equal(t, http.StatusOK, get(t, h, "/v1/locations").Code)

	rec := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `civic_api_requests_total{code="200",method="GET",route="/v1/locations"} 2`)
}

func TestCORS(t *testing.T) {
	t.Parallel()

	h := NewServer(&stubSource{}, []string{"https://map.example.org"}).Handler()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://map.example.org")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://map.example.org", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestFileSource(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "records.json")
	data, err := json.Marshal(fixture)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	src := NewFileSource(path)
	ctx := context.Background()

	all, err := src.ListLocations(ctx, store.LocationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	// Sorted by source.
	assert.Equal(t, fixture[1].Source, all[0].Source)

	got, err := src.ListLocations(ctx, store.LocationFilter{City: "TROMSO"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = src.ListLocations(ctx, store.LocationFilter{Query: "bodo"})
	require.NoError(t, err)
	require.Len(t, got, 1, "query ignores diacritics")
	assert.Equal(t, "Bodø Røde Kors", got[0].Name)

	got, err = src.ListLocations(ctx, store.LocationFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, fixture[0].Source, got[0].Source)

	got, err = src.ListLocations(ctx, store.LocationFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileSource_Missing(t *testing.T) {
	t.Parallel()

	_, err := NewFileSource(filepath.Join(t.TempDir(), "none.json")).ListLocations(context.Background(), store.LocationFilter{})
	require.Error(t, err)
}
