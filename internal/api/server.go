// Package api serves a read-only HTTP view of extracted records.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/codefornorway/civic-scrapers/internal/export"
	"github.com/codefornorway/civic-scrapers/internal/metrics"
	"github.com/codefornorway/civic-scrapers/internal/model"
	"github.com/codefornorway/civic-scrapers/internal/store"
)

// Source lists records. store.Store and *FileSource implement it.
type Source interface {
	ListLocations(ctx context.Context, filter store.LocationFilter) ([]model.Location, error)
}

var (
	_ Source = (store.Store)(nil)
	_ Source = (*FileSource)(nil)
)

// Server wires HTTP handlers to a record source.
type Server struct {
	router  chi.Router
	source  Source
	metrics *metrics.HTTP
	log     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(source Source, allowedOrigins []string) *Server {
	s := &Server{
		source:  source,
		metrics: metrics.NewHTTP(),
		log:     zap.L().With(zap.String("component", "api")),
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.logRequests)
	r.Use(s.metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Handle("/metrics", s.metrics.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/locations", s.listLocations)
		r.Get("/locations.geojson", s.locationsGeoJSON)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listLocations(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	locs, err := s.source.ListLocations(r.Context(), filter)
	if err != nil {
		s.log.Error("list locations", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list locations")
		return
	}
	if locs == nil {
		locs = []model.Location{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(locs),
		"locations": locs,
	})
}

func (s *Server) locationsGeoJSON(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	locs, err := s.source.ListLocations(r.Context(), filter)
	if err != nil {
		s.log.Error("list locations", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list locations")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(export.FeatureCollection(locs)); err != nil {
		s.log.Warn("encode geojson", zap.Error(err))
	}
}

func parseFilter(r *http.Request) (store.LocationFilter, error) {
	q := r.URL.Query()
	f := store.LocationFilter{
		City:         q.Get("city"),
		Query:        q.Get("q"),
		Organization: q.Get("organization"),
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, eris.Errorf("%s must be a non-negative integer", name)
		}
		*dst = n
	}
	return f, nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
