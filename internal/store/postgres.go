package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/codefornorway/civic-scrapers/internal/db"
	"github.com/codefornorway/civic-scrapers/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns, minConns := int32(4), int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS locations (
	source       TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	organization TEXT NOT NULL DEFAULT '',
	name         TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	image        TEXT NOT NULL DEFAULT '',
	address      TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	notes        TEXT NOT NULL DEFAULT '',
	latitude     DOUBLE PRECISION,
	longitude    DOUBLE PRECISION,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_locations_city ON locations (lower(city));
CREATE INDEX IF NOT EXISTS idx_locations_run_id ON locations (run_id);
`

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var locationColumns = []string{
	"source", "run_id", "organization", "name", "description", "image",
	"address", "email", "city", "notes", "latitude", "longitude", "updated_at",
}

// SaveLocations bulk-upserts locs keyed by source URL.
func (s *PostgresStore) SaveLocations(ctx context.Context, runID string, locs []model.Location) error {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(locs))
	for _, l := range locs {
		var lat, lon *float64
		if l.Coordinates != nil {
			lat, lon = &l.Coordinates.Lat, &l.Coordinates.Lon
		}
		rows = append(rows, []any{
			l.Source, runID, l.Organization, l.Name, l.Description, l.Image,
			l.Address, l.Email, l.City, l.Notes, lat, lon, now,
		})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "locations",
		Columns:      locationColumns,
		ConflictKeys: []string{"source"},
	}, rows)
	return eris.Wrap(err, "postgres: save locations")
}

// ListLocations returns stored records ordered by source URL.
func (s *PostgresStore) ListLocations(ctx context.Context, f LocationFilter) ([]model.Location, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.City != "" {
		where = append(where, "lower(city) = lower("+arg(f.City)+")")
	}
	if f.Organization != "" {
		where = append(where, "organization = "+arg(f.Organization))
	}
	if f.Query != "" {
		p := arg(likePattern(f.Query))
		where = append(where, "(lower(name) LIKE "+p+" OR lower(address) LIKE "+p+")")
	}

	q := `SELECT source, organization, name, description, image, address, email, city, notes, latitude, longitude FROM locations`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY source LIMIT " + arg(f.limit()) + " OFFSET " + arg(f.offset())

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list locations")
	}
	defer rows.Close()

	var out []model.Location
	for rows.Next() {
		var (
			l        model.Location
			lat, lon pgtype.Float8
		)
		if err := rows.Scan(&l.Source, &l.Organization, &l.Name, &l.Description, &l.Image,
			&l.Address, &l.Email, &l.City, &l.Notes, &lat, &lon); err != nil {
			return nil, eris.Wrap(err, "postgres: scan location")
		}
		if lat.Valid && lon.Valid {
			l.Coordinates, _ = model.NewCoordinates(lat.Float64, lon.Float64)
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate locations")
}
