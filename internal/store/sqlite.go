package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/codefornorway/civic-scrapers/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	latitude     REAL,
	longitude    REAL,
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_locations_city ON locations(city COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_locations_run_id ON locations(run_id);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteUpsert = `
INSERT INTO locations (source, run_id, organization, name, description, image, address, email, city, notes, latitude, longitude, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(source) DO UPDATE SET
	run_id = excluded.run_id,
	organization = excluded.organization,
	name = excluded.name,
	description = excluded.description,
	image = excluded.image,
	address = excluded.address,
	email = excluded.email,
	city = excluded.city,
	notes = excluded.notes,
	latitude = excluded.latitude,
	longitude = excluded.longitude,
	updated_at = excluded.updated_at`

// SaveLocations upserts locs in one transaction.
func (s *SQLiteStore) SaveLocations(ctx context.Context, runID string, locs []model.Location) error {
	if len(locs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, l := range locs {
		var lat, lon sql.NullFloat64
		if l.Coordinates != nil {
			lat = sql.NullFloat64{Float64: l.Coordinates.Lat, Valid: true}
			lon = sql.NullFloat64{Float64: l.Coordinates.Lon, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			l.Source, runID, l.Organization, l.Name, l.Description, l.Image,
			l.Address, l.Email, l.City, l.Notes, lat, lon, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert %s", l.Source)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

// ListLocations returns stored records ordered by source URL.
func (s *SQLiteStore) ListLocations(ctx context.Context, f LocationFilter) ([]model.Location, error) {
	var (
		where []string
		args  []any
	)
	if f.City != "" {
		where = append(where, "city = ? COLLATE NOCASE")
		args = append(args, f.City)
	}
	if f.Organization != "" {
		where = append(where, "organization = ?")
		args = append(args, f.Organization)
	}
	if f.Query != "" {
		where = append(where, `(lower(name) LIKE ? ESCAPE '\' OR lower(address) LIKE ? ESCAPE '\')`)
		p := likePattern(f.Query)
		args = append(args, p, p)
	}

	q := `SELECT source, organization, name, description, image, address, email, city, notes, latitude, longitude FROM locations`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY source LIMIT ? OFFSET ?"
	args = append(args, f.limit(), f.offset())

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list locations")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Location
	for rows.Next() {
		var (
			l        model.Location
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&l.Source, &l.Organization, &l.Name, &l.Description, &l.Image,
			&l.Address, &l.Email, &l.City, &l.Notes, &lat, &lon); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan location")
		}
		if lat.Valid && lon.Valid {
			l.Coordinates, _ = model.NewCoordinates(lat.Float64, lon.Float64)
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate locations")
}
