// Package store persists extracted records so they can be queried after a
// run. Records are keyed by their source URL; a later run overwrites the
// row and stamps its own run id.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/codefornorway/civic-scrapers/internal/model"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// LocationFilter narrows ListLocations.
type LocationFilter struct {
	City         string // exact, case-insensitive
	Query        string // substring of name or address, case-insensitive
	Organization string
	Limit        int
	Offset       int
}

// Store defines the persistence interface for extracted records.
type Store interface {
	SaveLocations(ctx context.Context, runID string, locs []model.Location) error
	ListLocations(ctx context.Context, filter LocationFilter) ([]model.Location, error)
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the store for driver and migrates it.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch strings.ToLower(driver) {
	case DriverSQLite:
		st, err = NewSQLite(dsn)
	case DriverPostgres:
		st, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q (valid: sqlite, postgres)", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

const defaultListLimit = 500

func (f LocationFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

func (f LocationFilter) offset() int {
	if f.Offset < 0 {
		return 0
	}
	return f.Offset
}

// likePattern escapes LIKE wildcards in q and wraps it in %.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(q)) + "%"
}
