// Package store persists resolved places and alternate names into the
// two-table snapshot schema, plus per-run bookkeeping.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geonames-cli/internal/model"
)

// Summary describes the contents of a built store.
type Summary struct {
	Places      int64
	Names       int64
	Roots       int64
	OrphanNames int64
}

// Store is the persistence sink for the import pipeline. WritePlaces and
// WriteNames each commit one transactional batch; the two tables are
// independent and batches may interleave. Implementations serialize
// commits internally so the places and names pipelines can write
// concurrently.
type Store interface {
	// Schema
	Migrate(ctx context.Context) error
	// CreateIndexes builds the query indexes after bulk load.
	CreateIndexes(ctx context.Context) error

	// Batched writes
	WritePlaces(ctx context.Context, batch []model.ResolvedPlace) error
	WriteNames(ctx context.Context, batch []model.NameRecord) error

	// Post-load queries
	OrphanNames(ctx context.Context) (int64, error)
	Summary(ctx context.Context) (*Summary, error)

	// Run bookkeeping
	RecordRun(ctx context.Context, run *model.ImportRun) error
	ListRuns(ctx context.Context, limit int) ([]model.ImportRun, error)

	Close() error
}

// Open creates a Store for the configured driver. The sqlite driver treats
// dsn as a filesystem path; postgres expects a connection string.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
