package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geonames-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgx. Batches go through the COPY
// protocol, which is the fastest bulk path and atomic per call.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS places (
	geonameid    BIGINT PRIMARY KEY,
	parent_id    BIGINT,
	name         TEXT,
	feature_code TEXT,
	country_code TEXT,
	admin1       TEXT,
	admin2       TEXT,
	admin3       TEXT,
	admin4       TEXT,
	lat          DOUBLE PRECISION,
	lon          DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS names (
	geonameid   BIGINT,
	lang        TEXT,
	name        TEXT,
	isPreferred SMALLINT,
	isShort     SMALLINT
);

CREATE TABLE IF NOT EXISTS import_runs (
	id          TEXT PRIMARY KEY,
	places_path TEXT NOT NULL,
	names_path  TEXT,
	status      TEXT NOT NULL,
	stats       JSONB NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);
`

const postgresIndexes = `
CREATE INDEX IF NOT EXISTS idx_places_parent ON places(parent_id);
CREATE INDEX IF NOT EXISTS idx_places_feature ON places(feature_code);
CREATE INDEX IF NOT EXISTS idx_places_country ON places(country_code);
CREATE INDEX IF NOT EXISTS idx_places_admin1234 ON places(country_code, admin1, admin2, admin3, admin4);
CREATE INDEX IF NOT EXISTS idx_names_geoname ON names(geonameid);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) CreateIndexes(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresIndexes)
	return eris.Wrap(err, "postgres: create indexes")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var placeColumns = []string{
	"geonameid", "parent_id", "name", "feature_code", "country_code",
	"admin1", "admin2", "admin3", "admin4", "lat", "lon",
}

var nameColumns = []string{"geonameid", "lang", "name", "ispreferred", "isshort"}

func (s *PostgresStore) WritePlaces(ctx context.Context, batch []model.ResolvedPlace) error {
	if len(batch) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(batch))
	for i := range batch {
		p := &batch[i]
		var parent any
		if p.ParentID != nil {
			parent = *p.ParentID
		}
		rows = append(rows, []any{
			p.GeonameID, parent, p.Name, p.FeatureCode, p.CountryCode,
			nullStr(p.Admin1), nullStr(p.Admin2), nullStr(p.Admin3), nullStr(p.Admin4),
			p.Lat, p.Lon,
		})
	}

	_, err := s.pool.CopyFrom(ctx, pgx.Identifier{"places"}, placeColumns, pgx.CopyFromRows(rows))
	return eris.Wrap(err, "postgres: copy places batch")
}

func (s *PostgresStore) WriteNames(ctx context.Context, batch []model.NameRecord) error {
	if len(batch) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(batch))
	for i := range batch {
		n := &batch[i]
		rows = append(rows, []any{
			n.GeonameID, nullStr(n.Lang), nullStr(n.Name), boolInt(n.IsPreferred), boolInt(n.IsShort),
		})
	}

	_, err := s.pool.CopyFrom(ctx, pgx.Identifier{"names"}, nameColumns, pgx.CopyFromRows(rows))
	return eris.Wrap(err, "postgres: copy names batch")
}

func (s *PostgresStore) OrphanNames(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM names n
		 LEFT JOIN places p ON p.geonameid = n.geonameid
		 WHERE p.geonameid IS NULL`,
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count orphan names")
}

func (s *PostgresStore) Summary(ctx context.Context) (*Summary, error) {
	var sum Summary
	row := s.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM places),
			(SELECT COUNT(*) FROM names),
			(SELECT COUNT(*) FROM places WHERE parent_id IS NULL)`,
	)
	if err := row.Scan(&sum.Places, &sum.Names, &sum.Roots); err != nil {
		return nil, eris.Wrap(err, "postgres: summary")
	}

	orphans, err := s.OrphanNames(ctx)
	if err != nil {
		return nil, err
	}
	sum.OrphanNames = orphans
	return &sum, nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, run *model.ImportRun) error {
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run stats")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO import_runs (id, places_path, names_path, status, stats, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.PlacesPath, run.NamesPath, run.Status, statsJSON,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: insert run")
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, places_path, names_path, status, stats, started_at, finished_at
		 FROM import_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.ImportRun
	for rows.Next() {
		var (
			r         model.ImportRun
			namesPath *string
			statsJSON []byte
		)
		if err := rows.Scan(&r.ID, &r.PlacesPath, &namesPath, &r.Status, &statsJSON,
			&r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if namesPath != nil {
			r.NamesPath = *namesPath
		}
		if err := json.Unmarshal(statsJSON, &r.Stats); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run stats")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
