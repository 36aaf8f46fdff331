package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/geonames-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB

	// sqlite allows a single writer; serializing here lets the places and
	// names pipelines share one store without SQLITE_BUSY churn.
	mu sync.Mutex
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
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
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS places (
	geonameid    INTEGER PRIMARY KEY,
	parent_id    INTEGER,
	name         TEXT,
	feature_code TEXT,
	country_code TEXT,
	admin1       TEXT,
	admin2       TEXT,
	admin3       TEXT,
	admin4       TEXT,
	lat          REAL,
	lon          REAL
);

CREATE TABLE IF NOT EXISTS names (
	geonameid   INTEGER,
	lang        TEXT,
	name        TEXT,
	isPreferred INTEGER,
	isShort     INTEGER
);

CREATE TABLE IF NOT EXISTS import_runs (
	id          TEXT PRIMARY KEY,
	places_path TEXT NOT NULL,
	names_path  TEXT,
	status      TEXT NOT NULL,
	stats       TEXT NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);
`

// sqliteIndexes are created after bulk load; building them up front would
// slow every batch insert.
const sqliteIndexes = `
CREATE INDEX IF NOT EXISTS idx_places_parent ON places(parent_id);
CREATE INDEX IF NOT EXISTS idx_places_feature ON places(feature_code);
CREATE INDEX IF NOT EXISTS idx_places_country ON places(country_code);
CREATE INDEX IF NOT EXISTS idx_places_admin1234 ON places(country_code, admin1, admin2, admin3, admin4);
CREATE INDEX IF NOT EXISTS idx_names_geoname ON names(geonameid);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) CreateIndexes(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, sqliteIndexes)
	return eris.Wrap(err, "sqlite: create indexes")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) WritePlaces(ctx context.Context, batch []model.ResolvedPlace) error {
	if len(batch) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin places batch")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO places (geonameid, parent_id, name, feature_code, country_code,
		                     admin1, admin2, admin3, admin4, lat, lon)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare places insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range batch {
		p := &batch[i]
		var parent sql.NullInt64
		if p.ParentID != nil {
			parent = sql.NullInt64{Int64: *p.ParentID, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			p.GeonameID, parent, p.Name, p.FeatureCode, p.CountryCode,
			nullStr(p.Admin1), nullStr(p.Admin2), nullStr(p.Admin3), nullStr(p.Admin4),
			p.Lat, p.Lon,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert place %d", p.GeonameID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit places batch")
}

func (s *SQLiteStore) WriteNames(ctx context.Context, batch []model.NameRecord) error {
	if len(batch) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin names batch")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO names (geonameid, lang, name, isPreferred, isShort)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare names insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range batch {
		n := &batch[i]
		if _, err := stmt.ExecContext(ctx,
			n.GeonameID, nullStr(n.Lang), nullStr(n.Name), boolInt(n.IsPreferred), boolInt(n.IsShort),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert name for %d", n.GeonameID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit names batch")
}

func (s *SQLiteStore) OrphanNames(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM names n
		 LEFT JOIN places p ON p.geonameid = n.geonameid
		 WHERE p.geonameid IS NULL`,
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count orphan names")
}

func (s *SQLiteStore) Summary(ctx context.Context) (*Summary, error) {
	var sum Summary
	row := s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM places),
			(SELECT COUNT(*) FROM names),
			(SELECT COUNT(*) FROM places WHERE parent_id IS NULL)`,
	)
	if err := row.Scan(&sum.Places, &sum.Names, &sum.Roots); err != nil {
		return nil, eris.Wrap(err, "sqlite: summary")
	}

	orphans, err := s.OrphanNames(ctx)
	if err != nil {
		return nil, err
	}
	sum.OrphanNames = orphans
	return &sum, nil
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run *model.ImportRun) error {
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run stats")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO import_runs (id, places_path, names_path, status, stats, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.PlacesPath, run.NamesPath, run.Status, string(statsJSON),
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: insert run")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, places_path, names_path, status, stats, started_at, finished_at
		 FROM import_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.ImportRun
	for rows.Next() {
		var (
			r         model.ImportRun
			namesPath sql.NullString
			statsJSON string
		)
		if err := rows.Scan(&r.ID, &r.PlacesPath, &namesPath, &r.Status, &statsJSON,
			&r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.NamesPath = namesPath.String
		if err := json.Unmarshal([]byte(statsJSON), &r.Stats); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run stats")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
