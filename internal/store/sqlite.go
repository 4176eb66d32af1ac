package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

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
			db.Close() //nolint:errcheck,gosec
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	year       INTEGER NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS snapshots (
	year        INTEGER PRIMARY KEY,
	source_path TEXT NOT NULL,
	source_sheet TEXT NOT NULL DEFAULT '',
	source_size INTEGER NOT NULL,
	source_mod  DATETIME NOT NULL,
	sha256      TEXT NOT NULL,
	path        TEXT NOT NULL,
	rows        INTEGER NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_year ON runs(year);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	// Ledgers created before snapshots recorded the results sheet.
	has, err := s.hasColumn(ctx, "snapshots", "source_sheet")
	if err != nil || has {
		return err
	}
	_, err = s.db.ExecContext(ctx, `ALTER TABLE snapshots ADD COLUMN source_sheet TEXT NOT NULL DEFAULT ''`)
	return eris.Wrap(err, "sqlite: migrate snapshots source_sheet")
}

func (s *SQLiteStore) hasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: table info %s", table)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, eris.Wrapf(err, "sqlite: scan table info %s", table)
		}
		if name == column {
			return true, nil
		}
	}
	return false, eris.Wrapf(rows.Err(), "sqlite: table info %s", table)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) StartRun(ctx context.Context, year int) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, year, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, year, string(RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &Run{
		ID:        id,
		Year:      year,
		Status:    RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET error = ?, status = ?, updated_at = ? WHERE id = ?`,
		msg, string(RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, year, status, result, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, year, status, result, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Year != 0 {
		query += ` AND year = ?`
		args = append(args, filter.Year)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY rowid DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// GetSnapshot returns the manifest row for a survey year, or nil if there is none.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, year int) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT year, source_path, source_sheet, source_size, source_mod, sha256, path, rows, created_at
		 FROM snapshots WHERE year = ?`,
		year,
	)

	var snap Snapshot
	err := row.Scan(&snap.Year, &snap.SourcePath, &snap.SourceSheet, &snap.SourceSize, &snap.SourceMod,
		&snap.SHA256, &snap.Path, &snap.Rows, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get snapshot")
	}
	return &snap, nil
}

// PutSnapshot inserts or replaces the manifest row for snap.Year.
func (s *SQLiteStore) PutSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (year, source_path, source_sheet, source_size, source_mod, sha256, path, rows, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(year) DO UPDATE SET
			source_path = excluded.source_path,
			source_sheet = excluded.source_sheet,
			source_size = excluded.source_size,
			source_mod  = excluded.source_mod,
			sha256      = excluded.sha256,
			path        = excluded.path,
			rows        = excluded.rows,
			created_at  = excluded.created_at`,
		snap.Year, snap.SourcePath, snap.SourceSheet, snap.SourceSize, snap.SourceMod.UTC(),
		snap.SHA256, snap.Path, snap.Rows, snap.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: put snapshot %d", snap.Year)
}

func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, year int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE year = ?`, year)
	return eris.Wrapf(err, "sqlite: delete snapshot %d", year)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var resultJSON, errMsg sql.NullString

	err := row.Scan(&r.ID, &r.Year, &r.Status, &resultJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if resultJSON.Valid {
		r.Result = &RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	r.Error = errMsg.String
	return &r, nil
}
