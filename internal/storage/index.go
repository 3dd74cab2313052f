package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const indexFile = "runs.db"

var ErrBadQuery = errors.New("storage: invalid index query")

const indexSchema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    solver TEXT NOT NULL,
    layout TEXT NOT NULL,
    b0 REAL NOT NULL,
    readouts INTEGER NOT NULL,
    elapsed REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS run_metrics (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    metric TEXT NOT NULL,
    value REAL NOT NULL,
    PRIMARY KEY (run_id, metric)
);
CREATE INDEX IF NOT EXISTS idx_metric_value ON run_metrics(metric, value);
`

// Index is a SQLite catalog of stored runs and their metrics. The run
// directories stay authoritative; Sync rebuilds the catalog from them.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (or creates) the catalog in dir.
func OpenIndex(ctx context.Context, dir string) (*Index, error) {
	db, err := sql.Open("sqlite", filepath.Join(dir, indexFile)+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index schema: %w", err)
	}
	return &Index{db: db}, nil
}

// OpenIndex opens the catalog of s and syncs it with the run directories.
func (s *Store) OpenIndex(ctx context.Context) (*Index, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	idx, err := OpenIndex(ctx, s.baseDir)
	if err != nil {
		return nil, err
	}
	if err := idx.Sync(ctx, runs); err != nil {
		idx.Close()
		return nil, err
	}
	return idx, nil
}

func (x *Index) Close() error { return x.db.Close() }

// Add inserts meta, replacing an earlier entry with the same id.
func (x *Index) Add(ctx context.Context, meta RunMetadata) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := addRun(ctx, tx, meta); err != nil {
		return err
	}
	return tx.Commit()
}

// Sync replaces the whole catalog with runs.
func (x *Index) Sync(ctx context.Context, runs []RunMetadata) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_metrics`); err != nil {
		return fmt.Errorf("clear metrics: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs`); err != nil {
		return fmt.Errorf("clear runs: %w", err)
	}
	for _, meta := range runs {
		if err := addRun(ctx, tx, meta); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func addRun(ctx context.Context, tx *sql.Tx, meta RunMetadata) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM run_metrics WHERE run_id = ?`, meta.ID); err != nil {
		return fmt.Errorf("index %s: %w", meta.ID, err)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, name, timestamp, solver, layout, b0, readouts, elapsed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.Name, meta.Timestamp.Format(time.RFC3339Nano), meta.Solver, meta.Layout,
		meta.B0, meta.Readouts, meta.Elapsed)
	if err != nil {
		return fmt.Errorf("index %s: %w", meta.ID, err)
	}
	for name, v := range meta.Metrics {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_metrics (run_id, metric, value) VALUES (?, ?, ?)`,
			meta.ID, name, v); err != nil {
			return fmt.Errorf("index %s metric %s: %w", meta.ID, name, err)
		}
	}
	return nil
}

// Query selects runs by one metric.
type Query struct {
	Metric     string
	// Name restricts the result to runs of one preset or config.
	Name       string
	Descending bool

	// Limit <= 0 returns every match.
	Limit int
}

type IndexEntry struct {
	ID        string
	Name      string
	Timestamp time.Time
	Solver    string
	Layout    string
	Value     float64
}

// Query returns the runs carrying q.Metric ordered by its value.
func (x *Index) Query(ctx context.Context, q Query) ([]IndexEntry, error) {
	if q.Metric == "" {
		return nil, fmt.Errorf("%w: metric is required", ErrBadQuery)
	}
	stmt := `
		SELECT r.id, r.name, r.timestamp, r.solver, r.layout, m.value
		FROM runs r JOIN run_metrics m ON m.run_id = r.id
		WHERE m.metric = ?`
	args := []any{q.Metric}
	if q.Name != "" {
		stmt += ` AND r.name = ?`
		args = append(args, q.Name)
	}
	if q.Descending {
		stmt += ` ORDER BY m.value DESC, r.timestamp`
	} else {
		stmt += ` ORDER BY m.value ASC, r.timestamp`
	}
	if q.Limit > 0 {
		stmt += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := x.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Metric, err)
	}
	defer rows.Close()

	var out []IndexEntry
	for rows.Next() {
		var e IndexEntry
		var ts string
		if err := rows.Scan(&e.ID, &e.Name, &ts, &e.Solver, &e.Layout, &e.Value); err != nil {
			return nil, err
		}
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("run %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Metrics lists the distinct metric names in the catalog.
func (x *Index) Metrics(ctx context.Context) ([]string, error) {
	rows, err := x.db.QueryContext(ctx, `SELECT DISTINCT metric FROM run_metrics ORDER BY metric`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
