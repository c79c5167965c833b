// Package history persists a record of every reconciliation run in a
// local SQLite database so operators can audit which folders were
// compared, with which frequencies, and what came out.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"ssbretune/reconcile"
)

// Store wraps the run-history database.
type Store struct {
	conn *sql.DB
}

// Run is one persisted reconciliation run.
type Run struct {
	ID         string
	StartedAt  time.Time
	InputDir   string
	FreqBefore string
	FreqAfter  string
	Tables     []TableStats
}

// TableStats holds the per-relation-type counters of a run. Skipped
// tables carry the diagnostic code and zero counters.
type TableStats struct {
	Table         string
	SkipCode      string
	PreRows       int
	PostRows      int
	Common        int
	NewInPost     int
	MissingInPost int
	Discrepancies int
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := createSchema(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func createSchema(conn *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		input_dir TEXT NOT NULL,
		freq_before TEXT NOT NULL,
		freq_after TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS run_tables (
		run_id TEXT NOT NULL REFERENCES runs(id),
		table_name TEXT NOT NULL,
		skip_code TEXT NOT NULL DEFAULT '',
		pre_rows INTEGER NOT NULL DEFAULT 0,
		post_rows INTEGER NOT NULL DEFAULT 0,
		common INTEGER NOT NULL DEFAULT 0,
		new_in_post INTEGER NOT NULL DEFAULT 0,
		missing_in_post INTEGER NOT NULL DEFAULT 0,
		discrepancies INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, table_name)
	);
	`
	if _, err := conn.Exec(schema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// Record stores one run with its per-table counters and returns the
// generated run id.
func (s *Store) Record(inputDir, freqBefore, freqAfter string, results map[string]*reconcile.Result, skips []reconcile.Skip) (string, error) {
	runID := uuid.New().String()

	tx, err := s.conn.Begin()
	if err != nil {
		return "", fmt.Errorf("begin history tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO runs (id, started_at, input_dir, freq_before, freq_after) VALUES (?, ?, ?, ?, ?)",
		runID, time.Now(), inputDir, freqBefore, freqAfter,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	insert := "INSERT INTO run_tables (run_id, table_name, skip_code, pre_rows, post_rows, common, new_in_post, missing_in_post, discrepancies) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
	for table, res := range results {
		_, err = tx.Exec(insert, runID, table, "",
			res.Meta.PreRows, res.Meta.PostRows,
			len(res.PairStats), res.NewInPost.Len(), res.MissingInPost.Len(), res.Discrepancies.Len())
		if err != nil {
			return "", fmt.Errorf("insert run table: %w", err)
		}
	}
	for _, skip := range skips {
		if _, err = tx.Exec(insert, runID, skip.Table, string(skip.Code), 0, 0, 0, 0, 0, 0); err != nil {
			return "", fmt.Errorf("insert skipped run table: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit history tx: %w", err)
	}
	return runID, nil
}

// Recent returns the latest runs, newest first, with their table stats.
func (s *Store) Recent(limit int) ([]Run, error) {
	rows, err := s.conn.Query(
		"SELECT id, started_at, input_dir, freq_before, freq_after FROM runs ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.InputDir, &r.FreqBefore, &r.FreqAfter); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	for i := range runs {
		stats, err := s.tableStats(runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Tables = stats
	}
	return runs, nil
}

func (s *Store) tableStats(runID string) ([]TableStats, error) {
	rows, err := s.conn.Query(
		"SELECT table_name, skip_code, pre_rows, post_rows, common, new_in_post, missing_in_post, discrepancies FROM run_tables WHERE run_id = ? ORDER BY table_name",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query run tables: %w", err)
	}
	defer rows.Close()

	var stats []TableStats
	for rows.Next() {
		var t TableStats
		if err := rows.Scan(&t.Table, &t.SkipCode, &t.PreRows, &t.PostRows, &t.Common, &t.NewInPost, &t.MissingInPost, &t.Discrepancies); err != nil {
			return nil, fmt.Errorf("scan run table: %w", err)
		}
		stats = append(stats, t)
	}
	return stats, rows.Err()
}
