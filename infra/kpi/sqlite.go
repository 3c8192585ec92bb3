// Package kpi persists sweep summaries so results from several sweeps can
// be queried together.
package kpi

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/evsim/core/experiment"
)

// SQLiteStore persists summary rows in a SQLite database, one row per
// (window, scenario, algorithm).
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var columns = experiment.Columns

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = c + " REAL"
	}
	schema := `CREATE TABLE IF NOT EXISTS run_summary (
        window_name TEXT,
        start_date TEXT,
        end_date TEXT,
        scenario TEXT,
        algorithm TEXT,
        ` + strings.Join(defs, ",\n        ") + `,
        updated_at INTEGER,
        PRIMARY KEY(window_name, scenario, algorithm)
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// Upsert inserts or replaces rows in one transaction. Rows without metrics
// are skipped so a partial sweep never erases earlier results.
func (s *SQLiteStore) Upsert(ctx context.Context, rows []experiment.Row) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)+6), ", ")
	sets := make([]string, 0, len(columns)+3)
	sets = append(sets, "start_date = excluded.start_date", "end_date = excluded.end_date")
	for _, c := range columns {
		sets = append(sets, c+" = excluded."+c)
	}
	sets = append(sets, "updated_at = excluded.updated_at")
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_summary
        (window_name, start_date, end_date, scenario, algorithm, `+strings.Join(columns, ", ")+`, updated_at)
        VALUES (`+placeholders+`)
        ON CONFLICT(window_name, scenario, algorithm) DO UPDATE SET `+strings.Join(sets, ", "))
	if err != nil {
		return 0, err
	}
	defer func() { _ = stmt.Close() }()

	ts := s.now().UnixNano()
	n := 0
	for _, r := range rows {
		if r.Missing {
			continue
		}
		args := []any{r.Window, r.Start, r.End, r.Scenario, r.Algorithm}
		for _, v := range r.Values() {
			args = append(args, nullable(v))
		}
		args = append(args, ts)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return n, fmt.Errorf("upsert %s/%s/%s: %w", r.Window, r.Scenario, r.Algorithm, err)
		}
		n++
	}
	return n, tx.Commit()
}

// Query returns stored rows ordered by window start, scenario and
// algorithm. An empty algorithm matches all. NULL metrics come back as NaN.
func (s *SQLiteStore) Query(ctx context.Context, algorithm string) ([]experiment.Row, error) {
	q := `SELECT window_name, start_date, end_date, scenario, algorithm, ` + strings.Join(columns, ", ") + `
        FROM run_summary`
	var args []any
	if algorithm != "" {
		q += " WHERE algorithm = ?"
		args = append(args, algorithm)
	}
	q += " ORDER BY start_date, scenario, algorithm"
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var res []experiment.Row
	for rows.Next() {
		var r experiment.Row
		vals := make([]sql.NullFloat64, len(columns))
		dest := []any{&r.Window, &r.Start, &r.End, &r.Scenario, &r.Algorithm}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		fv := make([]float64, len(vals))
		for i, v := range vals {
			fv[i] = math.NaN()
			if v.Valid {
				fv[i] = v.Float64
			}
		}
		r.SetValues(fv)
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
