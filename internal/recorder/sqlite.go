package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"AShareScreener/internal/logger"
	"AShareScreener/internal/model"
)

// SQLiteRecorder persists screening runs and their verdicts.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Infof("sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS screening_runs (
			run_id       TEXT PRIMARY KEY,
			started_at   INTEGER NOT NULL,
			finished_at  INTEGER NOT NULL,
			instruments  INTEGER,
			passed       INTEGER,
			insufficient INTEGER,
			errors       INTEGER,
			enriched     INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON screening_runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS screening_verdicts (
			run_id     TEXT NOT NULL,
			ts_code    TEXT NOT NULL,
			verdict    INTEGER NOT NULL,
			close      REAL,
			ma20       REAL,
			ma60       REAL,
			ma240      REAL,
			rsi6       REAL,
			rsi13      REAL,
			vol_ma3    REAL,
			vol_ma18   REAL,
			diagnostic TEXT,
			PRIMARY KEY (run_id, ts_code)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_verdicts_code ON screening_verdicts(ts_code)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun stores the run header and one row per verdict in a single
// transaction. Null indicators are stored as NULL.
func (r *SQLiteRecorder) RecordRun(result *model.ScreeningResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sum := Summarize(result)
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO screening_runs
		(run_id, started_at, finished_at, instruments, passed, insufficient, errors, enriched)
		VALUES (?,?,?,?,?,?,?,?)`,
		sum.RunID, sum.StartedAt.Unix(), sum.FinishedAt.Unix(),
		sum.Instruments, sum.Passed, sum.Insufficient, sum.Errors, sum.Enriched,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO screening_verdicts
		(run_id, ts_code, verdict, close, ma20, ma60, ma240, rsi6, rsi13, vol_ma3, vol_ma18, diagnostic)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare verdicts: %w", err)
	}
	defer stmt.Close()

	for _, row := range result.Rows {
		s := row.Snapshot
		// null.Float implements driver.Valuer
		if _, err := stmt.Exec(result.RunID, row.Code, int(row.Verdict),
			s.Close, s.MA20, s.MA60, s.MA240, s.RSI6, s.RSI13, s.VolMA3, s.VolMA18,
			row.Diagnostic,
		); err != nil {
			return fmt.Errorf("insert verdict %s: %w", row.Code, err)
		}
	}
	return tx.Commit()
}

// RecentRuns returns the newest run headers first.
func (r *SQLiteRecorder) RecentRuns(limit int) ([]RunSummary, error) {
	rows, err := r.db.Query(`SELECT run_id, started_at, finished_at, instruments, passed, insufficient, errors, enriched
		FROM screening_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			s                 RunSummary
			started, finished int64
		)
		if err := rows.Scan(&s.RunID, &started, &finished, &s.Instruments, &s.Passed, &s.Insufficient, &s.Errors, &s.Enriched); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.StartedAt = time.Unix(started, 0)
		s.FinishedAt = time.Unix(finished, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	logger.Infof("closing sqlite recorder")
	return r.db.Close()
}
