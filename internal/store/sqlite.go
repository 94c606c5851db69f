package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"AShareScreener/internal/logger"
)

// queryChunk bounds the number of bound parameters in one IN (...) list.
const queryChunk = 500

// Store is the local market-data database.
type Store struct {
	// HistoryLimit caps the bars per code returned by LoadBars; <= 0 is unlimited.
	HistoryLimit int

	db *sql.DB
	mu sync.Mutex // serialises writers
}

// Open opens (or creates) the SQLite database and runs migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Infof("sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS daily_data (
			ts_code    TEXT NOT NULL,
			trade_date TEXT NOT NULL,
			open       REAL,
			high       REAL,
			low        REAL,
			close      REAL,
			vol        REAL,
			PRIMARY KEY (ts_code, trade_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_date ON daily_data(trade_date)`,

		`CREATE TABLE IF NOT EXISTS daily_basic (
			ts_code    TEXT NOT NULL,
			trade_date TEXT NOT NULL,
			pe_ttm     REAL,
			pb         REAL,
			total_mv   REAL,
			PRIMARY KEY (ts_code, trade_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_basic_date ON daily_basic(trade_date)`,

		`CREATE TABLE IF NOT EXISTS stock_basic (
			ts_code  TEXT PRIMARY KEY,
			name     TEXT,
			industry TEXT
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// DB exposes the handle for components sharing the same file.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	logger.Infof("closing sqlite store")
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// chunks splits codes into slices of at most queryChunk elements.
func chunks(codes []string) [][]string {
	var out [][]string
	for len(codes) > queryChunk {
		out = append(out, codes[:queryChunk])
		codes = codes[queryChunk:]
	}
	if len(codes) > 0 {
		out = append(out, codes)
	}
	return out
}

func toArgs(codes []string, extra ...interface{}) []interface{} {
	args := make([]interface{}, 0, len(codes)+len(extra))
	for _, c := range codes {
		args = append(args, c)
	}
	return append(args, extra...)
}
