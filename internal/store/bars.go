package store

import (
	"context"
	"fmt"
	"time"

	"AShareScreener/internal/model"
)

// SaveBars inserts bars, keeping rows that already exist. Returns the number
// of new rows.
func (s *Store) SaveBars(ctx context.Context, bars []model.DailyBar) (int64, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO daily_data
		(ts_code, trade_date, open, high, low, close, vol)
		VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, b := range bars {
		res, err := stmt.ExecContext(ctx, b.Code, b.TradeDate.Format(model.TradeDateLayout),
			b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			return 0, fmt.Errorf("insert %s %s: %w", b.Code, b.TradeDate.Format(model.TradeDateLayout), err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// LoadBars reads up to HistoryLimit recent bars per code in one batched pass.
func (s *Store) LoadBars(ctx context.Context, codes []string) (map[string][]model.DailyBar, error) {
	return s.LoadRecentBars(ctx, codes, s.HistoryLimit)
}

// LoadRecentBars returns the bars of every requested code in ascending date
// order, reading at most limit most-recent bars per code (limit <= 0 reads
// all). Codes without data are absent from the map.
func (s *Store) LoadRecentBars(ctx context.Context, codes []string, limit int) (map[string][]model.DailyBar, error) {
	out := make(map[string][]model.DailyBar, len(codes))
	for _, chunk := range chunks(codes) {
		var (
			query string
			args  []interface{}
		)
		if limit > 0 {
			query = `SELECT ts_code, trade_date, open, high, low, close, vol FROM (
				SELECT ts_code, trade_date, open, high, low, close, vol,
					ROW_NUMBER() OVER (PARTITION BY ts_code ORDER BY trade_date DESC) AS rn
				FROM daily_data
				WHERE ts_code IN (` + placeholders(len(chunk)) + `)
			) WHERE rn <= ?
			ORDER BY ts_code, trade_date`
			args = toArgs(chunk, limit)
		} else {
			query = `SELECT ts_code, trade_date, open, high, low, close, vol
				FROM daily_data
				WHERE ts_code IN (` + placeholders(len(chunk)) + `)
				ORDER BY ts_code, trade_date`
			args = toArgs(chunk)
		}

		if err := s.scanBars(ctx, query, args, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) scanBars(ctx context.Context, query string, args []interface{}, out map[string][]model.DailyBar) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query daily_data: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			b    model.DailyBar
			date string
		)
		if err := rows.Scan(&b.Code, &date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return fmt.Errorf("scan daily_data: %w", err)
		}
		if b.TradeDate, err = model.ParseTradeDate(date); err != nil {
			return fmt.Errorf("bad trade_date %q for %s: %w", date, b.Code, err)
		}
		out[b.Code] = append(out[b.Code], b)
	}
	return rows.Err()
}

// LatestTradeDate returns the most recent stored trade date; ok is false on an
// empty table.
func (s *Store) LatestTradeDate(ctx context.Context) (t time.Time, ok bool, err error) {
	var date *string
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(trade_date) FROM daily_data`).Scan(&date); err != nil {
		return time.Time{}, false, fmt.Errorf("query latest trade_date: %w", err)
	}
	if date == nil {
		return time.Time{}, false, nil
	}
	t, err = model.ParseTradeDate(*date)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// Stats summarises the bar table.
type Stats struct {
	MinDate    string `json:"min_date"`
	MaxDate    string `json:"max_date"`
	StockCount int    `json:"stock_count"`
	RowCount   int    `json:"row_count"`
}

// Stats returns date coverage and row counts of daily_data.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var (
		st     Stats
		lo, hi *string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(trade_date), MAX(trade_date), COUNT(DISTINCT ts_code), COUNT(*) FROM daily_data`).
		Scan(&lo, &hi, &st.StockCount, &st.RowCount)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	if lo != nil {
		st.MinDate = *lo
	}
	if hi != nil {
		st.MaxDate = *hi
	}
	return &st, nil
}
