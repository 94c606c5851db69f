package store

import (
	"context"
	"database/sql"
	"fmt"

	"AShareScreener/internal/model"
)

// SaveDailyBasics upserts valuation rows.
func (s *Store) SaveDailyBasics(ctx context.Context, basics []model.DailyBasic) error {
	if len(basics) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO daily_basic
		(ts_code, trade_date, pe_ttm, pb, total_mv) VALUES (?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range basics {
		if _, err := stmt.ExecContext(ctx, b.Code, b.TradeDate.Format(model.TradeDateLayout), b.PETTM, b.PB, b.TotalMV); err != nil {
			return fmt.Errorf("insert daily_basic %s: %w", b.Code, err)
		}
	}
	return tx.Commit()
}

// SaveStockBasics replaces reference rows.
func (s *Store) SaveStockBasics(ctx context.Context, basics []model.StockBasic) error {
	if len(basics) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO stock_basic (ts_code, name, industry) VALUES (?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, b := range basics {
		if _, err := stmt.ExecContext(ctx, b.Code, b.Name, b.Industry); err != nil {
			return fmt.Errorf("insert stock_basic %s: %w", b.Code, err)
		}
	}
	return tx.Commit()
}

// LoadBasics returns reference data for the requested codes together with the
// latest known total market value. Codes without a stock_basic row are absent.
func (s *Store) LoadBasics(ctx context.Context, codes []string) (map[string]model.StockBasic, error) {
	out := make(map[string]model.StockBasic, len(codes))
	for _, chunk := range chunks(codes) {
		rows, err := s.db.QueryContext(ctx, `SELECT sb.ts_code, sb.name, sb.industry,
				(SELECT db.total_mv FROM daily_basic db
				 WHERE db.ts_code = sb.ts_code
				 ORDER BY db.trade_date DESC LIMIT 1)
			FROM stock_basic sb
			WHERE sb.ts_code IN (`+placeholders(len(chunk))+`)`, toArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("query stock_basic: %w", err)
		}
		for rows.Next() {
			var (
				b              model.StockBasic
				name, industry sql.NullString
				mv             sql.NullFloat64
			)
			if err := rows.Scan(&b.Code, &name, &industry, &mv); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan stock_basic: %w", err)
			}
			b.Name, b.Industry, b.TotalMV = name.String, industry.String, mv.Float64
			out[b.Code] = b
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CodesByMarketCap returns codes whose total_mv on the latest daily_basic date
// lies within [minMV, maxMV] (万元).
func (s *Store) CodesByMarketCap(ctx context.Context, minMV, maxMV float64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts_code FROM daily_basic
		WHERE trade_date = (SELECT MAX(trade_date) FROM daily_basic)
		  AND total_mv >= ? AND total_mv <= ?
		ORDER BY ts_code`, minMV, maxMV)
	if err != nil {
		return nil, fmt.Errorf("query daily_basic: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan daily_basic: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}
