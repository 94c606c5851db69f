package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"AShareScreener/internal/logger"
	"AShareScreener/internal/model"
)

// LoadWatchlist reads codes from a CSV file with a ts_code (or code) column,
// falling back to the first column when there is no recognised header.
func LoadWatchlist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open watchlist: %w", err)
	}
	defer f.Close()
	return ReadWatchlist(f)
}

// ReadWatchlist parses a watchlist. Invalid codes are logged and skipped.
func ReadWatchlist(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse watchlist: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	col, start := 0, 0
	for i, h := range records[0] {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, utf8BOM)))
		if h == "ts_code" || h == "code" {
			col, start = i, 1
			break
		}
	}

	var codes []string
	for _, rec := range records[start:] {
		if col >= len(rec) {
			continue
		}
		raw := strings.TrimSpace(strings.TrimPrefix(rec[col], utf8BOM))
		if raw == "" {
			continue
		}
		code, err := model.NormalizeCode(raw)
		if err != nil {
			logger.Warnf("watchlist: skipping %q: %v", raw, err)
			continue
		}
		codes = append(codes, code)
	}
	return codes, nil
}
