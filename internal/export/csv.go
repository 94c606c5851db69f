package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"AShareScreener/internal/model"
)

// utf8BOM lets spreadsheet tools detect the encoding of Chinese names.
const utf8BOM = "\uFEFF"

var header = []string{
	"ts_code", "name", "industry", "total_mv",
	"close", "MA20", "MA60", "MA240", "RSI6", "RSI13", "VOL_MA3", "VOL_MA18",
	"passed", "reason", "diagnostic",
}

// WriteCSV writes rows with a header. Numbers use 2 decimals; undefined
// indicators are empty cells.
func WriteCSV(w io.Writer, rows []model.Row) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		s := r.Snapshot
		rec := []string{
			r.Code, r.Name, r.Industry, fixed(r.TotalMV),
			cell(s.Close), cell(s.MA20), cell(s.MA60), cell(s.MA240),
			cell(s.RSI6), cell(s.RSI13), cell(s.VolMA3), cell(s.VolMA18),
			strconv.FormatBool(r.Passed()), r.Verdict.String(), r.Diagnostic,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func fixed(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func cell(v null.Float) string {
	if !v.Valid {
		return ""
	}
	return fixed(v.Float64)
}

// FileName returns result_YYYYMMDD_HHMMSS.csv for t.
func FileName(t time.Time) string {
	return "result_" + t.Format("20060102_150405") + ".csv"
}

// ExportFile writes the result (or only its passing rows) into dir and returns
// the file path. A file that fails to write is removed.
func ExportFile(dir string, result *model.ScreeningResult, passedOnly bool, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	rows := result.Rows
	if passedOnly {
		rows = result.Passed()
	}

	path := filepath.Join(dir, FileName(now))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	if err := writeRows(f, rows); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write csv: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close export file: %w", err)
	}
	return path, nil
}

// writeRows is swapped in tests to fail mid-file.
var writeRows = WriteCSV
