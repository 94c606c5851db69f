package model

import (
	"encoding/json"
	"time"
)

// UnknownText fills reference text fields that have no match.
const UnknownText = "未知"

// Row is one instrument's line in a screening result.
type Row struct {
	Code       string
	Name       string
	Industry   string
	TotalMV    float64
	Snapshot   Snapshot
	Verdict    Verdict
	Diagnostic string
}

// Passed mirrors the passed(bool) output column.
func (r Row) Passed() bool { return r.Verdict.Passed() }

// rowJSON is the flat wire shape of a Row, column for column with the CSV.
type rowJSON struct {
	Code     string  `json:"ts_code"`
	Name     string  `json:"name"`
	Industry string  `json:"industry"`
	TotalMV  float64 `json:"total_mv"`
	Snapshot
	Passed     bool    `json:"passed"`
	Verdict    Verdict `json:"reason"`
	Diagnostic string  `json:"diagnostic,omitempty"`
}

func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(rowJSON{
		Code: r.Code, Name: r.Name, Industry: r.Industry, TotalMV: r.TotalMV,
		Snapshot: r.Snapshot, Passed: r.Passed(), Verdict: r.Verdict, Diagnostic: r.Diagnostic,
	})
}

// UnmarshalJSON reads the flat shape; passed is derived from reason.
func (r *Row) UnmarshalJSON(data []byte) error {
	var w rowJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Row{
		Code: w.Code, Name: w.Name, Industry: w.Industry, TotalMV: w.TotalMV,
		Snapshot: w.Snapshot, Verdict: w.Verdict, Diagnostic: w.Diagnostic,
	}
	return nil
}

// ScreeningResult is the output of one screening run.
type ScreeningResult struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Rows       []Row     `json:"rows"`
	Enriched   bool      `json:"enriched"`
}

// Passed returns only the rows that passed every condition.
func (r *ScreeningResult) Passed() []Row {
	var out []Row
	for _, row := range r.Rows {
		if row.Passed() {
			out = append(out, row)
		}
	}
	return out
}

// Counts tallies rows per verdict.
func (r *ScreeningResult) Counts() map[Verdict]int {
	counts := make(map[Verdict]int, len(AllVerdicts))
	for _, row := range r.Rows {
		counts[row.Verdict]++
	}
	return counts
}

// Row looks up a row by code.
func (r *ScreeningResult) Row(code string) (Row, bool) {
	for _, row := range r.Rows {
		if row.Code == code {
			return row, true
		}
	}
	return Row{}, false
}
