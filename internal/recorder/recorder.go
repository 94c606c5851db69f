package recorder

import (
	"time"

	"AShareScreener/internal/model"
)

// RunSummary is the stored header of one screening run.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Instruments  int       `json:"instruments"`
	Passed       int       `json:"passed"`
	Insufficient int       `json:"insufficient"`
	Errors       int       `json:"errors"`
	Enriched     bool      `json:"enriched"`
}

// Summarize builds the stored header of a result.
func Summarize(r *model.ScreeningResult) RunSummary {
	counts := r.Counts()
	return RunSummary{
		RunID:        r.RunID,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		Instruments:  len(r.Rows),
		Passed:       counts[model.VerdictPass],
		Insufficient: counts[model.VerdictInsufficientData],
		Errors:       counts[model.VerdictError],
		Enriched:     r.Enriched,
	}
}

// Recorder persists screening history for later analysis.
type Recorder interface {
	RecordRun(result *model.ScreeningResult) error
	RecentRuns(limit int) ([]RunSummary, error)
	Close() error
}
