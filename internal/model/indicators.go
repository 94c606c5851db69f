package model

import "github.com/guregu/null/v6"

const (
	// LongestWindow is the MA240 window and the close lookback.
	LongestWindow = 240
	// MinHistory is LongestWindow plus the two rows needed for trend comparisons.
	MinHistory = LongestWindow + 2
)

// IndicatorSeries is a bar sequence for one instrument augmented with derived
// columns. Every column has one entry per bar; an entry is null until its own
// trailing window is full, so rows from LongestWindow onward are fully defined.
// Rows are never dropped: the volume crossover looks back past that point.
type IndicatorSeries struct {
	Code        string
	Bars        []DailyBar
	MA20        []null.Float
	MA60        []null.Float
	MA240       []null.Float
	RSI6        []null.Float
	RSI13       []null.Float
	VolMA3      []null.Float
	VolMA18     []null.Float
	Close240Ago []null.Float
}

// Len returns the number of rows.
func (s *IndicatorSeries) Len() int { return len(s.Bars) }

// SnapshotAt returns the indicator state of row i.
func (s *IndicatorSeries) SnapshotAt(i int) Snapshot {
	return Snapshot{
		Close:   null.FloatFrom(s.Bars[i].Close),
		MA20:    s.MA20[i],
		MA60:    s.MA60[i],
		MA240:   s.MA240[i],
		RSI6:    s.RSI6[i],
		RSI13:   s.RSI13[i],
		VolMA3:  s.VolMA3[i],
		VolMA18: s.VolMA18[i],
	}
}

// Latest returns the snapshot of the last row, or an all-null snapshot for an
// empty series.
func (s *IndicatorSeries) Latest() Snapshot {
	if s.Len() == 0 {
		return Snapshot{}
	}
	return s.SnapshotAt(s.Len() - 1)
}
