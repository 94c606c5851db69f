package strategy

import "AShareScreener/internal/model"

// Gate is one screening condition evaluated on the latest row.
type Gate struct {
	Name    string
	Check   func(s *model.IndicatorSeries, last int) bool
	Failure model.Verdict
}

// Gates are evaluated in order; the first failing gate decides the verdict.
var Gates = []Gate{
	{"长期趋势向上 MA240", longTermTrendUp, model.VerdictCond1Fail},
	{"较240日前涨幅>10%", momentumFloor, model.VerdictCond2Fail},
	{"中期趋势向上 MA60/MA20", mediumTermTrendUp, model.VerdictCond3Fail},
	{"量能突破 VOL_MA3/VOL_MA18", volumeBreakout, model.VerdictCond4Fail},
	{"RSI13>50 且 RSI6>70", momentumConfirmed, model.VerdictCond5Fail},
}

// Evaluate applies the five gates to the latest row of s. Series shorter than
// model.MinHistory are rejected before any indicator column is read.
func Evaluate(s *model.IndicatorSeries) model.Verdict {
	if s == nil || s.Len() < model.MinHistory {
		return model.VerdictInsufficientData
	}
	last := s.Len() - 1
	for _, g := range Gates {
		if !g.Check(s, last) {
			return g.Failure
		}
	}
	return model.VerdictPass
}

// Describe returns the gate name behind a failure verdict, or "" for other codes.
func Describe(v model.Verdict) string {
	for _, g := range Gates {
		if g.Failure == v {
			return g.Name
		}
	}
	return ""
}
