package model

import (
	"fmt"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// Verdict is the classification of one instrument in one screening run.
type Verdict int

const (
	VerdictPass             Verdict = 0
	VerdictCond1Fail        Verdict = 1 // MA240 not rising
	VerdictCond2Fail        Verdict = 2 // close not 10% above close 240 rows back
	VerdictCond3Fail        Verdict = 3 // neither MA60 nor MA20 rising
	VerdictCond4Fail        Verdict = 4 // no volume breakout
	VerdictCond5Fail        Verdict = 5 // RSI momentum not confirmed
	VerdictInsufficientData Verdict = 99
	VerdictError            Verdict = -1
)

// AllVerdicts lists every code in report order.
var AllVerdicts = []Verdict{
	VerdictPass, VerdictCond1Fail, VerdictCond2Fail, VerdictCond3Fail,
	VerdictCond4Fail, VerdictCond5Fail, VerdictInsufficientData, VerdictError,
}

func (v Verdict) String() string {
	switch v {
	case VerdictPass:
		return "PASS"
	case VerdictCond1Fail, VerdictCond2Fail, VerdictCond3Fail, VerdictCond4Fail, VerdictCond5Fail:
		return fmt.Sprintf("COND%d_FAIL", int(v))
	case VerdictInsufficientData:
		return "INSUFFICIENT_DATA"
	case VerdictError:
		return "ERROR"
	}
	return fmt.Sprintf("VERDICT(%d)", int(v))
}

// MarshalText encodes the verdict by name, e.g. "COND1_FAIL".
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (v *Verdict) UnmarshalText(text []byte) error {
	for _, c := range AllVerdicts {
		if c.String() == string(text) {
			*v = c
			return nil
		}
	}
	return fmt.Errorf("unknown verdict %q", text)
}

// Passed reports whether all five conditions held.
func (v Verdict) Passed() bool { return v == VerdictPass }

// IsRuleFailure reports whether v is one of the five ordered gate failures.
func (v Verdict) IsRuleFailure() bool { return v >= VerdictCond1Fail && v <= VerdictCond5Fail }

// Snapshot is the indicator state at the latest bar. Every field is null when
// the instrument could not be evaluated.
type Snapshot struct {
	Close   null.Float `json:"close"`
	MA20    null.Float `json:"ma20"`
	MA60    null.Float `json:"ma60"`
	MA240   null.Float `json:"ma240"`
	RSI6    null.Float `json:"rsi6"`
	RSI13   null.Float `json:"rsi13"`
	VolMA3  null.Float `json:"vol_ma3"`
	VolMA18 null.Float `json:"vol_ma18"`
}

// Rounded returns a copy with every defined field rounded to 2 decimals.
func (s Snapshot) Rounded() Snapshot {
	r := func(f null.Float) null.Float {
		if !f.Valid {
			return f
		}
		return null.FloatFrom(Round2(f.Float64))
	}
	return Snapshot{
		Close: r(s.Close), MA20: r(s.MA20), MA60: r(s.MA60), MA240: r(s.MA240),
		RSI6: r(s.RSI6), RSI13: r(s.RSI13), VolMA3: r(s.VolMA3), VolMA18: r(s.VolMA18),
	}
}

// Round2 rounds half away from zero to 2 decimal places.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
