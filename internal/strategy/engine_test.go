package strategy

import (
	"testing"

	"AShareScreener/internal/calculator"
	"AShareScreener/internal/model"
	"AShareScreener/internal/testbars"
)

func mustCompute(t *testing.T, bars []model.DailyBar) *model.IndicatorSeries {
	t.Helper()
	s, err := calculator.Compute(bars)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	return s
}

func TestEvaluate_Verdicts(t *testing.T) {
	const code = "600519.SH"
	tests := []struct {
		name string
		bars []model.DailyBar
		want model.Verdict
	}{
		{
			name: "all conditions hold",
			bars: testbars.Zigzag(code, 300),
			want: model.VerdictPass,
		},
		{
			name: "MA240 flat on the final two rows",
			bars: testbars.SetClose(testbars.Zigzag(code, 300), 299, testbars.ZigzagClose(59)),
			want: model.VerdictCond1Fail,
		},
		{
			name: "rising but less than 10% above close 240 rows back",
			bars: testbars.Breakout(testbars.Linear(code, 300, 10000, 1)),
			want: model.VerdictCond2Fail,
		},
		{
			name: "latest close drops below MA20 and MA60 anchors",
			bars: testbars.SetClose(testbars.Zigzag(code, 300), 299, 200),
			want: model.VerdictCond3Fail,
		},
		{
			name: "flat volume never crosses",
			bars: testbars.FlatVolume(testbars.Zigzag(code, 300)),
			want: model.VerdictCond4Fail,
		},
		{
			name: "strictly rising closes leave RSI undefined",
			bars: testbars.Breakout(testbars.Linear(code, 300, 100, 1)),
			want: model.VerdictCond5Fail,
		},
		{
			name: "minimum history still evaluates",
			bars: testbars.Zigzag(code, model.MinHistory),
			want: model.VerdictPass,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(mustCompute(t, tt.bars))
			if got != tt.want {
				t.Errorf("Evaluate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEvaluate_CrossoverWithoutMonotonicVolume(t *testing.T) {
	bars := testbars.Zigzag("000001.SZ", 300)
	// cross happens at row 297 but VOL_MA3 stalls on the last row
	bars[297].Volume, bars[298].Volume, bars[299].Volume = 2000, 3000, 1000
	if got := Evaluate(mustCompute(t, bars)); got != model.VerdictCond4Fail {
		t.Errorf("expected COND4_FAIL, got %s", got)
	}
}

func TestEvaluate_ShortSeriesNeverTouchesColumns(t *testing.T) {
	// columns are nil: any access would panic
	s := &model.IndicatorSeries{Bars: testbars.Zigzag("000001.SZ", model.MinHistory-1)}
	if got := Evaluate(s); got != model.VerdictInsufficientData {
		t.Errorf("expected INSUFFICIENT_DATA, got %s", got)
	}
	if got := Evaluate(nil); got != model.VerdictInsufficientData {
		t.Errorf("nil series: expected INSUFFICIENT_DATA, got %s", got)
	}
}

func TestEvaluate_RisingSeriesPassesLongTermTrend(t *testing.T) {
	for _, n := range []int{242, 300, 500} {
		s := mustCompute(t, testbars.Linear("000001.SZ", n, 5, 0.5))
		if !longTermTrendUp(s, s.Len()-1) {
			t.Errorf("n=%d: MA240 should be rising", n)
		}
	}
}

func TestEvaluate_ConstantSeriesFailsMomentum(t *testing.T) {
	s := mustCompute(t, testbars.Linear("000001.SZ", 300, 20, 0))
	if momentumConfirmed(s, s.Len()-1) {
		t.Error("constant prices must never confirm momentum")
	}
}

func TestDescribe(t *testing.T) {
	if Describe(model.VerdictCond4Fail) == "" {
		t.Error("expected a gate name for COND4_FAIL")
	}
	if Describe(model.VerdictPass) != "" {
		t.Error("PASS has no gate name")
	}
	if len(Gates) != 5 {
		t.Fatalf("expected 5 gates, got %d", len(Gates))
	}
	for i, g := range Gates {
		if int(g.Failure) != i+1 {
			t.Errorf("gate %d maps to %s", i, g.Failure)
		}
	}
}
