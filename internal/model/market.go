package model

import "time"

// DailyBar is one trading day of one instrument.
type DailyBar struct {
	Code      string
	TradeDate time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// DailyBasic holds the per-day valuation fields published alongside the bars.
// TotalMV is in units of 10k CNY (万元), as the vendor reports it.
type DailyBasic struct {
	Code      string
	TradeDate time.Time
	PETTM     float64
	PB        float64
	TotalMV   float64
}

// StockBasic is the reference record for one instrument. TotalMV is the
// latest known total market value (万元), 0 when unknown.
type StockBasic struct {
	Code     string
	Name     string
	Industry string
	TotalMV  float64
}

// TradeDateLayout is the vendor and storage date format.
const TradeDateLayout = "20060102"

// ParseTradeDate parses a YYYYMMDD date in the exchange's local calendar.
func ParseTradeDate(s string) (time.Time, error) {
	return time.ParseInLocation(TradeDateLayout, s, time.Local)
}
