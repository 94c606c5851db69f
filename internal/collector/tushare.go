package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"AShareScreener/internal/logger"
	"AShareScreener/internal/metrics"
	"AShareScreener/internal/model"
)

const (
	tushareMaxRetries = 3
	tushareRetryDelay = 500 * time.Millisecond
)

// TushareFetcher implements Fetcher on the Tushare Pro HTTP API.
type TushareFetcher struct {
	BaseURL    string
	Token      string
	Client     *http.Client
	RetryDelay time.Duration
	Metrics    *metrics.Metrics
}

// NewTushareFetcher creates a fetcher with optional proxy support.
func NewTushareFetcher(baseURL, token, proxyURL string, m *metrics.Metrics) *TushareFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TushareFetcher{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		RetryDelay: tushareRetryDelay,
		Metrics:    m,
	}
}

func (f *TushareFetcher) Name() string { return "tushare" }

type tushareRequest struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
	Fields  string            `json:"fields"`
}

// record is one row of a tushare table keyed by field name.
type record map[string]gjson.Result

func (f *TushareFetcher) TradeDates(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	recs, err := f.query(ctx, "trade_cal", map[string]string{
		"exchange":   "SSE",
		"start_date": start.Format(model.TradeDateLayout),
		"end_date":   end.Format(model.TradeDateLayout),
		"is_open":    "1",
	}, "cal_date,is_open")
	if err != nil {
		return nil, err
	}

	dates := make([]time.Time, 0, len(recs))
	for _, r := range recs {
		if r["is_open"].Int() != 1 {
			continue
		}
		d, err := model.ParseTradeDate(r["cal_date"].String())
		if err != nil {
			return nil, errors.Wrapf(err, "trade_cal: bad cal_date %q", r["cal_date"].String())
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (f *TushareFetcher) DailyBars(ctx context.Context, tradeDate time.Time) ([]model.DailyBar, error) {
	recs, err := f.query(ctx, "daily", map[string]string{
		"trade_date": tradeDate.Format(model.TradeDateLayout),
	}, "ts_code,trade_date,open,high,low,close,vol")
	if err != nil {
		return nil, err
	}

	bars := make([]model.DailyBar, 0, len(recs))
	for _, r := range recs {
		d, err := model.ParseTradeDate(r["trade_date"].String())
		if err != nil {
			return nil, errors.Wrapf(err, "daily: bad trade_date for %s", r["ts_code"].String())
		}
		bars = append(bars, model.DailyBar{
			Code:      r["ts_code"].String(),
			TradeDate: d,
			Open:      r["open"].Float(),
			High:      r["high"].Float(),
			Low:       r["low"].Float(),
			Close:     r["close"].Float(),
			Volume:    r["vol"].Float(),
		})
	}
	return bars, nil
}

func (f *TushareFetcher) DailyBasics(ctx context.Context, tradeDate time.Time) ([]model.DailyBasic, error) {
	recs, err := f.query(ctx, "daily_basic", map[string]string{
		"trade_date": tradeDate.Format(model.TradeDateLayout),
	}, "ts_code,trade_date,pe_ttm,pb,total_mv")
	if err != nil {
		return nil, err
	}

	out := make([]model.DailyBasic, 0, len(recs))
	for _, r := range recs {
		d, err := model.ParseTradeDate(r["trade_date"].String())
		if err != nil {
			return nil, errors.Wrapf(err, "daily_basic: bad trade_date for %s", r["ts_code"].String())
		}
		out = append(out, model.DailyBasic{
			Code:      r["ts_code"].String(),
			TradeDate: d,
			PETTM:     r["pe_ttm"].Float(),
			PB:        r["pb"].Float(),
			TotalMV:   r["total_mv"].Float(),
		})
	}
	return out, nil
}

func (f *TushareFetcher) StockBasics(ctx context.Context) ([]model.StockBasic, error) {
	recs, err := f.query(ctx, "stock_basic", map[string]string{
		"exchange":    "",
		"list_status": "L",
	}, "ts_code,name,industry")
	if err != nil {
		return nil, err
	}

	out := make([]model.StockBasic, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.StockBasic{
			Code:     r["ts_code"].String(),
			Name:     r["name"].String(),
			Industry: r["industry"].String(),
		})
	}
	return out, nil
}

// query posts one API call with retries and returns its rows.
func (f *TushareFetcher) query(ctx context.Context, api string, params map[string]string, fields string) ([]record, error) {
	payload, err := json.Marshal(tushareRequest{APIName: api, Token: f.Token, Params: params, Fields: fields})
	if err != nil {
		return nil, errors.Wrap(err, "marshal tushare request")
	}

	var lastErr error
	for attempt := 0; attempt < tushareMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := f.RetryDelay * time.Duration(1<<uint(attempt-1))
			logger.Warnf("tushare %s failed (attempt %d/%d): %v, retrying in %v", api, attempt, tushareMaxRetries, lastErr, backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		var body []byte
		body, lastErr = f.post(ctx, payload)
		if lastErr == nil {
			var recs []record
			recs, lastErr = parseTable(body)
			if lastErr == nil {
				f.Metrics.ObserveVendorCall(api, nil)
				return recs, nil
			}
			if !isRetryable(lastErr) {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
	}
	f.Metrics.ObserveVendorCall(api, lastErr)
	return nil, errors.Wrapf(lastErr, "tushare %s", api)
}

func (f *TushareFetcher) post(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "http request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("http status %d", resp.StatusCode)
	}
	return body, nil
}

// apiError is a well-formed tushare response with a non-zero code. Retrying
// does not help (bad token, missing permission, bad params).
type apiError struct {
	Code int64
	Msg  string
}

func (e *apiError) Error() string { return fmt.Sprintf("api code %d: %s", e.Code, e.Msg) }

func isRetryable(err error) bool {
	_, ok := errors.Cause(err).(*apiError)
	return !ok
}

// parseTable turns {"code":0,"data":{"fields":[...],"items":[[...]]}} into rows.
func parseTable(body []byte) ([]record, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid json response")
	}
	if code := gjson.GetBytes(body, "code"); code.Int() != 0 {
		return nil, &apiError{Code: code.Int(), Msg: gjson.GetBytes(body, "msg").String()}
	}

	fields := gjson.GetBytes(body, "data.fields")
	items := gjson.GetBytes(body, "data.items")
	if !fields.IsArray() || !items.IsArray() {
		return nil, errors.New("response has no data.fields/data.items")
	}

	names := make([]string, 0, len(fields.Array()))
	for _, f := range fields.Array() {
		names = append(names, f.String())
	}

	var recs []record
	for _, item := range items.Array() {
		vals := item.Array()
		r := make(record, len(names))
		for i, name := range names {
			if i < len(vals) {
				r[name] = vals[i]
			}
		}
		recs = append(recs, r)
	}
	return recs, nil
}
