package tradingapi

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"predictengine/internal/model"
)

// klineRow is one row of a Binance-shaped klines response: an array of
// mixed types, positionally [open_time, open, high, low, close, volume, ...].
type klineRow [12]interface{}

// CandleClient is a resty-backed implementation of tradingapi.CandleProvider
// against a Binance-compatible klines REST endpoint. Pagination beyond the
// venue's single-request row cap (1000 for Binance) is hidden from the
// caller by repeated requests advancing startS past the last row returned.
type CandleClient struct {
	http *resty.Client
}

// CandleClientConfig configures a new CandleClient.
type CandleClientConfig struct {
	BaseURL string
}

// NewCandleClient builds a CandleClient.
func NewCandleClient(cfg CandleClientConfig) *CandleClient {
	return &CandleClient{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(15 * time.Second).
			SetRetryCount(3).
			SetRetryWaitTime(500 * time.Millisecond).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= 500
			}),
	}
}

const klineRowCap = 1000

var intervalWire = map[model.Interval]string{
	model.Interval1m:  "1m",
	model.Interval5m:  "5m",
	model.Interval15m: "15m",
	model.Interval1h:  "1h",
	model.Interval4h:  "4h",
	model.Interval1d:  "1d",
	model.Interval1w:  "1w",
}

// GetCandles fetches every candle for symbol/interval in [startS, endS],
// paginating transparently past the venue's per-request row cap.
func (c *CandleClient) GetCandles(ctx context.Context, symbol string, interval model.Interval, startS, endS int64) ([]model.Candle, error) {
	wireInterval, ok := intervalWire[interval]
	if !ok {
		return nil, fmt.Errorf("get candles: unsupported interval %q", interval)
	}

	var out []model.Candle
	cursor := startS
	for cursor <= endS {
		var rows []klineRow
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"symbol":    symbol,
				"interval":  wireInterval,
				"startTime": fmt.Sprintf("%d", cursor*1000),
				"endTime":   fmt.Sprintf("%d", endS*1000),
				"limit":     fmt.Sprintf("%d", klineRowCap),
			}).
			SetResult(&rows).
			Get("/api/v3/klines")
		if err != nil {
			return nil, fmt.Errorf("get candles: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("get candles: venue returned %d", resp.StatusCode())
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			candle, err := rowToCandle(symbol, interval, row)
			if err != nil {
				return nil, fmt.Errorf("get candles: %w", err)
			}
			out = append(out, candle)
		}

		last := rows[len(rows)-1]
		lastOpenMs, err := toInt64(last[0])
		if err != nil {
			return nil, fmt.Errorf("get candles: %w", err)
		}
		nextCursor := lastOpenMs/1000 + 1
		if nextCursor <= cursor {
			break
		}
		cursor = nextCursor

		if len(rows) < klineRowCap {
			break
		}
	}
	return out, nil
}

func rowToCandle(symbol string, interval model.Interval, row klineRow) (model.Candle, error) {
	openMs, err := toInt64(row[0])
	if err != nil {
		return model.Candle{}, err
	}
	open, err := toDecimal(row[1])
	if err != nil {
		return model.Candle{}, err
	}
	high, err := toDecimal(row[2])
	if err != nil {
		return model.Candle{}, err
	}
	low, err := toDecimal(row[3])
	if err != nil {
		return model.Candle{}, err
	}
	close, err := toDecimal(row[4])
	if err != nil {
		return model.Candle{}, err
	}
	volume, err := toDecimal(row[5])
	if err != nil {
		return model.Candle{}, err
	}
	return model.NewCandle(symbol, openMs/1000, open, high, low, close, volume, interval)
}

func toInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case int64:
		return t, nil
	default:
		return 0, fmt.Errorf("unexpected type %T for int64 field", v)
	}
}

func toDecimal(v interface{}) (decimal.Decimal, error) {
	s, ok := v.(string)
	if !ok {
		return decimal.Zero, fmt.Errorf("unexpected type %T for decimal field", v)
	}
	return decimal.NewFromString(s)
}

var _ CandleProvider = (*CandleClient)(nil)
