// Package tradingapi defines the abstract trading/market-data collaborator
// and a concrete Polymarket CLOB/Gamma-backed implementation built on
// resty.
package tradingapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"predictengine/internal/model"
	"predictengine/internal/telemetry"
)

// gammaMarket is the JSON shape returned by the Gamma discovery API for one
// market in a series.
type gammaMarket struct {
	ConditionID  string `json:"conditionId"`
	Question     string `json:"question"`
	Slug         string `json:"slug"`
	Active       bool   `json:"active"`
	Closed       bool   `json:"closed"`
	EndDate      string `json:"endDate"`
	ClobTokenIds string `json:"clobTokenIds"`
	NegRisk      bool   `json:"negRisk"`
}

// clobBookResponse is the REST response from GET /book for a single token.
type clobBookResponse struct {
	Bids []struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	} `json:"bids"`
	Asks []struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	} `json:"asks"`
}

// clobOrderResponse is the REST response for a single placed order.
type clobOrderResponse struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
}

// Client is the concrete Polymarket implementation of TradingAPI. REST
// calls go through resty with per-category rate limiting; every outbound
// call is wrapped in a gobreaker CircuitBreaker so a struggling venue
// fails fast instead of piling up blocked goroutines against it.
type Client struct {
	clob  *resty.Client
	gamma *resty.Client
	auth  *Auth
	rl    *rateLimiter
	cb    *gobreaker.CircuitBreaker

	feeRateBps int
	logger     *slog.Logger
}

// ClientConfig configures a new Client.
type ClientConfig struct {
	CLOBBaseURL  string
	GammaBaseURL string
	FeeRateBps   int
	Metrics      *telemetry.Metrics // nil disables circuit breaker trip recording
}

// NewClient builds a resty-backed TradingAPI client. auth may be nil for
// read-only (backtest/collector) use; PlaceOrder and GetBalance return an
// error in that case.
func NewClient(cfg ClientConfig, auth *Auth, logger *slog.Logger) *Client {
	clob := resty.New().
		SetBaseURL(cfg.CLOBBaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})

	gamma := resty.New().
		SetBaseURL(cfg.GammaBaseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)

	breakerSettings := gobreaker.Settings{
		Name:        "tradingapi",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if cfg.Metrics != nil && to == gobreaker.StateOpen {
				cfg.Metrics.CircuitBreakerTrips.WithLabelValues(name).Inc()
			}
		},
	}

	feeRateBps := cfg.FeeRateBps
	return &Client{
		clob:       clob,
		gamma:      gamma,
		auth:       auth,
		rl:         newRateLimiter(),
		cb:         gobreaker.NewCircuitBreaker(breakerSettings),
		feeRateBps: feeRateBps,
		logger:     logger.With("component", "tradingapi_client"),
	}
}

// GetMarket fetches market metadata by condition ID via the Gamma API.
func (c *Client) GetMarket(ctx context.Context, conditionID string) (model.Market, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		var markets []gammaMarket
		resp, err := c.gamma.R().
			SetContext(ctx).
			SetQueryParam("condition_ids", conditionID).
			SetResult(&markets).
			Get("/markets")
		if err != nil {
			return nil, fmt.Errorf("get market: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("get market: status %d: %s", resp.StatusCode(), resp.String())
		}
		return markets, nil
	})
	if err != nil {
		return model.Market{}, err
	}
	markets := result.([]gammaMarket)
	if len(markets) == 0 {
		return model.Market{}, &model.ErrNotFound{ConditionID: conditionID}
	}
	return toModelMarket(markets[0])
}

// GetOrderBook fetches the current order book for a token.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (model.OrderBook, error) {
	if err := c.rl.book.Wait(ctx); err != nil {
		return model.OrderBook{}, err
	}
	result, err := c.cb.Execute(func() (interface{}, error) {
		var raw clobBookResponse
		resp, err := c.clob.R().
			SetContext(ctx).
			SetQueryParam("token_id", tokenID).
			SetResult(&raw).
			Get("/book")
		if err != nil {
			return nil, fmt.Errorf("get order book: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("get order book: status %d: %s", resp.StatusCode(), resp.String())
		}
		return raw, nil
	})
	if err != nil {
		return model.OrderBook{}, err
	}
	raw := result.(clobBookResponse)

	bids := make([]model.PriceLevel, 0, len(raw.Bids))
	for _, b := range raw.Bids {
		bids = append(bids, model.PriceLevel{Price: parseDecimal(b.Price), Size: parseDecimal(b.Size)})
	}
	asks := make([]model.PriceLevel, 0, len(raw.Asks))
	for _, a := range raw.Asks {
		asks = append(asks, model.PriceLevel{Price: parseDecimal(a.Price), Size: parseDecimal(a.Size)})
	}
	return model.NewOrderBook(tokenID, bids, asks), nil
}

// DiscoverSeriesMarkets resolves series slugs to their currently active
// (and, when includeNext is set, next-window) markets via the Gamma API.
func (c *Client) DiscoverSeriesMarkets(ctx context.Context, slugs []string, includeNext bool) ([]SeriesMarket, error) {
	var out []SeriesMarket
	for _, slug := range slugs {
		result, err := c.cb.Execute(func() (interface{}, error) {
			var markets []gammaMarket
			resp, err := c.gamma.R().
				SetContext(ctx).
				SetQueryParams(map[string]string{
					"series_slug": slug,
					"active":      "true",
					"closed":      "false",
				}).
				SetResult(&markets).
				Get("/markets")
			if err != nil {
				return nil, fmt.Errorf("discover series %s: %w", slug, err)
			}
			if resp.StatusCode() != http.StatusOK {
				return nil, fmt.Errorf("discover series %s: status %d: %s", slug, resp.StatusCode(), resp.String())
			}
			return markets, nil
		})
		if err != nil {
			c.logger.Error("series discovery failed", "slug", slug, "error", err)
			continue
		}
		markets := result.([]gammaMarket)
		limit := 1
		if includeNext {
			limit = 2
		}
		for i, gm := range markets {
			if i >= limit {
				break
			}
			out = append(out, SeriesMarket{ConditionID: gm.ConditionID, EndDateISO: gm.EndDate})
		}
	}
	return out, nil
}

// GetBalance fetches the account's current collateral balance.
func (c *Client) GetBalance(ctx context.Context, assetType model.AssetType) (model.Balance, error) {
	if c.auth == nil {
		return model.Balance{}, fmt.Errorf("tradingapi: GetBalance requires authenticated client")
	}
	headers, err := c.auth.L2Headers("GET", "/balance", "")
	if err != nil {
		return model.Balance{}, fmt.Errorf("l2 headers: %w", err)
	}
	result, err := c.cb.Execute(func() (interface{}, error) {
		var raw struct {
			Balance string `json:"balance"`
		}
		resp, err := c.clob.R().
			SetContext(ctx).
			SetHeaders(headers).
			SetQueryParam("asset_type", string(assetType)).
			SetResult(&raw).
			Get("/balance")
		if err != nil {
			return nil, fmt.Errorf("get balance: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("get balance: status %d: %s", resp.StatusCode(), resp.String())
		}
		return raw.Balance, nil
	})
	if err != nil {
		return model.Balance{}, err
	}
	return model.Balance{AssetType: assetType, Amount: parseDecimal(result.(string))}, nil
}

// PlaceOrder signs and submits a single order.
func (c *Client) PlaceOrder(ctx context.Context, req model.OrderRequest) (model.OrderResponse, error) {
	if c.auth == nil {
		return model.OrderResponse{}, fmt.Errorf("tradingapi: PlaceOrder requires authenticated client")
	}
	if err := req.Validate(); err != nil {
		return model.OrderResponse{}, err
	}
	if err := c.rl.order.Wait(ctx); err != nil {
		return model.OrderResponse{}, err
	}

	payload := c.auth.buildOrderPayload(req, c.feeRateBps)
	body, err := json.Marshal(payload)
	if err != nil {
		return model.OrderResponse{}, fmt.Errorf("marshal order: %w", err)
	}
	headers, err := c.auth.L2Headers("POST", "/order", string(body))
	if err != nil {
		return model.OrderResponse{}, fmt.Errorf("l2 headers: %w", err)
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		var raw clobOrderResponse
		resp, err := c.clob.R().
			SetContext(ctx).
			SetHeaders(headers).
			SetBody(payload).
			SetResult(&raw).
			Post("/order")
		if err != nil {
			return nil, fmt.Errorf("place order: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("place order: status %d: %s", resp.StatusCode(), resp.String())
		}
		if !raw.Success {
			return nil, fmt.Errorf("place order rejected: %s", raw.ErrorMsg)
		}
		return raw, nil
	})
	if err != nil {
		return model.OrderResponse{}, err
	}
	raw := result.(clobOrderResponse)
	return model.OrderResponse{OrderID: raw.OrderID, Status: raw.Status, Filled: decimal.Zero}, nil
}

func toModelMarket(gm gammaMarket) (model.Market, error) {
	var tokenIDs []string
	if gm.ClobTokenIds != "" {
		if err := json.Unmarshal([]byte(gm.ClobTokenIds), &tokenIDs); err != nil {
			return model.Market{}, fmt.Errorf("parse clob token ids: %w", err)
		}
	}
	tokens := make([]model.MarketToken, 0, len(tokenIDs))
	outcomes := []string{"Yes", "No"}
	for i, id := range tokenIDs {
		outcome := "Yes"
		if i < len(outcomes) {
			outcome = outcomes[i]
		}
		tokens = append(tokens, model.MarketToken{TokenID: id, Outcome: outcome})
	}
	return model.Market{
		ConditionID: gm.ConditionID,
		Question:    gm.Question,
		Slug:        gm.Slug,
		Tokens:      tokens,
		EndDateISO:  gm.EndDate,
		NegRisk:     gm.NegRisk,
	}, nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var _ TradingAPI = (*Client)(nil)
