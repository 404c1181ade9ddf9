package collector

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"predictengine/internal/model"
)

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// discoveryLoop sleeps until discoveryLeadS before the next 5-minute
// window boundary, re-runs discovery so the next window's markets are
// subscribed before they open, then sleeps at least one second before
// recomputing to avoid a busy loop when the lead time yields zero sleep.
func (c *Collector) discoveryLoop(ctx context.Context) {
	for {
		sleep := nextDiscoverySleep(time.Now().Unix(), c.cfg.DiscoveryLeadS)
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
		if err := c.discover(ctx); err != nil {
			c.logger.Error("periodic discovery failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func nextDiscoverySleep(nowUnix int64, discoveryLeadS int) time.Duration {
	remaining := 300 - (nowUnix % 300) - int64(discoveryLeadS)
	if remaining < 0 {
		remaining = 0
	}
	return time.Duration(remaining) * time.Second
}

// discoverResult is one resolved market's tokens, produced concurrently by
// discover's gather-style fan-out.
type discoverResult struct {
	conditionID string
	tokens      []model.MarketToken
}

// discover resolves series slugs and static condition IDs to tokens
// concurrently, registers only new token IDs in the asset table, and
// (on success) pushes the full subscription set to the feed. A resolution
// failure for one source is logged and ignored; the others still register.
func (c *Collector) discover(ctx context.Context) error {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []discoverResult
	)

	if len(c.cfg.SeriesSlugs) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			markets, err := c.api.DiscoverSeriesMarkets(ctx, c.cfg.SeriesSlugs, true)
			if err != nil {
				c.logger.Error("series discovery failed", "error", err)
				return
			}
			for _, sm := range markets {
				m, err := c.api.GetMarket(ctx, sm.ConditionID)
				if err != nil {
					c.logger.Error("get discovered market failed", "condition_id", sm.ConditionID, "error", err)
					continue
				}
				mu.Lock()
				results = append(results, discoverResult{conditionID: m.ConditionID, tokens: m.Tokens})
				mu.Unlock()
			}
		}()
	}

	for _, cid := range c.cfg.StaticConditionIDs {
		wg.Add(1)
		go func(cid string) {
			defer wg.Done()
			m, err := c.api.GetMarket(ctx, cid)
			if err != nil {
				c.logger.Error("get static market failed", "condition_id", cid, "error", err)
				return
			}
			mu.Lock()
			results = append(results, discoverResult{conditionID: m.ConditionID, tokens: m.Tokens})
			mu.Unlock()
		}(cid)
	}

	wg.Wait()

	c.mu.Lock()
	changed := false
	for _, r := range results {
		for _, tok := range r.tokens {
			if _, exists := c.assetToCondition[tok.TokenID]; !exists {
				c.assetToCondition[tok.TokenID] = r.conditionID
				changed = true
			}
		}
	}
	c.mu.Unlock()

	if !changed {
		return nil
	}
	return c.feed.UpdateSubscription(ctx, c.allAssetIDs())
}
