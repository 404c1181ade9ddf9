// Package collector implements the long-running tick collection service:
// a WebSocket consumer, batch/timer flushers, window-aligned periodic
// market discovery, and a heartbeat logger, all owned by one Collector.
package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"predictengine/internal/model"
	"predictengine/internal/telemetry"
	"predictengine/internal/tradingapi"
)

// Config parameterizes a Collector.
type Config struct {
	StaticConditionIDs []string
	SeriesSlugs        []string
	FlushBatchSize      int
	FlushIntervalS      int
	DiscoveryLeadS      int
	HeartbeatInterval   time.Duration
	DeadLetterCapacity  int
}

// Collector runs the WebSocket consumer, flushers, discovery loop, and
// heartbeat as independent goroutines funnelled through a shared,
// mutex-protected tick buffer (the one piece of state genuinely touched
// by more than one goroutine in this service).
type Collector struct {
	api    tradingapi.TradingAPI
	feed   tradingapi.MarketFeed
	repo   tradingapi.TickRepository
	logger *slog.Logger
	cfg    Config
	metrics *telemetry.Metrics

	mu               sync.Mutex
	buffer           []model.Tick
	assetToCondition map[string]string
	lastFlush        time.Time
	ticksLastMinute  int
	totalStored      int64
	deadLetter       *deadLetterRing
}

// New builds a Collector. api and feed may be shared with a live engine's
// own instances, or dedicated to this service; repo must already be safe
// to call concurrently with Init not yet invoked. metrics may be nil, in
// which case recording is skipped.
func New(api tradingapi.TradingAPI, feed tradingapi.MarketFeed, repo tradingapi.TickRepository, cfg Config, metrics *telemetry.Metrics, logger *slog.Logger) *Collector {
	return &Collector{
		api:              api,
		feed:             feed,
		repo:             repo,
		cfg:              cfg,
		metrics:          metrics,
		logger:           logger.With("component", "collector"),
		assetToCondition: make(map[string]string),
		deadLetter:       newDeadLetterRing(cfg.DeadLetterCapacity),
		lastFlush:        time.Now(),
	}
}

// DeadLetterCount reports how many flush batches are currently held in the
// dead-letter ring after a save failure.
func (c *Collector) DeadLetterCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadLetter.count()
}

// TotalStored reports the cumulative count of ticks successfully written
// to the repository.
func (c *Collector) TotalStored() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalStored
}

// Run initialises the repository, performs an initial discovery pass,
// subscribes the feed, and runs the consumer/flusher/discovery/heartbeat
// loops until ctx is cancelled. On return the buffer is flushed one last
// time and the repository and feed are closed.
func (c *Collector) Run(ctx context.Context) error {
	if err := c.repo.Init(ctx); err != nil {
		return err
	}

	if err := c.discover(ctx); err != nil {
		c.logger.Error("initial discovery failed", "error", err)
	}

	events, err := c.feed.Stream(ctx, c.allAssetIDs())
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); c.consumeLoop(ctx, events) }()
	go func() { defer wg.Done(); c.timerFlushLoop(ctx) }()
	go func() { defer wg.Done(); c.discoveryLoop(ctx) }()
	go func() { defer wg.Done(); c.heartbeatLoop(ctx) }()
	wg.Wait()

	c.flush(ctx)
	_ = c.feed.Close()
	return c.repo.Close()
}

// consumeLoop maps each surfaced trade event to a Tick via the locally
// maintained asset_id -> condition_id table and appends it to the buffer,
// flushing immediately once the buffer reaches FlushBatchSize.
func (c *Collector) consumeLoop(ctx context.Context, events <-chan tradingapi.TradeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			tick, ok := c.buildTick(evt)
			if !ok {
				continue
			}
			if c.appendTick(tick) {
				c.flush(ctx)
			}
		}
	}
}

func (c *Collector) buildTick(evt tradingapi.TradeEvent) (model.Tick, bool) {
	c.mu.Lock()
	cid, known := c.assetToCondition[evt.AssetID]
	c.mu.Unlock()
	if !known {
		c.logger.Warn("tick for unregistered asset id, dropping", "asset_id", evt.AssetID)
		return model.Tick{}, false
	}
	if c.metrics != nil {
		c.metrics.TicksIngested.WithLabelValues(evt.AssetID).Inc()
	}
	return model.Tick{
		AssetID:      evt.AssetID,
		ConditionID:  cid,
		Price:        parseDecimal(evt.Price),
		Size:         parseDecimal(evt.Size),
		Side:         evt.Side,
		TimestampMs:  evt.TimestampMs,
		ReceivedAtMs: time.Now().UnixMilli(),
	}, true
}

// appendTick appends tick to the buffer and reports whether the batch
// threshold has now been reached.
func (c *Collector) appendTick(tick model.Tick) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffer = append(c.buffer, tick)
	c.ticksLastMinute++
	return c.cfg.FlushBatchSize > 0 && len(c.buffer) >= c.cfg.FlushBatchSize
}

// flush takes an atomic clear-and-copy snapshot of the buffer and writes
// it to the repository. A save failure is logged and the batch is pushed
// to the dead-letter ring rather than retried inline.
func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = nil
	c.lastFlush = time.Now()
	c.mu.Unlock()

	if err := c.repo.SaveTicks(ctx, batch); err != nil {
		c.logger.Error("save ticks failed, pushing to dead letter ring", "batch_size", len(batch), "error", err)
		c.mu.Lock()
		c.deadLetter.push(batch)
		count := c.deadLetter.count()
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.DeadLetterBatches.Set(float64(count))
		}
		return
	}
	c.mu.Lock()
	c.totalStored += int64(len(batch))
	c.mu.Unlock()
}

// timerFlushLoop flushes the buffer on FlushIntervalS even during
// low-volume periods, bounding write latency.
func (c *Collector) timerFlushLoop(ctx context.Context) {
	interval := time.Duration(c.cfg.FlushIntervalS) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	checkEvery := interval
	if checkEvery > time.Second {
		checkEvery = time.Second
	}
	ticker := time.NewTicker(checkEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			due := !c.lastFlush.IsZero() && time.Since(c.lastFlush) >= interval && len(c.buffer) > 0
			c.mu.Unlock()
			if due {
				c.flush(ctx)
			}
		}
	}
}

// heartbeatLoop logs ticks-last-minute, total-stored, and asset-count
// every HeartbeatInterval (defaulting to 60s).
func (c *Collector) heartbeatLoop(ctx context.Context) {
	interval := c.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			ticks := c.ticksLastMinute
			c.ticksLastMinute = 0
			stored := c.totalStored
			assets := len(c.assetToCondition)
			c.mu.Unlock()
			c.logger.Info("heartbeat", "ticks_last_minute", ticks, "total_stored", stored, "asset_count", assets)
		}
	}
}

func (c *Collector) allAssetIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.assetToCondition))
	for id := range c.assetToCondition {
		ids = append(ids, id)
	}
	return ids
}
