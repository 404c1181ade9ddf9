package collector

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"predictengine/internal/model"
	"predictengine/internal/tradingapi"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeAPI struct {
	markets    map[string]model.Market
	discovered []tradingapi.SeriesMarket
}

func (f *fakeAPI) GetMarket(_ context.Context, conditionID string) (model.Market, error) {
	m, ok := f.markets[conditionID]
	if !ok {
		return model.Market{}, &model.ErrNotFound{ConditionID: conditionID}
	}
	return m, nil
}
func (f *fakeAPI) GetOrderBook(_ context.Context, _ string) (model.OrderBook, error) {
	return model.OrderBook{}, nil
}
func (f *fakeAPI) DiscoverSeriesMarkets(_ context.Context, _ []string, _ bool) ([]tradingapi.SeriesMarket, error) {
	return f.discovered, nil
}
func (f *fakeAPI) GetBalance(_ context.Context, at model.AssetType) (model.Balance, error) {
	return model.Balance{AssetType: at}, nil
}
func (f *fakeAPI) PlaceOrder(_ context.Context, req model.OrderRequest) (model.OrderResponse, error) {
	return model.OrderResponse{}, nil
}

type fakeFeed struct {
	events      chan tradingapi.TradeEvent
	updateCalls [][]string
	mu          sync.Mutex
}

func (f *fakeFeed) Stream(_ context.Context, _ []string) (<-chan tradingapi.TradeEvent, error) {
	return f.events, nil
}
func (f *fakeFeed) UpdateSubscription(_ context.Context, assetIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls = append(f.updateCalls, assetIDs)
	return nil
}
func (f *fakeFeed) Close() error {
	close(f.events)
	return nil
}

type fakeRepo struct {
	mu      sync.Mutex
	saved   [][]model.Tick
	failNext bool
}

func (r *fakeRepo) Init(_ context.Context) error { return nil }
func (r *fakeRepo) SaveTicks(_ context.Context, batch []model.Tick) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext {
		r.failNext = false
		return errSaveFailed
	}
	cp := make([]model.Tick, len(batch))
	copy(cp, batch)
	r.saved = append(r.saved, cp)
	return nil
}
func (r *fakeRepo) GetTicks(_ context.Context, _ string, _, _ int64) ([]model.Tick, error) {
	return nil, nil
}
func (r *fakeRepo) GetTicksByCondition(_ context.Context, _ string, _, _ int64) ([]model.Tick, error) {
	return nil, nil
}
func (r *fakeRepo) GetDistinctConditionIDs(_ context.Context, _, _ int64) ([]string, error) {
	return nil, nil
}
func (r *fakeRepo) GetTickCount(_ context.Context) (int64, error) { return 0, nil }
func (r *fakeRepo) Close() error                                  { return nil }

func (r *fakeRepo) savedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saved)
}

var errSaveFailed = &saveError{}

type saveError struct{}

func (e *saveError) Error() string { return "save failed" }

func marketWithTokens(cid string) model.Market {
	return model.Market{
		ConditionID: cid,
		Tokens: []model.MarketToken{
			{TokenID: cid + "-yes", Outcome: "Yes"},
			{TokenID: cid + "-no", Outcome: "No"},
		},
	}
}

func TestCollectorFlushesOnBatchSize(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{markets: map[string]model.Market{"cond-1": marketWithTokens("cond-1")}}
	feed := &fakeFeed{events: make(chan tradingapi.TradeEvent, 16)}
	repo := &fakeRepo{}

	cfg := Config{StaticConditionIDs: []string{"cond-1"}, FlushBatchSize: 2, FlushIntervalS: 60}
	c := New(api, feed, repo, cfg, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	feed.events <- tradingapi.TradeEvent{AssetID: "cond-1-yes", Price: "0.4", Size: "10"}
	feed.events <- tradingapi.TradeEvent{AssetID: "cond-1-no", Price: "0.6", Size: "5"}
	time.Sleep(50 * time.Millisecond)

	if repo.savedCount() != 1 {
		t.Fatalf("expected one flushed batch of size 2, got %d batches", repo.savedCount())
	}

	cancel()
	<-done
}

func TestCollectorDropsTickForUnregisteredAsset(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{markets: map[string]model.Market{}}
	feed := &fakeFeed{events: make(chan tradingapi.TradeEvent, 16)}
	repo := &fakeRepo{}

	cfg := Config{FlushBatchSize: 1, FlushIntervalS: 60}
	c := New(api, feed, repo, cfg, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	feed.events <- tradingapi.TradeEvent{AssetID: "unknown-asset", Price: "0.4"}
	time.Sleep(50 * time.Millisecond)

	if repo.savedCount() != 0 {
		t.Fatalf("expected no saved batches for an unregistered asset, got %d", repo.savedCount())
	}

	cancel()
	<-done
}

func TestCollectorSaveFailurePushesDeadLetter(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{markets: map[string]model.Market{"cond-1": marketWithTokens("cond-1")}}
	feed := &fakeFeed{events: make(chan tradingapi.TradeEvent, 16)}
	repo := &fakeRepo{failNext: true}

	cfg := Config{StaticConditionIDs: []string{"cond-1"}, FlushBatchSize: 1, FlushIntervalS: 60}
	c := New(api, feed, repo, cfg, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	feed.events <- tradingapi.TradeEvent{AssetID: "cond-1-yes", Price: "0.4", Size: "1"}
	time.Sleep(50 * time.Millisecond)

	if c.DeadLetterCount() != 1 {
		t.Fatalf("expected one dead-lettered batch, got %d", c.DeadLetterCount())
	}

	cancel()
	<-done
}

func TestNextDiscoverySleep(t *testing.T) {
	t.Parallel()
	cases := []struct {
		nowUnix int64
		leadS   int
		want    time.Duration
	}{
		{nowUnix: 1000, leadS: 10, want: time.Duration(300-(1000%300)-10) * time.Second},
		{nowUnix: 1000, leadS: 400, want: 0},
	}
	for _, tc := range cases {
		if got := nextDiscoverySleep(tc.nowUnix, tc.leadS); got != tc.want {
			t.Errorf("nextDiscoverySleep(%d, %d) = %v, want %v", tc.nowUnix, tc.leadS, got, tc.want)
		}
	}
}
