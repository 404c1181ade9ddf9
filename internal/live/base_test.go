package live

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"predictengine/internal/model"
	"predictengine/internal/store"
	"predictengine/internal/tradingapi"
)

// fakePositionStore is an in-memory store.PositionStore test double.
type fakePositionStore struct {
	saved   map[string]model.Position
	deleted []string
}

func newFakePositionStore() *fakePositionStore {
	return &fakePositionStore{saved: make(map[string]model.Position)}
}

func (s *fakePositionStore) SavePosition(conditionID string, pos model.Position) error {
	s.saved[conditionID] = pos
	return nil
}

func (s *fakePositionStore) LoadPosition(conditionID string) (*model.Position, error) {
	pos, ok := s.saved[conditionID]
	if !ok {
		return nil, nil
	}
	return &pos, nil
}

func (s *fakePositionStore) DeletePosition(conditionID string) error {
	delete(s.saved, conditionID)
	s.deleted = append(s.deleted, conditionID)
	return nil
}

func (s *fakePositionStore) Close() error { return nil }

var _ store.PositionStore = (*fakePositionStore)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// fakeAPI is a minimal in-memory tradingapi.TradingAPI for engine tests.
type fakeAPI struct {
	markets    map[string]model.Market
	books      map[string]model.OrderBook
	balance    decimal.Decimal
	orders     []model.OrderRequest
	discovered []tradingapi.SeriesMarket
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		markets: make(map[string]model.Market),
		books:   make(map[string]model.OrderBook),
		balance: dec("1000"),
	}
}

func (f *fakeAPI) GetMarket(_ context.Context, conditionID string) (model.Market, error) {
	m, ok := f.markets[conditionID]
	if !ok {
		return model.Market{}, &model.ErrNotFound{ConditionID: conditionID}
	}
	return m, nil
}

func (f *fakeAPI) GetOrderBook(_ context.Context, tokenID string) (model.OrderBook, error) {
	return f.books[tokenID], nil
}

func (f *fakeAPI) DiscoverSeriesMarkets(_ context.Context, _ []string, _ bool) ([]tradingapi.SeriesMarket, error) {
	return f.discovered, nil
}

func (f *fakeAPI) GetBalance(_ context.Context, assetType model.AssetType) (model.Balance, error) {
	return model.Balance{AssetType: assetType, Amount: f.balance}, nil
}

func (f *fakeAPI) PlaceOrder(_ context.Context, req model.OrderRequest) (model.OrderResponse, error) {
	f.orders = append(f.orders, req)
	return model.OrderResponse{OrderID: "order-1", Status: "live", Filled: req.Size}, nil
}

// fakeFeed is a channel-backed tradingapi.MarketFeed test double: callers
// push events onto events and trigger UpdateSubscription/Close directly.
type fakeFeed struct {
	events             chan tradingapi.TradeEvent
	updateCalls        [][]string
	closed             bool
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{events: make(chan tradingapi.TradeEvent, 16)}
}

func (f *fakeFeed) Stream(_ context.Context, _ []string) (<-chan tradingapi.TradeEvent, error) {
	return f.events, nil
}

func (f *fakeFeed) UpdateSubscription(_ context.Context, assetIDs []string) error {
	f.updateCalls = append(f.updateCalls, assetIDs)
	return nil
}

func (f *fakeFeed) Close() error {
	f.closed = true
	close(f.events)
	return nil
}

// alwaysBuyStrategy emits a full-confidence BUY on the first snapshot only.
type alwaysBuyStrategy struct{ fired bool }

func (s *alwaysBuyStrategy) Name() string { return "always_buy" }

func (s *alwaysBuyStrategy) OnSnapshot(snap model.MarketSnapshot, _ []model.MarketSnapshot) *model.Signal {
	if s.fired {
		return nil
	}
	s.fired = true
	sig := model.NewSignal(model.Buy, snap.ConditionID, dec("1"), "test")
	return &sig
}

func marketWithTokens(cid string) model.Market {
	return model.Market{
		ConditionID: cid,
		Question:    "will it resolve yes?",
		Tokens: []model.MarketToken{
			{TokenID: cid + "-yes", Outcome: "Yes"},
			{TokenID: cid + "-no", Outcome: "No"},
		},
		EndDateISO: "2026-08-01",
	}
}

func TestPaperEngineBootstrapAndOpenPositionOnSignal(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	cid := "cond-1"
	api.markets[cid] = marketWithTokens(cid)

	feed := newFakeFeed()
	strat := &alwaysBuyStrategy{}

	cfg := EngineConfig{ActiveMarkets: []string{cid}, KellyFraction: dec("1")}
	pe := NewPaperEngine(api, feed, strat, dec("1000"), dec("1"), cfg, testLogger())

	if err := pe.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pe.Run(ctx) }()

	feed.events <- tradingapi.TradeEvent{AssetID: cid + "-yes", Price: "0.40"}
	feed.events <- tradingapi.TradeEvent{AssetID: cid + "-no", Price: "0.60"}
	time.Sleep(50 * time.Millisecond)

	if len(pe.ledger.Trades()) != 0 {
		t.Fatalf("expected no closed trades yet, got %d", len(pe.ledger.Trades()))
	}
	positions := pe.ledger.Positions()
	if _, open := positions[cid]; !open {
		t.Fatalf("expected an open position for %s, positions=%v", cid, positions)
	}

	cancel()
	<-done
}

func TestPaperEngineClosesPositionsOnCancellation(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	cid := "cond-2"
	api.markets[cid] = marketWithTokens(cid)

	feed := newFakeFeed()
	strat := &alwaysBuyStrategy{}

	cfg := EngineConfig{ActiveMarkets: []string{cid}, KellyFraction: dec("1")}
	pe := NewPaperEngine(api, feed, strat, dec("1000"), dec("1"), cfg, testLogger())
	if err := pe.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pe.Run(ctx) }()

	feed.events <- tradingapi.TradeEvent{AssetID: cid + "-yes", Price: "0.40"}
	feed.events <- tradingapi.TradeEvent{AssetID: cid + "-no", Price: "0.60"}
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if len(pe.ledger.Trades()) != 1 {
		t.Fatalf("expected the open position to be closed on cancellation, trades=%d", len(pe.ledger.Trades()))
	}
}

func TestPaperEnginePersistsPositionOnOpenAndClearsOnClose(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	cid := "cond-store-1"
	api.markets[cid] = marketWithTokens(cid)

	feed := newFakeFeed()
	strat := &alwaysBuyStrategy{}
	ps := newFakePositionStore()

	cfg := EngineConfig{ActiveMarkets: []string{cid}, KellyFraction: dec("1"), Store: ps}
	pe := NewPaperEngine(api, feed, strat, dec("1000"), dec("1"), cfg, testLogger())
	if err := pe.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pe.Run(ctx) }()

	feed.events <- tradingapi.TradeEvent{AssetID: cid + "-yes", Price: "0.40"}
	feed.events <- tradingapi.TradeEvent{AssetID: cid + "-no", Price: "0.60"}
	time.Sleep(50 * time.Millisecond)

	if _, saved := ps.saved[cid]; !saved {
		t.Fatalf("expected position for %s to be saved after open, saved=%v", cid, ps.saved)
	}

	cancel()
	<-done

	if _, stillSaved := ps.saved[cid]; stillSaved {
		t.Fatalf("expected position for %s to be deleted after close on shutdown", cid)
	}
	if len(ps.deleted) == 0 {
		t.Fatal("expected DeletePosition to be called")
	}
}

func TestPaperEngineRestoresPersistedPositionOnBootstrap(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	cid := "cond-store-2"
	api.markets[cid] = marketWithTokens(cid)

	ps := newFakePositionStore()
	ps.saved[cid] = model.Position{
		Symbol:     cid,
		Side:       model.Buy,
		Quantity:   dec("5"),
		EntryPrice: dec("0.3"),
		EntryTimeS: 1000,
		Outcome:    "Yes",
	}

	feed := newFakeFeed()
	strat := &alwaysBuyStrategy{}
	cfg := EngineConfig{ActiveMarkets: []string{cid}, KellyFraction: dec("1"), Store: ps}
	pe := NewPaperEngine(api, feed, strat, dec("1000"), dec("1"), cfg, testLogger())

	if err := pe.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	positions := pe.ledger.Positions()
	pos, open := positions[cid]
	if !open {
		t.Fatalf("expected restored position for %s, positions=%v", cid, positions)
	}
	if !pos.Quantity.Equal(dec("5")) || !pos.EntryPrice.Equal(dec("0.3")) {
		t.Errorf("restored position = %+v, want quantity=5 entry_price=0.3", pos)
	}
	if outcome, tracked := pe.positionOutcomes[cid]; !tracked || outcome != "Yes" {
		t.Errorf("positionOutcomes[%s] = (%q, %v), want (Yes, true)", cid, outcome, tracked)
	}
}

func TestLiveEngineExplicitResolutionSellClosesBeforeRotation(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	cid := "cond-live-1"
	api.markets[cid] = marketWithTokens(cid)

	feed := newFakeFeed()
	strat := &alwaysBuyStrategy{}

	cfg := EngineConfig{ActiveMarkets: []string{cid}, KellyFraction: dec("1"), ExplicitResolutionSell: true}
	le := NewLiveEngine(api, feed, strat, dec("1"), dec("1000"), cfg, testLogger())
	if err := le.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- le.Run(ctx) }()

	feed.events <- tradingapi.TradeEvent{AssetID: cid + "-yes", Price: "0.40"}
	feed.events <- tradingapi.TradeEvent{AssetID: cid + "-no", Price: "0.60"}
	time.Sleep(50 * time.Millisecond)

	if _, open := le.ledger.Positions()[cid]; !open {
		t.Fatalf("expected an open position for %s before rotation", cid)
	}

	le.OnRotationClose(context.Background())

	if _, open := le.ledger.Positions()[cid]; open {
		t.Fatalf("expected OnRotationClose to close %s's position, still open", cid)
	}

	var sawSell bool
	for _, o := range api.orders {
		if o.Side == model.Sell {
			sawSell = true
		}
	}
	if !sawSell {
		t.Error("expected OnRotationClose to place a SELL order, none found")
	}

	cancel()
	<-done
}

func TestLiveEngineSkipsExplicitResolutionSellWhenDisabled(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	cid := "cond-live-2"
	api.markets[cid] = marketWithTokens(cid)

	feed := newFakeFeed()
	strat := &alwaysBuyStrategy{}

	cfg := EngineConfig{ActiveMarkets: []string{cid}, KellyFraction: dec("1"), ExplicitResolutionSell: false}
	le := NewLiveEngine(api, feed, strat, dec("1"), dec("1000"), cfg, testLogger())
	if err := le.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- le.Run(ctx) }()

	feed.events <- tradingapi.TradeEvent{AssetID: cid + "-yes", Price: "0.40"}
	feed.events <- tradingapi.TradeEvent{AssetID: cid + "-no", Price: "0.60"}
	time.Sleep(50 * time.Millisecond)

	le.OnRotationClose(context.Background())

	if _, open := le.ledger.Positions()[cid]; !open {
		t.Error("expected position to remain open when ExplicitResolutionSell is disabled")
	}

	cancel()
	<-done
}

func TestPriceTrackerYieldsPairOnlyAfterBothSidesKnown(t *testing.T) {
	t.Parallel()
	tr := newPriceTracker()
	tr.register("asset-yes", "cid", true, decimal.Zero)
	tr.register("asset-no", "cid", false, decimal.Zero)

	if _, _, _, ok := tr.update("unknown-asset", dec("0.5")); ok {
		t.Fatal("update for unknown asset should not yield a pair")
	}

	cid, yes, no, ok := tr.update("asset-yes", dec("0.42"))
	if !ok || cid != "cid" {
		t.Fatalf("update(yes) = (%q, %v), want (cid, true)", cid, ok)
	}
	if !yes.Equal(dec("0.42")) || !no.Equal(decimal.Zero) {
		t.Fatalf("yes=%s no=%s, want yes=0.42 no=0", yes, no)
	}
}
