// Package feed implements the concrete trade-event WebSocket client the
// live/paper trading engine and tick collector consume through
// tradingapi.MarketFeed.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"predictengine/internal/model"
	"predictengine/internal/telemetry"
	"predictengine/internal/tradingapi"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	writeTimeout     = 10 * time.Second
	maxReconnectWait = 60 * time.Second
	eventBufferSize  = 256
)

type subscribeMsg struct {
	Type     string   `json:"type"`
	AssetIDs []string `json:"assets_ids"`
}

type wireEnvelope struct {
	EventType string `json:"event_type"`
}

type wireTradeEvent struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      string `json:"side"`
	Timestamp string `json:"timestamp"`
}

// MarketFeed is the gorilla/websocket-backed implementation of
// tradingapi.MarketFeed. It owns exactly one connection at a time and
// serialises all reads/writes through connMu; the reconnect loop runs on
// the goroutine that calls Stream's background pump.
type MarketFeed struct {
	url string

	connMu sync.Mutex
	conn   *websocket.Conn

	subscribedMu sync.RWMutex
	subscribed   map[string]bool

	// reconnectRequested suppresses the backoff sleep exactly once after
	// UpdateSubscription closes the socket to force an immediate
	// resubscribe, distinguishing a deliberate resubscribe from a
	// transport failure.
	reconnectRequested sync.Map // single key "requested" -> bool, see markReconnectRequested

	closed   sync.Once
	closedCh chan struct{}

	out chan tradingapi.TradeEvent

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// New builds a MarketFeed pointed at wsURL. The feed does not connect
// until Stream is called. metrics may be nil, in which case recording is
// skipped.
func New(wsURL string, metrics *telemetry.Metrics, logger *slog.Logger) *MarketFeed {
	return &MarketFeed{
		url:        wsURL,
		subscribed: make(map[string]bool),
		closedCh:   make(chan struct{}),
		out:        make(chan tradingapi.TradeEvent, eventBufferSize),
		metrics:    metrics,
		logger:     logger.With("component", "market_feed"),
	}
}

// Stream starts the reconnect loop in the background (if not already
// running) and returns the channel of trade events.
func (f *MarketFeed) Stream(ctx context.Context, assetIDs []string) (<-chan tradingapi.TradeEvent, error) {
	f.subscribedMu.Lock()
	for _, id := range assetIDs {
		f.subscribed[id] = true
	}
	f.subscribedMu.Unlock()

	go f.run(ctx)
	return f.out, nil
}

func (f *MarketFeed) run(ctx context.Context) {
	defer close(f.out)

	backoff := time.Second
	for {
		gotEvent, err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}
		select {
		case <-f.closedCh:
			return
		default:
		}

		if gotEvent {
			backoff = time.Second
		}

		skipBackoff := f.consumeReconnectRequested()
		if skipBackoff {
			f.logger.Info("resubscribing, reconnecting immediately")
			f.recordReconnect("resubscribe")
			backoff = time.Second
			continue
		}

		f.logger.Warn("market feed disconnected, reconnecting", "error", err, "backoff", backoff)
		f.recordReconnect("backoff")
		select {
		case <-ctx.Done():
			return
		case <-f.closedCh:
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// UpdateSubscription replaces the tracked asset ID set. Per the trade
// feed's protocol, the server silently ignores a resubscribe message sent
// over an existing connection, so the only way to pick up a new asset
// list is to close the socket and let the run loop reconnect — which it
// does immediately here, bypassing the backoff sleep.
func (f *MarketFeed) UpdateSubscription(ctx context.Context, assetIDs []string) error {
	f.subscribedMu.Lock()
	f.subscribed = make(map[string]bool, len(assetIDs))
	for _, id := range assetIDs {
		f.subscribed[id] = true
	}
	f.subscribedMu.Unlock()

	f.markReconnectRequested()
	f.closeConn()
	return nil
}

// Close permanently shuts the feed down.
func (f *MarketFeed) Close() error {
	f.closed.Do(func() { close(f.closedCh) })
	return f.closeConn()
}

func (f *MarketFeed) recordReconnect(reason string) {
	if f.metrics != nil {
		f.metrics.FeedReconnects.WithLabelValues(reason).Inc()
	}
}

func (f *MarketFeed) markReconnectRequested() {
	f.reconnectRequested.Store("requested", true)
}

func (f *MarketFeed) consumeReconnectRequested() bool {
	v, ok := f.reconnectRequested.LoadAndDelete("requested")
	return ok && v.(bool)
}

func (f *MarketFeed) closeConn() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return nil
	}
	err := f.conn.Close()
	f.conn = nil
	return err
}

// connectAndRead dials, subscribes, and reads until the connection fails or
// ctx is done. It reports whether at least one event was dispatched to the
// caller, so run can reset its backoff after any healthy connection.
func (f *MarketFeed) connectAndRead(ctx context.Context) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		if f.conn == conn {
			conn.Close()
			f.conn = nil
		}
		f.connMu.Unlock()
	}()

	if err := f.sendSubscribe(); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	f.logger.Info("market feed connected")

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx, conn)

	gotEvent := false
	for {
		if ctx.Err() != nil {
			return gotEvent, ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return gotEvent, fmt.Errorf("read: %w", err)
		}
		if f.dispatch(msg) {
			gotEvent = true
		}
	}
}

func (f *MarketFeed) sendSubscribe() error {
	f.subscribedMu.RLock()
	ids := make([]string, 0, len(f.subscribed))
	for id := range f.subscribed {
		ids = append(ids, id)
	}
	f.subscribedMu.RUnlock()

	return f.writeJSON(subscribeMsg{Type: "market", AssetIDs: ids})
}

// dispatch surfaces only last_trade_price events; every other message
// type (book snapshots, price changes, tick-size changes, new/resolved
// market notices) is dropped without being handed to the caller. It
// reports whether a trade event was received (forwarded, or dropped
// because the output channel was full), which the caller treats as
// evidence the connection is healthy.
func (f *MarketFeed) dispatch(data []byte) bool {
	var envelope wireEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		f.logger.Debug("ignoring non-json feed message")
		return false
	}
	if envelope.EventType != "last_trade_price" {
		return false
	}

	var evt wireTradeEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		f.logger.Error("unmarshal trade event", "error", err)
		return false
	}

	tsMs := int64(0)
	if parsed, err := time.Parse(time.RFC3339Nano, evt.Timestamp); err == nil {
		tsMs = parsed.UnixMilli()
	}

	side := model.Buy
	if evt.Side == string(model.Sell) {
		side = model.Sell
	}
	out := tradingapi.TradeEvent{
		AssetID:     evt.AssetID,
		Price:       evt.Price,
		Size:        evt.Size,
		Side:        side,
		TimestampMs: tsMs,
	}
	select {
	case f.out <- out:
		return true
	default:
		f.logger.Warn("trade channel full, dropping event", "asset", evt.AssetID)
		return true
	}
}

func (f *MarketFeed) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.connMu.Lock()
			current := f.conn
			f.connMu.Unlock()
			if current != conn {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *MarketFeed) writeJSON(v interface{}) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("market feed: not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

var _ tradingapi.MarketFeed = (*MarketFeed)(nil)
