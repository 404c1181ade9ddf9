package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newWSTestServer(t *testing.T, handle func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		handle(conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestStreamSurfacesOnlyLastTradePriceEvents(t *testing.T) {
	t.Parallel()

	server := newWSTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_, _, _ = conn.ReadMessage() // initial subscribe

		conn.WriteJSON(map[string]any{"event_type": "book", "asset_id": "asset-1"})
		conn.WriteJSON(map[string]any{
			"event_type": "last_trade_price",
			"asset_id":   "asset-1",
			"price":      "0.62",
			"size":       "100",
			"side":       "BUY",
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	f := New(wsURL(server.URL), nil, testLogger())
	events, err := f.Stream(ctx, []string{"asset-1"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	select {
	case evt := <-events:
		if evt.AssetID != "asset-1" || evt.Price != "0.62" {
			t.Errorf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for trade event")
	}
}

func TestSendSubscribeListsTrackedAssetIDs(t *testing.T) {
	t.Parallel()

	received := make(chan subscribeMsg, 1)
	server := newWSTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg subscribeMsg
		json.Unmarshal(raw, &msg)
		received <- msg
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	f := New(wsURL(server.URL), nil, testLogger())
	if _, err := f.Stream(ctx, []string{"asset-1", "asset-2"}); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	select {
	case msg := <-received:
		if msg.Type != "market" {
			t.Errorf("type = %q, want market", msg.Type)
		}
		if len(msg.AssetIDs) != 2 {
			t.Errorf("asset ids = %v, want 2 entries", msg.AssetIDs)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscribe message")
	}
}

func TestUpdateSubscriptionForcesImmediateReconnect(t *testing.T) {
	t.Parallel()

	connectCount := make(chan int, 4)
	count := 0
	server := newWSTestServer(t, func(conn *websocket.Conn) {
		count++
		connectCount <- count
		conn.ReadMessage()
		// block until the client closes us
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	f := New(wsURL(server.URL), nil, testLogger())
	if _, err := f.Stream(ctx, []string{"asset-1"}); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	select {
	case n := <-connectCount:
		if n != 1 {
			t.Fatalf("first connect count = %d, want 1", n)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial connect")
	}

	if err := f.UpdateSubscription(ctx, []string{"asset-1", "asset-2"}); err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}

	select {
	case n := <-connectCount:
		if n != 2 {
			t.Fatalf("reconnect count = %d, want 2", n)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for forced reconnect")
	}
}

func TestDispatchReportsWhetherEventForwarded(t *testing.T) {
	t.Parallel()

	f := New("ws://unused", nil, testLogger())

	tradeMsg, _ := json.Marshal(map[string]any{
		"event_type": "last_trade_price",
		"asset_id":   "asset-1",
		"price":      "0.5",
		"size":       "10",
		"side":       "BUY",
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	})
	if !f.dispatch(tradeMsg) {
		t.Error("dispatch(last_trade_price) = false, want true")
	}

	bookMsg, _ := json.Marshal(map[string]any{"event_type": "book", "asset_id": "asset-1"})
	if f.dispatch(bookMsg) {
		t.Error("dispatch(book) = true, want false")
	}

	if f.dispatch([]byte("not json")) {
		t.Error("dispatch(invalid json) = true, want false")
	}
}

// TestBackoffResetsAfterHealthyConnection exercises run's full reconnect
// loop: a first connection that yields a trade event then drops must not
// leave the next reconnect waiting on an elevated backoff.
func TestBackoffResetsAfterHealthyConnection(t *testing.T) {
	t.Parallel()

	connectTimes := make(chan time.Time, 8)
	connN := 0
	server := newWSTestServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		connN++
		connectTimes <- time.Now()
		conn.ReadMessage() // subscribe

		if connN == 1 {
			// Yield one event, proving the connection was healthy, then
			// drop it immediately (no backoff wait had a chance to grow).
			conn.WriteJSON(map[string]any{
				"event_type": "last_trade_price",
				"asset_id":   "asset-1",
				"price":      "0.5",
				"size":       "1",
				"side":       "BUY",
				"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
			})
			time.Sleep(50 * time.Millisecond)
			return
		}
		// Second connection: block until the test cancels ctx.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	f := New(wsURL(server.URL), nil, testLogger())
	events, err := f.Stream(ctx, []string{"asset-1"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for trade event on first connection")
	}

	var first, second time.Time
	select {
	case first = <-connectTimes:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first connect")
	}
	select {
	case second = <-connectTimes:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reconnect; backoff was not reset to 1s")
	}

	if gap := second.Sub(first); gap > 1500*time.Millisecond {
		t.Errorf("reconnect took %v after a healthy connection, want close to the 1s base backoff", gap)
	}
}

func TestCloseStopsReconnectLoop(t *testing.T) {
	t.Parallel()

	server := newWSTestServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
		conn.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	f := New(wsURL(server.URL), nil, testLogger())
	events, err := f.Stream(ctx, []string{"asset-1"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected channel to be closed after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}
