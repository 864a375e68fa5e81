package netstate

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// slotServer is a minimal slotSubscribe endpoint. Each connection is handed
// to serve with its ordinal, so tests can script per-connection behavior.
type slotServer struct {
	srv   *httptest.Server
	conns atomic.Int64
}

func newSlotServer(t *testing.T, serve func(conn *websocket.Conn, n int64)) *slotServer {
	t.Helper()
	s := &slotServer{}
	upgrader := websocket.Upgrader{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		serve(conn, s.conns.Add(1))
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *slotServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// readSubscribe consumes the client's slotSubscribe request and answers with
// a subscription confirmation, which the feed must skip over.
func readSubscribe(conn *websocket.Conn) error {
	if _, _, err := conn.ReadMessage(); err != nil {
		return err
	}
	return conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": 1, "result": 23})
}

func notify(conn *websocket.Conn, slot uint64) error {
	return conn.WriteJSON(map[string]any{
		"jsonrpc": "2.0",
		"method":  "slotNotification",
		"params":  map[string]any{"result": map[string]any{"slot": slot}},
	})
}

func startFeed(t *testing.T, url string, cache *Cache, exit *atomic.Bool) chan struct{} {
	t.Helper()
	feed := NewSlotFeed(url, cache, exit, nil)
	feed.readTimeout = 50 * time.Millisecond
	feed.reconnectDelay = 10 * time.Millisecond

	done := make(chan struct{})
	go func() {
		defer close(done)
		feed.Run()
	}()
	t.Cleanup(func() {
		exit.Store(true)
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("slot feed did not stop")
		}
	})
	return done
}

func waitForSlot(t *testing.T, cache *Cache, want uint64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cache.State().Slot >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("cache slot = %d, want at least %d", cache.State().Slot, want)
}

func TestSlotFeed_AdvancesCacheOnNotification(t *testing.T) {
	server := newSlotServer(t, func(conn *websocket.Conn, _ int64) {
		if err := readSubscribe(conn); err != nil {
			return
		}
		if err := notify(conn, 77); err != nil {
			return
		}
		// Hold the connection open until the client goes away.
		conn.ReadMessage()
	})

	var exit atomic.Bool
	cache := NewCache()
	startFeed(t, server.wsURL(), cache, &exit)

	waitForSlot(t, cache, 77)
}

func TestSlotFeed_ReconnectsAfterServerClose(t *testing.T) {
	server := newSlotServer(t, func(conn *websocket.Conn, n int64) {
		if err := readSubscribe(conn); err != nil {
			return
		}
		if n == 1 {
			// Drop the first connection straight away.
			return
		}
		if err := notify(conn, 88); err != nil {
			return
		}
		conn.ReadMessage()
	})

	var exit atomic.Bool
	cache := NewCache()
	startFeed(t, server.wsURL(), cache, &exit)

	waitForSlot(t, cache, 88)
	if server.conns.Load() < 2 {
		t.Fatalf("server saw %d connections, want a reconnect", server.conns.Load())
	}
}

func TestSlotFeed_QuietConnectionReconnectsCleanly(t *testing.T) {
	// A connection that stays silent past the read deadline must be torn
	// down and redialed, not read again: notifications arriving on a
	// fresh connection still reach the cache, and the feed never touches
	// a connection whose read already failed.
	server := newSlotServer(t, func(conn *websocket.Conn, n int64) {
		if err := readSubscribe(conn); err != nil {
			return
		}
		if n == 1 {
			// Silent well past the client's read deadline.
			time.Sleep(300 * time.Millisecond)
			return
		}
		if err := notify(conn, 99); err != nil {
			return
		}
		conn.ReadMessage()
	})

	var exit atomic.Bool
	cache := NewCache()
	startFeed(t, server.wsURL(), cache, &exit)

	waitForSlot(t, cache, 99)
	if server.conns.Load() < 2 {
		t.Fatalf("server saw %d connections, want a reconnect after the quiet window", server.conns.Load())
	}
}
