package netstate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultReadTimeout    = 5 * time.Second
	defaultReconnectDelay = time.Second
)

// SlotFeed subscribes to the node's slot notifications over websocket and
// pushes fresher slot numbers into the cache between polls. The feed is an
// optimization: any failure degrades to polling only, it never affects the
// run outcome.
type SlotFeed struct {
	url    string
	cache  *Cache
	exit   *atomic.Bool
	logger *slog.Logger

	readTimeout    time.Duration
	reconnectDelay time.Duration
}

// NewSlotFeed creates a feed for the given websocket endpoint.
func NewSlotFeed(url string, cache *Cache, exit *atomic.Bool, logger *slog.Logger) *SlotFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlotFeed{
		url:            url,
		cache:          cache,
		exit:           exit,
		logger:         logger,
		readTimeout:    defaultReadTimeout,
		reconnectDelay: defaultReconnectDelay,
	}
}

type slotNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Slot uint64 `json:"slot"`
		} `json:"result"`
	} `json:"params"`
}

// Run connects and reads notifications until the exit flag is set,
// reconnecting with a short pause after any failure.
func (f *SlotFeed) Run() {
	for !f.exit.Load() {
		if err := f.runConn(); err != nil && !f.exit.Load() {
			f.logger.Warn("slot feed disconnected", "error", err)
			time.Sleep(f.reconnectDelay)
		}
	}
	f.logger.Info("slot feed stopped")
}

func (f *SlotFeed) runConn() error {
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.url, err)
	}
	defer conn.Close()

	sub := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "slotSubscribe",
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	f.logger.Info("slot feed connected", "url", f.url)

	for !f.exit.Load() {
		// Bounded read so the exit flag is rechecked even on a quiet
		// connection. Any read error, deadline expiry included, fails
		// the connection for good: reading again after an error is not
		// allowed, so the caller reconnects instead.
		if err := conn.SetReadDeadline(time.Now().Add(f.readTimeout)); err != nil {
			return err
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var note slotNotification
		if err := json.Unmarshal(payload, &note); err != nil {
			f.logger.Warn("slot feed: unparsable message", "error", err)
			continue
		}
		if note.Method != "slotNotification" {
			// Subscription confirmation or unrelated message.
			continue
		}
		f.cache.AdvanceSlot(note.Params.Result.Slot)
	}
	return nil
}
