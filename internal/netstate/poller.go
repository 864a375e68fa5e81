package netstate

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gateway-fm/quotebench/internal/chain"
	"github.com/gateway-fm/quotebench/pkg/types"
)

// DefaultPollInterval keeps the cached blockhash well inside the network's
// hash-expiry window. A transaction signed against an expired hash is
// rejected by the network; that is an observable failure mode of the run,
// not something the poller tries to hide.
const DefaultPollInterval = 400 * time.Millisecond

// Poller refreshes the cache on a dedicated goroutine until the shared exit
// flag flips.
type Poller struct {
	cache    *Cache
	client   chain.Client
	interval time.Duration
	exit     *atomic.Bool
	logger   *slog.Logger
}

// NewPoller creates a poller. A non-positive interval falls back to
// DefaultPollInterval.
func NewPoller(cache *Cache, client chain.Client, interval time.Duration, exit *atomic.Bool, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cache:    cache,
		client:   client,
		interval: interval,
		exit:     exit,
		logger:   logger,
	}
}

// Prime performs the initial fetch. The pipeline must not start until the
// cache holds a valid state, so a failure here is fatal to startup.
func (p *Poller) Prime(ctx context.Context) error {
	hash, slot, err := p.client.LatestBlockhash(ctx)
	if err != nil {
		return fmt.Errorf("priming network state: %w", err)
	}
	p.cache.Update(types.NetworkState{Blockhash: hash, Slot: slot})
	p.logger.Info("network state primed", "slot", slot, "blockhash", hash.String())
	return nil
}

// Run loops until the exit flag is set. Poll failures are logged and
// retried on the next tick; they never crash the process.
func (p *Poller) Run() {
	for !p.exit.Load() {
		ctx, cancel := context.WithTimeout(context.Background(), p.interval*4)
		hash, slot, err := p.client.LatestBlockhash(ctx)
		cancel()
		if err != nil {
			p.logger.Warn("blockhash poll failed", "error", err)
		} else {
			p.cache.Update(types.NetworkState{Blockhash: hash, Slot: slot})
		}
		time.Sleep(p.interval)
	}
	p.logger.Info("blockhash poller stopped")
}
