// Package track implements the confirmation side of the harness: it consumes
// send records from the dispatch engines, scans the chain block by block, and
// classifies every record as confirmed or timed out.
package track

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/gateway-fm/quotebench/internal/chain"
	"github.com/gateway-fm/quotebench/internal/metrics"
	"github.com/gateway-fm/quotebench/pkg/types"
)

const (
	// DefaultWindowSlots is how many slots past its send slot a record is
	// considered matchable. A blockhash stops being accepted after roughly
	// 150 slots, so an unmatched record older than that can never land.
	DefaultWindowSlots = 152

	// DefaultBlockWait is how long to wait before re-requesting a slot
	// whose block has not been produced yet.
	DefaultBlockWait = 300 * time.Millisecond
)

// Config tunes the tracker. Zero values fall back to the defaults above.
type Config struct {
	// RecvLimit is the number of classified outcomes after which the run
	// is complete. It equals the total number of sends the dispatch side
	// is expected to emit.
	RecvLimit int

	// StartSlot is the first slot to scan, captured before dispatch
	// starts so no block containing our transactions is missed.
	StartSlot uint64

	WindowSlots uint64
	BlockWait   time.Duration
}

func (c Config) windowSlots() uint64 {
	if c.WindowSlots == 0 {
		return DefaultWindowSlots
	}
	return c.WindowSlots
}

func (c Config) blockWait() time.Duration {
	if c.BlockWait == 0 {
		return DefaultBlockWait
	}
	return c.BlockWait
}

// Results is everything the tracker observed during a run.
type Results struct {
	Confirmed []types.TransactionConfirmRecord
	TimedOut  []types.TransactionSendRecord
	Blocks    []types.BlockData
	Latency   *types.LatencyStats
}

// Tracker is the single consumer of the send record channel. It owns the
// pending index outright; no other goroutine touches it.
type Tracker struct {
	client  chain.Client
	records <-chan types.TransactionSendRecord
	cfg     Config

	pending map[solana.Signature]types.TransactionSendRecord
	drained bool

	confirmed []types.TransactionConfirmRecord
	timedOut  []types.TransactionSendRecord
	blocks    []types.BlockData
	latency   *metrics.StreamingLatencyStats

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a tracker reading from records. The metrics handle may be nil.
func New(client chain.Client, records <-chan types.TransactionSendRecord, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		client:  client,
		records: records,
		cfg:     cfg,
		pending: make(map[solana.Signature]types.TransactionSendRecord),
		latency: metrics.NewStreamingLatencyStats(),
		metrics: m,
		logger:  logger.With("component", "tracker"),
	}
}

// outcomes is the number of records classified so far.
func (t *Tracker) outcomes() int {
	return len(t.confirmed) + len(t.timedOut)
}

// done reports whether the run is complete: either every expected send has an
// outcome, or the producers are gone and nothing is left to classify.
func (t *Tracker) done() bool {
	if t.cfg.RecvLimit > 0 && t.outcomes() >= t.cfg.RecvLimit {
		return true
	}
	return t.drained && len(t.pending) == 0
}

// Run scans blocks from StartSlot until the run is complete or the context is
// cancelled. It returns every outcome observed so far in either case.
func (t *Tracker) Run(ctx context.Context) (*Results, error) {
	slot := t.cfg.StartSlot
	var runErr error

	for !t.done() {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		t.ingest()

		block, err := t.client.FetchBlock(ctx, slot)
		switch {
		case err == nil:
			t.processBlock(block)
			t.sweepExpired(block.Slot)
			slot++
		case errors.Is(err, chain.ErrSlotSkipped):
			slot++
		case errors.Is(err, chain.ErrBlockNotAvailable):
			// Caught up with the tip. If the producers are done and
			// every pending record is swept, the run is over.
			if err := t.waitForBlock(ctx); err != nil {
				runErr = err
			}
		default:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				runErr = err
				break
			}
			t.logger.Warn("block fetch failed, retrying", "slot", slot, "error", err)
			if err := t.waitForBlock(ctx); err != nil {
				runErr = err
			}
		}
		if runErr != nil {
			break
		}
	}

	// Whatever is still pending at completion never landed inside its
	// window; classify it so every send has exactly one outcome.
	if runErr == nil {
		t.flushPending()
	}

	if t.metrics != nil {
		t.metrics.PendingIndex.Set(float64(len(t.pending)))
	}

	return &Results{
		Confirmed: t.confirmed,
		TimedOut:  t.timedOut,
		Blocks:    t.blocks,
		Latency:   t.latency.GetStats(),
	}, runErr
}

// ingest moves every record currently buffered in the channel into the
// pending index without blocking. It also notices when the channel closes.
func (t *Tracker) ingest() {
	if t.drained {
		return
	}
	for {
		select {
		case rec, ok := <-t.records:
			if !ok {
				t.drained = true
				return
			}
			t.pending[rec.Signature] = rec
		default:
			if t.metrics != nil {
				t.metrics.PendingIndex.Set(float64(len(t.pending)))
			}
			return
		}
	}
}

// processBlock matches block transactions against the pending index and
// records the block summary. Signatures we never sent are ignored; a
// signature matched earlier is no longer pending, so re-scanning is a no-op.
func (t *Tracker) processBlock(block *chain.BlockInfo) {
	ours := 0
	now := time.Now()

	for _, tx := range block.Transactions {
		rec, ok := t.pending[tx.Signature]
		if !ok {
			continue
		}
		delete(t.pending, tx.Signature)
		ours++

		confirm := types.TransactionConfirmRecord{
			Signature:     rec.Signature,
			SentAt:        rec.SentAt,
			ConfirmedAt:   now,
			SentSlot:      rec.SentSlot,
			ConfirmedSlot: block.Slot,
			Latency:       now.Sub(rec.SentAt),
			Sender:        rec.Sender,
			Market:        rec.Market,
			PriorityFee:   rec.PriorityFee,
			Error:         tx.Err,
		}
		t.confirmed = append(t.confirmed, confirm)
		t.latency.Add(confirm.Latency)

		if t.metrics != nil {
			t.metrics.TxConfirmed.Inc()
			t.metrics.ConfirmLatency.Observe(confirm.Latency.Seconds())
			if tx.Err != "" {
				t.metrics.ExecErrors.Inc()
			}
		}
	}

	t.blocks = append(t.blocks, types.BlockData{
		Slot:       block.Slot,
		TxCount:    len(block.Transactions),
		OurTxCount: ours,
		Leader:     block.Leader,
		BlockTime:  block.BlockTime,
	})

	if t.metrics != nil {
		t.metrics.BlocksScanned.Inc()
		t.metrics.CurrentSlot.Set(float64(block.Slot))
	}
}

// sweepExpired times out every pending record whose matching window closed
// before the given slot. Past its window a record's blockhash is no longer
// accepted by the network, so it cannot appear in any later block.
func (t *Tracker) sweepExpired(slot uint64) {
	window := t.cfg.windowSlots()
	for sig, rec := range t.pending {
		if rec.SentSlot+window < slot {
			delete(t.pending, sig)
			t.timedOut = append(t.timedOut, rec)
			if t.metrics != nil {
				t.metrics.TxTimedOut.Inc()
			}
		}
	}
}

// flushPending times out everything still unmatched once the run is over.
func (t *Tracker) flushPending() {
	for sig, rec := range t.pending {
		delete(t.pending, sig)
		t.timedOut = append(t.timedOut, rec)
		if t.metrics != nil {
			t.metrics.TxTimedOut.Inc()
		}
	}
}

// waitForBlock sleeps for the block wait interval, ingesting along the way,
// and returns early on context cancellation.
func (t *Tracker) waitForBlock(ctx context.Context) error {
	t.ingest()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(t.cfg.blockWait()):
		return nil
	}
}
