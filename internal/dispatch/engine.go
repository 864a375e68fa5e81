// Package dispatch runs the per-account quote sending loops: on a fixed
// one-second cadence each engine builds, signs and sends quote transactions
// for its assigned markets, emitting one send record per transaction.
package dispatch

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/gateway-fm/quotebench/internal/chain"
	"github.com/gateway-fm/quotebench/internal/clientpool"
	"github.com/gateway-fm/quotebench/internal/metrics"
	"github.com/gateway-fm/quotebench/internal/netstate"
	"github.com/gateway-fm/quotebench/internal/quote"
	"github.com/gateway-fm/quotebench/pkg/types"
)

// DefaultIterationBudget is how much of each one-second slice the engine
// may spend sending; the rest is scheduling slack.
const DefaultIterationBudget = 950 * time.Millisecond

// Config holds the per-run dispatch settings shared by every engine.
type Config struct {
	// Iterations is the number of one-second send slices (the run
	// duration in seconds).
	Iterations int

	// QuotesPerSecond is how many quote bundles to send per market per
	// iteration.
	QuotesPerSecond int

	// BatchSize > 0 switches from individual sends to batches of that
	// size per market per quote tick.
	BatchSize int

	// Priority fee randomization: probability in percent, fee uniform in
	// [MinFee, MaxFee).
	FeeProbability int
	MinFee         uint64
	MaxFee         uint64

	// IterationBudget overrides DefaultIterationBudget when positive.
	IterationBudget time.Duration
}

func (c Config) iterationBudget() time.Duration {
	if c.IterationBudget > 0 {
		return c.IterationBudget
	}
	return DefaultIterationBudget
}

// Engine is one simulated trader's send loop. The identity is owned
// exclusively by the engine; the pool, cache and record channel are shared.
type Engine struct {
	signer  solana.PrivateKey
	trader  solana.PublicKey
	markets []*types.MarketSnapshot

	pool    *clientpool.Pool[chain.Client]
	cache   *netstate.Cache
	records chan<- types.TransactionSendRecord

	cfg     Config
	rng     *rand.Rand
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates an engine for the identity and assigns it a fixed random
// subset of marketsPerAccount markets, chosen once here and never reshuffled.
func New(
	identity types.AccountIdentity,
	markets []*types.MarketSnapshot,
	marketsPerAccount int,
	cfg Config,
	pool *clientpool.Pool[chain.Client],
	cache *netstate.Cache,
	records chan<- types.TransactionSendRecord,
	rng *rand.Rand,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if marketsPerAccount <= 0 || marketsPerAccount > len(markets) {
		marketsPerAccount = len(markets)
	}
	assigned := make([]*types.MarketSnapshot, 0, marketsPerAccount)
	for _, i := range rng.Perm(len(markets))[:marketsPerAccount] {
		assigned = append(assigned, markets[i])
	}

	signerKey := identity.Signer.PublicKey()
	return &Engine{
		signer:  identity.Signer,
		trader:  identity.TradingAccounts[0],
		markets: assigned,
		pool:    pool,
		cache:   cache,
		records: records,
		cfg:     cfg,
		rng:     rng,
		metrics: m,
		logger: logger.With(
			"signer", signerKey.String(),
			"trader", identity.TradingAccounts[0].String(),
		),
	}
}

// Markets returns the engine's assigned market subset.
func (e *Engine) Markets() []*types.MarketSnapshot {
	return e.markets
}

// Run executes the configured number of one-second iterations and returns.
// The engine never waits for confirmations; cadence overruns are logged and
// tolerated.
func (e *Engine) Run(ctx context.Context) {
	budget := e.cfg.iterationBudget()
	for i := 0; i < e.cfg.Iterations; i++ {
		if ctx.Err() != nil {
			e.logger.Warn("dispatch cancelled", "completedIterations", i)
			return
		}
		start := time.Now()

		if e.cfg.BatchSize > 0 {
			e.sendBatched(ctx)
		} else {
			e.sendIndividual(ctx)
		}

		elapsed := time.Since(start)
		if elapsed < budget {
			time.Sleep(budget - elapsed)
		} else {
			e.logger.Warn("send iteration overran its budget",
				"iteration", i,
				"elapsed", elapsed,
				"budget", budget,
			)
		}
	}
	e.logger.Info("dispatch engine finished", "iterations", e.cfg.Iterations)
}

// sendIndividual sends one transaction per market per quote tick. The send
// record is emitted even when the network rejects the send: the tracker
// classifies such signatures as timeouts since no confirmation can appear.
func (e *Engine) sendIndividual(ctx context.Context) {
	for q := 0; q < e.cfg.QuotesPerSecond; q++ {
		fees := randomFees(e.rng, e.cfg.FeeProbability, len(e.markets), e.cfg.MinFee, e.cfg.MaxFee)
		for i, m := range e.markets {
			tx, state, err := e.buildSigned(m, fees[i])
			if err != nil {
				e.logger.Error("building quote failed", "market", m.Name, "error", err)
				continue
			}

			client := e.pool.Acquire()
			if _, err := client.SendTransaction(ctx, tx); err != nil {
				e.logger.Warn("send failed", "market", m.Name, "error", err)
				if e.metrics != nil {
					e.metrics.SendFailures.Inc()
				}
			}
			e.emit(tx.Signatures[0], state.Slot, m, fees[i])
		}
	}
}

// sendBatched sends BatchSize transactions per market per quote tick as one
// batch. A failed batch is dropped wholesale: none of its records are
// emitted, so sends that never left the process do not pollute the
// confirmation statistics. This undercounts true failures; known bias.
func (e *Engine) sendBatched(ctx context.Context) {
	type built struct {
		tx   *solana.Transaction
		slot uint64
		fee  uint64
	}
	batch := make([]built, 0, e.cfg.BatchSize)

	for q := 0; q < e.cfg.QuotesPerSecond; q++ {
		for _, m := range e.markets {
			fees := randomFees(e.rng, e.cfg.FeeProbability, e.cfg.BatchSize, e.cfg.MinFee, e.cfg.MaxFee)
			batch = batch[:0]
			for _, fee := range fees {
				tx, state, err := e.buildSigned(m, fee)
				if err != nil {
					e.logger.Error("building quote failed", "market", m.Name, "error", err)
					continue
				}
				batch = append(batch, built{tx: tx, slot: state.Slot, fee: fee})
			}
			if len(batch) == 0 {
				continue
			}

			txs := make([]*solana.Transaction, len(batch))
			for i := range batch {
				txs[i] = batch[i].tx
			}
			client := e.pool.Acquire()
			if err := client.SendTransactionBatch(ctx, txs); err != nil {
				e.logger.Warn("batch send failed, dropping batch records",
					"market", m.Name, "size", len(batch), "error", err)
				if e.metrics != nil {
					e.metrics.SendFailures.Add(float64(len(batch)))
				}
				continue
			}
			for _, b := range batch {
				e.emit(b.tx.Signatures[0], b.slot, m, b.fee)
			}
		}
	}
}

// buildSigned builds one quote transaction and signs it against the current
// cached blockhash. The cache read is a value copy under a read lock.
func (e *Engine) buildSigned(m *types.MarketSnapshot, fee uint64) (*solana.Transaction, types.NetworkState, error) {
	state := e.cache.State()
	tx, err := quote.Build(e.rng, m, e.trader, e.signer.PublicKey(), fee, state.Blockhash)
	if err != nil {
		return nil, state, err
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(e.signer.PublicKey()) {
			return &e.signer
		}
		return nil
	}); err != nil {
		return nil, state, err
	}
	return tx, state, nil
}

// emit hands one send record to the tracker. The channel is sized for the
// whole run, so this never blocks the send loop.
func (e *Engine) emit(sig solana.Signature, slot uint64, m *types.MarketSnapshot, fee uint64) {
	e.records <- types.TransactionSendRecord{
		Signature:   sig,
		SentAt:      time.Now(),
		SentSlot:    slot,
		Sender:      e.signer.PublicKey(),
		Market:      m.Market,
		PriorityFee: fee,
	}
	if e.metrics != nil {
		e.metrics.TxSent.Inc()
	}
}
