// quotebench floods a Solana cluster with market-maker quote transactions
// and measures how long each one takes to land in a block.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gateway-fm/quotebench/internal/chain"
	"github.com/gateway-fm/quotebench/internal/clientpool"
	"github.com/gateway-fm/quotebench/internal/config"
	"github.com/gateway-fm/quotebench/internal/dispatch"
	"github.com/gateway-fm/quotebench/internal/keyfile"
	"github.com/gateway-fm/quotebench/internal/metrics"
	"github.com/gateway-fm/quotebench/internal/netstate"
	"github.com/gateway-fm/quotebench/internal/report"
	"github.com/gateway-fm/quotebench/internal/track"
	"github.com/gateway-fm/quotebench/pkg/types"
)

func newLogger() *slog.Logger {
	var level slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger()
	slog.SetDefault(logger)

	accounts, err := keyfile.LoadAccounts(cfg.AccountsFile)
	if err != nil {
		logger.Error("failed to load accounts", "path", cfg.AccountsFile, "error", err)
		os.Exit(1)
	}
	markets, err := keyfile.LoadMarkets(cfg.MarketsFile, cfg.Group)
	if err != nil {
		logger.Error("failed to load markets", "path", cfg.MarketsFile, "error", err)
		os.Exit(1)
	}
	logger.Info("inputs loaded",
		"accounts", len(accounts),
		"markets", len(markets),
		"group", cfg.Group)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			logger.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	pool, err := clientpool.New(cfg.PoolSize, func(int) (chain.Client, error) {
		return chain.NewRPCClient(cfg.RPCURL, logger), nil
	})
	if err != nil {
		logger.Error("failed to build client pool", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warn("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	var exit atomic.Bool
	cache := netstate.NewCache()
	poller := netstate.NewPoller(cache, pool.Acquire(), cfg.PollInterval, &exit, logger)
	if err := poller.Prime(ctx); err != nil {
		logger.Error("failed to fetch initial blockhash", "rpc", cfg.RPCURL, "error", err)
		os.Exit(1)
	}
	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		poller.Run()
	}()
	var feedDone chan struct{}
	if cfg.WSURL != "" {
		feed := netstate.NewSlotFeed(cfg.WSURL, cache, &exit, logger)
		feedDone = make(chan struct{})
		go func() {
			defer close(feedDone)
			feed.Run()
		}()
	}
	defer func() {
		exit.Store(true)
		<-pollerDone
		if feedDone != nil {
			<-feedDone
		}
	}()

	startSlot := cache.State().Slot
	recvLimit := cfg.ExpectedSends(len(accounts))

	// Sized for every send of the run so the send loops never block on it.
	records := make(chan types.TransactionSendRecord, recvLimit)

	if cfg.Warmup > 0 {
		logger.Info("warming up", "duration", cfg.Warmup)
		time.Sleep(cfg.Warmup)
	}

	startedAt := time.Now()
	logger.Info("bench starting",
		"duration", cfg.Duration,
		"qps", cfg.QuotesPerSecond,
		"batch", cfg.BatchSize,
		"expectedSends", recvLimit,
		"startSlot", startSlot)

	tracker := track.New(pool.Acquire(), records, track.Config{
		RecvLimit: recvLimit,
		StartSlot: startSlot,
	}, m, logger)

	type trackOut struct {
		res *track.Results
		err error
	}
	trackerDone := make(chan trackOut, 1)
	go func() {
		res, err := tracker.Run(ctx)
		trackerDone <- trackOut{res: res, err: err}
	}()

	engineCfg := dispatch.Config{
		Iterations:      int(cfg.Duration.Seconds()),
		QuotesPerSecond: cfg.QuotesPerSecond,
		BatchSize:       batchOrZero(cfg.BatchSize),
		FeeProbability:  cfg.FeeProbability,
		MinFee:          cfg.MinFee,
		MaxFee:          cfg.MaxFee,
	}

	var wg sync.WaitGroup
	for i, identity := range accounts {
		wg.Add(1)
		rng := rand.New(rand.NewPCG(uint64(startedAt.UnixNano()), uint64(i)))
		eng := dispatch.New(identity, markets, cfg.MarketsPerAccount, engineCfg,
			pool, cache, records, rng, m, logger)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("dispatch engine panicked", "panic", r)
				}
			}()
			eng.Run(ctx)
		}()
	}

	wg.Wait()
	close(records)
	logger.Info("dispatch finished, waiting for confirmations")

	out := <-trackerDone
	exit.Store(true)
	if out.err != nil {
		logger.Warn("confirmation tracking ended early", "error", out.err)
	}
	res := out.res

	execErrors := 0
	for _, r := range res.Confirmed {
		if r.Error != "" {
			execErrors++
		}
	}
	total := len(res.Confirmed) + len(res.TimedOut)
	summary := logger.With(
		"sent", total,
		"confirmed", len(res.Confirmed),
		"timedOut", len(res.TimedOut),
		"execErrors", execErrors,
		"blocks", len(res.Blocks),
	)
	if total > 0 {
		summary = summary.With(
			"confirmedPct", fmt.Sprintf("%.1f", float64(len(res.Confirmed))*100/float64(total)),
			"timedOutPct", fmt.Sprintf("%.1f", float64(len(res.TimedOut))*100/float64(total)),
		)
	}
	if res.Latency.Count > 0 {
		summary = summary.With(
			"latencyP50Ms", fmt.Sprintf("%.1f", res.Latency.P50),
			"latencyP95Ms", fmt.Sprintf("%.1f", res.Latency.P95),
			"latencyP99Ms", fmt.Sprintf("%.1f", res.Latency.P99),
		)
	}
	summary.Info("bench complete")

	if err := report.WriteTransactionData(cfg.TransactionsCSV, res.Confirmed, res.TimedOut); err != nil {
		logger.Error("failed to write transaction csv", "path", cfg.TransactionsCSV, "error", err)
	}
	if err := report.WriteBlockData(cfg.BlocksCSV, res.Blocks); err != nil {
		logger.Error("failed to write block csv", "path", cfg.BlocksCSV, "error", err)
	}

	if cfg.DatabasePath != "" {
		storage, err := report.NewSQLiteStorage(cfg.DatabasePath)
		if err != nil {
			logger.Error("failed to open archive database", "path", cfg.DatabasePath, "error", err)
			return
		}
		defer storage.Close()

		run := &report.RunSummary{
			ID:           fmt.Sprintf("run-%d", startedAt.Unix()),
			StartedAt:    startedAt,
			CompletedAt:  time.Now(),
			RPCURL:       cfg.RPCURL,
			Group:        cfg.Group,
			Accounts:     len(accounts),
			Markets:      len(markets),
			QPS:          cfg.QuotesPerSecond,
			DurationMs:   cfg.Duration.Milliseconds(),
			TxSent:       total,
			TxConfirmed:  len(res.Confirmed),
			TxTimedOut:   len(res.TimedOut),
			TxExecErrors: execErrors,
			BlockCount:   len(res.Blocks),
			LatencyStats: res.Latency,
		}
		if err := storage.SaveRun(context.Background(), run, res.Confirmed, res.TimedOut, res.Blocks); err != nil {
			logger.Error("failed to archive run", "error", err)
		} else {
			logger.Info("run archived", "id", run.ID, "path", cfg.DatabasePath)
		}
	}
}

// batchOrZero maps the config's "1 sends individually" convention onto the
// dispatch engine's "0 sends individually" one.
func batchOrZero(batch int) int {
	if batch <= 1 {
		return 0
	}
	return batch
}
