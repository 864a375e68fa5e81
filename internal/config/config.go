// Package config handles configuration loading and validation.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the bench harness configuration.
type Config struct {
	RPCURL       string
	WSURL        string // optional WebSocket URL for slot notifications
	AccountsFile string
	MarketsFile  string
	Group        string

	Duration          time.Duration
	QuotesPerSecond   int
	BatchSize         int // 0 or 1 sends individually
	MarketsPerAccount int
	PoolSize          int // RPC client pool size

	// Priority fee sampling: with FeeProbability percent chance a
	// transaction carries a fee drawn uniformly from [MinFee, MaxFee).
	FeeProbability int
	MinFee         uint64
	MaxFee         uint64

	PollInterval time.Duration
	Warmup       time.Duration

	TransactionsCSV string
	BlocksCSV       string
	DatabasePath    string // empty disables the SQLite archive
	MetricsAddr     string // empty disables the Prometheus endpoint
}

// Defaults
const (
	DefaultRPCURL            = "http://localhost:8899"
	DefaultGroup             = "mainnet.1"
	DefaultDuration          = 60 * time.Second
	DefaultQuotesPerSecond   = 1
	DefaultBatchSize         = 1
	DefaultMarketsPerAccount = 4
	DefaultPoolSize          = 4
	DefaultFeeProbability    = 0
	DefaultMinFee            = 100
	DefaultMaxFee            = 1000
	DefaultPollInterval      = 400 * time.Millisecond
	DefaultWarmup            = 0
	DefaultTransactionsCSV   = "transactions.csv"
	DefaultBlocksCSV         = "blocks.csv"
	DefaultMetricsAddr       = ""
)

// ExpectedSends returns the total number of send records the dispatch side
// will emit across the whole run, assuming no send failures.
func (c *Config) ExpectedSends(accounts int) int {
	batch := c.BatchSize
	if batch < 1 {
		batch = 1
	}
	return accounts * c.MarketsPerAccount * int(c.Duration.Seconds()) * c.QuotesPerSecond * batch
}

// Load reads configuration from environment variables and command-line flags.
// Command-line flags take precedence over environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		RPCURL:            DefaultRPCURL,
		Group:             DefaultGroup,
		Duration:          DefaultDuration,
		QuotesPerSecond:   DefaultQuotesPerSecond,
		BatchSize:         DefaultBatchSize,
		MarketsPerAccount: DefaultMarketsPerAccount,
		PoolSize:          DefaultPoolSize,
		FeeProbability:    DefaultFeeProbability,
		MinFee:            DefaultMinFee,
		MaxFee:            DefaultMaxFee,
		PollInterval:      DefaultPollInterval,
		Warmup:            DefaultWarmup,
		TransactionsCSV:   DefaultTransactionsCSV,
		BlocksCSV:         DefaultBlocksCSV,
		MetricsAddr:       DefaultMetricsAddr,
	}

	// Environment first, flags override below.
	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.RPCURL = v
	}
	if v := os.Getenv("WS_URL"); v != "" {
		cfg.WSURL = v
	}
	if v := os.Getenv("ACCOUNTS_FILE"); v != "" {
		cfg.AccountsFile = v
	}
	if v := os.Getenv("MARKETS_FILE"); v != "" {
		cfg.MarketsFile = v
	}
	if v := os.Getenv("MARKET_GROUP"); v != "" {
		cfg.Group = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("QUOTES_PER_SECOND"); v != "" {
		if qps, err := strconv.Atoi(v); err == nil && qps > 0 {
			cfg.QuotesPerSecond = qps
		}
	}
	if v := os.Getenv("BENCH_DURATION"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Duration = d
		}
	}

	var (
		rpcURL      = flag.String("rpc", cfg.RPCURL, "Solana RPC URL")
		wsURL       = flag.String("ws", cfg.WSURL, "Solana WebSocket URL for slot notifications (optional)")
		accounts    = flag.String("accounts", cfg.AccountsFile, "Path to trader identities JSON file")
		markets     = flag.String("markets", cfg.MarketsFile, "Path to market group JSON file")
		group       = flag.String("group", cfg.Group, "Market group name")
		duration    = flag.Duration("duration", cfg.Duration, "Quoting duration")
		qps         = flag.Int("qps", cfg.QuotesPerSecond, "Quotes per second per market")
		batchSize   = flag.Int("batch", cfg.BatchSize, "Transactions per batch submission (1 sends individually)")
		marketCount = flag.Int("markets-per-account", cfg.MarketsPerAccount, "Markets quoted by each account")
		poolSize    = flag.Int("pool", cfg.PoolSize, "RPC client pool size")
		feeProb     = flag.Int("fee-probability", cfg.FeeProbability, "Percent chance a transaction carries a priority fee")
		minFee      = flag.Uint64("min-fee", cfg.MinFee, "Minimum priority fee in micro-lamports")
		maxFee      = flag.Uint64("max-fee", cfg.MaxFee, "Maximum priority fee in micro-lamports")
		poll        = flag.Duration("poll-interval", cfg.PollInterval, "Blockhash poll interval")
		warmup      = flag.Duration("warmup", cfg.Warmup, "Delay before quoting starts")
		txCSV       = flag.String("tx-csv", cfg.TransactionsCSV, "Transaction results CSV path")
		blockCSV    = flag.String("block-csv", cfg.BlocksCSV, "Block summaries CSV path")
		dbPath      = flag.String("db", cfg.DatabasePath, "SQLite archive path (empty disables)")
		metricsAddr = flag.String("metrics", cfg.MetricsAddr, "Prometheus listen address (empty disables)")
	)

	flag.Parse()

	cfg.RPCURL = *rpcURL
	cfg.WSURL = *wsURL
	cfg.AccountsFile = *accounts
	cfg.MarketsFile = *markets
	cfg.Group = *group
	cfg.Duration = *duration
	cfg.QuotesPerSecond = *qps
	cfg.BatchSize = *batchSize
	cfg.MarketsPerAccount = *marketCount
	cfg.PoolSize = *poolSize
	cfg.FeeProbability = *feeProb
	cfg.MinFee = *minFee
	cfg.MaxFee = *maxFee
	cfg.PollInterval = *poll
	cfg.Warmup = *warmup
	cfg.TransactionsCSV = *txCSV
	cfg.BlocksCSV = *blockCSV
	cfg.DatabasePath = *dbPath
	cfg.MetricsAddr = *metricsAddr

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("RPC URL is required")
	}
	if c.AccountsFile == "" {
		return fmt.Errorf("accounts file is required")
	}
	if c.MarketsFile == "" {
		return fmt.Errorf("markets file is required")
	}
	if c.Group == "" {
		return fmt.Errorf("market group is required")
	}
	if c.Duration < time.Second {
		return fmt.Errorf("duration must be at least one second")
	}
	if c.QuotesPerSecond <= 0 {
		return fmt.Errorf("quotes per second must be positive")
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch size cannot be negative")
	}
	if c.MarketsPerAccount <= 0 {
		return fmt.Errorf("markets per account must be positive")
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("pool size must be positive")
	}
	if c.FeeProbability < 0 || c.FeeProbability > 100 {
		return fmt.Errorf("fee probability must be between 0 and 100")
	}
	if c.MaxFee < c.MinFee {
		return fmt.Errorf("max fee must not be below min fee")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.TransactionsCSV == "" || c.BlocksCSV == "" {
		return fmt.Errorf("CSV output paths are required")
	}
	return nil
}
