package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		RPCURL:            DefaultRPCURL,
		AccountsFile:      "accounts.json",
		MarketsFile:       "markets.json",
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
		TransactionsCSV:   DefaultTransactionsCSV,
		BlocksCSV:         DefaultBlocksCSV,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing RPC URL",
			mutate:  func(c *Config) { c.RPCURL = "" },
			wantErr: true,
		},
		{
			name:    "missing accounts file",
			mutate:  func(c *Config) { c.AccountsFile = "" },
			wantErr: true,
		},
		{
			name:    "missing markets file",
			mutate:  func(c *Config) { c.MarketsFile = "" },
			wantErr: true,
		},
		{
			name:    "missing group",
			mutate:  func(c *Config) { c.Group = "" },
			wantErr: true,
		},
		{
			name:    "sub-second duration",
			mutate:  func(c *Config) { c.Duration = 500 * time.Millisecond },
			wantErr: true,
		},
		{
			name:    "zero qps",
			mutate:  func(c *Config) { c.QuotesPerSecond = 0 },
			wantErr: true,
		},
		{
			name:    "negative batch size",
			mutate:  func(c *Config) { c.BatchSize = -1 },
			wantErr: true,
		},
		{
			name:    "batch of zero sends individually",
			mutate:  func(c *Config) { c.BatchSize = 0 },
			wantErr: false,
		},
		{
			name:    "zero markets per account",
			mutate:  func(c *Config) { c.MarketsPerAccount = 0 },
			wantErr: true,
		},
		{
			name:    "zero pool size",
			mutate:  func(c *Config) { c.PoolSize = 0 },
			wantErr: true,
		},
		{
			name:    "fee probability above 100",
			mutate:  func(c *Config) { c.FeeProbability = 101 },
			wantErr: true,
		},
		{
			name: "max fee below min fee",
			mutate: func(c *Config) {
				c.MinFee = 1000
				c.MaxFee = 100
			},
			wantErr: true,
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.PollInterval = 0 },
			wantErr: true,
		},
		{
			name:    "missing CSV path",
			mutate:  func(c *Config) { c.TransactionsCSV = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpectedSends(t *testing.T) {
	tests := []struct {
		name     string
		accounts int
		mutate   func(*Config)
		want     int
	}{
		{
			name:     "individual sends",
			accounts: 2,
			mutate: func(c *Config) {
				c.MarketsPerAccount = 4
				c.Duration = 10 * time.Second
				c.QuotesPerSecond = 5
				c.BatchSize = 1
			},
			want: 2 * 4 * 10 * 5,
		},
		{
			name:     "batched sends multiply",
			accounts: 3,
			mutate: func(c *Config) {
				c.MarketsPerAccount = 2
				c.Duration = 5 * time.Second
				c.QuotesPerSecond = 2
				c.BatchSize = 4
			},
			want: 3 * 2 * 5 * 2 * 4,
		},
		{
			name:     "zero batch counts as one",
			accounts: 1,
			mutate: func(c *Config) {
				c.MarketsPerAccount = 1
				c.Duration = 3 * time.Second
				c.QuotesPerSecond = 1
				c.BatchSize = 0
			},
			want: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			if got := cfg.ExpectedSends(tt.accounts); got != tt.want {
				t.Errorf("ExpectedSends(%d) = %d, want %d", tt.accounts, got, tt.want)
			}
		})
	}
}
