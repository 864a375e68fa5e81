package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gateway-fm/quotebench/pkg/types"
)

// RunSummary is the aggregate row stored for one bench run.
type RunSummary struct {
	ID           string
	StartedAt    time.Time
	CompletedAt  time.Time
	RPCURL       string
	Group        string
	Accounts     int
	Markets      int
	QPS          int
	DurationMs   int64
	TxSent       int
	TxConfirmed  int
	TxTimedOut   int
	TxExecErrors int
	BlockCount   int
	LatencyStats *types.LatencyStats
}

// SQLiteStorage archives bench runs in a local SQLite database.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (creating if needed) the database at dbPath.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL mode keeps inserts cheap while the bench is still writing CSVs.
	dsn := fmt.Sprintf("%s?_journal=WAL&_sync=NORMAL&_cache_size=10000&_foreign_keys=ON", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLiteStorage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bench_runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		rpc_url TEXT NOT NULL,
		market_group TEXT NOT NULL,
		accounts INTEGER NOT NULL,
		markets INTEGER NOT NULL,
		qps INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		tx_sent INTEGER DEFAULT 0,
		tx_confirmed INTEGER DEFAULT 0,
		tx_timed_out INTEGER DEFAULT 0,
		tx_exec_errors INTEGER DEFAULT 0,
		block_count INTEGER DEFAULT 0,
		latency_stats TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_bench_runs_started ON bench_runs(started_at DESC);

	CREATE TABLE IF NOT EXISTS bench_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		signature TEXT NOT NULL,
		outcome TEXT NOT NULL,
		sent_at_ms INTEGER NOT NULL,
		confirmed_at_ms INTEGER,
		sent_slot INTEGER NOT NULL,
		confirmed_slot INTEGER,
		latency_ms REAL,
		sender TEXT NOT NULL,
		market TEXT NOT NULL,
		priority_fee INTEGER DEFAULT 0,
		error TEXT,
		FOREIGN KEY (run_id) REFERENCES bench_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_bench_transactions_run ON bench_transactions(run_id);
	CREATE INDEX IF NOT EXISTS idx_bench_transactions_sig ON bench_transactions(signature);

	CREATE TABLE IF NOT EXISTS bench_blocks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		slot INTEGER NOT NULL,
		block_time DATETIME,
		tx_count INTEGER NOT NULL,
		our_tx_count INTEGER NOT NULL,
		leader TEXT,
		FOREIGN KEY (run_id) REFERENCES bench_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_bench_blocks_run ON bench_blocks(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SaveRun stores the run summary plus every per-transaction and per-block row
// in a single transaction, so the fsync cost is paid once.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run *RunSummary,
	confirmed []types.TransactionConfirmRecord, timedOut []types.TransactionSendRecord,
	blocks []types.BlockData) error {

	latencyJSON, err := json.Marshal(run.LatencyStats)
	if err != nil {
		return fmt.Errorf("failed to marshal latency stats: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bench_runs (id, started_at, completed_at, rpc_url, market_group,
			accounts, markets, qps, duration_ms,
			tx_sent, tx_confirmed, tx_timed_out, tx_exec_errors, block_count, latency_stats)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt, run.CompletedAt, run.RPCURL, run.Group,
		run.Accounts, run.Markets, run.QPS, run.DurationMs,
		run.TxSent, run.TxConfirmed, run.TxTimedOut, run.TxExecErrors, run.BlockCount,
		string(latencyJSON))
	if err != nil {
		return err
	}

	txStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bench_transactions (run_id, signature, outcome, sent_at_ms, confirmed_at_ms,
			sent_slot, confirmed_slot, latency_ms, sender, market, priority_fee, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer txStmt.Close()

	for _, r := range confirmed {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		outcome := "confirmed"
		if r.Error != "" {
			outcome = "error"
		}
		_, err := txStmt.ExecContext(ctx, run.ID, r.Signature.String(), outcome,
			r.SentAt.UnixMilli(), r.ConfirmedAt.UnixMilli(),
			r.SentSlot, r.ConfirmedSlot,
			float64(r.Latency.Microseconds())/1000.0,
			r.Sender.String(), r.Market.String(), r.PriorityFee, nullString(r.Error))
		if err != nil {
			return err
		}
	}

	for _, r := range timedOut {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, err := txStmt.ExecContext(ctx, run.ID, r.Signature.String(), "timeout",
			r.SentAt.UnixMilli(), nil,
			r.SentSlot, nil, nil,
			r.Sender.String(), r.Market.String(), r.PriorityFee, nil)
		if err != nil {
			return err
		}
	}

	blockStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bench_blocks (run_id, slot, block_time, tx_count, our_tx_count, leader)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer blockStmt.Close()

	for _, b := range blocks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, err := blockStmt.ExecContext(ctx, run.ID, b.Slot, b.BlockTime,
			b.TxCount, b.OurTxCount, b.Leader.String())
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetRun retrieves one archived run summary by ID, or nil if absent.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*RunSummary, error) {
	var run RunSummary
	var latencyJSON sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, completed_at, rpc_url, market_group,
			accounts, markets, qps, duration_ms,
			tx_sent, tx_confirmed, tx_timed_out, tx_exec_errors, block_count, latency_stats
		FROM bench_runs WHERE id = ?
	`, id).Scan(&run.ID, &run.StartedAt, &run.CompletedAt, &run.RPCURL, &run.Group,
		&run.Accounts, &run.Markets, &run.QPS, &run.DurationMs,
		&run.TxSent, &run.TxConfirmed, &run.TxTimedOut, &run.TxExecErrors, &run.BlockCount,
		&latencyJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if latencyJSON.Valid && latencyJSON.String != "" {
		run.LatencyStats = &types.LatencyStats{}
		if err := json.Unmarshal([]byte(latencyJSON.String), run.LatencyStats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal latency stats: %w", err)
		}
	}

	return &run, nil
}

// ListRuns returns archived run summaries, newest first.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, completed_at, rpc_url, market_group,
			accounts, markets, qps, duration_ms,
			tx_sent, tx_confirmed, tx_timed_out, tx_exec_errors, block_count, latency_stats
		FROM bench_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		var latencyJSON sql.NullString
		err := rows.Scan(&run.ID, &run.StartedAt, &run.CompletedAt, &run.RPCURL, &run.Group,
			&run.Accounts, &run.Markets, &run.QPS, &run.DurationMs,
			&run.TxSent, &run.TxConfirmed, &run.TxTimedOut, &run.TxExecErrors, &run.BlockCount,
			&latencyJSON)
		if err != nil {
			return nil, err
		}
		if latencyJSON.Valid && latencyJSON.String != "" {
			run.LatencyStats = &types.LatencyStats{}
			if err := json.Unmarshal([]byte(latencyJSON.String), run.LatencyStats); err != nil {
				return nil, err
			}
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
