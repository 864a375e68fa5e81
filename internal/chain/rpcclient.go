package chain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// maxSupportedTransactionVersion for block fetches. Version 0 covers both
// legacy and v0 (address-lookup-table) transactions.
var maxSupportedTransactionVersion = uint64(0)

// RPCClient implements Client on top of the Solana JSON-RPC client. All
// queries use confirmed commitment; sends skip preflight so the node never
// simulates our quote transactions before forwarding them.
type RPCClient struct {
	rpc    *rpc.Client
	logger *slog.Logger
}

// NewRPCClient creates a client for the given RPC endpoint.
func NewRPCClient(endpoint string, logger *slog.Logger) *RPCClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &RPCClient{
		rpc:    rpc.New(endpoint),
		logger: logger,
	}
}

// LatestBlockhash implements Client.
func (c *RPCClient) LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Hash{}, 0, fmt.Errorf("get latest blockhash: %w", err)
	}
	return out.Value.Blockhash, out.Context.Slot, nil
}

// CurrentSlot implements Client.
func (c *RPCClient) CurrentSlot(ctx context.Context) (uint64, error) {
	slot, err := c.rpc.GetSlot(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get slot: %w", err)
	}
	return slot, nil
}

// SendTransaction implements Client.
func (c *RPCClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight: true,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	return sig, nil
}

// SendTransactionBatch implements Client. The RPC protocol has no batched
// submission, so the batch is submitted sequentially; the first error fails
// the whole batch.
func (c *RPCClient) SendTransactionBatch(ctx context.Context, txs []*solana.Transaction) error {
	for i, tx := range txs {
		if _, err := c.SendTransaction(ctx, tx); err != nil {
			return fmt.Errorf("batch transaction %d/%d: %w", i+1, len(txs), err)
		}
	}
	return nil
}

// FetchBlock implements Client. It requests full transaction details so the
// per-transaction execution error is available, and rewards so the block
// leader can be identified from the fee reward.
func (c *RPCClient) FetchBlock(ctx context.Context, slot uint64) (*BlockInfo, error) {
	includeRewards := true
	out, err := c.rpc.GetBlockWithOpts(ctx, slot, &rpc.GetBlockOpts{
		Encoding:                       solana.EncodingBase64,
		TransactionDetails:             rpc.TransactionDetailsFull,
		Rewards:                        &includeRewards,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxSupportedTransactionVersion,
	})
	if err != nil {
		if isSlotSkipped(err) {
			return nil, ErrSlotSkipped
		}
		if isBlockNotAvailable(err) {
			return nil, ErrBlockNotAvailable
		}
		return nil, fmt.Errorf("get block %d: %w", slot, err)
	}

	info := &BlockInfo{
		Slot:         slot,
		Transactions: make([]BlockTransaction, 0, len(out.Transactions)),
	}
	if out.BlockTime != nil {
		info.BlockTime = out.BlockTime.Time()
	}
	for _, reward := range out.Rewards {
		if reward.RewardType == rpc.RewardTypeFee {
			info.Leader = reward.Pubkey
			break
		}
	}

	for _, twm := range out.Transactions {
		tx, err := twm.GetTransaction()
		if err != nil {
			c.logger.Warn("skipping undecodable transaction in block",
				"slot", slot, "error", err)
			continue
		}
		if len(tx.Signatures) == 0 {
			continue
		}
		btx := BlockTransaction{Signature: tx.Signatures[0]}
		if twm.Meta != nil && twm.Meta.Err != nil {
			btx.Err = fmt.Sprintf("%v", twm.Meta.Err)
		}
		info.Transactions = append(info.Transactions, btx)
	}

	return info, nil
}

// isSlotSkipped matches the -32007/-32009 RPC errors for slots that were
// skipped or are missing from long-term storage. Matching on the message
// keeps us independent of the client library's error wrapping.
func isSlotSkipped(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "-32007") ||
		strings.Contains(msg, "-32009") ||
		strings.Contains(msg, "skipped")
}

// isBlockNotAvailable matches the -32004 RPC error for slots that have not
// been produced (or confirmed) yet.
func isBlockNotAvailable(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "-32004") ||
		strings.Contains(msg, "not available")
}

// Ping verifies the endpoint responds before the pipeline starts.
func (c *RPCClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := c.CurrentSlot(ctx)
	return err
}
