// Package chain wraps the Solana RPC surface the harness consumes: the
// blockhash/slot query, transaction submission, and block-by-slot fetch.
package chain

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
)

// ErrBlockNotAvailable is returned by FetchBlock when the requested slot has
// not been produced yet. Callers should wait briefly and retry the same slot.
var ErrBlockNotAvailable = errors.New("block not available")

// ErrSlotSkipped is returned by FetchBlock when the slot was skipped and
// will never contain a block. Callers should advance to the next slot.
var ErrSlotSkipped = errors.New("slot skipped")

// BlockTransaction is one transaction inside a fetched block. Err carries
// the on-chain execution error verbatim; empty means success.
type BlockTransaction struct {
	Signature solana.Signature
	Err       string
}

// BlockInfo is the per-slot view the confirmation tracker scans.
type BlockInfo struct {
	Slot         uint64
	Transactions []BlockTransaction
	Leader       solana.PublicKey
	BlockTime    time.Time
}

// Client is the network boundary consumed by the core. Implementations must
// be safe for concurrent use; the real implementation sits on the Solana
// JSON-RPC client, tests substitute fakes.
type Client interface {
	// LatestBlockhash returns the most recent reference blockhash and the
	// slot it was observed at.
	LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error)

	// CurrentSlot returns the network's current slot.
	CurrentSlot(ctx context.Context) (uint64, error)

	// SendTransaction submits one signed transaction without waiting for
	// confirmation.
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)

	// SendTransactionBatch submits a batch of signed transactions. The
	// batch fails as a whole: the first submission error aborts it.
	SendTransactionBatch(ctx context.Context, txs []*solana.Transaction) error

	// FetchBlock returns the block produced at the given slot, or
	// ErrBlockNotAvailable / ErrSlotSkipped.
	FetchBlock(ctx context.Context, slot uint64) (*BlockInfo, error)
}
