// Package types contains the record types shared between the dispatch and
// confirmation sides of the bench harness. These types cross package
// boundaries (dispatch -> tracker -> report) and must remain stable.
package types

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// NetworkState is the shared blockhash/slot pair signers reference at send
// time. Readers always receive a value copy; the guarded container lives in
// internal/netstate.
type NetworkState struct {
	Blockhash solana.Hash
	Slot      uint64
}

// MarketSnapshot identifies one tradable market. It is built once at startup
// and never mutated afterwards; every dispatch engine shares the same
// snapshot values.
type MarketSnapshot struct {
	Name       string
	Program    solana.PublicKey
	Group      solana.PublicKey
	Market     solana.PublicKey
	Bids       solana.PublicKey
	Asks       solana.PublicKey
	EventQueue solana.PublicKey

	// Reference price and order size in the market's lot units, captured
	// at startup. Quotes are placed around PriceQuoteLots.
	PriceQuoteLots int64
	OrderBaseLots  int64
}

// AccountIdentity is one simulated trader: a signing key plus the on-chain
// trading accounts it owns. An identity is owned exclusively by its dispatch
// engine goroutine.
type AccountIdentity struct {
	Signer          solana.PrivateKey
	TradingAccounts []solana.PublicKey
}

// TransactionSendRecord is emitted by a dispatch engine immediately after a
// transaction leaves the process. It is immutable; ownership transfers to
// the confirmation tracker through the record channel.
type TransactionSendRecord struct {
	Signature   solana.Signature `json:"signature"`
	SentAt      time.Time        `json:"sentAt"`
	SentSlot    uint64           `json:"sentSlot"`
	Sender      solana.PublicKey `json:"sender"`
	Market      solana.PublicKey `json:"market"`
	PriorityFee uint64           `json:"priorityFee"`
}

// TransactionConfirmRecord is created by the confirmation tracker once a
// sent signature is found in a scanned block. Error carries the on-chain
// execution error verbatim; empty means the transaction succeeded.
type TransactionConfirmRecord struct {
	Signature     solana.Signature `json:"signature"`
	SentAt        time.Time        `json:"sentAt"`
	ConfirmedAt   time.Time        `json:"confirmedAt"`
	SentSlot      uint64           `json:"sentSlot"`
	ConfirmedSlot uint64           `json:"confirmedSlot"`
	Latency       time.Duration    `json:"latencyNs"`
	Sender        solana.PublicKey `json:"sender"`
	Market        solana.PublicKey `json:"market"`
	PriorityFee   uint64           `json:"priorityFee"`
	Error         string           `json:"error,omitempty"`
}

// SlotDelta returns how many slots elapsed between send and confirmation.
func (r TransactionConfirmRecord) SlotDelta() uint64 {
	if r.ConfirmedSlot < r.SentSlot {
		return 0
	}
	return r.ConfirmedSlot - r.SentSlot
}

// BlockData summarizes one scanned block. The tracker emits exactly one per
// block, in strictly increasing slot order.
type BlockData struct {
	Slot       uint64           `json:"slot"`
	TxCount    int              `json:"txCount"`
	OurTxCount int              `json:"ourTxCount"`
	Leader     solana.PublicKey `json:"leader"`
	BlockTime  time.Time        `json:"blockTime"`
}

// LatencyStats holds confirmation latency statistics for the run summary.
type LatencyStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"` // ms
	Max   float64 `json:"max"` // ms
	Avg   float64 `json:"avg"` // ms
	P50   float64 `json:"p50"` // ms
	P95   float64 `json:"p95"` // ms
	P99   float64 `json:"p99"` // ms
}
