// Package report persists run results: CSV exports for ad-hoc analysis and a
// SQLite archive for comparing runs over time.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gateway-fm/quotebench/pkg/types"
)

// WriteTransactionData writes one CSV row per classified send record:
// confirmed rows carry confirmation details, timed-out rows carry an empty
// confirmation and the timeout outcome.
func WriteTransactionData(path string, confirmed []types.TransactionConfirmRecord, timedOut []types.TransactionSendRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create transaction csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{
		"signature", "outcome", "sent_at", "confirmed_at",
		"sent_slot", "confirmed_slot", "latency_ms",
		"sender", "market", "priority_fee", "error",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range confirmed {
		outcome := "confirmed"
		if r.Error != "" {
			outcome = "error"
		}
		row := []string{
			r.Signature.String(),
			outcome,
			r.SentAt.Format(time.RFC3339Nano),
			r.ConfirmedAt.Format(time.RFC3339Nano),
			strconv.FormatUint(r.SentSlot, 10),
			strconv.FormatUint(r.ConfirmedSlot, 10),
			strconv.FormatFloat(float64(r.Latency.Microseconds())/1000.0, 'f', 3, 64),
			r.Sender.String(),
			r.Market.String(),
			strconv.FormatUint(r.PriorityFee, 10),
			r.Error,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	for _, r := range timedOut {
		row := []string{
			r.Signature.String(),
			"timeout",
			r.SentAt.Format(time.RFC3339Nano),
			"",
			strconv.FormatUint(r.SentSlot, 10),
			"",
			"",
			r.Sender.String(),
			r.Market.String(),
			strconv.FormatUint(r.PriorityFee, 10),
			"",
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// WriteBlockData writes one CSV row per scanned block.
func WriteBlockData(path string, blocks []types.BlockData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create block csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"slot", "block_time", "tx_count", "our_tx_count", "leader"}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, b := range blocks {
		row := []string{
			strconv.FormatUint(b.Slot, 10),
			b.BlockTime.Format(time.RFC3339),
			strconv.Itoa(b.TxCount),
			strconv.Itoa(b.OurTxCount),
			b.Leader.String(),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
