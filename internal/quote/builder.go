// Package quote builds the unsigned market-quote transactions the dispatch
// engines send: cancel-all plus a bid/ask pair straddling the market's
// reference price, optionally preceded by a priority-fee instruction.
package quote

import (
	"fmt"
	"math/rand/v2"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/compute-budget"

	"github.com/gateway-fm/quotebench/pkg/types"
)

// Client order IDs marking the two legs of one quote bundle.
const (
	clientIDBid uint64 = 1
	clientIDAsk uint64 = 2
)

// Build produces one unsigned quote transaction for the market: optional
// compute-unit price instruction when priorityFee > 0, cancel-all, then a
// bid at price+offset-spread and an ask at price+offset+spread. The offset
// is drawn from [-128,127] and the spread from [0,255] on every call, so
// two builds of the same logical quote differ. Build has no side effects
// and does not sign.
func Build(rng *rand.Rand, m *types.MarketSnapshot, trader, owner solana.PublicKey, priorityFee uint64, blockhash solana.Hash) (*solana.Transaction, error) {
	offset := int64(rng.IntN(256) - 128)
	spread := int64(rng.IntN(256))

	instructions := make([]solana.Instruction, 0, 4)
	if priorityFee > 0 {
		instructions = append(instructions,
			computebudget.NewSetComputeUnitPriceInstruction(priorityFee).Build())
	}

	cancel, err := cancelAllOrdersInstruction(m, trader, owner)
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, cancel)

	bid, err := placeOrderInstruction(m, trader, owner, SideBid,
		m.PriceQuoteLots+offset-spread, m.OrderBaseLots, clientIDBid)
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, bid)

	ask, err := placeOrderInstruction(m, trader, owner, SideAsk,
		m.PriceQuoteLots+offset+spread, m.OrderBaseLots, clientIDAsk)
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, ask)

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(owner))
	if err != nil {
		return nil, fmt.Errorf("assembling quote transaction for %s: %w", m.Market, err)
	}
	return tx, nil
}
