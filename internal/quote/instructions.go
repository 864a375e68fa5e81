package quote

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/gateway-fm/quotebench/pkg/types"
)

// Market program instruction discriminators (little-endian u32 prefix).
const (
	instrCancelAllOrders uint32 = 39
	instrPlaceOrder      uint32 = 64
)

// Side of an order in the market program's encoding.
type Side uint8

const (
	SideBid Side = 0
	SideAsk Side = 1
)

// cancelAllLimit bounds how many resting orders one cancel instruction may
// remove. Quoting accounts never hold more than a handful.
const cancelAllLimit uint8 = 10

// orderTypeLimit is the market program's plain limit order type.
const orderTypeLimit uint8 = 0

// cancelAllOrdersInstruction removes every resting order the trading
// account holds on the market.
func cancelAllOrdersInstruction(m *types.MarketSnapshot, trader, owner solana.PublicKey) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint32(instrCancelAllOrders, bin.LE); err != nil {
		return nil, fmt.Errorf("encoding cancel-all: %w", err)
	}
	if err := enc.WriteUint8(cancelAllLimit); err != nil {
		return nil, fmt.Errorf("encoding cancel-all limit: %w", err)
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(m.Group),
		solana.Meta(trader).WRITE(),
		solana.Meta(owner).SIGNER(),
		solana.Meta(m.Market).WRITE(),
		solana.Meta(m.Bids).WRITE(),
		solana.Meta(m.Asks).WRITE(),
	}
	return solana.NewInstruction(m.Program, accounts, buf.Bytes()), nil
}

// placeOrderInstruction places one limit order at the given price in quote
// lots. clientID distinguishes the bid from the ask inside one bundle.
func placeOrderInstruction(m *types.MarketSnapshot, trader, owner solana.PublicKey, side Side, priceLots, sizeLots int64, clientID uint64) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint32(instrPlaceOrder, bin.LE); err != nil {
		return nil, fmt.Errorf("encoding place-order: %w", err)
	}
	if err := enc.WriteInt64(priceLots, bin.LE); err != nil {
		return nil, fmt.Errorf("encoding price: %w", err)
	}
	if err := enc.WriteInt64(sizeLots, bin.LE); err != nil {
		return nil, fmt.Errorf("encoding size: %w", err)
	}
	if err := enc.WriteUint64(clientID, bin.LE); err != nil {
		return nil, fmt.Errorf("encoding client id: %w", err)
	}
	if err := enc.WriteUint8(uint8(side)); err != nil {
		return nil, fmt.Errorf("encoding side: %w", err)
	}
	if err := enc.WriteUint8(orderTypeLimit); err != nil {
		return nil, fmt.Errorf("encoding order type: %w", err)
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(m.Group),
		solana.Meta(trader).WRITE(),
		solana.Meta(owner).SIGNER(),
		solana.Meta(m.Market).WRITE(),
		solana.Meta(m.Bids).WRITE(),
		solana.Meta(m.Asks).WRITE(),
		solana.Meta(m.EventQueue).WRITE(),
	}
	return solana.NewInstruction(m.Program, accounts, buf.Bytes()), nil
}
