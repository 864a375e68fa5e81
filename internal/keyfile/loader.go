// Package keyfile loads the JSON input files a bench run starts from: the
// trader identities (signing keys plus their trading accounts) and the market
// group description.
package keyfile

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"

	"github.com/gateway-fm/quotebench/pkg/types"
)

const secretKeyLen = 64

type accountEntry struct {
	// 64-byte ed25519 keypair as a JSON array of numbers, the format
	// solana-keygen writes.
	SecretKey       []int    `json:"secret_key"`
	TradingAccounts []string `json:"trading_accounts"`
}

type marketEntry struct {
	Name           string `json:"name"`
	Address        string `json:"address"`
	Bids           string `json:"bids"`
	Asks           string `json:"asks"`
	EventQueue     string `json:"event_queue"`
	PriceQuoteLots int64  `json:"price_quote_lots"`
	OrderBaseLots  int64  `json:"order_base_lots"`
}

type groupEntry struct {
	Name           string        `json:"name"`
	Address        string        `json:"address"`
	ProgramAddress string        `json:"program_address"`
	Markets        []marketEntry `json:"markets"`
}

type marketsFile struct {
	Groups []groupEntry `json:"groups"`
}

// LoadAccounts reads trader identities from a JSON file. Every entry must
// carry a full 64-byte secret key and at least one trading account.
func LoadAccounts(path string) ([]types.AccountIdentity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}

	var entries []accountEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("accounts file %s contains no identities", path)
	}

	identities := make([]types.AccountIdentity, 0, len(entries))
	for i, entry := range entries {
		if len(entry.SecretKey) != secretKeyLen {
			return nil, fmt.Errorf("account %d: secret key has %d bytes, want %d",
				i, len(entry.SecretKey), secretKeyLen)
		}
		key := make(solana.PrivateKey, secretKeyLen)
		for j, b := range entry.SecretKey {
			if b < 0 || b > 255 {
				return nil, fmt.Errorf("account %d: secret key byte %d out of range: %d", i, j, b)
			}
			key[j] = byte(b)
		}

		if len(entry.TradingAccounts) == 0 {
			return nil, fmt.Errorf("account %d: no trading accounts", i)
		}
		trading := make([]solana.PublicKey, 0, len(entry.TradingAccounts))
		for _, addr := range entry.TradingAccounts {
			pk, err := solana.PublicKeyFromBase58(addr)
			if err != nil {
				return nil, fmt.Errorf("account %d: bad trading account %q: %w", i, addr, err)
			}
			trading = append(trading, pk)
		}

		identities = append(identities, types.AccountIdentity{
			Signer:          key,
			TradingAccounts: trading,
		})
	}

	return identities, nil
}

// LoadMarkets reads the named group from a markets JSON file and returns its
// market snapshots.
func LoadMarkets(path, group string) ([]*types.MarketSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read markets file: %w", err)
	}

	var file marketsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse markets file %s: %w", path, err)
	}

	var selected *groupEntry
	for i := range file.Groups {
		if file.Groups[i].Name == group {
			selected = &file.Groups[i]
			break
		}
	}
	if selected == nil {
		return nil, fmt.Errorf("group %q not found in %s", group, path)
	}
	if len(selected.Markets) == 0 {
		return nil, fmt.Errorf("group %q has no markets", group)
	}

	groupKey, err := solana.PublicKeyFromBase58(selected.Address)
	if err != nil {
		return nil, fmt.Errorf("group %q: bad address: %w", group, err)
	}
	programKey, err := solana.PublicKeyFromBase58(selected.ProgramAddress)
	if err != nil {
		return nil, fmt.Errorf("group %q: bad program address: %w", group, err)
	}

	snapshots := make([]*types.MarketSnapshot, 0, len(selected.Markets))
	for _, m := range selected.Markets {
		snap := &types.MarketSnapshot{
			Name:           m.Name,
			Program:        programKey,
			Group:          groupKey,
			PriceQuoteLots: m.PriceQuoteLots,
			OrderBaseLots:  m.OrderBaseLots,
		}
		if snap.Market, err = solana.PublicKeyFromBase58(m.Address); err != nil {
			return nil, fmt.Errorf("market %q: bad address: %w", m.Name, err)
		}
		if snap.Bids, err = solana.PublicKeyFromBase58(m.Bids); err != nil {
			return nil, fmt.Errorf("market %q: bad bids address: %w", m.Name, err)
		}
		if snap.Asks, err = solana.PublicKeyFromBase58(m.Asks); err != nil {
			return nil, fmt.Errorf("market %q: bad asks address: %w", m.Name, err)
		}
		if snap.EventQueue, err = solana.PublicKeyFromBase58(m.EventQueue); err != nil {
			return nil, fmt.Errorf("market %q: bad event queue address: %w", m.Name, err)
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, nil
}
