package quote

import (
	"math/rand/v2"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/gateway-fm/quotebench/pkg/types"
)

func testMarket() *types.MarketSnapshot {
	return &types.MarketSnapshot{
		Name:           "TEST-PERP",
		Program:        solana.NewWallet().PublicKey(),
		Group:          solana.NewWallet().PublicKey(),
		Market:         solana.NewWallet().PublicKey(),
		Bids:           solana.NewWallet().PublicKey(),
		Asks:           solana.NewWallet().PublicKey(),
		EventQueue:     solana.NewWallet().PublicKey(),
		PriceQuoteLots: 10_000,
		OrderBaseLots:  10,
	}
}

func testRNG() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestBuild_InstructionOrderWithFee(t *testing.T) {
	signer := solana.NewWallet()
	m := testMarket()

	tx, err := Build(testRNG(), m, solana.NewWallet().PublicKey(), signer.PublicKey(), 500, solana.Hash{1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Priority fee, cancel-all, bid, ask.
	if got := len(tx.Message.Instructions); got != 4 {
		t.Fatalf("instruction count = %d, want 4", got)
	}

	// First instruction targets the compute budget program.
	progID, err := tx.Message.Program(tx.Message.Instructions[0].ProgramIDIndex)
	if err != nil {
		t.Fatalf("resolving program: %v", err)
	}
	if !progID.Equals(solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")) {
		t.Errorf("first instruction program = %s, want compute budget", progID)
	}

	// The remaining three target the market program.
	for i := 1; i < 4; i++ {
		progID, err := tx.Message.Program(tx.Message.Instructions[i].ProgramIDIndex)
		if err != nil {
			t.Fatalf("resolving program %d: %v", i, err)
		}
		if !progID.Equals(m.Program) {
			t.Errorf("instruction %d program = %s, want %s", i, progID, m.Program)
		}
	}
}

func TestBuild_NoFeeOmitsPriorityInstruction(t *testing.T) {
	signer := solana.NewWallet()
	m := testMarket()

	tx, err := Build(testRNG(), m, solana.NewWallet().PublicKey(), signer.PublicKey(), 0, solana.Hash{1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := len(tx.Message.Instructions); got != 3 {
		t.Fatalf("instruction count = %d, want 3 (cancel, bid, ask)", got)
	}
	progID, err := tx.Message.Program(tx.Message.Instructions[0].ProgramIDIndex)
	if err != nil {
		t.Fatalf("resolving program: %v", err)
	}
	if !progID.Equals(m.Program) {
		t.Errorf("first instruction program = %s, want market program", progID)
	}
}

func TestBuild_SameQuoteTwiceYieldsDifferentSignatures(t *testing.T) {
	signer := solana.NewWallet()
	m := testMarket()
	trader := solana.NewWallet().PublicKey()
	rng := testRNG()
	hash := solana.Hash{7}

	sign := func(tx *solana.Transaction) solana.Signature {
		t.Helper()
		sigs, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
			if key.Equals(signer.PublicKey()) {
				return &signer.PrivateKey
			}
			return nil
		})
		if err != nil {
			t.Fatalf("signing: %v", err)
		}
		return sigs[0]
	}

	// Same logical quote, same blockhash: the per-call random offset and
	// spread still make the signed payloads distinct.
	txA, err := Build(rng, m, trader, signer.PublicKey(), 0, hash)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	txB, err := Build(rng, m, trader, signer.PublicKey(), 0, hash)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if sigA, sigB := sign(txA), sign(txB); sigA == sigB {
		t.Errorf("two builds produced identical signatures: %s", sigA)
	}
}

func TestBuild_PayerIsSigner(t *testing.T) {
	signer := solana.NewWallet()
	tx, err := Build(testRNG(), testMarket(), solana.NewWallet().PublicKey(), signer.PublicKey(), 0, solana.Hash{1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := tx.Message.AccountKeys[0]; !got.Equals(signer.PublicKey()) {
		t.Errorf("fee payer = %s, want %s", got, signer.PublicKey())
	}
	if tx.Message.Header.NumRequiredSignatures != 1 {
		t.Errorf("required signatures = %d, want 1", tx.Message.Header.NumRequiredSignatures)
	}
}
