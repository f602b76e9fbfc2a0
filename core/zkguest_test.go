package core_test

import (
	"math/big"
	"testing"

	core "l2rollup/core"
)

// buildBlockFor executes txns against state (mutating it in place, mirroring
// the sequencer's own produceBlock) and returns a fully-rooted block.
func buildBlockFor(t *testing.T, state *core.State, prevRoot core.Hash, blockNum uint64, txns []core.Transaction) core.Block {
	t.Helper()
	block, err := core.ExecuteBlock(core.Lenient, state, txns)
	if err != nil {
		t.Fatalf("ExecuteBlock: %v", err)
	}
	block.BlockNum = blockNum
	block.PrevStateRoot = prevRoot

	txnsRoot, err := core.CalculateTxnsRoot(txns)
	if err != nil {
		t.Fatalf("CalculateTxnsRoot: %v", err)
	}
	block.TxnsRoot = &txnsRoot
	block.PostStateRoot = core.CalculateStateRoot(state)
	block.WithdrawalRoot = core.CalculateWithdrawalRoot(state.WithdrawalQueue)
	return *block
}

func TestRunGuestSucceedsOnConsistentChain(t *testing.T) {
	initial := core.NewState()
	var to core.Address
	to[0] = 2
	tx, from := buildSignedTransferTx(t, to, 100)
	initial.AddBalance(from, big.NewInt(1000))

	replay := initial.Clone()
	prevRoot := *core.CalculateStateRoot(initial)
	block := buildBlockFor(t, replay, prevRoot, 1, []core.Transaction{tx})

	out, err := core.RunGuest(initial, []core.Block{block})
	if err != nil {
		t.Fatalf("RunGuest: %v", err)
	}
	if out.PostStateRoot != *block.PostStateRoot {
		t.Fatalf("guest post-state root mismatch")
	}
	if out.PIHash == (core.Hash{}) {
		t.Fatalf("expected a non-zero pi_hash")
	}
}

func TestRunGuestRejectsChainLinkageMismatch(t *testing.T) {
	initial := core.NewState()
	var to core.Address
	to[0] = 2
	tx, from := buildSignedTransferTx(t, to, 1)
	initial.AddBalance(from, big.NewInt(10))
	replay := initial.Clone()
	block := buildBlockFor(t, replay, *core.CalculateStateRoot(initial), 1, []core.Transaction{tx})
	block.PrevStateRoot[0] ^= 0xFF // break the chain linkage

	if _, err := core.RunGuest(initial, []core.Block{block}); err == nil {
		t.Fatalf("expected chain-linkage mismatch to be rejected")
	}
}

func TestRunGuestRejectsTamperedPostStateRoot(t *testing.T) {
	initial := core.NewState()
	var to core.Address
	to[0] = 2
	tx, from := buildSignedTransferTx(t, to, 50)
	initial.AddBalance(from, big.NewInt(1000))
	replay := initial.Clone()
	block := buildBlockFor(t, replay, *core.CalculateStateRoot(initial), 1, []core.Transaction{tx})
	(*block.PostStateRoot)[0] ^= 0xFF

	if _, err := core.RunGuest(initial, []core.Block{block}); err == nil {
		t.Fatalf("expected tampered post-state root to be rejected")
	}
}

func TestRunGuestRejectsTamperedWithdrawalRoot(t *testing.T) {
	initial := core.NewState()
	tx, from := buildSignedTransferTx(t, core.WithdrawalAddress, 50)
	initial.AddBalance(from, big.NewInt(1000))
	replay := initial.Clone()
	block := buildBlockFor(t, replay, *core.CalculateStateRoot(initial), 1, []core.Transaction{tx})
	tampered := *block.WithdrawalRoot
	tampered[0] ^= 0xFF
	block.WithdrawalRoot = &tampered

	if _, err := core.RunGuest(initial, []core.Block{block}); err == nil {
		t.Fatalf("expected tampered withdrawal root to be rejected")
	}
}

func TestRunGuestStrictModeFailsOnInsufficientBalance(t *testing.T) {
	initial := core.NewState()
	var to core.Address
	to[0] = 2
	// from has zero balance: the guest must hard-fail instead of silently
	// dropping the transfer the way the sequencer's Lenient mode would.
	tx, from := buildSignedTransferTx(t, to, 50)
	_ = from

	replay := initial.Clone()
	block, err := core.ExecuteBlock(core.Lenient, replay, []core.Transaction{tx})
	if err != nil {
		t.Fatalf("ExecuteBlock: %v", err)
	}
	block.BlockNum = 1
	block.PrevStateRoot = core.Hash{}
	txnsRoot, err := core.CalculateTxnsRoot([]core.Transaction{tx})
	if err != nil {
		t.Fatalf("CalculateTxnsRoot: %v", err)
	}
	block.TxnsRoot = &txnsRoot
	block.PostStateRoot = core.CalculateStateRoot(replay)
	block.WithdrawalRoot = core.CalculateWithdrawalRoot(replay.WithdrawalQueue)

	if _, err := core.RunGuest(initial, []core.Block{*block}); err == nil {
		t.Fatalf("expected Strict re-execution to fail on insufficient balance")
	}
}
