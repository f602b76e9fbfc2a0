package core_test

import (
	"testing"

	core "l2rollup/core"
)

func TestBridgeDepositCreditsVault(t *testing.T) {
	b := core.NewBridge()
	var sender core.Address
	sender[0] = 1

	bal1, id1 := b.Deposit(sender, 100)
	if bal1 != 100 {
		t.Fatalf("balance after first deposit = %d, want 100", bal1)
	}
	bal2, id2 := b.Deposit(sender, 50)
	if bal2 != 150 {
		t.Fatalf("balance after second deposit = %d, want 150", bal2)
	}
	if id1 == "" || id2 == "" || id1 == id2 {
		t.Fatalf("expected distinct non-empty transfer IDs, got %q and %q", id1, id2)
	}
}

func TestBridgeWithdrawSucceedsWithValidProof(t *testing.T) {
	b := core.NewBridge()
	var sender, to core.Address
	sender[0], to[0] = 1, 2
	b.Deposit(sender, 1000)

	state := core.NewState()
	w := state.QueueWithdrawal(sender, to, 300)
	root := core.CalculateWithdrawalRoot(state.WithdrawalQueue)
	b.MarkWithdrawalRootFinalized(*root)

	proof, err := core.GenerateWithdrawalProof(state.WithdrawalQueue, w.Index, uint64(len(state.WithdrawalQueue)))
	if err != nil {
		t.Fatalf("GenerateWithdrawalProof: %v", err)
	}

	id, err := b.Withdraw(sender, to, w.Amount, w.Index, proof.Root, proof.Proof)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if id == "" {
		t.Fatalf("expected a non-empty transfer ID")
	}
	if got := b.VaultBalance(sender); got != 700 {
		t.Fatalf("vault balance after withdrawal = %d, want 700", got)
	}
}

func TestBridgeWithdrawRejectsUnfinalizedRoot(t *testing.T) {
	b := core.NewBridge()
	var sender, to core.Address
	sender[0], to[0] = 1, 2
	b.Deposit(sender, 1000)

	state := core.NewState()
	w := state.QueueWithdrawal(sender, to, 300)
	proof, err := core.GenerateWithdrawalProof(state.WithdrawalQueue, w.Index, uint64(len(state.WithdrawalQueue)))
	if err != nil {
		t.Fatalf("GenerateWithdrawalProof: %v", err)
	}

	// Root was never marked finalized.
	if _, err := b.Withdraw(sender, to, w.Amount, w.Index, proof.Root, proof.Proof); err == nil {
		t.Fatalf("expected withdrawal against an unfinalized root to be rejected")
	}
}

func TestBridgeWithdrawRejectsReplay(t *testing.T) {
	b := core.NewBridge()
	var sender, to core.Address
	sender[0], to[0] = 1, 2
	b.Deposit(sender, 1000)

	state := core.NewState()
	w := state.QueueWithdrawal(sender, to, 300)
	root := core.CalculateWithdrawalRoot(state.WithdrawalQueue)
	b.MarkWithdrawalRootFinalized(*root)
	proof, err := core.GenerateWithdrawalProof(state.WithdrawalQueue, w.Index, uint64(len(state.WithdrawalQueue)))
	if err != nil {
		t.Fatalf("GenerateWithdrawalProof: %v", err)
	}

	if _, err := b.Withdraw(sender, to, w.Amount, w.Index, proof.Root, proof.Proof); err != nil {
		t.Fatalf("first Withdraw: %v", err)
	}
	if _, err := b.Withdraw(sender, to, w.Amount, w.Index, proof.Root, proof.Proof); err == nil {
		t.Fatalf("expected replayed withdrawal to be rejected")
	}
}

func TestBridgeWithdrawRejectsInsufficientBalance(t *testing.T) {
	b := core.NewBridge()
	var sender, to core.Address
	sender[0], to[0] = 1, 2
	b.Deposit(sender, 10) // less than the withdrawal amount below

	state := core.NewState()
	w := state.QueueWithdrawal(sender, to, 300)
	root := core.CalculateWithdrawalRoot(state.WithdrawalQueue)
	b.MarkWithdrawalRootFinalized(*root)
	proof, err := core.GenerateWithdrawalProof(state.WithdrawalQueue, w.Index, uint64(len(state.WithdrawalQueue)))
	if err != nil {
		t.Fatalf("GenerateWithdrawalProof: %v", err)
	}

	if _, err := b.Withdraw(sender, to, w.Amount, w.Index, proof.Root, proof.Proof); err == nil {
		t.Fatalf("expected insufficient vault balance to be rejected")
	}
}
