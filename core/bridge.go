package core

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BridgeVault holds each depositor's escrowed L1 balance, the off-chain
// mirror of the on-chain program's BridgeVault account.
type BridgeVault struct {
	mu       sync.RWMutex
	balances map[Address]uint64
}

func newBridgeVault() *BridgeVault {
	return &BridgeVault{balances: make(map[Address]uint64)}
}

// GetBalance returns addr's escrowed balance, 0 if absent.
func (v *BridgeVault) GetBalance(addr Address) uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.balances[addr]
}

func (v *BridgeVault) setBalance(addr Address, amount uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balances[addr] = amount
}

// finalizedRootSet is a replay-protection set keyed by a 32-byte digest,
// shared shape for both FinalizedWithdrawalRoots and FinalizedWithdrawals.
type finalizedRootSet struct {
	mu      sync.RWMutex
	entries map[Hash]bool
}

func newFinalizedRootSet() *finalizedRootSet {
	return &finalizedRootSet{entries: make(map[Hash]bool)}
}

func (f *finalizedRootSet) get(key Hash) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.entries[key]
}

func (f *finalizedRootSet) set(key Hash, finalized bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = finalized
}

// Bridge is the off-chain equivalent of the on-chain program's deposit/
// withdrawal instructions: an escrow vault, a set of withdrawal roots
// accepted as finalized (by a proven batch), and a replay-protection set of
// individually finalized withdrawals.
type Bridge struct {
	vault           *BridgeVault
	withdrawalRoots *finalizedRootSet
	withdrawals     *finalizedRootSet
}

// NewBridge returns an empty Bridge.
func NewBridge() *Bridge {
	return &Bridge{
		vault:           newBridgeVault(),
		withdrawalRoots: newFinalizedRootSet(),
		withdrawals:     newFinalizedRootSet(),
	}
}

// VaultBalance returns addr's currently escrowed L1 balance.
func (b *Bridge) VaultBalance(addr Address) uint64 {
	return b.vault.GetBalance(addr)
}

// MarkWithdrawalRootFinalized accepts root as eligible for withdrawal
// proofs. Called once a batch's withdrawal_root has been proven
// (core/verifier.go's ProveBatch succeeding finalizes the batch whose root
// this is).
func (b *Bridge) MarkWithdrawalRootFinalized(root Hash) {
	b.withdrawalRoots.set(root, true)
}

// Deposit locks amount from sender into the vault and returns their new
// escrowed balance plus a correlation ID for the relay event.
func (b *Bridge) Deposit(sender Address, amount uint64) (newBalance uint64, transferID string) {
	current := b.vault.GetBalance(sender)
	newBalance = current + amount
	b.vault.setBalance(sender, newBalance)
	transferID = uuid.New().String()
	logrus.WithFields(logrus.Fields{
		"transfer_id": transferID,
		"sender":      sender.String(),
		"amount":      amount,
	}).Info("bridge deposit")
	return newBalance, transferID
}

// Withdraw releases amount from sender's escrowed balance to to, once the
// withdrawal's inclusion in a finalized withdrawal root has been proven and
// it has not already been claimed.
func (b *Bridge) Withdraw(sender, to Address, amount, index uint64, withdrawRoot Hash, proof [][32]byte) (transferID string, err error) {
	if !b.withdrawalRoots.get(withdrawRoot) {
		return "", NewRollupError(CodeInvalidProof, ErrRootNotFinalized)
	}

	w := Withdrawal{From: sender, To: to, Amount: amount, Index: index}
	dataHash := Hash(w.hash())
	if !VerifyWithdrawalInclusion(w.hash(), proof, index, withdrawRoot) {
		return "", NewRollupError(CodeInvalidProof, ErrInvalidProof)
	}
	if b.withdrawals.get(dataHash) {
		return "", NewRollupError(CodeInvalidTransaction, ErrWithdrawalReplay)
	}

	current := b.vault.GetBalance(sender)
	if current < amount {
		return "", NewRollupError(CodeInsufficientFunds, ErrInsufficientBalance)
	}

	b.withdrawals.set(dataHash, true)
	b.vault.setBalance(sender, current-amount)

	transferID = uuid.New().String()
	logrus.WithFields(logrus.Fields{
		"transfer_id": transferID,
		"sender":      sender.String(),
		"to":          to.String(),
		"amount":      amount,
	}).Info("bridge withdrawal")
	return transferID, nil
}
