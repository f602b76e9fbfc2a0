package core

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// MaxMempoolSize is the bounded FIFO capacity for pending transactions.
const MaxMempoolSize = 1024

// EstimatedFee is the stubbed constant fee charged per admitted transaction;
// §4.3 specifies fee accounting itself is out of scope, only the constant
// matters for callers that surface it.
const EstimatedFee = 5000

// Mempool is a bounded FIFO of admitted, validated transactions awaiting
// inclusion in the next block.
type Mempool struct {
	mu      sync.RWMutex
	pending []Transaction
}

// NewMempool returns an empty mempool.
func NewMempool() *Mempool {
	return &Mempool{}
}

// PendingSize returns the number of transactions currently queued.
func (m *Mempool) PendingSize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pending)
}

// Add validates tx and appends it to the queue. requireSignatures should be
// true for every externally reachable admission path (the public RPC path
// per §4.3); trusted replay paths may set it false.
func (m *Mempool) Add(tx Transaction, requireSignatures bool) error {
	if err := validateTransaction(tx, requireSignatures); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) >= MaxMempoolSize {
		return NewRollupError(CodeMempoolFull, ErrMempoolFull)
	}
	m.pending = append(m.pending, tx)
	logrus.WithField("sig", tx.SignatureID()).Debug("admitted transaction to mempool")
	return nil
}

// Drain removes and returns every pending transaction, in admission order.
// Called once per block tick by the block producer (C5).
func (m *Mempool) Drain() []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.pending
	m.pending = nil
	return out
}

// validateTransaction runs the ordered checks of §4.3: signatures (if
// required), structural format, then the stubbed fee/balance checks.
func validateTransaction(tx Transaction, requireSignatures bool) error {
	if requireSignatures {
		if err := tx.VerifySignatures(); err != nil {
			return err
		}
	}
	if err := tx.ValidateFormat(); err != nil {
		return err
	}
	// Fee accounting and balance checks are stubbed per §4.3: EstimatedFee
	// is a fixed constant and no balance check is performed at admission
	// time (the executor enforces balances at execution time instead).
	return nil
}
