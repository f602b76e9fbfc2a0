package core

import (
	"math/big"

	"github.com/sirupsen/logrus"
)

// ExecMode selects how the canonical transfer-application function handles
// an insufficient-balance condition. The sequencer's block producer and the
// zkVM guest's replay share this single function rather than each keeping
// their own copy of the transfer semantics.
type ExecMode uint8

const (
	// Lenient drops the offending transfer and continues with the next one.
	// Used by the sequencer (C5) when draining the mempool into a block.
	Lenient ExecMode = iota
	// Strict fails the whole execution on the first insufficient-balance
	// transfer. Used by the zkVM guest (C8) during re-execution.
	Strict
)

// ApplyTransfers applies ops to state in order, crediting/debiting balances
// and enqueueing a withdrawal whenever an op's destination is the reserved
// withdrawal sink. In Lenient mode an insufficient-balance op is skipped and
// logged; in Strict mode it returns ErrInsufficientBalance immediately and
// leaves state exactly as it was up to (not including) the failing op.
func ApplyTransfers(mode ExecMode, state *State, ops []TransferOp) error {
	for _, op := range ops {
		amount := new(big.Int).SetUint64(op.Amount)
		if !state.SubBalance(op.From, amount) {
			if mode == Strict {
				return ErrInsufficientBalance
			}
			logrus.WithFields(logrus.Fields{
				"from":   op.From.String(),
				"amount": op.Amount,
			}).Warn("dropping transfer with insufficient balance")
			continue
		}
		state.AddBalance(op.To, amount)
		if op.To == WithdrawalAddress {
			// Withdrawals are same-owner exits regardless of the declared
			// destination: the queued record's "to" is the sender itself.
			state.QueueWithdrawal(op.From, op.From, op.Amount)
		}
	}
	return nil
}

// ExecuteBlock drains ops parsed from a list of transactions and applies
// them to state, returning an unrooted Block carrying the transactions that
// were included (all of them — even ops dropped in Lenient mode still
// belong to the block; only their balance effect is skipped).
func ExecuteBlock(mode ExecMode, state *State, txns []Transaction) (*Block, error) {
	ops := make([]TransferOp, 0, len(txns))
	for _, tx := range txns {
		op, err := ParseTransferOp(&tx)
		if err != nil {
			return nil, err
		}
		if op != nil {
			ops = append(ops, *op)
		}
	}
	if err := ApplyTransfers(mode, state, ops); err != nil {
		return nil, err
	}
	return NewBlock(txns), nil
}
