package core

import "encoding/json"

// GuestOutput is the zkVM guest's committed public output: the roots and
// hashes a caller can check against a batch without re-executing it.
type GuestOutput struct {
	PrevStateRoot  Hash
	PostStateRoot  Hash
	WithdrawalRoot Hash
	DaHash         Hash
	PIHash         Hash
}

// hashOrZero dereferences an optional root, returning the zero hash for nil
// (an empty-state root, per §4.1).
func hashOrZero(h *Hash) Hash {
	if h == nil {
		return Hash{}
	}
	return *h
}

// serializeBlock canonically serializes block the same way the batcher
// does when assembling BatchInfo.Blocks, so hashNestedVector produces the
// same batch_hash the settlement layer recorded for this batch.
func serializeBlock(block Block) ([]byte, error) {
	return json.Marshal(block)
}

// RunGuest deterministically re-executes blocks against a copy of
// initialState in Strict mode and checks every chain-linkage and root
// invariant the on-chain verifier ultimately relies on. It is the zkVM
// guest's logic, run natively here rather than inside an actual proving
// system (proof generation itself is out of scope).
func RunGuest(initialState *State, blocks []Block) (*GuestOutput, error) {
	if len(blocks) == 0 {
		return nil, NewRollupError(CodeInvalidTransaction, ErrEmptyBatch)
	}

	state := initialState.Clone()
	prevStateRoot := blocks[0].PrevStateRoot
	if prevStateRoot != hashOrZero(CalculateStateRoot(state)) {
		return nil, NewRollupError(CodeStateMismatch, ErrStateRootMismatch)
	}
	currentStateRoot := prevStateRoot

	serializedBlocks := make([][]byte, 0, len(blocks))
	for _, block := range blocks {
		if currentStateRoot != block.PrevStateRoot {
			return nil, NewRollupError(CodeStateMismatch, ErrStateRootMismatch)
		}

		txnsRoot, err := CalculateTxnsRoot(block.Txns)
		if err != nil {
			return nil, err
		}
		if txnsRoot != hashOrZero(block.TxnsRoot) {
			return nil, NewRollupError(CodeStateMismatch, ErrTxnsRootMismatch)
		}

		serialized, err := serializeBlock(block)
		if err != nil {
			return nil, err
		}
		serializedBlocks = append(serializedBlocks, serialized)

		ops := make([]TransferOp, 0, len(block.Txns))
		for i := range block.Txns {
			op, err := ParseTransferOp(&block.Txns[i])
			if err != nil {
				return nil, err
			}
			if op != nil {
				ops = append(ops, *op)
			}
		}
		if err := ApplyTransfers(Strict, state, ops); err != nil {
			return nil, err
		}

		recomputedRoot := hashOrZero(CalculateStateRoot(state))
		if recomputedRoot != hashOrZero(block.PostStateRoot) {
			return nil, NewRollupError(CodeStateMismatch, ErrStateRootMismatch)
		}
		currentStateRoot = recomputedRoot
	}

	postStateRoot := currentStateRoot
	withdrawalRoot := hashOrZero(CalculateWithdrawalRoot(state.WithdrawalQueue))
	lastBlockWithdrawalRoot := hashOrZero(blocks[len(blocks)-1].WithdrawalRoot)
	if withdrawalRoot != lastBlockWithdrawalRoot {
		return nil, NewRollupError(CodeStateMismatch, ErrStateRootMismatch)
	}

	daHash := hashNestedVector(serializedBlocks)
	piHash := ComputePIHash(prevStateRoot, postStateRoot, withdrawalRoot, daHash)

	return &GuestOutput{
		PrevStateRoot:  prevStateRoot,
		PostStateRoot:  postStateRoot,
		WithdrawalRoot: withdrawalRoot,
		DaHash:         daHash,
		PIHash:         piHash,
	}, nil
}
