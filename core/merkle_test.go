package core_test

import (
	"math/big"
	"testing"

	core "l2rollup/core"
)

func TestCalculateStateRootEmptyIsNil(t *testing.T) {
	s := core.NewState()
	if root := core.CalculateStateRoot(s); root != nil {
		t.Fatalf("expected nil root for empty state, got %v", root)
	}
}

func TestCalculateStateRootSingleAccount(t *testing.T) {
	s := core.NewState()
	var addr core.Address
	addr[0] = 1
	s.AddBalance(addr, big.NewInt(42))

	root := core.CalculateStateRoot(s)
	if root == nil {
		t.Fatalf("expected non-nil root for one account")
	}

	// A single-leaf tree is deterministic: recomputing must match exactly.
	root2 := core.CalculateStateRoot(s)
	if *root != *root2 {
		t.Fatalf("state root is not deterministic")
	}
}

func TestCalculateStateRootOddCountChangesWithDuplicateLastLeaf(t *testing.T) {
	s := core.NewState()
	var a, b, c core.Address
	a[0], b[0], c[0] = 1, 2, 3
	s.AddBalance(a, big.NewInt(1))
	s.AddBalance(b, big.NewInt(2))
	root3 := core.CalculateStateRoot(s)

	s.AddBalance(c, big.NewInt(3))
	root4 := core.CalculateStateRoot(s)

	if *root3 == *root4 {
		t.Fatalf("adding a third account should change the root")
	}
}

func TestCalculateWithdrawalRootEmptyIsNil(t *testing.T) {
	if root := core.CalculateWithdrawalRoot(nil); root != nil {
		t.Fatalf("expected nil root for empty withdrawal queue")
	}
}

func TestWithdrawalInclusionProofRoundTripsEvenAndOdd(t *testing.T) {
	var from, to core.Address
	from[0], to[0] = 1, 2

	for _, n := range []int{1, 2, 3, 4, 5} {
		queue := make([]core.Withdrawal, 0, n)
		s := core.NewState()
		for i := 0; i < n; i++ {
			queue = append(queue, s.QueueWithdrawal(from, to, uint64(100+i)))
		}

		for idx := 0; idx < n; idx++ {
			proof, err := core.GenerateWithdrawalProof(queue, uint64(idx), uint64(n))
			if err != nil {
				t.Fatalf("n=%d idx=%d: GenerateWithdrawalProof: %v", n, idx, err)
			}
			if !core.VerifyWithdrawalInclusion(proof.LeafHash, proof.Proof, proof.Index, proof.Root) {
				t.Fatalf("n=%d idx=%d: proof did not verify", n, idx)
			}
		}
	}
}

func TestWithdrawalInclusionProofRejectsTamperedIndex(t *testing.T) {
	var from, to core.Address
	from[0], to[0] = 1, 2
	s := core.NewState()
	queue := []core.Withdrawal{
		s.QueueWithdrawal(from, to, 10),
		s.QueueWithdrawal(from, to, 20),
		s.QueueWithdrawal(from, to, 30),
	}

	proof, err := core.GenerateWithdrawalProof(queue, 1, uint64(len(queue)))
	if err != nil {
		t.Fatalf("GenerateWithdrawalProof: %v", err)
	}
	if core.VerifyWithdrawalInclusion(proof.LeafHash, proof.Proof, 0, proof.Root) {
		t.Fatalf("proof verified against the wrong index")
	}
}
