package core_test

import (
	"crypto/sha256"
	"path/filepath"
	"testing"

	core "l2rollup/core"
)

// batchHashOf reproduces the settlement layer's batch_hash computation
// (SHA-256 over the concatenation of the batch's serialized blocks) so
// tests can predict it without access to the unexported implementation.
func batchHashOf(blocks [][]byte) core.Hash {
	h := sha256.New()
	for _, b := range blocks {
		h.Write(b)
	}
	var out core.Hash
	copy(out[:], h.Sum(nil))
	return out
}

func TestProveBatchFinalizesAndUnlocksWithdrawalRootOnValidProof(t *testing.T) {
	store, err := core.OpenStore(filepath.Join(t.TempDir(), "settlement.wal"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()
	settlement := core.NewSettlement(store)

	var sender, to core.Address
	sender[0], to[0] = 9, 10
	state := core.NewState()
	w := state.QueueWithdrawal(sender, to, 100)
	withdrawalRoot := core.CalculateWithdrawalRoot(state.WithdrawalQueue)

	var prev, post core.Hash
	prev[0], post[0] = 1, 2
	blocks := [][]byte{[]byte("block-1"), []byte("block-2")}
	if err := settlement.CommitBatch(core.BatchInfo{
		BatchIndex:     1,
		Blocks:         blocks,
		PrevStateRoot:  prev,
		PostStateRoot:  post,
		WithdrawalRoot: *withdrawalRoot,
	}); err != nil {
		t.Fatalf("CommitBatch: %v", err)
	}

	batchHash := batchHashOf(blocks)
	piHash := core.ComputePIHash(prev, post, *withdrawalRoot, batchHash)

	bridge := core.NewBridge()
	verifier := core.NewVerifier(settlement, bridge)
	proof := core.Proof{VKeyHash: core.Layer2VKeyHash, PublicValues: piHash[:]}
	if err := verifier.ProveBatch(1, proof); err != nil {
		t.Fatalf("ProveBatch: %v", err)
	}
	if got := settlement.LastFinalizedBatchIndex(); got != 1 {
		t.Fatalf("LastFinalizedBatchIndex = %d, want 1", got)
	}

	// Withdraw against the now-finalized root: MarkWithdrawalRootFinalized
	// should have been called as ProveBatch's side effect.
	bridge.Deposit(sender, 1000)
	withdrawProof, err := core.GenerateWithdrawalProof(state.WithdrawalQueue, w.Index, uint64(len(state.WithdrawalQueue)))
	if err != nil {
		t.Fatalf("GenerateWithdrawalProof: %v", err)
	}
	if _, err := bridge.Withdraw(sender, to, w.Amount, w.Index, *withdrawalRoot, withdrawProof.Proof); err != nil {
		t.Fatalf("expected the bridge exit to be unlocked by ProveBatch, got: %v", err)
	}
}

func TestProveBatchRejectsWrongVKeyHash(t *testing.T) {
	store, err := core.OpenStore(filepath.Join(t.TempDir(), "settlement.wal"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()
	settlement := core.NewSettlement(store)
	if err := settlement.CommitBatch(core.BatchInfo{BatchIndex: 1}); err != nil {
		t.Fatalf("CommitBatch: %v", err)
	}

	verifier := core.NewVerifier(settlement, core.NewBridge())
	proof := core.Proof{VKeyHash: "0xdeadbeef", PublicValues: []byte{1, 2, 3}}
	if err := verifier.ProveBatch(1, proof); err == nil {
		t.Fatalf("expected wrong vkey hash to be rejected")
	}
	if got := settlement.LastFinalizedBatchIndex(); got != 0 {
		t.Fatalf("batch should not finalize on a rejected proof, got %d", got)
	}
}

func TestProveBatchRejectsWrongPublicValues(t *testing.T) {
	store, err := core.OpenStore(filepath.Join(t.TempDir(), "settlement.wal"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()
	settlement := core.NewSettlement(store)
	var prev, post, withdrawal core.Hash
	prev[0], post[0], withdrawal[0] = 1, 2, 3
	if err := settlement.CommitBatch(core.BatchInfo{
		BatchIndex:     1,
		PrevStateRoot:  prev,
		PostStateRoot:  post,
		WithdrawalRoot: withdrawal,
	}); err != nil {
		t.Fatalf("CommitBatch: %v", err)
	}

	verifier := core.NewVerifier(settlement, core.NewBridge())
	wrongValues := make([]byte, 32)
	proof := core.Proof{VKeyHash: core.Layer2VKeyHash, PublicValues: wrongValues}
	if err := verifier.ProveBatch(1, proof); err == nil {
		t.Fatalf("expected mismatched public values to be rejected")
	}
}

func TestProveBatchRejectsWhenBatchHashDoesNotMatchSubmittedBlocks(t *testing.T) {
	store, err := core.OpenStore(filepath.Join(t.TempDir(), "settlement.wal"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()
	settlement := core.NewSettlement(store)
	var prev, post, withdrawal core.Hash
	prev[0], post[0], withdrawal[0] = 1, 2, 3
	if err := settlement.CommitBatch(core.BatchInfo{
		BatchIndex:     1,
		Blocks:         [][]byte{[]byte("real-block")},
		PrevStateRoot:  prev,
		PostStateRoot:  post,
		WithdrawalRoot: withdrawal,
	}); err != nil {
		t.Fatalf("CommitBatch: %v", err)
	}

	// Computed against the wrong DA bytes: a prover that didn't actually see
	// the committed blocks cannot produce a matching pi_hash.
	wrongBatchHash := batchHashOf([][]byte{[]byte("forged-block")})
	piHash := core.ComputePIHash(prev, post, withdrawal, wrongBatchHash)

	verifier := core.NewVerifier(settlement, core.NewBridge())
	proof := core.Proof{VKeyHash: core.Layer2VKeyHash, PublicValues: piHash[:]}
	if err := verifier.ProveBatch(1, proof); err == nil {
		t.Fatalf("expected a pi_hash computed from the wrong batch_hash to be rejected")
	}
}

func TestProveBatchRejectsUnknownBatchIndex(t *testing.T) {
	store, err := core.OpenStore(filepath.Join(t.TempDir(), "settlement.wal"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()
	settlement := core.NewSettlement(store)

	verifier := core.NewVerifier(settlement, core.NewBridge())
	proof := core.Proof{VKeyHash: core.Layer2VKeyHash, PublicValues: []byte{1}}
	if err := verifier.ProveBatch(99, proof); err == nil {
		t.Fatalf("expected proving an uncommitted batch index to fail")
	}
}
