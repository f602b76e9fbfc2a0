package core

import (
	"bytes"
	"crypto/sha256"

	"github.com/sirupsen/logrus"
)

// Layer2VKeyHash is the commitment of the layer2 verification circuit,
// carried verbatim from the on-chain verifier program.
const Layer2VKeyHash = "0x00bb9e57314d7ee4f65a4b9fb46fbeae0495f2015c5a8a737333680ce6bb424e"

// Proof is the opaque proof envelope submitted for a batch: a verifying-key
// commitment plus the prover's committed public values. Real proof
// verification (the Groth16/SP1 circuit itself) is out of scope; this
// boundary only checks the committed public values against the recomputed
// pi_hash, which is what the on-chain program's own public-input check does
// once the proof itself has already been accepted.
type Proof struct {
	VKeyHash     string
	PublicValues []byte
}

// ComputePIHash recomputes the public-input commitment for a batch:
// SHA256(prev_state_root || post_state_root || withdrawal_root || da_hash).
// withdrawal_root is included per spec.md §9 Open Question #3 — without it
// a sequencer could attach an unproven withdrawal root to an already-proven
// batch.
func ComputePIHash(prevStateRoot, postStateRoot, withdrawalRoot, daHash Hash) Hash {
	h := sha256.New()
	h.Write(prevStateRoot[:])
	h.Write(postStateRoot[:])
	h.Write(withdrawalRoot[:])
	h.Write(daHash[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Verifier checks submitted proofs against a batch's recorded roots before
// allowing the settlement layer to finalize it, and admits the batch's
// withdrawal_root into the bridge's finalized set on success.
type Verifier struct {
	settlement *Settlement
	bridge     *Bridge
}

// NewVerifier returns a Verifier finalizing batches through settlement and
// unlocking their withdrawal roots through bridge.
func NewVerifier(settlement *Settlement, bridge *Bridge) *Verifier {
	return &Verifier{settlement: settlement, bridge: bridge}
}

// ProveBatch verifies proof against the committed batch batchIndex's
// recorded roots and batch_hash, finalizing the batch and marking its
// withdrawal_root as eligible for bridge exits on success.
func (v *Verifier) ProveBatch(batchIndex uint64, proof Proof) error {
	batch, ok := v.settlement.GetCommittedBatch(batchIndex)
	if !ok {
		return NewRollupError(CodeNotFound, ErrBatchNotFound)
	}
	if proof.VKeyHash != Layer2VKeyHash {
		return NewRollupError(CodeInvalidProof, ErrInvalidProof)
	}
	expected := ComputePIHash(batch.PrevStateRoot, batch.PostStateRoot, batch.WithdrawalRoot, batch.BatchHash)
	if !bytes.Equal(proof.PublicValues, expected[:]) {
		return NewRollupError(CodeInvalidProof, ErrInvalidProof)
	}
	logrus.WithField("batch_index", batchIndex).Info("proof verified")
	if err := v.settlement.FinalizeBatch(batchIndex); err != nil {
		return err
	}
	v.bridge.MarkWithdrawalRootFinalized(batch.WithdrawalRoot)
	return nil
}
