package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// BatchData is the durable record of a committed batch, the off-chain
// mirror of the Solana program's BatchStorage entry.
type BatchData struct {
	BatchIndex     uint64 `json:"batch_index"`
	StartBlockNum  uint64 `json:"start_block_num"`
	EndBlockNum    uint64 `json:"end_block_num"`
	BatchHash      Hash   `json:"batch_hash"`
	PrevStateRoot  Hash   `json:"prev_state_root"`
	PostStateRoot  Hash   `json:"post_state_root"`
	WithdrawalRoot Hash   `json:"withdrawal_root"`
}

// hashNestedVector folds the batch's serialized blocks into a single digest,
// the batch_hash recorded alongside its roots. An empty batch hashes to the
// zero value.
func hashNestedVector(blocks [][]byte) Hash {
	if len(blocks) == 0 {
		return Hash{}
	}
	h := sha256.New()
	for _, b := range blocks {
		h.Write(b)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Settlement is the off-chain equivalent of the on-chain l2-state program:
// a batch_storage account keyed by batch index, and a
// last_finalized_batch_index account updated monotonically. It is backed by
// its own namespaced region of a Store, simulating a set of program-derived
// accounts rather than the sequencer's own block storage.
type Settlement struct {
	mu    sync.RWMutex
	store *Store

	latestCommittedIndex uint64
}

const (
	settlementBatchKeyPrefix          = "settlement_batch_"
	settlementLatestCommittedIndexKey = "settlement_latest_committed_index"
	settlementLastFinalizedIndexKey   = "settlement_last_finalized_batch_index"
)

func settlementBatchKey(index uint64) string {
	return fmt.Sprintf("%s%d", settlementBatchKeyPrefix, index)
}

// NewSettlement returns a Settlement backed by store, restoring its latest
// committed batch index pointer if present.
func NewSettlement(store *Store) *Settlement {
	s := &Settlement{store: store}
	if raw, ok := store.Get(settlementLatestCommittedIndexKey); ok && len(raw) == 8 {
		s.latestCommittedIndex = binary.BigEndian.Uint64(raw)
	}
	return s
}

// CommitBatch records or overwrites the batch identified by info.BatchIndex,
// matching the program's find-or-append semantics, and advances the
// latest-committed-index pointer.
func (s *Settlement) CommitBatch(info BatchInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := BatchData{
		BatchIndex:     info.BatchIndex,
		StartBlockNum:  info.StartBlockNum,
		EndBlockNum:    info.EndBlockNum,
		BatchHash:      hashNestedVector(info.Blocks),
		PrevStateRoot:  info.PrevStateRoot,
		PostStateRoot:  info.PostStateRoot,
		WithdrawalRoot: info.WithdrawalRoot,
	}
	blob, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if err := s.store.Set(settlementBatchKey(info.BatchIndex), blob); err != nil {
		return err
	}

	if info.BatchIndex > s.latestCommittedIndex {
		s.latestCommittedIndex = info.BatchIndex
		var idxBytes [8]byte
		binary.BigEndian.PutUint64(idxBytes[:], s.latestCommittedIndex)
		if err := s.store.Set(settlementLatestCommittedIndexKey, idxBytes[:]); err != nil {
			return err
		}
	}

	logrus.WithFields(logrus.Fields{
		"batch_index": data.BatchIndex,
		"batch_hash":  data.BatchHash.String(),
	}).Info("committed batch")
	return nil
}

// GetCommittedBatch looks up a batch by index.
func (s *Settlement) GetCommittedBatch(index uint64) (*BatchData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.store.Get(settlementBatchKey(index))
	if !ok {
		return nil, false
	}
	var data BatchData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, false
	}
	return &data, true
}

// GetLatestBatch returns the most recently committed batch, or nil if none
// has been committed.
func (s *Settlement) GetLatestBatch() *BatchData {
	s.mu.RLock()
	idx := s.latestCommittedIndex
	s.mu.RUnlock()
	if idx == 0 {
		return nil
	}
	data, ok := s.GetCommittedBatch(idx)
	if !ok {
		return nil
	}
	return data
}

// LastFinalizedBatchIndex returns the highest batch index accepted by
// FinalizeBatch so far, or 0 if none has been finalized.
func (s *Settlement) LastFinalizedBatchIndex() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.store.Get(settlementLastFinalizedIndexKey)
	if !ok || len(raw) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

// FinalizeBatch records batchIndex as finalized once its proof has verified
// (core/verifier.go). The pointer is updated with max(prev, batchIndex)
// (spec.md §9 Open Question #2), so out-of-order finalization calls can
// never regress it.
func (s *Settlement) FinalizeBatch(batchIndex uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.store.Get(settlementLastFinalizedIndexKey)
	var current uint64
	if ok && len(raw) == 8 {
		current = binary.BigEndian.Uint64(raw)
	}
	next := current
	if batchIndex > next {
		next = batchIndex
	}
	if next == current {
		return nil
	}
	var idxBytes [8]byte
	binary.BigEndian.PutUint64(idxBytes[:], next)
	if err := s.store.Set(settlementLastFinalizedIndexKey, idxBytes[:]); err != nil {
		return err
	}
	logrus.WithField("batch_index", next).Info("finalized batch")
	return nil
}
