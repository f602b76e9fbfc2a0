package services

import (
	"l2rollup/core"
)

// RollupService is the business-logic layer between the HTTP controllers
// and the sequencer/settlement core, mirroring the wallet server's
// controller-to-service split.
type RollupService struct {
	sequencer  *core.Sequencer
	settlement *core.Settlement
}

// NewRollupService returns a RollupService backed by sequencer and
// settlement.
func NewRollupService(sequencer *core.Sequencer, settlement *core.Settlement) *RollupService {
	return &RollupService{sequencer: sequencer, settlement: settlement}
}

// SubmitTransaction admits tx to the sequencer's mempool, requiring valid
// signatures since this is the externally reachable path.
func (s *RollupService) SubmitTransaction(tx core.Transaction) (signature string, err error) {
	if err := s.sequencer.SubmitTransaction(tx, true); err != nil {
		return "", err
	}
	return tx.SignatureID(), nil
}

// GetBalance returns addr's current L2 balance as a decimal string (u128
// values don't fit a JSON number safely).
func (s *RollupService) GetBalance(addr core.Address) string {
	return s.sequencer.GetBalance(addr).String()
}

// GetTransaction looks up a transaction by its signature identifier.
func (s *RollupService) GetTransaction(signature string) (*core.Transaction, bool) {
	return s.sequencer.GetTransaction(signature)
}

// GetBlock loads a persisted block by number.
func (s *RollupService) GetBlock(blockNum uint64) (*core.Block, error) {
	return core.LoadBlock(s.sequencer.Store(), blockNum)
}

// GetLatestBlockNum returns the highest block number produced so far.
func (s *RollupService) GetLatestBlockNum() uint64 {
	return s.sequencer.LatestBlockNum()
}

// GetCommittedBatch looks up a committed batch by index.
func (s *RollupService) GetCommittedBatch(index uint64) (*core.BatchData, bool) {
	return s.settlement.GetCommittedBatch(index)
}

// GetLatestBatch returns the most recently committed batch, if any.
func (s *RollupService) GetLatestBatch() *core.BatchData {
	return s.settlement.GetLatestBatch()
}

// GetLastFinalizedBatchIndex returns the highest finalized batch index.
func (s *RollupService) GetLastFinalizedBatchIndex() uint64 {
	return s.settlement.LastFinalizedBatchIndex()
}
