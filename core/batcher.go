package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

// MaxBlockCountInBatch bounds how many blocks a single batch may span.
const MaxBlockCountInBatch = 256

// DefaultBatchInterval is how often the batcher's Run loop attempts a
// submission when no explicit interval is supplied.
const DefaultBatchInterval = 60 * time.Second

// BatchInfo is the off-chain mirror of the on-chain batch record: a
// contiguous run of blocks plus the roots spanning them.
type BatchInfo struct {
	BatchIndex     uint64
	Blocks         [][]byte
	StartBlockNum  uint64
	EndBlockNum    uint64
	PrevStateRoot  Hash
	PostStateRoot  Hash
	WithdrawalRoot Hash
}

// Batcher assembles committed sequencer blocks into batches and submits them
// to the settlement layer (C6).
type Batcher struct {
	store      *Store
	settlement *Settlement
}

// NewBatcher returns a Batcher reading blocks from store and submitting
// through settlement.
func NewBatcher(store *Store, settlement *Settlement) *Batcher {
	return &Batcher{store: store, settlement: settlement}
}

// Run periodically calls SmartSubmit until ctx is cancelled.
func (b *Batcher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultBatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := b.SmartSubmit(); err != nil {
				logrus.WithError(err).Error("batch submission failed")
			}
		}
	}
}

// SmartSubmit assembles the next contiguous, not-yet-batched run of blocks
// (bounded by MaxBlockCountInBatch) and commits it to the settlement layer.
// It is a no-op if no blocks have been produced yet, or none are new.
func (b *Batcher) SmartSubmit() error {
	latest := b.settlement.GetLatestBatch()
	var next BatchInfo
	if latest != nil {
		next = BatchInfo{
			BatchIndex:    latest.BatchIndex + 1,
			StartBlockNum: latest.EndBlockNum + 1,
			PrevStateRoot: latest.PostStateRoot,
		}
	} else {
		next = BatchInfo{BatchIndex: 1, StartBlockNum: 1}
	}

	latestBlockNum := LoadLatestBlockNum(b.store)
	if latestBlockNum == 0 {
		logrus.Info("no blocks to submit")
		return nil
	}

	blocks, err := b.collectBlocksForBatch(next.StartBlockNum, latestBlockNum)
	if err != nil {
		return err
	}
	if len(blocks) == 0 {
		logrus.Info("no new blocks to submit")
		return nil
	}

	last := blocks[len(blocks)-1]
	next.EndBlockNum = next.StartBlockNum + uint64(len(blocks)) - 1
	if last.PostStateRoot != nil {
		next.PostStateRoot = *last.PostStateRoot
	}
	if last.WithdrawalRoot != nil {
		next.WithdrawalRoot = *last.WithdrawalRoot
	}

	serialized := make([][]byte, 0, len(blocks))
	for _, blk := range blocks {
		data, err := json.Marshal(blk)
		if err != nil {
			return err
		}
		serialized = append(serialized, data)
	}
	next.Blocks = serialized

	logrus.WithField("batch_index", next.BatchIndex).Info("committing batch")
	return b.settlement.CommitBatch(next)
}

// collectBlocksForBatch loads the contiguous block range
// [start, start+count), count being the inclusive span bounded by
// MaxBlockCountInBatch (spec.md §9 Open Question #1). A missing block within
// the range yields an empty result rather than an error, matching the
// retained upstream batcher's tolerance of a not-yet-flushed tail block.
func (b *Batcher) collectBlocksForBatch(start, latestBlockNum uint64) ([]Block, error) {
	if start > latestBlockNum {
		return nil, nil
	}
	count := latestBlockNum - start + 1
	if count > MaxBlockCountInBatch {
		count = MaxBlockCountInBatch
	}
	blocks := make([]Block, 0, count)
	for i := start; i < start+count; i++ {
		blk, err := LoadBlock(b.store, i)
		if err != nil {
			return nil, nil
		}
		blocks = append(blocks, *blk)
	}
	return blocks, nil
}
