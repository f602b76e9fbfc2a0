package core

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BlockTimeInterval is the block producer's tick interval T.
const BlockTimeInterval = 200 * time.Millisecond

// idleBlockInterval emits an empty block even without pending transactions
// so state_root progress stays observable; it is 10*T per §4.5.
const idleBlockInterval = 10 * BlockTimeInterval

// checkInterval is how often the producer loop wakes to re-evaluate the
// PRODUCE predicate; it is shorter than T so the predicate is checked
// promptly, matching the reference node's 100ms poll.
const checkInterval = 100 * time.Millisecond

// RingCacheCapacity is the size of the in-memory recent-blocks cache.
const RingCacheCapacity = 128

// DevAccountSeedAmount is credited to DEV_ACCOUNT at startup if it is set
// and its balance is zero.
var DevAccountSeedAmount = new(big.Int).Mul(big.NewInt(100), big.NewInt(1_000_000_000))

// Sequencer owns the live mempool, state and block store exclusively: it is
// the sole writer of block-store and state (§5). All other components
// (RPC, batcher, prover) only ever read through its accessor methods.
type Sequencer struct {
	mu      sync.RWMutex
	state   *State
	mempool *Mempool
	store   *Store
	cache   *RingCache

	latestBlockNum  uint64
	latestStateRoot Hash
}

// NewSequencer constructs a Sequencer, replaying any persisted state and
// block pointer from store.
func NewSequencer(store *Store) (*Sequencer, error) {
	state, err := LoadState(store)
	if err != nil {
		return nil, err
	}
	s := &Sequencer{
		state:          state,
		mempool:        NewMempool(),
		store:          store,
		cache:          NewRingCache(RingCacheCapacity),
		latestBlockNum: LoadLatestBlockNum(store),
	}
	if raw, ok := store.Get(keyLatestStateRoot); ok && len(raw) == 32 {
		copy(s.latestStateRoot[:], raw)
	}
	return s, nil
}

// SeedDevAccount credits addr with DevAccountSeedAmount if its balance is
// currently zero, per the DEV_ACCOUNT startup rule in §6.
func (s *Sequencer) SeedDevAccount(addr Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.GetBalance(addr).Sign() == 0 {
		s.state.AddBalance(addr, DevAccountSeedAmount)
		logrus.WithField("account", addr.String()).Info("seeded dev account")
	}
}

// SubmitTransaction validates and admits tx to the mempool.
// requireSignatures should be true on every externally reachable path.
func (s *Sequencer) SubmitTransaction(tx Transaction, requireSignatures bool) error {
	return s.mempool.Add(tx, requireSignatures)
}

// PendingSize reports the current mempool occupancy.
func (s *Sequencer) PendingSize() int { return s.mempool.PendingSize() }

// CreditDeposit credits addr's L2 balance directly, bypassing the mempool.
// It is the L2 system inbox's effect when the L1 deposit oracle (C10)
// relays a confirmed deposit event.
func (s *Sequencer) CreditDeposit(addr Address, amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AddBalance(addr, new(big.Int).SetUint64(amount))
}

// GetBalance returns addr's current balance.
func (s *Sequencer) GetBalance(addr Address) *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.GetBalance(addr)
}

// GetTransaction looks up a transaction by its first-signature identifier
// within the recent-blocks cache.
func (s *Sequencer) GetTransaction(signature string) (*Transaction, bool) {
	return s.cache.FindBySignature(signature)
}

// LatestBlockNum returns the highest block number produced so far.
func (s *Sequencer) LatestBlockNum() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestBlockNum
}

// LatestStateRoot returns the post_state_root of the most recently produced
// block (the zero hash before any block has been produced).
func (s *Sequencer) LatestStateRoot() Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestStateRoot
}

// Store exposes the underlying durable store, used by the batcher and RPC
// layer for read-only block lookups.
func (s *Sequencer) Store() *Store { return s.store }

// Run executes the block-producer loop until ctx is cancelled. It is the
// sole writer of block-store and state; mempool admission may proceed
// concurrently under its own lock.
func (s *Sequencer) Run(ctx context.Context) error {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	lastBlockTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			elapsed := time.Since(lastBlockTime)
			produce := (elapsed >= BlockTimeInterval && s.mempool.PendingSize() > 0) ||
				elapsed >= idleBlockInterval
			if !produce {
				continue
			}
			if err := s.produceBlock(); err != nil {
				logrus.WithError(err).Error("block production failed; retrying next tick")
				continue
			}
			lastBlockTime = time.Now()
		}
	}
}

// produceBlock executes §4.5 steps 1-6 atomically under the sequencer lock.
func (s *Sequencer) produceBlock() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txns := s.mempool.Drain()
	prevRoot := s.latestStateRoot

	block, err := ExecuteBlock(Lenient, s.state, txns)
	if err != nil {
		return err
	}
	block.BlockNum = s.latestBlockNum + 1
	block.PrevStateRoot = prevRoot

	txnsRoot, err := CalculateTxnsRoot(txns)
	if err != nil {
		return err
	}
	block.TxnsRoot = &txnsRoot
	block.PostStateRoot = CalculateStateRoot(s.state)
	block.WithdrawalRoot = CalculateWithdrawalRoot(s.state.WithdrawalQueue)

	if err := SaveBlock(s.store, block, s.state); err != nil {
		return err
	}

	s.latestBlockNum = block.BlockNum
	if block.PostStateRoot != nil {
		s.latestStateRoot = *block.PostStateRoot
	}
	s.cache.Push(block)

	logrus.WithFields(logrus.Fields{
		"block_num": block.BlockNum,
		"txns":      len(block.Txns),
	}).Info("produced block")
	return nil
}
