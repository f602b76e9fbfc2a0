package core

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// walEntry is a single durable mutation record. The store's on-disk file is
// an append-only log of these, replayed in order on open — the same shape
// as the teacher ledger's WAL, but keyed generically instead of by block.
type walEntry struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// Store is a durable append-only key/value log. Every Set call appends a
// record and flushes before returning, matching §4.5's requirement that the
// post-write flush be the durability boundary.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
	wal  *os.File
}

// OpenStore opens (creating if necessary) the WAL file at path and replays
// it into memory.
func OpenStore(path string) (s *Store, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open store WAL: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
		}
	}()

	s = &Store{data: make(map[string][]byte), wal: f}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		var e walEntry
		if err = json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("WAL unmarshal: %w", err)
		}
		s.data[e.Key] = e.Value
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("WAL scan: %w", err)
	}
	logrus.WithField("entries", len(s.data)).Info("replayed sequencer store WAL")
	return s, nil
}

// Set durably records key -> value.
func (s *Store) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	b, err := json.Marshal(walEntry{Key: key, Value: value})
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if _, err := s.wal.Write(b); err != nil {
		return fmt.Errorf("WAL append: %w", err)
	}
	return s.wal.Sync()
}

// Get returns the current value for key, if any.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Close releases the underlying WAL file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wal.Close()
}

// Persisted key layout (§6): block_{n}, latest_block_num, latest_state_root,
// balance_state, withdrawal_queue.

func blockKey(n uint64) string { return fmt.Sprintf("block_%d", n) }

const (
	keyLatestBlockNum  = "latest_block_num"
	keyLatestStateRoot = "latest_state_root"
	keyBalanceState    = "balance_state"
	keyWithdrawalQueue = "withdrawal_queue"
)

// SaveBlock persists block and advances the latest_block_num /
// latest_state_root pointers. It also snapshots balances and the
// withdrawal queue so a restart can resume without replaying every block.
func SaveBlock(store *Store, block *Block, state *State) error {
	blob, err := json.Marshal(block)
	if err != nil {
		return err
	}
	if err := store.Set(blockKey(block.BlockNum), blob); err != nil {
		return err
	}
	var numBytes [8]byte
	binary.BigEndian.PutUint64(numBytes[:], block.BlockNum)
	if err := store.Set(keyLatestBlockNum, numBytes[:]); err != nil {
		return err
	}
	if block.PostStateRoot != nil {
		if err := store.Set(keyLatestStateRoot, block.PostStateRoot[:]); err != nil {
			return err
		}
	}
	if err := saveBalances(store, state); err != nil {
		return err
	}
	return saveWithdrawalQueue(store, state)
}

// balanceSnapshot is the JSON-friendly form of State.Balances: address ->
// decimal-string u128 balance.
type balanceSnapshot map[string]string

func saveBalances(store *Store, state *State) error {
	snap := make(balanceSnapshot, len(state.Balances))
	for addr, bal := range state.Balances {
		snap[addr.String()] = bal.String()
	}
	blob, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return store.Set(keyBalanceState, blob)
}

func saveWithdrawalQueue(store *Store, state *State) error {
	blob, err := json.Marshal(state.WithdrawalQueue)
	if err != nil {
		return err
	}
	return store.Set(keyWithdrawalQueue, blob)
}

// LoadBlock returns the persisted block numbered n, or ErrBlockNotFound.
func LoadBlock(store *Store, n uint64) (*Block, error) {
	raw, ok := store.Get(blockKey(n))
	if !ok {
		return nil, ErrBlockNotFound
	}
	var b Block
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// LoadBlockRange loads blocks [start, start+count), returning
// ErrBlockNotFound if any block in the range is missing.
func LoadBlockRange(store *Store, start, count uint64) ([]Block, error) {
	blocks := make([]Block, 0, count)
	for n := start; n < start+count; n++ {
		b, err := LoadBlock(store, n)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, *b)
	}
	return blocks, nil
}

// LoadLatestBlockNum returns the highest persisted block number, or 0 if no
// blocks have been saved yet.
func LoadLatestBlockNum(store *Store) uint64 {
	raw, ok := store.Get(keyLatestBlockNum)
	if !ok || len(raw) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

// LoadState reconstructs balances and the withdrawal queue from their
// persisted snapshots.
func LoadState(store *Store) (*State, error) {
	state := NewState()
	if raw, ok := store.Get(keyBalanceState); ok {
		var snap balanceSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, err
		}
		for addrStr, balStr := range snap {
			addr, err := ParseAddress(addrStr)
			if err != nil {
				return nil, err
			}
			bal, ok := new(big.Int).SetString(balStr, 10)
			if !ok {
				return nil, fmt.Errorf("corrupt balance snapshot for %s", addrStr)
			}
			state.SetBalance(addr, bal)
		}
	}
	if raw, ok := store.Get(keyWithdrawalQueue); ok {
		if err := json.Unmarshal(raw, &state.WithdrawalQueue); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// RingCache keeps the last `capacity` blocks in memory for fast lookups
// (§4.5 point 6), serving RPC getTransaction queries without a store read.
type RingCache struct {
	mu       sync.RWMutex
	capacity int
	blocks   []*Block
}

// NewRingCache returns a cache that retains at most capacity blocks.
func NewRingCache(capacity int) *RingCache {
	return &RingCache{capacity: capacity}
}

// Push appends block, evicting the oldest entry if the cache is full.
func (c *RingCache) Push(block *Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks = append(c.blocks, block)
	if len(c.blocks) > c.capacity {
		c.blocks = c.blocks[len(c.blocks)-c.capacity:]
	}
}

// FindBySignature scans the cache for a transaction matching signature,
// returning its envelope if present.
func (c *RingCache) FindBySignature(signature string) (*Transaction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := len(c.blocks) - 1; i >= 0; i-- {
		for j := range c.blocks[i].Txns {
			tx := &c.blocks[i].Txns[j]
			if tx.SignatureID() == signature {
				return tx, true
			}
		}
	}
	return nil, false
}
