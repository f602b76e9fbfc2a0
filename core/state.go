package core

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/mr-tron/base58"
)

// Address is a Solana-style 32-byte public key.
type Address [32]byte

// String returns the base58 encoding of the address, matching Solana's
// wallet and program account display format.
func (a Address) String() string { return base58.Encode(a[:]) }

// MarshalText implements encoding.TextMarshaler so Address can be used as a
// JSON object key (the balances map is persisted as address -> balance).
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress decodes a base58-encoded public key.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := base58.Decode(s)
	if err != nil {
		return a, err
	}
	if len(b) != 32 {
		return a, NewRollupError(CodeInvalidTransaction, ErrInvalidSignature)
	}
	copy(a[:], b)
	return a, nil
}

// Hash is a 32-byte SHA-256 digest used for state roots, txns roots and the
// public-input digest submitted to the settlement layer.
type Hash [32]byte

func (h Hash) String() string { return base58.Encode(h[:]) }

// MarshalText implements encoding.TextMarshaler so roots serialize as
// base58 strings rather than byte arrays in JSON.
func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	b, err := base58.Decode(string(text))
	if err != nil {
		return err
	}
	if len(b) != 32 {
		return errInvalidHashLength
	}
	copy(h[:], b)
	return nil
}

var errInvalidHashLength = errors.New("core: decoded hash is not 32 bytes")

// WithdrawalAddress is the reserved sink address bridge withdrawals burn
// funds to on L2 before they are released on L1.
var WithdrawalAddress = mustParseAddress("AF111111111111111111111111111111")

// L2SysProgramID is the Layer-2 system inbox program the L1 deposit oracle
// relays deposit messages to.
var L2SysProgramID = mustParseAddress("My11111111111111111111111111111111111111111")

// mustParseAddress decodes a reserved base58 address constant. A literal
// that decodes to fewer than 32 bytes (the withdrawal sink's decodes to 24)
// is left-padded with zero bytes to fill the Address.
func mustParseAddress(s string) Address {
	b, err := base58.Decode(s)
	if err != nil || len(b) > 32 {
		// These constants are fixed; a decode failure here indicates a
		// corrupted build, not a runtime condition.
		panic("core: invalid reserved address constant: " + s)
	}
	var a Address
	copy(a[32-len(b):], b)
	return a
}

// Withdrawal is a single queued exit from L2 back to L1, identified by its
// position in the withdrawal queue (its leaf index in the withdrawal tree).
type Withdrawal struct {
	From   Address `json:"from"`
	To     Address `json:"to"`
	Amount uint64  `json:"amount"`
	Index  uint64  `json:"index"`
}

func (w Withdrawal) hash() [32]byte {
	buf := make([]byte, 0, 32+32+8+8)
	buf = append(buf, w.From[:]...)
	buf = append(buf, w.To[:]...)
	buf = binary.BigEndian.AppendUint64(buf, w.Amount)
	buf = binary.BigEndian.AppendUint64(buf, w.Index)
	return sha256.Sum256(buf)
}

// balanceU128BE renders an account balance as a big-endian 128-bit integer,
// matching the on-chain leaf encoding (address_bytes || balance_be_u128).
func balanceU128BE(balance *big.Int) [16]byte {
	var out [16]byte
	balance.FillBytes(out[:])
	return out
}

func balanceLeafHash(addr Address, balance *big.Int) [32]byte {
	b := balanceU128BE(balance)
	buf := make([]byte, 0, 32+16)
	buf = append(buf, addr[:]...)
	buf = append(buf, b[:]...)
	return sha256.Sum256(buf)
}

// State is the sequencer's view of account balances and the pending
// withdrawal queue. It is the single source of truth executed against by
// both the sequencer (Lenient mode) and the zkVM guest (Strict mode).
//
// Balances are 128-bit (L1 units), represented with math/big since Go has no
// native uint128. order records first-credit insertion order: map iteration
// in Go (like the original HashMap in the reference implementation) is
// unspecified, but Merkle layout depends on a stable leaf order, so the
// insertion sequence is tracked explicitly rather than left to chance.
type State struct {
	Balances        map[Address]*big.Int `json:"balances"`
	order           []Address
	WithdrawalQueue []Withdrawal `json:"withdrawal_queue"`
}

// NewState returns an empty state.
func NewState() *State {
	return &State{Balances: make(map[Address]*big.Int)}
}

// GetBalance returns the balance of addr, or zero if the address has never
// been credited.
func (s *State) GetBalance(addr Address) *big.Int {
	if b, ok := s.Balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// SetBalance overwrites the balance of addr, recording first-credit order
// the first time addr is seen.
func (s *State) SetBalance(addr Address, balance *big.Int) {
	if _, ok := s.Balances[addr]; !ok {
		s.order = append(s.order, addr)
	}
	s.Balances[addr] = new(big.Int).Set(balance)
}

// AddBalance credits amount to addr's balance.
func (s *State) AddBalance(addr Address, amount *big.Int) {
	next := new(big.Int).Add(s.GetBalance(addr), amount)
	s.SetBalance(addr, next)
}

// SubBalance debits amount from addr's balance. It reports false and leaves
// the balance unchanged if the balance is insufficient.
func (s *State) SubBalance(addr Address, amount *big.Int) bool {
	cur := s.GetBalance(addr)
	if cur.Cmp(amount) < 0 {
		return false
	}
	s.SetBalance(addr, new(big.Int).Sub(cur, amount))
	return true
}

// Accounts returns addresses in first-credit order, the order used when
// building the balances Merkle tree.
func (s *State) Accounts() []Address {
	out := make([]Address, len(s.order))
	copy(out, s.order)
	return out
}

// QueueWithdrawal appends a withdrawal to the queue, assigning it the next
// sequential index.
func (s *State) QueueWithdrawal(from, to Address, amount uint64) Withdrawal {
	w := Withdrawal{From: from, To: to, Amount: amount, Index: uint64(len(s.WithdrawalQueue))}
	s.WithdrawalQueue = append(s.WithdrawalQueue, w)
	return w
}

// Clone returns a deep copy of the state, used by the zkVM guest so replay
// execution never mutates the sequencer's live state.
func (s *State) Clone() *State {
	out := &State{
		Balances:        make(map[Address]*big.Int, len(s.Balances)),
		order:           append([]Address(nil), s.order...),
		WithdrawalQueue: append([]Withdrawal(nil), s.WithdrawalQueue...),
	}
	for k, v := range s.Balances {
		out.Balances[k] = new(big.Int).Set(v)
	}
	return out
}
