package core

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/mr-tron/base58"
)

// SystemProgramID is the reserved native-transfer program. It is the
// all-zero public key, which base58-encodes to the same 32 '1' characters
// Solana's real system program uses, so the reserved constant needs no
// separate base58 literal.
var SystemProgramID = Address{}

// systemTransferTag is the little-endian u32 instruction discriminant for
// the system program's Transfer variant, matching the real Solana system
// program ABI (index 2) so instruction parsing exercises an authentic wire
// shape rather than an invented one.
const systemTransferTag uint32 = 2

// Signature is a raw ed25519 signature.
type Signature [64]byte

// Instruction is one compiled instruction within a transaction's message:
// a program reference plus the account indices and opaque data it receives.
type Instruction struct {
	ProgramIDIndex uint8   `json:"program_id_index"`
	Accounts       []uint8 `json:"accounts"`
	Data           []byte  `json:"data"`
}

// MessageHeader carries the signer-count metadata needed to validate a
// transaction's signature list against its account-keys table.
type MessageHeader struct {
	NumRequiredSignatures uint8 `json:"num_required_signatures"`
}

// Message is the unsigned body of a transaction: the account-keys table
// referenced by index from every instruction, plus the instructions
// themselves.
type Message struct {
	Header       MessageHeader `json:"header"`
	AccountKeys  []Address     `json:"account_keys"`
	Instructions []Instruction `json:"instructions"`
}

// CanonicalBytes returns the RLP encoding of the message, the byte string
// that is both signed by every required signer and hashed into txns_root.
func (m *Message) CanonicalBytes() ([]byte, error) {
	return rlp.EncodeToBytes(m)
}

// Transaction is an opaque signed L1-wire-format envelope: a list of
// signatures over a single Message. The first signature is the
// transaction's identifier.
type Transaction struct {
	Signatures []Signature `json:"signatures"`
	Message    Message     `json:"message"`
}

// SignatureID returns the base58 encoding of the transaction's first
// signature, used as its canonical identifier.
func (t *Transaction) SignatureID() string {
	if len(t.Signatures) == 0 {
		return ""
	}
	return base58.Encode(t.Signatures[0][:])
}

// CanonicalBytes returns the RLP encoding of the full signed transaction,
// used when hashing transactions into a block's txns_root.
func (t *Transaction) CanonicalBytes() ([]byte, error) {
	return rlp.EncodeToBytes(t)
}

// VerifySignatures checks (1) at least one signature, (2) no signature is
// the all-zero default, and (3) each required signature verifies against
// its corresponding account key over the message's canonical bytes.
func (t *Transaction) VerifySignatures() error {
	if len(t.Signatures) == 0 {
		return NewRollupError(CodeInvalidTransaction, ErrInvalidSignature)
	}
	var zero Signature
	for _, sig := range t.Signatures {
		if sig == zero {
			return NewRollupError(CodeInvalidTransaction, ErrInvalidSignature)
		}
	}
	msgBytes, err := t.Message.CanonicalBytes()
	if err != nil {
		return NewRollupError(CodeInvalidTransaction, err)
	}
	need := int(t.Message.Header.NumRequiredSignatures)
	if len(t.Signatures) < need || len(t.Message.AccountKeys) < need {
		return NewRollupError(CodeInvalidTransaction, ErrInvalidSignature)
	}
	for i := 0; i < need; i++ {
		pub := ed25519.PublicKey(t.Message.AccountKeys[i][:])
		if !ed25519.Verify(pub, msgBytes, t.Signatures[i][:]) {
			return NewRollupError(CodeInvalidTransaction, ErrInvalidSignature)
		}
	}
	return nil
}

// ValidateFormat checks the structural requirements of §4.3 step 2:
// non-empty account keys and instructions, and a signature count matching
// the declared number of required signers.
func (t *Transaction) ValidateFormat() error {
	if len(t.Message.AccountKeys) == 0 {
		return NewRollupError(CodeInvalidTransaction, ErrInvalidSignature)
	}
	if len(t.Message.Instructions) == 0 {
		return NewRollupError(CodeInvalidTransaction, ErrInvalidSignature)
	}
	if len(t.Signatures) != int(t.Message.Header.NumRequiredSignatures) {
		return NewRollupError(CodeInvalidTransaction, ErrInvalidSignature)
	}
	return nil
}

// TransferOp is the decoded transfer intent extracted from a transaction by
// the parser (C2): who is sending, to whom, and how much.
type TransferOp struct {
	From   Address
	To     Address
	Amount uint64
}

// ParseTransferOp scans a transaction's instructions for the first native
// system-program transfer and returns its intent. A transaction with no
// recognized transfer yields (nil, nil), not an error.
func ParseTransferOp(tx *Transaction) (*TransferOp, error) {
	keys := tx.Message.AccountKeys
	for _, ins := range tx.Message.Instructions {
		if int(ins.ProgramIDIndex) >= len(keys) {
			return nil, NewRollupError(CodeInvalidTransaction, ErrInvalidSignature)
		}
		if keys[ins.ProgramIDIndex] != SystemProgramID {
			continue
		}
		op, ok, err := decodeSystemTransfer(ins, keys)
		if err != nil {
			return nil, err
		}
		if ok {
			return op, nil
		}
	}
	return nil, nil
}

func decodeSystemTransfer(ins Instruction, keys []Address) (*TransferOp, bool, error) {
	if len(ins.Data) < 12 {
		return nil, false, nil
	}
	tag := binary.LittleEndian.Uint32(ins.Data[0:4])
	if tag != systemTransferTag {
		return nil, false, nil
	}
	if len(ins.Accounts) < 2 {
		return nil, false, NewRollupError(CodeInvalidTransaction, ErrInvalidSignature)
	}
	fromIdx, toIdx := ins.Accounts[0], ins.Accounts[1]
	if int(fromIdx) >= len(keys) || int(toIdx) >= len(keys) {
		return nil, false, NewRollupError(CodeInvalidTransaction, ErrInvalidSignature)
	}
	lamports := binary.LittleEndian.Uint64(ins.Data[4:12])
	return &TransferOp{From: keys[fromIdx], To: keys[toIdx], Amount: lamports}, true, nil
}

// Block is one sequenced unit of execution: an ordered list of transactions
// plus the roots computed over it at finalization time.
type Block struct {
	BlockNum        uint64        `json:"block_num"`
	Txns            []Transaction `json:"txns"`
	TxnsRoot        *Hash         `json:"txns_root"`
	PrevStateRoot   Hash          `json:"prev_state_root"`
	PostStateRoot   *Hash         `json:"post_state_root"`
	WithdrawalRoot  *Hash         `json:"withdrawal_root"`
}

// NewBlock wraps txns into an unsequenced, unrooted Block.
func NewBlock(txns []Transaction) *Block {
	return &Block{Txns: txns}
}

// CalculateTxnsRoot hashes the canonical serialization of every transaction
// in order, matching the source's per-block transaction digest.
func CalculateTxnsRoot(txns []Transaction) (Hash, error) {
	h := sha256.New()
	for _, tx := range txns {
		b, err := tx.CanonicalBytes()
		if err != nil {
			return Hash{}, err
		}
		h.Write(b)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out, nil
}
