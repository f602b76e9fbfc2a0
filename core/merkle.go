package core

import "crypto/sha256"

// Two Merkle trees are maintained over the rollup state, both SHA-256 and
// both built with the same level-by-level folding shape, but with
// deliberately different odd-length leaf padding rules carried over from the
// on-chain verifier this implementation must stay wire-compatible with:
// the balances tree duplicates the final leaf when odd, the withdrawal tree
// pads with a zero-valued leaf. Every internal level above the leaves always
// duplicates its final node when odd, in both trees. These rules must never
// be unified.

// buildLevels folds leaves bottom-up into level slices, duplicating the
// final node of any odd-length level (leaf or internal) before hashing
// pairs. The returned slice's last entry is always a single-element level:
// the root.
func buildLevels(leaves [][32]byte) [][][32]byte {
	level := leaves
	tree := make([][][32]byte, 0, 8)
	tree = append(tree, level)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
			tree[len(tree)-1] = level
		}
		next := make([][32]byte, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			buf := make([]byte, 0, 64)
			buf = append(buf, level[i][:]...)
			buf = append(buf, level[i+1][:]...)
			next[i/2] = sha256.Sum256(buf)
		}
		tree = append(tree, next)
		level = next
	}
	return tree
}

func proofForIndex(tree [][][32]byte, index uint64) [][32]byte {
	proof := make([][32]byte, 0, len(tree)-1)
	idx := index
	for lvl := 0; lvl < len(tree)-1; lvl++ {
		level := tree[lvl]
		if idx%2 == 0 {
			proof = append(proof, level[idx+1])
		} else {
			proof = append(proof, level[idx-1])
		}
		idx /= 2
	}
	return proof
}

// verifyPath folds sibling hashes up from leaf to root per §4.1's rule: at
// level h, bit h of index selects whether the sibling is the left or right
// operand of the next hash.
func verifyPath(leaf [32]byte, proof [][32]byte, index uint64, root [32]byte) bool {
	node := leaf
	idx := index
	for _, sibling := range proof {
		buf := make([]byte, 0, 64)
		if idx%2 == 0 {
			buf = append(buf, node[:]...)
			buf = append(buf, sibling[:]...)
		} else {
			buf = append(buf, sibling[:]...)
			buf = append(buf, node[:]...)
		}
		node = sha256.Sum256(buf)
		idx /= 2
	}
	return node == root
}

// CalculateStateRoot computes the balances tree root over accounts in
// first-credit order. Odd-length leaf padding duplicates the last leaf.
// Returns nil if the state has no accounts.
func CalculateStateRoot(s *State) *Hash {
	accounts := s.Accounts()
	if len(accounts) == 0 {
		return nil
	}
	leaves := make([][32]byte, len(accounts))
	for i, addr := range accounts {
		leaves[i] = balanceLeafHash(addr, s.Balances[addr])
	}
	if len(leaves)%2 == 1 {
		leaves = append(leaves, leaves[len(leaves)-1])
	}
	tree := buildLevels(leaves)
	root := Hash(tree[len(tree)-1][0])
	return &root
}

// CalculateWithdrawalRoot computes the withdrawal tree root over the full
// queue. Odd-length leaf padding uses a zero-valued leaf. Returns nil if the
// queue is empty.
func CalculateWithdrawalRoot(queue []Withdrawal) *Hash {
	if len(queue) == 0 {
		return nil
	}
	leaves := make([][32]byte, len(queue))
	for i, w := range queue {
		leaves[i] = w.hash()
	}
	if len(leaves)%2 == 1 {
		leaves = append(leaves, [32]byte{})
	}
	tree := buildLevels(leaves)
	root := Hash(tree[len(tree)-1][0])
	return &root
}

// WithdrawalProof is an inclusion proof for a single withdrawal within a
// historical prefix of the withdrawal queue, as accepted by the bridge's
// withdrawal instruction.
type WithdrawalProof struct {
	LeafHash [32]byte
	Proof    [][32]byte
	Index    uint64
	Root     Hash
}

// GenerateWithdrawalProof builds an inclusion proof for queue[index] against
// the tree formed by queue[0:rangeLen) (rangeLen is the batch boundary the
// withdrawal root was committed for).
func GenerateWithdrawalProof(queue []Withdrawal, index, rangeLen uint64) (*WithdrawalProof, error) {
	if rangeLen == 0 || int(rangeLen) > len(queue) {
		return nil, ErrBlockNotFound
	}
	if index >= rangeLen {
		return nil, NewRollupError(CodeNotFound, ErrTxNotFound)
	}
	prefix := queue[:rangeLen]
	leaves := make([][32]byte, len(prefix))
	for i, w := range prefix {
		leaves[i] = w.hash()
	}
	leafHash := leaves[index]
	if len(leaves)%2 == 1 {
		leaves = append(leaves, [32]byte{})
	}
	tree := buildLevels(leaves)
	proof := proofForIndex(tree, index)
	root := Hash(tree[len(tree)-1][0])
	return &WithdrawalProof{LeafHash: leafHash, Proof: proof, Index: index, Root: root}, nil
}

// VerifyWithdrawalInclusion checks a withdrawal proof against a committed
// withdrawal root.
func VerifyWithdrawalInclusion(leafHash [32]byte, proof [][32]byte, index uint64, root Hash) bool {
	return verifyPath(leafHash, proof, index, [32]byte(root))
}
