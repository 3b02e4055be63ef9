// Package merkle provides the receipts tree used to commit a block header to
// the set of transactions it carries. Odd levels duplicate their last node.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"hash"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable[T any] interface {
	Hash() ([]byte, error)
	Equals(other T) bool
}

// ErrNotFound is returned when a proof is requested for a value that is not
// a leaf of the tree.
var ErrNotFound = errors.New("value not found in tree")

// =============================================================================

// Tree holds the values of a block and every level of hashes built on top
// of them. levels[0] are the leaf hashes, the last level is the root.
type Tree[T Hashable[T]] struct {
	values       []T
	levels       [][][]byte
	hashStrategy func() hash.Hash
}

// WithHashStrategy is used to change the default hash strategy of using sha256
// when constructing a new tree.
func WithHashStrategy[T Hashable[T]](hashStrategy func() hash.Hash) func(t *Tree[T]) {
	return func(t *Tree[T]) {
		t.hashStrategy = hashStrategy
	}
}

// NewTree constructs a new merkle tree over the values. An empty set of
// values produces a tree whose root is all zeros.
func NewTree[T Hashable[T]](values []T, options ...func(t *Tree[T])) (*Tree[T], error) {
	t := Tree[T]{
		values:       append([]T(nil), values...),
		hashStrategy: sha256.New,
	}

	for _, option := range options {
		option(&t)
	}

	if len(values) == 0 {
		t.levels = [][][]byte{{make([]byte, t.hashStrategy().Size())}}
		return &t, nil
	}

	leafs := make([][]byte, len(values))
	for i, value := range values {
		h, err := value.Hash()
		if err != nil {
			return nil, err
		}
		leafs[i] = h
	}

	t.levels = [][][]byte{leafs}
	for level := leafs; len(level) > 1; {
		level = t.parents(level)
		t.levels = append(t.levels, level)
	}

	return &t, nil
}

// Root returns the root hash of the tree.
func (t *Tree[T]) Root() []byte {
	top := t.levels[len(t.levels)-1]
	return append([]byte(nil), top[0]...)
}

// RootHex converts the merkle root byte hash to a hex encoded string.
func (t *Tree[T]) RootHex() string {
	return hexutil.Encode(t.Root())
}

// Values returns a copy of the values the tree was built from.
func (t *Tree[T]) Values() []T {
	return append([]T(nil), t.values...)
}

// Proof returns the sibling hashes from the leaf of the specified value up
// to the root. The order slice says where each sibling goes: 0 means the
// sibling is concatenated first, 1 means second.
func (t *Tree[T]) Proof(value T) ([][]byte, []int64, error) {
	idx := -1
	for i, v := range t.values {
		if v.Equals(value) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, nil, ErrNotFound
	}

	var proof [][]byte
	var order []int64
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := idx ^ 1
		if sibling >= len(level) {
			sibling = idx
		}

		proof = append(proof, level[sibling])
		if idx%2 == 0 {
			order = append(order, 1)
		} else {
			order = append(order, 0)
		}

		idx /= 2
	}

	return proof, order, nil
}

// Verify rebuilds the tree from the values and checks it produces the same
// root.
func (t *Tree[T]) Verify() error {
	rebuilt, err := NewTree(t.values, WithHashStrategy[T](t.hashStrategy))
	if err != nil {
		return err
	}

	if !bytes.Equal(rebuilt.Root(), t.Root()) {
		return errors.New("root hash invalid")
	}

	return nil
}

// parents hashes each pair of nodes into the next level up.
func (t *Tree[T]) parents(level [][]byte) [][]byte {
	next := make([][]byte, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		right := i + 1
		if right == len(level) {
			right = i
		}
		next = append(next, hashPair(t.hashStrategy, level[i], level[right]))
	}

	return next
}

// =============================================================================

// VerifyProof folds the leaf hash with the proof and reports whether the
// result matches the root. The root can be checked by anyone holding only
// the block header.
func VerifyProof(leaf []byte, proof [][]byte, order []int64, root []byte) bool {
	if len(proof) != len(order) {
		return false
	}

	current := leaf
	for i, sibling := range proof {
		if order[i] == 0 {
			current = hashPair(sha256.New, sibling, current)
		} else {
			current = hashPair(sha256.New, current, sibling)
		}
	}

	return bytes.Equal(current, root)
}

func hashPair(strategy func() hash.Hash, left []byte, right []byte) []byte {
	h := strategy()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}
