// Package pow implements the proof of work functions used to seal and verify
// blocks. A digest solves a difficulty when, read as a 256 bit big endian
// unsigned integer, it is below the difficulty target. That is the same as
// the hex encoded digest starting with difficulty zeros.
package pow

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// MaxDifficulty is the number of hex digits in a 256 bit digest.
const MaxDifficulty = 64

// Algorithm names accepted by New.
const (
	AlgorithmBlastHash = "blasthash"
	AlgorithmKeccak    = "keccak"
)

// Digest is the output of a proof of work function.
type Digest [32]byte

// Hex returns the 0x prefixed hex encoding of the digest.
func (d Digest) Hex() string {
	return hexutil.Encode(d[:])
}

// Engine represents the behavior of a proof of work function. Digest must
// be pure: the same header and nonce always produce the same digest.
type Engine interface {
	Name() string
	Digest(header []byte, nonce uint64) Digest
}

// New constructs the engine named by the algorithm.
func New(algorithm string, memorySize int, rounds int) (Engine, error) {
	switch strings.ToLower(algorithm) {
	case AlgorithmBlastHash:
		return NewBlastHash(memorySize, rounds)
	case AlgorithmKeccak:
		return Keccak{}, nil
	}

	return nil, fmt.Errorf("unknown proof of work algorithm %q", algorithm)
}

// =============================================================================

// Target returns the value a digest must be below to carry the specified
// number of leading zero hex digits: 2^(256 - 4*difficulty).
func Target(difficulty uint) *uint256.Int {
	if difficulty == 0 {
		return new(uint256.Int).SetAllOne()
	}
	if difficulty > MaxDifficulty {
		difficulty = MaxDifficulty
	}

	return new(uint256.Int).Lsh(uint256.NewInt(1), 256-4*difficulty)
}

// Meets reports whether the digest is below the target.
func Meets(digest Digest, target *uint256.Int) bool {
	return new(uint256.Int).SetBytes32(digest[:]).Lt(target)
}

// LeadingZeros counts the leading zero hex digits of the digest.
func LeadingZeros(digest Digest) uint {
	var n uint
	for _, b := range digest {
		if b != 0 {
			if b < 0x10 {
				n++
			}
			return n
		}
		n += 2
	}

	return n
}

// =============================================================================

// Search runs the engine over nonces start, start+stride, start+2*stride, ...
// until a digest meets the target. The context is checked before every
// attempt so a search can be abandoned when a new tip arrives.
func Search(ctx context.Context, engine Engine, header []byte, target *uint256.Int, start uint64, stride uint64) (uint64, Digest, error) {
	if stride == 0 {
		stride = 1
	}

	for nonce := start; ; nonce += stride {
		if err := ctx.Err(); err != nil {
			return 0, Digest{}, err
		}

		digest := engine.Digest(header, nonce)
		if Meets(digest, target) {
			return nonce, digest, nil
		}
	}
}

// =============================================================================

// Keccak is a fast engine for development chains: keccak256(header||nonce).
type Keccak struct{}

// Name implements the Engine interface.
func (Keccak) Name() string {
	return AlgorithmKeccak
}

// Digest implements the Engine interface.
func (Keccak) Digest(header []byte, nonce uint64) Digest {
	return Digest(keccak256(header, nonceBytes(nonce)))
}

// nonceBytes encodes the nonce as 8 big endian bytes.
func nonceBytes(nonce uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], nonce)
	return b[:]
}
