package pow

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// Default BlastHash parameters.
const (
	DefaultMemorySize = 128 * 1024 * 1024
	DefaultRounds     = 64
)

// chunk is the size of one digest in the scratch buffer.
const chunk = 32

// BlastHash is the memory hard proof of work function. Every evaluation
// fills a scratch buffer with a sha3 chain seeded from the header and nonce,
// then mixes pseudo random windows of that buffer into the result. A single
// evaluation costs the same whether mining or verifying.
type BlastHash struct {
	memorySize int
	rounds     int
	scratch    sync.Pool
}

// NewBlastHash constructs the engine. The memory size must be a multiple of
// 32 bytes holding at least two chunks.
func NewBlastHash(memorySize int, rounds int) (*BlastHash, error) {
	if memorySize < 2*chunk || memorySize%chunk != 0 {
		return nil, fmt.Errorf("memory size %d must be a multiple of %d and at least %d", memorySize, chunk, 2*chunk)
	}
	if rounds < 1 {
		return nil, fmt.Errorf("rounds %d must be at least 1", rounds)
	}

	bh := BlastHash{
		memorySize: memorySize,
		rounds:     rounds,
	}
	bh.scratch.New = func() any {
		mem := make([]byte, memorySize)
		return &mem
	}

	return &bh, nil
}

// Name implements the Engine interface.
func (bh *BlastHash) Name() string {
	return AlgorithmBlastHash
}

// MemorySize returns the scratch buffer size in bytes.
func (bh *BlastHash) MemorySize() int {
	return bh.memorySize
}

// Rounds returns the number of mixing rounds.
func (bh *BlastHash) Rounds() int {
	return bh.rounds
}

// Digest implements the Engine interface.
func (bh *BlastHash) Digest(header []byte, nonce uint64) Digest {
	h := sha3.New256()
	h.Write(header)
	h.Write(nonceBytes(nonce))
	seed := h.Sum(nil)

	seed = crypto.Keccak256(seed)

	result := bh.mix(seed)

	return Digest(sha3.Sum256(result[:]))
}

// mix fills the scratch buffer and folds rounds windows of it into the seed.
func (bh *BlastHash) mix(seed []byte) [32]byte {
	memp := bh.scratch.Get().(*[]byte)
	defer bh.scratch.Put(memp)
	mem := *memp

	var current [32]byte
	copy(current[:], seed)
	for i := 0; i < len(mem); i += chunk {
		current = sha3.Sum256(current[:])
		copy(mem[i:], current[:])
	}

	var result [32]byte
	copy(result[:], seed)

	window := uint64(len(mem) - chunk)
	var buf [2 * chunk]byte
	for r := 0; r < bh.rounds; r++ {
		idx := uint64(binary.BigEndian.Uint32(result[:4])) % window

		copy(buf[:chunk], result[:])
		copy(buf[chunk:], mem[idx:idx+chunk])
		result = sha3.Sum256(buf[:])
	}

	return result
}

// keccak256 hashes the concatenation of the data.
func keccak256(data ...[]byte) [32]byte {
	return [32]byte(crypto.Keccak256Hash(data...))
}
