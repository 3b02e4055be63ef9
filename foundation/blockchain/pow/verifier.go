package pow

import (
	"crypto/sha256"

	"github.com/decred/dcrd/container/lru"
	"github.com/holiman/uint256"
)

// verifyKey identifies one evaluation of the engine.
type verifyKey struct {
	header [32]byte
	nonce  uint64
}

// Verifier evaluates an engine once per header and nonce and remembers the
// digest. Re-validating a chain with a memory hard engine only pays for the
// blocks it has not seen yet.
type Verifier struct {
	engine Engine
	cache  *lru.Map[verifyKey, Digest]
}

// NewVerifier constructs a verifier holding up to size digests.
func NewVerifier(engine Engine, size uint32) *Verifier {
	return &Verifier{
		engine: engine,
		cache:  lru.NewMap[verifyKey, Digest](size),
	}
}

// Engine returns the engine used for evaluations.
func (v *Verifier) Engine() Engine {
	return v.engine
}

// Name implements the Engine interface.
func (v *Verifier) Name() string {
	return v.engine.Name()
}

// Digest implements the Engine interface using the cache.
func (v *Verifier) Digest(header []byte, nonce uint64) Digest {
	key := verifyKey{
		header: sha256.Sum256(header),
		nonce:  nonce,
	}

	if digest, exists := v.cache.Get(key); exists {
		return digest
	}

	digest := v.engine.Digest(header, nonce)
	v.cache.Put(key, digest)

	return digest
}

// Verify recomputes the digest and checks it against the target.
func (v *Verifier) Verify(header []byte, nonce uint64, target *uint256.Int) (Digest, bool) {
	digest := v.Digest(header, nonce)
	return digest, Meets(digest, target)
}

// HitRatio returns the share of lookups answered from the cache.
func (v *Verifier) HitRatio() float64 {
	return v.cache.HitRatio()
}
