package state

import (
	"fmt"
	"strings"

	"github.com/blastnetwork/blast/foundation/blockchain/database"
	"github.com/blastnetwork/blast/foundation/blockchain/pow"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Work is a block template handed to an external miner. The miner searches
// for a nonce where the engine digest of Header and the nonce is below
// Target.
type Work struct {
	Number     uint64 `json:"number"`
	PrevHash   string `json:"prev_hash"`
	Header     string `json:"header"` // Hex encoded seal header, also the work id.
	Target     string `json:"target"` // Hex encoded 32 byte target.
	Difficulty uint   `json:"difficulty"`
	Algorithm  string `json:"algorithm"`
}

// GetWork builds a block template for the miner and remembers it until a
// solution is submitted or it expires. An empty miner uses the node's
// beneficiary.
func (s *State) GetWork(beneficiaryID database.AccountID) (Work, error) {
	block, err := s.blockTemplate(beneficiaryID)
	if err != nil {
		return Work{}, err
	}

	header := hexutil.Encode(block.SealHeader())
	s.work.Put(header, block)

	target := pow.Target(block.Header.Difficulty).Bytes32()

	work := Work{
		Number:     block.Header.Number,
		PrevHash:   block.Header.PrevBlockHash,
		Header:     header,
		Target:     hexutil.Encode(target[:]),
		Difficulty: block.Header.Difficulty,
		Algorithm:  s.engine.Name(),
	}

	s.evHandler("state: GetWork: blk[%d] difficulty[%d] txs[%d] outstanding[%d]", work.Number, work.Difficulty, len(block.Trans.Values()), s.work.Len())

	return work, nil
}

// SubmitWork verifies a solution for outstanding work and appends the
// block. The digest is optional, when provided it must match the digest
// the node computes.
func (s *State) SubmitWork(nonce uint64, digest string, header string) (database.Block, error) {
	header = strings.ToLower(header)

	block, exists := s.work.Peek(header)
	if !exists {
		return database.Block{}, fmt.Errorf("%w: header %s", ErrUnknownWork, header)
	}

	// The tip may have moved since the work was handed out.
	if tip := s.RetrieveLatestBlock(); block.Header.PrevBlockHash != tip.Hash {
		s.work.Delete(header)
		return database.Block{}, fmt.Errorf("%w: blk[%d] parent %s, tip %s", ErrStaleWork, block.Header.Number, block.Header.PrevBlockHash, tip.Hash)
	}

	block.Header.Nonce = nonce

	computed, ok := s.verifier.Verify(block.SealHeader(), nonce, pow.Target(block.Header.Difficulty))
	if !ok {
		return database.Block{}, fmt.Errorf("%w: blk[%d] nonce %d digest %s", ErrInvalidProofOfWork, block.Header.Number, nonce, computed.Hex())
	}

	if digest != "" && !strings.EqualFold(digest, computed.Hex()) {
		return database.Block{}, fmt.Errorf("%w: blk[%d] digest %s, computed %s", ErrInvalidProofOfWork, block.Header.Number, digest, computed.Hex())
	}

	block.Hash = computed.Hex()

	if err := s.commitBlock(block); err != nil {
		return database.Block{}, err
	}
	s.work.Delete(header)

	s.evHandler("state: SubmitWork: ACCEPTED: blk[%d] hash[%s] nonce[%d]", block.Header.Number, block.Hash, nonce)

	// Any local mining on the old tip is wasted work.
	if s.Worker != nil {
		s.Worker.SignalCancelMining()
	}

	return block, nil
}
