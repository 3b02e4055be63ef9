package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/blastnetwork/blast/foundation/blockchain/merkle"
	"github.com/blastnetwork/blast/foundation/blockchain/pow"
	"github.com/blastnetwork/blast/foundation/blockchain/signature"
)

// ErrInvalidProofOfWork is returned when a block hash does not match its
// header or does not meet its difficulty.
var ErrInvalidProofOfWork = errors.New("invalid proof of work")

// =============================================================================

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Number        uint64    `json:"number"`          // Position in the chain, genesis is 0.
	PrevBlockHash string    `json:"prev_block_hash"` // Hash of the previous block in the chain.
	TimeStamp     uint64    `json:"timestamp"`       // Unix milliseconds the block was built.
	ReceiptsRoot  string    `json:"receipts_root"`   // Merkle root of the block transactions.
	Difficulty    uint      `json:"difficulty"`      // Number of leading zero hex digits the hash needs.
	Nonce         uint64    `json:"nonce"`           // Value identified to solve the hash solution.
	ExtraData     string    `json:"extra_data"`
	BeneficiaryID AccountID `json:"beneficiary"` // The account who is receiving the reward.
}

// Block represents a group of transactions batched together. Once appended
// to the chain a block is never modified.
type Block struct {
	Header BlockHeader
	Hash   string
	Trans  *merkle.Tree[BlockTx]
}

// NewBlock constructs an unsealed block. The hash is empty until the block
// is mined or ComputeHash is stored by the caller.
func NewBlock(number uint64, timeStamp uint64, trans []BlockTx, difficulty uint, beneficiaryID AccountID, prevBlockHash string) (Block, error) {

	// Construct a merkle tree from the transactions for this block. The root
	// of this tree will be part of the block to be mined.
	tree, err := merkle.NewTree(trans)
	if err != nil {
		return Block{}, err
	}

	nb := Block{
		Header: BlockHeader{
			Number:        number,
			PrevBlockHash: prevBlockHash,
			TimeStamp:     timeStamp,
			ReceiptsRoot:  tree.RootHex(),
			Difficulty:    difficulty,
			BeneficiaryID: beneficiaryID,
		},
		Trans: tree,
	}

	return nb, nil
}

// SealHeader returns the bytes the proof of work is computed over: the
// block number, previous hash, timestamp, receipts root, difficulty and
// extra data. The nonce is supplied to the engine separately.
func (b Block) SealHeader() []byte {
	var s strings.Builder
	s.WriteString(strconv.FormatUint(b.Header.Number, 10))
	s.WriteString(b.Header.PrevBlockHash)
	s.WriteString(strconv.FormatUint(b.Header.TimeStamp, 10))
	s.WriteString(b.Header.ReceiptsRoot)
	s.WriteString(strconv.FormatUint(uint64(b.Header.Difficulty), 10))
	s.WriteString(b.Header.ExtraData)

	return []byte(s.String())
}

// ComputeHash recomputes the hash of the block from its header and nonce.
func (b Block) ComputeHash(engine pow.Engine) string {
	return engine.Digest(b.SealHeader(), b.Header.Nonce).Hex()
}

// Mine searches nonces from 0 until the hash meets the block difficulty.
// Pointer semantics are being used since a nonce is being discovered.
func (b *Block) Mine(ctx context.Context, engine pow.Engine, ev func(v string, args ...any)) error {
	ev("database: Mine: MINING: started: blk[%d] difficulty[%d] txs[%d]", b.Header.Number, b.Header.Difficulty, len(b.Trans.Values()))
	defer ev("database: Mine: MINING: completed: blk[%d]", b.Header.Number)

	nonce, digest, err := pow.Search(ctx, engine, b.SealHeader(), pow.Target(b.Header.Difficulty), 0, 1)
	if err != nil {
		ev("database: Mine: MINING: CANCELLED: blk[%d]", b.Header.Number)
		return err
	}

	b.Header.Nonce = nonce
	b.Hash = digest.Hex()

	ev("database: Mine: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: nonce[%d]", b.Header.PrevBlockHash, b.Hash, nonce)

	return nil
}

// IsValidProofOfWork reports whether the stored hash is the recomputed hash
// and meets the block difficulty.
func (b Block) IsValidProofOfWork(engine pow.Engine) bool {
	digest := engine.Digest(b.SealHeader(), b.Header.Nonce)
	if digest.Hex() != b.Hash {
		return false
	}

	return pow.Meets(digest, pow.Target(b.Header.Difficulty))
}

// ValidateBlock takes a block and validates it as the successor of the
// previous block.
func (b Block) ValidateBlock(previousBlock Block, engine pow.Engine, evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateBlock: validate: blk[%d]: check: block number is the next number", b.Header.Number)

	nextNumber := previousBlock.Header.Number + 1
	if b.Header.Number != nextNumber {
		return fmt.Errorf("this block is not the next number, got %d, exp %d", b.Header.Number, nextNumber)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: parent hash does match parent block", b.Header.Number)

	if b.Header.PrevBlockHash != previousBlock.Hash {
		return fmt.Errorf("parent block hash doesn't match our known parent, got %s, exp %s", b.Header.PrevBlockHash, previousBlock.Hash)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block's timestamp is not before parent block's timestamp", b.Header.Number)

	if b.Header.TimeStamp < previousBlock.Header.TimeStamp {
		return fmt.Errorf("block timestamp is before parent block, parent %d, block %d", previousBlock.Header.TimeStamp, b.Header.TimeStamp)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: block hash has been solved", b.Header.Number)

	if !b.IsValidProofOfWork(engine) {
		return fmt.Errorf("%w: blk[%d] hash %s", ErrInvalidProofOfWork, b.Header.Number, b.Hash)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: merkle root does match transactions", b.Header.Number)

	if b.Header.ReceiptsRoot != b.Trans.RootHex() {
		return fmt.Errorf("merkle root does not match transactions, got %s, exp %s", b.Trans.RootHex(), b.Header.ReceiptsRoot)
	}

	return nil
}

// =============================================================================

// NewGenesisBlock constructs block 0. It carries no transactions and its
// hash is computed with nonce 0 without meeting any difficulty.
func NewGenesisBlock(timeStamp uint64, difficulty uint, miner AccountID, engine pow.Engine) (Block, error) {
	block, err := NewBlock(0, timeStamp, nil, difficulty, miner, signature.ZeroHash)
	if err != nil {
		return Block{}, err
	}
	block.Hash = block.ComputeHash(engine)

	return block, nil
}

// =============================================================================

// BlockData represents what is served to clients for a block.
type BlockData struct {
	Hash   string      `json:"hash"`
	Header BlockHeader `json:"block"`
	Trans  []BlockTx   `json:"trans"`
}

// NewBlockData constructs the value to serialize.
func NewBlockData(block Block) BlockData {
	blockData := BlockData{
		Hash:   block.Hash,
		Header: block.Header,
		Trans:  block.Trans.Values(),
	}

	return blockData
}

// ToBlock converts BlockData into a Block.
func ToBlock(blockData BlockData) (Block, error) {
	tree, err := merkle.NewTree(blockData.Trans)
	if err != nil {
		return Block{}, err
	}

	block := Block{
		Header: blockData.Header,
		Hash:   blockData.Hash,
		Trans:  tree,
	}

	return block, nil
}
