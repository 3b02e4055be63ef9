package state

import (
	"errors"
	"strings"

	"github.com/blastnetwork/blast/foundation/blockchain/database"
	"github.com/blastnetwork/blast/foundation/blockchain/merkle"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// QueryLatest represents to query the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1

// =============================================================================

// QueryBalance returns the balance of the account. Unknown and malformed
// accounts have a zero balance.
func (s *State) QueryBalance(accountID database.AccountID) *uint256.Int {
	account, err := s.QueryAccounts(accountID)
	if err != nil {
		return new(uint256.Int)
	}

	return account.Balance.Clone()
}

// QueryNonce returns the next nonce the account must use.
func (s *State) QueryNonce(accountID database.AccountID) uint64 {
	account, err := s.QueryAccounts(accountID)
	if err != nil {
		return 0
	}

	return account.Nonce
}

// QueryAccounts returns a copy of the account from the database.
func (s *State) QueryAccounts(accountID database.AccountID) (database.Account, error) {
	accountID, err := database.ToAccountID(string(accountID))
	if err != nil {
		return database.Account{}, err
	}

	account, exists := s.db.FindAccount(accountID)
	if !exists {
		return database.Account{}, errors.New("not found")
	}

	return account, nil
}

// QueryBlockByNumber returns the block at the specified number.
func (s *State) QueryBlockByNumber(number uint64) (database.Block, bool) {
	block, err := s.db.GetBlock(number)
	if err != nil {
		return database.Block{}, false
	}

	return block, true
}

// QueryBlockByHash returns the block with the specified hash.
func (s *State) QueryBlockByHash(hash string) (database.Block, bool) {
	block, err := s.db.GetBlockByHash(strings.ToLower(hash))
	if err != nil {
		return database.Block{}, false
	}

	return block, true
}

// QueryBlocksByNumber returns the set of blocks based on block numbers.
func (s *State) QueryBlocksByNumber(from uint64, to uint64) []database.Block {
	if from == QueryLatest {
		from = s.db.LatestBlock().Header.Number
		to = from
	}
	if to == QueryLatest {
		to = s.db.LatestBlock().Header.Number
	}

	return s.db.Blocks(from, to)
}

// QueryBlocksByAccount returns the set of blocks by account. If the account
// is empty, all blocks are returned.
func (s *State) QueryBlocksByAccount(accountID database.AccountID) []database.Block {
	if accountID != "" {
		if id, err := database.ToAccountID(string(accountID)); err == nil {
			accountID = id
		}
	}

	var out []database.Block
	for _, block := range s.db.Blocks(0, QueryLatest) {
		if accountID == "" || block.Header.BeneficiaryID == accountID {
			out = append(out, block)
			continue
		}

		for _, tx := range block.Trans.Values() {
			if tx.From == accountID || tx.To == accountID {
				out = append(out, block)
				break
			}
		}
	}

	return out
}

// =============================================================================

// TxProof is the merkle proof that a transaction is part of a block.
type TxProof struct {
	BlockNumber  uint64   `json:"block_number"`
	BlockHash    string   `json:"block_hash"`
	ReceiptsRoot string   `json:"receipts_root"`
	Tx           string   `json:"tx"`
	Proof        []string `json:"proof"`
	Order        []int64  `json:"order"`
}

// QueryTxProof locates the transaction with the specified hash and builds
// the proof of its inclusion.
func (s *State) QueryTxProof(txHash string) (TxProof, bool) {
	txHash = strings.ToLower(txHash)

	for _, block := range s.db.Blocks(0, QueryLatest) {
		for _, tx := range block.Trans.Values() {
			if tx.HashHex() != txHash {
				continue
			}

			proof, order, err := block.Trans.Proof(tx)
			if err != nil {
				s.evHandler("state: QueryTxProof: ERROR: %s", err)
				return TxProof{}, false
			}

			txProof := TxProof{
				BlockNumber:  block.Header.Number,
				BlockHash:    block.Hash,
				ReceiptsRoot: block.Header.ReceiptsRoot,
				Tx:           txHash,
				Proof:        make([]string, len(proof)),
				Order:        order,
			}
			for i, p := range proof {
				txProof.Proof[i] = hexutil.Encode(p)
			}

			return txProof, true
		}
	}

	return TxProof{}, false
}

// VerifyTxProof checks the proof against its receipts root.
func VerifyTxProof(txProof TxProof) bool {
	leaf, err := hexutil.Decode(txProof.Tx)
	if err != nil {
		return false
	}

	root, err := hexutil.Decode(txProof.ReceiptsRoot)
	if err != nil {
		return false
	}

	proof := make([][]byte, len(txProof.Proof))
	for i, p := range txProof.Proof {
		if proof[i], err = hexutil.Decode(p); err != nil {
			return false
		}
	}

	return merkle.VerifyProof(leaf, proof, txProof.Order, root)
}

// =============================================================================

// ValidateChain walks the chain from block 1 checking the parent linkage
// and the proof of work of every block.
func (s *State) ValidateChain() bool {
	return s.validateFrom(1)
}

// ValidateNewBlocks checks only the blocks added since the last successful
// validation. Readiness checks use it so a long chain is not re-hashed on
// every call.
func (s *State) ValidateNewBlocks() bool {
	s.validMu.Lock()
	from := s.validatedUpTo + 1
	s.validMu.Unlock()

	return s.validateFrom(from)
}

// validateFrom checks the chain from the specified block and records how far
// the chain is known to be valid.
func (s *State) validateFrom(from uint64) bool {
	tip, err := s.db.ValidateFrom(from, s.verifier, s.evHandler)
	if err != nil {
		s.evHandler("state: ValidateChain: INVALID: %s", err)
		return false
	}

	s.validMu.Lock()
	defer s.validMu.Unlock()

	if tip > s.validatedUpTo {
		s.validatedUpTo = tip
	}

	return true
}
