// Package database handles all the lower level support for maintaining the
// blockchain in memory and the database of account information.
package database

import (
	"errors"
	"fmt"
	"sync"

	"github.com/blastnetwork/blast/foundation/blockchain/genesis"
	"github.com/blastnetwork/blast/foundation/blockchain/pow"
	"github.com/holiman/uint256"
)

// Set of accounting errors returned when applying a transaction.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidNonce        = errors.New("invalid nonce")
)

// ErrNotFound is returned when a block is not in the chain.
var ErrNotFound = errors.New("block not found")

// Database manages the chain of blocks and the accounts who have transacted
// on the blockchain.
type Database struct {
	mu sync.RWMutex

	genesis  genesis.Genesis
	accounts map[AccountID]Account
	blocks   []Block
	byHash   map[string]uint64
}

// New constructs a new database, applies the account genesis information
// and appends the genesis block.
func New(gen genesis.Genesis, genesisBlock Block) (*Database, error) {
	if genesisBlock.Header.Number != 0 {
		return nil, fmt.Errorf("genesis block has number %d", genesisBlock.Header.Number)
	}

	db := Database{
		genesis:  gen,
		accounts: make(map[AccountID]Account),
		byHash:   make(map[string]uint64),
	}

	// Update the database with account balance information from genesis.
	for accountStr, balance := range gen.Balances {
		accountID, err := ToAccountID(accountStr)
		if err != nil {
			return nil, err
		}

		account := db.accounts[accountID]
		account.AccountID = accountID
		account.Balance.Add(&account.Balance, gen.ToBaseUnits(balance))
		db.accounts[accountID] = account
	}

	db.blocks = append(db.blocks, genesisBlock)
	db.byHash[genesisBlock.Hash] = 0

	return &db, nil
}

// Genesis returns the genesis information the database was built from.
func (db *Database) Genesis() genesis.Genesis {
	return db.genesis
}

// =============================================================================

// Account returns the account, or a zero account when the account has
// never been seen.
func (db *Database) Account(accountID AccountID) Account {
	account, exists := db.FindAccount(accountID)
	if !exists {
		return newAccount(accountID, new(uint256.Int))
	}

	return account
}

// FindAccount returns the account and whether the ledger has recorded it.
func (db *Database) FindAccount(accountID AccountID) (Account, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	account, exists := db.accounts[accountID]
	return account, exists
}

// CopyAccounts makes a copy of the current accounts in the database.
func (db *Database) CopyAccounts() map[AccountID]Account {
	db.mu.RLock()
	defer db.mu.RUnlock()

	accounts := make(map[AccountID]Account, len(db.accounts))
	for accountID, account := range db.accounts {
		accounts[accountID] = account
	}

	return accounts
}

// ApplyTransaction performs the business logic for admitting a transaction:
// the sender pays the value and the fee, the fee recipient is credited with
// the fee and the sender nonce moves forward. The recipient is credited
// when the block holding the transaction is applied.
func (db *Database) ApplyTransaction(tx BlockTx, feeRecipient AccountID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	from := db.accounts[tx.From]
	from.AccountID = tx.From

	// Perform basic accounting checks.
	total, overflow := new(uint256.Int).AddOverflow(amount(tx.Value), amount(tx.Fee))
	if overflow || from.Balance.Lt(total) {
		return fmt.Errorf("%w: bal %s, needed %s", ErrInsufficientBalance, from.Balance.Dec(), total.Dec())
	}

	if tx.Nonce != from.Nonce {
		return fmt.Errorf("%w: current %d, provided %d", ErrInvalidNonce, from.Nonce, tx.Nonce)
	}

	from.Balance.Sub(&from.Balance, total)
	from.Nonce++
	db.accounts[tx.From] = from

	// The fee recipient might be the sender so read it after the debit.
	recipient := db.accounts[feeRecipient]
	recipient.AccountID = feeRecipient
	recipient.Balance.Add(&recipient.Balance, amount(tx.Fee))
	db.accounts[feeRecipient] = recipient

	return nil
}

// ApplyBlock appends the block to the chain, credits every recipient of the
// block transactions and moves the beneficiary nonce forward.
func (db *Database) ApplyBlock(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if block.Header.Number != uint64(len(db.blocks)) {
		return fmt.Errorf("block number %d, exp %d", block.Header.Number, len(db.blocks))
	}

	tip := db.blocks[len(db.blocks)-1]
	if block.Header.PrevBlockHash != tip.Hash {
		return fmt.Errorf("block parent %s, exp %s", block.Header.PrevBlockHash, tip.Hash)
	}

	for _, tx := range block.Trans.Values() {
		to := db.accounts[tx.To]
		to.AccountID = tx.To
		to.Balance.Add(&to.Balance, amount(tx.Value))
		db.accounts[tx.To] = to
	}

	bnfc := db.accounts[block.Header.BeneficiaryID]
	bnfc.AccountID = block.Header.BeneficiaryID
	bnfc.Nonce++
	db.accounts[block.Header.BeneficiaryID] = bnfc

	db.blocks = append(db.blocks, block)
	db.byHash[block.Hash] = block.Header.Number

	return nil
}

// =============================================================================

// LatestBlock returns the tip of the chain.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.blocks[len(db.blocks)-1]
}

// Length returns the number of blocks including the genesis block.
func (db *Database) Length() uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return uint64(len(db.blocks))
}

// GetBlock returns the block at the specified number.
func (db *Database) GetBlock(num uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if num >= uint64(len(db.blocks)) {
		return Block{}, fmt.Errorf("%w: number %d", ErrNotFound, num)
	}

	return db.blocks[num], nil
}

// GetBlockByHash returns the block with the specified hash.
func (db *Database) GetBlockByHash(hash string) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	num, exists := db.byHash[hash]
	if !exists {
		return Block{}, fmt.Errorf("%w: hash %s", ErrNotFound, hash)
	}

	return db.blocks[num], nil
}

// Blocks returns a copy of the blocks in the range [from, to]. The range is
// clamped to the chain.
func (db *Database) Blocks(from uint64, to uint64) []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	last := uint64(len(db.blocks)) - 1
	if to > last {
		to = last
	}
	if from > to {
		return nil
	}

	out := make([]Block, 0, to-from+1)
	out = append(out, db.blocks[from:to+1]...)

	return out
}

// ValidateChain walks the chain from block 1 checking every block against
// its parent. The first failure is returned.
func (db *Database) ValidateChain(engine pow.Engine, evHandler func(v string, args ...any)) error {
	_, err := db.ValidateFrom(1, engine, evHandler)
	return err
}

// ValidateFrom checks the blocks from the specified number up to the tip
// against their parents and returns the number of the tip it checked. The
// blocks are checked outside the lock so new blocks can be applied while a
// long chain is walked.
func (db *Database) ValidateFrom(from uint64, engine pow.Engine, evHandler func(v string, args ...any)) (uint64, error) {
	db.mu.RLock()
	blocks := make([]Block, len(db.blocks))
	copy(blocks, db.blocks)
	db.mu.RUnlock()

	if from == 0 {
		from = 1
	}

	for i := from; i < uint64(len(blocks)); i++ {
		if err := blocks[i].ValidateBlock(blocks[i-1], engine, evHandler); err != nil {
			return i - 1, err
		}
	}

	return uint64(len(blocks)) - 1, nil
}
