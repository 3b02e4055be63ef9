// Package state is the core API for the blockchain and implements all the
// business rules and processing. The State is the only value allowed to
// change balances, nonces and the chain.
package state

import (
	"errors"
	"sync"
	"time"

	"github.com/blastnetwork/blast/foundation/blockchain/database"
	"github.com/blastnetwork/blast/foundation/blockchain/genesis"
	"github.com/blastnetwork/blast/foundation/blockchain/mempool"
	"github.com/blastnetwork/blast/foundation/blockchain/pow"
	"github.com/decred/dcrd/container/lru"
)

// Set of errors returned by the ledger operations.
var (
	ErrInsufficientBalance = database.ErrInsufficientBalance
	ErrInvalidNonce        = database.ErrInvalidNonce
	ErrInvalidProofOfWork  = database.ErrInvalidProofOfWork
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrUnknownWork         = errors.New("unknown work")
	ErrStaleWork           = errors.New("stale work")
)

// Defaults for the caches held by the state.
const (
	defaultVerifyCacheSize = 1024
	defaultWorkCacheSize   = 64
)

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of blocks and transactions.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for background mining.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalCancelMining()
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	BeneficiaryID    database.AccountID
	Genesis          genesis.Genesis
	Engine           pow.Engine // Built from the genesis when nil.
	VerifySignatures bool
	VerifyCacheSize  uint32
	WorkCacheSize    uint32
	Clock            func() time.Time
	EvHandler        EventHandler
}

// State manages the blockchain database.
type State struct {
	mu sync.Mutex

	beneficiaryID    database.AccountID
	feeRecipient     database.AccountID
	evHandler        EventHandler
	clock            func() time.Time
	verifySignatures bool

	validMu       sync.Mutex
	validatedUpTo uint64

	genesis    genesis.Genesis
	difficulty uint
	engine     pow.Engine
	verifier   *pow.Verifier
	mempool    *mempool.Mempool
	db         *database.Database
	work       *lru.Map[string, database.Block]

	Worker Worker
}

// New constructs a new blockchain for data management and appends the
// genesis block.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	gen := cfg.Genesis
	if err := gen.Validate(); err != nil {
		return nil, err
	}

	feeRecipient, err := database.ToAccountID(gen.FeeRecipient)
	if err != nil {
		return nil, err
	}

	beneficiaryID := cfg.BeneficiaryID
	if beneficiaryID != "" {
		if beneficiaryID, err = database.ToAccountID(string(beneficiaryID)); err != nil {
			return nil, err
		}
	}

	engine := cfg.Engine
	if engine == nil {
		engine, err = pow.New(gen.PoW.Algorithm, gen.PoW.MemorySize, gen.PoW.Rounds)
		if err != nil {
			return nil, err
		}
	}

	verifyCacheSize := cfg.VerifyCacheSize
	if verifyCacheSize == 0 {
		verifyCacheSize = defaultVerifyCacheSize
	}
	verifier := pow.NewVerifier(engine, verifyCacheSize)

	// The genesis miner is recorded as written when it is not an account.
	miner := database.AccountID(gen.Miner)
	if accountID, err := database.ToAccountID(gen.Miner); err == nil {
		miner = accountID
	}

	genesisBlock, err := database.NewGenesisBlock(uint64(gen.Date.UnixMilli()), gen.Difficulty, miner, verifier)
	if err != nil {
		return nil, err
	}

	db, err := database.New(gen, genesisBlock)
	if err != nil {
		return nil, err
	}

	workCacheSize := cfg.WorkCacheSize
	if workCacheSize == 0 {
		workCacheSize = defaultWorkCacheSize
	}

	// Outstanding work expires once several block times have passed.
	workTTL := 4 * time.Duration(gen.BlockTime) * time.Second

	state := State{
		beneficiaryID:    beneficiaryID,
		feeRecipient:     feeRecipient,
		evHandler:        ev,
		clock:            clock,
		verifySignatures: cfg.VerifySignatures,

		genesis:    gen,
		difficulty: gen.Difficulty,
		engine:     engine,
		verifier:   verifier,
		mempool:    mempool.New(),
		db:         db,
		work:       lru.NewMapWithDefaultTTL[string, database.Block](workCacheSize, workTTL),
	}

	ev("state: New: genesis: hash[%s] engine[%s] difficulty[%d]", genesisBlock.Hash, engine.Name(), gen.Difficulty)

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return nil
}

// now returns the current time in unix milliseconds.
func (s *State) now() uint64 {
	return uint64(s.clock().UnixMilli())
}
