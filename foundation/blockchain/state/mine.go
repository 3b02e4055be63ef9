package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blastnetwork/blast/foundation/blockchain/database"
	"github.com/blastnetwork/blast/foundation/blockchain/pow"
	"github.com/holiman/uint256"
)

// ErrNoBeneficiary is returned when a block is requested without a miner
// and the node has no beneficiary configured.
var ErrNoBeneficiary = errors.New("no beneficiary account")

// =============================================================================

// MineNewBlock builds a block holding the pending transactions and the
// reward for the miner, performs the proof of work and appends it to the
// chain. The search runs without the lock and can be cancelled through
// the context. If the chain moved while mining ErrStaleWork is returned.
func (s *State) MineNewBlock(ctx context.Context, beneficiaryID database.AccountID) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: build template")

	block, err := s.blockTemplate(beneficiaryID)
	if err != nil {
		return database.Block{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW: blk[%d] txs[%d]", block.Header.Number, len(block.Trans.Values()))

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	if err := block.Mine(ctx, s.engine, s.evHandler); err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: update local state")

	if err := s.commitBlock(block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// RewardForHeight returns the reward paid to the miner of the next block.
func (s *State) RewardForHeight() *uint256.Int {
	return s.genesis.BlockReward(s.db.Length())
}

// =============================================================================

// blockTemplate captures the tip, the pending transactions and the reward
// transaction into an unsealed block.
func (s *State) blockTemplate(beneficiaryID database.AccountID) (database.Block, error) {
	if beneficiaryID == "" {
		beneficiaryID = s.beneficiaryID
	}
	if beneficiaryID == "" {
		return database.Block{}, ErrNoBeneficiary
	}

	beneficiaryID, err := database.ToAccountID(string(beneficiaryID))
	if err != nil {
		return database.Block{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tip := s.db.LatestBlock()
	length := s.db.Length()

	// The chain never moves backwards in time even if the clock does.
	timeStamp := s.now()
	if timeStamp < tip.Header.TimeStamp {
		timeStamp = tip.Header.TimeStamp
	}

	reward := s.genesis.BlockReward(length)
	rewardTx := database.NewRewardTx(beneficiaryID, reward, s.db.Account(beneficiaryID).Nonce, timeStamp)

	trans := append(s.mempool.PickAll(), rewardTx)

	return database.NewBlock(length, timeStamp, trans, s.difficulty, beneficiaryID, tip.Hash)
}

// commitBlock validates the sealed block against the current tip and, if
// it still extends the tip, applies it to the chain.
func (s *State) commitBlock(block database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tip := s.db.LatestBlock()
	if block.Header.PrevBlockHash != tip.Hash {
		return fmt.Errorf("%w: blk[%d] parent %s, tip %s", ErrStaleWork, block.Header.Number, block.Header.PrevBlockHash, tip.Hash)
	}

	if err := block.ValidateBlock(tip, s.verifier, s.evHandler); err != nil {
		return err
	}

	s.evHandler("state: commitBlock: append block and credit recipients")

	if err := s.db.ApplyBlock(block); err != nil {
		return err
	}

	s.evHandler("state: commitBlock: remove included transactions from mempool")

	var included []database.BlockTx
	for _, tx := range block.Trans.Values() {
		if !tx.IsReward {
			included = append(included, tx)
		}
	}
	s.mempool.Delete(included...)

	s.retargetDifficulty(block, tip)

	s.evHandler("viewer: state: commitBlock: BLOCK: blk[%d] hash[%s] txs[%d] difficulty[%d]", block.Header.Number, block.Hash, len(included), s.difficulty)

	return nil
}

// retargetDifficulty compares the time between the block and its parent
// with the block time. Slower than 1.5x lowers the difficulty, faster
// than half raises it. Only the latest pair of blocks is considered.
func (s *State) retargetDifficulty(block database.Block, parent database.Block) {
	delta := time.Duration(block.Header.TimeStamp-parent.Header.TimeStamp) * time.Millisecond
	target := time.Duration(s.genesis.BlockTime) * time.Second

	before := s.difficulty

	switch {
	case 2*delta > 3*target:
		if s.difficulty > 1 {
			s.difficulty--
		}

	case 2*delta < target:
		if s.difficulty < pow.MaxDifficulty {
			s.difficulty++
		}
	}

	if before != s.difficulty {
		s.evHandler("state: retargetDifficulty: delta[%v] target[%v] difficulty[%d -> %d]", delta, target, before, s.difficulty)
	}
}
