package state

import (
	"github.com/blastnetwork/blast/foundation/blockchain/database"
	"github.com/blastnetwork/blast/foundation/blockchain/genesis"
)

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveLatestBlock returns a copy the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveMempool returns a copy of the pending transactions in the order
// they will be mined.
func (s *State) RetrieveMempool() []database.BlockTx {
	return s.mempool.PickAll()
}

// RetrieveMempoolLength returns the current length of the mempool.
func (s *State) RetrieveMempoolLength() int {
	return s.mempool.Count()
}

// RetrieveDifficulty returns the difficulty the next block is mined at.
func (s *State) RetrieveDifficulty() uint {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.difficulty
}

// RetrieveBeneficiary returns the account rewarded by this node's mining.
func (s *State) RetrieveBeneficiary() database.AccountID {
	return s.beneficiaryID
}

// RetrieveAccounts returns a copy of every account the chain knows.
func (s *State) RetrieveAccounts() map[database.AccountID]database.Account {
	return s.db.CopyAccounts()
}

// RetrieveFeeRecipient returns the account credited with every fee.
func (s *State) RetrieveFeeRecipient() database.AccountID {
	return s.feeRecipient
}

// RetrieveAlgorithm returns the name of the proof of work function.
func (s *State) RetrieveAlgorithm() string {
	return s.engine.Name()
}
