package state

import (
	"fmt"

	"github.com/blastnetwork/blast/foundation/blockchain/database"
	"github.com/holiman/uint256"
)

// SubmitTransaction accepts a transaction from a wallet for inclusion. The
// sender pays the value and the fee now, the fee recipient is paid now and
// the recipient is paid when the transaction is mined. It returns the
// number of the block the transaction is expected to land in.
func (s *State) SubmitTransaction(signedTx database.SignedTx) (uint64, error) {
	_, number, err := s.SubmitTransactionReceipt(signedTx)
	return number, err
}

// SubmitTransactionReceipt is SubmitTransaction that also returns the
// transaction as the node recorded it, with its timestamp, fee and hash.
func (s *State) SubmitTransactionReceipt(signedTx database.SignedTx) (database.BlockTx, uint64, error) {
	tx, number, err := s.admitTransaction(signedTx)
	if err != nil {
		return database.BlockTx{}, 0, err
	}

	if s.Worker != nil {
		s.Worker.SignalStartMining()
	}

	return tx, number, nil
}

// admitTransaction validates and applies the transaction under the lock.
func (s *State) admitTransaction(signedTx database.SignedTx) (database.BlockTx, uint64, error) {
	if err := signedTx.Validate(); err != nil {
		return database.BlockTx{}, 0, fmt.Errorf("%w: %s", database.ErrInvalidAccount, err)
	}

	// Accounts are keyed by their checksummed form.
	from, err := database.ToAccountID(string(signedTx.From))
	if err != nil {
		return database.BlockTx{}, 0, err
	}
	to, err := database.ToAccountID(string(signedTx.To))
	if err != nil {
		return database.BlockTx{}, 0, err
	}

	if s.verifySignatures {
		if err := signedTx.VerifySignature(); err != nil {
			return database.BlockTx{}, 0, fmt.Errorf("%w: %s", ErrInvalidSignature, err)
		}
	}

	signedTx.From = from
	signedTx.To = to
	if signedTx.Value == nil {
		signedTx.Value = new(uint256.Int)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := database.NewBlockTx(signedTx, s.now(), s.genesis.Fee(signedTx.Value))

	if err := s.db.ApplyTransaction(tx, s.feeRecipient); err != nil {
		s.evHandler("state: SubmitTransaction: REJECTED: tx[%s]: %s", signedTx, err)
		return database.BlockTx{}, 0, err
	}

	n := s.mempool.Upsert(tx)

	s.evHandler("viewer: state: SubmitTransaction: ACCEPTED: tx[%s] value[%s] fee[%s] pending[%d]", signedTx, tx.Value.Dec(), tx.Fee.Dec(), n)

	return tx, s.db.LatestBlock().Header.Number + 1, nil
}
