package database

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/blastnetwork/blast/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrInvalidAccount is returned when a string is not a BLAST or a 20 byte
// hex address.
var ErrInvalidAccount = errors.New("invalid account format")

// ZeroAccountID is the sender of block rewards.
const ZeroAccountID AccountID = "0x0000000000000000000000000000000000000000"

// =============================================================================

// Account represents information stored in the database for an individual account.
type Account struct {
	AccountID AccountID
	Nonce     uint64
	Balance   uint256.Int
}

// newAccount constructs a new account value for use.
func newAccount(accountID AccountID, balance *uint256.Int) Account {
	account := Account{
		AccountID: accountID,
	}
	account.Balance.Set(balance)

	return account
}

// =============================================================================

// AccountID represents an account id that is used to sign transactions and is
// associated with transactions on the blockchain. Values built by
// ToAccountID carry their checksum so equal accounts compare equal.
type AccountID string

// ToAccountID validates the string as a BLAST address or a 20 byte hex
// address and returns its checksummed form.
func ToAccountID(s string) (AccountID, error) {
	switch {
	case signature.IsAddress(s):
		return AccountID(signature.ApplyChecksum(s)), nil

	case common.IsHexAddress(s) && has0xPrefix(s):
		return AccountID(common.HexToAddress(s).Hex()), nil
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidAccount, s)
}

// MustAccountID is ToAccountID for constants known to be valid.
func MustAccountID(s string) AccountID {
	accountID, err := ToAccountID(s)
	if err != nil {
		panic(err)
	}

	return accountID
}

// PublicKeyToAccountID converts the public key to an account value.
func PublicKeyToAccountID(pk ecdsa.PublicKey) AccountID {
	return AccountID(signature.PublicKeyToAddress(pk))
}

// IsAccountID verifies whether the underlying data represents a valid
// account in either supported format.
func (a AccountID) IsAccountID() bool {
	_, err := ToAccountID(string(a))
	return err == nil
}

// has0xPrefix validates the account starts with a 0x.
func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
