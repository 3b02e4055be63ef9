package database

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"

	"github.com/blastnetwork/blast/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// =============================================================================

// Tx is the transactional information between two parties.
type Tx struct {
	From  AccountID    `json:"from"`  // Account sending the value and paying the fee.
	To    AccountID    `json:"to"`    // Account receiving the value.
	Value *uint256.Int `json:"value"` // Base units transferred.
	Nonce uint64       `json:"nonce"` // Must equal the sender's recorded nonce.
	Data  []byte       `json:"data,omitempty"`
}

// NewTx constructs a new transaction.
func NewTx(from AccountID, to AccountID, value *uint256.Int, nonce uint64, data []byte) (Tx, error) {
	if !from.IsAccountID() {
		return Tx{}, fmt.Errorf("from account is not properly formatted")
	}

	if !to.IsAccountID() {
		return Tx{}, fmt.Errorf("to account is not properly formatted")
	}

	if value == nil {
		value = new(uint256.Int)
	}

	tx := Tx{
		From:  from,
		To:    to,
		Value: value.Clone(),
		Nonce: nonce,
		Data:  data,
	}

	return tx, nil
}

// SigningDigest returns the 32 byte digest a wallet signs:
// sha256(from + to + value + nonce).
func (tx Tx) SigningDigest() []byte {
	var b bytes.Buffer
	b.WriteString(string(tx.From))
	b.WriteString(string(tx.To))
	b.WriteString(amount(tx.Value).Dec())
	b.WriteString(strconv.FormatUint(tx.Nonce, 10))

	hash := sha256.Sum256(b.Bytes())
	return hash[:]
}

// Sign uses the specified private key to sign the transaction.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (SignedTx, error) {

	// Validate the to account address is a valid address.
	if !tx.To.IsAccountID() {
		return SignedTx{}, fmt.Errorf("to account is not properly formatted")
	}

	sig, err := signature.Sign(tx.SigningDigest(), privateKey)
	if err != nil {
		return SignedTx{}, err
	}

	signedTx := SignedTx{
		Tx:        tx,
		Signature: sig,
		PublicKey: signature.PublicKeyBytes(privateKey.PublicKey),
	}

	return signedTx, nil
}

// =============================================================================

// SignedTx is a signed version of the transaction. This is how clients like
// a wallet provide transactions for inclusion into the blockchain. The
// signature is optional unless the node enforces it.
type SignedTx struct {
	Tx
	Signature hexutil.Bytes `json:"signature,omitempty"` // 65 bytes [R|S|V].
	PublicKey hexutil.Bytes `json:"public_key,omitempty"`
}

// Validate checks the accounts of the transaction are properly formatted.
func (tx SignedTx) Validate() error {
	if !tx.From.IsAccountID() {
		return errors.New("invalid account for from account")
	}

	if !tx.To.IsAccountID() {
		return errors.New("invalid account for to account")
	}

	return nil
}

// VerifySignature checks the transaction carries a signature made by the
// key behind the from account.
func (tx SignedTx) VerifySignature() error {
	if len(tx.Signature) == 0 {
		return errors.New("transaction is not signed")
	}

	digest := tx.SigningDigest()

	var pk *ecdsa.PublicKey
	switch len(tx.PublicKey) {
	case 0:
		signer, err := signature.SignerPublicKey(digest, tx.Signature)
		if err != nil {
			return err
		}
		pk = signer

	default:
		if !signature.VerifySignature(digest, tx.Signature, tx.PublicKey) {
			return errors.New("signature does not match public key")
		}

		signer, err := publicKey(tx.PublicKey)
		if err != nil {
			return err
		}
		pk = signer
	}

	fromID, err := ToAccountID(string(tx.From))
	if err != nil {
		return err
	}

	// A hex sender is matched against the 20 byte ethereum address of the key.
	from := PublicKeyToAccountID(*pk)
	if !signature.IsAddress(string(fromID)) {
		from = AccountID(crypto.PubkeyToAddress(*pk).Hex())
	}

	if from != fromID {
		return fmt.Errorf("signed by %s, not by %s", from, tx.From)
	}

	return nil
}

// String implements the fmt.Stringer interface for logging.
func (tx SignedTx) String() string {
	return fmt.Sprintf("%s:%d", tx.From, tx.Nonce)
}

// =============================================================================

// BlockTx represents the transaction as it's recorded inside a block. This
// includes the time the node received it and the fee it paid.
type BlockTx struct {
	SignedTx
	TimeStamp uint64       `json:"timestamp"` // Unix milliseconds the node accepted the transaction.
	Fee       *uint256.Int `json:"fee"`       // Paid to the fee recipient on admission.
	IsReward  bool         `json:"is_reward"` // Minted by the block, no sender debit.
}

// NewBlockTx constructs a new block transaction.
func NewBlockTx(signedTx SignedTx, timeStamp uint64, fee *uint256.Int) BlockTx {
	return BlockTx{
		SignedTx:  signedTx,
		TimeStamp: timeStamp,
		Fee:       amount(fee).Clone(),
	}
}

// NewRewardTx constructs the transaction paying the block reward.
func NewRewardTx(beneficiaryID AccountID, reward *uint256.Int, nonce uint64, timeStamp uint64) BlockTx {
	return BlockTx{
		SignedTx: SignedTx{
			Tx: Tx{
				From:  ZeroAccountID,
				To:    beneficiaryID,
				Value: amount(reward).Clone(),
				Nonce: nonce,
			},
		},
		TimeStamp: timeStamp,
		Fee:       new(uint256.Int),
		IsReward:  true,
	}
}

// Hash implements the merkle Hashable interface for providing a hash
// of a block transaction: sha256(from + to + value + nonce + timestamp).
func (tx BlockTx) Hash() ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(string(tx.From))
	b.WriteString(string(tx.To))
	b.WriteString(amount(tx.Value).Dec())
	b.WriteString(strconv.FormatUint(tx.Nonce, 10))
	b.WriteString(strconv.FormatUint(tx.TimeStamp, 10))

	hash := sha256.Sum256(b.Bytes())
	return hash[:], nil
}

// HashHex returns the transaction hash as a 0x prefixed hex string.
func (tx BlockTx) HashHex() string {
	hash, _ := tx.Hash()
	return hexutil.Encode(hash)
}

// Equals implements the merkle Hashable interface for providing an equality
// check between two block transactions.
func (tx BlockTx) Equals(otherTx BlockTx) bool {
	h1, _ := tx.Hash()
	h2, _ := otherTx.Hash()

	return tx.IsReward == otherTx.IsReward && bytes.Equal(h1, h2)
}

// =============================================================================

// amount treats a nil amount as zero.
func amount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}

	return v
}

// publicKey parses a public key in the 64 byte form or the 65 byte
// uncompressed form.
func publicKey(b []byte) (*ecdsa.PublicKey, error) {
	if len(b) == 64 {
		b = append([]byte{0x04}, b...)
	}

	return crypto.UnmarshalPubkey(b)
}
