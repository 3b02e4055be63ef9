// Package signature provides helper functions for handling the blockchain
// signature needs: key pairs, checksummed addresses, digests and
// secp256k1 signatures.
package signature

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents a hash code of zeros.
const ZeroHash string = "0x0000000000000000000000000000000000000000000000000000000000000000"

// AddressPrefix starts every address derived by this package.
const AddressPrefix = "0xBLAST"

// addressHexLength is the number of hex digits kept from the public key hash.
const addressHexLength = 34

// =============================================================================

// KeyPair is a freshly generated account.
type KeyPair struct {
	PrivateKey *ecdsa.PrivateKey
	PublicKey  []byte // 64 bytes, uncompressed point without the 0x04 marker.
	Address    string
}

// GenerateKeyPair creates a new secp256k1 key pair and derives its address.
func GenerateKeyPair() (KeyPair, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return KeyPair{}, err
	}

	kp := KeyPair{
		PrivateKey: privateKey,
		PublicKey:  PublicKeyBytes(privateKey.PublicKey),
		Address:    PublicKeyToAddress(privateKey.PublicKey),
	}

	return kp, nil
}

// PublicKeyBytes returns the 64 byte form of the public key.
func PublicKeyBytes(pk ecdsa.PublicKey) []byte {
	return crypto.FromECDSAPub(&pk)[1:]
}

// PublicKeyToAddress hashes the public key and keeps the trailing 17 bytes
// behind the BLAST prefix, then applies the checksum.
func PublicKeyToAddress(pk ecdsa.PublicKey) string {
	hash := crypto.Keccak256(PublicKeyBytes(pk))
	raw := hex.EncodeToString(hash)

	return ApplyChecksum(AddressPrefix + raw[len(raw)-addressHexLength:])
}

// ApplyChecksum returns the mixed case form of a BLAST address. A hex digit
// is upper cased when the matching nibble of the keccak hash of the lower
// case body is 8 or more.
func ApplyChecksum(address string) string {
	body := strings.ToLower(address)
	body = strings.TrimPrefix(body, strings.ToLower(AddressPrefix))

	hash := hex.EncodeToString(crypto.Keccak256([]byte(body)))

	var b strings.Builder
	b.WriteString(AddressPrefix)
	for i := 0; i < len(body); i++ {
		c := body[i]
		if hash[i] >= '8' && c >= 'a' && c <= 'f' {
			c -= 'a' - 'A'
		}
		b.WriteByte(c)
	}

	return b.String()
}

// IsAddress reports whether the string is a well formed BLAST address,
// ignoring the checksum.
func IsAddress(address string) bool {
	if len(address) != len(AddressPrefix)+addressHexLength {
		return false
	}

	if !strings.EqualFold(address[:len(AddressPrefix)], AddressPrefix) {
		return false
	}

	_, err := hex.DecodeString(address[len(AddressPrefix):])
	return err == nil
}

// =============================================================================

// Sign uses the specified private key to sign the 32 byte digest. The
// signature is returned in the 65 byte [R|S|V] format.
func Sign(digest []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(digest, privateKey)
	if err != nil {
		return nil, err
	}

	// Check the public key extracted from the data and signature.
	publicKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return nil, err
	}

	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), digest, sig[:crypto.RecoveryIDOffset]) {
		return nil, errors.New("invalid signature")
	}

	return sig, nil
}

// VerifySignature checks the signature over the digest was produced by the
// key behind the public key. The public key can be in the 64 byte form or
// any encoding go-ethereum accepts.
func VerifySignature(digest []byte, sig []byte, publicKey []byte) bool {
	if len(sig) < crypto.RecoveryIDOffset {
		return false
	}

	if len(publicKey) == 64 {
		publicKey = append([]byte{0x04}, publicKey...)
	}

	return crypto.VerifySignature(publicKey, digest, sig[:crypto.RecoveryIDOffset])
}

// SignerPublicKey recovers the public key that produced the 65 byte
// signature over the digest.
func SignerPublicKey(digest []byte, sig []byte) (*ecdsa.PublicKey, error) {
	if len(sig) != crypto.SignatureLength {
		return nil, errors.New("invalid signature length")
	}

	return crypto.SigToPub(digest, sig)
}

// FromAddress extracts the address for the account that signed the digest.
func FromAddress(digest []byte, sig []byte) (string, error) {
	publicKey, err := SignerPublicKey(digest, sig)
	if err != nil {
		return "", err
	}

	return PublicKeyToAddress(*publicKey), nil
}
