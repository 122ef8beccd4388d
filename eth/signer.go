package eth

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLen is the length of a request signature: r || s || v
const SignatureLen = crypto.SignatureLength

// Signer signs the requests with an ECDSA key
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner returns a Signer for the given key
func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// NewSignerFromHex returns a Signer for the given hex encoded key
func NewSignerFromHex(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return NewSigner(key), nil
}

// Address returns the address of the Signer
func (s *Signer) Address() common.Address {
	return s.address
}

// requestHash returns the EIP-191 hash of path || body
func requestHash(path string, body []byte) []byte {
	msg := make([]byte, 0, len(path)+len(body))
	msg = append(msg, path...)
	msg = append(msg, body...)
	return accounts.TextHash(msg)
}

// SignRequest signs the request to the given path with the given body, and
// returns the hex encoded signature
func (s *Signer) SignRequest(path string, body []byte) (string, error) {
	sig, err := crypto.Sign(requestHash(path, body), s.key)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig), nil
}

// RecoverAddress returns the address that signed the request to the given
// path with the given body. The signature is hex encoded, with or without
// 0x prefix, and its v value can be 0/1 or 27/28.
func RecoverAddress(path string, body []byte, hexSig string) (common.Address, error) {
	sig, err := hex.DecodeString(trimHexPrefix(hexSig))
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != SignatureLen {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(requestHash(path, body), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
