package types

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/vocdoni/arbo"
)

// ByteArray is a []byte that marshals to JSON as a hex string
type ByteArray []byte

// MarshalJSON implements the json.Marshaler interface
func (b ByteArray) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(b))
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (b *ByteArray) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	d, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*b = d
	return nil
}

// Uint64ToIndex returns the bytes representation of the given uint64 that
// will be used as a leaf index in the receipts MerkleTree
func Uint64ToIndex(u uint64) []byte {
	indexBytes := make([]byte, MaxKeyLen)
	binary.LittleEndian.PutUint64(indexBytes, u)
	return indexBytes
}

// IndexToUint64 is the inverse of Uint64ToIndex
func IndexToUint64(b []byte) (uint64, error) {
	if len(b) != MaxKeyLen {
		return 0, fmt.Errorf("unexpected index length: %d", len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

// NullifierToBytes returns the 32 byte big-endian representation of the
// given nullifier. The nullifier must be non-negative and fit in 256 bits.
func NullifierToBytes(n *big.Int) ([]byte, error) {
	if n == nil || n.Sign() < 0 || n.BitLen() > 8*NullifierLen {
		return nil, fmt.Errorf("nullifier out of range")
	}
	b := make([]byte, NullifierLen)
	n.FillBytes(b)
	return b, nil
}

// BytesToNullifier is the inverse of NullifierToBytes
func BytesToNullifier(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// HashReceipt returns the leaf value of the receipts MerkleTree for an
// accepted vote: Poseidon(nullifier mod p, candidateID), in the little-endian
// layout used by arbo.
func HashReceipt(nullifier *big.Int, candidateID uint64) ([]byte, error) {
	n := arbo.BigToFF(arbo.BN254BaseField, nullifier)
	h, err := poseidon.Hash([]*big.Int{n, new(big.Int).SetUint64(candidateID)})
	if err != nil {
		return nil, err
	}
	return arbo.BigIntToBytes(arbo.HashFunctionPoseidon.Len(), h), nil
}
