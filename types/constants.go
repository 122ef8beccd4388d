package types

import (
	"math"

	"github.com/vocdoni/arbo"
)

var (
	// MaxLevels indicates the maximum number of levels in the receipts
	// MerkleTree of a voting session
	MaxLevels int = 64
	// MaxKeyLen indicates the maximum key (index) length in the receipts
	// MerkleTree
	MaxKeyLen int = int(math.Ceil(float64(MaxLevels) / float64(8))) //nolint:gomnd
	// EmptyRoot is a byte array of 0s, with the length of the hash
	// function output length used in the receipts MerkleTree
	EmptyRoot = make([]byte, arbo.HashFunctionPoseidon.Len())
)

const (
	// MaxStoredUint is the biggest unsigned value that can be stored in a
	// SQLite INTEGER column. Session times and candidate counts above it
	// are rejected.
	MaxStoredUint uint64 = math.MaxInt64
	// NullifierLen is the length of the big-endian byte representation of
	// a nullifier
	NullifierLen = 32
)
