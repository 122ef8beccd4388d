package client

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/aragon/zkvote-node/types"
	"github.com/consensys/gnark-crypto/ecc"
)

// NewVoteInputs returns the inputs of the circom vote circuit for the given
// vote, with fresh randomness. Its JSON encoding is the snarkjs input file,
// and its PublicSignals are the signals to send with the resulting proof.
func NewVoteInputs(vote uint64) (*types.ZKInputs, error) {
	randomness, err := rand.Int(rand.Reader, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("can not generate randomness: %w", err)
	}
	return types.NewZKInputs(new(big.Int).SetUint64(vote), randomness)
}
