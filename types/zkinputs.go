package types

import (
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
)

// ZKInputs contains the inputs of the circom vote circuit, which proves
// knowledge of a (vote, randomness) pair opening a public commitment.
// Values marshal as decimal strings, as snarkjs expects in its input file.
type ZKInputs struct {
	// public inputs
	VoteCommitment *BigInt `json:"voteCommitment"`

	// private inputs
	Vote       *BigInt `json:"vote"`
	Randomness *BigInt `json:"randomness"`
}

// NewZKInputs returns the ZKInputs for the given vote and randomness, with
// the VoteCommitment computed as Poseidon(vote, randomness)
func NewZKInputs(vote, randomness *big.Int) (*ZKInputs, error) {
	commitment, err := poseidon.Hash([]*big.Int{vote, randomness})
	if err != nil {
		return nil, fmt.Errorf("can not compute vote commitment: %w", err)
	}
	return &ZKInputs{
		VoteCommitment: NewBigInt(commitment),
		Vote:           NewBigInt(vote),
		Randomness:     NewBigInt(randomness),
	}, nil
}

// PublicSignals returns the public signals of the circuit, in the order in
// which snarkjs outputs them
func (z *ZKInputs) PublicSignals() []*big.Int {
	return []*big.Int{z.VoteCommitment.MathBigInt()}
}
