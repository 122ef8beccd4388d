// Package circuit contains the native gnark version of the vote circuit: a
// Groth16 circuit over BN254 proving knowledge of the opening of a public
// vote commitment
package circuit

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	nativemimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/std/hash/mimc"
)

// NPublicSignals is the number of public signals of the circuit
const NPublicSignals = 1

// VoteCommitmentCircuit proves that VoteCommitment = MiMC(Vote, Randomness)
type VoteCommitmentCircuit struct {
	Vote       frontend.Variable
	Randomness frontend.Variable

	VoteCommitment frontend.Variable `gnark:",public"`
}

// Define declares the circuit constraints
func (c *VoteCommitmentCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.Vote, c.Randomness)
	api.AssertIsEqual(c.VoteCommitment, h.Sum())
	return nil
}

// Compile returns the R1CS of the VoteCommitmentCircuit over BN254
func Compile() (constraint.ConstraintSystem, error) {
	return frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &VoteCommitmentCircuit{})
}

// Commitment computes natively the vote commitment MiMC(vote, randomness).
// Inputs are reduced modulo the BN254 scalar field, as the circuit does.
func Commitment(vote, randomness *big.Int) (*big.Int, error) {
	h := nativemimc.NewMiMC()
	for _, x := range []*big.Int{vote, randomness} {
		var e fr.Element
		e.SetBigInt(x)
		b := e.Bytes()
		if _, err := h.Write(b[:]); err != nil {
			return nil, err
		}
	}
	return new(big.Int).SetBytes(h.Sum(nil)), nil
}

// Assignment returns the full witness assignment for the given vote and
// randomness
func Assignment(vote, randomness *big.Int) (*VoteCommitmentCircuit, error) {
	commitment, err := Commitment(vote, randomness)
	if err != nil {
		return nil, err
	}
	return &VoteCommitmentCircuit{
		Vote:           vote,
		Randomness:     randomness,
		VoteCommitment: commitment,
	}, nil
}

// PublicWitness builds the public witness used to verify a proof from the
// given public signals. Signals must be canonical field elements.
func PublicWitness(publicSignals []*big.Int) (witness.Witness, error) {
	if len(publicSignals) != NPublicSignals {
		return nil, fmt.Errorf("expected %d public signals, got %d",
			NPublicSignals, len(publicSignals))
	}
	for i, s := range publicSignals {
		if err := checkScalar(s); err != nil {
			return nil, fmt.Errorf("public signal %d: %w", i, err)
		}
	}
	assignment := &VoteCommitmentCircuit{
		VoteCommitment: publicSignals[0],
	}
	return frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
}

func checkScalar(x *big.Int) error {
	if x == nil {
		return fmt.Errorf("missing value")
	}
	if x.Sign() < 0 || x.Cmp(ecc.BN254.ScalarField()) >= 0 {
		return fmt.Errorf("value not in the scalar field")
	}
	return nil
}
