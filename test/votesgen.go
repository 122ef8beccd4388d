// Package test contains helpers shared by the tests of the other packages
package test

import (
	"bytes"
	"crypto/rand"
	"math/big"
	"sync"

	"github.com/aragon/zkvote-node/circuit"
	"github.com/aragon/zkvote-node/types"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	qt "github.com/frankban/quicktest"
)

// Prover generates real Groth16 proofs of the vote circuit
type Prover struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

// Vote contains a generated proof and its public signals
type Vote struct {
	Proof         *types.Proof
	PublicSignals []*big.Int
}

var (
	proverOnce sync.Once
	prover     *Prover
	proverErr  error
)

// NewProver returns a Prover. The circuit setup is done once and shared by
// all the tests of the package.
func NewProver(c *qt.C) *Prover {
	proverOnce.Do(func() {
		ccs, err := circuit.Compile()
		if err != nil {
			proverErr = err
			return
		}
		pk, vk, err := groth16.Setup(ccs)
		if err != nil {
			proverErr = err
			return
		}
		prover = &Prover{ccs: ccs, pk: pk, vk: vk}
	})
	c.Assert(proverErr, qt.IsNil)
	return prover
}

// VerifyingKey returns the gnark verifying key
func (p *Prover) VerifyingKey() groth16.VerifyingKey {
	return p.vk
}

// VerifyingKeyBytes returns the gnark binary encoding of the verifying key
func (p *Prover) VerifyingKeyBytes(c *qt.C) []byte {
	var buf bytes.Buffer
	_, err := p.vk.WriteTo(&buf)
	c.Assert(err, qt.IsNil)
	return buf.Bytes()
}

// CircomVerificationKey returns the verifying key in the snarkjs JSON format
func (p *Prover) CircomVerificationKey(c *qt.C) []byte {
	vkJSON, err := circuit.CircomVerificationKey(p.vk)
	c.Assert(err, qt.IsNil)
	return vkJSON
}

// GenVote proves the knowledge of the opening of the commitment of the
// given vote, with fresh randomness
func (p *Prover) GenVote(c *qt.C, vote uint64) Vote {
	randomness, err := rand.Int(rand.Reader, ecc.BN254.ScalarField())
	c.Assert(err, qt.IsNil)

	assignment, err := circuit.Assignment(new(big.Int).SetUint64(vote), randomness)
	c.Assert(err, qt.IsNil)
	fullWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	c.Assert(err, qt.IsNil)
	proof, err := groth16.Prove(p.ccs, p.pk, fullWitness)
	c.Assert(err, qt.IsNil)

	snarkjsProof, err := circuit.ProofFromGnark(proof)
	c.Assert(err, qt.IsNil)
	return Vote{
		Proof:         snarkjsProof,
		PublicSignals: []*big.Int{assignment.VoteCommitment.(*big.Int)},
	}
}

// GenNullifiers returns n random nullifiers of 256 bits
func GenNullifiers(c *qt.C, n int) []*big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	var nullifiers []*big.Int
	for i := 0; i < n; i++ {
		nullifier, err := rand.Int(rand.Reader, max)
		c.Assert(err, qt.IsNil)
		nullifiers = append(nullifiers, nullifier)
	}
	return nullifiers
}
