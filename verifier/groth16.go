package verifier

import (
	"fmt"
	"io"
	"math/big"

	"github.com/aragon/zkvote-node/circuit"
	"github.com/aragon/zkvote-node/types"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
)

// Groth16 verifies proofs of the native vote circuit against a fixed BN254
// verifying key
type Groth16 struct {
	vk groth16.VerifyingKey
}

// NewGroth16 returns a Groth16 verifier for the given verifying key
func NewGroth16(vk groth16.VerifyingKey) (*Groth16, error) {
	if vk == nil {
		return nil, fmt.Errorf("missing verifying key")
	}
	if vk.NbPublicWitness() != circuit.NPublicSignals {
		return nil, fmt.Errorf("verifying key expects %d public signals, circuit has %d",
			vk.NbPublicWitness(), circuit.NPublicSignals)
	}
	return &Groth16{vk: vk}, nil
}

// LoadGroth16 reads a gnark binary encoded BN254 verifying key and returns a
// Groth16 verifier for it
func LoadGroth16(r io.Reader) (*Groth16, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("can not read verifying key: %w", err)
	}
	return NewGroth16(vk)
}

// Verify implements the Verifier interface
func (g *Groth16) Verify(proof *types.Proof, publicSignals []*big.Int) error {
	gp, err := circuit.ProofToGnark(proof)
	if err != nil {
		return err
	}
	publicWitness, err := circuit.PublicWitness(publicSignals)
	if err != nil {
		return err
	}
	return groth16.Verify(gp, g.vk, publicWitness)
}
