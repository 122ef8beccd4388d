package verifier

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/aragon/zkvote-node/types"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/vocdoni/circom2gnark/parser"
)

// Circom verifies snarkjs Groth16 proofs against a snarkjs verification key,
// converting both to gnark with circom2gnark
type Circom struct {
	vk *parser.CircomVerificationKey
}

// NewCircom returns a Circom verifier for the given snarkjs verification key
// JSON
func NewCircom(vkJSON []byte) (*Circom, error) {
	vk, err := parser.UnmarshalCircomVerificationKeyJSON(vkJSON)
	if err != nil {
		return nil, fmt.Errorf("can not parse verification key: %w", err)
	}
	if vk.NPublic <= 0 {
		return nil, fmt.Errorf("verification key without public signals")
	}
	return &Circom{vk: vk}, nil
}

// Verify implements the Verifier interface
func (v *Circom) Verify(proof *types.Proof, publicSignals []*big.Int) (err error) {
	if proof == nil {
		return fmt.Errorf("missing proof")
	}
	if len(publicSignals) != v.vk.NPublic {
		return fmt.Errorf("expected %d public signals, got %d",
			v.vk.NPublic, len(publicSignals))
	}
	signals := make([]string, len(publicSignals))
	for i, s := range publicSignals {
		if s == nil || s.Sign() < 0 || s.Cmp(ecc.BN254.ScalarField()) >= 0 {
			return fmt.Errorf("public signal %d not in the scalar field", i)
		}
		signals[i] = s.String()
	}
	proofJSON, err := json.Marshal(proof)
	if err != nil {
		return err
	}
	circomProof, err := parser.UnmarshalCircomProofJSON(proofJSON)
	if err != nil {
		return fmt.Errorf("can not parse proof: %w", err)
	}

	// circom2gnark parses coordinates without bounds checks
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed proof: %v", r)
		}
	}()
	gnarkProof, err := parser.ConvertCircomToGnark(circomProof, v.vk, signals)
	if err != nil {
		return err
	}
	ok, err := parser.VerifyProof(gnarkProof)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("pairing check failed")
	}
	return nil
}
