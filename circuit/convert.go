package circuit

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/aragon/zkvote-node/types"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark/backend/groth16"
	groth16_bn254 "github.com/consensys/gnark/backend/groth16/bn254"
)

// ProtocolGroth16 is the protocol name used by snarkjs for Groth16 proofs
const ProtocolGroth16 = "groth16"

var (
	// ErrInvalidPoint is returned when a proof point is not a valid point
	// of its BN254 group
	ErrInvalidPoint = errors.New("invalid curve point")

	bigOne = big.NewInt(1)
)

// ProofToGnark converts a snarkjs formatted Groth16 proof into the gnark
// BN254 proof. Coordinates must be canonical base field elements, the
// projective coordinate must be 1, and every point must belong to its
// group.
func ProofToGnark(p *types.Proof) (*groth16_bn254.Proof, error) {
	if p == nil {
		return nil, fmt.Errorf("missing proof")
	}
	if p.Protocol != "" && p.Protocol != ProtocolGroth16 {
		return nil, fmt.Errorf("unsupported protocol: %s", p.Protocol)
	}

	ar, err := g1FromProjective(p.A)
	if err != nil {
		return nil, fmt.Errorf("pi_a: %w", err)
	}
	krs, err := g1FromProjective(p.C)
	if err != nil {
		return nil, fmt.Errorf("pi_c: %w", err)
	}
	bs, err := g2FromProjective(p.B)
	if err != nil {
		return nil, fmt.Errorf("pi_b: %w", err)
	}

	return &groth16_bn254.Proof{
		Ar:  *ar,
		Bs:  *bs,
		Krs: *krs,
	}, nil
}

// ProofFromGnark converts a gnark BN254 Groth16 proof into the snarkjs
// format
func ProofFromGnark(proof groth16.Proof) (*types.Proof, error) {
	p, ok := proof.(*groth16_bn254.Proof)
	if !ok {
		return nil, fmt.Errorf("unexpected proof type %T", proof)
	}
	if len(p.Commitments) != 0 {
		return nil, fmt.Errorf("proofs with commitments can not be exported")
	}
	return &types.Proof{
		A:        g1ToProjective(&p.Ar),
		B:        g2ToProjective(&p.Bs),
		C:        g1ToProjective(&p.Krs),
		Protocol: ProtocolGroth16,
	}, nil
}

func fpFromBig(x *types.BigInt) (fp.Element, error) {
	var e fp.Element
	if x == nil {
		return e, fmt.Errorf("missing coordinate")
	}
	b := x.MathBigInt()
	if b.Sign() < 0 || b.Cmp(fp.Modulus()) >= 0 {
		return e, fmt.Errorf("coordinate not in the base field")
	}
	e.SetBigInt(b)
	return e, nil
}

func fpToBig(e *fp.Element) *types.BigInt {
	return (*types.BigInt)(e.BigInt(new(big.Int)))
}

func isOne(x *types.BigInt) bool {
	return x != nil && x.MathBigInt().Cmp(bigOne) == 0
}

func g1FromProjective(c [3]*types.BigInt) (*bn254.G1Affine, error) {
	if !isOne(c[2]) {
		return nil, fmt.Errorf("%w: projective coordinate must be 1", ErrInvalidPoint)
	}
	var p bn254.G1Affine
	var err error
	if p.X, err = fpFromBig(c[0]); err != nil {
		return nil, err
	}
	if p.Y, err = fpFromBig(c[1]); err != nil {
		return nil, err
	}
	if !p.IsOnCurve() || !p.IsInSubGroup() {
		return nil, ErrInvalidPoint
	}
	return &p, nil
}

func g2FromProjective(c [3][2]*types.BigInt) (*bn254.G2Affine, error) {
	if !isOne(c[2][0]) || c[2][1] == nil || c[2][1].MathBigInt().Sign() != 0 {
		return nil, fmt.Errorf("%w: projective coordinate must be [1, 0]", ErrInvalidPoint)
	}
	var p bn254.G2Affine
	var err error
	if p.X.A0, err = fpFromBig(c[0][0]); err != nil {
		return nil, err
	}
	if p.X.A1, err = fpFromBig(c[0][1]); err != nil {
		return nil, err
	}
	if p.Y.A0, err = fpFromBig(c[1][0]); err != nil {
		return nil, err
	}
	if p.Y.A1, err = fpFromBig(c[1][1]); err != nil {
		return nil, err
	}
	if !p.IsOnCurve() || !p.IsInSubGroup() {
		return nil, ErrInvalidPoint
	}
	return &p, nil
}

func g1ToProjective(p *bn254.G1Affine) [3]*types.BigInt {
	return [3]*types.BigInt{fpToBig(&p.X), fpToBig(&p.Y), types.NewInt(1)}
}

func g2ToProjective(p *bn254.G2Affine) [3][2]*types.BigInt {
	return [3][2]*types.BigInt{
		{fpToBig(&p.X.A0), fpToBig(&p.X.A1)},
		{fpToBig(&p.Y.A0), fpToBig(&p.Y.A1)},
		{types.NewInt(1), types.NewInt(0)},
	}
}

// circomVerificationKey is the snarkjs verification key JSON layout
type circomVerificationKey struct {
	Protocol      string                 `json:"protocol"`
	Curve         string                 `json:"curve"`
	NPublic       int                    `json:"nPublic"`
	VkAlpha1      [3]*types.BigInt       `json:"vk_alpha_1"`
	VkBeta2       [3][2]*types.BigInt    `json:"vk_beta_2"`
	VkGamma2      [3][2]*types.BigInt    `json:"vk_gamma_2"`
	VkDelta2      [3][2]*types.BigInt    `json:"vk_delta_2"`
	VkAlphabeta12 [2][3][2]*types.BigInt `json:"vk_alphabeta_12"`
	IC            [][3]*types.BigInt     `json:"IC"`
}

// CircomVerificationKey exports a gnark BN254 Groth16 verifying key as a
// snarkjs verification key JSON
func CircomVerificationKey(vk groth16.VerifyingKey) ([]byte, error) {
	v, ok := vk.(*groth16_bn254.VerifyingKey)
	if !ok {
		return nil, fmt.Errorf("unexpected verifying key type %T", vk)
	}
	if len(v.PublicAndCommitmentCommitted) != 0 {
		return nil, fmt.Errorf("verifying keys with commitments can not be exported")
	}
	alphaBeta, err := bn254.Pair([]bn254.G1Affine{v.G1.Alpha}, []bn254.G2Affine{v.G2.Beta})
	if err != nil {
		return nil, err
	}

	ck := circomVerificationKey{
		Protocol: ProtocolGroth16,
		Curve:    "bn128",
		NPublic:  len(v.G1.K) - 1,
		VkAlpha1: g1ToProjective(&v.G1.Alpha),
		VkBeta2:  g2ToProjective(&v.G2.Beta),
		VkGamma2: g2ToProjective(&v.G2.Gamma),
		VkDelta2: g2ToProjective(&v.G2.Delta),
	}
	ab := [2][3][2]*fp.Element{
		{
			{&alphaBeta.C0.B0.A0, &alphaBeta.C0.B0.A1},
			{&alphaBeta.C0.B1.A0, &alphaBeta.C0.B1.A1},
			{&alphaBeta.C0.B2.A0, &alphaBeta.C0.B2.A1},
		},
		{
			{&alphaBeta.C1.B0.A0, &alphaBeta.C1.B0.A1},
			{&alphaBeta.C1.B1.A0, &alphaBeta.C1.B1.A1},
			{&alphaBeta.C1.B2.A0, &alphaBeta.C1.B2.A1},
		},
	}
	for i := range ab {
		for j := range ab[i] {
			ck.VkAlphabeta12[i][j] = [2]*types.BigInt{fpToBig(ab[i][j][0]), fpToBig(ab[i][j][1])}
		}
	}
	for i := range v.G1.K {
		ck.IC = append(ck.IC, g1ToProjective(&v.G1.K[i]))
	}
	return json.Marshal(ck)
}
