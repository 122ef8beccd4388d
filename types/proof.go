package types

// Proof represents a Groth16 zkSNARK proof in the snarkjs JSON layout.
// Points are in projective form, the last coordinate is expected to be 1.
type Proof struct {
	A        [3]*BigInt    `json:"pi_a"`
	B        [3][2]*BigInt `json:"pi_b"`
	C        [3]*BigInt    `json:"pi_c"`
	Protocol string        `json:"protocol"`
}

// Receipt is the inclusion proof of an accepted vote in the receipts
// MerkleTree of its session
type Receipt struct {
	SessionID   uint64    `json:"sessionId"`
	Index       uint64    `json:"index"`
	Nullifier   *BigInt   `json:"nullifier"`
	CandidateID uint64    `json:"candidateId"`
	Root        ByteArray `json:"root"`
	Siblings    ByteArray `json:"siblings"`
}

// ReceiptsInfo contains the metadata of the receipts MerkleTree of a session
type ReceiptsInfo struct {
	SessionID uint64    `json:"sessionId"`
	Size      uint64    `json:"size"`
	Root      ByteArray `json:"root"`
}
