// Package verifier implements the proof verification capability used to
// gate every vote. A Verifier is an opaque predicate over a proof and its
// public signals: it never sees the session, candidate or nullifier.
package verifier

import (
	"errors"
	"math/big"
	"sync"

	"github.com/aragon/zkvote-node/types"
)

// ErrProofRejected is returned by the Stub when it is configured to reject
var ErrProofRejected = errors.New("proof rejected")

// Verifier checks a Groth16 proof against its public signals. A nil error
// means the proof is accepted. Malformed inputs are rejections, never
// panics.
type Verifier interface {
	Verify(proof *types.Proof, publicSignals []*big.Int) error
}

// Stub is a Verifier with a fixed, reconfigurable result. It is used in
// tests and in development deployments.
type Stub struct {
	mu     sync.RWMutex
	accept bool
}

// NewStub returns a Stub that accepts every proof when accept is true and
// rejects every proof otherwise
func NewStub(accept bool) *Stub {
	return &Stub{accept: accept}
}

// SetVerificationResult sets the result returned by the following calls to
// Verify
func (s *Stub) SetVerificationResult(accept bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accept = accept
}

// Verify implements the Verifier interface
func (s *Stub) Verify(_ *types.Proof, _ []*big.Int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.accept {
		return ErrProofRejected
	}
	return nil
}
