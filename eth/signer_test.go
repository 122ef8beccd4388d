package eth

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"
)

func TestSignRequest(t *testing.T) {
	c := qt.New(t)

	key, err := crypto.GenerateKey()
	c.Assert(err, qt.IsNil)
	signer := NewSigner(key)
	c.Assert(signer.Address(), qt.Equals, crypto.PubkeyToAddress(key.PublicKey))

	body := []byte(`{"name":"s","startTime":1,"endTime":2,"candidateCount":3}`)
	sig, err := signer.SignRequest("/sessions", body)
	c.Assert(err, qt.IsNil)

	addr, err := RecoverAddress("/sessions", body, sig)
	c.Assert(err, qt.IsNil)
	c.Assert(addr, qt.Equals, signer.Address())

	addr, err = RecoverAddress("/sessions", body, "0x"+sig)
	c.Assert(err, qt.IsNil)
	c.Assert(addr, qt.Equals, signer.Address())

	// the signature binds both the path and the body
	addr, err = RecoverAddress("/sessions/1/close", body, sig)
	c.Assert(err, qt.IsNil)
	c.Assert(addr, qt.Not(qt.Equals), signer.Address())
	addr, err = RecoverAddress("/sessions", []byte(`{}`), sig)
	c.Assert(err, qt.IsNil)
	c.Assert(addr, qt.Not(qt.Equals), signer.Address())
}

func TestRecoverAddressLegacyV(t *testing.T) {
	c := qt.New(t)

	signer, err := NewSignerFromHex(
		"1ab2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c2d3e4f5a6b7c8d9e0f1a2")
	c.Assert(err, qt.IsNil)

	sigHex, err := signer.SignRequest("/sessions/1/close", nil)
	c.Assert(err, qt.IsNil)
	sig, err := hex.DecodeString(sigHex)
	c.Assert(err, qt.IsNil)
	sig[crypto.RecoveryIDOffset] += 27

	addr, err := RecoverAddress("/sessions/1/close", nil, hex.EncodeToString(sig))
	c.Assert(err, qt.IsNil)
	c.Assert(addr, qt.Equals, signer.Address())
}

func TestRecoverAddressErrors(t *testing.T) {
	c := qt.New(t)

	_, err := NewSignerFromHex("zz")
	c.Assert(err, qt.ErrorMatches, "failed to parse private key: .*")

	_, err = RecoverAddress("/sessions", nil, "0xzz")
	c.Assert(err, qt.ErrorMatches, "invalid signature encoding: .*")

	_, err = RecoverAddress("/sessions", nil, "0x0102")
	c.Assert(err, qt.ErrorMatches, "invalid signature length: 2")

	// a recovery id out of range
	sig := make([]byte, SignatureLen)
	sig[0], sig[32] = 1, 1
	sig[crypto.RecoveryIDOffset] = 5
	_, err = RecoverAddress("/sessions", nil, hex.EncodeToString(sig))
	c.Assert(err, qt.Not(qt.IsNil))
}
