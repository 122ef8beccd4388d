package client

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aragon/zkvote-node/api"
	"github.com/aragon/zkvote-node/eth"
	"github.com/aragon/zkvote-node/receipts"
	"github.com/aragon/zkvote-node/test"
	"github.com/aragon/zkvote-node/types"
	"github.com/aragon/zkvote-node/verifier"
	"github.com/aragon/zkvote-node/voting"
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"
	"github.com/gin-gonic/gin"
	"github.com/iden3/go-iden3-crypto/poseidon"
	"go.vocdoni.io/dvote/db/metadb"
)

const now = uint64(1700000000)

func newSigner(c *qt.C) *eth.Signer {
	key, err := crypto.GenerateKey()
	c.Assert(err, qt.IsNil)
	return eth.NewSigner(key)
}

// newTestNode serves the API of a node that verifies real Groth16 proofs
func newTestNode(c *qt.C, admin *eth.Signer) (string, *test.Clock) {
	gin.SetMode(gin.TestMode)

	prover := test.NewProver(c)
	v, err := verifier.NewGroth16(prover.VerifyingKey())
	c.Assert(err, qt.IsNil)

	clock := test.NewClock(now)
	sqlite := test.NewSQLite(c)
	m, err := voting.New(voting.Options{
		Admin:    admin.Address(),
		SQLite:   sqlite,
		Verifier: v,
		Clock:    clock,
	})
	c.Assert(err, qt.IsNil)
	c.Cleanup(m.Close)
	r, err := receipts.New(receipts.Options{DB: metadb.NewTest(c.TB), SQLite: sqlite})
	c.Assert(err, qt.IsNil)
	a, err := api.New(m, r)
	c.Assert(err, qt.IsNil)

	srv := httptest.NewServer(a.Handler())
	c.Cleanup(srv.Close)
	return srv.URL, clock
}

func assertAPIErr(c *qt.C, err error, status int, msg string) {
	var apiErr *Error
	c.Assert(errors.As(err, &apiErr), qt.IsTrue, qt.Commentf("%v", err))
	c.Assert(apiErr.StatusCode, qt.Equals, status)
	c.Assert(apiErr.Message, qt.Equals, msg)
}

func TestClient(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	admin := newSigner(c)
	url, clock := newTestNode(c, admin)
	adminCli := New(url, admin)
	voterCli := New(url, nil)

	addr, err := voterCli.Admin(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(addr, qt.Equals, admin.Address())

	_, err = voterCli.CreateSession(ctx, "s", now, now+10, 2)
	c.Assert(err, qt.ErrorMatches, "missing signer")
	_, err = New(url, newSigner(c)).CreateSession(ctx, "s", now, now+10, 2)
	assertAPIErr(c, err, http.StatusForbidden, voting.ErrNotAdmin.Error())

	id, err := adminCli.CreateSession(ctx, "Test Session", now+60, now+3600, 3)
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.Equals, uint64(1))
	count, err := voterCli.SessionCount(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(1))
	sessions, err := voterCli.Sessions(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(sessions, qt.HasLen, 1)
	c.Assert(sessions[0].ID, qt.Equals, id)
	c.Assert(sessions[0].Name, qt.Equals, "Test Session")
	c.Assert(sessions[0].Status, qt.Equals, types.SessionStatusPending)

	prover := test.NewProver(c)
	nullifiers := test.GenNullifiers(c, 2)

	vote := prover.GenVote(c, 2)
	_, err = voterCli.CastVote(ctx, id, 2, nullifiers[0], vote.Proof, vote.PublicSignals)
	assertAPIErr(c, err, http.StatusConflict, voting.ErrSessionNotActive.Error())

	clock.Set(now + 60)
	info, err := voterCli.Session(ctx, id)
	c.Assert(err, qt.IsNil)
	c.Assert(info.Status, qt.Equals, types.SessionStatusActive)

	// the public signals of another vote
	otherVote := prover.GenVote(c, 1)
	_, err = voterCli.CastVote(ctx, id, 2, nullifiers[0], vote.Proof,
		otherVote.PublicSignals)
	assertAPIErr(c, err, http.StatusUnprocessableEntity, voting.ErrInvalidProof.Error())

	resp, err := voterCli.CastVote(ctx, id, 2, nullifiers[0], vote.Proof, vote.PublicSignals)
	c.Assert(err, qt.IsNil)
	c.Assert(resp.CandidateID, qt.Equals, uint64(2))
	c.Assert(resp.Receipt, qt.Not(qt.IsNil))

	_, err = voterCli.CastVote(ctx, id, 2, nullifiers[0], vote.Proof, vote.PublicSignals)
	assertAPIErr(c, err, http.StatusConflict, voting.ErrNullifierUsed.Error())

	_, err = voterCli.CastVote(ctx, id, 1, nullifiers[1], otherVote.Proof,
		otherVote.PublicSignals)
	c.Assert(err, qt.IsNil)

	votes, err := voterCli.VoteCount(ctx, id, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(votes, qt.Equals, uint64(1))
	_, err = voterCli.VoteCount(ctx, id, 4)
	assertAPIErr(c, err, http.StatusBadRequest, voting.ErrInvalidCandidate.Error())

	rInfo, err := voterCli.ReceiptsInfo(ctx, id)
	c.Assert(err, qt.IsNil)
	c.Assert(rInfo.Size, qt.Equals, uint64(2))

	receipt, err := voterCli.Receipt(ctx, id, nullifiers[0])
	c.Assert(err, qt.IsNil)
	c.Assert(receipt.Root, qt.DeepEquals, rInfo.Root)
	ok, err := receipts.CheckReceipt(receipt)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
	_, err = voterCli.Receipt(ctx, id, big.NewInt(3))
	assertAPIErr(c, err, http.StatusNotFound, receipts.ErrReceiptNotFound.Error())

	c.Assert(adminCli.CloseSession(ctx, id), qt.IsNil)
	err = adminCli.CloseSession(ctx, id)
	assertAPIErr(c, err, http.StatusConflict, voting.ErrSessionNotActive.Error())

	info, err = voterCli.Session(ctx, id)
	c.Assert(err, qt.IsNil)
	c.Assert(info.Closed, qt.IsTrue)
	c.Assert(info.Status, qt.Equals, types.SessionStatusEnded)
	c.Assert(info.Tally, qt.DeepEquals, map[uint64]uint64{1: 1, 2: 1})

	_, err = voterCli.Session(ctx, 9)
	assertAPIErr(c, err, http.StatusNotFound, voting.ErrSessionNotFound.Error())
}

func TestNewVoteInputs(t *testing.T) {
	c := qt.New(t)

	inputs, err := NewVoteInputs(2)
	c.Assert(err, qt.IsNil)
	c.Assert(inputs.Vote.MathBigInt().Uint64(), qt.Equals, uint64(2))
	c.Assert(inputs.Randomness.MathBigInt().Cmp(ecc.BN254.ScalarField()) < 0, qt.IsTrue)
	commitment, err := poseidon.Hash([]*big.Int{big.NewInt(2),
		inputs.Randomness.MathBigInt()})
	c.Assert(err, qt.IsNil)
	c.Assert(inputs.PublicSignals(), qt.HasLen, 1)
	c.Assert(inputs.PublicSignals()[0].Cmp(commitment), qt.Equals, 0)

	// fresh randomness hides equal votes
	other, err := NewVoteInputs(2)
	c.Assert(err, qt.IsNil)
	c.Assert(other.VoteCommitment.Equal(inputs.VoteCommitment), qt.IsFalse)
}
