package api

import (
	"github.com/aragon/zkvote-node/types"
	"github.com/ethereum/go-ethereum/common"
)

// SignatureHeader is the header that carries the signature of the admin
// requests
const SignatureHeader = "X-Signature"

// RequestIDHeader is the header that carries the id of every request
const RequestIDHeader = "X-Request-Id"

// ErrorMsg is the body of every error response
type ErrorMsg struct {
	Message string `json:"message"`
}

// AdminResp is the response of GET /admin
type AdminResp struct {
	Admin common.Address `json:"admin"`
}

// CountResp is the response of the endpoints that return a counter
type CountResp struct {
	Count uint64 `json:"count"`
}

// IDResp is the response of the endpoints that create or update a session
type IDResp struct {
	ID uint64 `json:"id"`
}

// NewSessionReq is the body of POST /sessions. Times are unix seconds.
type NewSessionReq struct {
	Name           string `json:"name"`
	StartTime      uint64 `json:"startTime"`
	EndTime        uint64 `json:"endTime"`
	CandidateCount uint64 `json:"candidateCount"`
}

// SessionInfo is the response of GET /sessions/:id
type SessionInfo struct {
	types.Session
	Status types.SessionStatus `json:"status"`
	// Tally contains the votes of the candidates with at least one vote
	Tally map[uint64]uint64 `json:"tally"`
}

// SessionsResp is the response of GET /sessions/list. Tallies are not
// included.
type SessionsResp struct {
	Sessions []SessionInfo `json:"sessions"`
}

// VoteReq is the body of POST /sessions/:id/votes
type VoteReq struct {
	CandidateID   uint64          `json:"candidateId"`
	Nullifier     *types.BigInt   `json:"nullifier"`
	Proof         *types.Proof    `json:"proof"`
	PublicSignals []*types.BigInt `json:"publicSignals"`
}

// VoteResp is the response of POST /sessions/:id/votes. Receipt is not set
// when the receipt could not be built yet; it can be requested later.
type VoteResp struct {
	SessionID   uint64         `json:"sessionId"`
	CandidateID uint64         `json:"candidateId"`
	Receipt     *types.Receipt `json:"receipt,omitempty"`
}
