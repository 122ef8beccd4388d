// Package client implements the HTTP client of the node API
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/aragon/zkvote-node/api"
	"github.com/aragon/zkvote-node/eth"
	"github.com/aragon/zkvote-node/types"
	"github.com/dghubble/sling"
	"github.com/ethereum/go-ethereum/common"
)

const defaultTimeout = 30 * time.Second

// Error is an error response of the API
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// Client makes requests to the node API
type Client struct {
	s      *sling.Sling
	signer *eth.Signer
}

// New returns a new Client for the given node url. The signer is used to
// sign the admin requests, and can be nil for clients that only vote and
// read.
func New(nodeURL string, signer *eth.Signer) *Client {
	httpClient := &http.Client{Timeout: defaultTimeout}
	return &Client{
		s:      sling.New().Base(nodeURL).Client(httpClient),
		signer: signer,
	}
}

// do sends the request and decodes the response into successV
func (c *Client) do(ctx context.Context, s *sling.Sling, successV any) error {
	req, err := s.Request()
	if err != nil {
		return err
	}
	var errMsg api.ErrorMsg
	resp, err := c.s.Do(req.WithContext(ctx), successV, &errMsg)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{StatusCode: resp.StatusCode, Message: errMsg.Message}
	}
	return nil
}

// signedPost returns a POST request to path with the given body, signed by
// the signer of the Client
func (c *Client) signedPost(path string, reqData any) (*sling.Sling, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("missing signer")
	}
	var body []byte
	if reqData != nil {
		var err error
		if body, err = json.Marshal(reqData); err != nil {
			return nil, err
		}
	}
	sig, err := c.signer.SignRequest(path, body)
	if err != nil {
		return nil, err
	}
	return c.s.New().Post(path).
		Set("Content-Type", "application/json").
		Set(api.SignatureHeader, sig).
		Body(bytes.NewReader(body)), nil
}

// Admin returns the admin address of the node
func (c *Client) Admin(ctx context.Context) (common.Address, error) {
	var resp api.AdminResp
	if err := c.do(ctx, c.s.New().Get("/admin"), &resp); err != nil {
		return common.Address{}, err
	}
	return resp.Admin, nil
}

// SessionCount returns the number of sessions created
func (c *Client) SessionCount(ctx context.Context) (uint64, error) {
	var resp api.CountResp
	if err := c.do(ctx, c.s.New().Get("/sessions"), &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// CreateSession creates a new session and returns its id
func (c *Client) CreateSession(ctx context.Context, name string,
	startTime, endTime, candidateCount uint64) (uint64, error) {
	s, err := c.signedPost("/sessions", api.NewSessionReq{
		Name:           name,
		StartTime:      startTime,
		EndTime:        endTime,
		CandidateCount: candidateCount,
	})
	if err != nil {
		return 0, err
	}
	var resp api.IDResp
	if err := c.do(ctx, s, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// Session returns the session with its status and tally
func (c *Client) Session(ctx context.Context, sessionID uint64) (*api.SessionInfo, error) {
	var resp api.SessionInfo
	path := fmt.Sprintf("/sessions/%d", sessionID)
	if err := c.do(ctx, c.s.New().Get(path), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sessions returns every session with its status, without tallies
func (c *Client) Sessions(ctx context.Context) ([]api.SessionInfo, error) {
	var resp api.SessionsResp
	if err := c.do(ctx, c.s.New().Get("/sessions/list"), &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// CloseSession closes the session
func (c *Client) CloseSession(ctx context.Context, sessionID uint64) error {
	s, err := c.signedPost(fmt.Sprintf("/sessions/%d/close", sessionID), nil)
	if err != nil {
		return err
	}
	return c.do(ctx, s, &api.IDResp{})
}

// CastVote sends a vote for candidateID to the session
func (c *Client) CastVote(ctx context.Context, sessionID, candidateID uint64,
	nullifier *big.Int, proof *types.Proof, publicSignals []*big.Int) (*api.VoteResp, error) {
	signals := make([]*types.BigInt, len(publicSignals))
	for i := range publicSignals {
		signals[i] = types.NewBigInt(publicSignals[i])
	}
	req := api.VoteReq{
		CandidateID:   candidateID,
		Nullifier:     types.NewBigInt(nullifier),
		Proof:         proof,
		PublicSignals: signals,
	}
	var resp api.VoteResp
	path := fmt.Sprintf("/sessions/%d/votes", sessionID)
	if err := c.do(ctx, c.s.New().Post(path).BodyJSON(req), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VoteCount returns the votes of candidateID in the session
func (c *Client) VoteCount(ctx context.Context, sessionID, candidateID uint64) (uint64, error) {
	var resp api.CountResp
	path := fmt.Sprintf("/sessions/%d/votes/%d", sessionID, candidateID)
	if err := c.do(ctx, c.s.New().Get(path), &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// ReceiptsInfo returns the size and root of the receipts tree of the
// session
func (c *Client) ReceiptsInfo(ctx context.Context, sessionID uint64) (*types.ReceiptsInfo, error) {
	var resp types.ReceiptsInfo
	path := fmt.Sprintf("/sessions/%d/receipts", sessionID)
	if err := c.do(ctx, c.s.New().Get(path), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Receipt returns the receipt of the vote with the given nullifier
func (c *Client) Receipt(ctx context.Context, sessionID uint64,
	nullifier *big.Int) (*types.Receipt, error) {
	var resp types.Receipt
	path := fmt.Sprintf("/sessions/%d/receipts/%s", sessionID, nullifier)
	if err := c.do(ctx, c.s.New().Get(path), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
