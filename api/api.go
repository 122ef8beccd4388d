// Package api exposes the voting Manager and the receipts over HTTP
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/aragon/zkvote-node/eth"
	"github.com/aragon/zkvote-node/receipts"
	"github.com/aragon/zkvote-node/types"
	"github.com/aragon/zkvote-node/voting"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.vocdoni.io/dvote/log"
)

const (
	callerKey    = "caller"
	requestIDKey = "requestID"

	maxBodySize     = 1 << 20
	shutdownTimeout = 5 * time.Second
)

var (
	errMissingSignature = errors.New("missing signature")
	errInternal         = errors.New("internal error")
)

// API allows external requests to the Node
type API struct {
	r        *gin.Engine
	manager  *voting.Manager
	receipts *receipts.Receipts
}

// New returns a new API with the endpoints, without starting to listen
func New(manager *voting.Manager, rcpts *receipts.Receipts) (*API, error) {
	if manager == nil || rcpts == nil {
		return nil, fmt.Errorf("can not create the API: missing voting manager" +
			" or receipts")
	}
	a := API{manager: manager, receipts: rcpts}

	r := gin.New()
	r.Use(gin.Recovery(), requestID())

	r.GET("/admin", a.getAdmin)
	r.GET("/sessions", a.getSessionCount)
	r.POST("/sessions", signed(), a.postNewSession)
	r.GET("/sessions/list", a.getSessions)
	r.GET("/sessions/:id", a.getSession)
	r.POST("/sessions/:id/close", signed(), a.postCloseSession)
	r.POST("/sessions/:id/votes", a.postVote)
	r.GET("/sessions/:id/votes/:candidate", a.getVoteCount)
	r.GET("/sessions/:id/receipts", a.getReceiptsInfo)
	r.GET("/sessions/:id/receipts/:nullifier", a.getReceipt)

	a.r = r
	return &a, nil
}

// Handler returns the http.Handler of the API
func (a *API) Handler() http.Handler {
	return a.r
}

// Serve serves the API at the given address until the context is done
func (a *API) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infow("starting API", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// requestID tags every request with an id, taken from the RequestIDHeader
// when given, and logs the request once served
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)

		start := time.Now()
		c.Next()
		log.Debugw("HTTP request", "id", id, "method", c.Request.Method,
			"path", c.Request.URL.Path, "status", c.Writer.Status(),
			"latency", time.Since(start).String())
	}
}

// signed recovers the caller of the request from its SignatureHeader. The
// signature covers the request path and body.
func signed() gin.HandlerFunc {
	return func(c *gin.Context) {
		sig := c.GetHeader(SignatureHeader)
		if sig == "" {
			abortWithErr(c, http.StatusUnauthorized, errMissingSignature)
			return
		}
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize))
		if err != nil {
			abortWithErr(c, http.StatusBadRequest, err)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		caller, err := eth.RecoverAddress(c.Request.URL.Path, body, sig)
		if err != nil {
			abortWithErr(c, http.StatusUnauthorized, err)
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

func callerOf(c *gin.Context) common.Address {
	caller, _ := c.MustGet(callerKey).(common.Address)
	return caller
}

// statusOf maps the errors of the voting Manager and the receipts to HTTP
// status codes
func statusOf(err error) int {
	switch voting.KindOf(err) {
	case voting.KindAuthorization:
		return http.StatusForbidden
	case voting.KindValidation:
		return http.StatusBadRequest
	case voting.KindState, voting.KindDuplicate:
		return http.StatusConflict
	case voting.KindProof:
		return http.StatusUnprocessableEntity
	case voting.KindNotFound:
		return http.StatusNotFound
	}
	if errors.Is(err, receipts.ErrReceiptNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func returnErr(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Errorw(err, "HTTP API internal error")
		err = errInternal
	}
	abortWithErr(c, status, err)
}

func abortWithErr(c *gin.Context, status int, err error) {
	log.Debugw("HTTP API error", "id", c.GetString(requestIDKey),
		"status", status, "err", err)
	c.AbortWithStatusJSON(status, ErrorMsg{Message: err.Error()})
}

func parseUint(c *gin.Context, param string) (uint64, bool) {
	v, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil {
		abortWithErr(c, http.StatusBadRequest,
			fmt.Errorf("invalid %s: %q", param, c.Param(param)))
		return 0, false
	}
	return v, true
}

func (a *API) getAdmin(c *gin.Context) {
	c.JSON(http.StatusOK, AdminResp{Admin: a.manager.Admin()})
}

func (a *API) getSessionCount(c *gin.Context) {
	count, err := a.manager.VotingSessionCount()
	if err != nil {
		returnErr(c, err)
		return
	}
	c.JSON(http.StatusOK, CountResp{Count: count})
}

func (a *API) postNewSession(c *gin.Context) {
	var d NewSessionReq
	if err := c.ShouldBindJSON(&d); err != nil {
		abortWithErr(c, http.StatusBadRequest, err)
		return
	}
	id, err := a.manager.CreateVotingSession(callerOf(c), d.Name,
		d.StartTime, d.EndTime, d.CandidateCount)
	if err != nil {
		returnErr(c, err)
		return
	}
	c.JSON(http.StatusOK, IDResp{ID: id})
}

func (a *API) getSessions(c *gin.Context) {
	sessions, err := a.manager.Sessions()
	if err != nil {
		returnErr(c, err)
		return
	}
	now := a.manager.Now()
	resp := SessionsResp{Sessions: make([]SessionInfo, 0, len(sessions))}
	for i := range sessions {
		resp.Sessions = append(resp.Sessions, SessionInfo{
			Session: sessions[i],
			Status:  sessions[i].Status(now),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) getSession(c *gin.Context) {
	id, ok := parseUint(c, "id")
	if !ok {
		return
	}
	session, err := a.manager.Session(id)
	if err != nil {
		returnErr(c, err)
		return
	}
	tally, err := a.manager.Tally(id)
	if err != nil {
		returnErr(c, err)
		return
	}
	c.JSON(http.StatusOK, SessionInfo{
		Session: *session,
		Status:  session.Status(a.manager.Now()),
		Tally:   tally,
	})
}

func (a *API) postCloseSession(c *gin.Context) {
	id, ok := parseUint(c, "id")
	if !ok {
		return
	}
	if err := a.manager.CloseVotingSession(callerOf(c), id); err != nil {
		returnErr(c, err)
		return
	}
	c.JSON(http.StatusOK, IDResp{ID: id})
}

func (a *API) postVote(c *gin.Context) {
	id, ok := parseUint(c, "id")
	if !ok {
		return
	}
	var d VoteReq
	if err := c.ShouldBindJSON(&d); err != nil {
		abortWithErr(c, http.StatusBadRequest, err)
		return
	}
	var nullifier *big.Int
	if d.Nullifier != nil {
		nullifier = d.Nullifier.MathBigInt()
	}
	err := a.manager.CastVote(id, d.CandidateID, nullifier, d.Proof,
		types.BigIntsToMath(d.PublicSignals))
	if err != nil {
		returnErr(c, err)
		return
	}

	resp := VoteResp{SessionID: id, CandidateID: d.CandidateID}
	receipt, err := a.receipts.Receipt(id, nullifier)
	if err != nil {
		log.Warnw("vote accepted without receipt", "sessionID", id, "err", err)
	} else {
		resp.Receipt = receipt
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) getVoteCount(c *gin.Context) {
	id, ok := parseUint(c, "id")
	if !ok {
		return
	}
	candidateID, ok := parseUint(c, "candidate")
	if !ok {
		return
	}
	count, err := a.manager.GetVoteCount(id, candidateID)
	if err != nil {
		returnErr(c, err)
		return
	}
	c.JSON(http.StatusOK, CountResp{Count: count})
}

func (a *API) getReceiptsInfo(c *gin.Context) {
	id, ok := parseUint(c, "id")
	if !ok {
		return
	}
	if _, err := a.manager.Session(id); err != nil {
		returnErr(c, err)
		return
	}
	info, err := a.receipts.Info(id)
	if err != nil {
		returnErr(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (a *API) getReceipt(c *gin.Context) {
	id, ok := parseUint(c, "id")
	if !ok {
		return
	}
	nullifier, ok := new(big.Int).SetString(c.Param("nullifier"), 10)
	if !ok {
		abortWithErr(c, http.StatusBadRequest, voting.ErrInvalidNullifier)
		return
	}
	if _, err := types.NullifierToBytes(nullifier); err != nil {
		abortWithErr(c, http.StatusBadRequest, voting.ErrInvalidNullifier)
		return
	}
	if _, err := a.manager.Session(id); err != nil {
		returnErr(c, err)
		return
	}
	receipt, err := a.receipts.Receipt(id, nullifier)
	if err != nil {
		returnErr(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}
