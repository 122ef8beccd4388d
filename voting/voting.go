// Package voting implements the voting session manager: session lifecycle,
// proof gated vote casting with per-session nullifiers, and the
// per-candidate tally. Every operation is serialized by a single lock.
package voting

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/aragon/zkvote-node/db"
	"github.com/aragon/zkvote-node/types"
	"github.com/aragon/zkvote-node/verifier"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"go.vocdoni.io/dvote/log"
)

// Options is used to pass the parameters to create a new Manager
type Options struct {
	// Admin is the only identity allowed to create and close sessions
	Admin common.Address
	// SQLite stores the sessions, the nullifier ledger and the tallies
	SQLite *db.SQLite
	// Verifier checks the proof of every vote
	Verifier verifier.Verifier
	// Clock is the time source. SystemClock is used when nil.
	Clock Clock
}

// Manager owns the sessions, the nullifier ledger and the tallies. It is the
// only component that mutates them.
type Manager struct {
	mu       sync.Mutex
	admin    common.Address
	sqlite   *db.SQLite
	verifier verifier.Verifier
	clock    Clock

	feed      event.Feed
	scope     event.SubscriptionScope
	events    *eventQueue
	closeOnce sync.Once
}

// New returns a new Manager
func New(opts Options) (*Manager, error) {
	if opts.Admin == (common.Address{}) {
		return nil, fmt.Errorf("missing admin address")
	}
	if opts.SQLite == nil {
		return nil, fmt.Errorf("missing database")
	}
	if opts.Verifier == nil {
		return nil, fmt.Errorf("missing verifier")
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	m := &Manager{
		admin:    opts.Admin,
		sqlite:   opts.SQLite,
		verifier: opts.Verifier,
		clock:    clock,
	}
	m.events = newEventQueue(&m.feed)
	return m, nil
}

// Admin returns the admin identity
func (m *Manager) Admin() common.Address {
	return m.admin
}

// Now returns the current time of the Manager clock
func (m *Manager) Now() uint64 {
	return m.clock.Now()
}

// SubscribeEvents registers ch to receive the announcements of every
// successful mutation, in commit order. Events are queued by the Manager
// and delivered from a separate goroutine, so a subscriber that does not
// drain ch never blocks the operations.
func (m *Manager) SubscribeEvents(ch chan<- types.Event) event.Subscription {
	return m.scope.Track(m.feed.Subscribe(ch))
}

// Close unsubscribes all the event subscribers and stops the delivery of
// events. It is safe to call it more than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.scope.Close()
		m.events.stop()
	})
}

func (m *Manager) requireAdmin(caller common.Address) error {
	if caller != m.admin {
		return ErrNotAdmin
	}
	return nil
}

// readSession returns nil without error when the session does not exist
func (m *Manager) readSession(sessionID uint64) (*types.Session, error) {
	session, err := m.sqlite.ReadSession(sessionID)
	if errors.Is(err, db.ErrSessionNotInDB) {
		return nil, nil
	}
	return session, err
}

// CreateVotingSession creates a new session and returns its id. Only the
// admin can create sessions.
func (m *Manager) CreateVotingSession(caller common.Address, name string,
	startTime, endTime, candidateCount uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireAdmin(caller); err != nil {
		log.Debugw("session creation rejected", "caller", caller.Hex(), "err", err)
		return 0, err
	}
	if startTime >= endTime {
		return 0, ErrStartAfterEnd
	}
	if candidateCount == 0 {
		return 0, ErrNoCandidates
	}
	if endTime > types.MaxStoredUint {
		return 0, ErrTimeOutOfRange
	}
	if candidateCount > types.MaxStoredUint {
		return 0, ErrTooManyCandidates
	}

	id, err := m.sqlite.CreateSession(name, startTime, endTime, candidateCount)
	if err != nil {
		return 0, fmt.Errorf("can not store session: %w", err)
	}
	log.Infow("voting session created", "sessionID", id, "name", name,
		"startTime", startTime, "endTime", endTime, "candidates", candidateCount)

	m.events.push(types.Event{
		Type:      types.EventVotingSessionCreated,
		SessionID: id,
		Name:      name,
		StartTime: startTime,
		EndTime:   endTime,
	})
	return id, nil
}

// CloseVotingSession closes an open session. Only the admin can close
// sessions, and only while they are open.
func (m *Manager) CloseVotingSession(caller common.Address, sessionID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireAdmin(caller); err != nil {
		log.Debugw("session close rejected", "caller", caller.Hex(), "err", err)
		return err
	}
	session, err := m.readSession(sessionID)
	if err != nil {
		return err
	}
	if !session.IsOpen(m.clock.Now()) {
		return ErrSessionNotActive
	}
	if err := m.sqlite.CloseSession(sessionID); err != nil {
		return fmt.Errorf("can not close session: %w", err)
	}
	log.Infow("voting session closed", "sessionID", sessionID)

	m.events.push(types.Event{
		Type:      types.EventVotingSessionEnded,
		SessionID: sessionID,
	})
	return nil
}

// CastVote records a vote for candidateID in the session if the session is
// open, the proof is accepted by the verifier and the nullifier has not
// been used in the session. Either the nullifier is consumed and the tally
// incremented, or nothing is stored.
//
// There is no caller argument: any identity can vote, and the voter is
// only known through the nullifier and the proof.
//
// The candidateID is not bound to the proof: the vote circuit only exposes
// the vote commitment as public signal.
func (m *Manager) CastVote(sessionID, candidateID uint64, nullifier *big.Int,
	proof *types.Proof, publicSignals []*big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.readSession(sessionID)
	if err != nil {
		return err
	}
	if !session.IsOpen(m.clock.Now()) {
		log.Debugw("vote rejected", "sessionID", sessionID, "kind", KindState)
		return ErrSessionNotActive
	}
	if err := m.verifier.Verify(proof, publicSignals); err != nil {
		log.Debugw("vote rejected", "sessionID", sessionID, "kind", KindProof,
			"err", err)
		return ErrInvalidProof
	}
	nullifierBytes, err := types.NullifierToBytes(nullifier)
	if err != nil {
		return ErrInvalidNullifier
	}
	consumed, err := m.sqlite.IsNullifierConsumed(sessionID, nullifierBytes)
	if err != nil {
		return err
	}
	if consumed {
		log.Debugw("vote rejected", "sessionID", sessionID, "kind", KindDuplicate)
		return ErrNullifierUsed
	}
	if !session.ValidCandidate(candidateID) {
		return ErrInvalidCandidate
	}

	seq, err := m.sqlite.CommitVote(sessionID, candidateID, nullifierBytes)
	if errors.Is(err, db.ErrNullifierInDB) {
		return ErrNullifierUsed
	}
	if err != nil {
		return fmt.Errorf("can not store vote: %w", err)
	}
	log.Infow("vote cast", "sessionID", sessionID, "candidateID", candidateID,
		"seq", seq)

	m.events.push(types.Event{
		Type:        types.EventVoteCast,
		SessionID:   sessionID,
		CandidateID: candidateID,
		Nullifier:   types.NewBigInt(nullifier),
	})
	return nil
}

// GetVoteCount returns the votes of candidateID in the session. It is
// available whether the session is open or not. A session that does not
// exist has no candidates.
func (m *Manager) GetVoteCount(sessionID, candidateID uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.readSession(sessionID)
	if err != nil {
		return 0, err
	}
	if !session.ValidCandidate(candidateID) {
		return 0, ErrInvalidCandidate
	}
	return m.sqlite.ReadVoteCount(sessionID, candidateID)
}

// VotingSessionCount returns the number of sessions created
func (m *Manager) VotingSessionCount() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sqlite.CountSessions()
}

// Sessions returns all the sessions, ordered by id
func (m *Manager) Sessions() ([]types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sqlite.ReadSessions()
}

// Session returns the session with the given id
func (m *Manager) Session(sessionID uint64) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.readSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Tally returns the votes of every candidate of the session with at least
// one vote, indexed by candidateID
func (m *Manager) Tally(sessionID uint64) (map[uint64]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.readSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return m.sqlite.ReadTally(sessionID)
}
