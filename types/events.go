package types

// EventType identifies an announcement emitted after a successful mutation
type EventType string

const (
	// EventVotingSessionCreated is emitted after a session is created
	EventVotingSessionCreated EventType = "VotingSessionCreated"
	// EventVotingSessionEnded is emitted after a session is closed by the
	// admin
	EventVotingSessionEnded EventType = "VotingSessionEnded"
	// EventVoteCast is emitted after a vote has been accepted
	EventVoteCast EventType = "VoteCast"
)

// Event is an announcement of a successful mutation. Only the fields
// relevant for its Type are set.
type Event struct {
	Type        EventType `json:"type"`
	SessionID   uint64    `json:"sessionId"`
	Name        string    `json:"name,omitempty"`
	StartTime   uint64    `json:"startTime,omitempty"`
	EndTime     uint64    `json:"endTime,omitempty"`
	CandidateID uint64    `json:"candidateId,omitempty"`
	Nullifier   *BigInt   `json:"nullifier,omitempty"`
}

// VoteRecord is an accepted vote as stored in the nullifier ledger. Seq is
// the global commit order.
type VoteRecord struct {
	Seq         uint64
	SessionID   uint64
	CandidateID uint64
	Nullifier   []byte
}
