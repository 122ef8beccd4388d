package types

import "time"

// SessionStatus is the status of a Session at a given time. It is always
// derived, never stored.
type SessionStatus string

const (
	// SessionStatusPending is the status of a Session whose StartTime has
	// not been reached yet
	SessionStatusPending SessionStatus = "pending"
	// SessionStatusActive is the status of a Session that accepts votes
	SessionStatusActive SessionStatus = "active"
	// SessionStatusEnded is the status of a Session that has been closed
	// by the admin or whose EndTime has passed
	SessionStatusEnded SessionStatus = "ended"
)

// Session contains the stored data of a voting session. Times are unix
// seconds.
type Session struct {
	ID               uint64    `json:"id"`
	Name             string    `json:"name"`
	StartTime        uint64    `json:"startTime"`
	EndTime          uint64    `json:"endTime"`
	CandidateCount   uint64    `json:"candidateCount"`
	Closed           bool      `json:"closed"`
	InsertedDatetime time.Time `json:"insertedDatetime"`
}

// IsOpen returns true when the Session accepts votes at the given time: it
// is not closed and StartTime <= now <= EndTime. A nil Session (not
// existing) is never open.
func (s *Session) IsOpen(now uint64) bool {
	if s == nil || s.Closed {
		return false
	}
	return s.StartTime <= now && now <= s.EndTime
}

// Status returns the SessionStatus at the given time. A nil Session is
// ended.
func (s *Session) Status(now uint64) SessionStatus {
	switch {
	case s == nil:
		return SessionStatusEnded
	case s.IsOpen(now):
		return SessionStatusActive
	case !s.Closed && now < s.StartTime:
		return SessionStatusPending
	default:
		return SessionStatusEnded
	}
}

// ValidCandidate returns true if candidateID is in [1, CandidateCount]
func (s *Session) ValidCandidate(candidateID uint64) bool {
	if s == nil {
		return false
	}
	return candidateID >= 1 && candidateID <= s.CandidateCount
}
