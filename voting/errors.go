package voting

import "errors"

// ErrorKind classifies the errors returned by the Manager
type ErrorKind int

const (
	// KindAuthorization is used when the caller is not allowed to perform
	// the operation
	KindAuthorization ErrorKind = iota + 1
	// KindValidation is used for malformed or out of range arguments
	KindValidation
	// KindState is used when the session is not in a state that allows
	// the operation
	KindState
	// KindProof is used when the verifier rejects the proof
	KindProof
	// KindDuplicate is used when the nullifier was already consumed
	KindDuplicate
	// KindNotFound is used by the read operations when the session does
	// not exist
	KindNotFound
)

// String returns the name of the ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindProof:
		return "proof"
	case KindDuplicate:
		return "duplicate"
	case KindNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// Error is a rejection of a Manager operation. Error() returns the literal
// message exposed to callers.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

var (
	// ErrNotAdmin is returned when a non-admin caller invokes an admin
	// operation
	ErrNotAdmin = newError(KindAuthorization, "Only admin can call this function")
	// ErrStartAfterEnd is returned when the session start time is not
	// strictly before its end time
	ErrStartAfterEnd = newError(KindValidation, "Start time must be before end time")
	// ErrNoCandidates is returned when creating a session without
	// candidates
	ErrNoCandidates = newError(KindValidation, "Candidate count must be greater than 0")
	// ErrTimeOutOfRange is returned when a session time can not be stored
	ErrTimeOutOfRange = newError(KindValidation, "Time out of range")
	// ErrTooManyCandidates is returned when the candidate count can not be
	// stored
	ErrTooManyCandidates = newError(KindValidation, "Candidate count exceeds the maximum")
	// ErrInvalidCandidate is returned when the candidateID is not in
	// [1, candidateCount] of the session
	ErrInvalidCandidate = newError(KindValidation, "Invalid candidate index")
	// ErrInvalidNullifier is returned when the nullifier is not an
	// unsigned integer of up to 256 bits
	ErrInvalidNullifier = newError(KindValidation, "Invalid nullifier")
	// ErrSessionNotActive is returned when the session does not exist, is
	// closed, or the current time is outside its window
	ErrSessionNotActive = newError(KindState, "Voting session is not active")
	// ErrInvalidProof is returned when the verifier rejects the proof
	ErrInvalidProof = newError(KindProof, "Invalid proof")
	// ErrSessionNotFound is returned by the session read operations when
	// the session does not exist
	ErrSessionNotFound = newError(KindNotFound, "Voting session not found")
	// ErrNullifierUsed is returned when the nullifier was already
	// consumed in the session
	ErrNullifierUsed = newError(KindDuplicate, "Vote already cast with this nullifier")
)

// KindOf returns the ErrorKind of err, or 0 if err is not an *Error
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
