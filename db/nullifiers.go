package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/aragon/zkvote-node/types"
)

// ErrNullifierInDB is used when trying to consume a nullifier that has
// already been consumed in the same session
var ErrNullifierInDB = errors.New("nullifier already consumed for the session")

// IsNullifierConsumed returns true if the given nullifier has already been
// consumed in the given session
func (r *SQLite) IsNullifierConsumed(sessionID uint64, nullifier []byte) (bool, error) {
	if sessionID > types.MaxStoredUint {
		return false, nil
	}
	row := r.db.QueryRow(`SELECT seq FROM nullifiers
		WHERE sessionID = ? AND nullifier = ?`, int64(sessionID), nullifier)
	var seq uint64
	err := row.Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CommitVote consumes the nullifier for the session and increments the
// tally of the candidate, in a single transaction: either both are stored
// or none of them. Returns the sequence number of the stored vote.
func (r *SQLite) CommitVote(sessionID, candidateID uint64, nullifier []byte) (uint64, error) {
	if sessionID > types.MaxStoredUint || candidateID > types.MaxStoredUint {
		return 0, ErrValueOutOfRange
	}
	if len(nullifier) != types.NullifierLen {
		return 0, fmt.Errorf("unexpected nullifier length: %d", len(nullifier))
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	sqlAddNullifier := `
	INSERT INTO nullifiers(
		sessionID,
		nullifier,
		candidateID,
		insertedDatetime
	) values(?, ?, ?, CURRENT_TIMESTAMP)
	`
	res, err := tx.Exec(sqlAddNullifier, int64(sessionID), nullifier,
		int64(candidateID))
	if err != nil {
		if isUniqueConstraintErr(err) {
			return 0, ErrNullifierInDB
		}
		return 0, err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	sqlIncTally := `
	INSERT INTO tallies(sessionID, candidateID, votes) values(?, ?, 1)
	ON CONFLICT(sessionID, candidateID) DO UPDATE SET votes = votes + 1
	`
	if _, err := tx.Exec(sqlIncTally, int64(sessionID), int64(candidateID)); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return uint64(seq), nil
}

// ReadVotesFromSeq reads up to limit accepted votes of the given session
// with a sequence number strictly greater than fromSeq, in commit order
func (r *SQLite) ReadVotesFromSeq(sessionID, fromSeq uint64, limit int) (
	[]types.VoteRecord, error) {
	if sessionID > types.MaxStoredUint || fromSeq > types.MaxStoredUint {
		return nil, nil
	}
	sqlQuery := `
	SELECT seq, sessionID, candidateID, nullifier FROM nullifiers
	WHERE sessionID = ? AND seq > ?
	ORDER BY seq ASC LIMIT ?
	`

	rows, err := r.db.Query(sqlQuery, int64(sessionID), int64(fromSeq), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var votes []types.VoteRecord
	for rows.Next() {
		v := types.VoteRecord{}
		if err := rows.Scan(&v.Seq, &v.SessionID, &v.CandidateID, &v.Nullifier); err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// CountVotes returns the number of accepted votes of the given session
func (r *SQLite) CountVotes(sessionID uint64) (uint64, error) {
	if sessionID > types.MaxStoredUint {
		return 0, nil
	}
	var count uint64
	err := r.db.QueryRow("SELECT COUNT(*) FROM nullifiers WHERE sessionID = ?",
		int64(sessionID)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
