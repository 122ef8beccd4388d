package db

import (
	"database/sql"
	"errors"

	"github.com/aragon/zkvote-node/types"
)

// ReadVoteCount returns the number of votes of the candidate in the session.
// Candidates without votes have no row and count 0.
func (r *SQLite) ReadVoteCount(sessionID, candidateID uint64) (uint64, error) {
	if sessionID > types.MaxStoredUint || candidateID > types.MaxStoredUint {
		return 0, nil
	}
	row := r.db.QueryRow(`SELECT votes FROM tallies
		WHERE sessionID = ? AND candidateID = ?`, int64(sessionID), int64(candidateID))

	var votes uint64
	err := row.Scan(&votes)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return votes, nil
}

// ReadTally returns the votes of every candidate with at least one vote in
// the given session, indexed by candidateID
func (r *SQLite) ReadTally(sessionID uint64) (map[uint64]uint64, error) {
	tally := make(map[uint64]uint64)
	if sessionID > types.MaxStoredUint {
		return tally, nil
	}

	rows, err := r.db.Query(`SELECT candidateID, votes FROM tallies
		WHERE sessionID = ?`, int64(sessionID))
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var candidateID, votes uint64
		if err := rows.Scan(&candidateID, &votes); err != nil {
			return nil, err
		}
		tally[candidateID] = votes
	}
	return tally, rows.Err()
}
