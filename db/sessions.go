package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/aragon/zkvote-node/types"
)

var (
	// ErrSessionNotInDB is used when a session does not exist in the db
	ErrSessionNotInDB = errors.New("session does not exist in the db")
	// ErrSessionNotUpdated is used when trying to close a session that is
	// already closed
	ErrSessionNotUpdated = errors.New("session already closed")
	// ErrValueOutOfRange is used when a value can not be stored in a
	// SQLite INTEGER column
	ErrValueOutOfRange = errors.New("value out of range")
)

// CreateSession stores a new session and returns its id. Ids are assigned
// sequentially starting at 1, in creation order.
func (r *SQLite) CreateSession(name string, startTime, endTime,
	candidateCount uint64) (uint64, error) {
	if startTime > types.MaxStoredUint || endTime > types.MaxStoredUint ||
		candidateCount > types.MaxStoredUint {
		return 0, ErrValueOutOfRange
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	var count uint64
	if err := tx.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		return 0, err
	}
	id := count + 1

	sqlQuery := `
	INSERT INTO sessions(
		id,
		name,
		startTime,
		endTime,
		candidateCount,
		closed,
		insertedDatetime
	) values(?, ?, ?, ?, ?, 0, CURRENT_TIMESTAMP)
	`
	stmt, err := tx.Prepare(sqlQuery)
	if err != nil {
		return 0, err
	}
	defer stmt.Close() //nolint:errcheck

	_, err = stmt.Exec(int64(id), name, int64(startTime), int64(endTime),
		int64(candidateCount))
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// CloseSession marks the session with the given id as closed
func (r *SQLite) CloseSession(id uint64) error {
	if id > types.MaxStoredUint {
		return ErrSessionNotInDB
	}
	sqlQuery := `
	UPDATE sessions SET closed=1 WHERE id=? AND closed=0
	`

	stmt, err := r.db.Prepare(sqlQuery)
	if err != nil {
		return err
	}
	defer stmt.Close() //nolint:errcheck

	res, err := stmt.Exec(int64(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.ReadSession(id); err != nil {
			return err
		}
		return ErrSessionNotUpdated
	}
	return nil
}

// ReadSession reads the types.Session with the given id
func (r *SQLite) ReadSession(id uint64) (*types.Session, error) {
	if id > types.MaxStoredUint {
		return nil, ErrSessionNotInDB
	}
	row := r.db.QueryRow(`SELECT id, name, startTime, endTime, candidateCount,
		closed, insertedDatetime FROM sessions WHERE id = ?`, int64(id))

	var session types.Session
	err := row.Scan(&session.ID, &session.Name, &session.StartTime,
		&session.EndTime, &session.CandidateCount, &session.Closed,
		&session.InsertedDatetime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrSessionNotInDB, id)
		}
		return nil, err
	}
	return &session, nil
}

// ReadSessions reads all the stored sessions, ordered by id
func (r *SQLite) ReadSessions() ([]types.Session, error) {
	sqlQuery := `
	SELECT id, name, startTime, endTime, candidateCount, closed,
	insertedDatetime FROM sessions ORDER BY id ASC
	`

	rows, err := r.db.Query(sqlQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var sessions []types.Session
	for rows.Next() {
		session := types.Session{}
		err = rows.Scan(&session.ID, &session.Name, &session.StartTime,
			&session.EndTime, &session.CandidateCount, &session.Closed,
			&session.InsertedDatetime)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// CountSessions returns the number of stored sessions, which is also the
// id of the last created session
func (r *SQLite) CountSessions() (uint64, error) {
	var count uint64
	err := r.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
