package db

import (
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"
)

// SQLite represents the SQLite database
type SQLite struct {
	db *sql.DB
}

// NewSQLite returns a new *SQLite database
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{
		db: db,
	}
}

// Migrate creates the tables needed for the database
func (r *SQLite) Migrate() error {
	query := `
	PRAGMA foreign_keys = ON;
	`
	_, err := r.db.Exec(query)
	if err != nil {
		return err
	}

	query = `
	CREATE TABLE IF NOT EXISTS sessions(
		id INTEGER NOT NULL PRIMARY KEY UNIQUE,
		name TEXT NOT NULL,
		startTime INTEGER NOT NULL,
		endTime INTEGER NOT NULL,
		candidateCount INTEGER NOT NULL,
		closed BOOLEAN NOT NULL DEFAULT 0,
		insertedDatetime DATETIME
	);
	`
	_, err = r.db.Exec(query)
	if err != nil {
		return err
	}

	query = `
	CREATE TABLE IF NOT EXISTS nullifiers(
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		sessionID INTEGER NOT NULL,
		nullifier BLOB NOT NULL,
		candidateID INTEGER NOT NULL,
		insertedDatetime DATETIME,
		UNIQUE(sessionID, nullifier),
		FOREIGN KEY(sessionID) REFERENCES sessions(id)
	);
	`
	_, err = r.db.Exec(query)
	if err != nil {
		return err
	}

	query = `
	CREATE TABLE IF NOT EXISTS tallies(
		sessionID INTEGER NOT NULL,
		candidateID INTEGER NOT NULL,
		votes INTEGER NOT NULL,
		PRIMARY KEY(sessionID, candidateID),
		FOREIGN KEY(sessionID) REFERENCES sessions(id)
	);
	`
	_, err = r.db.Exec(query)
	if err != nil {
		return err
	}

	return nil
}

// Close closes the underlying sql.DB
func (r *SQLite) Close() error {
	return r.db.Close()
}

func isUniqueConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
