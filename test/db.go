package test

import (
	"database/sql"
	"path/filepath"

	"github.com/aragon/zkvote-node/db"
	qt "github.com/frankban/quicktest"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// NewSQLite returns a migrated SQLite database stored in a temporary
// directory of the test
func NewSQLite(c *qt.C) *db.SQLite {
	sqlDB, err := sql.Open("sqlite3",
		filepath.Join(c.TempDir(), "testdb.sqlite3")+"?_foreign_keys=on")
	c.Assert(err, qt.IsNil)
	sqlDB.SetMaxOpenConns(1)

	sqlite := db.NewSQLite(sqlDB)
	c.Cleanup(func() { _ = sqlite.Close() })
	err = sqlite.Migrate()
	c.Assert(err, qt.IsNil)
	return sqlite
}
