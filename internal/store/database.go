package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DBTimestampLayout is the text layout timestamps are written with so sqlite
// returns them as time values.
const DBTimestampLayout = "2006-01-02 15:04:05.000"

// InitDatabase opens the sqlite database at path. A single writer connection
// keeps sqlite's locking simple; the service has no concurrent writers worth
// optimizing for.
func InitDatabase(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
