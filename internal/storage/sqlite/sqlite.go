package sqlite

import (
	"database/sql"

	"github.com/rochd1/the-final-progect/internal/storage"
	_ "modernc.org/sqlite"
)

// SchemaFile is executed by the -migrate flag.
const SchemaFile = "sql/schema.sql"

func New(dsn string) (*storage.Handle, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err = db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, err
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Enable WAL for better concurrency
	_, _ = db.Exec(`PRAGMA journal_mode=WAL;`)

	// Wait up to 5s if locked
	_, _ = db.Exec(`PRAGMA busy_timeout = 5000;`)

	return &storage.Handle{
		Db:     db,
		Driver: "sqlite",
	}, nil
}
