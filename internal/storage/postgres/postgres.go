package postgres

import (
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/rochd1/the-final-progect/internal/storage"
)

// SchemaFile is executed by the -migrate flag.
const SchemaFile = "sql/schema_pg.sql"

func New(dsn string) (*storage.Handle, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &storage.Handle{
		Db:     db,
		Driver: "postgres",
	}, nil
}
