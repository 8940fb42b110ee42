package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
)

// Handle wraps a *sql.DB together with its driver name so the feature
// stores can be written once against `?` placeholders and still run on
// postgres, which wants $1..$N.
type Handle struct {
	Db     *sql.DB
	Driver string
}

// Rebind rewrites `?` placeholders to `$N` for postgres. Sqlite queries
// pass through untouched.
func (h *Handle) Rebind(query string) string {
	if h.Driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (h *Handle) Exec(query string, args ...any) (sql.Result, error) {
	return h.Db.Exec(h.Rebind(query), args...)
}

func (h *Handle) Query(query string, args ...any) (*sql.Rows, error) {
	return h.Db.Query(h.Rebind(query), args...)
}

func (h *Handle) QueryRow(query string, args ...any) *sql.Row {
	return h.Db.QueryRow(h.Rebind(query), args...)
}

// InsertID runs an INSERT and returns the generated id. lib/pq has no
// LastInsertId support, so the postgres path appends RETURNING id.
func (h *Handle) InsertID(query string, args ...any) (int64, error) {
	if h.Driver == "postgres" {
		var id int64
		err := h.Db.QueryRow(h.Rebind(query)+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := h.Db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (h *Handle) Ping(ctx context.Context) error {
	return h.Db.PingContext(ctx)
}

func (h *Handle) Close() error {
	return h.Db.Close()
}

// Migrate executes the schema file statement by statement.
func (h *Handle) Migrate(schemaPath string) error {
	b, err := os.ReadFile(schemaPath)
	if err != nil {
		return err
	}
	stmts := strings.Split(string(b), ";")

	for _, stmt := range stmts {
		st := strings.TrimSpace(stmt)
		if st == "" {
			continue
		}
		if _, err = h.Db.Exec(st); err != nil {
			return err
		}
	}
	return nil
}
