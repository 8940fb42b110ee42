package messages

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rochd1/the-final-progect/internal/storage"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const testSchema = `
CREATE TABLE users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL UNIQUE,
    username TEXT NOT NULL,
    vibe_code TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    avatar_url TEXT,
    theme TEXT NOT NULL DEFAULT 'light',
    last_active TIMESTAMP,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    from_id INTEGER NOT NULL REFERENCES users(id),
    to_id INTEGER NOT NULL REFERENCES users(id),
    content TEXT NOT NULL,
    sent_at TIMESTAMP NOT NULL,
    read INTEGER NOT NULL DEFAULT 0
);`

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	db.SetMaxOpenConns(1)
	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return &Store{DB: &storage.Handle{Db: db, Driver: "sqlite"}}
}

func seedUser(t *testing.T, s *Store, email, username string) int64 {
	t.Helper()
	id, err := s.DB.InsertID(
		`INSERT INTO users (email, username, vibe_code, password_hash) VALUES (?, ?, ?, 'x')`,
		email, username, username+"!0000",
	)
	require.NoError(t, err)
	return id
}

func TestAppendAndHistory(t *testing.T) {
	s := newTestStore(t)
	u1 := seedUser(t, s, "a@x.com", "a")
	u2 := seedUser(t, s, "b@x.com", "b")

	msg, err := s.Append(u1, u2, "  hello  ")
	require.NoError(t, err)
	require.NotZero(t, msg.ID)
	require.Equal(t, "hello", msg.Content)
	require.False(t, msg.Read)
	require.False(t, msg.SentAt.IsZero())

	list, err := s.History(u1, u2, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, msg.ID, list[0].ID)
	require.Equal(t, "hello", list[0].Content)
	require.False(t, list[0].Read)
}

func TestAppendEmptyContent(t *testing.T) {
	s := newTestStore(t)
	u1 := seedUser(t, s, "a@x.com", "a")
	u2 := seedUser(t, s, "b@x.com", "b")

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := s.Append(u1, u2, content)
		require.True(t, IsValidation(err), "content %q should be rejected", content)
	}

	list, err := s.History(u1, u2, 0)
	require.NoError(t, err)
	require.Empty(t, list, "rejected appends must not mutate the store")
}

func TestAppendUnknownUser(t *testing.T) {
	s := newTestStore(t)
	u1 := seedUser(t, s, "a@x.com", "a")

	_, err := s.Append(u1, 999, "hi")
	require.True(t, IsValidation(err))

	_, err = s.Append(999, u1, "hi")
	require.True(t, IsValidation(err))
}

func TestHistoryBothDirectionsAscending(t *testing.T) {
	s := newTestStore(t)
	u1 := seedUser(t, s, "a@x.com", "a")
	u2 := seedUser(t, s, "b@x.com", "b")
	u3 := seedUser(t, s, "c@x.com", "c")

	m1, err := s.Append(u1, u2, "one")
	require.NoError(t, err)
	m2, err := s.Append(u2, u1, "two")
	require.NoError(t, err)
	_, err = s.Append(u1, u3, "other pair")
	require.NoError(t, err)

	list, err := s.History(u1, u2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, m1.ID, list[0].ID)
	require.Equal(t, m2.ID, list[1].ID)
	require.False(t, list[1].SentAt.Before(list[0].SentAt))
}

func TestMarkReadAuthorization(t *testing.T) {
	s := newTestStore(t)
	u1 := seedUser(t, s, "a@x.com", "a")
	u2 := seedUser(t, s, "b@x.com", "b")

	msg, err := s.Append(u1, u2, "hi")
	require.NoError(t, err)

	// the sender may not mark its own message read
	_, err = s.MarkRead(msg.ID, u1)
	require.True(t, IsAuthorization(err))

	got, err := s.Get(msg.ID)
	require.NoError(t, err)
	require.False(t, got.Read, "failed mark must leave read unchanged")
}

func TestMarkReadIdempotent(t *testing.T) {
	s := newTestStore(t)
	u1 := seedUser(t, s, "a@x.com", "a")
	u2 := seedUser(t, s, "b@x.com", "b")

	msg, err := s.Append(u1, u2, "hi")
	require.NoError(t, err)

	first, err := s.MarkRead(msg.ID, u2)
	require.NoError(t, err)
	require.True(t, first.Read)

	second, err := s.MarkRead(msg.ID, u2)
	require.NoError(t, err)
	require.True(t, second.Read)
}

func TestMarkReadMissingMessage(t *testing.T) {
	s := newTestStore(t)
	u1 := seedUser(t, s, "a@x.com", "a")

	_, err := s.MarkRead(12345, u1)
	require.ErrorIs(t, err, ErrNotFound)
}
