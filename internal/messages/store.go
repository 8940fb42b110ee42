package messages

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rochd1/the-final-progect/internal/storage"
	"github.com/rochd1/the-final-progect/internal/utils"
)

type Message struct {
	ID      int64     `json:"id"`
	From    int64     `json:"from"`
	To      int64     `json:"to"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sent_at"`
	Read    bool      `json:"read"`
}

// Store is the append-only record of messages between user pairs.
type Store struct {
	DB *storage.Handle
}

// Append validates and persists a new message. Content is trimmed; a
// message that is empty after trimming is rejected, as is an unknown
// sender or recipient. The timestamp is assigned here so the persisted
// instant and the broadcast instant are the same value.
func (s *Store) Append(from, to int64, content string) (Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, &ValidationError{Reason: "content must not be empty"}
	}
	if from == to {
		return Message{}, &ValidationError{Reason: "cannot message yourself"}
	}

	var n int
	if err := s.DB.QueryRow(`SELECT COUNT(1) FROM users WHERE id IN (?, ?)`, from, to).Scan(&n); err != nil {
		return Message{}, fmt.Errorf("append: %w", err)
	}
	if n != 2 {
		return Message{}, &ValidationError{Reason: "unknown sender or recipient"}
	}

	sentAt := time.Now().UTC()
	id, err := s.DB.InsertID(
		`INSERT INTO messages (from_id, to_id, content, sent_at, read) VALUES (?, ?, ?, ?, FALSE)`,
		from, to, content, sentAt,
	)
	if err != nil {
		return Message{}, fmt.Errorf("append: %w", err)
	}

	return Message{
		ID:      id,
		From:    from,
		To:      to,
		Content: content,
		SentAt:  sentAt,
	}, nil
}

// History returns every message exchanged between a and b, in either
// direction, ascending by timestamp. limit <= 0 means no limit.
func (s *Store) History(a, b int64, limit int) ([]Message, error) {
	q := `SELECT id, from_id, to_id, content, sent_at, read
		FROM messages
		WHERE (from_id=? AND to_id=?) OR (from_id=? AND to_id=?)
		ORDER BY sent_at ASC, id ASC`
	args := []any{a, b, b, a}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.DB.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var list []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// Get fetches a single message by its durable id.
func (s *Store) Get(id int64) (Message, error) {
	row := s.DB.QueryRow(
		`SELECT id, from_id, to_id, content, sent_at, read FROM messages WHERE id=?`, id)
	m, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	return m, err
}

// MarkRead flips the read flag. Only the recipient may do so; the
// transition is monotonic and re-marking an already-read message is a
// no-op that still succeeds.
func (s *Store) MarkRead(messageID, readerID int64) (Message, error) {
	m, err := s.Get(messageID)
	if err != nil {
		return Message{}, err
	}
	if m.To != readerID {
		return Message{}, &AuthorizationError{Reason: "only the recipient can mark a message read"}
	}
	if m.Read {
		return m, nil
	}
	if _, err := s.DB.Exec(`UPDATE messages SET read=TRUE WHERE id=?`, messageID); err != nil {
		return Message{}, fmt.Errorf("mark read: %w", err)
	}
	m.Read = true
	return m, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(r rowScanner) (Message, error) {
	var m Message
	var at any
	if err := r.Scan(&m.ID, &m.From, &m.To, &m.Content, &at, &m.Read); err != nil {
		return Message{}, err
	}
	m.SentAt = utils.CoerceTime(at)
	return m, nil
}

func scanRow(r *sql.Row) (Message, error) {
	return scanMessage(r)
}

