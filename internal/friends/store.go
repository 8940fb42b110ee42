package friends

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rochd1/the-final-progect/internal/storage"
)

const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

var (
	ErrAlreadySent  = errors.New("request already sent")
	ErrSelfRequest  = errors.New("cannot friend yourself")
	ErrNotFound     = errors.New("request not found")
	ErrNotRecipient = errors.New("only the recipient can respond")
	ErrBadAction    = errors.New("action must be accepted or rejected")
)

type Request struct {
	ID     int64  `json:"id"`
	FromID int64  `json:"from_id"`
	ToID   int64  `json:"to_id"`
	Status string `json:"status"`
}

// Friend is the other side of an accepted edge, carrying enough of the
// directory profile for a friend list.
type Friend struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	VibeCode  string `json:"vibe_code"`
	AvatarURL string `json:"avatar_url"`
}

// PendingRequest pairs an incoming request with its sender's profile.
type PendingRequest struct {
	ID   int64  `json:"id"`
	From Friend `json:"from"`
}

type Store struct {
	DB *storage.Handle
}

// Create inserts a pending edge from -> to. A repeated request between
// the same pair, in either state, is rejected.
func (s *Store) Create(fromID, toID int64) (Request, error) {
	if fromID == toID {
		return Request{}, ErrSelfRequest
	}

	var n int
	err := s.DB.QueryRow(
		`SELECT COUNT(1) FROM friend_requests
		 WHERE (from_id=? AND to_id=?) OR (from_id=? AND to_id=?)`,
		fromID, toID, toID, fromID,
	).Scan(&n)
	if err != nil {
		return Request{}, fmt.Errorf("create request: %w", err)
	}
	if n > 0 {
		return Request{}, ErrAlreadySent
	}

	id, err := s.DB.InsertID(
		`INSERT INTO friend_requests (from_id, to_id, status) VALUES (?, ?, ?)`,
		fromID, toID, StatusPending,
	)
	if err != nil {
		return Request{}, fmt.Errorf("create request: %w", err)
	}
	return Request{ID: id, FromID: fromID, ToID: toID, Status: StatusPending}, nil
}

// Respond lets the recipient accept or reject a pending request.
func (s *Store) Respond(requestID, userID int64, action string) (Request, error) {
	if action != StatusAccepted && action != StatusRejected {
		return Request{}, ErrBadAction
	}

	var r Request
	err := s.DB.QueryRow(
		`SELECT id, from_id, to_id, status FROM friend_requests WHERE id=?`, requestID,
	).Scan(&r.ID, &r.FromID, &r.ToID, &r.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	if err != nil {
		return Request{}, fmt.Errorf("respond: %w", err)
	}
	if r.ToID != userID {
		return Request{}, ErrNotRecipient
	}

	if _, err := s.DB.Exec(`UPDATE friend_requests SET status=? WHERE id=?`, action, requestID); err != nil {
		return Request{}, fmt.Errorf("respond: %w", err)
	}
	r.Status = action
	return r, nil
}

// Pending returns incoming requests still waiting on userID.
func (s *Store) Pending(userID int64) ([]PendingRequest, error) {
	rows, err := s.DB.Query(
		`SELECT fr.id, u.id, u.username, u.email, u.vibe_code, COALESCE(u.avatar_url, '')
		 FROM friend_requests fr
		 JOIN users u ON u.id = fr.from_id
		 WHERE fr.to_id=? AND fr.status=?
		 ORDER BY fr.id ASC`,
		userID, StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("pending: %w", err)
	}
	defer rows.Close()

	var list []PendingRequest
	for rows.Next() {
		var p PendingRequest
		if err := rows.Scan(&p.ID, &p.From.ID, &p.From.Username, &p.From.Email, &p.From.VibeCode, &p.From.AvatarURL); err != nil {
			return nil, fmt.Errorf("pending: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Friends returns the other user of every accepted edge touching userID.
func (s *Store) Friends(userID int64) ([]Friend, error) {
	rows, err := s.DB.Query(
		`SELECT u.id, u.username, u.email, u.vibe_code, COALESCE(u.avatar_url, '')
		 FROM friend_requests fr
		 JOIN users u ON u.id = CASE WHEN fr.from_id=? THEN fr.to_id ELSE fr.from_id END
		 WHERE (fr.from_id=? OR fr.to_id=?) AND fr.status=?
		 ORDER BY u.username ASC`,
		userID, userID, userID, StatusAccepted,
	)
	if err != nil {
		return nil, fmt.Errorf("friends: %w", err)
	}
	defer rows.Close()

	var list []Friend
	for rows.Next() {
		var f Friend
		if err := rows.Scan(&f.ID, &f.Username, &f.Email, &f.VibeCode, &f.AvatarURL); err != nil {
			return nil, fmt.Errorf("friends: %w", err)
		}
		list = append(list, f)
	}
	return list, rows.Err()
}

// FriendIDs is the fan-out variant of Friends used by presence broadcasts.
func (s *Store) FriendIDs(userID int64) ([]int64, error) {
	rows, err := s.DB.Query(
		`SELECT CASE WHEN from_id=? THEN to_id ELSE from_id END
		 FROM friend_requests
		 WHERE (from_id=? OR to_id=?) AND status=?`,
		userID, userID, userID, StatusAccepted,
	)
	if err != nil {
		return nil, fmt.Errorf("friend ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("friend ids: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Accepted reports whether a and b share an accepted edge. This is the
// authorization predicate on the message-send path.
func (s *Store) Accepted(a, b int64) (bool, error) {
	var n int
	err := s.DB.QueryRow(
		`SELECT COUNT(1) FROM friend_requests
		 WHERE ((from_id=? AND to_id=?) OR (from_id=? AND to_id=?)) AND status=?`,
		a, b, b, a, StatusAccepted,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("accepted: %w", err)
	}
	return n > 0, nil
}
