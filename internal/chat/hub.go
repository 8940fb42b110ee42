package chat

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rochd1/the-final-progect/internal/friends"
	"github.com/rochd1/the-final-progect/internal/messages"
	"github.com/rochd1/the-final-progect/internal/storage"
	"github.com/rochd1/the-final-progect/internal/utils"
)

// Hub is the presence registry and delivery router: it maps each user id
// to that user's live connections and fans persisted messages, typing
// signals and read receipts out to them.
type Hub struct {
	DB       *storage.Handle
	Messages *messages.Store
	Friends  *friends.Store

	register   chan *Client
	unregister chan *Client

	// userID -> set of client connections (handles multi-tab / multi-device)
	mu      sync.RWMutex
	clients map[int64]map[*Client]bool
}

func NewHub(db *storage.Handle, store *messages.Store, fstore *friends.Store) *Hub {
	return &Hub{
		DB:         db,
		Messages:   store,
		Friends:    fstore,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[int64]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			//mark user online
			h.DB.Exec(`UPDATE users SET last_active=CURRENT_TIMESTAMP WHERE id=?`, client.UserID)

			h.mu.Lock()
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[*Client]bool)
			}
			h.clients[client.UserID][client] = true
			h.mu.Unlock()

			h.BroadcastPresence(client.UserID, "online")
		case client := <-h.unregister:
			h.mu.Lock()
			wentOffline := false
			if set, ok := h.clients[client.UserID]; ok {
				if _, ok := set[client]; ok {
					delete(set, client)
					close(client.Send)
					if len(set) == 0 {
						delete(h.clients, client.UserID)
						wentOffline = true
					}
				}
			}
			h.mu.Unlock()

			if wentOffline {
				h.DB.Exec(`UPDATE users SET last_active=CURRENT_TIMESTAMP WHERE id=?`, client.UserID)
				h.BroadcastPresence(client.UserID, "offline")
			}
		}
	}
}

// BroadcastToUser delivers a payload to every live connection in the
// user's room. Best effort: nothing live means the payload is dropped,
// and a client whose send buffer is full skips this event.
func (h *Hub) BroadcastToUser(userID int64, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[userID] {
		select {
		case client.Send <- payload:
		default:
			// slow client: skip, the pump's ping deadline will reap it
		}
	}
}

// SendMessage runs the full send-intent path: friend-edge authorization,
// durable append, then fan-out to both rooms. Broadcast never happens
// before the append succeeds.
func (h *Hub) SendMessage(from, to int64, content string) (messages.Message, error) {
	ok, err := h.Friends.Accepted(from, to)
	if err != nil {
		return messages.Message{}, fmt.Errorf("send message: %w", err)
	}
	if !ok {
		return messages.Message{}, &messages.AuthorizationError{Reason: "users are not friends"}
	}

	msg, err := h.Messages.Append(from, to, content)
	if err != nil {
		return messages.Message{}, err
	}

	payload, err := Encode(EventReceiveMessage, msg)
	if err != nil {
		log.Printf("[hub] failed to marshal message %d: %v", msg.ID, err)
		return msg, nil
	}
	h.BroadcastToUser(to, payload)
	h.BroadcastToUser(from, payload) // echo to the sender's other sessions
	return msg, nil
}

// RelayTyping forwards an ephemeral typing signal to the receiver's
// room. No persistence, no acknowledgement.
func (h *Hub) RelayTyping(senderID, receiverID int64) {
	payload, err := Encode(EventTyping, TypingPayload{SenderID: senderID, ReceiverID: receiverID})
	if err != nil {
		log.Printf("[hub] failed to marshal typing signal: %v", err)
		return
	}
	h.BroadcastToUser(receiverID, payload)
}

// MarkRead flips the read flag through the store and notifies the
// original sender's room.
func (h *Hub) MarkRead(readerID, messageID int64) (messages.Message, error) {
	msg, err := h.Messages.MarkRead(messageID, readerID)
	if err != nil {
		return messages.Message{}, err
	}

	payload, err := Encode(EventMessageRead, ReceiptPayload{MessageID: msg.ID, ReaderID: readerID})
	if err != nil {
		log.Printf("[hub] failed to marshal read receipt for message %d: %v", msg.ID, err)
		return msg, nil
	}
	h.BroadcastToUser(msg.From, payload)
	return msg, nil
}

// BroadcastPresence tells a user's accepted friends about an
// online/offline transition.
func (h *Hub) BroadcastPresence(userID int64, status string) {
	var lastActive any
	_ = h.DB.QueryRow(`SELECT last_active FROM users WHERE id=?`, userID).Scan(&lastActive)

	p := PresencePayload{
		UserID: userID,
		Status: status,
	}
	if t := utils.CoerceTime(lastActive); !t.IsZero() {
		p.LastActive = t.Format(time.RFC3339)
	}
	payload, err := Encode(EventPresence, p)
	if err != nil {
		log.Printf("[hub] failed to marshal presence for user %d: %v", userID, err)
		return
	}

	ids, err := h.Friends.FriendIDs(userID)
	if err != nil {
		log.Printf("[hub] failed to fetch friends of user %d: %v", userID, err)
		return
	}
	for _, id := range ids {
		h.BroadcastToUser(id, payload)
	}
}
