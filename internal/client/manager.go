package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rochd1/the-final-progect/internal/chat"
)

const (
	reconnectAttempts = 5
	reconnectDelay    = time.Second
)

// ErrDisconnected is returned by Send while no connection is live. The
// caller's optimistic state stays pending; nothing reached the server.
var ErrDisconnected = errors.New("not connected")

// Manager owns the live connection for one authenticated session. It is
// constructed once at session start and injected wherever it is needed;
// Connect and Close bracket the session, not individual views. Every
// (re)connect issues the join before any push can be expected.
type Manager struct {
	url    string
	token  string
	userID int64

	handler func(chat.Envelope)

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func NewManager(url, token string, userID int64, handler func(chat.Envelope)) *Manager {
	return &Manager{
		url:     url,
		token:   token,
		userID:  userID,
		handler: handler,
	}
}

// Connect dials, joins the session's room and starts the read loop.
func (m *Manager) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("manager closed")
	}
	if m.conn != nil {
		return nil
	}
	conn, err := m.dial()
	if err != nil {
		return err
	}
	m.conn = conn
	go m.readLoop(conn)
	return nil
}

func (m *Manager) dial() (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(m.url+"?token="+m.token, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	join, err := chat.Encode(chat.EventJoin, chat.JoinPayload{UserID: m.userID})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join: %w", err)
	}
	return conn, nil
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var env chat.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("[client] dropping malformed event: %v", err)
			continue
		}
		if m.handler != nil {
			m.handler(env)
		}
	}

	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
	}
	closed := m.closed
	m.mu.Unlock()

	if !closed {
		m.reconnect()
	}
}

func (m *Manager) reconnect() {
	for attempt := 1; attempt <= reconnectAttempts; attempt++ {
		time.Sleep(reconnectDelay)

		m.mu.Lock()
		if m.closed || m.conn != nil {
			m.mu.Unlock()
			return
		}
		conn, err := m.dial()
		if err == nil {
			m.conn = conn
			m.mu.Unlock()
			go m.readLoop(conn)
			return
		}
		m.mu.Unlock()
		log.Printf("[client] reconnect attempt %d failed: %v", attempt, err)
	}
	log.Printf("[client] giving up after %d reconnect attempts", reconnectAttempts)
}

// Send emits one event. A failure here is a transport failure: the
// server never saw the intent.
func (m *Manager) Send(eventType string, payload any) error {
	data, err := chat.Encode(eventType, payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return ErrDisconnected
	}
	if err := m.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// SendIntent emits a send-intent built by View.SendOptimistic.
func (m *Manager) SendIntent(p chat.SendPayload) error {
	return m.Send(chat.EventSendMessage, p)
}

// Typing emits an ephemeral typing signal for the given receiver.
func (m *Manager) Typing(receiverID int64) error {
	return m.Send(chat.EventTyping, chat.TypingPayload{SenderID: m.userID, ReceiverID: receiverID})
}

// MarkRead emits a read receipt for the given message.
func (m *Manager) MarkRead(messageID int64) error {
	return m.Send(chat.EventMessageRead, chat.ReadPayload{MessageID: messageID})
}

// Close ends the session's connection for good.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.conn != nil {
		err := m.conn.Close()
		m.conn = nil
		return err
	}
	return nil
}
