package chat

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rochd1/the-final-progect/internal/messages"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 5120
)

type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID int64
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}
		c.Hub.DB.Exec(`UPDATE users SET last_active=CURRENT_TIMESTAMP WHERE id=?`, c.UserID)

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.reply(EventError, ErrorPayload{Message: "malformed envelope"})
			continue
		}
		c.dispatch(env)
	}
}

// dispatch routes one inbound event. Failures are local to the event:
// they are acked or reported to this connection and never tear it down.
func (c *Client) dispatch(env Envelope) {
	switch env.Type {
	case EventJoin:
		// Joining happens on connect from the token identity; the event
		// survives for protocol compatibility but cannot move rooms.
		p, err := Decode[JoinPayload](env.Data)
		if err == nil && p.UserID != c.UserID {
			c.reply(EventError, ErrorPayload{Event: EventJoin, Message: "cannot join another user's room"})
		}

	case EventSendMessage:
		p, err := Decode[SendPayload](env.Data)
		if err != nil {
			c.reply(EventSendAck, AckPayload{Error: err.Error()})
			return
		}
		msg, err := c.Hub.SendMessage(c.UserID, p.To, p.Content)
		if err != nil {
			c.reply(EventSendAck, AckPayload{ClientID: p.ClientID, Error: err.Error()})
			return
		}
		c.reply(EventSendAck, AckPayload{ClientID: p.ClientID, Message: &msg})

	case EventTyping:
		p, err := Decode[TypingPayload](env.Data)
		if err != nil {
			c.reply(EventError, ErrorPayload{Event: EventTyping, Message: err.Error()})
			return
		}
		c.Hub.RelayTyping(c.UserID, p.ReceiverID)

	case EventMessageRead:
		p, err := Decode[ReadPayload](env.Data)
		if err != nil {
			c.reply(EventError, ErrorPayload{Event: EventMessageRead, Message: err.Error()})
			return
		}
		if _, err := c.Hub.MarkRead(c.UserID, p.MessageID); err != nil {
			c.reply(EventError, ErrorPayload{Event: EventMessageRead, Message: readErrMessage(err)})
		}

	default:
		c.reply(EventError, ErrorPayload{Message: "unknown event type"})
	}
}

func readErrMessage(err error) string {
	if messages.IsAuthorization(err) || messages.IsValidation(err) || err == messages.ErrNotFound {
		return err.Error()
	}
	log.Printf("[chat] mark read failed: %v", err)
	return "mark read failed"
}

func (c *Client) reply(eventType string, payload any) {
	data, err := Encode(eventType, payload)
	if err != nil {
		log.Printf("[chat] failed to marshal %s reply: %v", eventType, err)
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
