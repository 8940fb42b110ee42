package client

import (
	"log"
	"sync"

	"github.com/rochd1/the-final-progect/internal/chat"
	"github.com/rochd1/the-final-progect/internal/messages"
)

// Session glues a connection manager to the currently selected
// conversation. Selecting a partner swaps in a fresh history-seeded
// view; events for other conversations fall through harmlessly.
type Session struct {
	mu   sync.Mutex
	view *View

	// OnSendFailed is invoked when a send-intent is rejected, after the
	// optimistic entry has been rolled back.
	OnSendFailed func(error)
}

// Select replaces the active view. Call it with NewView(self, peer,
// history) after every partner switch.
func (s *Session) Select(v *View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
}

func (s *Session) View() *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Handle routes one inbound envelope into the active view. It is the
// handler to pass to NewManager.
func (s *Session) Handle(env chat.Envelope) {
	v := s.View()
	if v == nil {
		return
	}

	switch env.Type {
	case chat.EventReceiveMessage:
		m, err := chat.Decode[messages.Message](env.Data)
		if err != nil {
			log.Printf("[client] bad push: %v", err)
			return
		}
		v.ApplyPush(m)

	case chat.EventSendAck:
		ack, err := chat.Decode[chat.AckPayload](env.Data)
		if err != nil {
			log.Printf("[client] bad ack: %v", err)
			return
		}
		if err := v.ApplyAck(ack); err != nil && s.OnSendFailed != nil {
			s.OnSendFailed(err)
		}

	case chat.EventTyping:
		t, err := chat.Decode[chat.TypingPayload](env.Data)
		if err != nil {
			return
		}
		v.ApplyTyping(t)

	case chat.EventMessageRead:
		r, err := chat.Decode[chat.ReceiptPayload](env.Data)
		if err != nil {
			return
		}
		v.ApplyReceipt(r)
	}
}
