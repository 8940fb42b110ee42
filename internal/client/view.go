package client

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rochd1/the-final-progect/internal/chat"
	"github.com/rochd1/the-final-progect/internal/messages"
	"github.com/samber/lo"
)

const (
	// inflightWindow bounds how long a provisional id suppresses
	// duplicate-looking echoes before it is evicted.
	inflightWindow = 5 * time.Second
	// echoTolerance is the timestamp proximity window for matching a
	// server echo against an optimistic entry, since client and server
	// clocks differ.
	echoTolerance = 10 * time.Second
	// typingWindow is how long the typing indicator stays lit without a
	// renewal.
	typingWindow = 2 * time.Second
)

// Entry is one message in the conversation view. Provisional entries
// carry a client-generated id and have not been confirmed durable yet.
type Entry struct {
	ID          string
	Provisional bool
	From        int64
	To          int64
	Content     string
	SentAt      time.Time
	Read        bool
}

// View is the local ordered state of one conversation. It reconciles
// three inputs without duplication: the history fetch it was seeded
// from, optimistic local sends, and server pushes (which include echoes
// of this client's own sends).
type View struct {
	selfID int64
	peerID int64

	mu          sync.Mutex
	entries     []Entry
	inflight    map[string]time.Time // provisional id -> created at
	typingUntil time.Time

	now func() time.Time
}

// NewView seeds a fresh view from a history fetch. Switching
// conversation partners always means a new view: history is the source
// of truth, stale state from a previous conversation never carries over.
func NewView(selfID, peerID int64, history []messages.Message) *View {
	v := &View{
		selfID:   selfID,
		peerID:   peerID,
		inflight: make(map[string]time.Time),
		now:      time.Now,
	}
	for _, m := range history {
		v.entries = append(v.entries, durableEntry(m))
	}
	return v
}

func durableEntry(m messages.Message) Entry {
	return Entry{
		ID:      strconv.FormatInt(m.ID, 10),
		From:    m.From,
		To:      m.To,
		Content: m.Content,
		SentAt:  m.SentAt,
		Read:    m.Read,
	}
}

// SendOptimistic appends a pending entry with a provisional id and
// returns the wire payload to emit. The id is registered in the
// in-flight set for echo suppression.
func (v *View) SendOptimistic(content string) chat.SendPayload {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.evictLocked()

	id := uuid.NewString()
	now := v.now().UTC()
	v.entries = append(v.entries, Entry{
		ID:          id,
		Provisional: true,
		From:        v.selfID,
		To:          v.peerID,
		Content:     content,
		SentAt:      now,
	})
	v.inflight[id] = now

	return chat.SendPayload{
		ClientID: id,
		From:     v.selfID,
		To:       v.peerID,
		Content:  content,
	}
}

// ApplyAck resolves a send acknowledgement. A success replaces the
// provisional entry with the durable message; a failure removes it and
// returns the error for the UI to surface. Acks for another
// conversation only clear in-flight state, they never add entries.
func (v *View) ApplyAck(ack chat.AckPayload) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.evictLocked()

	_, idx, _ := lo.FindIndexOf(v.entries, func(e Entry) bool { return e.ID == ack.ClientID })

	if ack.Error != "" {
		if idx >= 0 {
			v.entries = append(v.entries[:idx], v.entries[idx+1:]...)
		}
		delete(v.inflight, ack.ClientID)
		return errors.New(ack.Error)
	}
	if ack.Message == nil {
		return nil
	}
	if ack.Message.From != v.peerID && ack.Message.To != v.peerID {
		// Late ack from before a partner switch; this view has nothing
		// to confirm and the message must not leak into it.
		delete(v.inflight, ack.ClientID)
		return nil
	}

	durable := durableEntry(*ack.Message)
	delete(v.inflight, ack.ClientID)

	switch {
	case v.hasDurableLocked(durable.ID):
		// The broadcast echo won the race; drop the provisional copy.
		if idx >= 0 {
			v.entries = append(v.entries[:idx], v.entries[idx+1:]...)
		}
	case idx >= 0:
		v.entries[idx] = durable
	default:
		// Provisional entry already evicted or never recorded.
		v.entries = append(v.entries, durable)
	}
	return nil
}

// ApplyPush merges a pushed message. Echoes of this client's own
// optimistic sends replace their provisional entry instead of
// duplicating it; everything else for this conversation is appended.
// Returns false when the message belongs to another conversation or is
// already present.
func (v *View) ApplyPush(m messages.Message) bool {
	if m.From != v.peerID && m.To != v.peerID {
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.evictLocked()

	durable := durableEntry(m)
	if v.hasDurableLocked(durable.ID) {
		return false
	}

	if m.From == v.selfID {
		// Possible echo of an optimistic send: match by content and
		// timestamp proximity among in-flight provisional entries.
		for i, e := range v.entries {
			if !e.Provisional || e.Content != m.Content {
				continue
			}
			if _, held := v.inflight[e.ID]; !held {
				continue
			}
			if absDuration(m.SentAt.Sub(e.SentAt)) > echoTolerance {
				continue
			}
			delete(v.inflight, e.ID)
			v.entries[i] = durable
			return true
		}
	}

	v.entries = append(v.entries, durable)
	return true
}

// ApplyReceipt marks the referenced message read in the local view.
func (v *View) ApplyReceipt(r chat.ReceiptPayload) {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := strconv.FormatInt(r.MessageID, 10)
	for i := range v.entries {
		if v.entries[i].ID == id {
			v.entries[i].Read = true
			return
		}
	}
}

// ApplyTyping lights the typing indicator; it expires on its own after
// the window unless renewed.
func (v *View) ApplyTyping(t chat.TypingPayload) {
	if t.SenderID != v.peerID {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.typingUntil = v.now().Add(typingWindow)
}

// TypingActive reports whether the peer's typing indicator is lit.
func (v *View) TypingActive() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now().Before(v.typingUntil)
}

// Entries returns a copy of the current ordered view.
func (v *View) Entries() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

// Pending reports how many optimistic entries await confirmation.
func (v *View) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return lo.CountBy(v.entries, func(e Entry) bool { return e.Provisional })
}

func (v *View) hasDurableLocked(id string) bool {
	return lo.SomeBy(v.entries, func(e Entry) bool { return !e.Provisional && e.ID == id })
}

// evictLocked drops in-flight ids past the window. The entry itself
// stays visible as pending; only the dedupe claim expires, so a
// legitimately retried identical message is not suppressed forever.
func (v *View) evictLocked() {
	cutoff := v.now().UTC().Add(-inflightWindow)
	for id, created := range v.inflight {
		if created.Before(cutoff) {
			delete(v.inflight, id)
		}
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
