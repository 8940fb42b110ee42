package client

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rochd1/the-final-progect/internal/chat"
	"github.com/rochd1/the-final-progect/internal/messages"
	"github.com/stretchr/testify/require"
)

const (
	self int64 = 1
	peer int64 = 2
)

func fixedView(t *testing.T, history []messages.Message) (*View, *time.Time) {
	t.Helper()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	v := NewView(self, peer, history)
	v.now = func() time.Time { return now }
	return v, &now
}

func TestOptimisticSendThenAck(t *testing.T) {
	v, _ := fixedView(t, nil)

	p := v.SendOptimistic("hi")
	require.Equal(t, self, p.From)
	require.Equal(t, peer, p.To)
	require.NotEmpty(t, p.ClientID)
	require.Equal(t, 1, v.Pending())

	durable := messages.Message{ID: 42, From: self, To: peer, Content: "hi", SentAt: time.Now().UTC()}
	require.NoError(t, v.ApplyAck(chat.AckPayload{ClientID: p.ClientID, Message: &durable}))

	entries := v.Entries()
	require.Len(t, entries, 1)
	require.False(t, entries[0].Provisional)
	require.Equal(t, "42", entries[0].ID)
	require.Zero(t, v.Pending())
}

func TestEchoPushDoesNotDuplicate(t *testing.T) {
	v, now := fixedView(t, nil)

	p := v.SendOptimistic("hi")

	// the broadcast echo arrives before the ack, with the durable id
	echo := messages.Message{ID: 42, From: self, To: peer, Content: "hi", SentAt: now.Add(time.Second)}
	require.True(t, v.ApplyPush(echo))

	entries := v.Entries()
	require.Len(t, entries, 1, "echo must replace the provisional entry, not duplicate it")
	require.Equal(t, "42", entries[0].ID)

	// the late ack is then a no-op
	require.NoError(t, v.ApplyAck(chat.AckPayload{ClientID: p.ClientID, Message: &echo}))
	require.Len(t, v.Entries(), 1)
}

func TestIncomingPushAppends(t *testing.T) {
	v, now := fixedView(t, nil)

	in := messages.Message{ID: 7, From: peer, To: self, Content: "yo", SentAt: *now}
	require.True(t, v.ApplyPush(in))
	require.Len(t, v.Entries(), 1)

	// the same durable id again is dropped
	require.False(t, v.ApplyPush(in))
	require.Len(t, v.Entries(), 1)
}

func TestPushForOtherConversationIgnored(t *testing.T) {
	v, now := fixedView(t, nil)

	other := messages.Message{ID: 9, From: 99, To: self, Content: "wrong room", SentAt: *now}
	require.False(t, v.ApplyPush(other))
	require.Empty(t, v.Entries())
}

func TestAckForOtherConversationIgnored(t *testing.T) {
	v1, _ := fixedView(t, nil)
	p := v1.SendOptimistic("hi")

	// the ack lands after a partner switch, in the new conversation's view
	v2 := NewView(self, 3, nil)
	durable := messages.Message{ID: 42, From: self, To: peer, Content: "hi", SentAt: time.Now().UTC()}
	require.NoError(t, v2.ApplyAck(chat.AckPayload{ClientID: p.ClientID, Message: &durable}))
	require.Empty(t, v2.Entries(), "ack for another conversation must not add entries")
}

func TestSendFailureRollsBack(t *testing.T) {
	v, _ := fixedView(t, nil)

	p := v.SendOptimistic("doomed")
	require.Equal(t, 1, v.Pending())

	err := v.ApplyAck(chat.AckPayload{ClientID: p.ClientID, Error: "users are not friends"})
	require.EqualError(t, err, "users are not friends")
	require.Empty(t, v.Entries())
	require.Zero(t, v.Pending())
}

func TestInflightEviction(t *testing.T) {
	v, now := fixedView(t, nil)

	v.SendOptimistic("hi")

	// past the window the provisional id no longer claims echoes
	*now = now.Add(inflightWindow + time.Second)

	echo := messages.Message{ID: 42, From: self, To: peer, Content: "hi", SentAt: now.UTC()}
	require.True(t, v.ApplyPush(echo))

	entries := v.Entries()
	require.Len(t, entries, 2, "evicted provisional no longer suppresses a matching push")
	require.True(t, entries[0].Provisional)
	require.False(t, entries[1].Provisional)
}

func TestEchoOutsideToleranceAppends(t *testing.T) {
	v, now := fixedView(t, nil)

	v.SendOptimistic("hi")

	far := messages.Message{ID: 42, From: self, To: peer, Content: "hi", SentAt: now.Add(echoTolerance + time.Minute)}
	require.True(t, v.ApplyPush(far))
	require.Len(t, v.Entries(), 2)
}

func TestReceiptMarksRead(t *testing.T) {
	history := []messages.Message{
		{ID: 5, From: self, To: peer, Content: "hello", SentAt: time.Now().UTC()},
	}
	v, _ := fixedView(t, history)

	v.ApplyReceipt(chat.ReceiptPayload{MessageID: 5, ReaderID: peer})

	entries := v.Entries()
	require.True(t, entries[0].Read)
}

func TestTypingExpiry(t *testing.T) {
	v, now := fixedView(t, nil)

	v.ApplyTyping(chat.TypingPayload{SenderID: peer, ReceiverID: self})
	require.True(t, v.TypingActive())

	*now = now.Add(typingWindow + time.Millisecond)
	require.False(t, v.TypingActive(), "typing state must clear without renewal")

	// signals from someone other than the peer never light the indicator
	v.ApplyTyping(chat.TypingPayload{SenderID: 99, ReceiverID: self})
	require.False(t, v.TypingActive())
}

func TestFriendSwitchStartsFromHistory(t *testing.T) {
	v1, _ := fixedView(t, nil)
	v1.SendOptimistic("stale")

	// switching partners: a fresh view seeded from the new history
	history := []messages.Message{
		{ID: 1, From: 3, To: self, Content: "new conversation", SentAt: time.Now().UTC()},
	}
	v2 := NewView(self, 3, history)

	entries := v2.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "new conversation", entries[0].Content)
	require.Zero(t, v2.Pending(), "stale optimistic state never carries over")
}

func TestSessionRoutesEvents(t *testing.T) {
	var failed error
	s := &Session{OnSendFailed: func(err error) { failed = err }}

	v, _ := fixedView(t, nil)
	s.Select(v)

	p := v.SendOptimistic("hi")

	ackData, err := chat.Encode(chat.EventSendAck, chat.AckPayload{ClientID: p.ClientID, Error: "store unavailable"})
	require.NoError(t, err)
	var env chat.Envelope
	require.NoError(t, json.Unmarshal(ackData, &env))

	s.Handle(env)
	require.EqualError(t, failed, "store unavailable")
	require.Empty(t, v.Entries())
}
