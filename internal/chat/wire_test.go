package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	raw, err := Encode(EventSendMessage, SendPayload{ClientID: "tmp-1", To: 2, Content: "yo"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.Equal(t, EventSendMessage, env.Type)

	p, err := Decode[SendPayload](env.Data)
	require.NoError(t, err)
	require.Equal(t, "tmp-1", p.ClientID)
	require.Equal(t, int64(2), p.To)
	require.Equal(t, "yo", p.Content)
}

func TestDecodeMissingPayload(t *testing.T) {
	_, err := Decode[SendPayload](nil)
	require.ErrorContains(t, err, "missing payload")
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode[SendPayload](json.RawMessage(`{"to":`))
	require.ErrorContains(t, err, "malformed payload")
}

func TestDecodeValidation(t *testing.T) {
	// content is required on a send-intent
	_, err := Decode[SendPayload](json.RawMessage(`{"to":2}`))
	require.ErrorContains(t, err, "invalid payload")

	// receiver is required on a typing signal
	_, err = Decode[TypingPayload](json.RawMessage(`{"sender_id":1}`))
	require.ErrorContains(t, err, "invalid payload")
}
