package messages

import (
	"testing"

	"github.com/cbodonnell/progsync/pkg/progression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() progression.Snapshot {
	state := progression.NewState()
	state.Currency = 35
	state.Set(progression.KeySpeed, 2)
	state.Set(progression.KeyAirDash, 1)
	return progression.NewSnapshot("p1", 1_700_000_000_000, 7, state)
}

func TestSerializeDeserializeMessage(t *testing.T) {
	tests := []struct {
		name    string
		message *Message
	}{
		{
			name:    "empty payload",
			message: &Message{ClientID: 1, Type: MessageTypeClientPing, Payload: []byte{}},
		},
		{
			name:    "json payload",
			message: &Message{ClientID: 42, Type: MessageTypeClientPurchase, Payload: []byte(`{"requestID":"r1","key":"Jump","cost":10}`)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := SerializeMessage(tt.message)
			require.NoError(t, err)

			got, err := DeserializeMessage(b)
			require.NoError(t, err)
			assert.Equal(t, tt.message.ClientID, got.ClientID)
			assert.Equal(t, tt.message.Type, got.Type)
			assert.Equal(t, string(tt.message.Payload), string(got.Payload))
		})
	}
}

func TestDeserializeMessage_Garbage(t *testing.T) {
	_, err := DeserializeMessage([]byte("definitely not zstd"))
	assert.Error(t, err)

	_, err = DeserializeMessageFlatbuffer([]byte{1})
	assert.Error(t, err)
}

func TestSerializeDeserializeSnapshot(t *testing.T) {
	want := testSnapshot()

	b, err := SerializeSnapshot(want)
	require.NoError(t, err)
	got, err := DeserializeSnapshot(b)
	require.NoError(t, err)

	assert.True(t, want.Equal(got), "got %+v", got)
	assert.Equal(t, int64(0), got.Level(progression.KeyLives))
}

func TestSerializeDeserializePurchaseResult(t *testing.T) {
	want := PurchaseResult{
		RequestID: "r1",
		PurchaseResult: progression.PurchaseResult{
			Accepted: false,
			Reason:   progression.ReasonInsufficientFunds,
			Snapshot: testSnapshot(),
		},
	}

	b, err := SerializePurchaseResult(want)
	require.NoError(t, err)
	got, err := DeserializePurchaseResult(b)
	require.NoError(t, err)

	assert.Equal(t, "r1", got.RequestID)
	assert.False(t, got.Accepted)
	assert.Equal(t, progression.ReasonInsufficientFunds, got.Reason)
	assert.True(t, want.Snapshot.Equal(got.Snapshot))
}

func TestJSONMessage(t *testing.T) {
	m, err := NewJSONMessage(3, MessageTypeClientPurchase, ClientPurchase{RequestID: "r1", Key: "Lives", Cost: 20})
	require.NoError(t, err)

	b, err := SerializeMessage(m)
	require.NoError(t, err)
	decoded, err := DeserializeMessage(b)
	require.NoError(t, err)

	var purchase ClientPurchase
	require.NoError(t, decoded.DecodeJSON(&purchase))
	assert.Equal(t, ClientPurchase{RequestID: "r1", Key: "Lives", Cost: 20}, purchase)
	assert.Equal(t, "purchase", decoded.Type.String())
}
