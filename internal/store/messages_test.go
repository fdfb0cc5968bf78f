package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendEnvelope(t *testing.T, msgs *Messages, id, to string, ts int64) {
	t.Helper()
	err := msgs.Append(context.Background(), &Envelope{
		ID:               id,
		FromUser:         "sender",
		ToUser:           to,
		EncryptedContent: "cipher-" + id,
		Timestamp:        ts,
	})
	require.NoError(t, err)
}

func TestFetchAndMarkDeliveredOrder(t *testing.T) {
	msgs := NewMessages(newTestDB(t))

	// Appended out of timestamp order on purpose.
	appendEnvelope(t, msgs, "m2", "bob", 200)
	appendEnvelope(t, msgs, "m1", "bob", 100)
	appendEnvelope(t, msgs, "m3", "bob", 300)

	pending, err := msgs.FetchAndMarkDelivered(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, pending, 3)
	for i, want := range []string{"m1", "m2", "m3"} {
		assert.Equal(t, want, pending[i].ID)
		assert.True(t, pending[i].Delivered)
	}
}

func TestFetchAndMarkDeliveredTwice(t *testing.T) {
	msgs := NewMessages(newTestDB(t))

	appendEnvelope(t, msgs, "m1", "bob", 100)

	first, err := msgs.FetchAndMarkDelivered(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := msgs.FetchAndMarkDelivered(context.Background(), "bob")
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestFetchAndMarkDeliveredPerRecipient(t *testing.T) {
	msgs := NewMessages(newTestDB(t))

	appendEnvelope(t, msgs, "m1", "bob", 100)
	appendEnvelope(t, msgs, "m2", "carol", 200)

	pending, err := msgs.FetchAndMarkDelivered(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "m1", pending[0].ID)

	pending, err = msgs.FetchAndMarkDelivered(context.Background(), "carol")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "m2", pending[0].ID)
}

func TestMarkDeliveredExcludesFromFlush(t *testing.T) {
	msgs := NewMessages(newTestDB(t))

	appendEnvelope(t, msgs, "m1", "bob", 100)
	appendEnvelope(t, msgs, "m2", "bob", 200)

	require.NoError(t, msgs.MarkDelivered(context.Background(), "m1"))

	pending, err := msgs.FetchAndMarkDelivered(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "m2", pending[0].ID)
}

func TestAppendPreservesContent(t *testing.T) {
	msgs := NewMessages(newTestDB(t))

	content := `{"iv":"abc","data":"opaque==","mac":"def"}`
	err := msgs.Append(context.Background(), &Envelope{
		ID:               "m1",
		FromUser:         "alice",
		ToUser:           "bob",
		EncryptedContent: content,
		Timestamp:        123,
	})
	require.NoError(t, err)

	pending, err := msgs.FetchAndMarkDelivered(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, content, pending[0].EncryptedContent)
	assert.Equal(t, "alice", pending[0].FromUser)
	assert.Equal(t, int64(123), pending[0].Timestamp)
}

func TestFlushLargeBatch(t *testing.T) {
	msgs := NewMessages(newTestDB(t))

	for i := 0; i < 150; i++ {
		appendEnvelope(t, msgs, fmt.Sprintf("m%03d", i), "bob", int64(i))
	}

	pending, err := msgs.FetchAndMarkDelivered(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, pending, 150)
	assert.Equal(t, "m000", pending[0].ID)
	assert.Equal(t, "m149", pending[149].ID)

	second, err := msgs.FetchAndMarkDelivered(context.Background(), "bob")
	require.NoError(t, err)
	assert.Empty(t, second)
}
