package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_AppendAndListOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	for _, entry := range []struct {
		id     string
		offset time.Duration
	}{
		{"m3", 3 * time.Second},
		{"m1", 1 * time.Second},
		{"m2", 2 * time.Second},
	} {
		require.NoError(t, s.Append(ctx, &PendingMessage{
			MessageID:   entry.id,
			SenderID:    "alice",
			RecipientID: "bob",
			Payload:     []byte("ciphertext"),
			CreatedAt:   base.Add(entry.offset),
		}))
	}

	messages, err := s.ListByRecipient(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "m1", messages[0].MessageID)
	assert.Equal(t, "m2", messages[1].MessageID)
	assert.Equal(t, "m3", messages[2].MessageID)
}

func TestMemoryStore_EqualTimestampsOrderByMessageID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	at := time.Now().UTC()

	for _, id := range []string{"m2", "m3", "m1"} {
		require.NoError(t, s.Append(ctx, &PendingMessage{
			MessageID:   id,
			SenderID:    "alice",
			RecipientID: "bob",
			CreatedAt:   at,
		}))
	}

	messages, err := s.ListByRecipient(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	for i, want := range []string{"m1", "m2", "m3"} {
		assert.Equal(t, want, messages[i].MessageID)
	}
}

func TestMemoryStore_AppendDeduplicates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	msg := &PendingMessage{MessageID: "m1", SenderID: "alice", RecipientID: "bob"}
	require.NoError(t, s.Append(ctx, msg))
	require.NoError(t, s.Append(ctx, msg))

	messages, err := s.ListByRecipient(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestMemoryStore_RemoveIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, &PendingMessage{MessageID: "m1", SenderID: "alice", RecipientID: "bob"}))
	require.NoError(t, s.Remove(ctx, "bob", "m1"))
	require.NoError(t, s.Remove(ctx, "bob", "m1"))
	require.NoError(t, s.Remove(ctx, "carol", "does-not-exist"))

	messages, err := s.ListByRecipient(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestMemoryStore_ListIsolatesCallers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, &PendingMessage{MessageID: "m1", SenderID: "alice", RecipientID: "bob"}))

	messages, err := s.ListByRecipient(ctx, "bob")
	require.NoError(t, err)
	messages[0].SenderID = "mallory"

	again, err := s.ListByRecipient(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", again[0].SenderID)
}

func TestMemoryStore_FailNext(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	s.FailNext(boom)
	err := s.Append(ctx, &PendingMessage{MessageID: "m1", RecipientID: "bob"})
	assert.ErrorIs(t, err, boom)

	// Only the next call fails.
	assert.NoError(t, s.Append(ctx, &PendingMessage{MessageID: "m1", RecipientID: "bob"}))
}

func TestMemoryStore_DeviceTokenLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, &DeviceToken{
		UserID:   "alice",
		DeviceID: "phone",
		FCMToken: "tok-1",
	}))

	tokens, err := s.ListActiveByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "tok-1", tokens[0].FCMToken)

	// Re-registering the same device replaces the token.
	require.NoError(t, s.Upsert(ctx, &DeviceToken{
		UserID:   "alice",
		DeviceID: "phone",
		FCMToken: "tok-2",
	}))
	tokens, err = s.ListActiveByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "tok-2", tokens[0].FCMToken)

	require.NoError(t, s.Deactivate(ctx, "alice", "phone"))
	tokens, err = s.ListActiveByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestMemoryStore_UpsertReassignsTokenAcrossUsers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// Same physical device, new account: the FCM token moves with it.
	require.NoError(t, s.Upsert(ctx, &DeviceToken{UserID: "alice", DeviceID: "phone", FCMToken: "tok-1"}))
	require.NoError(t, s.Upsert(ctx, &DeviceToken{UserID: "carol", DeviceID: "phone", FCMToken: "tok-1"}))

	old, err := s.ListActiveByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, old, "token must be detached from the previous owner")

	current, err := s.ListActiveByUser(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, "tok-1", current[0].FCMToken)
}
