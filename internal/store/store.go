package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// PendingMessage is a message envelope persisted because the recipient was
// offline at send time. It lives until the recipient acknowledges delivery.
type PendingMessage struct {
	MessageID   string    `json:"message_id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Payload     []byte    `json:"payload"`
	MessageType string    `json:"message_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// PendingStore is the durable queue of undelivered messages, keyed by
// (recipient_id, message_id).
type PendingStore interface {
	// Append persists the message. It must return an error on any storage
	// failure; the caller treats a nil return as a durability guarantee.
	Append(ctx context.Context, msg *PendingMessage) error

	// ListByRecipient returns all pending messages for a recipient ordered by
	// created_at ascending. It does not consume them.
	ListByRecipient(ctx context.Context, recipientID string) ([]*PendingMessage, error)

	// Remove deletes the entry for (recipientID, messageID). Removing an
	// entry that does not exist is not an error.
	Remove(ctx context.Context, recipientID, messageID string) error
}

// DeviceToken is a push registration for one of a user's devices.
type DeviceToken struct {
	UserID   string
	DeviceID string
	FCMToken string
	Platform string
	IsActive bool
}

// DeviceTokenStore holds push registrations so the notification trigger can
// reach a user's devices.
type DeviceTokenStore interface {
	// Upsert registers or updates the token for (userID, deviceID). A token
	// already registered to another device is reassigned.
	Upsert(ctx context.Context, token *DeviceToken) error

	// ListActiveByUser returns the active tokens for a user.
	ListActiveByUser(ctx context.Context, userID string) ([]*DeviceToken, error)

	// Deactivate marks the token for (userID, deviceID) inactive.
	Deactivate(ctx context.Context, userID, deviceID string) error
}
