package push

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/takeone/relay/internal/metrics"
	"github.com/takeone/relay/internal/store"
)

const (
	notifyTitle   = "New Message"
	notifyBody    = "You have a new encrypted message"
	notifyTimeout = 10 * time.Second
)

// Sender is the transport that actually delivers a push. Satisfied by
// *FCMClient; tests substitute a recorder.
type Sender interface {
	Send(ctx context.Context, fcmToken, title, body string, data map[string]string) error
}

// Trigger wakes up offline recipients after a message has been persisted for
// them. It is fire-and-forget: delivery failures are logged and never reach
// the sender's path, since durability is already satisfied by the store.
type Trigger struct {
	sender Sender
	tokens store.DeviceTokenStore
	logger zerolog.Logger
}

func NewTrigger(sender Sender, tokens store.DeviceTokenStore, logger zerolog.Logger) *Trigger {
	return &Trigger{sender: sender, tokens: tokens, logger: logger}
}

// Notify composes a generic new-message push for the recipient of msg and
// sends it to each active device. The encrypted payload is never included.
func (t *Trigger) Notify(ctx context.Context, msg *store.PendingMessage) {
	if t.sender == nil {
		t.logger.Debug().Str("user_id", msg.RecipientID).Msg("push disabled, skipping notification")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	tokens, err := t.tokens.ListActiveByUser(ctx, msg.RecipientID)
	if err != nil {
		t.logger.Error().Err(err).Str("user_id", msg.RecipientID).Msg("failed to load device tokens")
		return
	}
	if len(tokens) == 0 {
		t.logger.Warn().Str("user_id", msg.RecipientID).Msg("no active push tokens for user")
		return
	}

	data := map[string]string{
		"type":      "NEW_MESSAGE",
		"senderId":  msg.SenderID,
		"messageId": msg.MessageID,
	}

	for _, token := range tokens {
		if err := t.sender.Send(ctx, token.FCMToken, notifyTitle, notifyBody, data); err != nil {
			t.logger.Error().Err(err).
				Str("user_id", msg.RecipientID).
				Str("device_id", token.DeviceID).
				Msg("push send failed")
			continue
		}
		metrics.PushSent.Inc()
	}
}
