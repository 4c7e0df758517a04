// Package relay routes encrypted message envelopes between connected users,
// falling back to the pending store and a push notification when the
// recipient is offline.
package relay

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/takeone/relay/internal/metrics"
	"github.com/takeone/relay/internal/store"
)

// PresenceStore is the shared reachability record, readable by any relay
// instance.
type PresenceStore interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// Notifier wakes an offline recipient after their message has been persisted.
type Notifier interface {
	Notify(ctx context.Context, msg *store.PendingMessage)
}

// RateLimiter caps inbound MESSAGE frames per user. Optional.
type RateLimiter interface {
	Allow(ctx context.Context, userID string) (int, bool, error)
	Limit() int
}

// Engine owns the per-connection protocol: registration, pending drain,
// routing, and acknowledgments. All collaborators are injected so it can run
// against in-memory fakes.
type Engine struct {
	registry *Registry
	presence PresenceStore
	pending  store.PendingStore
	notifier Notifier
	limiter  RateLimiter
	logger   zerolog.Logger

	messageMaxSize int64
}

func NewEngine(presence PresenceStore, pending store.PendingStore, notifier Notifier, limiter RateLimiter, messageMaxSize int64, logger zerolog.Logger) *Engine {
	return &Engine{
		registry:       NewRegistry(),
		presence:       presence,
		pending:        pending,
		notifier:       notifier,
		limiter:        limiter,
		logger:         logger,
		messageMaxSize: messageMaxSize,
	}
}

func (e *Engine) Registry() *Registry {
	return e.registry
}

// Attach takes ownership of an authenticated websocket connection: registers
// it (superseding any prior connection for the user), marks the user online,
// replays their pending messages, and starts the pumps.
func (e *Engine) Attach(conn *websocket.Conn, userID string) *Client {
	client := newClient(e, conn, userID)

	if prev := e.registry.Register(userID, client); prev != nil {
		e.logger.Info().Str("user_id", userID).Msg("superseding existing connection")
		prev.close()
	}

	metrics.ActiveConnections.Inc()

	ctx := context.Background()
	if err := e.presence.SetOnline(ctx, userID); err != nil {
		e.logger.Error().Err(err).Str("user_id", userID).Msg("failed to set user online")
	}

	e.logger.Info().Str("user_id", userID).Int("connections", e.registry.Len()).Msg("connection established")

	go client.writePump()
	e.drainPending(ctx, client)
	go client.readPump()

	return client
}

// detach runs once the connection's read pump exits. Presence only flips to
// offline when the compare-and-remove succeeded: a superseded connection
// closing late must not mark the freshly connected user offline.
func (e *Engine) detach(client *Client) {
	metrics.ActiveConnections.Dec()

	if e.registry.Unregister(client.userID, client) {
		if err := e.presence.SetOffline(context.Background(), client.userID); err != nil {
			e.logger.Error().Err(err).Str("user_id", client.userID).Msg("failed to set user offline")
		}
		e.logger.Info().Str("user_id", client.userID).Msg("connection closed")
	} else {
		e.logger.Debug().Str("user_id", client.userID).Msg("superseded connection closed")
	}

	client.close()
}

// refreshPresence extends the online TTL from the connection heartbeat.
func (e *Engine) refreshPresence(client *Client) {
	if err := e.presence.SetOnline(context.Background(), client.userID); err != nil {
		e.logger.Warn().Err(err).Str("user_id", client.userID).Msg("failed to refresh presence")
	}
}

func (e *Engine) handleFrame(client *Client, data []byte) {
	frame, err := DecodeInbound(data)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", client.userID).Msg("rejected inbound frame")
		e.sendError(client, "invalid_frame", "invalid message frame", "")
		return
	}

	switch payload := frame.(type) {
	case *MessagePayload:
		e.handleMessage(client, payload)
	case *DeliveryAckPayload:
		e.handleDeliveryAck(client, payload)
	}
}

// handleMessage routes one inbound envelope: direct relay when the recipient
// is connected here, store-and-forward otherwise. Routing failures on the
// direct path degrade to the offline path rather than failing the frame.
func (e *Engine) handleMessage(client *Client, payload *MessagePayload) {
	ctx := context.Background()

	if payload.MessageID == "" || payload.RecipientID == "" {
		e.sendError(client, "invalid_frame", "messageId and recipientId are required", payload.MessageID)
		return
	}

	if e.limiter != nil {
		count, allowed, err := e.limiter.Allow(ctx, client.userID)
		if err != nil {
			// Fail open: a limiter outage must not stop message flow.
			e.logger.Warn().Err(err).Str("user_id", client.userID).Msg("rate limiter unavailable")
		} else if !allowed {
			metrics.RateLimited.Inc()
			e.logger.Warn().Str("user_id", client.userID).Int("count", count).Msg("rate limit exceeded")
			e.sendError(client, "rate_limited", "message rate limit exceeded", payload.MessageID)
			return
		}
	}

	// The sender id is taken from the connection, never from the frame.
	payload.SenderID = client.userID
	if payload.Timestamp == 0 {
		payload.Timestamp = time.Now().UnixMilli()
	}

	if recipient, ok := e.registry.Lookup(payload.RecipientID); ok {
		err := recipient.SendFrame(TypeMessage, payload)
		if err == nil {
			metrics.MessagesRouted.WithLabelValues("direct").Inc()
			e.logger.Debug().
				Str("message_id", payload.MessageID).
				Str("sender_id", payload.SenderID).
				Str("recipient_id", payload.RecipientID).
				Msg("relayed message to online recipient")
			return
		}
		e.logger.Warn().Err(err).
			Str("message_id", payload.MessageID).
			Str("recipient_id", payload.RecipientID).
			Msg("recipient unreachable on direct path, queueing instead")
	}

	e.queueAndNotify(ctx, client, payload)
}

// queueAndNotify persists the envelope for later delivery and fires the push
// trigger. A storage failure is the one error that must reach the sender.
func (e *Engine) queueAndNotify(ctx context.Context, client *Client, payload *MessagePayload) {
	msg := &store.PendingMessage{
		MessageID:   payload.MessageID,
		SenderID:    payload.SenderID,
		RecipientID: payload.RecipientID,
		Payload:     payload.Payload,
		MessageType: payload.MessageType,
		CreatedAt:   time.Now().UTC(),
	}

	if err := e.pending.Append(ctx, msg); err != nil {
		metrics.StorageErrors.Inc()
		e.logger.Error().Err(err).
			Str("message_id", msg.MessageID).
			Str("recipient_id", msg.RecipientID).
			Msg("failed to store pending message")
		e.sendError(client, "delivery_failed", "message could not be stored for delivery", msg.MessageID)
		return
	}

	metrics.MessagesRouted.WithLabelValues("queued").Inc()
	e.logger.Info().
		Str("message_id", msg.MessageID).
		Str("recipient_id", msg.RecipientID).
		Msg("stored pending message for offline recipient")

	e.notifier.Notify(ctx, msg)
}

// handleDeliveryAck clears the acknowledged entry. This is the only path that
// removes a pending message; until it runs, the message is replayed on every
// reconnect.
func (e *Engine) handleDeliveryAck(client *Client, payload *DeliveryAckPayload) {
	if payload.MessageID == "" {
		return
	}

	if err := e.pending.Remove(context.Background(), client.userID, payload.MessageID); err != nil {
		e.logger.Error().Err(err).
			Str("message_id", payload.MessageID).
			Str("user_id", client.userID).
			Msg("failed to remove acknowledged message")
		return
	}

	metrics.DeliveryAcks.Inc()
	e.logger.Debug().
		Str("message_id", payload.MessageID).
		Str("user_id", client.userID).
		Msg("delivery acknowledged, removed from pending")
}

// drainPending replays stored messages in creation order. Entries are not
// removed here; replay is at-least-once and only a DELIVERY_ACK clears them.
func (e *Engine) drainPending(ctx context.Context, client *Client) {
	messages, err := e.pending.ListByRecipient(ctx, client.userID)
	if err != nil {
		e.logger.Error().Err(err).Str("user_id", client.userID).Msg("failed to list pending messages")
		return
	}

	for _, msg := range messages {
		payload := &MessagePayload{
			MessageID:   msg.MessageID,
			SenderID:    msg.SenderID,
			RecipientID: msg.RecipientID,
			Payload:     msg.Payload,
			MessageType: msg.MessageType,
			Timestamp:   msg.CreatedAt.UnixMilli(),
		}
		if err := client.SendFrame(TypeMessage, payload); err != nil {
			// Buffer full; the rest stays pending for the next reconnect.
			e.logger.Warn().Err(err).Str("user_id", client.userID).Msg("pending drain interrupted")
			return
		}
		metrics.PendingDrained.Inc()
	}

	if len(messages) > 0 {
		e.logger.Info().Str("user_id", client.userID).Int("count", len(messages)).Msg("drained pending messages")
	}
}

func (e *Engine) sendError(client *Client, code, message, messageID string) {
	err := client.SendFrame(TypeError, ErrorPayload{Code: code, Message: message, MessageID: messageID})
	if err != nil {
		e.logger.Debug().Err(err).Str("user_id", client.userID).Msg("failed to send error frame")
	}
}
