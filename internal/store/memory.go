package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory PendingStore and DeviceTokenStore. It backs
// development setups without Postgres and the relay engine tests. Pending
// messages do not survive a restart, so it is not suitable for production.
type MemoryStore struct {
	mu       sync.Mutex
	pending  map[string]map[string]*PendingMessage // recipientID -> messageID -> msg
	tokens   map[string]map[string]*DeviceToken    // userID -> deviceID -> token
	failNext error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pending: make(map[string]map[string]*PendingMessage),
		tokens:  make(map[string]map[string]*DeviceToken),
	}
}

// FailNext makes the next Append return err. Used to exercise the storage
// failure path in tests.
func (s *MemoryStore) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *MemoryStore) Append(ctx context.Context, msg *PendingMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	byID, ok := s.pending[msg.RecipientID]
	if !ok {
		byID = make(map[string]*PendingMessage)
		s.pending[msg.RecipientID] = byID
	}
	if _, exists := byID[msg.MessageID]; exists {
		return nil
	}

	clone := *msg
	byID[msg.MessageID] = &clone
	return nil
}

func (s *MemoryStore) ListByRecipient(ctx context.Context, recipientID string) ([]*PendingMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.pending[recipientID]
	messages := make([]*PendingMessage, 0, len(byID))
	for _, msg := range byID {
		clone := *msg
		messages = append(messages, &clone)
	}

	// message_id breaks created_at ties so replay order is deterministic.
	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].MessageID < messages[j].MessageID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	return messages, nil
}

func (s *MemoryStore) Remove(ctx context.Context, recipientID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if byID, ok := s.pending[recipientID]; ok {
		delete(byID, messageID)
		if len(byID) == 0 {
			delete(s.pending, recipientID)
		}
	}
	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, token *DeviceToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, byDevice := range s.tokens {
		for deviceID, existing := range byDevice {
			if existing.FCMToken == token.FCMToken && (userID != token.UserID || deviceID != token.DeviceID) {
				delete(byDevice, deviceID)
			}
		}
	}

	byDevice, ok := s.tokens[token.UserID]
	if !ok {
		byDevice = make(map[string]*DeviceToken)
		s.tokens[token.UserID] = byDevice
	}

	clone := *token
	clone.IsActive = true
	byDevice[token.DeviceID] = &clone
	return nil
}

func (s *MemoryStore) ListActiveByUser(ctx context.Context, userID string) ([]*DeviceToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tokens []*DeviceToken
	for _, token := range s.tokens[userID] {
		if token.IsActive {
			clone := *token
			tokens = append(tokens, &clone)
		}
	}
	return tokens, nil
}

func (s *MemoryStore) Deactivate(ctx context.Context, userID, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token, ok := s.tokens[userID][deviceID]; ok {
		token.IsActive = false
	}
	return nil
}
