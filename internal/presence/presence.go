package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statusKeyPrefix = "user:status:"

	// OnlineTTL bounds how long a crashed relay instance can leave a user
	// marked online. Connections refresh it from their heartbeat.
	OnlineTTL = 2 * time.Minute

	// OfflineGrace keeps the last-seen record around after a disconnect.
	OfflineGrace = 30 * time.Minute
)

// Record is the shared per-user reachability state.
type Record struct {
	UserID   string    `json:"user_id"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}

// Store tracks user reachability in Redis so any relay instance can read it.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// SetOnline marks the user reachable. Idempotent; a reconnect overwrites the
// previous record.
func (s *Store) SetOnline(ctx context.Context, userID string) error {
	return s.write(ctx, userID, true, OnlineTTL)
}

// SetOffline marks the user unreachable. The record is retained for the grace
// window so last-seen stays queryable, then expires.
func (s *Store) SetOffline(ctx context.Context, userID string) error {
	return s.write(ctx, userID, false, OfflineGrace)
}

func (s *Store) write(ctx context.Context, userID string, online bool, ttl time.Duration) error {
	record := Record{
		UserID:   userID,
		Online:   online,
		LastSeen: time.Now().UTC(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	if err := s.rdb.Set(ctx, statusKey(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}
	return nil
}

// IsOnline reports whether the user currently has a live connection somewhere.
// A missing or expired record counts as offline.
func (s *Store) IsOnline(ctx context.Context, userID string) (bool, error) {
	record, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return record.Online, nil
}

// Get returns the presence record for a user. A missing record is returned as
// an offline record with zero LastSeen, not an error.
func (s *Store) Get(ctx context.Context, userID string) (*Record, error) {
	data, err := s.rdb.Get(ctx, statusKey(userID)).Result()
	if err == redis.Nil {
		return &Record{UserID: userID, Online: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get presence: %w", err)
	}

	var record Record
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence: %w", err)
	}
	return &record, nil
}

func statusKey(userID string) string {
	return statusKeyPrefix + userID
}
