package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	maxConns        = 10
	minConns        = 2
	maxConnLifetime = 10 * time.Minute
	maxConnIdleTime = 5 * time.Minute
)

// PostgresStore implements PendingStore and DeviceTokenStore on a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	config.MaxConns = maxConns
	config.MinConns = minConns
	config.MaxConnLifetime = maxConnLifetime
	config.MaxConnIdleTime = maxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS pending_messages (
			recipient_id VARCHAR(64)  NOT NULL,
			message_id   VARCHAR(64)  NOT NULL,
			sender_id    VARCHAR(64)  NOT NULL,
			payload      BYTEA        NOT NULL,
			message_type VARCHAR(20)  NOT NULL,
			created_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			PRIMARY KEY (recipient_id, message_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_recipient_created
			ON pending_messages (recipient_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS user_device_tokens (
			user_id    VARCHAR(64)  NOT NULL,
			device_id  VARCHAR(500) NOT NULL,
			fcm_token  VARCHAR(500) NOT NULL UNIQUE,
			platform   VARCHAR(20)  NOT NULL,
			is_active  BOOLEAN      NOT NULL DEFAULT TRUE,
			updated_at TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, device_id)
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, msg *PendingMessage) error {
	query := `INSERT INTO pending_messages (recipient_id, message_id, sender_id, payload, message_type, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (recipient_id, message_id) DO NOTHING`

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, query,
		msg.RecipientID,
		msg.MessageID,
		msg.SenderID,
		msg.Payload,
		msg.MessageType,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append pending message: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByRecipient(ctx context.Context, recipientID string) ([]*PendingMessage, error) {
	query := `SELECT recipient_id, message_id, sender_id, payload, message_type, created_at
	          FROM pending_messages
	          WHERE recipient_id = $1
	          ORDER BY created_at ASC, message_id ASC`

	rows, err := s.pool.Query(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending messages: %w", err)
	}
	defer rows.Close()

	var messages []*PendingMessage
	for rows.Next() {
		var msg PendingMessage
		err := rows.Scan(
			&msg.RecipientID,
			&msg.MessageID,
			&msg.SenderID,
			&msg.Payload,
			&msg.MessageType,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending message: %w", err)
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending messages: %w", err)
	}

	return messages, nil
}

func (s *PostgresStore) Remove(ctx context.Context, recipientID, messageID string) error {
	query := `DELETE FROM pending_messages WHERE recipient_id = $1 AND message_id = $2`

	if _, err := s.pool.Exec(ctx, query, recipientID, messageID); err != nil {
		return fmt.Errorf("failed to remove pending message: %w", err)
	}
	return nil
}
