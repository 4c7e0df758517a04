package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) Upsert(ctx context.Context, token *DeviceToken) error {
	// An FCM token can move between accounts when a device is wiped and
	// re-provisioned; drop the stale owner first.
	reassign := `DELETE FROM user_device_tokens
	             WHERE fcm_token = $1 AND NOT (user_id = $2 AND device_id = $3)`
	if _, err := s.pool.Exec(ctx, reassign, token.FCMToken, token.UserID, token.DeviceID); err != nil {
		return fmt.Errorf("failed to reassign device token: %w", err)
	}

	query := `INSERT INTO user_device_tokens (user_id, device_id, fcm_token, platform, is_active, updated_at)
	          VALUES ($1, $2, $3, $4, TRUE, NOW())
	          ON CONFLICT (user_id, device_id) DO UPDATE
	          SET fcm_token = EXCLUDED.fcm_token,
	              platform = EXCLUDED.platform,
	              is_active = TRUE,
	              updated_at = NOW()`

	if _, err := s.pool.Exec(ctx, query, token.UserID, token.DeviceID, token.FCMToken, token.Platform); err != nil {
		return fmt.Errorf("failed to upsert device token: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActiveByUser(ctx context.Context, userID string) ([]*DeviceToken, error) {
	query := `SELECT user_id, device_id, fcm_token, platform, is_active
	          FROM user_device_tokens
	          WHERE user_id = $1 AND is_active = TRUE`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*DeviceToken
	for rows.Next() {
		var token DeviceToken
		if err := rows.Scan(&token.UserID, &token.DeviceID, &token.FCMToken, &token.Platform, &token.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, &token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device tokens: %w", err)
	}

	return tokens, nil
}

func (s *PostgresStore) Deactivate(ctx context.Context, userID, deviceID string) error {
	query := `UPDATE user_device_tokens SET is_active = FALSE, updated_at = NOW()
	          WHERE user_id = $1 AND device_id = $2`

	if _, err := s.pool.Exec(ctx, query, userID, deviceID); err != nil {
		return fmt.Errorf("failed to deactivate device token: %w", err)
	}
	return nil
}
