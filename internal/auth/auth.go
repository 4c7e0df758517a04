package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrRejected means the identity service refused the token. Callers close the
// connection without retrying.
var ErrRejected = errors.New("session rejected")

// Authenticator resolves a handshake token to a stable user id. How sessions
// are issued and validated is the identity service's business.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// SessionClient validates tokens against the identity service's
// validate-session endpoint.
type SessionClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewSessionClient(baseURL string) *SessionClient {
	return &SessionClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type validationResponse struct {
	Valid   bool        `json:"valid"`
	UserID  json.Number `json:"userId"`
	Message string      `json:"message"`
}

func (c *SessionClient) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrRejected
	}

	url := c.baseURL + "/api/session/validate-session"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(nil))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Session-Token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach identity service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		return "", ErrRejected
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("identity service returned status %d", resp.StatusCode)
	}

	var result validationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode validation response: %w", err)
	}

	if !result.Valid || result.UserID.String() == "" {
		return "", ErrRejected
	}

	return result.UserID.String(), nil
}
