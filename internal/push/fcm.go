package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2/google"
)

// FCMClient sends push notifications through the FCM HTTP v1 API.
type FCMClient struct {
	projectID  string
	httpClient *http.Client
	creds      *google.Credentials
}

type fcmRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification *fcmNotification  `json:"notification,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	Android      *fcmAndroid       `json:"android,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

type fcmAndroid struct {
	Priority string `json:"priority,omitempty"`
}

// NewFCMClient builds a client from a service-account JSON key.
func NewFCMClient(projectID string, serviceAccountJSON []byte) (*FCMClient, error) {
	creds, err := google.CredentialsFromJSON(context.Background(), serviceAccountJSON,
		"https://www.googleapis.com/auth/firebase.messaging",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create credentials: %w", err)
	}

	return &FCMClient{
		projectID:  projectID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		creds:      creds,
	}, nil
}

// Send delivers one notification to one device token.
func (c *FCMClient) Send(ctx context.Context, fcmToken, title, body string, data map[string]string) error {
	token, err := c.creds.TokenSource.Token()
	if err != nil {
		return fmt.Errorf("failed to get oauth token: %w", err)
	}

	msg := fcmRequest{
		Message: fcmMessage{
			Token: fcmToken,
			// Notification is required for delivery while the app is closed.
			Notification: &fcmNotification{
				Title: title,
				Body:  body,
			},
			Data: data,
			Android: &fcmAndroid{
				Priority: "high",
			},
		},
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", c.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("FCM returned status %d", resp.StatusCode)
	}

	return nil
}
