// Package push provides a simple client for the hosted push-notification
// relay.
//
// It posts notification payloads to the relay's HTTP API for each registered
// device token. Delivery is best-effort: the relay queues and fans out to
// APNs/FCM on its own schedule.
package push

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client represents a push relay client used to send notifications.
type Client struct {
	baseURL string       // relay endpoint, e.g. https://exp.host/--/api/v2/push/send
	client  *http.Client // HTTP client used to make requests
}

// NewClient creates a new push relay Client for the given endpoint.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// sendRequest represents the payload for the relay's send API.
type sendRequest struct {
	To    string `json:"to"`    // device push token
	Title string `json:"title"` // notification title
	Body  string `json:"body"`  // notification body
	Sound string `json:"sound"` // notification sound
}

// Send sends a push notification to the specified device token.
//
// It constructs the request payload, posts it to the relay, and returns an
// error if the request fails or the relay responds with a non-200 status.
func (c *Client) Send(token, title, body string) error {
	reqBody := sendRequest{
		To:    token,
		Title: title,
		Body:  body,
		Sound: "default",
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.client.Post(c.baseURL, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push relay error: %s", resp.Status)
	}

	return nil
}
