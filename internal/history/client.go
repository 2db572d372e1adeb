// Package history fetches the prior messages of a conversation from the
// REST endpoint. The session engine calls it exactly once per session.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"pairchat/internal/models"
	"pairchat/internal/session"
)

// Client talks to GET /chat/{peer_id} with bearer authentication.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a history client for the server base URL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type historyResponse struct {
	Messages []models.Message `json:"messages"`
}

// FetchHistory returns the conversation with peerID ascending by timestamp,
// marked origin=history, status=delivered. Auth failures map to
// session.ErrUnauthorized; any other failure wraps
// session.ErrHistoryUnavailable so the engine can keep the live channel
// going without history.
func (c *Client) FetchHistory(ctx context.Context, selfID, peerID string) ([]models.Message, error) {
	endpoint := fmt.Sprintf("%s/chat/%s", c.baseURL, url.PathEscape(peerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrHistoryUnavailable, err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrHistoryUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, session.ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", session.ErrHistoryUnavailable, resp.StatusCode)
	}

	var body historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrHistoryUnavailable, err)
	}

	msgs := body.Messages
	for i := range msgs {
		msgs[i].Origin = models.OriginHistory
		msgs[i].Status = models.StatusDelivered
	}
	return msgs, nil
}

var _ session.HistoryFetcher = (*Client)(nil)
