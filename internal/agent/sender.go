package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aura-proctor/backend/internal/focus"
)

// EventsPath is the server route receiving focus events.
const EventsPath = "/focus/events"

// HTTPSender posts focus events to the server.
type HTTPSender struct {
	client *http.Client
	url    string
}

// NewHTTPSender creates a sender for the server at baseURL. A nil client uses one with a
// 10 second timeout.
func NewHTTPSender(baseURL string, client *http.Client) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSender{client: client, url: strings.TrimRight(baseURL, "/") + EventsPath}
}

// Send implements focus.Sender. Any non-2xx answer is an error.
func (s *HTTPSender) Send(ctx context.Context, ev focus.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server answered %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
