package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/duetapp/duet-server/internal/types"
)

// ErrSubscriptionGone indicates the vendor reported the endpoint as
// permanently invalid; the subscription should be pruned.
var ErrSubscriptionGone = errors.New("push: subscription gone")

type Payload struct {
	Title              string         `json:"title"`
	Body               string         `json:"body"`
	Icon               string         `json:"icon,omitempty"`
	Tag                string         `json:"tag,omitempty"`
	Data               map[string]any `json:"data,omitempty"`
	Actions            []Action       `json:"actions,omitempty"`
	RequireInteraction bool           `json:"requireInteraction,omitempty"`
}

type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Sender performs a single delivery attempt against the push vendor.
type Sender interface {
	Send(ctx context.Context, sub types.PushSubscription, payload Payload) error
}

type HTTPSender struct {
	client  *http.Client
	authKey string
}

func NewHTTPSender(authKey string) *HTTPSender {
	return &HTTPSender{
		client:  &http.Client{Timeout: 10 * time.Second},
		authKey: authKey,
	}
}

func (s *HTTPSender) Send(ctx context.Context, sub types.PushSubscription, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.authKey != "" {
		req.Header.Set("Authorization", "key="+s.authKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("vendor returned %d", resp.StatusCode)
	}

	return nil
}
