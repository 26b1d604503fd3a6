package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/duetapp/duet-server/internal/types"
)

func TestHTTPSenderSend(t *testing.T) {
	payload := Payload{
		Title: "Alice",
		Body:  "hello",
		Tag:   "message-alice",
	}

	t.Run("posts the payload with auth header", func(t *testing.T) {
		var gotAuth string
		var gotPayload Payload

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			gotAuth = r.Header.Get("Authorization")
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		sender := NewHTTPSender("server-key")
		err := sender.Send(context.Background(), types.PushSubscription{Endpoint: srv.URL}, payload)
		assert.NoError(t, err, "expected delivery to succeed")
		assert.Equal(t, "key=server-key", gotAuth)
		assert.Equal(t, payload, gotPayload)
	})

	t.Run("omits auth header without a key", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.Header.Get("Authorization"), "expected no auth header")
		}))
		defer srv.Close()

		sender := NewHTTPSender("")
		err := sender.Send(context.Background(), types.PushSubscription{Endpoint: srv.URL}, payload)
		assert.NoError(t, err)
	})

	t.Run("gone endpoint", func(t *testing.T) {
		for _, status := range []int{http.StatusNotFound, http.StatusGone} {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))

			sender := NewHTTPSender("")
			err := sender.Send(context.Background(), types.PushSubscription{Endpoint: srv.URL}, payload)
			assert.ErrorIs(t, err, ErrSubscriptionGone, "expected gone error for status %d", status)
			srv.Close()
		}
	})

	t.Run("other vendor errors are not gone", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		sender := NewHTTPSender("")
		err := sender.Send(context.Background(), types.PushSubscription{Endpoint: srv.URL}, payload)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrSubscriptionGone, "expected a transient error, not a prune signal")
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		sender := NewHTTPSender("")
		err := sender.Send(context.Background(), types.PushSubscription{Endpoint: "http://127.0.0.1:1"}, payload)
		assert.Error(t, err, "expected a connection error")
	})
}
