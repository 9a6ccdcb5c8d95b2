package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWebhookForwarder_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, EventCredentialIssued, r.Header.Get("X-Event-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f := NewWebhookForwarder(srv.URL, time.Second, zap.NewNop())
	err := f.Forward(context.Background(), Event{Type: EventCredentialIssued, Address: "0xabc"})
	require.NoError(t, err)

	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, "0xabc", got.Address)
}

func TestWebhookForwarder_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	f := NewWebhookForwarder(srv.URL, time.Second, zap.NewNop())
	err := f.Forward(context.Background(), Event{Type: EventWalletVerified})
	assert.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}
