package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinelir/pkg/models"
)

func TestWebhookPostsNotification(t *testing.T) {
	var got Notification
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	w, err := NewWebhook(WebhookConfig{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer t"}})
	require.NoError(t, err)

	inc := &models.SecurityIncident{IncidentID: "INC-2026-001", Title: "HIGH Malware", Severity: models.SeverityHigh, Priority: models.PriorityP2}
	n := FromIncident(inc, "Notify security team", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, w.Notify(context.Background(), n))

	assert.Equal(t, "Bearer t", auth)
	assert.Equal(t, "INC-2026-001", got.IncidentID)
	assert.Equal(t, "Notify security team", got.Action)
	assert.Equal(t, models.PriorityP2, got.Priority)
}

func TestWebhookReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w, err := NewWebhook(WebhookConfig{URL: srv.URL})
	require.NoError(t, err)
	assert.Error(t, w.Notify(context.Background(), Notification{IncidentID: "INC-2026-002"}))
}

func TestConstructorsRejectEmptyURL(t *testing.T) {
	_, err := NewWebhook(WebhookConfig{})
	assert.Error(t, err)
	_, err = NewNATSPublisher(NATSConfig{})
	assert.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	var n Notifier = LogNotifier{}
	assert.NoError(t, n.Notify(context.Background(), Notification{IncidentID: "INC-2026-003"}))
	assert.NoError(t, n.Close())
}

func TestWebhookRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	w, err := NewWebhook(WebhookConfig{URL: srv.URL, MaxRetries: 2, RetryBackoff: time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Notify(context.Background(), Notification{IncidentID: "INC-2026-003"}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	w, err := NewWebhook(WebhookConfig{URL: srv.URL, MaxRetries: 3, RetryBackoff: time.Millisecond})
	require.NoError(t, err)
	err = w.Notify(context.Background(), Notification{IncidentID: "INC-2026-004"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWebhookSignsBody(t *testing.T) {
	var sig string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig = r.Header.Get(SignatureHeader)
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	w, err := NewWebhook(WebhookConfig{URL: srv.URL, Secret: "s3cret"})
	require.NoError(t, err)
	require.NoError(t, w.Notify(context.Background(), Notification{IncidentID: "INC-2026-005"}))
	assert.Equal(t, Sign("s3cret", body), sig)
}
