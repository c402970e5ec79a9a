package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cascadiahydro/streamsync/internal/config"
	model "github.com/cascadiahydro/streamsync/internal/domain/model"
)

func TestWebhookNotifierPostsRunSummary(t *testing.T) {
	var captured runPayload
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(config.NotifierConfig{Enabled: true, WebhookURL: server.URL, TimeoutSeconds: 5})

	execution := model.NewJobExecution("realtime-sync", time.Now().Add(-time.Minute))
	execution.SitesAttempted = 3
	execution.SucceededCount = 2
	execution.FailedCount = 1
	execution.ObservationsUpserted = 120
	execution.AddFailureException(errors.New("site 14105700: fetch timed out"))
	execution.MarkAsPartial()

	notifier.NotifyRunCompletion(context.Background(), execution)

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "realtime-sync", captured.JobName)
	assert.Equal(t, execution.ID, captured.ExecutionID)
	assert.Equal(t, "partial", captured.Status)
	assert.Equal(t, 3, captured.SitesAttempted)
	assert.Equal(t, 2, captured.SucceededCount)
	assert.Equal(t, 1, captured.FailedCount)
	assert.Equal(t, int64(120), captured.ObservationsUpserted)
	assert.NotNil(t, captured.EndTime)
	assert.True(t, captured.DurationSeconds > 0)
	assert.Len(t, captured.Failures, 1)
	assert.NotEmpty(t, captured.Error)
}

func TestWebhookNotifierSwallowsEndpointFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	notifier := NewWebhookNotifier(config.NotifierConfig{WebhookURL: server.URL, TimeoutSeconds: 5})
	execution := model.NewJobExecution("daily-sync", time.Now())
	execution.MarkAsSuccess()

	// A rejecting endpoint must not panic or bubble an error.
	notifier.NotifyRunCompletion(context.Background(), execution)

	// Neither must an unreachable one.
	server.Close()
	notifier.NotifyRunCompletion(context.Background(), execution)
}

func TestNewNotifierSelectsImplementation(t *testing.T) {
	cfg := config.NewConfig()
	assert.IsType(t, &LogNotifier{}, NewNotifier(cfg))

	cfg.Streamsync.Notifier.Enabled = true
	cfg.Streamsync.Notifier.WebhookURL = "http://localhost:9999/hook"
	assert.IsType(t, &WebhookNotifier{}, NewNotifier(cfg))
}
