package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cascadiahydro/streamsync/internal/config"
	model "github.com/cascadiahydro/streamsync/internal/domain/model"
	"github.com/cascadiahydro/streamsync/internal/support/logger"
)

// runPayload is the JSON document posted to the webhook for each finalized
// run.
type runPayload struct {
	JobName              string     `json:"job_name"`
	ExecutionID          string     `json:"execution_id"`
	Status               string     `json:"status"`
	StartTime            time.Time  `json:"start_time"`
	EndTime              *time.Time `json:"end_time,omitempty"`
	DurationSeconds      float64    `json:"duration_seconds"`
	SitesAttempted       int        `json:"sites_attempted"`
	SucceededCount       int        `json:"succeeded_count"`
	FailedCount          int        `json:"failed_count"`
	ObservationsUpserted int64      `json:"observations_upserted"`
	ObservationsPurged   int64      `json:"observations_purged"`
	Error                string     `json:"error,omitempty"`
	Failures             []string   `json:"failures,omitempty"`
}

// WebhookNotifier posts run outcomes to a configured HTTP endpoint.
type WebhookNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewWebhookNotifier creates a notifier posting to the configured webhook.
func NewWebhookNotifier(cfg config.NotifierConfig) *WebhookNotifier {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		webhookURL: cfg.WebhookURL,
		client:     &http.Client{Timeout: timeout},
	}
}

// NotifyRunCompletion posts the run summary as JSON. Delivery problems are
// logged and swallowed.
func (n *WebhookNotifier) NotifyRunCompletion(ctx context.Context, execution *model.JobExecution) {
	payload := runPayload{
		JobName:              execution.JobName,
		ExecutionID:          execution.ID,
		Status:               execution.Status.String(),
		StartTime:            execution.StartTime.UTC(),
		SitesAttempted:       execution.SitesAttempted,
		SucceededCount:       execution.SucceededCount,
		FailedCount:          execution.FailedCount,
		ObservationsUpserted: execution.ObservationsUpserted,
		ObservationsPurged:   execution.ObservationsPurged,
		Error:                execution.ErrorText,
		Failures:             execution.Failures,
	}
	if execution.EndTime != nil {
		endTime := execution.EndTime.UTC()
		payload.EndTime = &endTime
		payload.DurationSeconds = endTime.Sub(execution.StartTime.UTC()).Seconds()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf("Failed to marshal webhook payload for run '%s': %v", execution.ID, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, "POST", n.webhookURL, bytes.NewReader(body))
	if err != nil {
		logger.Errorf("Failed to create webhook request for run '%s': %v", execution.ID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		logger.Warnf("Failed to deliver webhook notification for run '%s': %v", execution.ID, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		logger.Warnf("Webhook notification for run '%s' was rejected: status %d, body: %s",
			execution.ID, resp.StatusCode, strings.TrimSpace(string(respBody)))
		return
	}
	logger.Debugf("Webhook notification for run '%s' delivered (status %d).", execution.ID, resp.StatusCode)
}

var _ Notifier = (*WebhookNotifier)(nil)
