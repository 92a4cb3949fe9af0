package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-authgate/sallyport/internal/models"

	retry "github.com/appleboy/go-httpretry"
)

// auditWebhookPayload is the body posted to the monitoring endpoint.
type auditWebhookPayload struct {
	Source string             `json:"source"`
	Events []*models.AuditLog `json:"events"`
}

// AuditWebhook forwards audit batches to an external endpoint over a
// retrying, authenticated HTTP client.
type AuditWebhook struct {
	client *retry.Client
	url    string
	source string
}

func NewAuditWebhook(client *retry.Client, url, source string) *AuditWebhook {
	return &AuditWebhook{client: client, url: url, source: source}
}

// Forward posts entries as one JSON document. Any non-2xx answer is an error.
func (w *AuditWebhook) Forward(ctx context.Context, entries []*models.AuditLog) error {
	if len(entries) == 0 {
		return nil
	}

	body, err := json.Marshal(auditWebhookPayload{Source: w.source, Events: entries})
	if err != nil {
		return fmt.Errorf("failed to marshal audit batch: %w", err)
	}

	resp, err := w.client.Post(
		ctx,
		w.url,
		retry.WithBody("application/json", bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("audit webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("audit webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
