package core

import (
	"context"

	"github.com/go-authgate/sallyport/internal/models"
)

// AuditRecorder accepts audit events. Log never blocks the caller and never
// fails the request that produced the event.
type AuditRecorder interface {
	Log(ctx context.Context, entry models.AuditEntry)
}
