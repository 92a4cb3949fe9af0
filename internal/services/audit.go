package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-authgate/sallyport/internal/models"
	"github.com/go-authgate/sallyport/internal/util"

	"github.com/google/uuid"
)

const (
	auditBatchSize     = 100
	auditFlushInterval = time.Second
)

// AuditStore persists audit batches.
type AuditStore interface {
	CreateAuditLogBatch(ctx context.Context, entries []*models.AuditLog) error
	DeleteOldAuditLogs(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditForwarder ships audit batches to an external monitoring endpoint.
type AuditForwarder interface {
	Forward(ctx context.Context, entries []*models.AuditLog) error
}

// AuditService handles audit logging operations
type AuditService struct {
	store     AuditStore
	forwarder AuditForwarder
	enabled   bool

	// Async logging channel
	logChan chan *models.AuditLog

	// Batch buffer, owned by the worker
	batchBuffer []*models.AuditLog
	batchTicker *time.Ticker

	// Graceful shutdown
	wg           sync.WaitGroup
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewAuditService starts the background writer. forwarder may be nil.
func NewAuditService(
	s AuditStore,
	forwarder AuditForwarder,
	enabled bool,
	bufferSize int,
) *AuditService {
	if bufferSize <= 0 {
		bufferSize = 1000 // Default buffer size
	}

	service := &AuditService{
		store:       s,
		forwarder:   forwarder,
		enabled:     enabled,
		logChan:     make(chan *models.AuditLog, bufferSize),
		batchBuffer: make([]*models.AuditLog, 0, auditBatchSize),
		shutdownCh:  make(chan struct{}),
	}

	if enabled {
		service.batchTicker = time.NewTicker(auditFlushInterval)
		service.wg.Add(1)
		go service.worker()
		log.Printf("[Audit] Service started with buffer size %d", bufferSize)
	} else {
		log.Println("[Audit] Service is disabled")
	}

	return service
}

// worker is the background goroutine that processes audit logs
func (s *AuditService) worker() {
	defer s.wg.Done()

	for {
		select {
		case entry := <-s.logChan:
			s.batchBuffer = append(s.batchBuffer, entry)
			if len(s.batchBuffer) >= auditBatchSize {
				s.flush()
			}

		case <-s.batchTicker.C:
			s.flush()

		case <-s.shutdownCh:
			// Drain whatever was queued before shutdown
			for {
				select {
				case entry := <-s.logChan:
					s.batchBuffer = append(s.batchBuffer, entry)
				default:
					s.flush()
					return
				}
			}
		}
	}
}

// flush writes the buffered batch. Failures are logged and the batch dropped.
func (s *AuditService) flush() {
	if len(s.batchBuffer) == 0 {
		return
	}

	toWrite := make([]*models.AuditLog, len(s.batchBuffer))
	copy(toWrite, s.batchBuffer)
	s.batchBuffer = s.batchBuffer[:0]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.store.CreateAuditLogBatch(ctx, toWrite); err != nil {
		log.Printf("[Audit] Failed to write batch of %d: %v", len(toWrite), err)
	}
	if s.forwarder != nil {
		if err := s.forwarder.Forward(ctx, toWrite); err != nil {
			log.Printf("[Audit] Failed to forward batch of %d: %v", len(toWrite), err)
		}
	}
}

// Log records an audit log entry asynchronously. It never blocks; when the
// buffer is full the event is dropped.
func (s *AuditService) Log(ctx context.Context, entry models.AuditEntry) {
	if !s.enabled {
		return
	}

	if entry.ActorIP == "" {
		entry.ActorIP = util.GetIPFromContext(ctx)
	}
	if entry.ActorSubject == "" {
		entry.ActorSubject = util.GetSubjectFromContext(ctx)
	}
	if entry.Severity == "" {
		entry.Severity = models.SeverityInfo
	}

	now := time.Now()
	auditLog := &models.AuditLog{
		ID:            uuid.New().String(),
		EventType:     entry.EventType,
		EventTime:     now,
		Severity:      entry.Severity,
		ActorSubject:  entry.ActorSubject,
		ActorClientID: entry.ActorClientID,
		ActorIP:       entry.ActorIP,
		Tenant:        entry.Tenant,
		ResourceType:  entry.ResourceType,
		ResourceID:    entry.ResourceID,
		ResourceName:  entry.ResourceName,
		Action:        entry.Action,
		Details:       maskSensitiveDetails(entry.Details),
		Success:       entry.Success,
		ErrorMessage:  entry.ErrorMessage,
		UserAgent:     entry.UserAgent,
		RequestPath:   entry.RequestPath,
		RequestMethod: entry.RequestMethod,
		CreatedAt:     now,
	}

	select {
	case s.logChan <- auditLog:
	default:
		log.Printf("[Audit] WARNING: buffer full, dropping event: %s", entry.EventType)
	}
}

// CleanupOldLogs deletes audit logs older than the retention period
func (s *AuditService) CleanupOldLogs(ctx context.Context, retention time.Duration) (int64, error) {
	return s.store.DeleteOldAuditLogs(ctx, time.Now().Add(-retention))
}

// Shutdown flushes queued events and stops the worker.
func (s *AuditService) Shutdown(ctx context.Context) error {
	if !s.enabled {
		return nil
	}

	s.shutdownOnce.Do(func() {
		s.batchTicker.Stop()
		close(s.shutdownCh)
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[Audit] Service shut down gracefully")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit service shutdown timeout: %w", ctx.Err())
	}
}

// maskSensitiveDetails masks sensitive information in audit log details
func maskSensitiveDetails(details models.AuditDetails) models.AuditDetails {
	if details == nil {
		return details
	}

	masked := make(models.AuditDetails, len(details))
	for key, value := range details {
		if isSensitiveField(key) {
			masked[key] = "***REDACTED***"
			continue
		}

		if isPartialMaskField(key) {
			if str, ok := value.(string); ok && len(str) > 12 {
				masked[key] = str[:8] + "..." + str[len(str)-4:]
				continue
			}
		}

		masked[key] = value
	}

	return masked
}

// isSensitiveField checks if a field should be completely masked
func isSensitiveField(key string) bool {
	key = strings.ToLower(key)
	for _, field := range []string{
		"password",
		"secret",
		"access_token",
		"id_token",
		"code_verifier",
		"step_up_proof",
	} {
		if strings.Contains(key, field) {
			return true
		}
	}
	return key == "token" || key == "code"
}

// isPartialMaskField checks if a field should be partially masked
func isPartialMaskField(key string) bool {
	key = strings.ToLower(key)
	for _, field := range []string{"refresh_token", "code_challenge", "jti"} {
		if strings.Contains(key, field) {
			return true
		}
	}
	return false
}
