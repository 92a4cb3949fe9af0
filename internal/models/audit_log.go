package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of audit event
type EventType string

const (
	// Authorization endpoint events
	EventAuthorizationCodeGenerated EventType = "AUTHORIZATION_CODE_GENERATED"
	EventAuthorizationDenied        EventType = "AUTHORIZATION_DENIED"
	EventStepUpRequired             EventType = "STEP_UP_REQUIRED"

	// Token endpoint events
	EventAuthorizationCodeExchanged   EventType = "AUTHORIZATION_CODE_EXCHANGED"
	EventClientCredentialsTokenIssued EventType = "CLIENT_CREDENTIALS_TOKEN_ISSUED" //nolint:gosec // G101: event name, not a credential
	EventTokenRefreshed               EventType = "TOKEN_REFRESHED"
	EventTokenRequestFailed           EventType = "TOKEN_REQUEST_FAILED"
	EventTokenRevoked                 EventType = "TOKEN_REVOKED"
	EventTokenIntrospected            EventType = "TOKEN_INTROSPECTED"

	// Client authentication
	EventClientAuthenticationFailure EventType = "CLIENT_AUTHENTICATION_FAILURE"

	// Key management
	EventSigningKeyCreated EventType = "SIGNING_KEY_CREATED"

	// Security events
	EventRateLimitExceeded  EventType = "RATE_LIMIT_EXCEEDED"
	EventSuspiciousActivity EventType = "SUSPICIOUS_ACTIVITY"
)

// EventSeverity represents the severity level of an audit event
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "INFO"
	SeverityWarning  EventSeverity = "WARNING"
	SeverityError    EventSeverity = "ERROR"
	SeverityCritical EventSeverity = "CRITICAL"
)

// ResourceType represents the type of resource being operated on
type ResourceType string

const (
	ResourceClient            ResourceType = "CLIENT"
	ResourceToken             ResourceType = "TOKEN"
	ResourceAuthorizationCode ResourceType = "AUTHORIZATION_CODE"
	ResourceSigningKey        ResourceType = "SIGNING_KEY"
)

// AuditDetails stores additional event-specific information as JSON
type AuditDetails map[string]any

// Value implements the driver.Valuer interface for database storage
func (a AuditDetails) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil //nolint:nilnil // nil driver.Value represents SQL NULL, which is valid here
	}
	return json.Marshal(a)
}

// Scan implements the sql.Scanner interface for database retrieval
func (a *AuditDetails) Scan(value any) error {
	if value == nil {
		*a = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to unmarshal AuditDetails value: %v", value)
	}

	result := make(AuditDetails)
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}

	*a = result
	return nil
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID string `gorm:"primaryKey;type:varchar(36)" json:"id"`

	// Event information
	EventType EventType     `gorm:"type:varchar(50);index;not null" json:"event_type"`
	EventTime time.Time     `gorm:"index;not null"                  json:"event_time"`
	Severity  EventSeverity `gorm:"type:varchar(20);not null"       json:"severity"`

	// Actor information
	ActorSubject  string `gorm:"type:varchar(255);index" json:"actor_subject"`
	ActorClientID string `gorm:"type:varchar(255);index" json:"actor_client_id"`
	ActorIP       string `gorm:"type:varchar(45);index"  json:"actor_ip"` // Support IPv6
	Tenant        string `gorm:"type:varchar(255);index" json:"tenant,omitempty"`

	// Resource information
	ResourceType ResourceType `gorm:"type:varchar(50);index" json:"resource_type"`
	ResourceID   string       `gorm:"type:varchar(64);index" json:"resource_id"`
	ResourceName string       `gorm:"type:varchar(255)"      json:"resource_name"`

	// Operation details
	Action       string       `gorm:"type:varchar(255);not null" json:"action"`
	Details      AuditDetails `gorm:"type:json"                  json:"details"`
	Success      bool         `gorm:"index;not null"             json:"success"`
	ErrorMessage string       `gorm:"type:text"                  json:"error_message,omitempty"`

	// Request metadata
	UserAgent     string `gorm:"type:varchar(500)" json:"user_agent,omitempty"`
	RequestPath   string `gorm:"type:varchar(500)" json:"request_path,omitempty"`
	RequestMethod string `gorm:"type:varchar(10)"  json:"request_method,omitempty"`

	// Timestamps (no UpdatedAt - immutable logs)
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`
}

// TableName specifies the table name for GORM
func (AuditLog) TableName() string {
	return "audit_logs"
}

// AuditEntry is what callers hand to the audit recorder. The recorder fills
// in ids, timestamps and the client IP.
type AuditEntry struct {
	EventType     EventType
	Severity      EventSeverity
	ActorSubject  string
	ActorClientID string
	ActorIP       string
	Tenant        string
	ResourceType  ResourceType
	ResourceID    string
	ResourceName  string
	Action        string
	Details       AuditDetails
	Success       bool
	ErrorMessage  string
	UserAgent     string
	RequestPath   string
	RequestMethod string
}
