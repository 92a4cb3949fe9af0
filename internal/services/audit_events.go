package services

import (
	"maps"

	"github.com/go-authgate/sallyport/internal/models"
	"github.com/go-authgate/sallyport/internal/roles"
)

// leveled fills in severity and keeps the extra details only when the audit
// level of the roles involved asks for more than the basics.
func leveled(
	level roles.AuditLevel,
	entry models.AuditEntry,
	extra models.AuditDetails,
) models.AuditEntry {
	details := make(models.AuditDetails, len(entry.Details)+len(extra)+1)
	maps.Copy(details, entry.Details)
	if level != roles.AuditLevelBasic {
		maps.Copy(details, extra)
	}
	details["audit_level"] = string(level)
	entry.Details = details

	if entry.Severity == "" {
		switch {
		case entry.Success:
			entry.Severity = models.SeverityInfo
		case level == roles.AuditLevelComprehensive:
			entry.Severity = models.SeverityError
		default:
			entry.Severity = models.SeverityWarning
		}
	}
	return entry
}

// resolveTenant picks the tenant claim: the user's own tenant, then the
// client's, then the deployment default.
func resolveTenant(identityTenant string, client *models.OAuthApplication, fallback string) string {
	if identityTenant != "" {
		return identityTenant
	}
	if client != nil && client.TenantID != "" {
		return client.TenantID
	}
	return fallback
}
