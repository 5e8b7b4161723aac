// Package audit records who did what to which document. Events are appended to
// a store and optionally streamed to Kafka.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "rcaflow/pkg/domain"
)

// EventCategory drives retention and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers decisions that close or certify an investigation
	// and changes to who may access the data.
	CategoryCompliance EventCategory = "compliance"
	// CategorySecurity covers authentication outcomes and tenant suspension.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers routine editing activity.
	CategoryOperations EventCategory = "operations"
)

type AuditEvent string

const (
	// Reported events
	EventEventReported      AuditEvent = "event_reported"
	EventEventUpdated       AuditEvent = "event_updated"
	EventEventRejected      AuditEvent = "event_rejected"
	EventEventReopened      AuditEvent = "event_reopened"
	EventEventStatusChanged AuditEvent = "event_status_changed"

	// Analyses
	EventAnalysisCreated   AuditEvent = "analysis_created"
	EventAnalysisStepSaved AuditEvent = "analysis_step_saved"
	EventAnalysisAdvanced  AuditEvent = "analysis_advanced"
	EventTechniqueChanged  AuditEvent = "technique_changed"
	EventActionValidated   AuditEvent = "action_validated"
	EventAnalysisFinalized AuditEvent = "analysis_finalized"
	EventEfficacyVerified  AuditEvent = "efficacy_verified"
	EventEvidenceUploaded  AuditEvent = "evidence_uploaded"
	EventEvidenceDeleted   AuditEvent = "evidence_deleted"

	// Tenancy
	EventCompanyCreated     AuditEvent = "company_created"
	EventCompanyDeactivated AuditEvent = "company_deactivated"
	EventCompanyReactivated AuditEvent = "company_reactivated"
	EventSiteCreated        AuditEvent = "site_created"
	EventSiteUpdated        AuditEvent = "site_updated"
	EventUserCreated        AuditEvent = "user_created"
	EventUserAccessChanged  AuditEvent = "user_access_changed"
	EventUserDeactivated    AuditEvent = "user_deactivated"
	EventPasswordChanged    AuditEvent = "password_changed"

	// Sessions
	EventLoginSucceeded AuditEvent = "login_succeeded"
	EventLoginFailed    AuditEvent = "login_failed"
	EventLogout         AuditEvent = "logout"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventEventRejected:     CategoryCompliance,
	EventActionValidated:   CategoryCompliance,
	EventAnalysisFinalized: CategoryCompliance,
	EventEfficacyVerified:  CategoryCompliance,
	EventEvidenceDeleted:   CategoryCompliance,
	EventUserCreated:       CategoryCompliance,
	EventUserAccessChanged: CategoryCompliance,

	EventLoginFailed:        CategorySecurity,
	EventPasswordChanged:    CategorySecurity,
	EventUserDeactivated:    CategorySecurity,
	EventCompanyDeactivated: CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is transport-agnostic so stores and sinks can fan out. Subject names
// the document the action applied to, e.g. "analysis:<uuid>".
type Event struct {
	ID        uuid.UUID         `json:"id"`
	Category  EventCategory     `json:"category"`
	Action    string            `json:"action"`
	Timestamp time.Time         `json:"timestamp"`
	CompanyID id.CompanyID      `json:"companyId"`
	ActorID   id.UserID         `json:"actorId"`
	Subject   string            `json:"subject"`
	RequestID string            `json:"requestId,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Store persists events. Append must be idempotent on Event.ID so Kafka
// redeliveries do not duplicate rows.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByCompany(ctx context.Context, companyID id.CompanyID, limit int) ([]Event, error)
	ListBySubject(ctx context.Context, companyID id.CompanyID, subject string) ([]Event, error)
}

func Subject(kind string, v interface{ String() string }) string {
	return kind + ":" + v.String()
}
