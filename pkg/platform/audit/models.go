package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// Sinks may route or retain categories differently.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance, such as
	// access to a dependent's sensitive records.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring:
	// auth failures, binding mismatches, forced logouts, policy denials.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine lifecycle activity.
	CategoryOperations EventCategory = "operations"
)

// Severity levels for security events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	SubjectID string        `json:"subject_id,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
	AuthType  string        `json:"auth_type,omitempty"`
	// TargetID is the member acted on when it differs from SubjectID.
	TargetID  string   `json:"target_id,omitempty"`
	PartnerID string   `json:"partner_id,omitempty"`
	Decision  string   `json:"decision,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	IP        string   `json:"ip,omitempty"`
	Device    string   `json:"device,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
	ActorID   string   `json:"actor_id,omitempty"`
	Severity  Severity `json:"severity,omitempty"`
}

type AuditEvent string

const (
	// Session lifecycle
	EventSessionCreated     AuditEvent = "session_created"
	EventSessionRotated     AuditEvent = "session_rotated"
	EventSessionInvalidated AuditEvent = "session_invalidated"
	EventSessionLogout      AuditEvent = "session_logout"
	EventSessionForceLogout AuditEvent = "session_force_logout"

	// Authentication
	EventAuthFailed      AuditEvent = "auth_failed"
	EventBindingMismatch AuditEvent = "binding_mismatch"
	EventLoginRejected   AuditEvent = "login_rejected"

	// Authorization
	EventPolicyDenied           AuditEvent = "policy_denied"
	EventSensitiveAccessGranted AuditEvent = "sensitive_access_granted"

	// Cache administration
	EventCacheEvicted AuditEvent = "cache_evicted"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventSensitiveAccessGranted: CategoryCompliance,

	EventAuthFailed:         CategorySecurity,
	EventBindingMismatch:    CategorySecurity,
	EventLoginRejected:      CategorySecurity,
	EventPolicyDenied:       CategorySecurity,
	EventSessionForceLogout: CategorySecurity,
	EventCacheEvicted:       CategorySecurity,

	EventSessionCreated:     CategoryOperations,
	EventSessionRotated:     CategoryOperations,
	EventSessionInvalidated: CategoryOperations,
	EventSessionLogout:      CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Normalize fills the category and timestamp when the caller left them empty.
func Normalize(e Event, now time.Time) Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	if e.Category == "" {
		e.Category = AuditEvent(e.Action).Category()
	}
	return e
}
