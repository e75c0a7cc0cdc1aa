package models

import (
	"slices"
	"time"

	"healthbff/internal/permissions"
	"healthbff/pkg/domain"
)

// Session is the server-side record behind the session cookie.
type Session struct {
	ID        string         `json:"id"`
	SubjectID string         `json:"subject_id"`
	Email     string         `json:"email,omitempty"`
	Name      string         `json:"name,omitempty"`
	Persona   domain.Persona `json:"persona"`

	ManagedMemberIDs   []string                   `json:"managed_member_ids,omitempty"`
	ManagedMembersJSON string                     `json:"managed_members_json,omitempty"`
	DelegateTypes      []permissions.DelegateType `json:"delegate_types,omitempty"`

	// Binding signals captured at creation or rotation.
	IPAddress         string `json:"ip_address,omitempty"`
	UserAgentHash     string `json:"user_agent_hash,omitempty"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
	DeviceDisplayName string `json:"device_display_name,omitempty"`

	CreatedAt      time.Time  `json:"created_at"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`
	RotatedAt      *time.Time `json:"rotated_at,omitempty"`
	// SupersededBy is set on the old record during the rotation grace period.
	SupersededBy string `json:"superseded_by,omitempty"`

	EnterpriseID       string            `json:"enterprise_id,omitempty"`
	Birthdate          *permissions.Date `json:"birthdate,omitempty"`
	IsResponsibleParty bool              `json:"is_responsible_party"`
	EligibilityStatus  string            `json:"eligibility_status,omitempty"`
	TermDate           *permissions.Date `json:"term_date,omitempty"`

	Permissions *permissions.PermissionSet `json:"permissions,omitempty"`
	Tokens      Tokens                     `json:"tokens"`
}

// Tokens are the identity-provider tokens held on the member's behalf.
type Tokens struct {
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// EffectiveRotatedAt is the reference point for the rotation interval.
func (s *Session) EffectiveRotatedAt() time.Time {
	if s.RotatedAt != nil {
		return *s.RotatedAt
	}
	return s.CreatedAt
}

// IsSuperseded reports whether the record was rotated away.
func (s *Session) IsSuperseded() bool {
	return s.SupersededBy != ""
}

// EffectiveTargetID is the member id acted on by default.
func (s *Session) EffectiveTargetID() string {
	if s.EnterpriseID != "" {
		return s.EnterpriseID
	}
	return s.SubjectID
}

// Clone deep-copies slices and pointers so stores never share mutable state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.ManagedMemberIDs = slices.Clone(s.ManagedMemberIDs)
	cp.DelegateTypes = slices.Clone(s.DelegateTypes)
	if s.RotatedAt != nil {
		t := *s.RotatedAt
		cp.RotatedAt = &t
	}
	if s.Birthdate != nil {
		d := *s.Birthdate
		cp.Birthdate = &d
	}
	if s.TermDate != nil {
		d := *s.TermDate
		cp.TermDate = &d
	}
	if s.Permissions != nil {
		cp.Permissions = s.Permissions.Clone()
	}
	return &cp
}

// SessionSummary is the client-facing view of the current session.
type SessionSummary struct {
	SessionID         string                     `json:"session_id,omitempty"`
	AuthType          string                     `json:"auth_type"`
	SubjectID         string                     `json:"subject_id"`
	EffectiveTargetID string                     `json:"effective_target_id"`
	Persona           domain.Persona             `json:"persona"`
	Device            string                     `json:"device,omitempty"`
	DelegateTypes     []permissions.DelegateType `json:"delegate_types,omitempty"`
	ManagedMemberIDs  []string                   `json:"managed_member_ids,omitempty"`
	CreatedAt         *time.Time                 `json:"created_at,omitempty"`
	LastActivity      *time.Time                 `json:"last_activity,omitempty"`
}
