package models

import (
	"healthbff/internal/permissions"
	"healthbff/pkg/email"
)

// UserInfo is the identity profile returned for an authenticated subject.
type UserInfo struct {
	SubjectID          string            `json:"subjectId"`
	EnterpriseID       string            `json:"enterpriseId"`
	Email              string            `json:"email,omitempty"`
	FirstName          string            `json:"firstName,omitempty"`
	LastName           string            `json:"lastName,omitempty"`
	Birthdate          *permissions.Date `json:"birthdate,omitempty"`
	IsResponsibleParty bool              `json:"isResponsibleParty"`
}

// DisplayName joins the name parts that are present, falling back to a name
// derived from the email address.
func (u *UserInfo) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return email.NameFromAddress(u.Email)
	}
}

// EligibilityStatus is the coverage state reported by the eligibility backend.
type EligibilityStatus string

const (
	EligibilityActive     EligibilityStatus = "ACTIVE"
	EligibilityInactive   EligibilityStatus = "INACTIVE"
	EligibilityTerminated EligibilityStatus = "TERMINATED"
	// EligibilityUnknown is the fail-closed stand-in when the lookup failed.
	// It is never treated as active.
	EligibilityUnknown EligibilityStatus = "UNKNOWN"
)

// ParseEligibilityStatus maps unrecognized values to EligibilityUnknown.
func ParseEligibilityStatus(s string) EligibilityStatus {
	switch EligibilityStatus(s) {
	case EligibilityActive, EligibilityInactive, EligibilityTerminated:
		return EligibilityStatus(s)
	default:
		return EligibilityUnknown
	}
}

// Plan is one eligible coverage plan.
type Plan struct {
	PlanID         string            `json:"planId"`
	PlanName       string            `json:"planName,omitempty"`
	LineOfBusiness string            `json:"lineOfBusiness,omitempty"`
	EffectiveDate  *permissions.Date `json:"effectiveDate,omitempty"`
	TermDate       *permissions.Date `json:"termDate,omitempty"`
}

type Eligibility struct {
	Status   EligibilityStatus `json:"status"`
	Plans    []Plan            `json:"plans"`
	TermDate *permissions.Date `json:"termDate,omitempty"`
}

// UnknownEligibility is the degraded result used when the lookup fails.
func UnknownEligibility() *Eligibility {
	return &Eligibility{Status: EligibilityUnknown}
}

// IsActive is true only for a definitive ACTIVE status.
func (e *Eligibility) IsActive() bool {
	return e != nil && e.Status == EligibilityActive
}

// HasPlans reports a non-empty eligible-plan list.
func (e *Eligibility) HasPlans() bool {
	return e != nil && len(e.Plans) > 0
}
