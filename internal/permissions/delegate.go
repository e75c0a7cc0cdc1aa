package permissions

import (
	"slices"
	"time"
)

// DelegateType is one class of authority a responsible party holds over a
// dependent.
type DelegateType string

const (
	// DAA: legal authority to act for the dependent.
	DelegateDAA DelegateType = "DAA"
	// RPR: registered-representative status.
	DelegateRPR DelegateType = "RPR"
	// ROI: release-of-information consent, required for sensitive data.
	DelegateROI DelegateType = "ROI"
)

// AllDelegateTypes lists the known types in canonical order.
var AllDelegateTypes = []DelegateType{DelegateDAA, DelegateRPR, DelegateROI}

// ParseDelegateType accepts exactly the known type codes.
func ParseDelegateType(s string) (DelegateType, bool) {
	t := DelegateType(s)
	if slices.Contains(AllDelegateTypes, t) {
		return t, true
	}
	return "", false
}

// DelegatePermission is one time-bounded grant. Nil bounds are open.
type DelegatePermission struct {
	StartDate *Date `json:"startDate,omitempty"`
	StopDate  *Date `json:"stopDate,omitempty"`
	Active    bool  `json:"active"`
}

// ValidOn reports whether the grant is active and day is within [start, stop],
// both ends inclusive.
func (p DelegatePermission) ValidOn(day Date) bool {
	if !p.Active {
		return false
	}
	if p.StartDate != nil && day.Before(*p.StartDate) {
		return false
	}
	if p.StopDate != nil && day.After(*p.StopDate) {
		return false
	}
	return true
}

// IsCurrentlyValid evaluates ValidOn for the canonical-zone date of now.
func (p DelegatePermission) IsCurrentlyValid(now time.Time) bool {
	return p.ValidOn(Today(now))
}

// DependentAccess is the grant map a subject holds for one dependent.
type DependentAccess struct {
	DependentID   string                              `json:"dependentId"`
	DependentName string                              `json:"dependentName,omitempty"`
	Relationship  string                              `json:"relationship,omitempty"`
	Permissions   map[DelegateType]DelegatePermission `json:"permissions"`
}

// NewDependentAccess copies grants so later mutation of the input is not
// observable.
func NewDependentAccess(id, name, relationship string, grants map[DelegateType]DelegatePermission) DependentAccess {
	copied := make(map[DelegateType]DelegatePermission, len(grants))
	for k, v := range grants {
		copied[k] = v
	}
	return DependentAccess{
		DependentID:   id,
		DependentName: name,
		Relationship:  relationship,
		Permissions:   copied,
	}
}

// HasGrant reports whether t was ever granted, regardless of validity.
func (d DependentAccess) HasGrant(t DelegateType) bool {
	_, ok := d.Permissions[t]
	return ok
}

// HasValid reports whether t is granted and currently valid.
func (d DependentAccess) HasValid(t DelegateType, now time.Time) bool {
	p, ok := d.Permissions[t]
	return ok && p.IsCurrentlyValid(now)
}

// CanView requires valid DAA and RPR.
func (d DependentAccess) CanView(now time.Time) bool {
	return d.HasValid(DelegateDAA, now) && d.HasValid(DelegateRPR, now)
}

// CanAccessSensitive requires CanView plus valid ROI.
func (d DependentAccess) CanAccessSensitive(now time.Time) bool {
	return d.CanView(now) && d.HasValid(DelegateROI, now)
}

// Missing returns the required types that are not currently valid, in the
// order given.
func (d DependentAccess) Missing(required []DelegateType, now time.Time) []DelegateType {
	var missing []DelegateType
	for _, t := range required {
		if !d.HasValid(t, now) {
			missing = append(missing, t)
		}
	}
	return missing
}

// ValidTypes returns the currently valid types in canonical order.
func (d DependentAccess) ValidTypes(now time.Time) []DelegateType {
	var out []DelegateType
	for _, t := range AllDelegateTypes {
		if d.HasValid(t, now) {
			out = append(out, t)
		}
	}
	return out
}
