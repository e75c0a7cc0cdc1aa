package permissions

import (
	"time"

	"healthbff/pkg/domain"
)

// DefaultTTL bounds how long a fetched permission set is trusted.
const DefaultTTL = 300 * time.Second

// PermissionSet is the subject's full grant snapshot. It is replaced
// wholesale on refresh, never patched.
type PermissionSet struct {
	SubjectID  string            `json:"subjectId"`
	Persona    domain.Persona    `json:"persona,omitempty"`
	Dependents []DependentAccess `json:"dependents"`
	FetchedAt  time.Time         `json:"fetchedAt"`
	ExpiresAt  time.Time         `json:"expiresAt"`
}

// NewPermissionSet builds a snapshot; ttl <= 0 uses DefaultTTL.
func NewPermissionSet(subjectID string, persona domain.Persona, dependents []DependentAccess, fetchedAt time.Time, ttl time.Duration) *PermissionSet {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	deps := make([]DependentAccess, 0, len(dependents))
	for _, d := range dependents {
		deps = append(deps, NewDependentAccess(d.DependentID, d.DependentName, d.Relationship, d.Permissions))
	}
	return &PermissionSet{
		SubjectID:  subjectID,
		Persona:    persona,
		Dependents: deps,
		FetchedAt:  fetchedAt,
		ExpiresAt:  fetchedAt.Add(ttl),
	}
}

// EmptyPermissionSet is the fail-closed substitute used whenever a fetch fails
// or no set is stored.
func EmptyPermissionSet(subjectID string, now time.Time) *PermissionSet {
	return NewPermissionSet(subjectID, "", nil, now, DefaultTTL)
}

// IsExpired reports now > ExpiresAt.
func (s *PermissionSet) IsExpired(now time.Time) bool {
	return s == nil || now.After(s.ExpiresAt)
}

// IsEmpty reports whether the set grants nothing.
func (s *PermissionSet) IsEmpty() bool {
	return s == nil || len(s.Dependents) == 0
}

// Dependent looks up grants by dependent id.
func (s *PermissionSet) Dependent(id string) (DependentAccess, bool) {
	if s == nil || id == "" {
		return DependentAccess{}, false
	}
	for _, d := range s.Dependents {
		if d.DependentID == id {
			return d, true
		}
	}
	return DependentAccess{}, false
}

// DependentIDs lists dependents in stored order.
func (s *PermissionSet) DependentIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.Dependents))
	for _, d := range s.Dependents {
		ids = append(ids, d.DependentID)
	}
	return ids
}

// WithPersona returns a copy stamped with persona.
func (s *PermissionSet) WithPersona(p domain.Persona) *PermissionSet {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Persona = p
	return &cp
}

// Clone deep-copies the set, keeping its timestamps.
func (s *PermissionSet) Clone() *PermissionSet {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Dependents = make([]DependentAccess, 0, len(s.Dependents))
	for _, d := range s.Dependents {
		cp.Dependents = append(cp.Dependents, NewDependentAccess(d.DependentID, d.DependentName, d.Relationship, d.Permissions))
	}
	return &cp
}
