package enrichment

import (
	"slices"
	"time"

	"healthbff/internal/enrichment/models"
	"healthbff/internal/permissions"
	"healthbff/pkg/domain"
	dErrors "healthbff/pkg/domain-errors"
)

// PersonaInput is everything the persona rules look at.
type PersonaInput struct {
	Eligibility    *models.Eligibility
	Age            int
	AdultAge       int
	ManagedMembers []permissions.DependentAccess
	Now            time.Time
}

// PersonaDecision is the outcome of DecidePersona. DelegateTypes and
// QualifyingMembers are only set for the delegate persona.
type PersonaDecision struct {
	Persona           domain.Persona
	DelegateTypes     []permissions.DelegateType
	QualifyingMembers []string
}

// DecidePersona applies the persona rules in order, first match wins:
//
//  1. any eligible plan: Self, whatever the managed-member data says
//  2. adult with at least one member holding valid DAA and ROI: Delegate
//  3. otherwise: no access
//
// A subject that qualifies for both is always Self; one persona per session.
func DecidePersona(in PersonaInput) (PersonaDecision, error) {
	if in.Eligibility.HasPlans() {
		return PersonaDecision{Persona: domain.PersonaSelf}, nil
	}
	if in.Age >= in.AdultAge {
		var (
			types   []permissions.DelegateType
			members []string
		)
		for _, m := range in.ManagedMembers {
			if !m.HasValid(permissions.DelegateDAA, in.Now) || !m.HasValid(permissions.DelegateROI, in.Now) {
				continue
			}
			members = append(members, m.DependentID)
			for _, t := range m.ValidTypes(in.Now) {
				if !slices.Contains(types, t) {
					types = append(types, t)
				}
			}
		}
		if len(members) > 0 {
			return PersonaDecision{
				Persona:           domain.PersonaDelegate,
				DelegateTypes:     canonicalOrder(types),
				QualifyingMembers: members,
			}, nil
		}
	}
	return PersonaDecision{Persona: domain.PersonaNoAccess}, errNoAccess()
}

func canonicalOrder(types []permissions.DelegateType) []permissions.DelegateType {
	out := make([]permissions.DelegateType, 0, len(types))
	for _, t := range permissions.AllDelegateTypes {
		if slices.Contains(types, t) {
			out = append(out, t)
		}
	}
	return out
}

func errNoAccess() error {
	return dErrors.New(dErrors.CodeForbidden, "no eligible coverage or delegate access").WithReason(ReasonNoAccess)
}
