package policy

import (
	"healthbff/internal/permissions"
	"healthbff/internal/principal"
	"healthbff/pkg/domain"
)

const (
	SelfAccessPolicyID            = "SELF_ACCESS"
	DelegateSensitiveViewPolicyID = "DELEGATE_SENSITIVE_VIEW"
	DelegateDocumentUploadID      = "DELEGATE_DOCUMENT_UPLOAD"
	DelegateViewPolicyID          = "DELEGATE_VIEW"
	ProxyViewPolicyID             = "PROXY_VIEW"
)

// Missing-attribute name for a proxy operator acting outside its assignment.
const AttributeTargetMember = "TARGET_MEMBER"

var (
	viewTypes      = []permissions.DelegateType{permissions.DelegateDAA, permissions.DelegateRPR}
	sensitiveTypes = []permissions.DelegateType{permissions.DelegateDAA, permissions.DelegateRPR, permissions.DelegateROI}
	// Uploading does not disclose records, so ROI is not required.
	uploadTypes = []permissions.DelegateType{permissions.DelegateDAA, permissions.DelegateRPR}
)

// DefaultPolicies is the built-in rule set.
func DefaultPolicies() []Policy {
	return []Policy{
		SelfAccessPolicy{},
		DelegateSensitiveViewPolicy{},
		DelegateDocumentUploadPolicy{},
		DelegateViewPolicy{},
		ProxyViewPolicy{},
	}
}

// requireDelegateTypes is shared by the delegate policies: every required type
// must be currently valid for the dependent at resource.ID.
func requireDelegateTypes(policyID string, subject *principal.AuthContext, resource Resource, required []permissions.DelegateType) Decision {
	access, ok := subject.DependentAccess(resource.ID)
	if !ok {
		return Deny(policyID, "no delegate relationship with resource", delegateNames(required)...)
	}
	missing := access.Missing(required, subject.ResolvedAt)
	if len(missing) > 0 {
		return Deny(policyID, "required delegate permissions not currently valid", delegateNames(missing)...)
	}
	return Allow(policyID, "delegate permissions valid")
}

func delegateNames(types []permissions.DelegateType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

// SelfAccessPolicy lets an HSID subject act on its own record.
type SelfAccessPolicy struct{}

func (SelfAccessPolicy) ID() string    { return SelfAccessPolicyID }
func (SelfAccessPolicy) Priority() int { return 300 }

func (SelfAccessPolicy) AppliesTo(s *principal.AuthContext, _ Resource, _ Action) bool {
	return s.IsHSID() && s.Persona == domain.PersonaSelf
}

func (p SelfAccessPolicy) Evaluate(s *principal.AuthContext, r Resource, _ Action) Decision {
	if r.Type == ResourceDependent || r.ID == "" || r.ID != s.EffectiveTargetID {
		return NotApplicable(p.ID())
	}
	return Allow(p.ID(), "subject owns resource")
}

// DelegateSensitiveViewPolicy gates sensitive dependent data on DAA, RPR and ROI.
type DelegateSensitiveViewPolicy struct{}

func (DelegateSensitiveViewPolicy) ID() string    { return DelegateSensitiveViewPolicyID }
func (DelegateSensitiveViewPolicy) Priority() int { return 200 }

func (DelegateSensitiveViewPolicy) AppliesTo(s *principal.AuthContext, r Resource, a Action) bool {
	return s.IsDelegate() && a == ActionViewSensitive && r.Type == ResourceDependent
}

func (p DelegateSensitiveViewPolicy) Evaluate(s *principal.AuthContext, r Resource, _ Action) Decision {
	return requireDelegateTypes(p.ID(), s, r, sensitiveTypes)
}

// DelegateDocumentUploadPolicy lets a delegate add documents for a dependent.
type DelegateDocumentUploadPolicy struct{}

func (DelegateDocumentUploadPolicy) ID() string    { return DelegateDocumentUploadID }
func (DelegateDocumentUploadPolicy) Priority() int { return 150 }

func (DelegateDocumentUploadPolicy) AppliesTo(s *principal.AuthContext, r Resource, a Action) bool {
	return s.IsDelegate() && a == ActionUpload && r.Type == ResourceDocument
}

func (p DelegateDocumentUploadPolicy) Evaluate(s *principal.AuthContext, r Resource, _ Action) Decision {
	return requireDelegateTypes(p.ID(), s, r, uploadTypes)
}

// DelegateViewPolicy gates non-sensitive dependent data on DAA and RPR.
type DelegateViewPolicy struct{}

func (DelegateViewPolicy) ID() string    { return DelegateViewPolicyID }
func (DelegateViewPolicy) Priority() int { return 100 }

func (DelegateViewPolicy) AppliesTo(s *principal.AuthContext, r Resource, a Action) bool {
	return s.IsDelegate() && a == ActionView && r.Type == ResourceDependent && !r.Sensitive
}

func (p DelegateViewPolicy) Evaluate(s *principal.AuthContext, r Resource, _ Action) Decision {
	return requireDelegateTypes(p.ID(), s, r, viewTypes)
}

// ProxyViewPolicy lets a partner operator view its assigned member. The
// configuration persona has unconditional view access.
type ProxyViewPolicy struct{}

func (ProxyViewPolicy) ID() string    { return ProxyViewPolicyID }
func (ProxyViewPolicy) Priority() int { return 100 }

func (ProxyViewPolicy) AppliesTo(s *principal.AuthContext, r Resource, a Action) bool {
	if !s.IsProxy() || a != ActionView || r.Sensitive {
		return false
	}
	return r.Type == ResourceMember || r.Type == ResourceDependent
}

func (p ProxyViewPolicy) Evaluate(s *principal.AuthContext, r Resource, _ Action) Decision {
	if s.Persona == domain.PersonaConfigSpecialist {
		return Allow(p.ID(), "configuration persona")
	}
	if r.ID != "" && r.ID == s.EffectiveTargetID {
		return Allow(p.ID(), "operator assigned to member")
	}
	return Deny(p.ID(), "operator not assigned to member", AttributeTargetMember)
}
