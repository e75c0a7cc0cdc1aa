// Package policy is the attribute-based access control engine. Policies are
// pure functions of (subject, resource, action); the engine evaluates them in
// descending priority and never caches a decision.
package policy

import (
	"healthbff/internal/principal"
)

// Action is the operation requested on a resource.
type Action string

const (
	ActionView          Action = "VIEW"
	ActionViewSensitive Action = "VIEW_SENSITIVE"
	ActionUpload        Action = "UPLOAD"
)

// ParseAction accepts exactly the known actions.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionView, ActionViewSensitive, ActionUpload:
		return a, true
	default:
		return "", false
	}
}

// ResourceType classifies the protected object.
type ResourceType string

const (
	ResourceMember    ResourceType = "MEMBER"
	ResourceDependent ResourceType = "DEPENDENT"
	// ResourceDocument is a document belonging to the member or dependent
	// identified by Resource.ID.
	ResourceDocument ResourceType = "DOCUMENT"
)

// ParseResourceType accepts exactly the known resource types.
func ParseResourceType(s string) (ResourceType, bool) {
	switch t := ResourceType(s); t {
	case ResourceMember, ResourceDependent, ResourceDocument:
		return t, true
	default:
		return "", false
	}
}

// Resource is the object of an authorization check. Permission lookups key
// on ID.
type Resource struct {
	Type      ResourceType `json:"type"`
	ID        string       `json:"id"`
	Sensitive bool         `json:"sensitive,omitempty"`
}

// Outcome is a policy verdict.
type Outcome string

const (
	OutcomeAllow         Outcome = "ALLOW"
	OutcomeDeny          Outcome = "DENY"
	OutcomeNotApplicable Outcome = "NOT_APPLICABLE"
)

// Decision is the result of one evaluation.
type Decision struct {
	PolicyID          string   `json:"policyId"`
	Outcome           Outcome  `json:"outcome"`
	Reason            string   `json:"reason"`
	MissingAttributes []string `json:"missingAttributes,omitempty"`
}

// Allowed reports an ALLOW outcome.
func (d Decision) Allowed() bool { return d.Outcome == OutcomeAllow }

func Allow(policyID, reason string) Decision {
	return Decision{PolicyID: policyID, Outcome: OutcomeAllow, Reason: reason}
}

func Deny(policyID, reason string, missing ...string) Decision {
	return Decision{PolicyID: policyID, Outcome: OutcomeDeny, Reason: reason, MissingAttributes: missing}
}

func NotApplicable(policyID string) Decision {
	return Decision{PolicyID: policyID, Outcome: OutcomeNotApplicable}
}

// Policy is one access rule. AppliesTo and Evaluate must not perform I/O or
// read the clock; temporal checks use the subject's ResolvedAt.
type Policy interface {
	ID() string
	Priority() int
	AppliesTo(subject *principal.AuthContext, resource Resource, action Action) bool
	Evaluate(subject *principal.AuthContext, resource Resource, action Action) Decision
}
