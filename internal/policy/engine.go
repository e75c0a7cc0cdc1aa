package policy

import (
	"slices"
	"sort"

	"healthbff/internal/principal"
	dErrors "healthbff/pkg/domain-errors"
)

const (
	DefaultDenyPolicyID = "DEFAULT_DENY"
	defaultDenyReason   = "no policy granted access"
)

// Engine evaluates policies in descending priority, first ALLOW or DENY wins.
type Engine struct {
	policies []Policy
}

// NewEngine orders policies once. Equal priorities keep registration order.
func NewEngine(policies ...Policy) *Engine {
	ordered := slices.Clone(policies)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() > ordered[j].Priority()
	})
	return &Engine{policies: ordered}
}

// Policies returns the evaluation order.
func (e *Engine) Policies() []Policy {
	return slices.Clone(e.policies)
}

// Evaluate returns the first applicable non-NOT_APPLICABLE decision, or the
// default deny.
func (e *Engine) Evaluate(subject *principal.AuthContext, resource Resource, action Action) Decision {
	if subject == nil {
		return Deny(DefaultDenyPolicyID, defaultDenyReason)
	}
	for _, p := range e.policies {
		if !p.AppliesTo(subject, resource, action) {
			continue
		}
		d := p.Evaluate(subject, resource, action)
		switch d.Outcome {
		case OutcomeAllow, OutcomeDeny:
			if d.PolicyID == "" {
				d.PolicyID = p.ID()
			}
			return d
		}
	}
	return Deny(DefaultDenyPolicyID, defaultDenyReason)
}

// Authorize evaluates and converts DENY into a forbidden domain error.
func (e *Engine) Authorize(subject *principal.AuthContext, resource Resource, action Action) (Decision, error) {
	d := e.Evaluate(subject, resource, action)
	if d.Allowed() {
		return d, nil
	}
	details := map[string]any{
		"policyId": d.PolicyID,
		"reason":   d.Reason,
	}
	if len(d.MissingAttributes) > 0 {
		details["missingAttributes"] = d.MissingAttributes
	}
	return d, dErrors.New(dErrors.CodeForbidden, "access denied").
		WithReason("POLICY_DENIED").
		WithDetails(details)
}
