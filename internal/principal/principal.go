// Package principal defines the unified AuthContext produced by either
// authentication channel and carried through the handler chain.
package principal

import (
	"context"
	"errors"
	"slices"
	"time"

	"healthbff/internal/permissions"
	"healthbff/pkg/domain"
)

// AuthType names the channel that authenticated the request.
type AuthType string

const (
	AuthTypeHSID  AuthType = "HSID"
	AuthTypeProxy AuthType = "PROXY"
)

var (
	ErrMissingSubject       = errors.New("auth context requires a subject id")
	ErrMissingSession       = errors.New("HSID auth context requires a session id")
	ErrMissingPartner       = errors.New("PROXY auth context requires a partner id and id type")
	ErrChannelFieldConflict = errors.New("auth context mixes session and partner fields")
)

// AuthContext is immutable once built; use the With* copies to derive.
type AuthContext struct {
	AuthType          AuthType
	SubjectID         string
	EffectiveTargetID string
	Persona           domain.Persona

	// HSID only.
	SessionID string
	// PROXY only.
	PartnerID string
	ClientID  string
	IDType    domain.IDType

	Permissions         *permissions.PermissionSet
	ActiveDelegateTypes []permissions.DelegateType

	// ResolvedAt is the instant used for every temporal check on this request.
	ResolvedAt time.Time
}

// SessionParams builds an HSID context.
type SessionParams struct {
	SubjectID           string
	EffectiveTargetID   string
	Persona             domain.Persona
	SessionID           string
	Permissions         *permissions.PermissionSet
	ActiveDelegateTypes []permissions.DelegateType
	ResolvedAt          time.Time
}

// ProxyParams builds a PROXY context.
type ProxyParams struct {
	SubjectID         string
	EffectiveTargetID string
	Persona           domain.Persona
	PartnerID         string
	ClientID          string
	IDType            domain.IDType
	ResolvedAt        time.Time
}

// NewSessionContext builds an HSID context. The effective target defaults to
// the subject id when empty.
func NewSessionContext(p SessionParams) (*AuthContext, error) {
	ac := &AuthContext{
		AuthType:            AuthTypeHSID,
		SubjectID:           p.SubjectID,
		EffectiveTargetID:   p.EffectiveTargetID,
		Persona:             p.Persona,
		SessionID:           p.SessionID,
		Permissions:         p.Permissions,
		ActiveDelegateTypes: slices.Clone(p.ActiveDelegateTypes),
		ResolvedAt:          p.ResolvedAt,
	}
	if ac.EffectiveTargetID == "" {
		ac.EffectiveTargetID = ac.SubjectID
	}
	if err := ac.Validate(); err != nil {
		return nil, err
	}
	return ac, nil
}

// NewProxyContext builds a PROXY context.
func NewProxyContext(p ProxyParams) (*AuthContext, error) {
	ac := &AuthContext{
		AuthType:          AuthTypeProxy,
		SubjectID:         p.SubjectID,
		EffectiveTargetID: p.EffectiveTargetID,
		Persona:           p.Persona,
		PartnerID:         p.PartnerID,
		ClientID:          p.ClientID,
		IDType:            p.IDType,
		ResolvedAt:        p.ResolvedAt,
	}
	if err := ac.Validate(); err != nil {
		return nil, err
	}
	return ac, nil
}

// Validate enforces channel exclusivity: HSID carries a session and no
// partner fields; PROXY carries partner fields and no session.
func (a *AuthContext) Validate() error {
	if a.SubjectID == "" {
		return ErrMissingSubject
	}
	switch a.AuthType {
	case AuthTypeHSID:
		if a.SessionID == "" {
			return ErrMissingSession
		}
		if a.PartnerID != "" || a.IDType != "" {
			return ErrChannelFieldConflict
		}
	case AuthTypeProxy:
		if a.PartnerID == "" || a.IDType == "" {
			return ErrMissingPartner
		}
		if a.SessionID != "" {
			return ErrChannelFieldConflict
		}
	default:
		return errors.New("unknown auth type")
	}
	return nil
}

func (a *AuthContext) IsHSID() bool  { return a != nil && a.AuthType == AuthTypeHSID }
func (a *AuthContext) IsProxy() bool { return a != nil && a.AuthType == AuthTypeProxy }

// IsDelegate reports an HSID subject acting for dependents.
func (a *AuthContext) IsDelegate() bool {
	return a.IsHSID() && a.Persona == domain.PersonaDelegate
}

// HasDelegateType reports whether t is in the session's active delegate set.
func (a *AuthContext) HasDelegateType(t permissions.DelegateType) bool {
	return a != nil && slices.Contains(a.ActiveDelegateTypes, t)
}

// DependentAccess returns the subject's grants for a dependent.
func (a *AuthContext) DependentAccess(dependentID string) (permissions.DependentAccess, bool) {
	if a == nil {
		return permissions.DependentAccess{}, false
	}
	return a.Permissions.Dependent(dependentID)
}

// WithEffectiveTarget returns a copy acting on a different target member.
func (a *AuthContext) WithEffectiveTarget(id string) *AuthContext {
	cp := *a
	cp.EffectiveTargetID = id
	cp.ActiveDelegateTypes = slices.Clone(a.ActiveDelegateTypes)
	return &cp
}

// WithSessionID returns a copy bound to a rotated session id.
func (a *AuthContext) WithSessionID(id string) *AuthContext {
	cp := *a
	cp.SessionID = id
	cp.ActiveDelegateTypes = slices.Clone(a.ActiveDelegateTypes)
	return &cp
}

type authContextKey struct{}

// WithAuthContext attaches ac to ctx.
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// FromContext returns the AuthContext attached by the resolver.
func FromContext(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(authContextKey{}).(*AuthContext)
	return ac, ok && ac != nil
}
