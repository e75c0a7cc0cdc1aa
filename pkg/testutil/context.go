package testutil

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"healthbff/internal/permissions"
	"healthbff/internal/principal"
	"healthbff/pkg/domain"
	"healthbff/pkg/requestcontext"
)

// WithAuthContext attaches ac as the resolver would.
func WithAuthContext(req *http.Request, ac *principal.AuthContext) *http.Request {
	return req.WithContext(principal.WithAuthContext(req.Context(), ac))
}

// WithSession attaches an HSID principal for subjectID. A nil set means no
// delegate grants.
func WithSession(t *testing.T, req *http.Request, subjectID, sessionID string, persona domain.Persona, set *permissions.PermissionSet) *http.Request {
	t.Helper()
	now := requestcontext.Now(req.Context())
	var active []permissions.DelegateType
	if set != nil {
		seen := map[permissions.DelegateType]bool{}
		for _, d := range set.Dependents {
			for _, dt := range d.ValidTypes(now) {
				if !seen[dt] {
					seen[dt] = true
					active = append(active, dt)
				}
			}
		}
	}
	ac, err := principal.NewSessionContext(principal.SessionParams{
		SubjectID:           subjectID,
		Persona:             persona,
		SessionID:           sessionID,
		Permissions:         set,
		ActiveDelegateTypes: active,
		ResolvedAt:          now,
	})
	require.NoError(t, err, "failed to build session auth context")
	return WithAuthContext(req, ac)
}

// WithProxy attaches a PROXY principal acting on enterpriseID.
func WithProxy(t *testing.T, req *http.Request, operatorID, clientID, enterpriseID string, persona domain.Persona) *http.Request {
	t.Helper()
	ac, err := principal.NewProxyContext(principal.ProxyParams{
		SubjectID:         operatorID,
		EffectiveTargetID: enterpriseID,
		Persona:           persona,
		PartnerID:         clientID,
		ClientID:          clientID,
		IDType:            domain.IDTypeOHID,
		ResolvedAt:        requestcontext.Now(req.Context()),
	})
	require.NoError(t, err, "failed to build proxy auth context")
	return WithAuthContext(req, ac)
}
