package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"healthbff/internal/auth/device"
	"healthbff/internal/auth/resolver"
	"healthbff/internal/enrichment"
	enrichmentModels "healthbff/internal/enrichment/models"
	jwttoken "healthbff/internal/jwt_token"
	"healthbff/internal/permissions"
	"healthbff/internal/policy"
	sessionModels "healthbff/internal/session/models"
	"healthbff/internal/transport/http/mocks"
	"healthbff/internal/upstream"
	"healthbff/pkg/domain"
	dErrors "healthbff/pkg/domain-errors"
	"healthbff/pkg/platform/audit"
	"healthbff/pkg/platform/audit/publisher"
	auditmemory "healthbff/pkg/platform/audit/store/memory"
	"healthbff/pkg/platform/middleware/admin"
	"healthbff/pkg/testutil"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks healthbff/internal/transport/http LoginService,SessionService,MemberDirectory,SessionAdmin,CacheAdmin

const (
	adminToken    = "admin-secret"
	idTokenSecret = "idp-shared-secret"
	idTokenIssuer = "https://idp.example.com"
	idTokenAud    = "healthbff"
)

func idTokenVerifier(t *testing.T) *jwttoken.Verifier {
	t.Helper()
	v, err := jwttoken.NewHMACVerifier(idTokenSecret, idTokenIssuer, idTokenAud)
	require.NoError(t, err)
	return v
}

func signIDToken(t *testing.T, subject, email string, now time.Time) string {
	t.Helper()
	token, err := jwttoken.NewHMACSigner(idTokenSecret, idTokenIssuer, idTokenAud).Sign(subject, email, now, time.Hour)
	require.NoError(t, err)
	return token
}

type HandlerSuite struct {
	suite.Suite
	now      time.Time
	login    *mocks.MockLoginService
	sessions *mocks.MockSessionService
	members  *mocks.MockMemberDirectory
	admin    *mocks.MockSessionAdmin
	cache    *mocks.MockCacheAdmin
	audit    *auditmemory.InMemoryStore
	router   http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.now = time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	s.login = mocks.NewMockLoginService(ctrl)
	s.sessions = mocks.NewMockSessionService(ctrl)
	s.members = mocks.NewMockMemberDirectory(ctrl)
	s.admin = mocks.NewMockSessionAdmin(ctrl)
	s.cache = mocks.NewMockCacheAdmin(ctrl)
	s.audit = auditmemory.NewInMemoryStore()
	s.router = s.newRouter(s.cache)
}

func (s *HandlerSuite) newRouter(cache CacheAdmin) http.Handler {
	logger := slog.New(slog.DiscardHandler)
	dev := device.NewService(true)
	auditor := publisher.NewPublisher(s.audit)
	return NewRouter(RouterConfig{
		Logger:     logger,
		Gatherer:   prometheus.NewRegistry(),
		Device:     dev,
		AdminToken: adminToken,
		Clock:      func() time.Time { return s.now },
	}, Handlers{
		Health: NewHealthHandler(nil),
		Auth:   NewAuthHandler(s.login, idTokenVerifier(s.T()), s.sessions, dev, resolver.DefaultCookieConfig(), logger),
		Access: NewAccessHandler(policy.NewEngine(policy.DefaultPolicies()...), s.members, logger, nil, auditor),
		Admin:  NewAdminHandler(s.admin, cache, logger, auditor),
	})
}

func grants(types ...permissions.DelegateType) map[permissions.DelegateType]permissions.DelegatePermission {
	out := make(map[permissions.DelegateType]permissions.DelegatePermission, len(types))
	for _, t := range types {
		out[t] = permissions.DelegatePermission{Active: true}
	}
	return out
}

func (s *HandlerSuite) delegateSet(types ...permissions.DelegateType) *permissions.PermissionSet {
	return permissions.NewPermissionSet("RP-1", domain.PersonaDelegate, []permissions.DependentAccess{
		permissions.NewDependentAccess("D1", "Riley", "child", grants(types...)),
	}, s.now, time.Hour)
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == resolver.DefaultCookieConfig().Name {
			return c
		}
	}
	require.Fail(t, "session cookie not set")
	return nil
}

// =============================================================================
// Login / logout / session
// =============================================================================

func (s *HandlerSuite) TestLogin() {
	s.T().Run("creates session for the token subject and sets cookie", func(t *testing.T) {
		s.login.EXPECT().Login(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req enrichment.LoginRequest) (*enrichment.LoginResult, error) {
				assert.Equal(t, "RP-1", req.SubjectID)
				assert.Equal(t, "rp@example.com", req.Email)
				assert.Equal(t, "at", req.Tokens.AccessToken)
				assert.NotEmpty(t, req.Tokens.IDToken)
				assert.Equal(t, s.now.Add(time.Hour), req.Tokens.ExpiresAt)
				assert.NotEmpty(t, req.Client.DeviceFingerprint)
				return &enrichment.LoginResult{
					Session: &sessionModels.Session{
						ID:               "sid-1",
						SubjectID:        "RP-1",
						ManagedMemberIDs: []string{"D1"},
					},
					Persona:       domain.PersonaDelegate,
					DelegateTypes: []permissions.DelegateType{permissions.DelegateDAA},
					Eligibility:   &enrichmentModels.Eligibility{Status: enrichmentModels.EligibilityActive},
				}, nil
			})

		req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]any{
			"subjectId":   " RP-1 ",
			"email":       "ignored@example.com",
			"idToken":     signIDToken(t, "RP-1", "rp@example.com", s.now),
			"accessToken": "at",
			"expiresIn":   3600,
		})
		req.Header.Set("User-Agent", "Mozilla/5.0")
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(t, rr)
		cookie := sessionCookie(t, rr.Result())
		assert.Equal(t, "sid-1", cookie.Value)
		assert.True(t, cookie.HttpOnly)
		body := testutil.UnmarshalResponse[loginResponse](t, rr)
		assert.Equal(t, domain.PersonaDelegate, body.Persona)
		assert.Equal(t, []string{"D1"}, body.ManagedMemberIDs)
		assert.Equal(t, "ACTIVE", body.EligibilityStatus)
	})

	s.T().Run("subject is taken from the token when the body omits it", func(t *testing.T) {
		s.login.EXPECT().Login(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req enrichment.LoginRequest) (*enrichment.LoginResult, error) {
				assert.Equal(t, "SELF-1", req.SubjectID)
				assert.Equal(t, "self@example.com", req.Email, "body email used when the token has none")
				return &enrichment.LoginResult{
					Session: &sessionModels.Session{ID: "sid-2", SubjectID: "SELF-1"},
					Persona: domain.PersonaSelf,
				}, nil
			})

		req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]any{
			"email":   "self@example.com",
			"idToken": signIDToken(t, "SELF-1", "", s.now),
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(t, rr)
	})

	forged, err := jwttoken.NewHMACSigner("attacker-key", idTokenIssuer, idTokenAud).Sign("RP-1", "", s.now, time.Hour)
	s.Require().NoError(err)

	// No Login expectation is set in these cases: reaching enrichment fails the mock.
	rejections := []struct {
		name   string
		body   map[string]any
		reason string
	}{
		{"subject without token", map[string]any{"subjectId": "RP-1"}, ReasonTokenMissing},
		{"unverifiable token", map[string]any{"subjectId": "RP-1", "idToken": "not-a-token"}, jwttoken.ReasonTokenInvalid},
		{"token signed by someone else", map[string]any{"idToken": forged}, jwttoken.ReasonTokenInvalid},
		{"expired token", map[string]any{"idToken": signIDToken(s.T(), "RP-1", "", s.now.Add(-2*time.Hour))}, jwttoken.ReasonTokenExpired},
		{"body subject differs from token", map[string]any{
			"subjectId": "RP-1",
			"idToken":   signIDToken(s.T(), "SELF-1", "", s.now),
		}, ReasonSubjectMismatch},
	}
	for _, tt := range rejections {
		s.T().Run(tt.name, func(t *testing.T) {
			rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", tt.body))
			testutil.AssertErrorReason(t, rr, http.StatusUnauthorized, tt.reason)
			assert.Empty(t, rr.Result().Cookies())
		})
	}

	s.T().Run("malformed body", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/auth/login", "{not json")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.T().Run("enrichment rejection is rendered", func(t *testing.T) {
		s.login.EXPECT().Login(gomock.Any(), gomock.Any()).Return(nil,
			dErrors.New(dErrors.CodeForbidden, "member not found").WithReason(enrichment.ReasonNoAccess))

		req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]any{
			"idToken": signIDToken(t, "ghost", "", s.now),
		})
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertErrorReason(t, rr, http.StatusForbidden, enrichment.ReasonNoAccess)
		assert.Empty(t, rr.Result().Cookies())
	})
}

func (s *HandlerSuite) TestLogout() {
	s.T().Run("deletes session and expires cookie", func(t *testing.T) {
		s.sessions.EXPECT().Logout(gomock.Any(), "sid-1").Return(nil)

		req := testutil.WithSession(t, testutil.NewRequest(t, http.MethodPost, "/api/v1/auth/logout"),
			"M1", "sid-1", domain.PersonaSelf, nil)
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(t, rr, http.StatusNoContent)
		assert.Less(t, sessionCookie(t, rr.Result()).MaxAge, 0)
	})

	s.T().Run("requires a principal", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodPost, "/api/v1/auth/logout"))
		testutil.AssertErrorReason(t, rr, http.StatusUnauthorized, resolver.ReasonAuthRequired)
	})

	s.T().Run("store failure surfaces", func(t *testing.T) {
		s.sessions.EXPECT().Logout(gomock.Any(), "sid-2").Return(dErrors.New(dErrors.CodeUnavailable, "session store unavailable"))

		req := testutil.WithSession(t, testutil.NewRequest(t, http.MethodPost, "/api/v1/auth/logout"),
			"M1", "sid-2", domain.PersonaSelf, nil)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	})
}

func (s *HandlerSuite) TestSession() {
	s.T().Run("delegate view lists dependents", func(t *testing.T) {
		req := testutil.WithSession(t, testutil.NewRequest(t, http.MethodGet, "/api/v1/session"),
			"RP-1", "sid-1", domain.PersonaDelegate, s.delegateSet(permissions.DelegateDAA, permissions.DelegateRPR))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(t, rr)
		body := testutil.UnmarshalResponse[sessionResponse](t, rr)
		assert.Equal(t, "HSID", string(body.AuthType))
		assert.Equal(t, "RP-1", body.EffectiveTargetID)
		require.Len(t, body.Dependents, 1)
		assert.Equal(t, "D1", body.Dependents[0].DependentID)
		assert.True(t, body.Dependents[0].CanView)
		assert.False(t, body.Dependents[0].CanAccessSensitive)
	})

	s.T().Run("proxy view carries partner", func(t *testing.T) {
		req := testutil.WithProxy(t, testutil.NewRequest(t, http.MethodGet, "/api/v1/session"),
			"op-123", "partner-7", "ENT-9", domain.PersonaCaseWorker)
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(t, rr)
		body := testutil.UnmarshalResponse[sessionResponse](t, rr)
		assert.Equal(t, "PROXY", string(body.AuthType))
		assert.Equal(t, "partner-7", body.PartnerID)
		assert.Equal(t, "ENT-9", body.EffectiveTargetID)
		assert.Empty(t, body.Dependents)
	})
}

func (s *HandlerSuite) TestRefreshPermissions() {
	s.T().Run("returns the fresh set", func(t *testing.T) {
		sess := &sessionModels.Session{ID: "sid-1", SubjectID: "RP-1", Persona: domain.PersonaDelegate}
		s.sessions.EXPECT().Validate(gomock.Any(), "sid-1", gomock.Any()).Return(sess, nil)
		s.sessions.EXPECT().RefreshPermissions(gomock.Any(), sess).
			Return(s.delegateSet(permissions.DelegateDAA, permissions.DelegateRPR, permissions.DelegateROI))

		req := testutil.WithSession(t, testutil.NewRequest(t, http.MethodPost, "/api/v1/session/permissions/refresh"),
			"RP-1", "sid-1", domain.PersonaDelegate, nil)
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(t, rr)
		body := testutil.UnmarshalResponse[permissionsResponse](t, rr)
		require.Len(t, body.Dependents, 1)
		assert.True(t, body.Dependents[0].CanAccessSensitive)
		assert.Equal(t, s.now.Add(time.Hour), body.ExpiresAt)
	})

	s.T().Run("empty set renders an empty list", func(t *testing.T) {
		sess := &sessionModels.Session{ID: "sid-3", SubjectID: "M1", Persona: domain.PersonaSelf}
		s.sessions.EXPECT().Validate(gomock.Any(), "sid-3", gomock.Any()).Return(sess, nil)
		s.sessions.EXPECT().RefreshPermissions(gomock.Any(), sess).Return(permissions.EmptyPermissionSet("M1", s.now))

		req := testutil.WithSession(t, testutil.NewRequest(t, http.MethodPost, "/api/v1/session/permissions/refresh"),
			"M1", "sid-3", domain.PersonaSelf, nil)
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "dependents", []any{})
	})

	s.T().Run("binding failure is not refreshed", func(t *testing.T) {
		s.sessions.EXPECT().Validate(gomock.Any(), "sid-2", gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUnauthorized, "session binding mismatch").WithReason(resolver.ReasonBindingMismatch))

		req := testutil.WithSession(t, testutil.NewRequest(t, http.MethodPost, "/api/v1/session/permissions/refresh"),
			"RP-1", "sid-2", domain.PersonaDelegate, nil)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertErrorReason(t, rr, http.StatusUnauthorized, resolver.ReasonBindingMismatch)
	})
}

// =============================================================================
// Policy-gated routes
// =============================================================================

func (s *HandlerSuite) authorizeRequest(t *testing.T, resType, id string, sensitive bool, action string) *http.Request {
	return testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/authorize", map[string]any{
		"resource": map[string]any{"type": resType, "id": id, "sensitive": sensitive},
		"action":   action,
	})
}

func (s *HandlerSuite) TestAuthorize() {
	s.T().Run("delegate view allowed", func(t *testing.T) {
		req := testutil.WithSession(t, s.authorizeRequest(t, "DEPENDENT", "D1", false, "VIEW"),
			"RP-1", "sid-1", domain.PersonaDelegate, s.delegateSet(permissions.DelegateDAA, permissions.DelegateRPR))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(t, rr)
		body := testutil.UnmarshalResponse[policy.Decision](t, rr)
		assert.Equal(t, policy.DelegateViewPolicyID, body.PolicyID)
		assert.Equal(t, policy.OutcomeAllow, body.Outcome)
	})

	s.T().Run("sensitive view without ROI is denied with missing attributes", func(t *testing.T) {
		s.audit.Clear()
		req := testutil.WithSession(t, s.authorizeRequest(t, "DEPENDENT", "D1", true, "VIEW_SENSITIVE"),
			"RP-1", "sid-1", domain.PersonaDelegate, s.delegateSet(permissions.DelegateDAA, permissions.DelegateRPR))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(t, rr, http.StatusForbidden)
		env := testutil.UnmarshalErrorResponse(t, rr)
		assert.Equal(t, "POLICY_DENIED", env.Code)
		assert.Equal(t, policy.DelegateSensitiveViewPolicyID, env.Details["policyId"])
		assert.Equal(t, []any{"ROI"}, env.Details["missingAttributes"])

		denied := s.audit.ListByAction(context.Background(), audit.EventPolicyDenied)
		require.Len(t, denied, 1)
		assert.Equal(t, "D1", denied[0].TargetID)
	})

	s.T().Run("sensitive grant is audited", func(t *testing.T) {
		s.audit.Clear()
		req := testutil.WithSession(t, s.authorizeRequest(t, "DEPENDENT", "D1", true, "VIEW_SENSITIVE"),
			"RP-1", "sid-1", domain.PersonaDelegate,
			s.delegateSet(permissions.DelegateDAA, permissions.DelegateRPR, permissions.DelegateROI))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(t, rr)
		assert.Len(t, s.audit.ListByAction(context.Background(), audit.EventSensitiveAccessGranted), 1)
	})

	s.T().Run("unknown action", func(t *testing.T) {
		req := testutil.WithSession(t, s.authorizeRequest(t, "DEPENDENT", "D1", false, "DELETE"),
			"RP-1", "sid-1", domain.PersonaDelegate, nil)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.T().Run("no principal", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, s.authorizeRequest(t, "MEMBER", "M1", false, "VIEW"))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})
}

func (s *HandlerSuite) TestDocumentUpload() {
	s.T().Run("member uploads to own record", func(t *testing.T) {
		req := testutil.WithSession(t, testutil.NewRequest(t, http.MethodPost, "/api/v1/members/M1/documents"),
			"M1", "sid-1", domain.PersonaSelf, nil)
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(t, rr, http.StatusAccepted)
		body := testutil.UnmarshalResponse[documentUploadResponse](t, rr)
		assert.Equal(t, policy.SelfAccessPolicyID, body.Decision.PolicyID)
	})

	s.T().Run("delegate uploads without ROI", func(t *testing.T) {
		req := testutil.WithSession(t, testutil.NewRequest(t, http.MethodPost, "/api/v1/members/D1/documents"),
			"RP-1", "sid-1", domain.PersonaDelegate, s.delegateSet(permissions.DelegateDAA, permissions.DelegateRPR))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(t, rr, http.StatusAccepted)
		body := testutil.UnmarshalResponse[documentUploadResponse](t, rr)
		assert.Equal(t, policy.DelegateDocumentUploadID, body.Decision.PolicyID)
	})

	s.T().Run("member cannot upload for another member", func(t *testing.T) {
		req := testutil.WithSession(t, testutil.NewRequest(t, http.MethodPost, "/api/v1/members/M2/documents"),
			"M1", "sid-1", domain.PersonaSelf, nil)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertErrorReason(t, rr, http.StatusForbidden, "POLICY_DENIED")
	})
}

func (s *HandlerSuite) TestPartnerMemberView() {
	s.T().Run("assigned operator sees eligibility", func(t *testing.T) {
		s.members.EXPECT().FetchEligibility(gomock.Any(), "ENT-9").
			Return(&enrichmentModels.Eligibility{Status: enrichmentModels.EligibilityActive}, nil)

		req := testutil.WithProxy(t, testutil.NewRequest(t, http.MethodGet, "/api/partner/v1/members/ENT-9"),
			"op-123", "partner-7", "ENT-9", domain.PersonaCaseWorker)
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(t, rr)
		body := testutil.UnmarshalResponse[partnerMemberResponse](t, rr)
		assert.Equal(t, "partner-7", body.ViewedBy)
		assert.Equal(t, enrichmentModels.EligibilityActive, body.Eligibility.Status)
	})

	s.T().Run("unassigned member is denied before lookup", func(t *testing.T) {
		req := testutil.WithProxy(t, testutil.NewRequest(t, http.MethodGet, "/api/partner/v1/members/ENT-1"),
			"op-123", "partner-7", "ENT-9", domain.PersonaCaseWorker)
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(t, rr, http.StatusForbidden)
		env := testutil.UnmarshalErrorResponse(t, rr)
		assert.Equal(t, policy.ProxyViewPolicyID, env.Details["policyId"])
	})

	s.T().Run("config specialist views any member", func(t *testing.T) {
		s.members.EXPECT().FetchEligibility(gomock.Any(), "ENT-1").
			Return(&enrichmentModels.Eligibility{Status: enrichmentModels.EligibilityInactive}, nil)

		req := testutil.WithProxy(t, testutil.NewRequest(t, http.MethodGet, "/api/partner/v1/members/ENT-1"),
			"op-9", "partner-7", "ENT-9", domain.PersonaConfigSpecialist)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(t, rr)
	})

	s.T().Run("missing member is 404", func(t *testing.T) {
		s.members.EXPECT().FetchEligibility(gomock.Any(), "ENT-9").
			Return(nil, upstream.NewError(upstream.NotFound, "eligibility", "not found", nil))

		req := testutil.WithProxy(t, testutil.NewRequest(t, http.MethodGet, "/api/partner/v1/members/ENT-9"),
			"op-123", "partner-7", "ENT-9", domain.PersonaCaseWorker)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	s.T().Run("backend outage is 503", func(t *testing.T) {
		s.members.EXPECT().FetchEligibility(gomock.Any(), "ENT-9").
			Return(nil, upstream.NewError(upstream.ProviderOutage, "eligibility", "status 502", nil))

		req := testutil.WithProxy(t, testutil.NewRequest(t, http.MethodGet, "/api/partner/v1/members/ENT-9"),
			"op-123", "partner-7", "ENT-9", domain.PersonaCaseWorker)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	})
}

// =============================================================================
// Admin
// =============================================================================

func adminRequest(t *testing.T, method, path string, body any) *http.Request {
	req := testutil.NewJSONRequest(t, method, path, body)
	req.Header.Set(admin.HeaderAdminToken, adminToken)
	req.Header.Set(HeaderAdminActor, "ops-1")
	return req
}

func (s *HandlerSuite) TestAdmin() {
	s.T().Run("token required", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodPost, "/admin/cache/evict-all"))
		testutil.AssertErrorReason(t, rr, http.StatusUnauthorized, "ADMIN_TOKEN_REQUIRED")
	})

	s.T().Run("force logout", func(t *testing.T) {
		s.admin.EXPECT().ForceLogout(gomock.Any(), "S1", "ops-1").Return("sid-9", nil)

		rr := testutil.DoRequest(s.router, adminRequest(t, http.MethodPost, "/admin/subjects/S1/force-logout", nil))

		testutil.AssertStatusOK(t, rr)
		body := testutil.UnmarshalResponse[forceLogoutResponse](t, rr)
		assert.True(t, body.Revoked)
	})

	s.T().Run("force logout without a session", func(t *testing.T) {
		s.admin.EXPECT().ForceLogout(gomock.Any(), "S2", "ops-1").
			Return("", dErrors.New(dErrors.CodeNotFound, "no active session for subject"))

		rr := testutil.DoRequest(s.router, adminRequest(t, http.MethodPost, "/admin/subjects/S2/force-logout", nil))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	s.T().Run("evict by subject and member", func(t *testing.T) {
		s.audit.Clear()
		s.cache.EXPECT().Evict(gomock.Any(), upstream.UserInfoKey("S1"))
		s.cache.EXPECT().Evict(gomock.Any(), upstream.PermissionsKey("S1"))
		s.cache.EXPECT().Evict(gomock.Any(), upstream.EligibilityKey("ENT-1"))

		rr := testutil.DoRequest(s.router, adminRequest(t, http.MethodPost, "/admin/cache/evict", map[string]any{
			"subjectIds":    []string{"S1"},
			"enterpriseIds": []string{"ENT-1"},
		}))

		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "evicted", float64(3))
		events := s.audit.ListByAction(context.Background(), audit.EventCacheEvicted)
		require.Len(t, events, 1)
		assert.Equal(t, "ops-1", events[0].ActorID)
	})

	s.T().Run("evict requires keys", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, adminRequest(t, http.MethodPost, "/admin/cache/evict", map[string]any{}))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.T().Run("evict all", func(t *testing.T) {
		s.cache.EXPECT().EvictAll(gomock.Any()).Return(4)

		rr := testutil.DoRequest(s.router, adminRequest(t, http.MethodPost, "/admin/cache/evict-all", nil))

		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "evicted", float64(4))
	})

	s.T().Run("cache disabled", func(t *testing.T) {
		router := s.newRouter(nil)
		rr := testutil.DoRequest(router, adminRequest(t, http.MethodPost, "/admin/cache/evict-all", nil))
		testutil.AssertErrorReason(t, rr, http.StatusServiceUnavailable, "CACHE_DISABLED")
	})
}

// =============================================================================
// Health and routing
// =============================================================================

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) Health(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := NewHealthHandler(map[string]Checker{
			"redis": checkerFunc(func(context.Context) error { return nil }),
			"none":  nil,
		})
		rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/health"))

		testutil.AssertStatusOK(t, rr)
		body := testutil.UnmarshalResponse[healthResponse](t, rr)
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, map[string]string{"redis": "ok"}, body.Checks)
	})

	t.Run("degraded", func(t *testing.T) {
		h := NewHealthHandler(map[string]Checker{
			"redis": checkerFunc(func(context.Context) error { return errors.New("dial tcp: refused") }),
		})
		rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/health"))

		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
		testutil.AssertJSONContains(t, rr, "status", "degraded")
	})
}

func (s *HandlerSuite) TestRouting() {
	s.T().Run("unknown route", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/nope"))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	s.T().Run("metrics exposed", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
		testutil.AssertStatusOK(t, rr)
	})

	s.T().Run("correlation id echoed", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/health")
		req.Header.Set("X-Correlation-Id", "corr-123")
		rr := testutil.DoRequest(s.router, req)
		assert.Equal(t, "corr-123", rr.Header().Get("X-Correlation-Id"))
	})
}
