package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"healthbff/internal/auth/device"
	"healthbff/internal/auth/resolver"
	"healthbff/internal/enrichment"
	enrichmentModels "healthbff/internal/enrichment/models"
	"healthbff/internal/events"
	"healthbff/internal/permissions"
	"healthbff/internal/policy"
	"healthbff/internal/session/service"
	"healthbff/internal/session/store"
	"healthbff/pkg/platform/sentinel"
	"healthbff/pkg/testutil"
)

const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"

// backends is an in-process stand-in for the three member-data services.
type backends struct {
	users   map[string]*enrichmentModels.UserInfo
	elig    map[string]*enrichmentModels.Eligibility
	members map[string][]permissions.DependentAccess
}

func (b *backends) FetchUserInfo(_ context.Context, subjectID string) (*enrichmentModels.UserInfo, error) {
	if u, ok := b.users[subjectID]; ok {
		return u, nil
	}
	return nil, sentinel.ErrNotFound
}

func (b *backends) FetchEligibility(_ context.Context, enterpriseID string) (*enrichmentModels.Eligibility, error) {
	if e, ok := b.elig[enterpriseID]; ok {
		return e, nil
	}
	return enrichmentModels.UnknownEligibility(), nil
}

func (b *backends) FetchManagedMembers(_ context.Context, subjectID string) ([]permissions.DependentAccess, error) {
	return b.members[subjectID], nil
}

// =============================================================================
// Gateway flow suite
// =============================================================================
// Drives the full middleware chain with the real resolver, session manager,
// enrichment orchestrator and policy engine on in-memory stores.

type GatewayFlowSuite struct {
	suite.Suite
	now    time.Time
	router http.Handler
}

func TestGatewayFlowSuite(t *testing.T) {
	suite.Run(t, new(GatewayFlowSuite))
}

func (s *GatewayFlowSuite) SetupTest() {
	s.now = time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }
	logger := slog.New(slog.DiscardHandler)
	born := permissions.NewDate(1980, time.March, 4)
	teen := permissions.NewDate(2013, time.January, 9)

	data := &backends{
		users: map[string]*enrichmentModels.UserInfo{
			"RP-1":   {SubjectID: "RP-1", EnterpriseID: "ENT-RP", Birthdate: &born, IsResponsibleParty: true},
			"SELF-1": {SubjectID: "SELF-1", EnterpriseID: "ENT-SELF", Birthdate: &born},
			"KID-1":  {SubjectID: "KID-1", EnterpriseID: "ENT-KID", Birthdate: &teen},
		},
		elig: map[string]*enrichmentModels.Eligibility{
			"ENT-SELF": {Status: enrichmentModels.EligibilityActive, Plans: []enrichmentModels.Plan{{PlanID: "P1"}}},
			"ENT-9":    {Status: enrichmentModels.EligibilityActive},
		},
		members: map[string][]permissions.DependentAccess{
			"RP-1": {permissions.NewDependentAccess("D1", "Riley", "child", grants(permissions.DelegateDAA, permissions.DelegateROI))},
		},
	}

	dev := device.NewService(true)
	orch, err := enrichment.New(data, data, data, nil, enrichment.WithClock(clock), enrichment.WithLogger(logger))
	s.Require().NoError(err)
	manager := service.New(
		store.NewInMemory(store.WithClock(clock)),
		events.NewMemoryHub().Bus("bff-test"),
		dev,
		service.WithClock(clock),
		service.WithLogger(logger),
		service.WithPermissionRefresher(orch),
	)
	orch.SetSessionCreator(manager)

	classifier, err := resolver.NewClassifier(resolver.Patterns{
		Public:      []string{"/health", "/metrics", "/auth/login", "/admin/**"},
		DualAuth:    []string{"/api/v1/session", "/api/v1/authorize"},
		SessionOnly: []string{"/api/v1/**"},
		ProxyOnly:   []string{"/api/partner/**"},
	})
	s.Require().NoError(err)
	res := resolver.New(manager, dev, classifier, resolver.WithLogger(logger))

	s.router = NewRouter(RouterConfig{
		Logger:        logger,
		Authenticator: res,
		Device:        dev,
		Clock:         clock,
	}, Handlers{
		Health: NewHealthHandler(nil),
		Auth:   NewAuthHandler(orch, idTokenVerifier(s.T()), manager, dev, res.Cookie(), logger),
		Access: NewAccessHandler(policy.NewEngine(policy.DefaultPolicies()...), data, logger, nil, nil),
	})
}

func (s *GatewayFlowSuite) browser(req *http.Request) *http.Request {
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept-Language", "en-US")
	return req
}

func (s *GatewayFlowSuite) login(t *testing.T, subject string) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.DoRequest(s.router, s.browser(testutil.NewJSONRequest(t, http.MethodPost, "/auth/login",
		map[string]any{"idToken": signIDToken(t, subject, "", s.now)})))
}

func (s *GatewayFlowSuite) loginAs(t *testing.T, subject string) *http.Cookie {
	t.Helper()
	rr := s.login(t, subject)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return sessionCookie(t, rr.Result())
}

func (s *GatewayFlowSuite) withCookie(req *http.Request, c *http.Cookie) *http.Request {
	req.AddCookie(c)
	return s.browser(req)
}

func partnerHeaders(req *http.Request, memberID string) *http.Request {
	req.Header.Set("X-Client-Id", "partner-7")
	req.Header.Set("X-Enterprise-Id", "ENT-9")
	req.Header.Set("X-Logged-In-Member-Id-Value", memberID)
	req.Header.Set("X-Logged-In-Member-Id-Type", "OHID")
	req.Header.Set("X-Logged-In-Member-Persona", "CaseWorker")
	return req
}

func (s *GatewayFlowSuite) TestDelegateSessionFlow() {
	t := s.T()
	cookie := s.loginAs(t, "RP-1")

	testutil.Given(t, "a delegate session", func(t *testing.T) {
		testutil.When(t, "the session is inspected", func(t *testing.T) {
			rr := testutil.DoRequest(s.router, s.withCookie(testutil.NewRequest(t, http.MethodGet, "/api/v1/session"), cookie))
			testutil.Then(t, "the dependent and its grants are listed", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				body := testutil.UnmarshalResponse[sessionResponse](t, rr)
				assert.Equal(t, "Delegate", string(body.Persona))
				require.Len(t, body.Dependents, 1)
				assert.Equal(t, []permissions.DelegateType{permissions.DelegateDAA, permissions.DelegateROI}, body.Dependents[0].ValidTypes)
			})
		})

		testutil.When(t, "sensitive data is requested without RPR", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/api/v1/authorize", map[string]any{
				"resource": map[string]any{"type": "DEPENDENT", "id": "D1", "sensitive": true},
				"action":   "VIEW_SENSITIVE",
			})
			rr := testutil.DoRequest(s.router, s.withCookie(req, cookie))
			testutil.Then(t, "the policy denies and names the missing grant", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusForbidden)
				env := testutil.UnmarshalErrorResponse(t, rr)
				assert.Equal(t, []any{"RPR"}, env.Details["missingAttributes"])
			})
		})

		testutil.When(t, "a partner-only route is called", func(t *testing.T) {
			rr := testutil.DoRequest(s.router, s.withCookie(testutil.NewRequest(t, http.MethodGet, "/api/partner/v1/members/ENT-9"), cookie))
			testutil.Then(t, "partner authentication is required", func(t *testing.T) {
				testutil.AssertErrorReason(t, rr, http.StatusForbidden, resolver.ReasonProxyRequired)
			})
		})

		testutil.When(t, "the member logs out", func(t *testing.T) {
			rr := testutil.DoRequest(s.router, s.withCookie(testutil.NewRequest(t, http.MethodPost, "/api/v1/auth/logout"), cookie))
			testutil.AssertStatus(t, rr, http.StatusNoContent)

			testutil.Then(t, "the old cookie no longer authenticates", func(t *testing.T) {
				rr := testutil.DoRequest(s.router, s.withCookie(testutil.NewRequest(t, http.MethodGet, "/api/v1/session"), cookie))
				testutil.AssertErrorReason(t, rr, http.StatusUnauthorized, resolver.ReasonAuthRequired)
			})
		})
	})
}

func (s *GatewayFlowSuite) TestSelfMemberUploadsOwnDocument() {
	t := s.T()
	cookie := s.loginAs(t, "SELF-1")

	rr := testutil.DoRequest(s.router, s.withCookie(testutil.NewRequest(t, http.MethodPost, "/api/v1/members/ENT-SELF/documents"), cookie))
	testutil.AssertStatus(t, rr, http.StatusAccepted)

	rr = testutil.DoRequest(s.router, s.withCookie(testutil.NewRequest(t, http.MethodPost, "/api/v1/members/ENT-OTHER/documents"), cookie))
	testutil.AssertErrorReason(t, rr, http.StatusForbidden, "POLICY_DENIED")
}

func (s *GatewayFlowSuite) TestLoginRejections() {
	t := s.T()
	t.Run("under minimum age", func(t *testing.T) {
		testutil.AssertErrorReason(t, s.login(t, "KID-1"), http.StatusForbidden, enrichment.ReasonAgeRestricted)
	})
	t.Run("unknown member", func(t *testing.T) {
		testutil.AssertErrorReason(t, s.login(t, "nobody"), http.StatusForbidden, enrichment.ReasonNoAccess)
	})
}

func (s *GatewayFlowSuite) TestLoginRequiresVerifiedIdentity() {
	t := s.T()
	victim := s.loginAs(t, "RP-1")

	testutil.Given(t, "an anonymous caller naming another member", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, s.browser(testutil.NewJSONRequest(t, http.MethodPost, "/auth/login",
			map[string]any{"subjectId": "RP-1", "idToken": "not-a-token"})))

		testutil.Then(t, "no session is issued", func(t *testing.T) {
			testutil.AssertStatus(t, rr, http.StatusUnauthorized)
			assert.Empty(t, rr.Result().Cookies())
		})

		testutil.Then(t, "the member's own session is not superseded", func(t *testing.T) {
			rr := testutil.DoRequest(s.router, s.withCookie(testutil.NewRequest(t, http.MethodGet, "/api/v1/session"), victim))
			testutil.AssertStatusOK(t, rr)
			testutil.AssertJSONContains(t, rr, "subjectId", "RP-1")
		})
	})
}

func (s *GatewayFlowSuite) TestPartnerFlow() {
	t := s.T()
	t.Run("assigned member view", func(t *testing.T) {
		req := partnerHeaders(testutil.NewRequest(t, http.MethodGet, "/api/partner/v1/members/ENT-9"), "op-123")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(t, rr)
	})
	t.Run("short operator id", func(t *testing.T) {
		req := partnerHeaders(testutil.NewRequest(t, http.MethodGet, "/api/partner/v1/members/ENT-9"), "ab")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
		env := testutil.UnmarshalErrorResponse(t, rr)
		assert.Equal(t, resolver.ReasonHeaderTooShort, env.Code)
		assert.Contains(t, env.Message, "minimum length")
	})
	t.Run("session-only route", func(t *testing.T) {
		req := partnerHeaders(testutil.NewRequest(t, http.MethodPost, "/api/v1/auth/logout"), "op-123")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertErrorReason(t, rr, http.StatusForbidden, resolver.ReasonSessionRequired)
	})
	t.Run("dual-auth route", func(t *testing.T) {
		req := partnerHeaders(testutil.NewRequest(t, http.MethodGet, "/api/v1/session"), "op-123")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "authType", "PROXY")
	})
}

func (s *GatewayFlowSuite) TestPublicRoutesNeedNoCredentials() {
	rr := testutil.DoRequest(s.router, httptest.NewRequest(http.MethodGet, "/health", nil))
	testutil.AssertStatusOK(s.T(), rr)
}
