package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"healthbff/internal/auth/device"
	"healthbff/internal/auth/resolver"
	"healthbff/internal/enrichment"
	jwttoken "healthbff/internal/jwt_token"
	"healthbff/internal/permissions"
	"healthbff/internal/principal"
	sessionModels "healthbff/internal/session/models"
	"healthbff/pkg/domain"
	dErrors "healthbff/pkg/domain-errors"
	"healthbff/pkg/platform/httputil"
	"healthbff/pkg/requestcontext"
)

const maxBodyBytes = 1 << 20

const (
	ReasonTokenMissing    = "TOKEN_MISSING"
	ReasonSubjectMismatch = "SUBJECT_MISMATCH"
)

// TokenVerifier checks the IdP's ID token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*jwttoken.Claims, error)
}

// LoginService completes a login for an identity asserted by the IdP.
type LoginService interface {
	Login(ctx context.Context, req enrichment.LoginRequest) (*enrichment.LoginResult, error)
}

// SessionService is the part of the session manager the auth routes use.
type SessionService interface {
	Validate(ctx context.Context, id string, client device.ClientInfo) (*sessionModels.Session, error)
	Logout(ctx context.Context, id string) error
	RefreshPermissions(ctx context.Context, sess *sessionModels.Session) *permissions.PermissionSet
}

// AuthHandler owns login, logout and session introspection.
type AuthHandler struct {
	login    LoginService
	tokens   TokenVerifier
	sessions SessionService
	device   *device.Service
	cookie   resolver.CookieConfig
	logger   *slog.Logger
}

func NewAuthHandler(login LoginService, tokens TokenVerifier, sessions SessionService, dev *device.Service, cookie resolver.CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		login:    login,
		tokens:   tokens,
		sessions: sessions,
		device:   dev,
		cookie:   cookie,
		logger:   logger,
	}
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/api/v1/auth/logout", h.handleLogout)
	r.Get("/api/v1/session", h.handleSession)
	r.Post("/api/v1/session/permissions/refresh", h.handleRefreshPermissions)
}

// loginRequest is posted by the browser after the IdP callback. The subject
// always comes from the verified ID token; subjectId, when sent, must match.
type loginRequest struct {
	SubjectID    string `json:"subjectId"`
	Email        string `json:"email"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	IDToken      string `json:"idToken"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expiresIn"`
}

type loginResponse struct {
	SubjectID         string                     `json:"subjectId"`
	Persona           domain.Persona             `json:"persona"`
	DelegateTypes     []permissions.DelegateType `json:"delegateTypes,omitempty"`
	ManagedMemberIDs  []string                   `json:"managedMemberIds,omitempty"`
	EligibilityStatus string                     `json:"eligibilityStatus,omitempty"`
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid login request",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, r, err)
		return
	}
	req.IDToken = strings.TrimSpace(req.IDToken)
	if req.IDToken == "" {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeUnauthorized, "idToken is required").WithReason(ReasonTokenMissing))
		return
	}
	claims, err := h.tokens.Verify(ctx, req.IDToken)
	if err != nil {
		h.logger.WarnContext(ctx, "id token rejected",
			"request_id", requestID,
			"reason", dErrors.ReasonOf(err),
			"error", err.Error(),
		)
		httputil.WriteError(w, r, err)
		return
	}
	if claimed := strings.TrimSpace(req.SubjectID); claimed != "" && claimed != claims.Subject {
		h.logger.WarnContext(ctx, "login subject does not match id token",
			"request_id", requestID,
			"subject_id", claims.Subject,
		)
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeUnauthorized, "subjectId does not match the id token").WithReason(ReasonSubjectMismatch))
		return
	}
	email := claims.Email
	if email == "" {
		email = strings.TrimSpace(req.Email)
	}

	tokens := sessionModels.Tokens{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		IDToken:      req.IDToken,
	}
	if req.ExpiresIn > 0 {
		tokens.ExpiresAt = requestcontext.Now(ctx).Add(time.Duration(req.ExpiresIn) * time.Second)
	}

	res, err := h.login.Login(ctx, enrichment.LoginRequest{
		SubjectID: claims.Subject,
		Email:     email,
		Tokens:    tokens,
		Client:    h.device.ClientInfoFromRequest(r),
	})
	if err != nil {
		h.logger.InfoContext(ctx, "login rejected",
			"request_id", requestID,
			"reason", dErrors.ReasonOf(err),
		)
		httputil.WriteError(w, r, err)
		return
	}

	http.SetCookie(w, h.cookie.Cookie(res.Session.ID))
	resp := loginResponse{
		SubjectID:        res.Session.SubjectID,
		Persona:          res.Persona,
		DelegateTypes:    res.DelegateTypes,
		ManagedMemberIDs: res.Session.ManagedMemberIDs,
	}
	if res.Eligibility != nil {
		resp.EligibilityStatus = string(res.Eligibility.Status)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac, ok := requireAuthContext(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Logout(ctx, ac.SessionID); err != nil {
		h.logger.ErrorContext(ctx, "logout failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, r, err)
		return
	}
	http.SetCookie(w, h.cookie.Expired())
	w.WriteHeader(http.StatusNoContent)
}

type dependentView struct {
	DependentID        string                     `json:"dependentId"`
	DependentName      string                     `json:"dependentName,omitempty"`
	Relationship       string                     `json:"relationship,omitempty"`
	ValidTypes         []permissions.DelegateType `json:"validTypes"`
	CanView            bool                       `json:"canView"`
	CanAccessSensitive bool                       `json:"canAccessSensitive"`
}

type sessionResponse struct {
	AuthType          principal.AuthType         `json:"authType"`
	SubjectID         string                     `json:"subjectId"`
	EffectiveTargetID string                     `json:"effectiveTargetId"`
	Persona           domain.Persona             `json:"persona"`
	PartnerID         string                     `json:"partnerId,omitempty"`
	DelegateTypes     []permissions.DelegateType `json:"delegateTypes,omitempty"`
	Dependents        []dependentView            `json:"dependents,omitempty"`
	ResolvedAt        time.Time                  `json:"resolvedAt"`
}

func (h *AuthHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	ac, ok := requireAuthContext(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sessionResponse{
		AuthType:          ac.AuthType,
		SubjectID:         ac.SubjectID,
		EffectiveTargetID: ac.EffectiveTargetID,
		Persona:           ac.Persona,
		PartnerID:         ac.PartnerID,
		DelegateTypes:     ac.ActiveDelegateTypes,
		Dependents:        dependentViews(ac.Permissions, ac.ResolvedAt),
		ResolvedAt:        ac.ResolvedAt,
	})
}

type permissionsResponse struct {
	Dependents []dependentView `json:"dependents"`
	FetchedAt  time.Time       `json:"fetchedAt"`
	ExpiresAt  time.Time       `json:"expiresAt"`
}

func (h *AuthHandler) handleRefreshPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac, ok := requireAuthContext(w, r)
	if !ok {
		return
	}
	sess, err := h.sessions.Validate(ctx, ac.SessionID, h.device.ClientInfoFromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	set := h.sessions.RefreshPermissions(ctx, sess)
	h.logger.InfoContext(ctx, "permissions refreshed",
		"request_id", requestcontext.RequestID(ctx),
		"subject_id", sess.SubjectID,
		"dependents", len(set.Dependents),
	)
	views := dependentViews(set, requestcontext.Now(ctx))
	if views == nil {
		views = []dependentView{}
	}
	httputil.WriteJSON(w, http.StatusOK, permissionsResponse{
		Dependents: views,
		FetchedAt:  set.FetchedAt,
		ExpiresAt:  set.ExpiresAt,
	})
}

func dependentViews(set *permissions.PermissionSet, now time.Time) []dependentView {
	if set == nil || len(set.Dependents) == 0 {
		return nil
	}
	out := make([]dependentView, 0, len(set.Dependents))
	for _, d := range set.Dependents {
		valid := d.ValidTypes(now)
		if valid == nil {
			valid = []permissions.DelegateType{}
		}
		out = append(out, dependentView{
			DependentID:        d.DependentID,
			DependentName:      d.DependentName,
			Relationship:       d.Relationship,
			ValidTypes:         valid,
			CanView:            d.CanView(now),
			CanAccessSensitive: d.CanAccessSensitive(now),
		})
	}
	return out
}

// requireAuthContext writes 401 when the resolver attached no principal.
func requireAuthContext(w http.ResponseWriter, r *http.Request) (*principal.AuthContext, bool) {
	ac, ok := principal.FromContext(r.Context())
	if !ok || ac == nil {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeUnauthorized, "authentication required").WithReason(resolver.ReasonAuthRequired))
		return nil, false
	}
	return ac, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
