// Package resolver turns an inbound request into a principal.AuthContext,
// from either the session cookie or the partner proxy headers, and enforces
// the path's authentication category.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"healthbff/internal/auth/device"
	"healthbff/internal/permissions"
	"healthbff/internal/platform/metrics"
	"healthbff/internal/principal"
	sessionModels "healthbff/internal/session/models"
	"healthbff/pkg/domain"
	dErrors "healthbff/pkg/domain-errors"
	"healthbff/pkg/platform/audit"
	"healthbff/pkg/platform/httputil"
	"healthbff/pkg/platform/sentinel"
	"healthbff/pkg/requestcontext"
)

const tracerName = "healthbff/internal/auth/resolver"

// Reason codes on rejected requests.
const (
	ReasonAuthRequired    = "AUTH_REQUIRED"
	ReasonHeaderMissing   = "HEADER_MISSING"
	ReasonHeaderInvalid   = "HEADER_INVALID"
	ReasonHeaderTooShort  = "HEADER_TOO_SHORT"
	ReasonBindingMismatch = "SESSION_BINDING_MISMATCH"
	ReasonSessionRequired = "SESSION_REQUIRED"
	ReasonProxyRequired   = "PROXY_REQUIRED"
)

// DefaultMinMemberIDLength is the shortest operator id accepted.
const DefaultMinMemberIDLength = 3

// SessionService is the part of the session manager the resolver uses.
type SessionService interface {
	Validate(ctx context.Context, id string, client device.ClientInfo) (*sessionModels.Session, error)
	CurrentPermissions(ctx context.Context, sess *sessionModels.Session) *permissions.PermissionSet
	NeedsRotation(sess *sessionModels.Session, now time.Time) bool
	Rotate(ctx context.Context, oldID string, client device.ClientInfo) (string, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// HeaderNames are the inbound header names; all are configurable.
type HeaderNames struct {
	AuthType      string
	ClientID      string
	EnterpriseID  string
	MemberIDValue string
	MemberIDType  string
	MemberPersona string
}

func DefaultHeaderNames() HeaderNames {
	return HeaderNames{
		AuthType:      "X-Auth-Type",
		ClientID:      "X-Client-Id",
		EnterpriseID:  "X-Enterprise-Id",
		MemberIDValue: "X-Logged-In-Member-Id-Value",
		MemberIDType:  "X-Logged-In-Member-Id-Type",
		MemberPersona: "X-Logged-In-Member-Persona",
	}
}

// CookieConfig describes the session cookie as issued and re-issued.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Name:     "BFF_SESSION",
		Path:     "/",
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   30 * time.Minute,
	}
}

// Cookie builds the session cookie carrying id.
func (c CookieConfig) Cookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    id,
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   int(c.MaxAge.Seconds()),
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: c.SameSite,
	}
}

// Expired builds a cookie that clears the session cookie.
func (c CookieConfig) Expired() *http.Cookie {
	ck := c.Cookie("")
	ck.MaxAge = -1
	return ck
}

type Config struct {
	Headers           HeaderNames
	Cookie            CookieConfig
	MinMemberIDLength int
	// Rotate enables periodic session id rotation on HSID requests.
	Rotate bool
}

func DefaultConfig() Config {
	return Config{
		Headers:           DefaultHeaderNames(),
		Cookie:            DefaultCookieConfig(),
		MinMemberIDLength: DefaultMinMemberIDLength,
		Rotate:            true,
	}
}

// Resolution records how a context was resolved, for the middleware.
type Resolution struct {
	// Session is the validated record for HSID contexts.
	Session *sessionModels.Session
	// PresentedID is the cookie value; it differs from Session.ID when the
	// cookie named a rotated-away session.
	PresentedID string
	Client      device.ClientInfo
}

type Resolver struct {
	sessions   SessionService
	device     *device.Service
	classifier *Classifier
	cfg        Config

	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tracer         trace.Tracer
}

type Option func(*Resolver)

func WithConfig(cfg Config) Option {
	return func(r *Resolver) { r.cfg = cfg }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(r *Resolver) { r.auditPublisher = p }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Resolver) { r.tracer = tp.Tracer(tracerName) }
}

func New(sessions SessionService, dev *device.Service, classifier *Classifier, opts ...Option) *Resolver {
	r := &Resolver{
		sessions:   sessions,
		device:     dev,
		classifier: classifier,
		cfg:        DefaultConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cfg.MinMemberIDLength <= 0 {
		r.cfg.MinMemberIDLength = DefaultMinMemberIDLength
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	return r
}

// Cookie exposes the cookie settings for handlers that issue or clear it.
func (res *Resolver) Cookie() CookieConfig { return res.cfg.Cookie }

// Resolve tries the session cookie, then the proxy headers. A nil context
// with a nil error means the request is unauthenticated. Errors are
// terminal for the request.
func (res *Resolver) Resolve(r *http.Request) (*principal.AuthContext, *Resolution, error) {
	ctx := r.Context()
	now := requestcontext.Now(ctx)
	client := res.device.ClientInfoFromRequest(r)

	ac, resolution, err := res.resolveSession(ctx, r, client, now)
	if err != nil || ac != nil {
		return ac, resolution, err
	}
	ac, err = res.resolveProxy(r, now)
	if err != nil || ac == nil {
		return nil, nil, err
	}
	return ac, &Resolution{Client: client}, nil
}

func (res *Resolver) resolveSession(ctx context.Context, r *http.Request, client device.ClientInfo, now time.Time) (*principal.AuthContext, *Resolution, error) {
	cookie, err := r.Cookie(res.cfg.Cookie.Name)
	if err != nil || !domain.IsValidSessionID(cookie.Value) {
		return nil, nil, nil
	}

	sess, err := res.sessions.Validate(ctx, cookie.Value, client)
	switch {
	case err == nil:
	case dErrors.ReasonOf(err) == ReasonBindingMismatch:
		return nil, nil, err
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, nil, nil
	default:
		return nil, nil, err
	}

	ac, err := principal.NewSessionContext(principal.SessionParams{
		SubjectID:           sess.SubjectID,
		EffectiveTargetID:   sess.EffectiveTargetID(),
		Persona:             sess.Persona,
		SessionID:           sess.ID,
		Permissions:         res.sessions.CurrentPermissions(ctx, sess),
		ActiveDelegateTypes: sess.DelegateTypes,
		ResolvedAt:          now,
	})
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "session is incomplete").WithReason(ReasonAuthRequired)
	}
	return ac, &Resolution{Session: sess, PresentedID: cookie.Value, Client: client}, nil
}

// isProxyRequest is the partner detector: an explicit proxy auth type or
// any client id.
func (res *Resolver) isProxyRequest(r *http.Request) bool {
	h := res.cfg.Headers
	return strings.EqualFold(strings.TrimSpace(r.Header.Get(h.AuthType)), "proxy") ||
		strings.TrimSpace(r.Header.Get(h.ClientID)) != ""
}

func (res *Resolver) resolveProxy(r *http.Request, now time.Time) (*principal.AuthContext, error) {
	if !res.isProxyRequest(r) {
		return nil, nil
	}
	h := res.cfg.Headers
	target := strings.TrimSpace(r.Header.Get(h.EnterpriseID))
	if target == "" {
		return nil, headerError(ReasonHeaderMissing, "required header missing: "+h.EnterpriseID)
	}
	memberID := strings.TrimSpace(r.Header.Get(h.MemberIDValue))
	if memberID == "" {
		return nil, headerError(ReasonHeaderMissing, "required header missing: "+h.MemberIDValue)
	}
	if utf8.RuneCountInString(memberID) < res.cfg.MinMemberIDLength {
		return nil, headerError(ReasonHeaderTooShort, h.MemberIDValue+" is below the minimum length")
	}
	idType, ok := domain.ParseIDType(strings.TrimSpace(r.Header.Get(h.MemberIDType)))
	if !ok {
		return nil, headerError(ReasonHeaderInvalid, "invalid header value: "+h.MemberIDType)
	}
	persona, ok := domain.ParseProxyPersona(strings.TrimSpace(r.Header.Get(h.MemberPersona)))
	if !ok {
		return nil, headerError(ReasonHeaderInvalid, "invalid header value: "+h.MemberPersona)
	}

	clientID := strings.TrimSpace(r.Header.Get(h.ClientID))
	partnerID := clientID
	if partnerID == "" {
		partnerID = memberID
	}
	ac, err := principal.NewProxyContext(principal.ProxyParams{
		SubjectID:         memberID,
		EffectiveTargetID: target,
		Persona:           persona,
		PartnerID:         partnerID,
		ClientID:          clientID,
		IDType:            idType,
		ResolvedAt:        now,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid proxy context").WithReason(ReasonHeaderInvalid)
	}
	return ac, nil
}

func headerError(reason, msg string) error {
	return dErrors.New(dErrors.CodeUnauthorized, msg).WithReason(reason)
}

// Middleware enforces the path category. Resolved contexts are attached to
// the request context; rejected requests get the error envelope.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		category := res.classifier.Classify(r.URL.Path)
		if category == CategoryPublic {
			next.ServeHTTP(w, r)
			return
		}

		ctx, span := res.tracer.Start(r.Context(), "auth.Resolve",
			trace.WithAttributes(attribute.String("category", string(category))))
		defer span.End()
		r = r.WithContext(ctx)

		ac, resolution, err := res.Resolve(r)
		if err != nil {
			res.fail(w, r, span, "", err)
			return
		}
		if ac == nil {
			res.fail(w, r, span, "", dErrors.New(dErrors.CodeUnauthorized, "authentication required").WithReason(ReasonAuthRequired))
			return
		}
		span.SetAttributes(attribute.String("auth_type", string(ac.AuthType)))
		if !category.Accepts(ac.AuthType) {
			reason, msg := ReasonProxyRequired, "this endpoint requires partner authentication"
			if category == CategorySessionOnly {
				reason, msg = ReasonSessionRequired, "this endpoint requires a member session"
			}
			res.fail(w, r, span, ac.AuthType, dErrors.New(dErrors.CodeForbidden, msg).WithReason(reason))
			return
		}

		if ac.IsHSID() {
			ac = res.maybeRotate(ctx, w, ac, resolution)
		}
		res.metrics.IncAuthResolution(string(ac.AuthType), "resolved")
		next.ServeHTTP(w, r.WithContext(principal.WithAuthContext(ctx, ac)))
	})
}

// maybeRotate re-issues the cookie when the presented id was rotated away,
// and rotates the session when it is due. Rotation failures keep the
// current id.
func (res *Resolver) maybeRotate(ctx context.Context, w http.ResponseWriter, ac *principal.AuthContext, resolution *Resolution) *principal.AuthContext {
	current := ac.SessionID
	if res.cfg.Rotate && res.sessions.NeedsRotation(resolution.Session, ac.ResolvedAt) {
		newID, err := res.sessions.Rotate(ctx, current, resolution.Client)
		if err != nil {
			res.logger.WarnContext(ctx, "session rotation failed, continuing on current session",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		} else if newID != "" {
			current = newID
		}
	}
	if current != resolution.PresentedID {
		http.SetCookie(w, res.cfg.Cookie.Cookie(current))
	}
	if current != ac.SessionID {
		return ac.WithSessionID(current)
	}
	return ac
}

func (res *Resolver) fail(w http.ResponseWriter, r *http.Request, span trace.Span, authType principal.AuthType, err error) {
	ctx := r.Context()
	reason := dErrors.ReasonOf(err)
	if reason == "" {
		reason = "ERROR"
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	res.metrics.IncAuthResolution(string(authType), strings.ToLower(reason))
	res.logger.InfoContext(ctx, "request rejected by auth resolver",
		"reason", reason,
		"path", r.URL.Path,
		"request_id", requestcontext.RequestID(ctx),
	)
	if res.auditPublisher != nil {
		_ = res.auditPublisher.Emit(ctx, audit.Event{
			Action:    string(audit.EventAuthFailed),
			AuthType:  string(authType),
			Reason:    reason,
			Decision:  "deny",
			IP:        requestcontext.ClientIP(ctx),
			RequestID: requestcontext.RequestID(ctx),
			Severity:  audit.SeverityWarning,
		})
	}
	httputil.WriteError(w, r, err)
}
