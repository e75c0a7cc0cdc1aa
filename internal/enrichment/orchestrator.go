// Package enrichment decides, once per login, whether a member may use the
// gateway and under which persona, then creates the session.
package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"healthbff/internal/auth/device"
	"healthbff/internal/enrichment/models"
	"healthbff/internal/permissions"
	"healthbff/internal/platform/metrics"
	sessionModels "healthbff/internal/session/models"
	"healthbff/internal/session/service"
	"healthbff/pkg/domain"
	dErrors "healthbff/pkg/domain-errors"
	"healthbff/pkg/platform/audit"
	"healthbff/pkg/platform/sentinel"
	"healthbff/pkg/requestcontext"
)

const tracerName = "healthbff/internal/enrichment"

// Rejection reasons returned to the login caller.
const (
	ReasonNoAccess            = "NO_ACCESS"
	ReasonAgeRestricted       = "AGE_RESTRICTED"
	ReasonIdentityUnavailable = "IDENTITY_UNAVAILABLE"
)

type UserInfoFetcher interface {
	FetchUserInfo(ctx context.Context, subjectID string) (*models.UserInfo, error)
}

type EligibilityFetcher interface {
	FetchEligibility(ctx context.Context, enterpriseID string) (*models.Eligibility, error)
}

type PermissionsFetcher interface {
	FetchManagedMembers(ctx context.Context, subjectID string) ([]permissions.DependentAccess, error)
}

// SessionCreator persists the session once the login is accepted.
type SessionCreator interface {
	Create(ctx context.Context, in service.CreateInput) (*sessionModels.Session, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Config struct {
	MinimumAge int
	// AdultAge gates both the managed-member lookup and the delegate persona.
	AdultAge       int
	LoginTimeout   time.Duration
	PermissionsTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinimumAge:     13,
		AdultAge:       18,
		LoginTimeout:   5 * time.Second,
		PermissionsTTL: permissions.DefaultTTL,
	}
}

type Orchestrator struct {
	userInfo    UserInfoFetcher
	eligibility EligibilityFetcher
	members     PermissionsFetcher
	sessions    SessionCreator
	cfg         Config

	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tracer         trace.Tracer
	now            func() time.Time
}

type Option func(*Orchestrator)

func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(o *Orchestrator) { o.auditPublisher = p }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) { o.tracer = tp.Tracer(tracerName) }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(userInfo UserInfoFetcher, eligibility EligibilityFetcher, members PermissionsFetcher, sessions SessionCreator, opts ...Option) (*Orchestrator, error) {
	if userInfo == nil || eligibility == nil || members == nil {
		return nil, errors.New("all three fetchers are required")
	}
	o := &Orchestrator{
		userInfo:    userInfo,
		eligibility: eligibility,
		members:     members,
		sessions:    sessions,
		cfg:         DefaultConfig(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	return o, nil
}

// SetSessionCreator breaks the construction cycle with the session manager,
// which needs this orchestrator as its permission refresher.
func (o *Orchestrator) SetSessionCreator(sessions SessionCreator) {
	o.sessions = sessions
}

// LoginRequest is an identity already asserted by the identity provider.
type LoginRequest struct {
	SubjectID string
	Email     string
	Tokens    sessionModels.Tokens
	Client    device.ClientInfo
}

type LoginResult struct {
	Session       *sessionModels.Session
	Persona       domain.Persona
	DelegateTypes []permissions.DelegateType
	Eligibility   *models.Eligibility
}

// Login enriches the subject and creates a session, or rejects the login
// with NO_ACCESS, AGE_RESTRICTED, or IDENTITY_UNAVAILABLE.
func (o *Orchestrator) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	ctx, span := o.tracer.Start(ctx, "enrichment.Login",
		trace.WithAttributes(attribute.String("subject_id", req.SubjectID)))
	defer span.End()

	if strings.TrimSpace(req.SubjectID) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "subject id required")
	}
	if o.sessions == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "session creator not configured")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.LoginTimeout)
	defer cancel()
	now := o.now()

	info, err := o.fetchUserInfo(fetchCtx, req.SubjectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, o.reject(ctx, span, req.SubjectID,
				dErrors.Wrap(err, dErrors.CodeForbidden, "member not found").WithReason(ReasonNoAccess))
		}
		return nil, o.reject(ctx, span, req.SubjectID,
			dErrors.Wrap(err, dErrors.CodeUnavailable, "identity service unavailable").WithReason(ReasonIdentityUnavailable))
	}

	if info.Birthdate == nil {
		return nil, o.reject(ctx, span, req.SubjectID, errAgeRestricted("birthdate unavailable"))
	}
	age := permissions.AgeOn(*info.Birthdate, permissions.Today(now))
	span.SetAttributes(attribute.Int("age", age), attribute.Bool("responsible_party", info.IsResponsibleParty))
	if age < o.cfg.MinimumAge {
		return nil, o.reject(ctx, span, req.SubjectID, errAgeRestricted("member is below the minimum age"))
	}

	eligibility := models.UnknownEligibility()
	var members []permissions.DependentAccess
	var g errgroup.Group
	g.Go(func() error {
		eligibility = o.fetchEligibility(fetchCtx, info.EnterpriseID)
		return nil
	})
	if age >= o.cfg.AdultAge && info.IsResponsibleParty {
		g.Go(func() error {
			members = o.fetchMembers(fetchCtx, req.SubjectID)
			return nil
		})
	}
	_ = g.Wait()

	decision, err := DecidePersona(PersonaInput{
		Eligibility:    eligibility,
		Age:            age,
		AdultAge:       o.cfg.AdultAge,
		ManagedMembers: members,
		Now:            now,
	})
	if err != nil {
		return nil, o.reject(ctx, span, req.SubjectID, err)
	}
	span.SetAttributes(attribute.String("persona", string(decision.Persona)))

	in := service.CreateInput{
		SubjectID:          req.SubjectID,
		Email:              firstNonEmpty(info.Email, req.Email),
		Name:               info.DisplayName(),
		Persona:            decision.Persona,
		DelegateTypes:      decision.DelegateTypes,
		EnterpriseID:       info.EnterpriseID,
		Birthdate:          info.Birthdate,
		IsResponsibleParty: info.IsResponsibleParty,
		EligibilityStatus:  string(eligibility.Status),
		TermDate:           eligibility.TermDate,
		Tokens:             req.Tokens,
		Client:             req.Client,
	}
	if decision.Persona == domain.PersonaDelegate {
		in.Permissions = permissions.NewPermissionSet(req.SubjectID, decision.Persona, members, now, o.cfg.PermissionsTTL)
		in.ManagedMemberIDs = in.Permissions.DependentIDs()
		if raw, err := json.Marshal(members); err == nil {
			in.ManagedMembersJSON = string(raw)
		}
	} else {
		in.Permissions = permissions.NewPermissionSet(req.SubjectID, decision.Persona, nil, now, o.cfg.PermissionsTTL)
	}

	sess, err := o.sessions.Create(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session create failed")
		o.metrics.IncLoginOutcome("error")
		return nil, err
	}
	o.metrics.IncLoginOutcome(string(decision.Persona))
	o.logger.InfoContext(ctx, "login accepted",
		"subject_id", req.SubjectID,
		"persona", string(decision.Persona),
		"eligibility", string(eligibility.Status),
		"managed_members", len(members),
		"request_id", requestcontext.RequestID(ctx),
	)
	return &LoginResult{
		Session:       sess,
		Persona:       decision.Persona,
		DelegateTypes: decision.DelegateTypes,
		Eligibility:   eligibility,
	}, nil
}

// RefreshPermissions re-fetches grants for a delegate session. Sessions of
// any other persona hold no grants and get an empty set without a fetch.
func (o *Orchestrator) RefreshPermissions(ctx context.Context, sess *sessionModels.Session) (*permissions.PermissionSet, error) {
	ctx, span := o.tracer.Start(ctx, "enrichment.RefreshPermissions")
	defer span.End()

	now := o.now()
	if sess.Persona != domain.PersonaDelegate {
		return permissions.NewPermissionSet(sess.SubjectID, sess.Persona, nil, now, o.cfg.PermissionsTTL), nil
	}
	fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.LoginTimeout)
	defer cancel()
	members, err := o.members.FetchManagedMembers(fetchCtx, sess.SubjectID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "permissions fetch failed")
		return nil, err
	}
	return permissions.NewPermissionSet(sess.SubjectID, sess.Persona, members, now, o.cfg.PermissionsTTL), nil
}

func (o *Orchestrator) fetchUserInfo(ctx context.Context, subjectID string) (*models.UserInfo, error) {
	ctx, span := o.tracer.Start(ctx, "enrichment.FetchUserInfo")
	defer span.End()
	info, err := o.userInfo.FetchUserInfo(ctx, subjectID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user info fetch failed")
		return nil, err
	}
	return info, nil
}

// fetchEligibility never fails; any problem degrades to UNKNOWN.
func (o *Orchestrator) fetchEligibility(ctx context.Context, enterpriseID string) *models.Eligibility {
	ctx, span := o.tracer.Start(ctx, "enrichment.FetchEligibility")
	defer span.End()
	if enterpriseID == "" {
		o.logger.WarnContext(ctx, "no enterprise id, eligibility unknown")
		return models.UnknownEligibility()
	}
	el, err := o.eligibility.FetchEligibility(ctx, enterpriseID)
	if err != nil || el == nil {
		span.RecordError(err)
		o.logger.WarnContext(ctx, "eligibility lookup failed, treating as unknown",
			"enterprise_id", enterpriseID,
			"error", err,
		)
		return models.UnknownEligibility()
	}
	return el
}

// fetchMembers never fails; any problem yields no members.
func (o *Orchestrator) fetchMembers(ctx context.Context, subjectID string) []permissions.DependentAccess {
	ctx, span := o.tracer.Start(ctx, "enrichment.FetchManagedMembers")
	defer span.End()
	members, err := o.members.FetchManagedMembers(ctx, subjectID)
	if err != nil {
		span.RecordError(err)
		o.logger.WarnContext(ctx, "managed member lookup failed, continuing without grants",
			"subject_id", subjectID,
			"error", err,
		)
		return nil
	}
	return members
}

func (o *Orchestrator) reject(ctx context.Context, span trace.Span, subjectID string, err error) error {
	reason := dErrors.ReasonOf(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	o.metrics.IncLoginOutcome(strings.ToLower(reason))
	o.logger.InfoContext(ctx, "login rejected",
		"subject_id", subjectID,
		"reason", reason,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	if o.auditPublisher != nil {
		_ = o.auditPublisher.Emit(ctx, audit.Event{
			Action:    string(audit.EventLoginRejected),
			SubjectID: subjectID,
			AuthType:  "HSID",
			Reason:    reason,
			Decision:  "reject",
			RequestID: requestcontext.RequestID(ctx),
			Severity:  audit.SeverityWarning,
		})
	}
	return err
}

func errAgeRestricted(msg string) error {
	return dErrors.New(dErrors.CodeForbidden, msg).WithReason(ReasonAgeRestricted)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
