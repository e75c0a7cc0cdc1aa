// Package service owns the session lifecycle: creation, validation with
// device binding, periodic rotation, and invalidation propagated to other
// gateway instances.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"healthbff/internal/auth/device"
	"healthbff/internal/events"
	"healthbff/internal/permissions"
	"healthbff/internal/platform/metrics"
	"healthbff/internal/session/models"
	"healthbff/pkg/domain"
	dErrors "healthbff/pkg/domain-errors"
	"healthbff/pkg/platform/audit"
	"healthbff/pkg/platform/sentinel"
	"healthbff/pkg/requestcontext"
)

// Store is the shared session persistence the manager depends on.
type Store interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Put(ctx context.Context, sess *models.Session, ttl time.Duration) error
	Update(ctx context.Context, id string, ttl time.Duration, mutate func(*models.Session) (bool, error)) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	Expire(ctx context.Context, id string, ttl time.Duration) error
	IndexedSessionID(ctx context.Context, subjectID string) (string, error)
	SetIndex(ctx context.Context, subjectID, sessionID string, ttl time.Duration) error
	ExpireIndex(ctx context.Context, subjectID string, ttl time.Duration) error
	DeleteIndex(ctx context.Context, subjectID, sessionID string) error
	TryAcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// PermissionRefresher re-fetches a subject's delegate grants.
type PermissionRefresher interface {
	RefreshPermissions(ctx context.Context, sess *models.Session) (*permissions.PermissionSet, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Reason codes carried on validation errors.
const (
	ReasonBindingMismatch = "SESSION_BINDING_MISMATCH"
	ReasonSessionExpired  = "SESSION_EXPIRED"
)

// Invalidation reasons recorded on events, metrics and audit.
const (
	InvalidationLogout          = "logout"
	InvalidationForced          = "forced"
	InvalidationSuperseded      = "superseded"
	InvalidationBindingMismatch = "binding_mismatch"
)

// BindingConfig selects which client signals a session is bound to. A stored
// fingerprint always wins; IP and user-agent checks apply only without one.
type BindingConfig struct {
	Enabled        bool
	CheckIP        bool
	CheckUserAgent bool
}

type Config struct {
	TTL              time.Duration
	RotationInterval time.Duration
	RotationGrace    time.Duration
	LockTTL          time.Duration
	// TouchInterval throttles sliding-expiry writes.
	TouchInterval time.Duration

	Binding                     BindingConfig
	InvalidateOnBindingMismatch bool

	LocalCacheTTL  time.Duration
	LocalCacheSize int
}

func DefaultConfig() Config {
	return Config{
		TTL:                         30 * time.Minute,
		RotationInterval:            15 * time.Minute,
		RotationGrace:               30 * time.Second,
		LockTTL:                     10 * time.Second,
		TouchInterval:               time.Minute,
		Binding:                     BindingConfig{Enabled: true, CheckIP: false, CheckUserAgent: true},
		InvalidateOnBindingMismatch: true,
		LocalCacheTTL:               5 * time.Second,
		LocalCacheSize:              10_000,
	}
}

type Manager struct {
	store     Store
	bus       events.Bus
	device    *device.Service
	refresher PermissionRefresher
	cfg       Config
	local     *expirable.LRU[string, *models.Session]

	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	now            func() time.Time
}

type Option func(*Manager)

func WithConfig(cfg Config) Option {
	return func(m *Manager) { m.cfg = cfg }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(m *Manager) { m.auditPublisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithPermissionRefresher(r PermissionRefresher) Option {
	return func(m *Manager) { m.refresher = r }
}

func New(store Store, bus events.Bus, dev *device.Service, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		bus:    bus,
		device: dev,
		cfg:    DefaultConfig(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	if m.cfg.LocalCacheTTL > 0 && m.cfg.LocalCacheSize > 0 {
		m.local = expirable.NewLRU[string, *models.Session](m.cfg.LocalCacheSize, nil, m.cfg.LocalCacheTTL)
	}
	return m
}

// Config returns the effective configuration.
func (m *Manager) Config() Config { return m.cfg }

// CreateInput carries everything the enrichment step learned at login.
type CreateInput struct {
	SubjectID          string
	Email              string
	Name               string
	Persona            domain.Persona
	ManagedMemberIDs   []string
	ManagedMembersJSON string
	DelegateTypes      []permissions.DelegateType
	EnterpriseID       string
	Birthdate          *permissions.Date
	IsResponsibleParty bool
	EligibilityStatus  string
	TermDate           *permissions.Date
	Permissions        *permissions.PermissionSet
	Tokens             models.Tokens
	Client             device.ClientInfo
}

// Create stores a new session and points the subject index at it. Any
// session the subject already held is invalidated first.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*models.Session, error) {
	if strings.TrimSpace(in.SubjectID) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "subject id required")
	}
	now := m.now()

	if prev, err := m.store.IndexedSessionID(ctx, in.SubjectID); err == nil && prev != "" {
		if err := m.invalidate(ctx, prev, events.TypeInvalidated, InvalidationSuperseded, ""); err != nil {
			m.logger.WarnContext(ctx, "failed to invalidate previous session",
				"error", err,
				"subject_id", in.SubjectID,
			)
		}
	} else if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, storeError(err)
	}

	sess := &models.Session{
		ID:                 domain.NewSessionID(),
		SubjectID:          in.SubjectID,
		Email:              in.Email,
		Name:               in.Name,
		Persona:            in.Persona,
		ManagedMemberIDs:   in.ManagedMemberIDs,
		ManagedMembersJSON: in.ManagedMembersJSON,
		DelegateTypes:      in.DelegateTypes,
		EnterpriseID:       in.EnterpriseID,
		Birthdate:          in.Birthdate,
		IsResponsibleParty: in.IsResponsibleParty,
		EligibilityStatus:  in.EligibilityStatus,
		TermDate:           in.TermDate,
		Permissions:        in.Permissions,
		Tokens:             in.Tokens,
		CreatedAt:          now,
		LastAccessedAt:     now,
	}
	m.bindClient(sess, in.Client)

	if err := m.store.Put(ctx, sess, m.cfg.TTL); err != nil {
		return nil, storeError(err)
	}
	if err := m.store.SetIndex(ctx, sess.SubjectID, sess.ID, m.cfg.TTL); err != nil {
		_ = m.store.Delete(context.WithoutCancel(ctx), sess.ID)
		return nil, storeError(err)
	}
	m.cache(sess)

	m.metrics.IncSessionsCreated()
	m.emit(ctx, audit.Event{
		Action:    string(audit.EventSessionCreated),
		SubjectID: sess.SubjectID,
		SessionID: sess.ID,
		AuthType:  "HSID",
		IP:        sess.IPAddress,
		Device:    sess.DeviceDisplayName,
	})
	return sess.Clone(), nil
}

// Validate loads a session, follows a rotation successor during the grace
// period, enforces device binding, and slides the expiry. The returned
// session's ID differs from id when the caller presented a rotated-away id.
func (m *Manager) Validate(ctx context.Context, id string, client device.ClientInfo) (*models.Session, error) {
	if !domain.IsValidSessionID(id) {
		return nil, errNotFound()
	}
	now := m.now()

	sess, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	// A successor is itself never superseded within one grace window, but
	// bound the walk regardless.
	for hops := 0; sess.IsSuperseded(); hops++ {
		if hops >= 2 || now.Sub(sess.EffectiveRotatedAt()) > m.cfg.RotationGrace {
			return nil, errNotFound()
		}
		if sess, err = m.load(ctx, sess.SupersededBy); err != nil {
			return nil, err
		}
	}

	if !m.bindingMatches(sess, client) {
		return nil, m.bindingMismatch(ctx, sess, client)
	}

	if now.Sub(sess.LastAccessedAt) >= m.cfg.TouchInterval {
		m.touch(ctx, sess, now)
	}
	return sess, nil
}

func (m *Manager) touch(ctx context.Context, sess *models.Session, now time.Time) {
	updated, err := m.store.Update(ctx, sess.ID, m.cfg.TTL, func(cur *models.Session) (bool, error) {
		if cur.IsSuperseded() {
			return false, nil
		}
		cur.LastAccessedAt = now
		return true, nil
	})
	if err != nil {
		m.logger.WarnContext(ctx, "failed to touch session", "error", err)
		return
	}
	m.forget(sess.ID)
	if updated.IsSuperseded() {
		return
	}
	sess.LastAccessedAt = updated.LastAccessedAt
	if err := m.store.ExpireIndex(ctx, sess.SubjectID, m.cfg.TTL); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		m.logger.WarnContext(ctx, "failed to extend session index", "error", err)
	}
}

func (m *Manager) bindingMatches(sess *models.Session, client device.ClientInfo) bool {
	if !m.cfg.Binding.Enabled {
		return true
	}
	if strings.TrimSpace(sess.DeviceFingerprint) != "" {
		return client.MatchesFingerprint(sess.DeviceFingerprint)
	}
	if m.cfg.Binding.CheckIP && sess.IPAddress != "" && sess.IPAddress != client.IPAddress {
		return false
	}
	if m.cfg.Binding.CheckUserAgent && sess.UserAgentHash != "" &&
		sess.UserAgentHash != device.HashUserAgent(client.UserAgent) {
		return false
	}
	return true
}

func (m *Manager) bindingMismatch(ctx context.Context, sess *models.Session, client device.ClientInfo) error {
	m.logger.WarnContext(ctx, "session binding mismatch",
		"subject_id", sess.SubjectID,
		"request_id", requestcontext.RequestID(ctx),
	)
	m.emit(ctx, audit.Event{
		Action:    string(audit.EventBindingMismatch),
		SubjectID: sess.SubjectID,
		SessionID: sess.ID,
		IP:        client.IPAddress,
		Device:    device.ParseUserAgent(client.UserAgent),
		Severity:  audit.SeverityWarning,
	})
	if m.cfg.InvalidateOnBindingMismatch {
		if err := m.invalidate(ctx, sess.ID, events.TypeInvalidated, InvalidationBindingMismatch, ""); err != nil {
			m.logger.WarnContext(ctx, "failed to invalidate session after binding mismatch", "error", err)
		}
	}
	return dErrors.New(dErrors.CodeUnauthorized, "session is bound to a different device").
		WithReason(ReasonBindingMismatch)
}

// load reads through the local cache.
func (m *Manager) load(ctx context.Context, id string) (*models.Session, error) {
	if m.local != nil {
		if cached, ok := m.local.Get(id); ok {
			m.metrics.IncCacheRequest("session_local", "hit")
			return cached.Clone(), nil
		}
		m.metrics.IncCacheRequest("session_local", "miss")
	}
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, errNotFound()
		}
		return nil, storeError(err)
	}
	m.cache(sess)
	return sess, nil
}

func (m *Manager) cache(sess *models.Session) {
	if m.local != nil {
		m.local.Add(sess.ID, sess.Clone())
	}
}

func (m *Manager) forget(id string) {
	if m.local != nil {
		m.local.Remove(id)
	}
}

// bindClient records the binding signals captured from the request.
func (m *Manager) bindClient(sess *models.Session, client device.ClientInfo) {
	fingerprint := client.DeviceFingerprint
	if fingerprint == "" {
		fingerprint = m.device.ComputeFingerprint(client)
	}
	sess.IPAddress = client.IPAddress
	sess.UserAgentHash = device.HashUserAgent(client.UserAgent)
	sess.DeviceFingerprint = fingerprint
	sess.DeviceDisplayName = device.ParseUserAgent(client.UserAgent)
}

func (m *Manager) emit(ctx context.Context, event audit.Event) {
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	m.logger.InfoContext(ctx, event.Action,
		"log_type", "audit",
		"subject_id", event.SubjectID,
		"reason", event.Reason,
		"request_id", event.RequestID,
	)
	if m.auditPublisher == nil {
		return
	}
	_ = m.auditPublisher.Emit(ctx, event)
}

func errNotFound() error {
	return dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeUnauthorized, "session not found").
		WithReason(ReasonSessionExpired)
}

func storeError(err error) error {
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "session store unavailable")
}
