package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"healthbff/internal/auth/device"
	"healthbff/internal/events"
	"healthbff/internal/permissions"
	"healthbff/internal/session/models"
	"healthbff/internal/session/store"
	"healthbff/pkg/domain"
	dErrors "healthbff/pkg/domain-errors"
	"healthbff/pkg/platform/audit"
	"healthbff/pkg/platform/audit/publisher"
	auditmemory "healthbff/pkg/platform/audit/store/memory"
	"healthbff/pkg/platform/sentinel"
)

const chromeUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type stubRefresher struct {
	calls int
	set   *permissions.PermissionSet
	err   error
}

func (r *stubRefresher) RefreshPermissions(context.Context, *models.Session) (*permissions.PermissionSet, error) {
	r.calls++
	return r.set, r.err
}

type ManagerSuite struct {
	suite.Suite
	mu        sync.Mutex
	now       time.Time
	store     *store.InMemoryStore
	hub       *events.MemoryHub
	bus       *events.MemoryBus
	device    *device.Service
	audit     *auditmemory.InMemoryStore
	refresher *stubRefresher
	manager   *Manager
	client    device.ClientInfo
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *ManagerSuite) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

func (s *ManagerSuite) SetupTest() {
	s.now = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	s.store = store.NewInMemory(store.WithClock(s.clock))
	s.hub = events.NewMemoryHub()
	s.bus = s.hub.Bus("bff-a")
	s.device = device.NewService(true)
	s.audit = auditmemory.NewInMemoryStore()
	s.refresher = &stubRefresher{}
	s.manager = s.newManager(s.bus, DefaultConfig())
	s.client = s.clientInfo("10.0.0.1", chromeUA)
}

func (s *ManagerSuite) newManager(bus events.Bus, cfg Config) *Manager {
	return New(s.store, bus, s.device,
		WithConfig(cfg),
		WithClock(s.clock),
		WithAuditPublisher(publisher.NewPublisher(s.audit)),
		WithPermissionRefresher(s.refresher),
	)
}

func (s *ManagerSuite) clientInfo(ip, ua string) device.ClientInfo {
	info := device.ClientInfo{IPAddress: ip, UserAgent: ua, AcceptLanguage: "en-US"}
	info.DeviceFingerprint = s.device.ComputeFingerprint(info)
	return info
}

func (s *ManagerSuite) create(subject string) *models.Session {
	sess, err := s.manager.Create(context.Background(), CreateInput{
		SubjectID: subject,
		Persona:   domain.PersonaDelegate,
		Tokens:    models.Tokens{AccessToken: "at-" + subject},
		Client:    s.client,
		Permissions: permissions.NewPermissionSet(subject, domain.PersonaDelegate, []permissions.DependentAccess{
			permissions.NewDependentAccess("D1", "Dep", "child", nil),
		}, s.clock(), 0),
	})
	s.Require().NoError(err)
	return sess
}

func (s *ManagerSuite) publishedOf(typ events.Type) []events.Event {
	var out []events.Event
	for _, e := range s.bus.Published() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (s *ManagerSuite) TestCreate() {
	ctx := context.Background()

	s.Run("stores record and index with full ttl", func() {
		sess := s.create("sub-1")
		s.True(domain.IsValidSessionID(sess.ID))
		s.Equal(30*time.Minute, s.store.TTL(sess.ID))
		s.NotEmpty(sess.DeviceFingerprint)
		s.Equal(device.HashUserAgent(chromeUA), sess.UserAgentHash)
		s.Contains(sess.DeviceDisplayName, "Chrome 120")

		indexed, err := s.store.IndexedSessionID(ctx, "sub-1")
		s.Require().NoError(err)
		s.Equal(sess.ID, indexed)
		s.Len(s.audit.ListByAction(ctx, audit.EventSessionCreated), 1)
	})

	s.Run("invalidates the previous session of the subject", func() {
		first, err := s.store.IndexedSessionID(ctx, "sub-1")
		s.Require().NoError(err)

		second := s.create("sub-1")

		_, err = s.store.Get(ctx, first)
		s.ErrorIs(err, sentinel.ErrNotFound)
		indexed, _ := s.store.IndexedSessionID(ctx, "sub-1")
		s.Equal(second.ID, indexed)

		invalidated := s.publishedOf(events.TypeInvalidated)
		s.Require().Len(invalidated, 1)
		s.Equal(first, invalidated[0].TargetKey)
		s.Equal(InvalidationSuperseded, invalidated[0].Reason)
		s.Equal("bff-a", invalidated[0].OriginInstanceID)
	})

	s.Run("rejects blank subject", func() {
		_, err := s.manager.Create(ctx, CreateInput{})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ManagerSuite) TestValidate() {
	ctx := context.Background()

	s.Run("returns the stored session", func() {
		sess := s.create("sub-v1")
		got, err := s.manager.Validate(ctx, sess.ID, s.client)
		s.Require().NoError(err)
		s.Equal(sess.ID, got.ID)
		s.Equal("at-sub-v1", got.Tokens.AccessToken)
	})

	s.Run("malformed and unknown ids are not found", func() {
		for _, id := range []string{"", "not-a-uuid", "550E8400-E29B-41D4-A716-446655440000", domain.NewSessionID()} {
			_, err := s.manager.Validate(ctx, id, s.client)
			s.ErrorIs(err, sentinel.ErrNotFound, id)
			s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		}
	})

	s.Run("sliding touch resets ttl after the touch interval", func() {
		sess := s.create("sub-v2")
		s.advance(10 * time.Minute)
		_, err := s.manager.Validate(ctx, sess.ID, s.client)
		s.Require().NoError(err)
		s.Equal(30*time.Minute, s.store.TTL(sess.ID))

		stored, _ := s.store.Get(ctx, sess.ID)
		s.Equal(s.clock(), stored.LastAccessedAt)
	})
}

func (s *ManagerSuite) TestBinding() {
	ctx := context.Background()

	s.Run("fingerprint mismatch is rejected and invalidates", func() {
		sess := s.create("sub-b1")
		other := s.clientInfo("10.0.0.1", "curl/8.0")

		_, err := s.manager.Validate(ctx, sess.ID, other)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal(ReasonBindingMismatch, dErrors.ReasonOf(err))

		_, err = s.store.Get(ctx, sess.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
		s.Len(s.audit.ListByAction(ctx, audit.EventBindingMismatch), 1)
	})

	s.Run("blank request fingerprint never matches a stored one", func() {
		sess := s.create("sub-b2")
		blank := s.client
		blank.DeviceFingerprint = ""
		_, err := s.manager.Validate(ctx, sess.ID, blank)
		s.Equal(ReasonBindingMismatch, dErrors.ReasonOf(err))
	})

	s.Run("mismatch keeps record when invalidation is disabled", func() {
		cfg := DefaultConfig()
		cfg.InvalidateOnBindingMismatch = false
		s.manager = s.newManager(s.bus, cfg)
		sess := s.create("sub-b3")

		_, err := s.manager.Validate(ctx, sess.ID, s.clientInfo("10.0.0.1", "curl/8.0"))
		s.Equal(ReasonBindingMismatch, dErrors.ReasonOf(err))
		_, err = s.store.Get(ctx, sess.ID)
		s.NoError(err)
	})

	s.Run("falls back to ip and user agent without a fingerprint", func() {
		cfg := DefaultConfig()
		cfg.Binding = BindingConfig{Enabled: true, CheckIP: true, CheckUserAgent: true}
		s.device = device.NewService(false)
		s.manager = s.newManager(s.bus, cfg)
		plain := device.ClientInfo{IPAddress: "10.0.0.9", UserAgent: chromeUA}
		sess, err := s.manager.Create(ctx, CreateInput{SubjectID: "sub-b4", Client: plain})
		s.Require().NoError(err)
		s.Empty(sess.DeviceFingerprint)

		_, err = s.manager.Validate(ctx, sess.ID, plain)
		s.Require().NoError(err)

		moved := plain
		moved.IPAddress = "192.168.1.1"
		_, err = s.manager.Validate(ctx, sess.ID, moved)
		s.Equal(ReasonBindingMismatch, dErrors.ReasonOf(err))
	})

	s.Run("disabled binding accepts any client", func() {
		cfg := DefaultConfig()
		cfg.Binding.Enabled = false
		s.device = device.NewService(true)
		s.manager = s.newManager(s.bus, cfg)
		sess := s.create("sub-b5")
		_, err := s.manager.Validate(ctx, sess.ID, s.clientInfo("1.1.1.1", "curl/8.0"))
		s.NoError(err)
	})
}

func (s *ManagerSuite) TestNeedsRotation() {
	created := s.clock()
	sess := &models.Session{CreatedAt: created}

	s.False(s.manager.NeedsRotation(sess, created.Add(15*time.Minute)), "exactly the interval is not yet due")
	s.True(s.manager.NeedsRotation(sess, created.Add(15*time.Minute+time.Second)))

	rotated := created.Add(20 * time.Minute)
	sess.RotatedAt = &rotated
	s.False(s.manager.NeedsRotation(sess, created.Add(30*time.Minute)), "measured from the last rotation")

	sess.SupersededBy = "other"
	s.False(s.manager.NeedsRotation(sess, created.Add(time.Hour)))
}

func (s *ManagerSuite) TestRotate() {
	ctx := context.Background()
	sess := s.create("sub-r1")
	s.advance(16 * time.Minute)

	newID, err := s.manager.Rotate(ctx, sess.ID, s.client)
	s.Require().NoError(err)
	s.NotEqual(sess.ID, newID)

	next, err := s.store.Get(ctx, newID)
	s.Require().NoError(err)
	s.Equal("at-sub-r1", next.Tokens.AccessToken, "token payload carried forward")
	s.Equal([]string{"D1"}, next.Permissions.DependentIDs(), "permissions carried forward")
	s.Equal(sess.CreatedAt, next.CreatedAt)
	s.Require().NotNil(next.RotatedAt)
	s.Equal(s.clock(), *next.RotatedAt)
	s.Equal(30*time.Minute, s.store.TTL(newID))

	old, err := s.store.Get(ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(newID, old.SupersededBy)
	s.Equal(30*time.Second, s.store.TTL(sess.ID))

	indexed, _ := s.store.IndexedSessionID(ctx, "sub-r1")
	s.Equal(newID, indexed)

	rotated := s.publishedOf(events.TypeRotated)
	s.Require().Len(rotated, 1)
	s.Equal(sess.ID, rotated[0].TargetKey)
	s.Equal(newID, rotated[0].NewSessionID)

	s.Run("old id resolves to the successor during grace", func() {
		got, err := s.manager.Validate(ctx, sess.ID, s.client)
		s.Require().NoError(err)
		s.Equal(newID, got.ID)
	})

	s.Run("old id is gone after grace", func() {
		s.advance(31 * time.Second)
		_, err := s.manager.Validate(ctx, sess.ID, s.client)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rotation not yet due keeps the id", func() {
		id, err := s.manager.Rotate(ctx, newID, s.client)
		s.Require().NoError(err)
		s.Equal(newID, id)
	})
}

func (s *ManagerSuite) TestRotateWhileLockHeld() {
	ctx := context.Background()
	sess := s.create("sub-r2")
	s.advance(16 * time.Minute)

	_, ok, err := s.store.TryAcquireLock(ctx, rotationLockKey(sess.ID), 10*time.Second)
	s.Require().NoError(err)
	s.Require().True(ok)

	id, err := s.manager.Rotate(ctx, sess.ID, s.client)
	s.Require().NoError(err)
	s.Equal(sess.ID, id, "the holder finishes the rotation")
	s.Empty(s.publishedOf(events.TypeRotated))
}

// Concurrent rotations of one old id produce exactly one successor, and every
// caller ends up on an id that resolves to it.
func (s *ManagerSuite) TestConcurrentRotation() {
	ctx := context.Background()
	sess := s.create("sub-r3")
	s.advance(16 * time.Minute)

	const callers = 25
	results := make([]string, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.manager.Rotate(ctx, sess.ID, s.client)
			s.NoError(err)
			results[i] = id
		}()
	}
	wg.Wait()

	s.Len(s.publishedOf(events.TypeRotated), 1)
	s.Equal(2, s.store.Len(), "successor plus the old record in grace")

	indexed, err := s.store.IndexedSessionID(ctx, "sub-r3")
	s.Require().NoError(err)
	for _, id := range results {
		got, err := s.manager.Validate(ctx, id, s.client)
		s.Require().NoError(err)
		s.Equal(indexed, got.ID)
	}
}

func (s *ManagerSuite) TestLogoutAndForceLogout() {
	ctx := context.Background()

	s.Run("logout deletes record and index", func() {
		sess := s.create("sub-l1")
		s.Require().NoError(s.manager.Logout(ctx, sess.ID))

		_, err := s.store.Get(ctx, sess.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.IndexedSessionID(ctx, "sub-l1")
		s.ErrorIs(err, sentinel.ErrNotFound)

		ev := s.publishedOf(events.TypeInvalidated)
		s.Require().NotEmpty(ev)
		s.Equal(InvalidationLogout, ev[len(ev)-1].Reason)
		s.Len(s.audit.ListByAction(ctx, audit.EventSessionLogout), 1)

		s.NoError(s.manager.Logout(ctx, sess.ID), "logout is idempotent")
	})

	s.Run("force logout targets the indexed session", func() {
		sess := s.create("sub-l2")
		id, err := s.manager.ForceLogout(ctx, "sub-l2", "admin-7")
		s.Require().NoError(err)
		s.Equal(sess.ID, id)

		forced := s.publishedOf(events.TypeForceLogout)
		s.Require().Len(forced, 1)
		s.Equal(InvalidationForced, forced[0].Reason)

		entries := s.audit.ListByAction(ctx, audit.EventSessionForceLogout)
		s.Require().Len(entries, 1)
		s.Equal("admin-7", entries[0].ActorID)
		s.Equal(audit.CategorySecurity, entries[0].Category)
	})

	s.Run("force logout without a session is not found", func() {
		_, err := s.manager.ForceLogout(ctx, "nobody", "admin-7")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// A second instance sharing the store drops its cached copy when the first
// instance logs the session out.
func (s *ManagerSuite) TestCrossInstanceInvalidation() {
	ctx := context.Background()
	other := s.newManager(s.hub.Bus("bff-b"), DefaultConfig())
	sub, err := other.Start(ctx)
	s.Require().NoError(err)
	defer sub.Close()

	sess := s.create("sub-x1")
	_, err = other.Validate(ctx, sess.ID, s.client)
	s.Require().NoError(err)

	s.Require().NoError(s.manager.Logout(ctx, sess.ID))

	_, err = other.Validate(ctx, sess.ID, s.client)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ManagerSuite) TestCurrentPermissions() {
	ctx := context.Background()

	s.Run("fresh set is returned without refresh", func() {
		sess := s.create("sub-p1")
		set := s.manager.CurrentPermissions(ctx, sess)
		s.Equal([]string{"D1"}, set.DependentIDs())
		s.Zero(s.refresher.calls)
	})

	s.Run("expired set is refreshed and persisted", func() {
		sess := s.create("sub-p2")
		s.advance(6 * time.Minute)
		s.refresher.set = permissions.NewPermissionSet("sub-p2", domain.PersonaDelegate, []permissions.DependentAccess{
			permissions.NewDependentAccess("D2", "Dep2", "child", nil),
		}, s.clock(), 0)

		set := s.manager.CurrentPermissions(ctx, sess)
		s.Equal([]string{"D2"}, set.DependentIDs())
		s.Equal(1, s.refresher.calls)

		stored, _ := s.store.Get(ctx, sess.ID)
		s.Equal([]string{"D2"}, stored.Permissions.DependentIDs())
	})

	s.Run("refresh failure yields an empty set", func() {
		sess := s.create("sub-p3")
		s.advance(6 * time.Minute)
		s.refresher.err = errors.New("permissions backend down")

		set := s.manager.CurrentPermissions(ctx, sess)
		s.True(set.IsEmpty())
		s.False(set.IsExpired(s.clock()))
	})
}
