package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"healthbff/internal/session/models"
	"healthbff/pkg/platform/sentinel"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e entry[T]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// InMemoryStore is a single-process session store with TTL semantics matching
// RedisStore. Expired entries are dropped lazily on access.
type InMemoryStore struct {
	mu       sync.Mutex
	now      func() time.Time
	sessions map[string]entry[*models.Session]
	index    map[string]entry[string]
	locks    map[string]entry[string]
	tokens   uint64
}

// MemoryOption configures an InMemoryStore.
type MemoryOption func(*InMemoryStore)

// WithClock overrides the time source used for TTL expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) { s.now = now }
}

func NewInMemory(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		now:      time.Now,
		sessions: make(map[string]entry[*models.Session]),
		index:    make(map[string]entry[string]),
		locks:    make(map[string]entry[string]),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Get(_ context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok || e.expired(s.now()) {
		delete(s.sessions, id)
		return nil, sentinel.ErrNotFound
	}
	return e.value.Clone(), nil
}

func (s *InMemoryStore) Put(_ context.Context, sess *models.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = entry[*models.Session]{value: sess.Clone(), expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *InMemoryStore) Expire(_ context.Context, id string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok || e.expired(s.now()) {
		return sentinel.ErrNotFound
	}
	e.expiresAt = s.now().Add(ttl)
	s.sessions[id] = e
	return nil
}

func (s *InMemoryStore) IndexedSessionID(_ context.Context, subjectID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.index[subjectID]
	if !ok || e.expired(s.now()) {
		delete(s.index, subjectID)
		return "", sentinel.ErrNotFound
	}
	return e.value, nil
}

func (s *InMemoryStore) SetIndex(_ context.Context, subjectID, sessionID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index[subjectID] = entry[string]{value: sessionID, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *InMemoryStore) ExpireIndex(_ context.Context, subjectID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.index[subjectID]
	if !ok || e.expired(s.now()) {
		return sentinel.ErrNotFound
	}
	e.expiresAt = s.now().Add(ttl)
	s.index[subjectID] = e
	return nil
}

func (s *InMemoryStore) DeleteIndex(_ context.Context, subjectID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.index[subjectID]; ok && e.value == sessionID {
		delete(s.index, subjectID)
	}
	return nil
}

// Update applies mutate under the store mutex. A ttl of zero keeps the
// record's expiry.
func (s *InMemoryStore) Update(_ context.Context, id string, ttl time.Duration, mutate func(*models.Session) (bool, error)) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok || e.expired(s.now()) {
		delete(s.sessions, id)
		return nil, sentinel.ErrNotFound
	}
	sess := e.value.Clone()
	write, err := mutate(sess)
	if err != nil {
		return nil, err
	}
	if !write {
		return sess, nil
	}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	e.value = sess.Clone()
	s.sessions[id] = e
	return sess, nil
}

func (s *InMemoryStore) TryAcquireLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.locks[key]; ok && !e.expired(s.now()) {
		return "", false, nil
	}
	s.tokens++
	token := strconv.FormatUint(s.tokens, 10)
	s.locks[key] = entry[string]{value: token, expiresAt: s.now().Add(ttl)}
	return token, true, nil
}

func (s *InMemoryStore) ReleaseLock(_ context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.locks[key]; ok && e.value == token {
		delete(s.locks, key)
	}
	return nil
}

// Len counts live session records.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := s.now()
	for _, e := range s.sessions {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// TTL returns the remaining lifetime of a session record.
func (s *InMemoryStore) TTL(id string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return 0
	}
	return e.expiresAt.Sub(s.now())
}
