package service

import (
	"context"
	"errors"
	"time"

	"healthbff/internal/auth/device"
	"healthbff/internal/events"
	"healthbff/internal/session/models"
	"healthbff/pkg/domain"
	"healthbff/pkg/platform/audit"
	"healthbff/pkg/platform/sentinel"
)

// Rotation outcomes, also used as metric labels.
const (
	rotationRotated   = "rotated"
	rotationContended = "contended"
	rotationFollowed  = "followed"
	rotationNotDue    = "not_due"
	rotationError     = "error"
)

// NeedsRotation reports whether the rotation interval has elapsed.
func (m *Manager) NeedsRotation(sess *models.Session, now time.Time) bool {
	if sess == nil || sess.IsSuperseded() || m.cfg.RotationInterval <= 0 {
		return false
	}
	return now.Sub(sess.EffectiveRotatedAt()) > m.cfg.RotationInterval
}

func rotationLockKey(oldID string) string { return "rotate:" + oldID }

// Rotate re-keys a session. Exactly one caller per old id performs the
// rotation; concurrent callers either follow to the successor or keep the
// old id until the holder finishes. The returned id is the one the client
// should present next.
func (m *Manager) Rotate(ctx context.Context, oldID string, client device.ClientInfo) (string, error) {
	now := m.now()
	lockKey := rotationLockKey(oldID)

	token, acquired, err := m.store.TryAcquireLock(ctx, lockKey, m.cfg.LockTTL)
	if err != nil {
		m.metrics.IncSessionRotation(rotationError)
		return oldID, storeError(err)
	}
	if !acquired {
		return m.followRotation(ctx, oldID, now)
	}
	defer func() {
		if err := m.store.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			m.logger.WarnContext(ctx, "failed to release rotation lock", "error", err)
		}
	}()

	// Re-read under the lock; the local cache may predate another
	// instance's rotation.
	old, err := m.store.Get(ctx, oldID)
	if err != nil {
		m.metrics.IncSessionRotation(rotationError)
		if errors.Is(err, sentinel.ErrNotFound) {
			return oldID, errNotFound()
		}
		return oldID, storeError(err)
	}
	if old.IsSuperseded() {
		m.metrics.IncSessionRotation(rotationFollowed)
		return old.SupersededBy, nil
	}
	if !m.NeedsRotation(old, now) {
		m.metrics.IncSessionRotation(rotationNotDue)
		return oldID, nil
	}

	next := old.Clone()
	next.ID = domain.NewSessionID()
	next.RotatedAt = &now
	next.LastAccessedAt = now
	next.SupersededBy = ""
	m.bindClient(next, client)

	if err := m.store.Put(ctx, next, m.cfg.TTL); err != nil {
		m.metrics.IncSessionRotation(rotationError)
		return oldID, storeError(err)
	}
	if err := m.store.SetIndex(ctx, next.SubjectID, next.ID, m.cfg.TTL); err != nil {
		_ = m.store.Delete(context.WithoutCancel(ctx), next.ID)
		m.metrics.IncSessionRotation(rotationError)
		return oldID, storeError(err)
	}
	m.retire(ctx, oldID, next.ID, now)
	m.cache(next)

	m.publish(ctx, events.ChannelSessions, events.Event{
		Type:         events.TypeRotated,
		TargetKey:    oldID,
		SubjectID:    next.SubjectID,
		NewSessionID: next.ID,
	})
	m.metrics.IncSessionRotation(rotationRotated)
	m.emit(ctx, audit.Event{
		Action:    string(audit.EventSessionRotated),
		SubjectID: next.SubjectID,
		SessionID: next.ID,
		AuthType:  "HSID",
		IP:        next.IPAddress,
		Device:    next.DeviceDisplayName,
	})
	return next.ID, nil
}

// retire marks the old record with its successor and shrinks it to the
// grace TTL. If the marker cannot be written the record still shrinks.
func (m *Manager) retire(ctx context.Context, oldID, newID string, now time.Time) {
	m.forget(oldID)
	_, err := m.store.Update(ctx, oldID, m.cfg.RotationGrace, func(cur *models.Session) (bool, error) {
		cur.SupersededBy = newID
		cur.RotatedAt = &now
		return true, nil
	})
	if err == nil {
		return
	}
	m.logger.WarnContext(ctx, "failed to mark rotated session", "error", err)
	if err := m.store.Expire(ctx, oldID, m.cfg.RotationGrace); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		m.logger.WarnContext(ctx, "failed to shrink rotated session", "error", err)
	}
}

// followRotation handles a caller that lost the lock race.
func (m *Manager) followRotation(ctx context.Context, oldID string, now time.Time) (string, error) {
	cur, err := m.store.Get(ctx, oldID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return oldID, nil
		}
		return oldID, storeError(err)
	}
	if !cur.IsSuperseded() && m.NeedsRotation(cur, now) {
		m.metrics.IncSessionRotation(rotationContended)
		return oldID, nil
	}
	m.metrics.IncSessionRotation(rotationFollowed)
	if indexed, err := m.store.IndexedSessionID(ctx, cur.SubjectID); err == nil && indexed != "" {
		return indexed, nil
	}
	if cur.IsSuperseded() {
		return cur.SupersededBy, nil
	}
	return oldID, nil
}
