package service

import (
	"context"
	"errors"

	"healthbff/internal/events"
	"healthbff/internal/permissions"
	"healthbff/internal/session/models"
	dErrors "healthbff/pkg/domain-errors"
	"healthbff/pkg/platform/audit"
	"healthbff/pkg/platform/sentinel"
)

// Logout ends a session at the member's request. Unknown ids are a no-op.
func (m *Manager) Logout(ctx context.Context, id string) error {
	return m.invalidate(ctx, id, events.TypeInvalidated, InvalidationLogout, "")
}

// Invalidate ends a session for an operational reason.
func (m *Manager) Invalidate(ctx context.Context, id, reason string) error {
	return m.invalidate(ctx, id, events.TypeInvalidated, reason, "")
}

// ForceLogout ends the subject's current session on an administrator's
// behalf. It returns not_found when the subject has no active session.
func (m *Manager) ForceLogout(ctx context.Context, subjectID, actorID string) (string, error) {
	id, err := m.store.IndexedSessionID(ctx, subjectID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", dErrors.New(dErrors.CodeNotFound, "no active session for subject")
	}
	if err != nil {
		return "", storeError(err)
	}
	if err := m.invalidate(ctx, id, events.TypeForceLogout, InvalidationForced, actorID); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Manager) invalidate(ctx context.Context, id string, typ events.Type, reason, actorID string) error {
	m.forget(id)
	sess, err := m.store.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return storeError(err)
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return storeError(err)
	}
	if err := m.store.DeleteIndex(ctx, sess.SubjectID, id); err != nil {
		m.logger.WarnContext(ctx, "failed to delete session index", "error", err)
	}

	m.publish(ctx, events.ChannelSessions, events.Event{
		Type:      typ,
		TargetKey: id,
		SubjectID: sess.SubjectID,
		Reason:    reason,
	})
	m.metrics.IncSessionInvalidation(reason)

	action := audit.EventSessionInvalidated
	switch {
	case typ == events.TypeForceLogout:
		action = audit.EventSessionForceLogout
	case reason == InvalidationLogout:
		action = audit.EventSessionLogout
	}
	m.emit(ctx, audit.Event{
		Action:    string(action),
		SubjectID: sess.SubjectID,
		SessionID: id,
		AuthType:  "HSID",
		Reason:    reason,
		ActorID:   actorID,
	})
	return nil
}

// UpdatePermissions replaces the stored permission set wholesale. Superseded
// records are left alone since their successor carries the data.
func (m *Manager) UpdatePermissions(ctx context.Context, id string, set *permissions.PermissionSet) error {
	m.forget(id)
	_, err := m.store.Update(ctx, id, 0, func(cur *models.Session) (bool, error) {
		if cur.IsSuperseded() {
			return false, nil
		}
		cur.Permissions = set.Clone()
		return true, nil
	})
	if errors.Is(err, sentinel.ErrNotFound) {
		return errNotFound()
	}
	if err != nil {
		return storeError(err)
	}
	return nil
}

// CurrentPermissions returns the session's set when still fresh. Otherwise it
// refreshes, persists the result, and falls back to an empty set on failure.
func (m *Manager) CurrentPermissions(ctx context.Context, sess *models.Session) *permissions.PermissionSet {
	now := m.now()
	if sess.Permissions != nil && !sess.Permissions.IsExpired(now) {
		return sess.Permissions
	}
	return m.RefreshPermissions(ctx, sess)
}

// RefreshPermissions fetches unconditionally.
func (m *Manager) RefreshPermissions(ctx context.Context, sess *models.Session) *permissions.PermissionSet {
	now := m.now()
	if m.refresher == nil {
		return permissions.EmptyPermissionSet(sess.SubjectID, now)
	}
	set, err := m.refresher.RefreshPermissions(ctx, sess)
	if err != nil || set == nil {
		m.logger.WarnContext(ctx, "permission refresh failed, using empty set",
			"error", err,
			"subject_id", sess.SubjectID,
		)
		return permissions.EmptyPermissionSet(sess.SubjectID, now)
	}
	if err := m.UpdatePermissions(ctx, sess.ID, set); err != nil {
		m.logger.WarnContext(ctx, "failed to persist refreshed permissions", "error", err)
	}
	sess.Permissions = set
	return set
}

// Start subscribes to session events from other instances.
func (m *Manager) Start(ctx context.Context) (events.Subscription, error) {
	return m.bus.Subscribe(ctx, events.ChannelSessions, m.HandleEvent)
}

// HandleEvent drops locally cached records named by a remote event.
func (m *Manager) HandleEvent(ctx context.Context, e events.Event) {
	switch e.Type {
	case events.TypeInvalidated, events.TypeForceLogout, events.TypeRotated:
		m.forget(e.TargetKey)
		m.logger.DebugContext(ctx, "session event applied",
			"event_type", string(e.Type),
			"origin", e.OriginInstanceID,
		)
	}
}

func (m *Manager) publish(ctx context.Context, channel string, e events.Event) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(ctx, channel, e); err != nil {
		m.logger.WarnContext(ctx, "failed to publish session event",
			"error", err,
			"event_type", string(e.Type),
		)
	}
}
