package audit

import (
	"context"
	"errors"
	"log/slog"
)

// Fanout appends to every store and joins their errors.
type Fanout []Store

func (f Fanout) Append(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogStore writes audit events as structured log lines.
type LogStore struct {
	logger *slog.Logger
}

func NewLogStore(logger *slog.Logger) *LogStore {
	return &LogStore{logger: logger}
}

func (s *LogStore) Append(ctx context.Context, e Event) error {
	s.logger.InfoContext(ctx, e.Action,
		"log_type", "audit",
		"category", string(e.Category),
		"subject_id", e.SubjectID,
		"session_id", e.SessionID,
		"auth_type", e.AuthType,
		"target_id", e.TargetID,
		"decision", e.Decision,
		"reason", e.Reason,
		"request_id", e.RequestID,
		"actor_id", e.ActorID,
	)
	return nil
}
