// Package events carries cross-instance invalidation messages. Delivery is
// at-most-once and eventually consistent; TTL expiry remains the backstop for
// anything a subscriber misses.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Type is the kind of invalidation.
type Type string

const (
	TypeInvalidated Type = "INVALIDATED"
	TypeForceLogout Type = "FORCE_LOGOUT"
	TypeRotated     Type = "ROTATED"
	TypeEvict       Type = "EVICT"
	TypeEvictAll    Type = "EVICT_ALL"
)

// Channels used by the gateway.
const (
	ChannelSessions = "bff:session-events"
	ChannelCache    = "bff:cache-events"
)

// Event is the wire payload. TargetKey is the session id for session events
// and the cache key for EVICT.
type Event struct {
	Type             Type      `json:"eventType"`
	TargetKey        string    `json:"targetKey,omitempty"`
	SubjectID        string    `json:"subjectId,omitempty"`
	NewSessionID     string    `json:"newSessionId,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	OriginInstanceID string    `json:"originInstanceId"`
	Timestamp        time.Time `json:"timestamp"`
}

// Handler processes one delivered event. Handlers must not block for long.
type Handler func(ctx context.Context, e Event)

// Subscription stops delivery when closed.
type Subscription interface {
	Close() error
}

// Publisher sends events.
type Publisher interface {
	Publish(ctx context.Context, channel string, e Event) error
}

// Bus is a Publisher that can also subscribe.
type Bus interface {
	Publisher
	Subscribe(ctx context.Context, channel string, h Handler) (Subscription, error)
	InstanceID() string
}

func encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a wire payload. Events without a type are rejected.
func Decode(payload []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	switch e.Type {
	case TypeInvalidated, TypeForceLogout, TypeRotated, TypeEvict, TypeEvictAll:
		return e, nil
	default:
		return Event{}, fmt.Errorf("decode event: unknown type %q", e.Type)
	}
}

// stamp fills origin and timestamp before publishing.
func stamp(e Event, instanceID string, now time.Time) Event {
	e.OriginInstanceID = instanceID
	if e.Timestamp.IsZero() {
		e.Timestamp = now.UTC()
	}
	return e
}
