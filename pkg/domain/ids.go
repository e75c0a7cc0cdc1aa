package domain

import (
	"github.com/google/uuid"

	dErrors "healthbff/pkg/domain-errors"
)

const sessionIDLength = 36

// NewSessionID returns a fresh opaque session identifier (canonical UUIDv4).
func NewSessionID() string {
	return uuid.NewString()
}

// ParseSessionID validates the strict session identifier format: a lowercase,
// hyphenated, version 4 UUID. Anything else is rejected before any store lookup.
func ParseSessionID(s string) (string, error) {
	if len(s) != sessionIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid session id format")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid session id format")
	}
	if parsed.Version() != 4 || parsed.String() != s {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid session id format")
	}
	return s, nil
}

// IsValidSessionID reports whether s passes ParseSessionID.
func IsValidSessionID(s string) bool {
	_, err := ParseSessionID(s)
	return err == nil
}

// NewInstanceID identifies one running gateway instance on the pub/sub bus.
func NewInstanceID() string {
	return "bff-" + uuid.NewString()[:8]
}
