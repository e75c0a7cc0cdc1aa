package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, caches, and upstream
// adapters return these (optionally wrapped) and services translate them
// into domain errors:
//   - ErrNotFound: key or record does not exist (session, index, cache entry)
//   - ErrExpired: record exists logically but is past its validity window
//   - ErrConflict: concurrent writer changed the record first
//   - ErrUnavailable: backing store or service cannot be reached
var (
	ErrNotFound    = errors.New("not found")
	ErrExpired     = errors.New("expired")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
