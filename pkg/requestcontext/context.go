// Package requestcontext carries request-scoped values through context so
// that services read them without importing net/http.
//
// Middleware sets each value once per request:
//
//	ctx = requestcontext.WithRequestID(ctx, id)
//	ctx = requestcontext.WithTime(ctx, now)
//
// The authenticated principal is not stored here; it lives in
// internal/principal next to the type that enforces its invariants.
package requestcontext

import (
	"context"
	"time"
)

type key int

const (
	keyRequestID key = iota
	keyRequestTime
	keyClientIP
	keyUserAgent
	keyDeviceFingerprint
)

func str(ctx context.Context, k key) string {
	s, _ := ctx.Value(k).(string)
	return s
}

// RequestID is the correlation id, or "" outside a request.
func RequestID(ctx context.Context) string { return str(ctx, keyRequestID) }

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// Now is the instant the request was received. Every time-dependent check
// in one request uses it, so grants and expiries are judged against a single
// clock reading. Outside a request it falls back to time.Now.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(keyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, keyRequestTime, t)
}

func ClientIP(ctx context.Context) string  { return str(ctx, keyClientIP) }
func UserAgent(ctx context.Context) string { return str(ctx, keyUserAgent) }

// WithClientMetadata records the caller's address and User-Agent.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, keyClientIP, clientIP)
	return context.WithValue(ctx, keyUserAgent, userAgent)
}

// DeviceFingerprint is the hash computed by the device middleware, if any.
func DeviceFingerprint(ctx context.Context) string { return str(ctx, keyDeviceFingerprint) }

func WithDeviceFingerprint(ctx context.Context, fingerprint string) context.Context {
	return context.WithValue(ctx, keyDeviceFingerprint, fingerprint)
}
