package upstream

import (
	"errors"
	"fmt"

	"healthbff/pkg/platform/sentinel"
)

// Category is the normalized failure taxonomy for backend calls.
type Category string

const (
	// Timeout indicates the backend took too long to respond.
	Timeout Category = "timeout"

	// BadData indicates a 2xx response that could not be decoded.
	BadData Category = "bad_data"

	// Authentication indicates the gateway's credentials were refused.
	Authentication Category = "authentication"

	// ProviderOutage indicates a 5xx or a transport failure.
	ProviderOutage Category = "provider_outage"

	// NotFound indicates the requested record does not exist.
	NotFound Category = "not_found"

	// RateLimited indicates the backend shed the request.
	RateLimited Category = "rate_limited"

	// ClientError covers the remaining 4xx responses.
	ClientError Category = "client_error"

	// Internal indicates a failure inside the gateway itself.
	Internal Category = "internal"
)

// Error wraps a backend failure with its category.
type Error struct {
	Category   Category
	Service    string
	Message    string
	StatusCode int
	Underlying error
	Retryable  bool
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("upstream %s [%s]: %s: %v", e.Service, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("upstream %s [%s]: %s", e.Service, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// NewError builds a categorized error. Only timeouts and outages are retried;
// any 4xx, including rate limiting, is final.
func NewError(category Category, service, message string, underlying error) *Error {
	if category == NotFound && underlying == nil {
		underlying = sentinel.ErrNotFound
	}
	return &Error{
		Category:   category,
		Service:    service,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == Timeout || category == ProviderOutage,
	}
}

func (e *Error) withStatus(code int) *Error {
	e.StatusCode = code
	return e
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Retryable
	}
	return false
}

// IsNotFound reports a definitive absence, as opposed to a failed lookup.
func IsNotFound(err error) bool {
	return CategoryOf(err) == NotFound
}

// CategoryOf extracts the category from an error.
func CategoryOf(err error) Category {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Category
	}
	return Internal
}
