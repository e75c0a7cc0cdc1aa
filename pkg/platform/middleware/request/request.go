// Package request assigns every request a correlation id.
package request

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"healthbff/pkg/requestcontext"
)

// HeaderCorrelationID is read from callers and echoed on every response.
const HeaderCorrelationID = "X-Correlation-Id"

// Inbound ids are accepted only when they are short and printable so they are
// safe to log and to echo.
var validCorrelationID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// RequestID reuses a well-formed inbound correlation id or generates one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderCorrelationID)
		if !validCorrelationID.MatchString(id) {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderCorrelationID, id)

		next.ServeHTTP(w, r.WithContext(requestcontext.WithRequestID(r.Context(), id)))
	})
}

// GetRequestID returns the correlation id set by RequestID.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
