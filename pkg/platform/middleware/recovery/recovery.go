// Package recovery converts handler panics into a generic 500 envelope.
package recovery

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	dErrors "healthbff/pkg/domain-errors"
	"healthbff/pkg/platform/httputil"
	"healthbff/pkg/requestcontext"
)

// Recover is the single top-level panic handler. The panic value and stack are
// logged; the client sees only the generic internal error body.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				ctx := r.Context()
				logger.ErrorContext(ctx, "panic recovered",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
					"panic", fmt.Sprint(rec),
					"stack", string(debug.Stack()),
				)
				httputil.WriteError(w, r, dErrors.New(dErrors.CodeInternal, "panic"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
