package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "healthbff/pkg/domain-errors"
	"healthbff/pkg/platform/httputil"
	request "healthbff/pkg/platform/middleware/request"
)

// HeaderAdminToken carries the operator token for /admin routes.
const HeaderAdminToken = "X-Admin-Token"

// RequireAdminToken rejects requests whose token does not match. An empty
// expected token disables the admin surface entirely.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(HeaderAdminToken)
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(w, r, dErrors.New(dErrors.CodeUnauthorized, "admin token required").WithReason("ADMIN_TOKEN_REQUIRED"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
