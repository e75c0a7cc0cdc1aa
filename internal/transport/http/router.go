// Package httptransport is the gateway's HTTP surface. Handlers decode
// requests, delegate to the session, enrichment and policy components, and
// render results; they hold no access rules of their own.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"healthbff/internal/auth/device"
	dErrors "healthbff/pkg/domain-errors"
	"healthbff/pkg/platform/httputil"
	"healthbff/pkg/platform/middleware/admin"
	"healthbff/pkg/platform/middleware/metadata"
	"healthbff/pkg/platform/middleware/recovery"
	request "healthbff/pkg/platform/middleware/request"
	"healthbff/pkg/platform/middleware/requesttime"
)

// Authenticator attaches the request principal and enforces path categories.
type Authenticator interface {
	Middleware(next http.Handler) http.Handler
}

type RouterConfig struct {
	Logger         *slog.Logger
	Gatherer       prometheus.Gatherer
	Authenticator  Authenticator
	Device         *device.Service
	AdminToken     string
	RequestTimeout time.Duration
	// Clock stamps the request time; nil means time.Now.
	Clock func() time.Time
}

// Handlers are the route owners mounted by NewRouter. Admin may be nil.
type Handlers struct {
	Health *HealthHandler
	Auth   *AuthHandler
	Access *AccessHandler
	Admin  *AdminHandler
}

// NewRouter builds the middleware chain and mounts every route.
func NewRouter(cfg RouterConfig, h Handlers) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(recovery.Recover(logger))
	r.Use(request.RequestID)
	if cfg.Clock != nil {
		r.Use(requesttime.MiddlewareWithClock(cfg.Clock))
	} else {
		r.Use(requesttime.Middleware)
	}
	r.Use(metadata.ClientMetadata)
	if cfg.Device != nil {
		r.Use(cfg.Device.Middleware)
	}
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}
	if cfg.Authenticator != nil {
		r.Use(cfg.Authenticator.Middleware)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{
			"error":   "method_not_allowed",
			"message": r.Method + " is not supported on " + r.URL.Path,
		})
	})

	if h.Health != nil {
		r.Get("/health", h.Health.ServeHTTP)
	}
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	if h.Auth != nil {
		h.Auth.Register(r)
	}
	if h.Access != nil {
		h.Access.Register(r)
	}
	if h.Admin != nil {
		r.Route("/admin", func(ar chi.Router) {
			ar.Use(admin.RequireAdminToken(cfg.AdminToken, logger))
			h.Admin.Register(ar)
		})
	}
	return r
}
