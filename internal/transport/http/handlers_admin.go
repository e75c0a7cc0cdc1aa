package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"healthbff/internal/upstream"
	dErrors "healthbff/pkg/domain-errors"
	"healthbff/pkg/platform/audit"
	"healthbff/pkg/platform/httputil"
	strutil "healthbff/pkg/platform/strings"
	"healthbff/pkg/requestcontext"
)

// HeaderAdminActor names the operator behind an admin call, for audit.
const HeaderAdminActor = "X-Admin-Actor"

type SessionAdmin interface {
	ForceLogout(ctx context.Context, subjectID, actorID string) (string, error)
}

type CacheAdmin interface {
	Evict(ctx context.Context, key string)
	EvictAll(ctx context.Context) int
}

// AdminHandler serves operator endpoints. cache is nil when caching is off.
type AdminHandler struct {
	sessions       SessionAdmin
	cache          CacheAdmin
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

func NewAdminHandler(sessions SessionAdmin, cache CacheAdmin, logger *slog.Logger, auditPublisher AuditPublisher) *AdminHandler {
	return &AdminHandler{
		sessions:       sessions,
		cache:          cache,
		logger:         logger,
		auditPublisher: auditPublisher,
	}
}

// Register mounts the routes relative to the /admin prefix.
func (h *AdminHandler) Register(r chi.Router) {
	r.Post("/subjects/{subjectId}/force-logout", h.handleForceLogout)
	r.Post("/cache/evict", h.handleEvict)
	r.Post("/cache/evict-all", h.handleEvictAll)
}

type forceLogoutResponse struct {
	SubjectID string `json:"subjectId"`
	Revoked   bool   `json:"revoked"`
}

func (h *AdminHandler) handleForceLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID := strings.TrimSpace(chi.URLParam(r, "subjectId"))
	if subjectID == "" {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeInvalidInput, "subject id is required"))
		return
	}
	actor := adminActor(r)

	revokedID, err := h.sessions.ForceLogout(ctx, subjectID, actor)
	if err != nil {
		h.logger.ErrorContext(ctx, "force logout failed",
			"request_id", requestcontext.RequestID(ctx),
			"subject_id", subjectID,
			"error", err.Error(),
		)
		httputil.WriteError(w, r, err)
		return
	}
	h.logger.InfoContext(ctx, "force logout",
		"request_id", requestcontext.RequestID(ctx),
		"subject_id", subjectID,
		"actor", actor,
		"revoked", revokedID != "",
	)
	httputil.WriteJSON(w, http.StatusOK, forceLogoutResponse{SubjectID: subjectID, Revoked: revokedID != ""})
}

// evictRequest names raw keys, or subjects and members whose backend
// snapshots should be dropped.
type evictRequest struct {
	Keys          []string `json:"keys"`
	SubjectIDs    []string `json:"subjectIds"`
	EnterpriseIDs []string `json:"enterpriseIds"`
}

type evictResponse struct {
	Evicted int `json:"evicted"`
}

func (h *AdminHandler) handleEvict(w http.ResponseWriter, r *http.Request) {
	if !h.cacheEnabled(w, r) {
		return
	}
	ctx := r.Context()
	var req evictRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	keys := append([]string{}, req.Keys...)
	for _, id := range strutil.DedupeAndTrim(req.SubjectIDs) {
		keys = append(keys, upstream.UserInfoKey(id), upstream.PermissionsKey(id))
	}
	for _, id := range strutil.DedupeAndTrim(req.EnterpriseIDs) {
		keys = append(keys, upstream.EligibilityKey(id))
	}
	keys = strutil.DedupeAndTrim(keys)
	if len(keys) == 0 {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeInvalidInput, "no cache keys given"))
		return
	}

	for _, k := range keys {
		h.cache.Evict(ctx, k)
	}
	h.audit(ctx, r, strings.Join(keys, ","))
	httputil.WriteJSON(w, http.StatusOK, evictResponse{Evicted: len(keys)})
}

func (h *AdminHandler) handleEvictAll(w http.ResponseWriter, r *http.Request) {
	if !h.cacheEnabled(w, r) {
		return
	}
	ctx := r.Context()
	n := h.cache.EvictAll(ctx)
	h.audit(ctx, r, "*")
	h.logger.InfoContext(ctx, "cache cleared",
		"request_id", requestcontext.RequestID(ctx),
		"shared_keys", n,
	)
	httputil.WriteJSON(w, http.StatusOK, evictResponse{Evicted: n})
}

func (h *AdminHandler) cacheEnabled(w http.ResponseWriter, r *http.Request) bool {
	if h.cache == nil {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeUnavailable, "cache is disabled").WithReason("CACHE_DISABLED"))
		return false
	}
	return true
}

func (h *AdminHandler) audit(ctx context.Context, r *http.Request, keys string) {
	if h.auditPublisher == nil {
		return
	}
	_ = h.auditPublisher.Emit(ctx, audit.Event{
		Action:    string(audit.EventCacheEvicted),
		ActorID:   adminActor(r),
		Reason:    keys,
		IP:        requestcontext.ClientIP(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Severity:  audit.SeverityInfo,
	})
}

func adminActor(r *http.Request) string {
	if actor := strings.TrimSpace(r.Header.Get(HeaderAdminActor)); actor != "" {
		return actor
	}
	return "admin"
}
