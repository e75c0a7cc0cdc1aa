package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	enrichmentModels "healthbff/internal/enrichment/models"
	"healthbff/internal/platform/metrics"
	"healthbff/internal/policy"
	"healthbff/internal/principal"
	"healthbff/internal/upstream"
	dErrors "healthbff/pkg/domain-errors"
	"healthbff/pkg/platform/audit"
	"healthbff/pkg/platform/httputil"
	"healthbff/pkg/requestcontext"
)

// PolicyEngine decides access; a DENY comes back as a forbidden error.
type PolicyEngine interface {
	Authorize(subject *principal.AuthContext, resource policy.Resource, action policy.Action) (policy.Decision, error)
}

// MemberDirectory looks up a member's coverage for the partner view.
type MemberDirectory interface {
	FetchEligibility(ctx context.Context, enterpriseID string) (*enrichmentModels.Eligibility, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// AccessHandler serves every route gated by the policy engine.
type AccessHandler struct {
	engine         PolicyEngine
	members        MemberDirectory
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
}

func NewAccessHandler(engine PolicyEngine, members MemberDirectory, logger *slog.Logger, m *metrics.Metrics, auditPublisher AuditPublisher) *AccessHandler {
	return &AccessHandler{
		engine:         engine,
		members:        members,
		logger:         logger,
		metrics:        m,
		auditPublisher: auditPublisher,
	}
}

func (h *AccessHandler) Register(r chi.Router) {
	r.Post("/api/v1/authorize", h.handleAuthorize)
	r.Post("/api/v1/members/{memberId}/documents", h.handleDocumentUpload)
	r.Get("/api/partner/v1/members/{memberId}", h.handlePartnerMemberView)
}

type authorizeRequest struct {
	Resource struct {
		Type      string `json:"type"`
		ID        string `json:"id"`
		Sensitive bool   `json:"sensitive"`
	} `json:"resource"`
	Action string `json:"action"`
}

func (h *AccessHandler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	ac, ok := requireAuthContext(w, r)
	if !ok {
		return
	}
	var req authorizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	resType, ok := policy.ParseResourceType(strings.ToUpper(req.Resource.Type))
	if !ok {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeInvalidInput, "unknown resource type").
			WithDetails(map[string]any{"field": "resource.type"}))
		return
	}
	action, ok := policy.ParseAction(strings.ToUpper(req.Action))
	if !ok {
		httputil.WriteError(w, r, dErrors.New(dErrors.CodeInvalidInput, "unknown action").
			WithDetails(map[string]any{"field": "action"}))
		return
	}
	resource := policy.Resource{Type: resType, ID: strings.TrimSpace(req.Resource.ID), Sensitive: req.Resource.Sensitive}

	decision, err := h.authorize(r.Context(), ac, resource, action)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, decision)
}

type documentUploadResponse struct {
	MemberID string          `json:"memberId"`
	Status   string          `json:"status"`
	Decision policy.Decision `json:"decision"`
}

func (h *AccessHandler) handleDocumentUpload(w http.ResponseWriter, r *http.Request) {
	ac, ok := requireAuthContext(w, r)
	if !ok {
		return
	}
	memberID := chi.URLParam(r, "memberId")
	resource := policy.Resource{Type: policy.ResourceDocument, ID: memberID}

	decision, err := h.authorize(r.Context(), ac, resource, policy.ActionUpload)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, documentUploadResponse{
		MemberID: memberID,
		Status:   "accepted",
		Decision: decision,
	})
}

type partnerMemberResponse struct {
	MemberID    string                        `json:"memberId"`
	ViewedBy    string                        `json:"viewedBy"`
	Eligibility *enrichmentModels.Eligibility `json:"eligibility"`
}

func (h *AccessHandler) handlePartnerMemberView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac, ok := requireAuthContext(w, r)
	if !ok {
		return
	}
	memberID := chi.URLParam(r, "memberId")
	resource := policy.Resource{Type: policy.ResourceMember, ID: memberID}
	if _, err := h.authorize(ctx, ac, resource, policy.ActionView); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	elig, err := h.members.FetchEligibility(ctx, memberID)
	if err != nil {
		h.logger.WarnContext(ctx, "partner member lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"member_id", memberID,
			"error", err.Error(),
		)
		if upstream.IsNotFound(err) {
			httputil.WriteError(w, r, dErrors.Wrap(err, dErrors.CodeNotFound, "member not found"))
			return
		}
		httputil.WriteError(w, r, dErrors.Wrap(err, dErrors.CodeUnavailable, "eligibility service unavailable"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, partnerMemberResponse{
		MemberID:    memberID,
		ViewedBy:    ac.PartnerID,
		Eligibility: elig,
	})
}

// authorize evaluates, then records the decision on metrics and audit.
func (h *AccessHandler) authorize(ctx context.Context, ac *principal.AuthContext, resource policy.Resource, action policy.Action) (policy.Decision, error) {
	decision, err := h.engine.Authorize(ac, resource, action)
	h.metrics.IncPolicyDecision(decision.PolicyID, strings.ToLower(string(decision.Outcome)))

	event := audit.Event{
		SubjectID: ac.SubjectID,
		SessionID: ac.SessionID,
		AuthType:  string(ac.AuthType),
		TargetID:  resource.ID,
		PartnerID: ac.PartnerID,
		Reason:    decision.PolicyID,
		IP:        requestcontext.ClientIP(ctx),
		RequestID: requestcontext.RequestID(ctx),
	}
	switch {
	case err != nil:
		h.logger.InfoContext(ctx, "access denied",
			"request_id", event.RequestID,
			"policy_id", decision.PolicyID,
			"action", string(action),
			"resource_type", string(resource.Type),
		)
		event.Action = string(audit.EventPolicyDenied)
		event.Decision = "deny"
		event.Severity = audit.SeverityWarning
		h.emit(ctx, event)
	case action == policy.ActionViewSensitive || resource.Sensitive:
		event.Action = string(audit.EventSensitiveAccessGranted)
		event.Decision = "allow"
		event.Severity = audit.SeverityInfo
		h.emit(ctx, event)
	}
	return decision, err
}

func (h *AccessHandler) emit(ctx context.Context, event audit.Event) {
	if h.auditPublisher == nil {
		return
	}
	if err := h.auditPublisher.Emit(ctx, event); err != nil {
		h.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err.Error(),
		)
	}
}
