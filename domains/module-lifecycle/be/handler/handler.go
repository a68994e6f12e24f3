package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/service"
	platformauth "github.com/zenGate-Global/retailops/platform/go/auth"
	platformlogging "github.com/zenGate-Global/retailops/platform/go/logging"
	"github.com/zenGate-Global/retailops/platform/go/requesttrace"
)

type Lifecycle interface {
	RequestModule(ctx context.Context, actor requesttrace.AuditInfo, in service.RequestInput) (service.RequestResult, error)
	UpdateStatus(ctx context.Context, actor requesttrace.AuditInfo, in service.UpdateInput) (service.TransitionResult, error)
	Get(ctx context.Context, tenantID uuid.UUID, moduleID string) (service.Assignment, error)
	ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]service.Assignment, error)
	List(ctx context.Context, filter service.AssignmentFilter) ([]service.Assignment, error)
	AutoEnable(ctx context.Context, actor requesttrace.AuditInfo, tenantID uuid.UUID, newTenant bool) ([]service.AutoEnableOutcome, error)
}

type Approvals interface {
	Approve(ctx context.Context, reviewer requesttrace.AuditInfo, requestID uuid.UUID, notes string) (service.DecisionResult, error)
	Deny(ctx context.Context, reviewer requesttrace.AuditInfo, requestID uuid.UUID, notes string) (service.DecisionResult, error)
	Cancel(ctx context.Context, actor requesttrace.AuditInfo, requestID uuid.UUID, reason string) (service.DecisionResult, error)
	Get(ctx context.Context, requestID uuid.UUID) (service.ApprovalRequest, error)
	Pending(ctx context.Context) ([]service.ApprovalView, error)
	ForTenant(ctx context.Context, tenantID uuid.UUID) ([]service.ApprovalView, error)
}

type History interface {
	Query(ctx context.Context, q service.HistoryQuery) ([]service.HistoryEntry, error)
}

type Stats interface {
	Report(ctx context.Context, window service.TimeWindow) (service.StatsReport, error)
}

// Deps are the services behind the HTTP surface.
type Deps struct {
	Lifecycle Lifecycle
	Approvals Approvals
	History   History
	Stats     Stats
}

// Handler exposes the module lifecycle over HTTP.
type Handler struct {
	lifecycle Lifecycle
	approvals Approvals
	history   History
	stats     Stats
	logger    *zap.Logger
}

// New constructs a Handler instance.
func New(deps Deps, logger *zap.Logger) *Handler {
	if deps.Lifecycle == nil || deps.Approvals == nil || deps.History == nil || deps.Stats == nil {
		panic("module lifecycle services are required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{
		lifecycle: deps.Lifecycle,
		approvals: deps.Approvals,
		history:   deps.History,
		stats:     deps.Stats,
		logger:    logger,
	}
}

// Routes registers every endpoint on r. Callers mount r under /api/v1 after
// authentication and request tracing.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(platformauth.RequireAuthenticated)

		r.Route("/tenants/{tenantId}", func(r chi.Router) {
			r.Post("/modules", h.requestModule)
			r.Get("/modules", h.listTenantModules)
			r.Get("/modules/{moduleId}", h.getModule)
			r.Get("/modules/{moduleId}/history", h.moduleHistory)
			r.Get("/approvals", h.tenantApprovals)

			r.With(platformauth.RequireRole(platformauth.RoleModuleOperator)).Patch("/modules/{moduleId}/status", h.updateStatus)
			r.With(platformauth.RequireRole(platformauth.RoleModuleOperator)).Post("/auto-enable", h.autoEnable)
		})

		r.Get("/approvals/{requestId}", h.getApproval)
		r.Post("/approvals/{requestId}/cancel", h.cancelApproval)

		r.Group(func(r chi.Router) {
			r.Use(platformauth.RequireRole(platformauth.RoleModuleReviewer))
			r.Get("/approvals/pending", h.pendingApprovals)
			r.Post("/approvals/{requestId}/approve", h.approve)
			r.Post("/approvals/{requestId}/deny", h.deny)
		})

		r.Group(func(r chi.Router) {
			r.Use(platformauth.RequireRole(platformauth.RoleModuleOperator))
			r.Get("/assignments", h.listAssignments)
			r.Get("/stats", h.moduleStats)
		})
	})
}

// tenantFromPath parses {tenantId} and checks the caller may address it.
func (h *Handler) tenantFromPath(w http.ResponseWriter, r *http.Request, op operation) (uuid.UUID, bool) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantId"))
	if err != nil {
		h.writeFieldProblem(w, r, op, "tenantId", "must be a UUID")
		return uuid.Nil, false
	}
	if !canAccessTenant(r.Context(), tenantID) {
		h.writeForbidden(w, r, op)
		return uuid.Nil, false
	}
	return tenantID, true
}

// canAccessTenant allows staff and service accounts everywhere and tenant
// users only inside their own tenant.
func canAccessTenant(ctx context.Context, tenantID uuid.UUID) bool {
	creds, ok := platformauth.UserFromContext(ctx)
	if !ok || creds == nil {
		return false
	}
	if creds.ServiceAccount || creds.HasRole(platformauth.RoleModuleOperator) || creds.HasRole(platformauth.RoleModuleReviewer) {
		return true
	}
	if creds.TenantID == nil {
		return false
	}
	own, err := uuid.Parse(*creds.TenantID)
	return err == nil && own == tenantID
}

func actorFrom(r *http.Request) requesttrace.AuditInfo {
	return requesttrace.FromContextOrAnonymous(r.Context())
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) loggerFrom(ctx context.Context) *zap.Logger {
	if logger, ok := platformlogging.FromContext(ctx); ok {
		return logger
	}
	return h.logger
}
