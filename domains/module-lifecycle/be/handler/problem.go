package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/service"
)

const (
	problemTypeValidation     = "https://retailops.dev/problems/validation-error"
	problemTypeNotFound       = "https://retailops.dev/problems/not-found"
	problemTypeConflict       = "https://retailops.dev/problems/conflict"
	problemTypeForbidden      = "https://retailops.dev/problems/forbidden"
	problemTypeUnavailable    = "https://retailops.dev/problems/service-unavailable"
	problemTypeInternal       = "https://retailops.dev/problems/internal-error"
	problemContentType        = "application/problem+json"
	invalidBodyDetail         = "request body is not valid JSON for this operation"
	missingTenantAccessDetail = "the caller may not address this tenant"
)

type operation string

const (
	requestModuleOperation    operation = "modulesRequest"
	listTenantModulesOp       operation = "modulesListForTenant"
	getModuleOperation        operation = "modulesGet"
	updateStatusOperation     operation = "modulesUpdateStatus"
	historyOperation          operation = "modulesHistory"
	autoEnableOperation       operation = "modulesAutoEnable"
	listAssignmentsOperation  operation = "assignmentsList"
	tenantApprovalsOperation  operation = "approvalsListForTenant"
	pendingApprovalsOperation operation = "approvalsPending"
	getApprovalOperation      operation = "approvalsGet"
	approveOperation          operation = "approvalsApprove"
	denyOperation             operation = "approvalsDeny"
	cancelOperation           operation = "approvalsCancel"
	statsOperation            operation = "modulesStats"
)

// problemDetails is an RFC 7807 body. AllowedNextStates is set for illegal
// status transitions.
type problemDetails struct {
	Type              string              `json:"type,omitempty"`
	Title             string              `json:"title"`
	Status            int                 `json:"status"`
	Detail            string              `json:"detail,omitempty"`
	Errors            map[string][]string `json:"errors,omitempty"`
	AllowedNextStates []string            `json:"allowedNextStates,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op operation, err error) {
	problem := classifyError(err)

	logger := h.loggerFrom(r.Context())
	fields := []zap.Field{
		zap.String("operation", string(op)),
		zap.Int("status", problem.Status),
		zap.Error(err),
	}
	switch {
	case problem.Status >= http.StatusInternalServerError:
		logger.Error("module lifecycle operation failed", fields...)
	case problem.Status == http.StatusNotFound:
		logger.Info("module lifecycle resource not found", fields...)
	default:
		logger.Warn("module lifecycle request rejected", fields...)
	}

	writeProblem(w, problem)
}

func (h *Handler) writeFieldProblem(w http.ResponseWriter, r *http.Request, op operation, field, message string) {
	h.writeError(w, r, op, &service.ValidationError{Fields: service.FieldErrors{field: {message}}})
}

func (h *Handler) writeForbidden(w http.ResponseWriter, r *http.Request, op operation) {
	h.loggerFrom(r.Context()).Warn("module lifecycle tenant access denied", zap.String("operation", string(op)))
	writeProblem(w, problemDetails{
		Type:   problemTypeForbidden,
		Title:  "Forbidden",
		Status: http.StatusForbidden,
		Detail: missingTenantAccessDetail,
	})
}

func classifyError(err error) problemDetails {
	var validationErr *service.ValidationError
	var infraErr *service.InfrastructureError
	switch {
	case errors.As(err, &validationErr):
		p := problemDetails{
			Type:   problemTypeValidation,
			Title:  "Validation failed",
			Status: http.StatusBadRequest,
			Detail: "one or more fields are invalid",
		}
		if len(validationErr.Fields) > 0 {
			p.Errors = make(map[string][]string, len(validationErr.Fields))
			for field, messages := range validationErr.Fields {
				p.Errors[field] = append([]string(nil), messages...)
			}
		}
		if validationErr.AllowedNext != nil {
			p.AllowedNextStates = make([]string, 0, len(validationErr.AllowedNext))
			for _, s := range validationErr.AllowedNext {
				p.AllowedNextStates = append(p.AllowedNextStates, string(s))
			}
		}
		return p
	case errors.Is(err, service.ErrNotFound):
		return problemDetails{Type: problemTypeNotFound, Title: "Resource not found", Status: http.StatusNotFound, Detail: err.Error()}
	case errors.Is(err, service.ErrConflict):
		return problemDetails{Type: problemTypeConflict, Title: "Conflict", Status: http.StatusConflict, Detail: err.Error()}
	case errors.As(err, &infraErr):
		return problemDetails{Type: problemTypeUnavailable, Title: "Service unavailable", Status: http.StatusServiceUnavailable, Detail: "a backing store is unavailable"}
	default:
		return problemDetails{Type: problemTypeInternal, Title: "Internal server error", Status: http.StatusInternalServerError, Detail: "an unexpected error occurred"}
	}
}

func writeProblem(w http.ResponseWriter, p problemDetails) {
	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
