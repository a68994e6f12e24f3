package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/service"
	"github.com/zenGate-Global/retailops/platform/go/requesttrace"
)

func (h *Handler) tenantApprovals(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromPath(w, r, tenantApprovalsOperation)
	if !ok {
		return
	}

	views, err := h.approvals.ForTenant(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, r, tenantApprovalsOperation, err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalViews(views))
}

func (h *Handler) pendingApprovals(w http.ResponseWriter, r *http.Request) {
	views, err := h.approvals.Pending(r.Context())
	if err != nil {
		h.writeError(w, r, pendingApprovalsOperation, err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalViews(views))
}

func (h *Handler) getApproval(w http.ResponseWriter, r *http.Request) {
	req, ok := h.loadApproval(w, r, getApprovalOperation)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toApprovalDTO(req))
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, approveOperation, h.approvals.Approve)
}

func (h *Handler) deny(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, denyOperation, h.approvals.Deny)
}

type decideFunc func(ctx context.Context, reviewer requesttrace.AuditInfo, requestID uuid.UUID, notes string) (service.DecisionResult, error)

func (h *Handler) review(w http.ResponseWriter, r *http.Request, op operation, decide decideFunc) {
	requestID, ok := h.requestIDFromPath(w, r, op)
	if !ok {
		return
	}

	var body reviewBody
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			h.writeFieldProblem(w, r, op, "body", invalidBodyDetail)
			return
		}
	}

	res, err := decide(r.Context(), actorFrom(r), requestID, body.Notes)
	if err != nil {
		h.writeError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toDecisionDTO(res))
}

func (h *Handler) cancelApproval(w http.ResponseWriter, r *http.Request) {
	req, ok := h.loadApproval(w, r, cancelOperation)
	if !ok {
		return
	}

	var body cancelBody
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			h.writeFieldProblem(w, r, cancelOperation, "body", invalidBodyDetail)
			return
		}
	}

	res, err := h.approvals.Cancel(r.Context(), actorFrom(r), req.ID, body.Reason)
	if err != nil {
		h.writeError(w, r, cancelOperation, err)
		return
	}
	writeJSON(w, http.StatusOK, toDecisionDTO(res))
}

// loadApproval fetches {requestId} and checks tenant access.
func (h *Handler) loadApproval(w http.ResponseWriter, r *http.Request, op operation) (service.ApprovalRequest, bool) {
	requestID, ok := h.requestIDFromPath(w, r, op)
	if !ok {
		return service.ApprovalRequest{}, false
	}

	req, err := h.approvals.Get(r.Context(), requestID)
	if err != nil {
		h.writeError(w, r, op, err)
		return service.ApprovalRequest{}, false
	}
	if !canAccessTenant(r.Context(), req.TenantID) {
		h.writeForbidden(w, r, op)
		return service.ApprovalRequest{}, false
	}
	return req, true
}

func (h *Handler) requestIDFromPath(w http.ResponseWriter, r *http.Request, op operation) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "requestId"))
	if err != nil {
		h.writeFieldProblem(w, r, op, "requestId", "must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
