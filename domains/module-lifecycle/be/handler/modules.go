package handler

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/service"
	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/status"
)

var errLimit = errors.New("must be an integer between 1 and 1000")

func (h *Handler) requestModule(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromPath(w, r, requestModuleOperation)
	if !ok {
		return
	}

	var body requestModuleBody
	if err := decodeBody(r, &body); err != nil {
		h.writeFieldProblem(w, r, requestModuleOperation, "body", invalidBodyDetail)
		return
	}

	res, err := h.lifecycle.RequestModule(r.Context(), actorFrom(r), service.RequestInput{
		TenantID: tenantID,
		ModuleID: strings.TrimSpace(body.ModuleID),
		Reason:   body.Reason,
		Metadata: body.Metadata,
	})
	if err != nil {
		h.writeError(w, r, requestModuleOperation, err)
		return
	}

	w.Header().Set("Location", "/api/v1/tenants/"+tenantID.String()+"/modules/"+res.Assignment.ModuleID)
	writeJSON(w, http.StatusCreated, toRequestResultDTO(res))
}

func (h *Handler) listTenantModules(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromPath(w, r, listTenantModulesOp)
	if !ok {
		return
	}

	items, err := h.lifecycle.ListForTenant(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, r, listTenantModulesOp, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTOs(items))
}

func (h *Handler) getModule(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromPath(w, r, getModuleOperation)
	if !ok {
		return
	}

	a, err := h.lifecycle.Get(r.Context(), tenantID, chi.URLParam(r, "moduleId"))
	if err != nil {
		h.writeError(w, r, getModuleOperation, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(a))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromPath(w, r, updateStatusOperation)
	if !ok {
		return
	}

	var body updateStatusBody
	if err := decodeBody(r, &body); err != nil {
		h.writeFieldProblem(w, r, updateStatusOperation, "body", invalidBodyDetail)
		return
	}

	target, err := status.Parse(body.Status)
	if err != nil {
		h.writeFieldProblem(w, r, updateStatusOperation, "status", err.Error())
		return
	}

	var payload status.Payload
	if raw := bytes.TrimSpace(body.Payload); len(raw) > 0 {
		payload, err = status.Decode(raw)
		if err != nil {
			h.writeFieldProblem(w, r, updateStatusOperation, "payload", err.Error())
			return
		}
	}

	res, err := h.lifecycle.UpdateStatus(r.Context(), actorFrom(r), service.UpdateInput{
		TenantID: tenantID,
		ModuleID: chi.URLParam(r, "moduleId"),
		Status:   target,
		Reason:   body.Reason,
		Payload:  payload,
	})
	if err != nil {
		h.writeError(w, r, updateStatusOperation, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransitionDTO(res))
}

func (h *Handler) moduleHistory(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromPath(w, r, historyOperation)
	if !ok {
		return
	}

	window, fields := parseWindow(r)
	limit, err := parseLimit(r)
	if err != nil {
		fields["limit"] = append(fields["limit"], err.Error())
	}
	if len(fields) > 0 {
		h.writeError(w, r, historyOperation, &service.ValidationError{Fields: fields})
		return
	}

	moduleID := chi.URLParam(r, "moduleId")
	entries, err := h.history.Query(r.Context(), service.HistoryQuery{
		TenantID: &tenantID,
		ModuleID: &moduleID,
		Window:   window,
		Limit:    limit,
	})
	if err != nil {
		h.writeError(w, r, historyOperation, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryDTOs(entries))
}

func (h *Handler) autoEnable(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromPath(w, r, autoEnableOperation)
	if !ok {
		return
	}

	var body autoEnableBody
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			h.writeFieldProblem(w, r, autoEnableOperation, "body", invalidBodyDetail)
			return
		}
	}

	outcomes, err := h.lifecycle.AutoEnable(r.Context(), actorFrom(r), tenantID, body.NewTenant)
	if err != nil {
		h.writeError(w, r, autoEnableOperation, err)
		return
	}
	writeJSON(w, http.StatusOK, toAutoEnableDTOs(outcomes))
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter service.AssignmentFilter

	if raw := q.Get("tenantId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.writeFieldProblem(w, r, listAssignmentsOperation, "tenantId", "must be a UUID")
			return
		}
		filter.TenantID = &id
	}
	if raw := strings.TrimSpace(q.Get("moduleId")); raw != "" {
		filter.ModuleID = &raw
	}
	if raw := q.Get("status"); raw != "" {
		s, err := status.Parse(raw)
		if err != nil {
			h.writeFieldProblem(w, r, listAssignmentsOperation, "status", err.Error())
			return
		}
		filter.Status = &s
	}

	items, err := h.lifecycle.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, listAssignmentsOperation, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTOs(items))
}

func (h *Handler) moduleStats(w http.ResponseWriter, r *http.Request) {
	window, fields := parseWindow(r)
	if len(fields) > 0 {
		h.writeError(w, r, statsOperation, &service.ValidationError{Fields: fields})
		return
	}

	report, err := h.stats.Report(r.Context(), window)
	if err != nil {
		h.writeError(w, r, statsOperation, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(report))
}

// parseWindow reads RFC 3339 "from" and "to" query parameters.
func parseWindow(r *http.Request) (service.TimeWindow, service.FieldErrors) {
	fields := service.FieldErrors{}
	var window service.TimeWindow
	for _, name := range []string{"from", "to"} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fields[name] = append(fields[name], "must be an RFC 3339 timestamp")
			continue
		}
		ts = ts.UTC()
		if name == "from" {
			window.From = &ts
		} else {
			window.To = &ts
		}
	}
	return window, fields
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 1000 {
		return 0, errLimit
	}
	return n, nil
}
