package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/status"
	"github.com/zenGate-Global/retailops/platform/go/logging"
	"github.com/zenGate-Global/retailops/platform/go/metrics"
	"github.com/zenGate-Global/retailops/platform/go/requesttrace"
)

// ApprovalOptions configures optional collaborators of the workflow.
type ApprovalOptions struct {
	Notifier  Notifier
	Directory UserDirectory
	Logger    *zap.Logger
}

// ApprovalWorkflow manages pending human decisions. Every decision is applied
// through the LifecycleService in the same unit as the assignment transition.
type ApprovalWorkflow struct {
	store     ApprovalStore
	lifecycle *LifecycleService
	policies  *PolicyResolver
	notifier  Notifier
	directory UserDirectory
	logger    *zap.Logger
}

func NewApprovalWorkflow(store ApprovalStore, lifecycle *LifecycleService, policies *PolicyResolver, opts ApprovalOptions) *ApprovalWorkflow {
	if store == nil {
		panic("approval store is required")
	}
	if lifecycle == nil {
		panic("lifecycle service is required")
	}
	if policies == nil {
		panic("policy resolver is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalWorkflow{
		store:     store,
		lifecycle: lifecycle,
		policies:  policies,
		notifier:  opts.Notifier,
		directory: opts.Directory,
		logger:    logger,
	}
}

// DecisionResult is the request after the decision and the transition it caused.
type DecisionResult struct {
	Request    ApprovalRequest
	Transition TransitionResult
}

// ApprovalView is a request enriched for listings. Module and the names are
// best effort and may be empty.
type ApprovalView struct {
	Request       ApprovalRequest
	Module        *CatalogModule
	RequesterName string
	ReviewerName  string
}

// Approve marks a pending request approved and moves its assignment into provisioning.
func (w *ApprovalWorkflow) Approve(ctx context.Context, reviewer requesttrace.AuditInfo, requestID uuid.UUID, notes string) (DecisionResult, error) {
	reviewedBy, err := requireReviewer(reviewer)
	if err != nil {
		return DecisionResult{}, err
	}
	notes = strings.TrimSpace(notes)
	reason := notes
	if reason == "" {
		reason = "approval granted"
	}
	payload := status.ProvisioningStarted{Trigger: status.TriggerApproval, ApprovedBy: reviewedBy}
	return w.decide(ctx, reviewer, requestID, ApprovalApproved, notes, reason, status.Provisioning, payload, nil)
}

// Deny marks a pending request denied and moves its assignment to error with
// the denial reason as error details. Notes are required.
func (w *ApprovalWorkflow) Deny(ctx context.Context, reviewer requesttrace.AuditInfo, requestID uuid.UUID, notes string) (DecisionResult, error) {
	reviewedBy, err := requireReviewer(reviewer)
	if err != nil {
		return DecisionResult{}, err
	}
	payload, err := status.NewApprovalDenied(notes, reviewedBy)
	if err != nil {
		return DecisionResult{}, newValidationError(map[string]string{"review_notes": err.Error()})
	}
	return w.decide(ctx, reviewer, requestID, ApprovalDenied, payload.DenialReason, payload.DenialReason, status.Error, payload, nil)
}

// Cancel withdraws a pending request. Only the original requester or a system
// actor may cancel.
func (w *ApprovalWorkflow) Cancel(ctx context.Context, actor requesttrace.AuditInfo, requestID uuid.UUID, reason string) (DecisionResult, error) {
	reason = strings.TrimSpace(reason)
	payload := status.RequestWithdrawn{Reason: reason, WithdrawnBy: actorUserID(actor)}
	recorded := reason
	if recorded == "" {
		recorded = "request withdrawn"
	}

	authorize := func(req ApprovalRequest) error {
		switch actor.ActorKind {
		case requesttrace.ActorKindSystem:
			return nil
		case requesttrace.ActorKindUser:
			if by := actorUserID(actor); by != nil && req.RequestedBy != nil && *by == *req.RequestedBy {
				return nil
			}
		}
		return newValidationError(map[string]string{"actor": "only the requester may cancel this request"})
	}
	return w.decide(ctx, actor, requestID, ApprovalCancelled, reason, recorded, status.Error, payload, authorize)
}

func (w *ApprovalWorkflow) decide(
	ctx context.Context,
	actor requesttrace.AuditInfo,
	requestID uuid.UUID,
	decision ApprovalStatus,
	notes string,
	reason string,
	target status.Operational,
	payload status.Payload,
	authorize func(ApprovalRequest) error,
) (DecisionResult, error) {
	req, err := w.Get(ctx, requestID)
	if err != nil {
		return DecisionResult{}, err
	}
	if req.Status != ApprovalPending {
		return DecisionResult{}, newValidationError(map[string]string{
			"status": fmt.Sprintf("approval request is already %s", req.Status),
		})
	}
	if authorize != nil {
		if err := authorize(req); err != nil {
			return DecisionResult{}, err
		}
	}

	current, err := w.lifecycle.Get(ctx, req.TenantID, req.ModuleID)
	if err != nil {
		return DecisionResult{}, err
	}
	if current.Status != status.PendingApproval {
		return DecisionResult{}, newValidationError(map[string]string{
			"status": fmt.Sprintf("assignment is %s, not awaiting approval", current.Status),
		})
	}

	decidedAt := w.lifecycle.now()
	reviewedBy := actorUserID(actor)
	result, err := w.lifecycle.transition(ctx, actor, current, target, reason, payload, &ApprovalDecision{
		RequestID:   req.ID,
		Status:      decision,
		ReviewedBy:  reviewedBy,
		ReviewNotes: notes,
		ReviewedAt:  decidedAt,
	})
	if err != nil {
		return DecisionResult{}, err
	}

	req.Status = decision
	req.ReviewedBy = reviewedBy
	req.ReviewNotes = notes
	req.ReviewedAt = &decidedAt
	req.UpdatedAt = decidedAt
	metrics.RecordDecision(string(decision), decidedAt.Sub(req.CreatedAt))

	w.notify(ctx, actor, req, decidedAt)
	return DecisionResult{Request: req, Transition: result}, nil
}

func (w *ApprovalWorkflow) notify(ctx context.Context, actor requesttrace.AuditInfo, req ApprovalRequest, decidedAt time.Time) {
	if w.notifier == nil {
		return
	}
	err := w.notifier.ApprovalDecided(ctx, ApprovalNotice{
		RequestID:   req.ID,
		TenantID:    req.TenantID,
		ModuleID:    req.ModuleID,
		Decision:    req.Status,
		RequestedBy: req.RequestedBy,
		ReviewedBy:  req.ReviewedBy,
		Notes:       req.ReviewNotes,
		DecidedAt:   decidedAt,
	})
	if err != nil {
		metrics.RecordCollaboratorFailure(metrics.CollaboratorNotifier)
		w.logger.Warn("approval notification failed",
			append(logging.Request(logging.Lifecycle(req.TenantID, req.ModuleID), actor.RequestID),
				zap.String("approval_request_id", req.ID.String()),
				zap.Error(err))...)
	}
}

func requireReviewer(actor requesttrace.AuditInfo) (*string, error) {
	by := actorUserID(actor)
	if by == nil {
		return nil, newValidationError(map[string]string{"reviewed_by": "a signed-in reviewer is required"})
	}
	return by, nil
}

// Get returns one approval request or ErrApprovalNotFound.
func (w *ApprovalWorkflow) Get(ctx context.Context, requestID uuid.UUID) (ApprovalRequest, error) {
	req, err := w.store.GetApprovalRequest(ctx, requestID)
	if err != nil {
		return ApprovalRequest{}, wrapStoreErr("get approval request", err)
	}
	return req, nil
}

// Pending lists every pending request, oldest first.
func (w *ApprovalWorkflow) Pending(ctx context.Context) ([]ApprovalView, error) {
	pending := ApprovalPending
	return w.list(ctx, ApprovalFilter{Status: &pending})
}

// ForTenant lists every request of one tenant regardless of status.
func (w *ApprovalWorkflow) ForTenant(ctx context.Context, tenantID uuid.UUID) ([]ApprovalView, error) {
	return w.list(ctx, ApprovalFilter{TenantID: &tenantID})
}

func (w *ApprovalWorkflow) list(ctx context.Context, filter ApprovalFilter) ([]ApprovalView, error) {
	requests, err := w.store.ListApprovalRequests(ctx, filter)
	if err != nil {
		return nil, wrapStoreErr("list approval requests", err)
	}

	modules := map[string]*CatalogModule{}
	names := map[string]string{}
	views := make([]ApprovalView, 0, len(requests))
	for _, req := range requests {
		view := ApprovalView{Request: req}

		module, seen := modules[req.ModuleID]
		if !seen {
			m, err := w.policies.Module(ctx, req.ModuleID)
			switch {
			case err == nil:
				module = &m
			case !errors.Is(err, ErrNotFound):
				w.logger.Warn("catalog lookup failed", zap.String("module_id", req.ModuleID), zap.Error(err))
			}
			modules[req.ModuleID] = module
		}
		view.Module = module
		view.RequesterName = w.displayName(ctx, req.RequestedBy, names)
		view.ReviewerName = w.displayName(ctx, req.ReviewedBy, names)
		views = append(views, view)
	}
	return views, nil
}

func (w *ApprovalWorkflow) displayName(ctx context.Context, userID *string, cache map[string]string) string {
	if w.directory == nil || userID == nil || *userID == "" {
		return ""
	}
	if name, ok := cache[*userID]; ok {
		return name
	}
	name, err := w.directory.DisplayName(ctx, *userID)
	if err != nil {
		metrics.RecordCollaboratorFailure(metrics.CollaboratorDirectory)
		w.logger.Warn("user directory lookup failed", zap.String("user_id", *userID), zap.Error(err))
		name = ""
	}
	cache[*userID] = name
	return name
}
