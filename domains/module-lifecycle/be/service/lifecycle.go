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

// DefaultMaxAutomaticRetries is how many times a non-human caller may move an
// errored assignment back into provisioning.
const DefaultMaxAutomaticRetries = 3

// Options configures a LifecycleService.
type Options struct {
	// Provisioner is told about every committed move into provisioning. Optional.
	Provisioner Provisioner
	Logger      *zap.Logger
	// MaxAutomaticRetries caps error -> provisioning for system callers. Zero disables the cap.
	MaxAutomaticRetries int
	Now                 func() time.Time
}

// LifecycleService owns every write to module assignments.
type LifecycleService struct {
	store       AssignmentStore
	policies    *PolicyResolver
	audit       *AuditTrail
	provisioner Provisioner
	logger      *zap.Logger
	maxRetries  int
	now         func() time.Time
}

// NewLifecycleService wires the service. It panics on missing dependencies.
func NewLifecycleService(store AssignmentStore, policies *PolicyResolver, audit *AuditTrail, opts Options) *LifecycleService {
	if store == nil {
		panic("assignment store is required")
	}
	if policies == nil {
		panic("policy resolver is required")
	}
	if audit == nil {
		panic("audit trail is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	maxRetries := opts.MaxAutomaticRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &LifecycleService{
		store:       store,
		policies:    policies,
		audit:       audit,
		provisioner: opts.Provisioner,
		logger:      logger,
		maxRetries:  maxRetries,
		now:         now,
	}
}

// RequestInput describes a tenant asking for a module.
type RequestInput struct {
	TenantID uuid.UUID
	ModuleID string
	Reason   string
	Metadata map[string]any
}

// RequestResult carries the created assignment and, under manual approval,
// the pending request created with it.
type RequestResult struct {
	Assignment Assignment
	Approval   *ApprovalRequest
}

// UpdateInput describes a requested status change.
type UpdateInput struct {
	TenantID uuid.UUID
	ModuleID string
	Status   status.Operational
	Reason   string
	Payload  status.Payload
}

// TransitionResult reports a committed transition.
type TransitionResult struct {
	Previous   status.Operational
	Current    status.Operational
	Assignment Assignment
}

// RequestModule creates the assignment for a tenant-module pair in the
// initial status dictated by the module's policy.
func (s *LifecycleService) RequestModule(ctx context.Context, actor requesttrace.AuditInfo, in RequestInput) (RequestResult, error) {
	in.ModuleID = strings.TrimSpace(in.ModuleID)
	in.Reason = strings.TrimSpace(in.Reason)

	fields := FieldErrors{}
	if in.TenantID == uuid.Nil {
		fields.add("tenant_id", "tenant id is required")
	}
	if in.ModuleID == "" {
		fields.add("module_id", "module id is required")
	}
	if actor.ActorKind == requesttrace.ActorKindAnonymous {
		fields.add("requested_by", "an authenticated or system actor is required")
	}
	if len(fields) > 0 {
		return RequestResult{}, &ValidationError{Fields: fields}
	}

	policy, err := s.policies.Resolve(ctx, in.ModuleID)
	if err != nil {
		return RequestResult{}, err
	}
	if err := s.checkRequestable(ctx, actor, in.TenantID, policy); err != nil {
		return RequestResult{}, err
	}

	now := s.now()
	initial := status.InitialFor(policy.RequiresApproval())
	reason := in.Reason
	if reason == "" {
		reason = "module requested"
	}

	assignment := Assignment{
		TenantID:           in.TenantID,
		ModuleID:           in.ModuleID,
		Status:             initial,
		Health:             status.Unknown,
		LastStatusChange:   now,
		StatusChangeReason: reason,
		Metadata:           in.Metadata,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	var (
		payload  status.Payload
		approval *ApprovalRequest
	)
	if initial == status.Provisioning {
		started := now
		assignment.ProvisioningStartedAt = &started
		payload = status.ProvisioningStarted{Trigger: status.TriggerAutoApprove}
	} else {
		approval = &ApprovalRequest{
			ID:            uuid.New(),
			TenantID:      in.TenantID,
			ModuleID:      in.ModuleID,
			RequestedBy:   actorUserID(actor),
			RequestReason: in.Reason,
			Status:        ApprovalPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}

	history := s.audit.record(actor, assignment, nil, reason, payload, now)
	created, err := s.store.CreateAssignment(ctx, NewAssignment{
		Assignment: assignment,
		History:    history,
		Approval:   approval,
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			metrics.RecordRejection(metrics.ReasonConflict)
		}
		return RequestResult{}, wrapStoreErr("create module assignment", err)
	}

	metrics.RecordTransition("", string(created.Status))
	if created.Status == status.Provisioning {
		s.dispatchProvisioning(ctx, actor, created, status.TriggerAutoApprove)
	}

	return RequestResult{Assignment: created, Approval: approval}, nil
}

func (s *LifecycleService) checkRequestable(ctx context.Context, actor requesttrace.AuditInfo, tenantID uuid.UUID, policy ModulePolicy) error {
	if policy.Visibility == VisibilityPrivate && actor.ActorKind != requesttrace.ActorKindSystem {
		metrics.RecordRejection(metrics.ReasonPolicy)
		return newValidationError(map[string]string{"module_id": "module is not available for request"})
	}
	if policy.EffectiveRequestPolicy() == RequestDenyAll {
		metrics.RecordRejection(metrics.ReasonPolicy)
		return newValidationError(map[string]string{"module_id": "module policy denies all requests"})
	}

	existing, err := s.store.GetAssignment(ctx, tenantID, policy.ModuleID)
	switch {
	case err == nil:
		return newValidationError(map[string]string{
			"module_id": fmt.Sprintf("module is already assigned with status %s", existing.Status),
		})
	case !errors.Is(err, ErrNotFound):
		return wrapStoreErr("get module assignment", err)
	}

	var missing []string
	for _, dep := range policy.Dependencies {
		a, err := s.store.GetAssignment(ctx, tenantID, dep)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return wrapStoreErr("get dependency assignment", err)
		}
		if err != nil || !a.Status.Active() {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		metrics.RecordRejection(metrics.ReasonPolicy)
		return newValidationError(map[string]string{
			"dependencies": "required modules are not enabled: " + strings.Join(missing, ", "),
		})
	}
	return nil
}

// UpdateStatus moves an assignment to in.Status if the transition is legal and
// nobody changed the assignment since it was read.
func (s *LifecycleService) UpdateStatus(ctx context.Context, actor requesttrace.AuditInfo, in UpdateInput) (TransitionResult, error) {
	in.ModuleID = strings.TrimSpace(in.ModuleID)
	if in.TenantID == uuid.Nil || in.ModuleID == "" {
		return TransitionResult{}, newValidationError(map[string]string{"assignment": "tenant id and module id are required"})
	}

	current, err := s.Get(ctx, in.TenantID, in.ModuleID)
	if err != nil {
		return TransitionResult{}, err
	}
	return s.transition(ctx, actor, current, in.Status, strings.TrimSpace(in.Reason), in.Payload, nil)
}

// transition validates and persists one move of current to target. decision,
// when set, commits in the same unit.
func (s *LifecycleService) transition(
	ctx context.Context,
	actor requesttrace.AuditInfo,
	current Assignment,
	target status.Operational,
	reason string,
	payload status.Payload,
	decision *ApprovalDecision,
) (TransitionResult, error) {
	if !target.Valid() {
		return TransitionResult{}, newValidationError(map[string]string{"status": fmt.Sprintf("unknown status %q", target)})
	}
	if !status.IsValidTransition(current.Status, target) {
		metrics.RecordRejection(metrics.ReasonIllegalTransition)
		verr := newValidationError(map[string]string{
			"status": fmt.Sprintf("cannot move from %s to %s", current.Status, target),
		})
		verr.AllowedNext = status.ValidNextStates(current.Status)
		return TransitionResult{}, verr
	}
	if err := status.CheckTarget(payload, target); err != nil {
		return TransitionResult{}, newValidationError(map[string]string{"metadata": err.Error()})
	}
	if err := s.checkRetry(actor, current, target); err != nil {
		return TransitionResult{}, err
	}

	now := s.now()
	next, recorded := s.apply(actor, current, target, reason, payload, now)
	previous := current.Status
	history := s.audit.record(actor, next, &previous, reason, recorded, now)

	updated, err := s.store.ApplyTransition(ctx, Transition{
		Expected: previous,
		Next:     next,
		History:  history,
		Decision: decision,
		Settle:   settlementFor(actor, previous, target, decision, reason, now),
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			metrics.RecordRejection(metrics.ReasonConflict)
		}
		return TransitionResult{}, wrapStoreErr("apply status transition", err)
	}

	metrics.RecordTransition(string(previous), string(updated.Status))
	if started, ok := recorded.(status.ProvisioningStarted); ok {
		s.dispatchProvisioning(ctx, actor, updated, started.Trigger)
	}

	return TransitionResult{Previous: previous, Current: updated.Status, Assignment: updated}, nil
}

// settlementFor closes the pending request of an assignment that leaves
// pending_approval through a direct status update, so no request outlives the
// step it gates.
func settlementFor(
	actor requesttrace.AuditInfo,
	from, target status.Operational,
	decision *ApprovalDecision,
	reason string,
	at time.Time,
) *PendingSettlement {
	if decision != nil || from != status.PendingApproval {
		return nil
	}
	settled := ApprovalApproved
	if target != status.Provisioning {
		settled = ApprovalDenied
	}
	notes := reason
	if notes == "" {
		notes = fmt.Sprintf("settled by direct move to %s", target)
	}
	return &PendingSettlement{
		Status:      settled,
		ReviewedBy:  actorUserID(actor),
		ReviewNotes: notes,
		ReviewedAt:  at,
	}
}

// checkRetry guards error -> provisioning for callers that are not people.
func (s *LifecycleService) checkRetry(actor requesttrace.AuditInfo, current Assignment, target status.Operational) error {
	if current.Status != status.Error || target != status.Provisioning {
		return nil
	}
	if actor.ActorKind == requesttrace.ActorKindUser {
		return nil
	}
	if status.RequiresHuman(current.ErrorDetails) {
		metrics.RecordRejection(metrics.ReasonRetryLimit)
		return newValidationError(map[string]string{
			"actor": "a reviewer must reopen an assignment whose request was denied or withdrawn",
		})
	}
	if s.maxRetries > 0 && current.RetryCount >= s.maxRetries {
		metrics.RecordRejection(metrics.ReasonRetryLimit)
		return newValidationError(map[string]string{
			"retry_count": fmt.Sprintf("automatic retries exhausted after %d failures", current.RetryCount),
		})
	}
	return nil
}

// apply computes the assignment after the move and the payload to record.
func (s *LifecycleService) apply(
	actor requesttrace.AuditInfo,
	current Assignment,
	target status.Operational,
	reason string,
	payload status.Payload,
	now time.Time,
) (Assignment, status.Payload) {
	next := current
	next.Status = target
	next.StatusChangeReason = reason
	next.LastStatusChange = now
	next.UpdatedAt = now
	next.ErrorDetails = nil
	if health, ok := status.HealthFor(target); ok {
		next.Health = health
	}

	switch target {
	case status.Provisioning:
		started := now
		next.ProvisioningStartedAt = &started

		ps, ok := payload.(status.ProvisioningStarted)
		if !ok {
			ps = status.ProvisioningStarted{Trigger: defaultTrigger(current.Status)}
		}
		if by := actorUserID(actor); by != nil {
			approvedAt := now
			next.ApprovedBy = by
			next.ApprovedAt = &approvedAt
			if ps.ApprovedBy == nil {
				ps.ApprovedBy = by
			}
		}
		payload = ps
	case status.Enabled, status.UpToDate:
		next.RetryCount = 0
	case status.Error:
		next.RetryCount = current.RetryCount + 1
		if payload == nil {
			payload = status.ProvisioningFailed{Code: "unspecified", Message: reason}
		}
		next.ErrorDetails = payload
	}

	return next, payload
}

func defaultTrigger(from status.Operational) string {
	switch from {
	case status.PendingApproval:
		return status.TriggerApproval
	case status.Error:
		return status.TriggerRetry
	default:
		return status.TriggerReprovision
	}
}

func (s *LifecycleService) dispatchProvisioning(ctx context.Context, actor requesttrace.AuditInfo, a Assignment, trigger string) {
	if s.provisioner == nil {
		return
	}
	err := s.provisioner.ProvisioningRequested(ctx, ProvisioningRequest{
		TenantID:    a.TenantID,
		ModuleID:    a.ModuleID,
		Trigger:     trigger,
		RequestedBy: actorUserID(actor),
		RequestID:   actor.RequestID,
		RequestedAt: a.LastStatusChange,
	})
	if err != nil {
		metrics.RecordCollaboratorFailure(metrics.CollaboratorProvisioner)
		s.logger.Warn("provisioner notification failed",
			append(logging.Request(logging.Lifecycle(a.TenantID, a.ModuleID), actor.RequestID), zap.Error(err))...)
	}
}

// Get returns the assignment for a pair or ErrAssignmentNotFound.
func (s *LifecycleService) Get(ctx context.Context, tenantID uuid.UUID, moduleID string) (Assignment, error) {
	a, err := s.store.GetAssignment(ctx, tenantID, moduleID)
	if err != nil {
		return Assignment{}, wrapStoreErr("get module assignment", err)
	}
	return a, nil
}

// ListForTenant returns every assignment of one tenant.
func (s *LifecycleService) ListForTenant(ctx context.Context, tenantID uuid.UUID) ([]Assignment, error) {
	return s.List(ctx, AssignmentFilter{TenantID: &tenantID})
}

func (s *LifecycleService) List(ctx context.Context, filter AssignmentFilter) ([]Assignment, error) {
	items, err := s.store.ListAssignments(ctx, filter)
	if err != nil {
		return nil, wrapStoreErr("list module assignments", err)
	}
	return items, nil
}

// AutoEnableOutcome reports what AutoEnable did with one catalog module.
type AutoEnableOutcome struct {
	ModuleID string
	Result   *RequestResult
	Skipped  bool
	Err      error
}

// AutoEnable requests every module whose auto-enable policy covers the tenant.
// Modules already assigned are skipped; per-module failures do not stop the run.
func (s *LifecycleService) AutoEnable(ctx context.Context, actor requesttrace.AuditInfo, tenantID uuid.UUID, newTenant bool) ([]AutoEnableOutcome, error) {
	if tenantID == uuid.Nil {
		return nil, newValidationError(map[string]string{"tenant_id": "tenant id is required"})
	}
	candidates, err := s.policies.AutoEnableCandidates(ctx, newTenant)
	if err != nil {
		return nil, err
	}

	outcomes := make([]AutoEnableOutcome, 0, len(candidates))
	for _, policy := range candidates {
		outcome := AutoEnableOutcome{ModuleID: policy.ModuleID}

		_, err := s.store.GetAssignment(ctx, tenantID, policy.ModuleID)
		switch {
		case err == nil:
			outcome.Skipped = true
		case !errors.Is(err, ErrNotFound):
			outcome.Err = wrapStoreErr("get module assignment", err)
		default:
			res, err := s.RequestModule(ctx, actor, RequestInput{
				TenantID: tenantID,
				ModuleID: policy.ModuleID,
				Reason:   "auto-enabled by catalog policy",
			})
			if err != nil {
				outcome.Err = err
			} else {
				outcome.Result = &res
			}
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}
