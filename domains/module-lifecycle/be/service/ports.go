package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/status"
)

// Catalog is the read side of the external module catalog.
// GetModule returns ErrModuleNotFound when the module does not exist.
type Catalog interface {
	GetModule(ctx context.Context, moduleID string) (CatalogModule, error)
	ListModules(ctx context.Context) ([]CatalogModule, error)
}

// NewAssignment is persisted as one atomic unit: the assignment, its creation
// history entry and, when approval is required, the pending request.
type NewAssignment struct {
	Assignment Assignment
	History    HistoryEntry
	Approval   *ApprovalRequest
}

// ApprovalDecision moves a pending request to a final status. It is applied
// only while the stored request is still pending.
type ApprovalDecision struct {
	RequestID   uuid.UUID
	Status      ApprovalStatus
	ReviewedBy  *string
	ReviewNotes string
	ReviewedAt  time.Time
}

// PendingSettlement closes whichever request of the pair is still pending when
// an assignment leaves pending_approval outside the approval workflow. A pair
// with no pending request is left untouched.
type PendingSettlement struct {
	Status      ApprovalStatus
	ReviewedBy  *string
	ReviewNotes string
	ReviewedAt  time.Time
}

// Transition is a conditional write: Next replaces the stored assignment only
// if the stored status still equals Expected. History, the optional Decision
// and the optional Settle are committed in the same unit.
type Transition struct {
	Expected status.Operational
	Next     Assignment
	History  HistoryEntry
	Decision *ApprovalDecision
	Settle   *PendingSettlement
}

// AssignmentStore persists assignments.
//
// CreateAssignment returns ErrAssignmentExists or ErrPendingRequestExists on
// uniqueness violations. ApplyTransition returns ErrStaleStatus when the
// stored status no longer matches, ErrRequestNotPending when the decision's
// request was decided concurrently, and leaves nothing behind in either case.
type AssignmentStore interface {
	GetAssignment(ctx context.Context, tenantID uuid.UUID, moduleID string) (Assignment, error)
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)
	CreateAssignment(ctx context.Context, in NewAssignment) (Assignment, error)
	ApplyTransition(ctx context.Context, t Transition) (Assignment, error)
}

// ApprovalStore reads approval requests. Writes go through AssignmentStore so
// they share its atomic units.
type ApprovalStore interface {
	GetApprovalRequest(ctx context.Context, id uuid.UUID) (ApprovalRequest, error)
	ListApprovalRequests(ctx context.Context, filter ApprovalFilter) ([]ApprovalRequest, error)
}

// HistoryStore reads the append-only transition history, oldest first.
type HistoryStore interface {
	QueryHistory(ctx context.Context, q HistoryQuery) ([]HistoryEntry, error)
}

// AssignmentCounts tallies assignments by current status and health.
type AssignmentCounts struct {
	ByStatus map[status.Operational]int
	ByHealth map[status.Health]int
	Total    int
}

// ApprovalTotals tallies approval requests. Reviewed and ReviewLatency cover
// approved and denied requests only.
type ApprovalTotals struct {
	Pending       int
	Approved      int
	Denied        int
	Cancelled     int
	Reviewed      int
	ReviewLatency time.Duration
}

// StatsSource aggregates over stored rows without writing.
type StatsSource interface {
	CountAssignments(ctx context.Context, window TimeWindow) (AssignmentCounts, error)
	SummarizeApprovals(ctx context.Context, window TimeWindow) (ApprovalTotals, error)
}

// Repository is the full persistence surface of the lifecycle engine.
type Repository interface {
	AssignmentStore
	ApprovalStore
	HistoryStore
	StatsSource
}

// ProvisioningRequest is handed to the external provisioner once an
// assignment has committed into provisioning.
type ProvisioningRequest struct {
	TenantID    uuid.UUID
	ModuleID    string
	Trigger     string
	RequestedBy *string
	RequestID   string
	RequestedAt time.Time
}

// Provisioner is the external component that performs provisioning and later
// calls back into UpdateStatus.
type Provisioner interface {
	ProvisioningRequested(ctx context.Context, req ProvisioningRequest) error
}

// ApprovalNotice informs the requester about a decision.
type ApprovalNotice struct {
	RequestID   uuid.UUID
	TenantID    uuid.UUID
	ModuleID    string
	Decision    ApprovalStatus
	RequestedBy *string
	ReviewedBy  *string
	Notes       string
	DecidedAt   time.Time
}

// Notifier delivers approval outcomes. Failures never undo a decision.
type Notifier interface {
	ApprovalDecided(ctx context.Context, notice ApprovalNotice) error
}

// UserDirectory resolves display names for listings.
type UserDirectory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}
