package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/status"
	"github.com/zenGate-Global/retailops/platform/go/requesttrace"
)

// Visibility controls who may see and request a module.
type Visibility string

const (
	VisibilityPublic     Visibility = "public"
	VisibilityPrivate    Visibility = "private"
	VisibilityRestricted Visibility = "restricted"
)

// RequestPolicy decides what happens when a tenant requests a module.
type RequestPolicy string

const (
	RequestAutoApprove    RequestPolicy = "auto_approve"
	RequestManualApproval RequestPolicy = "manual_approval"
	RequestDenyAll        RequestPolicy = "deny_all"
)

// AutoEnablePolicy decides which tenants receive a module without asking.
type AutoEnablePolicy string

const (
	AutoEnableAllTenants AutoEnablePolicy = "all_tenants"
	AutoEnableNewTenants AutoEnablePolicy = "new_tenants"
	AutoEnableNone       AutoEnablePolicy = "none"
)

// CatalogModule is the module catalog entry owned outside the lifecycle engine.
type CatalogModule struct {
	ID               string
	Name             string
	Description      *string
	Visibility       Visibility
	RequestPolicy    RequestPolicy
	AutoEnablePolicy AutoEnablePolicy
	Dependencies     []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ModulePolicy is the resolved request/visibility policy for one module.
type ModulePolicy struct {
	ModuleID         string
	Visibility       Visibility
	RequestPolicy    RequestPolicy
	AutoEnablePolicy AutoEnablePolicy
	Dependencies     []string
}

// EffectiveRequestPolicy applies visibility on top of the configured request policy:
// restricted modules are never auto-approved.
func (p ModulePolicy) EffectiveRequestPolicy() RequestPolicy {
	if p.Visibility == VisibilityRestricted && p.RequestPolicy == RequestAutoApprove {
		return RequestManualApproval
	}
	return p.RequestPolicy
}

// RequiresApproval reports whether a request must wait for a reviewer.
func (p ModulePolicy) RequiresApproval() bool {
	return p.EffectiveRequestPolicy() == RequestManualApproval
}

// Assignment is the single row describing one tenant-module pairing.
type Assignment struct {
	TenantID              uuid.UUID
	ModuleID              string
	Status                status.Operational
	Health                status.Health
	RetryCount            int
	ErrorDetails          status.Payload
	LastStatusChange      time.Time
	StatusChangeReason    string
	ProvisioningStartedAt *time.Time
	ApprovedBy            *string
	ApprovedAt            *time.Time
	Metadata              map[string]any
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ApprovalStatus is the state of a human review.
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalDenied    ApprovalStatus = "denied"
	ApprovalCancelled ApprovalStatus = "cancelled"
)

// ApprovalRequest is one human-in-the-loop decision unit.
type ApprovalRequest struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	ModuleID      string
	RequestedBy   *string
	RequestReason string
	Status        ApprovalStatus
	ReviewedBy    *string
	ReviewNotes   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ReviewedAt    *time.Time
}

// HistoryEntry is an immutable record of one transition. PreviousStatus is nil
// for the entry written when the assignment is created.
type HistoryEntry struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	ModuleID       string
	PreviousStatus *status.Operational
	NewStatus      status.Operational
	ChangedBy      *string
	ActorKind      requesttrace.ActorKind
	ChangeReason   string
	ChangeMetadata status.Payload
	RequestID      string
	CreatedAt      time.Time
}

// TimeWindow bounds a query; nil ends are open.
type TimeWindow struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether t falls inside the window (inclusive From, exclusive To).
func (w TimeWindow) Contains(t time.Time) bool {
	if w.From != nil && t.Before(*w.From) {
		return false
	}
	if w.To != nil && !t.Before(*w.To) {
		return false
	}
	return true
}

// AssignmentFilter narrows assignment listings.
type AssignmentFilter struct {
	TenantID *uuid.UUID
	ModuleID *string
	Status   *status.Operational
}

// ApprovalFilter narrows approval listings.
type ApprovalFilter struct {
	TenantID *uuid.UUID
	Status   *ApprovalStatus
}

// HistoryQuery narrows audit trail reads. Limit <= 0 means no limit.
type HistoryQuery struct {
	TenantID *uuid.UUID
	ModuleID *string
	Window   TimeWindow
	Limit    int
}
