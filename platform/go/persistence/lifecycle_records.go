package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store errors. Callers translate them into domain errors.
var (
	ErrNotFound           = errors.New("record not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrDuplicate          = errors.New("duplicate record")

	// ErrStaleStatus: the assignment's stored status differs from the expected one.
	ErrStaleStatus = fmt.Errorf("%w: assignment status changed", ErrPreconditionFailed)
	// ErrRequestNotPending: the approval request was already decided.
	ErrRequestNotPending = fmt.Errorf("%w: approval request not pending", ErrPreconditionFailed)

	ErrDuplicateAssignment     = fmt.Errorf("%w: module assignment", ErrDuplicate)
	ErrDuplicatePendingRequest = fmt.Errorf("%w: pending approval request", ErrDuplicate)
)

const (
	uniqueViolation = "23505"

	assignmentsPKey     = "module_assignments_pkey"
	onePendingIndexName = "module_approval_requests_one_pending_idx"
)

// CatalogModuleRecord is a row of module_catalog.
type CatalogModuleRecord struct {
	ModuleID         string    `db:"module_id"`
	Name             string    `db:"name"`
	Description      *string   `db:"description"`
	Visibility       string    `db:"visibility"`
	RequestPolicy    string    `db:"request_policy"`
	AutoEnablePolicy string    `db:"auto_enable_policy"`
	Dependencies     []string  `db:"dependencies"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// AssignmentRecord is a row of module_assignments. JSON columns are kept raw.
type AssignmentRecord struct {
	TenantID              uuid.UUID       `db:"tenant_id"`
	ModuleID              string          `db:"module_id"`
	OperationalStatus     string          `db:"operational_status"`
	HealthStatus          string          `db:"health_status"`
	RetryCount            int             `db:"retry_count"`
	ErrorDetails          json.RawMessage `db:"error_details"`
	LastStatusChange      time.Time       `db:"last_status_change"`
	StatusChangeReason    string          `db:"status_change_reason"`
	ProvisioningStartedAt *time.Time      `db:"provisioning_started_at"`
	ApprovedBy            *string         `db:"approved_by"`
	ApprovedAt            *time.Time      `db:"approved_at"`
	Metadata              json.RawMessage `db:"metadata"`
	CreatedAt             time.Time       `db:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at"`
}

// ApprovalRequestRecord is a row of module_approval_requests.
type ApprovalRequestRecord struct {
	ID            uuid.UUID  `db:"id"`
	TenantID      uuid.UUID  `db:"tenant_id"`
	ModuleID      string     `db:"module_id"`
	RequestedBy   *string    `db:"requested_by"`
	RequestReason string     `db:"request_reason"`
	Status        string     `db:"status"`
	ReviewedBy    *string    `db:"reviewed_by"`
	ReviewNotes   string     `db:"review_notes"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	ReviewedAt    *time.Time `db:"reviewed_at"`
}

// HistoryRecord is a row of module_status_history.
type HistoryRecord struct {
	ID             uuid.UUID       `db:"id"`
	TenantID       uuid.UUID       `db:"tenant_id"`
	ModuleID       string          `db:"module_id"`
	PreviousStatus *string         `db:"previous_status"`
	NewStatus      string          `db:"new_status"`
	ChangedBy      *string         `db:"changed_by"`
	ActorKind      string          `db:"actor_kind"`
	ChangeReason   string          `db:"change_reason"`
	ChangeMetadata json.RawMessage `db:"change_metadata"`
	RequestID      string          `db:"request_id"`
	CreatedAt      time.Time       `db:"created_at"`
}

// isUniqueViolation reports whether err is a unique violation on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// nullableJSON maps empty raw JSON to SQL NULL.
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
