package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const assignmentColumns = `tenant_id, module_id, operational_status, health_status, retry_count, error_details,
        last_status_change, status_change_reason, provisioning_started_at, approved_by, approved_at,
        metadata, created_at, updated_at`

// AssignmentFilter narrows List. Nil fields are ignored.
type AssignmentFilter struct {
	TenantID *uuid.UUID
	ModuleID *string
	Status   *string
}

// CreateAssignmentParams is written in one transaction.
type CreateAssignmentParams struct {
	Assignment AssignmentRecord
	Approval   *ApprovalRequestRecord
	History    HistoryRecord
}

// DecisionParams closes a pending approval request.
type DecisionParams struct {
	RequestID   uuid.UUID
	Status      string
	ReviewedBy  *string
	ReviewNotes string
	ReviewedAt  time.Time
}

// SettleParams closes the pair's pending request, if there is one.
type SettleParams struct {
	Status      string
	ReviewedBy  *string
	ReviewNotes string
	ReviewedAt  time.Time
}

// TransitionParams replaces an assignment only while its stored status equals
// ExpectedStatus. History, Decision and Settle commit with it or not at all.
type TransitionParams struct {
	ExpectedStatus string
	Next           AssignmentRecord
	History        HistoryRecord
	Decision       *DecisionParams
	Settle         *SettleParams
}

// AssignmentStore persists module_assignments together with the rows that
// must change atomically with them.
type AssignmentStore struct {
	db *LifecycleDB
}

func NewAssignmentStore(db *LifecycleDB) (*AssignmentStore, error) {
	if db == nil {
		return nil, errors.New("lifecycle db is required")
	}
	return &AssignmentStore{db: db}, nil
}

func (s *AssignmentStore) Get(ctx context.Context, tenantID uuid.UUID, moduleID string) (AssignmentRecord, error) {
	var out AssignmentRecord
	err := s.db.WithReadTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanAssignment(tx.QueryRow(ctx,
			`SELECT `+assignmentColumns+` FROM module_assignments WHERE tenant_id = $1 AND module_id = $2`,
			tenantID, moduleID))
		return err
	})
	return out, err
}

func (s *AssignmentStore) List(ctx context.Context, filter AssignmentFilter) ([]AssignmentRecord, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.TenantID != nil {
		args = append(args, *filter.TenantID)
		clauses = append(clauses, fmt.Sprintf("tenant_id = $%d", len(args)))
	}
	if filter.ModuleID != nil {
		args = append(args, *filter.ModuleID)
		clauses = append(clauses, fmt.Sprintf("module_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("operational_status = $%d", len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	var out []AssignmentRecord
	err := s.db.WithReadTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, fmt.Sprintf(`SELECT %s FROM module_assignments %s ORDER BY tenant_id, module_id`, assignmentColumns, where), args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanAssignment(rows)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	return out, err
}

// Create inserts the assignment, the optional pending request and the first
// history entry.
func (s *AssignmentStore) Create(ctx context.Context, params CreateAssignmentParams) (AssignmentRecord, error) {
	a := params.Assignment
	if a.TenantID == uuid.Nil || strings.TrimSpace(a.ModuleID) == "" {
		return AssignmentRecord{}, errors.New("tenant id and module id are required")
	}

	var out AssignmentRecord
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            INSERT INTO module_assignments (
                tenant_id, module_id, operational_status, health_status, retry_count, error_details,
                last_status_change, status_change_reason, provisioning_started_at, approved_by, approved_at,
                metadata, created_at, updated_at
            ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
            RETURNING `+assignmentColumns,
			a.TenantID, a.ModuleID, a.OperationalStatus, a.HealthStatus, a.RetryCount, nullableJSON(a.ErrorDetails),
			a.LastStatusChange, a.StatusChangeReason, a.ProvisioningStartedAt, a.ApprovedBy, a.ApprovedAt,
			metadataJSON(a.Metadata), a.CreatedAt, a.UpdatedAt,
		)
		var err error
		out, err = scanAssignment(row)
		if err != nil {
			if isUniqueViolation(err, assignmentsPKey) {
				return ErrDuplicateAssignment
			}
			return err
		}

		if req := params.Approval; req != nil {
			_, err := tx.Exec(ctx, `
                INSERT INTO module_approval_requests (
                    id, tenant_id, module_id, requested_by, request_reason, status,
                    reviewed_by, review_notes, created_at, updated_at, reviewed_at
                ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
				req.ID, req.TenantID, req.ModuleID, req.RequestedBy, req.RequestReason, req.Status,
				req.ReviewedBy, req.ReviewNotes, req.CreatedAt, req.UpdatedAt, req.ReviewedAt,
			)
			if err != nil {
				if isUniqueViolation(err, onePendingIndexName) {
					return ErrDuplicatePendingRequest
				}
				return fmt.Errorf("insert approval request: %w", err)
			}
		}

		return insertHistory(ctx, tx, params.History)
	})
	return out, err
}

// Transition applies a conditional update. Zero matched rows roll the whole
// unit back with ErrStaleStatus, ErrRequestNotPending or ErrNotFound.
func (s *AssignmentStore) Transition(ctx context.Context, params TransitionParams) (AssignmentRecord, error) {
	n := params.Next

	var out AssignmentRecord
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            UPDATE module_assignments SET
                operational_status = $4,
                health_status = $5,
                retry_count = $6,
                error_details = $7,
                last_status_change = $8,
                status_change_reason = $9,
                provisioning_started_at = $10,
                approved_by = $11,
                approved_at = $12,
                metadata = $13,
                updated_at = $14
            WHERE tenant_id = $1 AND module_id = $2 AND operational_status = $3
            RETURNING `+assignmentColumns,
			n.TenantID, n.ModuleID, params.ExpectedStatus,
			n.OperationalStatus, n.HealthStatus, n.RetryCount, nullableJSON(n.ErrorDetails),
			n.LastStatusChange, n.StatusChangeReason, n.ProvisioningStartedAt, n.ApprovedBy, n.ApprovedAt,
			metadataJSON(n.Metadata), n.UpdatedAt,
		)
		var err error
		out, err = scanAssignment(row)
		if errors.Is(err, ErrNotFound) {
			return missingOr(ctx, tx, ErrStaleStatus,
				`SELECT 1 FROM module_assignments WHERE tenant_id = $1 AND module_id = $2`, n.TenantID, n.ModuleID)
		}
		if err != nil {
			return err
		}

		if d := params.Decision; d != nil {
			tag, err := tx.Exec(ctx, `
                UPDATE module_approval_requests SET
                    status = $2, reviewed_by = $3, review_notes = $4, reviewed_at = $5, updated_at = $5
                WHERE id = $1 AND status = 'pending'`,
				d.RequestID, d.Status, d.ReviewedBy, d.ReviewNotes, d.ReviewedAt,
			)
			if err != nil {
				return fmt.Errorf("decide approval request: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return missingOr(ctx, tx, ErrRequestNotPending,
					`SELECT 1 FROM module_approval_requests WHERE id = $1`, d.RequestID)
			}
		}

		if st := params.Settle; st != nil {
			if _, err := tx.Exec(ctx, `
                UPDATE module_approval_requests SET
                    status = $3, reviewed_by = $4, review_notes = $5, reviewed_at = $6, updated_at = $6
                WHERE tenant_id = $1 AND module_id = $2 AND status = 'pending'`,
				n.TenantID, n.ModuleID, st.Status, st.ReviewedBy, st.ReviewNotes, st.ReviewedAt,
			); err != nil {
				return fmt.Errorf("settle pending approval request: %w", err)
			}
		}

		return insertHistory(ctx, tx, params.History)
	})
	return out, err
}

// missingOr distinguishes a row that does not exist from one that failed a precondition.
func missingOr(ctx context.Context, tx pgx.Tx, precondition error, query string, args ...any) error {
	var one int
	err := tx.QueryRow(ctx, query, args...).Scan(&one)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case err != nil:
		return err
	default:
		return precondition
	}
}

func insertHistory(ctx context.Context, tx pgx.Tx, h HistoryRecord) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO module_status_history (
            id, tenant_id, module_id, previous_status, new_status, changed_by, actor_kind,
            change_reason, change_metadata, request_id, created_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		h.ID, h.TenantID, h.ModuleID, h.PreviousStatus, h.NewStatus, h.ChangedBy, h.ActorKind,
		h.ChangeReason, nullableJSON(h.ChangeMetadata), h.RequestID, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

func metadataJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte(`{}`)
	}
	return raw
}

func scanAssignment(row pgx.Row) (AssignmentRecord, error) {
	var rec AssignmentRecord
	if err := row.Scan(&rec.TenantID, &rec.ModuleID, &rec.OperationalStatus, &rec.HealthStatus, &rec.RetryCount,
		&rec.ErrorDetails, &rec.LastStatusChange, &rec.StatusChangeReason, &rec.ProvisioningStartedAt,
		&rec.ApprovedBy, &rec.ApprovedAt, &rec.Metadata, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AssignmentRecord{}, ErrNotFound
		}
		return AssignmentRecord{}, err
	}
	return rec, nil
}
