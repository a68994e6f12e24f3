package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const approvalColumns = `id, tenant_id, module_id, requested_by, request_reason, status, reviewed_by, review_notes,
        created_at, updated_at, reviewed_at`

// ApprovalFilter narrows List. Nil fields are ignored.
type ApprovalFilter struct {
	TenantID *uuid.UUID
	Status   *string
}

// ApprovalStore reads module_approval_requests. Inserts and decisions are
// written by AssignmentStore inside its units of work.
type ApprovalStore struct {
	db *LifecycleDB
}

func NewApprovalStore(db *LifecycleDB) (*ApprovalStore, error) {
	if db == nil {
		return nil, errors.New("lifecycle db is required")
	}
	return &ApprovalStore{db: db}, nil
}

func (s *ApprovalStore) Get(ctx context.Context, id uuid.UUID) (ApprovalRequestRecord, error) {
	var out ApprovalRequestRecord
	err := s.db.WithReadTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanApprovalRequest(tx.QueryRow(ctx, `SELECT `+approvalColumns+` FROM module_approval_requests WHERE id = $1`, id))
		return err
	})
	return out, err
}

// List returns matching requests, oldest first.
func (s *ApprovalStore) List(ctx context.Context, filter ApprovalFilter) ([]ApprovalRequestRecord, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.TenantID != nil {
		args = append(args, *filter.TenantID)
		clauses = append(clauses, fmt.Sprintf("tenant_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	var out []ApprovalRequestRecord
	err := s.db.WithReadTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, fmt.Sprintf(`SELECT %s FROM module_approval_requests %s ORDER BY created_at, id`, approvalColumns, where), args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanApprovalRequest(rows)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	return out, err
}

func scanApprovalRequest(row pgx.Row) (ApprovalRequestRecord, error) {
	var rec ApprovalRequestRecord
	if err := row.Scan(&rec.ID, &rec.TenantID, &rec.ModuleID, &rec.RequestedBy, &rec.RequestReason, &rec.Status,
		&rec.ReviewedBy, &rec.ReviewNotes, &rec.CreatedAt, &rec.UpdatedAt, &rec.ReviewedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ApprovalRequestRecord{}, ErrNotFound
		}
		return ApprovalRequestRecord{}, err
	}
	return rec, nil
}
