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

// HistoryQuery narrows Query. From is inclusive, To exclusive, Limit <= 0 unbounded.
type HistoryQuery struct {
	TenantID *uuid.UUID
	ModuleID *string
	From     *time.Time
	To       *time.Time
	Limit    int
}

// HistoryStore reads module_status_history. Rows are inserted only by
// AssignmentStore and never modified.
type HistoryStore struct {
	db *LifecycleDB
}

func NewHistoryStore(db *LifecycleDB) (*HistoryStore, error) {
	if db == nil {
		return nil, errors.New("lifecycle db is required")
	}
	return &HistoryStore{db: db}, nil
}

// Query returns entries in commit order.
func (s *HistoryStore) Query(ctx context.Context, q HistoryQuery) ([]HistoryRecord, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if q.TenantID != nil {
		add("tenant_id = $%d", *q.TenantID)
	}
	if q.ModuleID != nil {
		add("module_id = $%d", *q.ModuleID)
	}
	if q.From != nil {
		add("created_at >= $%d", *q.From)
	}
	if q.To != nil {
		add("created_at < $%d", *q.To)
	}

	query := `SELECT id, tenant_id, module_id, previous_status, new_status, changed_by, actor_kind,
        change_reason, change_metadata, request_id, created_at
        FROM module_status_history`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at, seq"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	var out []HistoryRecord
	err := s.db.WithReadTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var rec HistoryRecord
			if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.ModuleID, &rec.PreviousStatus, &rec.NewStatus,
				&rec.ChangedBy, &rec.ActorKind, &rec.ChangeReason, &rec.ChangeMetadata, &rec.RequestID, &rec.CreatedAt); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	return out, err
}
