package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// StatusHealthCount is one group of assignments sharing status and health.
type StatusHealthCount struct {
	OperationalStatus string
	HealthStatus      string
	Count             int
}

// ApprovalSummary aggregates approval requests created in a window.
// ReviewLatency is the summed review time of approved and denied requests.
type ApprovalSummary struct {
	Pending       int
	Approved      int
	Denied        int
	Cancelled     int
	Reviewed      int
	ReviewLatency time.Duration
}

// StatsStore runs read-only aggregates.
type StatsStore struct {
	db *LifecycleDB
}

func NewStatsStore(db *LifecycleDB) (*StatsStore, error) {
	if db == nil {
		return nil, errors.New("lifecycle db is required")
	}
	return &StatsStore{db: db}, nil
}

// CountAssignments groups assignments whose last status change is in [from, to).
func (s *StatsStore) CountAssignments(ctx context.Context, from, to *time.Time) ([]StatusHealthCount, error) {
	where, args := windowClause("last_status_change", from, to)
	query := fmt.Sprintf(`SELECT operational_status, health_status, COUNT(*)
        FROM module_assignments %s
        GROUP BY operational_status, health_status`, where)

	var out []StatusHealthCount
	err := s.db.WithReadTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var c StatusHealthCount
			if err := rows.Scan(&c.OperationalStatus, &c.HealthStatus, &c.Count); err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

// SummarizeApprovals aggregates requests created in [from, to).
func (s *StatsStore) SummarizeApprovals(ctx context.Context, from, to *time.Time) (ApprovalSummary, error) {
	where, args := windowClause("created_at", from, to)
	query := fmt.Sprintf(`SELECT
            COUNT(*) FILTER (WHERE status = 'pending'),
            COUNT(*) FILTER (WHERE status = 'approved'),
            COUNT(*) FILTER (WHERE status = 'denied'),
            COUNT(*) FILTER (WHERE status = 'cancelled'),
            COUNT(*) FILTER (WHERE status IN ('approved', 'denied') AND reviewed_at IS NOT NULL),
            COALESCE(SUM(EXTRACT(EPOCH FROM (reviewed_at - created_at)))
                FILTER (WHERE status IN ('approved', 'denied') AND reviewed_at IS NOT NULL), 0)::float8
        FROM module_approval_requests %s`, where)

	var (
		out     ApprovalSummary
		seconds float64
	)
	err := s.db.WithReadTx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, args...).Scan(&out.Pending, &out.Approved, &out.Denied, &out.Cancelled, &out.Reviewed, &seconds)
	})
	if err != nil {
		return ApprovalSummary{}, err
	}
	out.ReviewLatency = time.Duration(seconds * float64(time.Second))
	return out, nil
}

func windowClause(column string, from, to *time.Time) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if from != nil {
		args = append(args, *from)
		clauses = append(clauses, fmt.Sprintf("%s >= $%d", column, len(args)))
	}
	if to != nil {
		args = append(args, *to)
		clauses = append(clauses, fmt.Sprintf("%s < $%d", column, len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
