package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/service"
	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/status"
	"github.com/zenGate-Global/retailops/platform/go/persistence"
	"github.com/zenGate-Global/retailops/platform/go/requesttrace"
)

var (
	_ service.Repository = (*PostgresRepository)(nil)
	_ service.Catalog    = (*PostgresRepository)(nil)
)

// PostgresRepository adapts the persistence stores to the service ports.
type PostgresRepository struct {
	catalog     *persistence.CatalogStore
	assignments *persistence.AssignmentStore
	approvals   *persistence.ApprovalStore
	history     *persistence.HistoryStore
	stats       *persistence.StatsStore
}

// NewPostgresRepository builds every store over db.
func NewPostgresRepository(db *persistence.LifecycleDB) (*PostgresRepository, error) {
	catalog, err := persistence.NewCatalogStore(db)
	if err != nil {
		return nil, err
	}
	assignments, err := persistence.NewAssignmentStore(db)
	if err != nil {
		return nil, err
	}
	approvals, err := persistence.NewApprovalStore(db)
	if err != nil {
		return nil, err
	}
	history, err := persistence.NewHistoryStore(db)
	if err != nil {
		return nil, err
	}
	stats, err := persistence.NewStatsStore(db)
	if err != nil {
		return nil, err
	}
	return &PostgresRepository{
		catalog:     catalog,
		assignments: assignments,
		approvals:   approvals,
		history:     history,
		stats:       stats,
	}, nil
}

// UpsertModule writes a catalog entry. Used by catalog administration.
func (r *PostgresRepository) UpsertModule(ctx context.Context, m service.CatalogModule) (service.CatalogModule, error) {
	rec, err := r.catalog.Upsert(ctx, persistence.CatalogModuleRecord{
		ModuleID:         m.ID,
		Name:             m.Name,
		Description:      m.Description,
		Visibility:       string(m.Visibility),
		RequestPolicy:    string(m.RequestPolicy),
		AutoEnablePolicy: string(m.AutoEnablePolicy),
		Dependencies:     m.Dependencies,
	})
	if err != nil {
		return service.CatalogModule{}, err
	}
	return catalogFromRecord(rec), nil
}

func (r *PostgresRepository) GetModule(ctx context.Context, moduleID string) (service.CatalogModule, error) {
	rec, err := r.catalog.Get(ctx, moduleID)
	if err != nil {
		return service.CatalogModule{}, mapErr(err, service.ErrModuleNotFound)
	}
	return catalogFromRecord(rec), nil
}

func (r *PostgresRepository) ListModules(ctx context.Context) ([]service.CatalogModule, error) {
	recs, err := r.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]service.CatalogModule, 0, len(recs))
	for _, rec := range recs {
		out = append(out, catalogFromRecord(rec))
	}
	return out, nil
}

func (r *PostgresRepository) GetAssignment(ctx context.Context, tenantID uuid.UUID, moduleID string) (service.Assignment, error) {
	rec, err := r.assignments.Get(ctx, tenantID, moduleID)
	if err != nil {
		return service.Assignment{}, mapErr(err, service.ErrAssignmentNotFound)
	}
	return assignmentFromRecord(rec)
}

func (r *PostgresRepository) ListAssignments(ctx context.Context, filter service.AssignmentFilter) ([]service.Assignment, error) {
	pf := persistence.AssignmentFilter{TenantID: filter.TenantID, ModuleID: filter.ModuleID}
	if filter.Status != nil {
		s := string(*filter.Status)
		pf.Status = &s
	}
	recs, err := r.assignments.List(ctx, pf)
	if err != nil {
		return nil, err
	}
	out := make([]service.Assignment, 0, len(recs))
	for _, rec := range recs {
		a, err := assignmentFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *PostgresRepository) CreateAssignment(ctx context.Context, in service.NewAssignment) (service.Assignment, error) {
	arec, err := assignmentToRecord(in.Assignment)
	if err != nil {
		return service.Assignment{}, err
	}
	hrec, err := historyToRecord(in.History)
	if err != nil {
		return service.Assignment{}, err
	}
	params := persistence.CreateAssignmentParams{Assignment: arec, History: hrec}
	if in.Approval != nil {
		req := approvalToRecord(*in.Approval)
		params.Approval = &req
	}

	rec, err := r.assignments.Create(ctx, params)
	if err != nil {
		return service.Assignment{}, mapErr(err, nil)
	}
	return assignmentFromRecord(rec)
}

func (r *PostgresRepository) ApplyTransition(ctx context.Context, t service.Transition) (service.Assignment, error) {
	next, err := assignmentToRecord(t.Next)
	if err != nil {
		return service.Assignment{}, err
	}
	hrec, err := historyToRecord(t.History)
	if err != nil {
		return service.Assignment{}, err
	}
	params := persistence.TransitionParams{ExpectedStatus: string(t.Expected), Next: next, History: hrec}
	if d := t.Decision; d != nil {
		params.Decision = &persistence.DecisionParams{
			RequestID:   d.RequestID,
			Status:      string(d.Status),
			ReviewedBy:  d.ReviewedBy,
			ReviewNotes: d.ReviewNotes,
			ReviewedAt:  d.ReviewedAt,
		}
	}

	if st := t.Settle; st != nil {
		params.Settle = &persistence.SettleParams{
			Status:      string(st.Status),
			ReviewedBy:  st.ReviewedBy,
			ReviewNotes: st.ReviewNotes,
			ReviewedAt:  st.ReviewedAt,
		}
	}

	rec, err := r.assignments.Transition(ctx, params)
	if err != nil {
		return service.Assignment{}, mapErr(err, service.ErrAssignmentNotFound)
	}
	return assignmentFromRecord(rec)
}

func (r *PostgresRepository) GetApprovalRequest(ctx context.Context, id uuid.UUID) (service.ApprovalRequest, error) {
	rec, err := r.approvals.Get(ctx, id)
	if err != nil {
		return service.ApprovalRequest{}, mapErr(err, service.ErrApprovalNotFound)
	}
	return approvalFromRecord(rec), nil
}

func (r *PostgresRepository) ListApprovalRequests(ctx context.Context, filter service.ApprovalFilter) ([]service.ApprovalRequest, error) {
	pf := persistence.ApprovalFilter{TenantID: filter.TenantID}
	if filter.Status != nil {
		s := string(*filter.Status)
		pf.Status = &s
	}
	recs, err := r.approvals.List(ctx, pf)
	if err != nil {
		return nil, err
	}
	out := make([]service.ApprovalRequest, 0, len(recs))
	for _, rec := range recs {
		out = append(out, approvalFromRecord(rec))
	}
	return out, nil
}

func (r *PostgresRepository) QueryHistory(ctx context.Context, q service.HistoryQuery) ([]service.HistoryEntry, error) {
	recs, err := r.history.Query(ctx, persistence.HistoryQuery{
		TenantID: q.TenantID,
		ModuleID: q.ModuleID,
		From:     q.Window.From,
		To:       q.Window.To,
		Limit:    q.Limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]service.HistoryEntry, 0, len(recs))
	for _, rec := range recs {
		e, err := historyFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *PostgresRepository) CountAssignments(ctx context.Context, window service.TimeWindow) (service.AssignmentCounts, error) {
	rows, err := r.stats.CountAssignments(ctx, window.From, window.To)
	if err != nil {
		return service.AssignmentCounts{}, err
	}
	counts := service.AssignmentCounts{
		ByStatus: map[status.Operational]int{},
		ByHealth: map[status.Health]int{},
	}
	for _, row := range rows {
		counts.ByStatus[status.Operational(row.OperationalStatus)] += row.Count
		counts.ByHealth[status.ParseHealth(row.HealthStatus)] += row.Count
		counts.Total += row.Count
	}
	return counts, nil
}

func (r *PostgresRepository) SummarizeApprovals(ctx context.Context, window service.TimeWindow) (service.ApprovalTotals, error) {
	sum, err := r.stats.SummarizeApprovals(ctx, window.From, window.To)
	if err != nil {
		return service.ApprovalTotals{}, err
	}
	return service.ApprovalTotals{
		Pending:       sum.Pending,
		Approved:      sum.Approved,
		Denied:        sum.Denied,
		Cancelled:     sum.Cancelled,
		Reviewed:      sum.Reviewed,
		ReviewLatency: sum.ReviewLatency,
	}, nil
}

// mapErr translates store errors into domain errors. notFound names the
// missing entity for ErrNotFound.
// mapErr translates store sentinels. A nil notFound leaves ErrNotFound as is,
// for writes that cannot legitimately miss a row.
func mapErr(err error, notFound error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound) && notFound != nil:
		return notFound
	case errors.Is(err, persistence.ErrStaleStatus):
		return service.ErrStaleStatus
	case errors.Is(err, persistence.ErrRequestNotPending):
		return service.ErrRequestNotPending
	case errors.Is(err, persistence.ErrDuplicateAssignment):
		return service.ErrAssignmentExists
	case errors.Is(err, persistence.ErrDuplicatePendingRequest):
		return service.ErrPendingRequestExists
	default:
		return err
	}
}

func catalogFromRecord(rec persistence.CatalogModuleRecord) service.CatalogModule {
	return service.CatalogModule{
		ID:               rec.ModuleID,
		Name:             rec.Name,
		Description:      rec.Description,
		Visibility:       service.Visibility(rec.Visibility),
		RequestPolicy:    service.RequestPolicy(rec.RequestPolicy),
		AutoEnablePolicy: service.AutoEnablePolicy(rec.AutoEnablePolicy),
		Dependencies:     rec.Dependencies,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
}

func assignmentToRecord(a service.Assignment) (persistence.AssignmentRecord, error) {
	details, err := status.Encode(a.ErrorDetails)
	if err != nil {
		return persistence.AssignmentRecord{}, fmt.Errorf("encode error details: %w", err)
	}
	var metadata json.RawMessage
	if len(a.Metadata) > 0 {
		if metadata, err = json.Marshal(a.Metadata); err != nil {
			return persistence.AssignmentRecord{}, fmt.Errorf("encode metadata: %w", err)
		}
	}
	return persistence.AssignmentRecord{
		TenantID:              a.TenantID,
		ModuleID:              a.ModuleID,
		OperationalStatus:     string(a.Status),
		HealthStatus:          string(a.Health),
		RetryCount:            a.RetryCount,
		ErrorDetails:          details,
		LastStatusChange:      a.LastStatusChange,
		StatusChangeReason:    a.StatusChangeReason,
		ProvisioningStartedAt: a.ProvisioningStartedAt,
		ApprovedBy:            a.ApprovedBy,
		ApprovedAt:            a.ApprovedAt,
		Metadata:              metadata,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
	}, nil
}

func assignmentFromRecord(rec persistence.AssignmentRecord) (service.Assignment, error) {
	st, err := status.Parse(rec.OperationalStatus)
	if err != nil {
		return service.Assignment{}, fmt.Errorf("assignment %s/%s: %w", rec.TenantID, rec.ModuleID, err)
	}
	details, err := status.Decode(rec.ErrorDetails)
	if err != nil {
		return service.Assignment{}, fmt.Errorf("decode error details: %w", err)
	}
	var metadata map[string]any
	if len(rec.Metadata) > 0 {
		if err := json.Unmarshal(rec.Metadata, &metadata); err != nil {
			return service.Assignment{}, fmt.Errorf("decode metadata: %w", err)
		}
		if len(metadata) == 0 {
			metadata = nil
		}
	}
	return service.Assignment{
		TenantID:              rec.TenantID,
		ModuleID:              rec.ModuleID,
		Status:                st,
		Health:                status.ParseHealth(rec.HealthStatus),
		RetryCount:            rec.RetryCount,
		ErrorDetails:          details,
		LastStatusChange:      rec.LastStatusChange,
		StatusChangeReason:    rec.StatusChangeReason,
		ProvisioningStartedAt: rec.ProvisioningStartedAt,
		ApprovedBy:            rec.ApprovedBy,
		ApprovedAt:            rec.ApprovedAt,
		Metadata:              metadata,
		CreatedAt:             rec.CreatedAt,
		UpdatedAt:             rec.UpdatedAt,
	}, nil
}

func approvalToRecord(a service.ApprovalRequest) persistence.ApprovalRequestRecord {
	return persistence.ApprovalRequestRecord{
		ID:            a.ID,
		TenantID:      a.TenantID,
		ModuleID:      a.ModuleID,
		RequestedBy:   a.RequestedBy,
		RequestReason: a.RequestReason,
		Status:        string(a.Status),
		ReviewedBy:    a.ReviewedBy,
		ReviewNotes:   a.ReviewNotes,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
		ReviewedAt:    a.ReviewedAt,
	}
}

func approvalFromRecord(rec persistence.ApprovalRequestRecord) service.ApprovalRequest {
	return service.ApprovalRequest{
		ID:            rec.ID,
		TenantID:      rec.TenantID,
		ModuleID:      rec.ModuleID,
		RequestedBy:   rec.RequestedBy,
		RequestReason: rec.RequestReason,
		Status:        service.ApprovalStatus(rec.Status),
		ReviewedBy:    rec.ReviewedBy,
		ReviewNotes:   rec.ReviewNotes,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
		ReviewedAt:    rec.ReviewedAt,
	}
}

func historyToRecord(e service.HistoryEntry) (persistence.HistoryRecord, error) {
	metadata, err := status.Encode(e.ChangeMetadata)
	if err != nil {
		return persistence.HistoryRecord{}, fmt.Errorf("encode change metadata: %w", err)
	}
	var previous *string
	if e.PreviousStatus != nil {
		p := string(*e.PreviousStatus)
		previous = &p
	}
	return persistence.HistoryRecord{
		ID:             e.ID,
		TenantID:       e.TenantID,
		ModuleID:       e.ModuleID,
		PreviousStatus: previous,
		NewStatus:      string(e.NewStatus),
		ChangedBy:      e.ChangedBy,
		ActorKind:      string(e.ActorKind),
		ChangeReason:   e.ChangeReason,
		ChangeMetadata: metadata,
		RequestID:      e.RequestID,
		CreatedAt:      e.CreatedAt,
	}, nil
}

func historyFromRecord(rec persistence.HistoryRecord) (service.HistoryEntry, error) {
	metadata, err := status.Decode(rec.ChangeMetadata)
	if err != nil {
		return service.HistoryEntry{}, fmt.Errorf("decode change metadata: %w", err)
	}
	var previous *status.Operational
	if rec.PreviousStatus != nil {
		p := status.Operational(*rec.PreviousStatus)
		previous = &p
	}
	return service.HistoryEntry{
		ID:             rec.ID,
		TenantID:       rec.TenantID,
		ModuleID:       rec.ModuleID,
		PreviousStatus: previous,
		NewStatus:      status.Operational(rec.NewStatus),
		ChangedBy:      rec.ChangedBy,
		ActorKind:      requesttrace.ActorKind(rec.ActorKind),
		ChangeReason:   rec.ChangeReason,
		ChangeMetadata: metadata,
		RequestID:      rec.RequestID,
		CreatedAt:      rec.CreatedAt.UTC(),
	}, nil
}
