package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/service"
	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/status"
)

var (
	_ service.Repository = (*MemoryRepository)(nil)
	_ service.Catalog    = (*MemoryRepository)(nil)
)

type pairKey struct {
	tenant uuid.UUID
	module string
}

// MemoryRepository keeps the catalog and every lifecycle record in memory.
// A single mutex makes each create or transition atomic, with the same
// conditional-write rules as the Postgres store.
type MemoryRepository struct {
	mu          sync.RWMutex
	modules     map[string]service.CatalogModule
	assignments map[pairKey]service.Assignment
	approvals   map[uuid.UUID]service.ApprovalRequest
	history     []service.HistoryEntry
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		modules:     make(map[string]service.CatalogModule),
		assignments: make(map[pairKey]service.Assignment),
		approvals:   make(map[uuid.UUID]service.ApprovalRequest),
	}
}

// PutModule inserts or replaces a catalog entry.
func (r *MemoryRepository) PutModule(m service.CatalogModule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[m.ID] = m
}

func (r *MemoryRepository) GetModule(ctx context.Context, moduleID string) (service.CatalogModule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.modules[moduleID]
	if !ok {
		return service.CatalogModule{}, service.ErrModuleNotFound
	}
	return m, nil
}

func (r *MemoryRepository) ListModules(ctx context.Context) ([]service.CatalogModule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]service.CatalogModule, 0, len(r.modules))
	for _, m := range r.modules {
		items = append(items, m)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r *MemoryRepository) GetAssignment(ctx context.Context, tenantID uuid.UUID, moduleID string) (service.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assignments[pairKey{tenantID, moduleID}]
	if !ok {
		return service.Assignment{}, service.ErrAssignmentNotFound
	}
	return a, nil
}

func (r *MemoryRepository) ListAssignments(ctx context.Context, filter service.AssignmentFilter) ([]service.Assignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]service.Assignment, 0)
	for _, a := range r.assignments {
		if filter.TenantID != nil && a.TenantID != *filter.TenantID {
			continue
		}
		if filter.ModuleID != nil && a.ModuleID != *filter.ModuleID {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		items = append(items, a)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].TenantID != items[j].TenantID {
			return items[i].TenantID.String() < items[j].TenantID.String()
		}
		return items[i].ModuleID < items[j].ModuleID
	})
	return items, nil
}

func (r *MemoryRepository) CreateAssignment(ctx context.Context, in service.NewAssignment) (service.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{in.Assignment.TenantID, in.Assignment.ModuleID}
	if _, exists := r.assignments[key]; exists {
		return service.Assignment{}, service.ErrAssignmentExists
	}
	if in.Approval != nil && r.hasPendingLocked(key) {
		return service.Assignment{}, service.ErrPendingRequestExists
	}

	r.assignments[key] = in.Assignment
	if in.Approval != nil {
		r.approvals[in.Approval.ID] = *in.Approval
	}
	r.history = append(r.history, in.History)
	return in.Assignment, nil
}

func (r *MemoryRepository) ApplyTransition(ctx context.Context, t service.Transition) (service.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{t.Next.TenantID, t.Next.ModuleID}
	stored, ok := r.assignments[key]
	if !ok {
		return service.Assignment{}, service.ErrAssignmentNotFound
	}
	if stored.Status != t.Expected {
		return service.Assignment{}, service.ErrStaleStatus
	}

	var decided *service.ApprovalRequest
	if d := t.Decision; d != nil {
		req, ok := r.approvals[d.RequestID]
		if !ok {
			return service.Assignment{}, service.ErrApprovalNotFound
		}
		if req.Status != service.ApprovalPending {
			return service.Assignment{}, service.ErrRequestNotPending
		}
		reviewedAt := d.ReviewedAt
		req.Status = d.Status
		req.ReviewedBy = d.ReviewedBy
		req.ReviewNotes = d.ReviewNotes
		req.ReviewedAt = &reviewedAt
		req.UpdatedAt = reviewedAt
		decided = &req
	}

	r.assignments[key] = t.Next
	if decided != nil {
		r.approvals[decided.ID] = *decided
	}
	if st := t.Settle; st != nil {
		for id, req := range r.approvals {
			if req.Status != service.ApprovalPending || req.TenantID != key.tenant || req.ModuleID != key.module {
				continue
			}
			reviewedAt := st.ReviewedAt
			req.Status = st.Status
			req.ReviewedBy = st.ReviewedBy
			req.ReviewNotes = st.ReviewNotes
			req.ReviewedAt = &reviewedAt
			req.UpdatedAt = reviewedAt
			r.approvals[id] = req
		}
	}
	r.history = append(r.history, t.History)
	return t.Next, nil
}

func (r *MemoryRepository) hasPendingLocked(key pairKey) bool {
	for _, req := range r.approvals {
		if req.Status == service.ApprovalPending && req.TenantID == key.tenant && req.ModuleID == key.module {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) GetApprovalRequest(ctx context.Context, id uuid.UUID) (service.ApprovalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.approvals[id]
	if !ok {
		return service.ApprovalRequest{}, service.ErrApprovalNotFound
	}
	return req, nil
}

func (r *MemoryRepository) ListApprovalRequests(ctx context.Context, filter service.ApprovalFilter) ([]service.ApprovalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]service.ApprovalRequest, 0)
	for _, req := range r.approvals {
		if filter.TenantID != nil && req.TenantID != *filter.TenantID {
			continue
		}
		if filter.Status != nil && req.Status != *filter.Status {
			continue
		}
		items = append(items, req)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (r *MemoryRepository) QueryHistory(ctx context.Context, q service.HistoryQuery) ([]service.HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]service.HistoryEntry, 0)
	for _, e := range r.history {
		if q.TenantID != nil && e.TenantID != *q.TenantID {
			continue
		}
		if q.ModuleID != nil && e.ModuleID != *q.ModuleID {
			continue
		}
		if !q.Window.Contains(e.CreatedAt) {
			continue
		}
		items = append(items, e)
	}
	// history is appended in commit order; keep it stable for equal timestamps
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return items, nil
}

func (r *MemoryRepository) CountAssignments(ctx context.Context, window service.TimeWindow) (service.AssignmentCounts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := service.AssignmentCounts{
		ByStatus: map[status.Operational]int{},
		ByHealth: map[status.Health]int{},
	}
	for _, a := range r.assignments {
		if !window.Contains(a.LastStatusChange) {
			continue
		}
		counts.ByStatus[a.Status]++
		counts.ByHealth[a.Health]++
		counts.Total++
	}
	return counts, nil
}

func (r *MemoryRepository) SummarizeApprovals(ctx context.Context, window service.TimeWindow) (service.ApprovalTotals, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var totals service.ApprovalTotals
	for _, req := range r.approvals {
		if !window.Contains(req.CreatedAt) {
			continue
		}
		switch req.Status {
		case service.ApprovalPending:
			totals.Pending++
		case service.ApprovalApproved:
			totals.Approved++
		case service.ApprovalDenied:
			totals.Denied++
		case service.ApprovalCancelled:
			totals.Cancelled++
		}
		if (req.Status == service.ApprovalApproved || req.Status == service.ApprovalDenied) && req.ReviewedAt != nil {
			totals.Reviewed++
			totals.ReviewLatency += req.ReviewedAt.Sub(req.CreatedAt)
		}
	}
	return totals, nil
}
