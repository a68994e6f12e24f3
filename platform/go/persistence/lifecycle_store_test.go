package persistence

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func seedModule(t *testing.T, ctx context.Context, db *LifecycleDB, id string) {
	t.Helper()
	catalog, err := NewCatalogStore(db)
	require.NoError(t, err)
	_, err = catalog.Upsert(ctx, CatalogModuleRecord{
		ModuleID:         id,
		Name:             "Analytics",
		Visibility:       "public",
		RequestPolicy:    "manual_approval",
		AutoEnablePolicy: "none",
	})
	require.NoError(t, err)
}

func newAssignment(tenant uuid.UUID, module, status string, at time.Time) CreateAssignmentParams {
	return CreateAssignmentParams{
		Assignment: AssignmentRecord{
			TenantID:           tenant,
			ModuleID:           module,
			OperationalStatus:  status,
			HealthStatus:       "unknown",
			LastStatusChange:   at,
			StatusChangeReason: "module requested",
			CreatedAt:          at,
			UpdatedAt:          at,
		},
		History: HistoryRecord{
			ID:        uuid.New(),
			TenantID:  tenant,
			ModuleID:  module,
			NewStatus: status,
			ActorKind: "user",
			ChangedBy: strPtr("tenant-user"),
			CreatedAt: at,
		},
	}
}

func TestLifecycleStoresRoundTrip(t *testing.T) {
	t.Parallel()

	db, _ := mustLifecycleDB(t)
	ctx := context.Background()
	seedModule(t, ctx, db, "analytics")

	assignments, err := NewAssignmentStore(db)
	require.NoError(t, err)
	approvals, err := NewApprovalStore(db)
	require.NoError(t, err)
	history, err := NewHistoryStore(db)
	require.NoError(t, err)
	stats, err := NewStatsStore(db)
	require.NoError(t, err)

	tenant := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)
	params := newAssignment(tenant, "analytics", "pending_approval", now)
	requestID := uuid.New()
	params.Approval = &ApprovalRequestRecord{
		ID: requestID, TenantID: tenant, ModuleID: "analytics", RequestedBy: strPtr("tenant-user"),
		Status: "pending", CreatedAt: now, UpdatedAt: now,
	}

	created, err := assignments.Create(ctx, params)
	require.NoError(t, err)
	require.Equal(t, "pending_approval", created.OperationalStatus)
	require.JSONEq(t, `{}`, string(created.Metadata))

	_, err = assignments.Create(ctx, params)
	require.ErrorIs(t, err, ErrDuplicateAssignment)

	denial := json.RawMessage(`{"kind":"approval_denied","data":{"denial_reason":"insufficient quota"}}`)
	next := created
	next.OperationalStatus = "error"
	next.HealthStatus = "critical"
	next.RetryCount = 1
	next.ErrorDetails = denial
	next.LastStatusChange = now.Add(time.Minute)
	next.UpdatedAt = next.LastStatusChange

	decision := &DecisionParams{RequestID: requestID, Status: "denied", ReviewedBy: strPtr("reviewer-1"), ReviewNotes: "insufficient quota", ReviewedAt: next.LastStatusChange}
	transition := TransitionParams{
		ExpectedStatus: "pending_approval",
		Next:           next,
		History: HistoryRecord{
			ID: uuid.New(), TenantID: tenant, ModuleID: "analytics", PreviousStatus: strPtr("pending_approval"),
			NewStatus: "error", ActorKind: "user", ChangedBy: strPtr("reviewer-1"), ChangeMetadata: denial,
			CreatedAt: next.LastStatusChange,
		},
		Decision: decision,
	}

	updated, err := assignments.Transition(ctx, transition)
	require.NoError(t, err)
	require.Equal(t, "error", updated.OperationalStatus)
	require.JSONEq(t, string(denial), string(updated.ErrorDetails))

	// replaying the same decision fails on the stale status and leaves no trace
	transition.History.ID = uuid.New()
	_, err = assignments.Transition(ctx, transition)
	require.ErrorIs(t, err, ErrStaleStatus)

	// right status, already-decided request
	transition.ExpectedStatus = "error"
	_, err = assignments.Transition(ctx, transition)
	require.ErrorIs(t, err, ErrRequestNotPending)

	req, err := approvals.Get(ctx, requestID)
	require.NoError(t, err)
	require.Equal(t, "denied", req.Status)
	require.Equal(t, "reviewer-1", *req.ReviewedBy)

	entries, err := history.Query(ctx, HistoryQuery{TenantID: &tenant})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Nil(t, entries[0].PreviousStatus)
	require.Equal(t, "pending_approval", *entries[1].PreviousStatus)

	summary, err := stats.SummarizeApprovals(ctx, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Denied)
	require.Equal(t, 1, summary.Reviewed)
	require.InDelta(t, time.Minute.Seconds(), summary.ReviewLatency.Seconds(), 0.01)

	counts, err := stats.CountAssignments(ctx, nil, nil)
	require.NoError(t, err)
	require.Equal(t, []StatusHealthCount{{OperationalStatus: "error", HealthStatus: "critical", Count: 1}}, counts)

	_, err = assignments.Get(ctx, uuid.New(), "analytics")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentTransitionsOneWins(t *testing.T) {
	t.Parallel()

	db, _ := mustLifecycleDB(t)
	ctx := context.Background()
	seedModule(t, ctx, db, "analytics")

	assignments, err := NewAssignmentStore(db)
	require.NoError(t, err)

	tenant := uuid.New()
	now := time.Now().UTC()
	created, err := assignments.Create(ctx, newAssignment(tenant, "analytics", "provisioning", now))
	require.NoError(t, err)

	targets := []string{"enabled", "error"}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()
			next := created
			next.OperationalStatus = target
			_, errs[i] = assignments.Transition(ctx, TransitionParams{
				ExpectedStatus: "provisioning",
				Next:           next,
				History: HistoryRecord{
					ID: uuid.New(), TenantID: tenant, ModuleID: "analytics", PreviousStatus: strPtr("provisioning"),
					NewStatus: target, ActorKind: "system", CreatedAt: now,
				},
			})
		}(i, target)
	}
	wg.Wait()

	var stale int
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, ErrStaleStatus)
			stale++
		}
	}
	require.Equal(t, 1, stale)

	history, err := NewHistoryStore(db)
	require.NoError(t, err)
	entries, err := history.Query(ctx, HistoryQuery{TenantID: &tenant})
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestPendingRequestIsUnique(t *testing.T) {
	t.Parallel()

	db, pool := mustLifecycleDB(t)
	ctx := context.Background()
	seedModule(t, ctx, db, "analytics")

	assignments, err := NewAssignmentStore(db)
	require.NoError(t, err)

	tenant := uuid.New()
	now := time.Now().UTC()
	params := newAssignment(tenant, "analytics", "pending_approval", now)
	params.Approval = &ApprovalRequestRecord{ID: uuid.New(), TenantID: tenant, ModuleID: "analytics", Status: "pending", CreatedAt: now, UpdatedAt: now}
	_, err = assignments.Create(ctx, params)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `INSERT INTO module_lifecycle.module_approval_requests (id, tenant_id, module_id, status, created_at, updated_at)
        VALUES ($1, $2, 'analytics', 'pending', NOW(), NOW())`, uuid.New(), tenant)
	require.Error(t, err)
	require.True(t, isUniqueViolation(err, onePendingIndexName))
}

func TestTransitionSettlesPendingRequest(t *testing.T) {
	t.Parallel()

	db, _ := mustLifecycleDB(t)
	ctx := context.Background()
	seedModule(t, ctx, db, "analytics")

	assignments, err := NewAssignmentStore(db)
	require.NoError(t, err)
	approvals, err := NewApprovalStore(db)
	require.NoError(t, err)

	tenant := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)
	params := newAssignment(tenant, "analytics", "pending_approval", now)
	requestID := uuid.New()
	params.Approval = &ApprovalRequestRecord{ID: requestID, TenantID: tenant, ModuleID: "analytics", Status: "pending", CreatedAt: now, UpdatedAt: now}
	created, err := assignments.Create(ctx, params)
	require.NoError(t, err)

	settledAt := now.Add(time.Minute)
	next := created
	next.OperationalStatus = "provisioning"
	_, err = assignments.Transition(ctx, TransitionParams{
		ExpectedStatus: "pending_approval",
		Next:           next,
		History: HistoryRecord{
			ID: uuid.New(), TenantID: tenant, ModuleID: "analytics", PreviousStatus: strPtr("pending_approval"),
			NewStatus: "provisioning", ActorKind: "user", ChangedBy: strPtr("operator-1"), CreatedAt: settledAt,
		},
		Settle: &SettleParams{Status: "approved", ReviewedBy: strPtr("operator-1"), ReviewNotes: "approved by phone", ReviewedAt: settledAt},
	})
	require.NoError(t, err)

	req, err := approvals.Get(ctx, requestID)
	require.NoError(t, err)
	require.Equal(t, "approved", req.Status)
	require.Equal(t, "operator-1", *req.ReviewedBy)
	require.NotNil(t, req.ReviewedAt)

	pending := "pending"
	open, err := approvals.List(ctx, ApprovalFilter{TenantID: &tenant, Status: &pending})
	require.NoError(t, err)
	require.Empty(t, open)

	// a late decision on the settled request changes nothing
	late := next
	late.OperationalStatus = "error"
	_, err = assignments.Transition(ctx, TransitionParams{
		ExpectedStatus: "pending_approval",
		Next:           late,
		History: HistoryRecord{
			ID: uuid.New(), TenantID: tenant, ModuleID: "analytics", PreviousStatus: strPtr("pending_approval"),
			NewStatus: "error", ActorKind: "user", ChangedBy: strPtr("reviewer-1"), CreatedAt: settledAt,
		},
		Decision: &DecisionParams{RequestID: requestID, Status: "denied", ReviewedBy: strPtr("reviewer-1"), ReviewNotes: "too late", ReviewedAt: settledAt},
	})
	require.ErrorIs(t, err, ErrStaleStatus)

	stored, err := assignments.Get(ctx, tenant, "analytics")
	require.NoError(t, err)
	require.Equal(t, "provisioning", stored.OperationalStatus)
	req, err = approvals.Get(ctx, requestID)
	require.NoError(t, err)
	require.Equal(t, "approved", req.Status)
}
