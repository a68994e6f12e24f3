package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/repo"
	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/service"
	"github.com/zenGate-Global/retailops/platform/go/requesttrace"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// Now advances one second per call so every record gets a distinct timestamp.
func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recordingProvisioner struct {
	mu       sync.Mutex
	requests []service.ProvisioningRequest
	err      error
}

func (p *recordingProvisioner) ProvisioningRequested(ctx context.Context, req service.ProvisioningRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	return p.err
}

func (p *recordingProvisioner) calls() []service.ProvisioningRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]service.ProvisioningRequest(nil), p.requests...)
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []service.ApprovalNotice
	err     error
}

func (n *recordingNotifier) ApprovalDecided(ctx context.Context, notice service.ApprovalNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

type staticDirectory map[string]string

func (d staticDirectory) DisplayName(ctx context.Context, userID string) (string, error) {
	name, ok := d[userID]
	if !ok {
		return "", errors.New("user not found")
	}
	return name, nil
}

type fixture struct {
	repo        *repo.MemoryRepository
	policies    *service.PolicyResolver
	audit       *service.AuditTrail
	lifecycle   *service.LifecycleService
	approvals   *service.ApprovalWorkflow
	stats       *service.StatsAggregator
	provisioner *recordingProvisioner
	notifier    *recordingNotifier
	clock       *fakeClock
	tenant      uuid.UUID
}

func newFixture(t *testing.T, maxRetries int) *fixture {
	t.Helper()

	memory := repo.NewMemoryRepository()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	provisioner := &recordingProvisioner{}
	notifier := &recordingNotifier{}
	logger := zaptest.NewLogger(t)

	policies := service.NewPolicyResolver(memory)
	audit := service.NewAuditTrail(memory)
	lifecycle := service.NewLifecycleService(memory, policies, audit, service.Options{
		Provisioner:         provisioner,
		Logger:              logger,
		MaxAutomaticRetries: maxRetries,
		Now:                 clock.Now,
	})
	approvals := service.NewApprovalWorkflow(memory, lifecycle, policies, service.ApprovalOptions{
		Notifier:  notifier,
		Directory: staticDirectory{"tenant-user": "Tina Tenant", "reviewer-1": "Rae Reviewer"},
		Logger:    logger,
	})

	return &fixture{
		repo:        memory,
		policies:    policies,
		audit:       audit,
		lifecycle:   lifecycle,
		approvals:   approvals,
		stats:       service.NewStatsAggregator(memory),
		provisioner: provisioner,
		notifier:    notifier,
		clock:       clock,
		tenant:      uuid.New(),
	}
}

func (f *fixture) module(id string, visibility service.Visibility, policy service.RequestPolicy, deps ...string) {
	f.repo.PutModule(service.CatalogModule{
		ID:               id,
		Name:             id,
		Visibility:       visibility,
		RequestPolicy:    policy,
		AutoEnablePolicy: service.AutoEnableNone,
		Dependencies:     deps,
	})
}

func (f *fixture) history(t *testing.T, moduleID string) []service.HistoryEntry {
	t.Helper()
	entries, err := f.audit.Query(context.Background(), service.HistoryQuery{TenantID: &f.tenant, ModuleID: &moduleID})
	if err != nil {
		t.Fatalf("query history: %v", err)
	}
	return entries
}

func userActor(id string) requesttrace.AuditInfo {
	return requesttrace.AuditInfo{ActorKind: requesttrace.ActorKindUser, UserID: &id, RequestID: "req-" + id}
}

func systemActor() requesttrace.AuditInfo {
	return requesttrace.System("req-system")
}
