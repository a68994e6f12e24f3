package lifecyclecmd

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/service"
	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/status"
	"github.com/zenGate-Global/retailops/platform/go/requesttrace"
)

func TestCatalogInputValidation(t *testing.T) {
	t.Parallel()

	m, err := catalogInput{
		id:            " crm ",
		visibility:    "Restricted",
		requestPolicy: "auto_approve",
		autoEnable:    "none",
		dependsOn:     []string{"analytics", " "},
	}.module()
	require.NoError(t, err)
	require.Equal(t, "crm", m.ID)
	require.Equal(t, "crm", m.Name)
	require.Equal(t, service.VisibilityRestricted, m.Visibility)
	require.Equal(t, []string{"analytics"}, m.Dependencies)
	require.Nil(t, m.Description)

	_, err = catalogInput{id: "crm", visibility: "hidden", requestPolicy: "auto_approve", autoEnable: "none"}.module()
	require.ErrorContains(t, err, "--visibility")

	_, err = catalogInput{id: "crm", visibility: "public", requestPolicy: "auto_approve", autoEnable: "none", dependsOn: []string{"crm"}}.module()
	require.ErrorContains(t, err, "itself")

	_, err = catalogInput{visibility: "public"}.module()
	require.ErrorContains(t, err, "--id")
}

func TestParseWindow(t *testing.T) {
	t.Parallel()

	w, err := parseWindow("2026-03-01T10:00:00+02:00", "")
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), *w.From)
	require.Nil(t, w.To)

	_, err = parseWindow("", "tomorrow")
	require.ErrorContains(t, err, "--to")
}

func TestActorFlag(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{Use: "x"}
	addConnectionFlags(cmd)

	require.NoError(t, cmd.ParseFlags(nil))
	require.Equal(t, requesttrace.ActorKindSystem, actor(cmd, "req").ActorKind)

	require.NoError(t, cmd.ParseFlags([]string{"--as-user", "reviewer-1"}))
	a := actor(cmd, "req")
	require.True(t, a.IsUser())
	require.Equal(t, "reviewer-1", *a.UserID)
}

func TestOpenServicesRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	cmd := &cobra.Command{Use: "x"}
	addConnectionFlags(cmd)
	require.NoError(t, cmd.ParseFlags(nil))

	_, err := openServices(t.Context(), cmd)
	require.ErrorContains(t, err, "database url is required")
}

func TestPrintOutcomes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printOutcomes(&buf, []service.AutoEnableOutcome{
		{ModuleID: "analytics", Result: &service.RequestResult{Assignment: service.Assignment{Status: status.Provisioning}}},
		{ModuleID: "crm", Skipped: true},
		{ModuleID: "loyalty", Err: errors.New("module not visible")},
	})
	out := buf.String()
	require.Contains(t, out, "provisioning")
	require.Contains(t, out, "skipped")
	require.Contains(t, out, "module not visible")
}

func TestPrintStats(t *testing.T) {
	t.Parallel()

	rate := 0.5
	latency := 90 * time.Second
	var buf bytes.Buffer
	printStats(&buf, service.StatsReport{
		Assignments: service.AssignmentCounts{
			Total:    2,
			ByStatus: map[status.Operational]int{status.Enabled: 2},
			ByHealth: map[status.Health]int{status.Healthy: 2},
		},
		Approvals:            service.ApprovalTotals{Approved: 1, Denied: 1},
		ApprovalRate:         &rate,
		AverageReviewLatency: &latency,
	})
	out := buf.String()
	require.Contains(t, out, "Approval rate: 50.0%")
	require.Contains(t, out, "1m30s")
	require.Contains(t, out, "approved=1 denied=1")
}

func TestParseTenant(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	got, err := parseTenant(" " + id.String() + " ")
	require.NoError(t, err)
	require.Equal(t, id, got)

	_, err = parseTenant("acme")
	require.Error(t, err)
}

func TestParseCatalogFile(t *testing.T) {
	t.Parallel()

	modules, err := parseCatalogFile([]byte(`
modules:
  - id: analytics
    name: Sales Analytics
    visibility: public
    requestPolicy: auto_approve
    autoEnablePolicy: new_tenants
  - id: crm
    dependsOn: [analytics]
`))
	require.NoError(t, err)
	require.Len(t, modules, 2)
	require.Equal(t, service.AutoEnableNewTenants, modules[0].AutoEnablePolicy)
	require.Equal(t, service.VisibilityPrivate, modules[1].Visibility)
	require.Equal(t, service.RequestManualApproval, modules[1].RequestPolicy)
	require.Equal(t, []string{"analytics"}, modules[1].Dependencies)

	_, err = parseCatalogFile([]byte("modules:\n  - id: crm\n  - id: crm\n"))
	require.ErrorContains(t, err, "duplicate")

	_, err = parseCatalogFile([]byte("modules:\n  - id: crm\n    requestPolicy: sometimes\n"))
	require.ErrorContains(t, err, "modules[0]")
}
