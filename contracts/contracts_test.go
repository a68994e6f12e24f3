package contracts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModuleLifecycleContractLoads(t *testing.T) {
	t.Parallel()

	spec, err := ModuleLifecycle()
	require.NoError(t, err)
	require.Contains(t, spec.Components.SecuritySchemes, "bearerAuth")

	for _, path := range []string{
		"/tenants/{tenantId}/modules",
		"/tenants/{tenantId}/modules/{moduleId}/status",
		"/approvals/pending",
		"/approvals/{requestId}/deny",
		"/stats",
	} {
		require.NotNil(t, spec.Paths.Find(path), path)
	}

	patch := spec.Paths.Find("/tenants/{tenantId}/modules/{moduleId}/status").Patch
	require.NotNil(t, patch)
	require.NotNil(t, patch.Security)
	require.Equal(t, []string{"module-operator"}, (*patch.Security)[0]["bearerAuth"])
}
