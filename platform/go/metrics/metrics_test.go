package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecordTransitionLabelsCreation(t *testing.T) {
	before := testutil.ToFloat64(transitions.WithLabelValues("none", "provisioning"))
	RecordTransition("", "provisioning")
	require.Equal(t, before+1, testutil.ToFloat64(transitions.WithLabelValues("none", "provisioning")))
}

func TestRecordDecisionSkipsLatencyForCancelled(t *testing.T) {
	before := testutil.ToFloat64(approvalDecisions.WithLabelValues("cancelled"))
	RecordDecision("cancelled", time.Hour)
	require.Equal(t, before+1, testutil.ToFloat64(approvalDecisions.WithLabelValues("cancelled")))
}

func TestHandlerExposesLifecycleSeries(t *testing.T) {
	RecordRejection(ReasonConflict)
	RecordCollaboratorFailure(CollaboratorNotifier)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "module_lifecycle_transition_rejections_total"))
	require.True(t, strings.Contains(body, `collaborator="notifier"`))
}
