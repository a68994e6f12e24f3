package status

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeProvisioningFailed(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"kind":"provisioning_failed","data":{"code":"quota_exceeded","message":"no capacity","retryable":true,"details":{"region":"eu"}}}`)

	p, err := Decode(raw)
	require.NoError(t, err)

	failed, ok := p.(ProvisioningFailed)
	require.True(t, ok)
	require.Equal(t, "quota_exceeded", failed.Code)
	require.True(t, failed.Retryable)
	require.Equal(t, "eu", failed.Details["region"])
	require.NoError(t, CheckTarget(p, Error))
	require.Error(t, CheckTarget(p, Enabled))
}

func TestDecodeRejectsSchemaViolations(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unknown kind":         `{"kind":"exploded","data":{}}`,
		"missing data":         `{"kind":"activated"}`,
		"missing failure code": `{"kind":"provisioning_failed","data":{"message":"boom"}}`,
		"empty denial reason":  `{"kind":"approval_denied","data":{"denial_reason":""}}`,
		"unexpected field":     `{"kind":"deactivation","data":{"reason":"x","extra":1}}`,
		"bad trigger":          `{"kind":"provisioning_started","data":{"trigger":"whenever"}}`,
		"bad until":            `{"kind":"suspension","data":{"reason":"audit","until":"tomorrow"}}`,
		"not json":             `{"kind":`,
	}

	for name, raw := range cases {
		_, err := Decode([]byte(raw))
		require.Error(t, err, name)
	}
}

func TestDecodeEmptyIsNil(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "  ", "null"} {
		p, err := Decode([]byte(raw))
		require.NoError(t, err)
		require.Nil(t, p)
	}
}

func TestEncodeProducesTaggedEnvelope(t *testing.T) {
	t.Parallel()

	reviewer := "reviewer-1"
	denied, err := NewApprovalDenied("insufficient quota", &reviewer)
	require.NoError(t, err)

	raw, err := Encode(denied)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Equal(t, "approval_denied", doc["kind"])
	data := doc["data"].(map[string]any)
	require.Equal(t, "insufficient quota", data["denial_reason"])

	back, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, denied, back)
}

func TestConstructorsValidate(t *testing.T) {
	t.Parallel()

	_, err := NewApprovalDenied("   ", nil)
	require.Error(t, err)

	_, err = NewProvisioningFailed("", "boom", false)
	require.Error(t, err)

	_, err = Encode(Suspension{})
	require.Error(t, err)

	require.Error(t, CheckTarget(ProvisioningStarted{Trigger: "later"}, Provisioning))
}

func TestRequiresHuman(t *testing.T) {
	t.Parallel()

	require.True(t, RequiresHuman(ApprovalDenied{DenialReason: "no"}))
	require.True(t, RequiresHuman(RequestWithdrawn{}))
	require.False(t, RequiresHuman(ProvisioningFailed{Code: "timeout"}))
	require.False(t, RequiresHuman(nil))
}
