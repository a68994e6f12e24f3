package devtoken

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildUnsignedFirebaseToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()

	token, err := BuildUnsignedFirebaseToken(Params{
		ProjectID:     "local-retailops",
		UserID:        "reviewer-1",
		Email:         "reviewer@example.com",
		Name:          "Rae Reviewer",
		EmailVerified: true,
		TenantID:      "3f1c2a9e-8d4b-4c1a-9f3e-2b6d7a8c9e01",
		Roles:         []string{"module-reviewer"},
		ExpiresIn:     30 * time.Minute,
	}, now)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(token, "."))

	header, payload := splitToken(t, token)
	require.Equal(t, "none", header["alg"])
	require.Equal(t, "https://securetoken.google.com/local-retailops", payload["iss"])
	require.Equal(t, "local-retailops", payload["aud"])
	require.Equal(t, "reviewer-1", payload["sub"])
	require.Equal(t, "3f1c2a9e-8d4b-4c1a-9f3e-2b6d7a8c9e01", payload["tenantId"])
	require.Equal(t, []interface{}{"module-reviewer"}, payload["moduleRoles"])
	require.EqualValues(t, now.Add(30*time.Minute).Unix(), payload["exp"])

	firebaseClaim, ok := payload["firebase"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "password", firebaseClaim["sign_in_provider"])
	require.NotContains(t, firebaseClaim, "tenant")
}

func TestBuildUnsignedFirebaseTokenRequiresIdentity(t *testing.T) {
	_, err := BuildUnsignedFirebaseToken(Params{ProjectID: "p", Email: "a@example.com"}, time.Time{})
	require.Error(t, err)

	_, err = BuildUnsignedFirebaseToken(Params{UserID: "u", Email: "a@example.com"}, time.Time{})
	require.Error(t, err)
}

func splitToken(t *testing.T, token string) (map[string]interface{}, map[string]interface{}) {
	t.Helper()
	parts := strings.Split(token, ".")
	require.GreaterOrEqual(t, len(parts), 2)
	return decodeSegment(t, parts[0]), decodeSegment(t, parts[1])
}

func decodeSegment(t *testing.T, segment string) map[string]interface{} {
	t.Helper()
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}
