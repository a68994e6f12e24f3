package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractTenantID(t *testing.T) {
	tenant := "3f1c2a9e-8d4b-4c1a-9f3e-2b6d7a8c9e01"
	firebaseTenant := "tenant-firebase"

	testCases := []struct {
		name   string
		claims map[string]interface{}
		want   *string
	}{
		{
			name:   "top level tenantId",
			claims: map[string]interface{}{"tenantId": tenant},
			want:   &tenant,
		},
		{
			name: "custom claim wins over firebase tenant",
			claims: map[string]interface{}{
				"tenantId": tenant,
				"firebase": map[string]interface{}{"tenant": firebaseTenant},
			},
			want: &tenant,
		},
		{
			name: "firebase tenant claim",
			claims: map[string]interface{}{
				"firebase": map[string]interface{}{"tenant": firebaseTenant},
			},
			want: &firebaseTenant,
		},
		{
			name:   "missing tenant",
			claims: map[string]interface{}{},
			want:   nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := extractTenantID(tc.claims)
			if tc.want == nil {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.Equal(t, *tc.want, *got)
		})
	}
}

func TestDefaultCredentialExtractor(t *testing.T) {
	creds, err := DefaultCredentialExtractor(map[string]interface{}{
		"uid":            "user-123",
		"email":          "user@example.com",
		"tenantId":       "tenant-dev",
		"moduleRoles":    []interface{}{RoleModuleReviewer, 7},
		"email_verified": true,
	})
	require.NoError(t, err)
	require.Equal(t, "user-123", creds.Id)
	require.NotNil(t, creds.TenantID)
	require.Equal(t, "tenant-dev", *creds.TenantID)
	require.Equal(t, []string{RoleModuleReviewer}, creds.Roles)
	require.True(t, creds.HasRole(RoleModuleReviewer))
	require.False(t, creds.HasRole(RoleModuleOperator))

	_, err = DefaultCredentialExtractor(map[string]interface{}{"email": "nobody@example.com"})
	require.Error(t, err)
}

func TestJWTMiddleware(t *testing.T) {
	verify := func(ctx context.Context, token string) (map[string]interface{}, error) {
		return map[string]interface{}{"uid": "user-" + token, "isAdmin": true}, nil
	}

	var seen *UserCredentials
	handler := JWT(verify, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer abc")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, seen)
	require.Equal(t, "user-abc", seen.Id)
	require.True(t, seen.HasRole(RoleModuleOperator))

	seen = nil
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Nil(t, seen)
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	gate := RequireRole(RoleModuleReviewer)(ok)

	cases := []struct {
		name  string
		creds *UserCredentials
		want  int
	}{
		{"anonymous", nil, http.StatusForbidden},
		{"tenant user", &UserCredentials{Id: "u1"}, http.StatusForbidden},
		{"reviewer", &UserCredentials{Id: "u2", Roles: []string{RoleModuleReviewer}}, http.StatusOK},
		{"admin", &UserCredentials{Id: "u3", IsAdmin: true}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tc.creds != nil {
				req = req.WithContext(WithUser(req.Context(), tc.creds))
			}
			rr := httptest.NewRecorder()
			gate.ServeHTTP(rr, req)
			require.Equal(t, tc.want, rr.Code)
		})
	}

	rr := httptest.NewRecorder()
	RequireAuthenticated(ok).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
