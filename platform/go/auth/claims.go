package auth

import "errors"

// Custom claims understood by the lifecycle API.
const (
	claimAdmin          = "isAdmin"
	claimRoles          = "moduleRoles"
	claimServiceAccount = "serviceAccount"
	claimTenant         = "tenantId"
)

// DefaultCredentialExtractor builds UserCredentials from verified token claims.
func DefaultCredentialExtractor(claims map[string]interface{}) (*UserCredentials, error) {
	if claims == nil {
		return nil, errors.New("missing claims")
	}

	id := firstNonEmpty(claims, "uid", "user_id", "sub")
	if id == "" {
		return nil, errors.New("missing subject claim")
	}

	creds := &UserCredentials{
		Id:             id,
		Email:          claimValue[string](claims, "email"),
		EmailVerified:  claimValue[bool](claims, "email_verified"),
		IsAdmin:        claimValue[bool](claims, claimAdmin),
		Roles:          stringList(claims[claimRoles]),
		ServiceAccount: claimValue[bool](claims, claimServiceAccount),
		TenantID:       extractTenantID(claims),
	}
	if name := claimValue[string](claims, "name"); name != "" {
		creds.Name = &name
	}
	return creds, nil
}

// claimValue returns the claim as T, or the zero value when absent or of another type.
func claimValue[T any](claims map[string]interface{}, key string) T {
	v, _ := claims[key].(T)
	return v
}

func firstNonEmpty(claims map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v := claimValue[string](claims, key); v != "" {
			return v
		}
	}
	return ""
}

func stringList(raw any) []string {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// extractTenantID prefers the tenantId custom claim and falls back to the
// Identity Platform tenant under firebase.tenant.
func extractTenantID(claims map[string]interface{}) *string {
	tenant := claimValue[string](claims, claimTenant)
	if tenant == "" {
		nested := claimValue[map[string]interface{}](claims, "firebase")
		tenant = claimValue[string](nested, "tenant")
	}
	if tenant == "" {
		return nil
	}
	return &tenant
}
