package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3filter"

	platformauth "github.com/zenGate-Global/retailops/platform/go/auth"
)

// ValidateAuthenticationViaSwagger is the openapi3filter AuthenticationFunc.
// Operations secured with bearerAuth need verified credentials; scopes listed
// on the requirement are roles, any one of which is sufficient.
// The JWT middleware must run before the validator.
func ValidateAuthenticationViaSwagger(ctx context.Context, input *openapi3filter.AuthenticationInput) error {
	if input == nil || input.SecuritySchemeName != "bearerAuth" {
		return nil
	}

	r := input.RequestValidationInput.Request
	if r == nil {
		return errors.New("no request in validation input")
	}

	creds, ok := platformauth.UserFromContext(r.Context())
	if !ok || creds == nil {
		return errors.New("missing or invalid bearer token")
	}

	if len(input.Scopes) == 0 {
		return nil
	}
	for _, role := range input.Scopes {
		if creds.HasRole(role) {
			return nil
		}
	}
	return fmt.Errorf("one of roles %v is required", input.Scopes)
}
