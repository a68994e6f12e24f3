package devtoken

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Params are the claims of an unsigned Firebase-shaped token for local and CI
// use. Nothing is read from the environment.
type Params struct {
	ProjectID      string        // aud and iss
	UserID         string        // user_id/sub
	Email          string
	Name           string
	EmailVerified  bool
	TenantID       string        // tenantId custom claim; empty for platform staff
	FirebaseTenant string        // firebase.tenant, optional
	IsAdmin        bool          // isAdmin custom claim
	Roles          []string      // moduleRoles custom claim
	ServiceAccount bool          // serviceAccount custom claim
	SignInProvider string        // firebase.sign_in_provider; default "password"
	ExpiresIn      time.Duration // default 1h
	Audience       string        // defaults to ProjectID
	Issuer         string        // defaults to https://securetoken.google.com/<projectId>
}

// BuildUnsignedFirebaseToken returns a JWT with alg "none" and no signature.
// It is accepted by the API when AUTH_PROVIDER=dev.
func BuildUnsignedFirebaseToken(p Params, now time.Time) (string, error) {
	if strings.TrimSpace(p.ProjectID) == "" {
		return "", errors.New("projectID is required")
	}
	if strings.TrimSpace(p.UserID) == "" {
		return "", errors.New("userID is required")
	}
	if strings.TrimSpace(p.Email) == "" {
		return "", errors.New("email is required")
	}

	if now.IsZero() {
		now = time.Now().UTC()
	}
	expiresIn := p.ExpiresIn
	if expiresIn == 0 {
		expiresIn = time.Hour
	}

	issuer := orDefault(p.Issuer, fmt.Sprintf("https://securetoken.google.com/%s", p.ProjectID))
	audience := orDefault(p.Audience, p.ProjectID)

	firebaseClaim := map[string]interface{}{
		"identities":       map[string]interface{}{"email": []string{p.Email}},
		"sign_in_provider": orDefault(p.SignInProvider, "password"),
	}
	if t := strings.TrimSpace(p.FirebaseTenant); t != "" {
		firebaseClaim["tenant"] = t
	}

	payload := map[string]interface{}{
		"iss":            issuer,
		"aud":            audience,
		"auth_time":      now.Unix(),
		"user_id":        p.UserID,
		"sub":            p.UserID,
		"iat":            now.Unix(),
		"exp":            now.Add(expiresIn).Unix(),
		"email":          p.Email,
		"email_verified": p.EmailVerified,
		"isAdmin":        p.IsAdmin,
		"firebase":       firebaseClaim,
	}
	if p.Name != "" {
		payload["name"] = p.Name
	}
	if t := strings.TrimSpace(p.TenantID); t != "" {
		payload["tenantId"] = t
	}
	if p.ServiceAccount {
		payload["serviceAccount"] = true
	}
	if len(p.Roles) > 0 {
		payload["moduleRoles"] = p.Roles
	}

	headerSegment, err := encodeSegment(map[string]interface{}{"alg": "none", "typ": "JWT"})
	if err != nil {
		return "", err
	}
	payloadSegment, err := encodeSegment(payload)
	if err != nil {
		return "", err
	}

	return headerSegment + "." + payloadSegment + ".", nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func encodeSegment(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
