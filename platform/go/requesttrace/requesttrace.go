package requesttrace

import (
	"context"
	"errors"

	platformauth "github.com/zenGate-Global/retailops/platform/go/auth"
)

type contextKey string

const (
	ctxAuditInfo contextKey = "RETAILOPS_REQUEST_TRACE"
)

// ActorKind represents who initiated a request.
type ActorKind string

const (
	ActorKindUser      ActorKind = "user"
	ActorKindAnonymous ActorKind = "anonymous"
	ActorKindSystem    ActorKind = "system"
)

// AuditInfo identifies the actor behind a state change.
// UserID is set only when ActorKind is user. ServiceID names the service
// account for system actors that authenticated.
type AuditInfo struct {
	ActorKind ActorKind
	UserID    *string
	ServiceID *string
	TenantID  *string
	RequestID string
}

// IsUser reports whether a human user is acting.
func (a AuditInfo) IsUser() bool {
	return a.ActorKind == ActorKindUser && a.UserID != nil && *a.UserID != ""
}

// IntoContext stores the AuditInfo in the provided context.
func IntoContext(ctx context.Context, audit AuditInfo) context.Context {
	return context.WithValue(ctx, ctxAuditInfo, audit)
}

// FromContext extracts the AuditInfo from context, returning false when not present.
func FromContext(ctx context.Context) (AuditInfo, bool) {
	if ctx == nil {
		return AuditInfo{}, false
	}
	audit, ok := ctx.Value(ctxAuditInfo).(AuditInfo)
	return audit, ok
}

// FromContextOrAnonymous returns the AuditInfo stored on the context, or an anonymous record when absent.
func FromContextOrAnonymous(ctx context.Context) AuditInfo {
	if audit, ok := FromContext(ctx); ok {
		return audit
	}
	return Anonymous("")
}

// FromCredentials builds an AuditInfo from authenticated credentials. Service
// accounts become system actors.
func FromCredentials(creds *platformauth.UserCredentials, requestID string) (AuditInfo, error) {
	if creds == nil {
		return AuditInfo{}, errors.New("credentials are required to build audit info")
	}
	if creds.Id == "" {
		return AuditInfo{}, errors.New("user id is required to build audit info")
	}

	if creds.ServiceAccount {
		audit := System(requestID)
		id := creds.Id
		audit.ServiceID = &id
		audit.TenantID = creds.TenantID
		return audit, nil
	}

	id := creds.Id
	return AuditInfo{
		ActorKind: ActorKindUser,
		UserID:    &id,
		TenantID:  creds.TenantID,
		RequestID: requestID,
	}, nil
}

// Anonymous builds an AuditInfo for unauthenticated requests.
func Anonymous(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindAnonymous, RequestID: requestID}
}

// System builds an AuditInfo for background jobs, the CLI and service accounts.
func System(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindSystem, RequestID: requestID}
}
