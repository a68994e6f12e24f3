package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/status"
	"github.com/zenGate-Global/retailops/platform/go/requesttrace"
)

// AuditTrail owns the transition history. Entries are built here and
// committed by the store inside the same unit as the transition they
// describe; nothing updates or deletes them afterwards.
type AuditTrail struct {
	store HistoryStore
}

// NewAuditTrail constructs an AuditTrail reading from store.
func NewAuditTrail(store HistoryStore) *AuditTrail {
	if store == nil {
		panic("history store is required")
	}
	return &AuditTrail{store: store}
}

// Query returns entries ordered by creation time.
func (a *AuditTrail) Query(ctx context.Context, q HistoryQuery) ([]HistoryEntry, error) {
	if q.Window.From != nil && q.Window.To != nil && q.Window.To.Before(*q.Window.From) {
		return nil, newValidationError(map[string]string{"to": "to must not be before from"})
	}
	entries, err := a.store.QueryHistory(ctx, q)
	if err != nil {
		return nil, wrapStoreErr("query status history", err)
	}
	return entries, nil
}

// record builds the entry for one transition of assignment a.
func (a *AuditTrail) record(actor requesttrace.AuditInfo, assignment Assignment, previous *status.Operational, reason string, metadata status.Payload, at time.Time) HistoryEntry {
	return HistoryEntry{
		ID:             uuid.New(),
		TenantID:       assignment.TenantID,
		ModuleID:       assignment.ModuleID,
		PreviousStatus: previous,
		NewStatus:      assignment.Status,
		ChangedBy:      actorUserID(actor),
		ActorKind:      actor.ActorKind,
		ChangeReason:   reason,
		ChangeMetadata: metadata,
		RequestID:      actor.RequestID,
		CreatedAt:      at,
	}
}

// actorUserID returns the human actor's id, or nil for system and anonymous callers.
func actorUserID(actor requesttrace.AuditInfo) *string {
	if !actor.IsUser() {
		return nil
	}
	id := *actor.UserID
	return &id
}
