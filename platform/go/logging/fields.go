package logging

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Lifecycle returns the fields identifying one tenant-module assignment.
func Lifecycle(tenantID uuid.UUID, moduleID string) []zap.Field {
	return []zap.Field{
		zap.String("tenant_id", tenantID.String()),
		zap.String("module_id", moduleID),
	}
}

// Request adds the caller's request id when present.
func Request(fields []zap.Field, requestID string) []zap.Field {
	if requestID == "" {
		return fields
	}
	return append(fields, zap.String("request_id", requestID))
}
