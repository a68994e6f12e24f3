package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/status"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}

// ValidationError is returned for illegal transitions, policy refusals and bad input.
// AllowedNext is populated when the failure is an illegal status transition.
type ValidationError struct {
	Fields      FieldErrors
	AllowedNext []status.Operational
}

func (v *ValidationError) Error() string {
	if len(v.Fields) == 0 {
		return "validation error"
	}
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(v.Fields[k], "; "))
	}
	return "validation error: " + strings.Join(parts, ", ")
}

func newValidationError(fields map[string]string) *ValidationError {
	fe := FieldErrors{}
	for key, message := range fields {
		fe.add(key, message)
	}
	return &ValidationError{Fields: fe}
}

// Domain sentinel errors. Specific errors wrap the category so callers can
// match either with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrModuleNotFound     = fmt.Errorf("module %w", ErrNotFound)
	ErrAssignmentNotFound = fmt.Errorf("module assignment %w", ErrNotFound)
	ErrApprovalNotFound   = fmt.Errorf("approval request %w", ErrNotFound)

	ErrConflict             = errors.New("conflict")
	ErrStaleStatus          = fmt.Errorf("%w: assignment status changed since it was read", ErrConflict)
	ErrAssignmentExists     = fmt.Errorf("%w: module assignment already exists", ErrConflict)
	ErrPendingRequestExists = fmt.Errorf("%w: a pending approval request already exists", ErrConflict)
	ErrRequestNotPending    = fmt.Errorf("%w: approval request is no longer pending", ErrConflict)
)

// InfrastructureError reports a store or catalog failure. Nothing was persisted.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// wrapStoreErr passes domain errors through and classifies everything else
// as an infrastructure failure.
func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var validationErr *ValidationError
	var infraErr *InfrastructureError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return err
	case errors.As(err, &validationErr), errors.As(err, &infraErr):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &InfrastructureError{Op: op, Err: err}
	}
}
