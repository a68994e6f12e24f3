package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind tags a transition payload variant.
type Kind string

const (
	KindProvisioningStarted Kind = "provisioning_started"
	KindActivated           Kind = "activated"
	KindProvisioningFailed  Kind = "provisioning_failed"
	KindApprovalDenied      Kind = "approval_denied"
	KindRequestWithdrawn    Kind = "request_withdrawn"
	KindSuspension          Kind = "suspension"
	KindDeactivation        Kind = "deactivation"
)

// Payload is the status-specific metadata attached to a transition.
// Each variant declares which target statuses it may accompany.
type Payload interface {
	Kind() Kind
	Accepts(target Operational) bool
	validate() error
}

// Provisioning triggers.
const (
	TriggerAutoApprove = "auto_approve"
	TriggerApproval    = "approval"
	TriggerRetry       = "retry"
	TriggerReprovision = "reprovision"
)

// ProvisioningStarted accompanies a move into provisioning.
type ProvisioningStarted struct {
	Trigger     string  `json:"trigger"`
	ApprovedBy  *string `json:"approved_by,omitempty"`
	ExternalRef string  `json:"external_ref,omitempty"`
}

func (ProvisioningStarted) Kind() Kind { return KindProvisioningStarted }
func (ProvisioningStarted) Accepts(t Operational) bool { return t == Provisioning }
func (p ProvisioningStarted) validate() error {
	switch p.Trigger {
	case TriggerAutoApprove, TriggerApproval, TriggerRetry, TriggerReprovision:
		return nil
	default:
		return fmt.Errorf("unknown provisioning trigger %q", p.Trigger)
	}
}

// Activated is reported by the provisioner when the module becomes usable.
type Activated struct {
	Version  string `json:"version,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

func (Activated) Kind() Kind { return KindActivated }
func (Activated) Accepts(t Operational) bool { return t == Enabled || t == UpToDate }
func (Activated) validate() error { return nil }

// ProvisioningFailed carries the provisioner's error report. It becomes the
// assignment's error details.
type ProvisioningFailed struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

// NewProvisioningFailed builds a validated failure payload.
func NewProvisioningFailed(code, message string, retryable bool) (ProvisioningFailed, error) {
	p := ProvisioningFailed{Code: strings.TrimSpace(code), Message: strings.TrimSpace(message), Retryable: retryable}
	if err := p.validate(); err != nil {
		return ProvisioningFailed{}, err
	}
	return p, nil
}

func (ProvisioningFailed) Kind() Kind { return KindProvisioningFailed }
func (ProvisioningFailed) Accepts(t Operational) bool { return t == Error }
func (p ProvisioningFailed) validate() error {
	if strings.TrimSpace(p.Code) == "" {
		return errors.New("failure code is required")
	}
	return nil
}

// ApprovalDenied records a reviewer's rejection.
type ApprovalDenied struct {
	DenialReason string  `json:"denial_reason"`
	ReviewedBy   *string `json:"reviewed_by,omitempty"`
}

// NewApprovalDenied builds a validated denial payload.
func NewApprovalDenied(reason string, reviewedBy *string) (ApprovalDenied, error) {
	p := ApprovalDenied{DenialReason: strings.TrimSpace(reason), ReviewedBy: reviewedBy}
	if err := p.validate(); err != nil {
		return ApprovalDenied{}, err
	}
	return p, nil
}

func (ApprovalDenied) Kind() Kind { return KindApprovalDenied }
func (ApprovalDenied) Accepts(t Operational) bool { return t == Error }
func (p ApprovalDenied) validate() error {
	if strings.TrimSpace(p.DenialReason) == "" {
		return errors.New("denial reason is required")
	}
	return nil
}

// RequestWithdrawn records a requester cancelling their own pending request.
type RequestWithdrawn struct {
	Reason      string  `json:"reason,omitempty"`
	WithdrawnBy *string `json:"withdrawn_by,omitempty"`
}

func (RequestWithdrawn) Kind() Kind { return KindRequestWithdrawn }
func (RequestWithdrawn) Accepts(t Operational) bool { return t == Error }
func (RequestWithdrawn) validate() error { return nil }

// Suspension accompanies a temporary stop.
type Suspension struct {
	Reason string     `json:"reason"`
	Until  *time.Time `json:"until,omitempty"`
}

func (Suspension) Kind() Kind { return KindSuspension }
func (Suspension) Accepts(t Operational) bool { return t == Suspended }
func (p Suspension) validate() error {
	if strings.TrimSpace(p.Reason) == "" {
		return errors.New("suspension reason is required")
	}
	return nil
}

// Deactivation accompanies disable and archive.
type Deactivation struct {
	Reason string `json:"reason,omitempty"`
}

func (Deactivation) Kind() Kind { return KindDeactivation }
func (Deactivation) Accepts(t Operational) bool { return t == Disabled || t == Archived }
func (Deactivation) validate() error { return nil }

// RequiresHuman reports whether leaving the error state described by p needs a
// user actor rather than an automated caller.
func RequiresHuman(p Payload) bool {
	switch p.(type) {
	case ApprovalDenied, *ApprovalDenied, RequestWithdrawn, *RequestWithdrawn:
		return true
	default:
		return false
	}
}

// CheckTarget validates p and confirms it may accompany a move into target.
// A nil payload is always acceptable.
func CheckTarget(p Payload, target Operational) error {
	if p == nil {
		return nil
	}
	if !p.Accepts(target) {
		return fmt.Errorf("payload %s cannot accompany status %s", p.Kind(), target)
	}
	return p.validate()
}

type envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Encode serialises p into its tagged envelope. A nil payload encodes to nil.
func Encode(p Payload) (json.RawMessage, error) {
	if p == nil {
		return nil, nil
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.Kind(), err)
	}
	return json.Marshal(envelope{Kind: p.Kind(), Data: data})
}

// Decode parses a tagged envelope, validating it against the schema for its kind.
// Empty input and JSON null decode to a nil payload.
func Decode(raw []byte) (Payload, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if err := validateEnvelope(raw); err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}

	var p Payload
	switch env.Kind {
	case KindProvisioningStarted:
		var v ProvisioningStarted
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		p = v
	case KindActivated:
		var v Activated
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		p = v
	case KindProvisioningFailed:
		var v ProvisioningFailed
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		p = v
	case KindApprovalDenied:
		var v ApprovalDenied
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		p = v
	case KindRequestWithdrawn:
		var v RequestWithdrawn
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		p = v
	case KindSuspension:
		var v Suspension
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		p = v
	case KindDeactivation:
		var v Deactivation
		if err := json.Unmarshal(env.Data, &v); err != nil {
			return nil, err
		}
		p = v
	default:
		return nil, fmt.Errorf("unknown payload kind %q", env.Kind)
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}
