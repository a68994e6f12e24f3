package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/service"
	"github.com/zenGate-Global/retailops/platform/go/events"
	"github.com/zenGate-Global/retailops/platform/go/logging"
)

const (
	TopicProvisioningRequested = "provisioning.requested"
	TopicApprovalDecided       = "approval.decided"
)

var (
	_ service.Provisioner = (*Publisher)(nil)
	_ service.Notifier    = (*Publisher)(nil)
)

type eventPublisher interface {
	Publish(ctx context.Context, topic string, ev events.Event) (int64, error)
}

// Publisher forwards lifecycle side effects to the event bus. Provisioning
// workers and notification senders subscribe to the topics.
type Publisher struct {
	events eventPublisher
	logger *zap.Logger
}

func NewPublisher(pub eventPublisher, logger *zap.Logger) (*Publisher, error) {
	if pub == nil {
		return nil, errors.New("event publisher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{events: pub, logger: logger}, nil
}

type provisioningEvent struct {
	TenantID    uuid.UUID `json:"tenantId"`
	ModuleID    string    `json:"moduleId"`
	Trigger     string    `json:"trigger"`
	RequestedBy *string   `json:"requestedBy,omitempty"`
}

type decisionEvent struct {
	ApprovalRequestID uuid.UUID `json:"approvalRequestId"`
	TenantID          uuid.UUID `json:"tenantId"`
	ModuleID          string    `json:"moduleId"`
	Decision          string    `json:"decision"`
	RequestedBy       *string   `json:"requestedBy,omitempty"`
	ReviewedBy        *string   `json:"reviewedBy,omitempty"`
	Notes             string    `json:"notes,omitempty"`
}

func (p *Publisher) ProvisioningRequested(ctx context.Context, req service.ProvisioningRequest) error {
	receivers, err := p.events.Publish(ctx, TopicProvisioningRequested, events.Event{
		Type:       TopicProvisioningRequested,
		OccurredAt: req.RequestedAt,
		RequestID:  req.RequestID,
		Data: provisioningEvent{
			TenantID:    req.TenantID,
			ModuleID:    req.ModuleID,
			Trigger:     req.Trigger,
			RequestedBy: req.RequestedBy,
		},
	})
	if err != nil {
		return err
	}
	if receivers == 0 {
		p.logger.Warn("no provisioning worker subscribed",
			logging.Request(logging.Lifecycle(req.TenantID, req.ModuleID), req.RequestID)...)
	}
	return nil
}

func (p *Publisher) ApprovalDecided(ctx context.Context, notice service.ApprovalNotice) error {
	_, err := p.events.Publish(ctx, TopicApprovalDecided, events.Event{
		Type:       TopicApprovalDecided,
		OccurredAt: notice.DecidedAt,
		Data: decisionEvent{
			ApprovalRequestID: notice.RequestID,
			TenantID:          notice.TenantID,
			ModuleID:          notice.ModuleID,
			Decision:          string(notice.Decision),
			RequestedBy:       notice.RequestedBy,
			ReviewedBy:        notice.ReviewedBy,
			Notes:             notice.Notes,
		},
	})
	return err
}

// Discard drops every side effect. Used when no event bus is configured.
type Discard struct {
	Logger *zap.Logger
}

func (d Discard) ProvisioningRequested(ctx context.Context, req service.ProvisioningRequest) error {
	d.log("provisioning requested", req.TenantID, req.ModuleID, zap.String("trigger", req.Trigger))
	return nil
}

func (d Discard) ApprovalDecided(ctx context.Context, notice service.ApprovalNotice) error {
	d.log("approval decided", notice.TenantID, notice.ModuleID, zap.String("decision", string(notice.Decision)))
	return nil
}

func (d Discard) log(msg string, tenantID uuid.UUID, moduleID string, extra zap.Field) {
	if d.Logger == nil {
		return
	}
	d.Logger.Debug(msg, append(logging.Lifecycle(tenantID, moduleID), extra, zap.Time("at", time.Now().UTC()))...)
}
