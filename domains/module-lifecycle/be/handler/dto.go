package handler

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/service"
	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/status"
)

type requestModuleBody struct {
	ModuleID string         `json:"moduleId"`
	Reason   string         `json:"reason"`
	Metadata map[string]any `json:"metadata"`
}

type updateStatusBody struct {
	Status  string          `json:"status"`
	Reason  string          `json:"reason"`
	Payload json.RawMessage `json:"payload"`
}

type reviewBody struct {
	Notes string `json:"notes"`
}

type cancelBody struct {
	Reason string `json:"reason"`
}

type autoEnableBody struct {
	NewTenant bool `json:"newTenant"`
}

type assignmentDTO struct {
	TenantID              uuid.UUID       `json:"tenantId"`
	ModuleID              string          `json:"moduleId"`
	OperationalStatus     string          `json:"operationalStatus"`
	HealthStatus          string          `json:"healthStatus"`
	RetryCount            int             `json:"retryCount"`
	ErrorDetails          json.RawMessage `json:"errorDetails,omitempty"`
	LastStatusChange      time.Time       `json:"lastStatusChange"`
	StatusChangeReason    string          `json:"statusChangeReason"`
	ProvisioningStartedAt *time.Time      `json:"provisioningStartedAt,omitempty"`
	ApprovedBy            *string         `json:"approvedBy,omitempty"`
	ApprovedAt            *time.Time      `json:"approvedAt,omitempty"`
	Metadata              map[string]any  `json:"metadata,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

type approvalDTO struct {
	ID            uuid.UUID  `json:"id"`
	TenantID      uuid.UUID  `json:"tenantId"`
	ModuleID      string     `json:"moduleId"`
	RequestedBy   *string    `json:"requestedBy,omitempty"`
	RequestReason string     `json:"requestReason"`
	Status        string     `json:"status"`
	ReviewedBy    *string    `json:"reviewedBy,omitempty"`
	ReviewNotes   string     `json:"reviewNotes,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	ReviewedAt    *time.Time `json:"reviewedAt,omitempty"`
}

type approvalViewDTO struct {
	approvalDTO
	ModuleName    string `json:"moduleName,omitempty"`
	RequesterName string `json:"requesterName,omitempty"`
	ReviewerName  string `json:"reviewerName,omitempty"`
}

type historyDTO struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       uuid.UUID       `json:"tenantId"`
	ModuleID       string          `json:"moduleId"`
	PreviousStatus *string         `json:"previousStatus"`
	NewStatus      string          `json:"newStatus"`
	ChangedBy      *string         `json:"changedBy"`
	ActorKind      string          `json:"actorKind"`
	ChangeReason   string          `json:"changeReason"`
	ChangeMetadata json.RawMessage `json:"changeMetadata,omitempty"`
	RequestID      string          `json:"requestId,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type requestResultDTO struct {
	Assignment      assignmentDTO `json:"assignment"`
	ApprovalRequest *approvalDTO  `json:"approvalRequest,omitempty"`
}

type transitionDTO struct {
	PreviousStatus string        `json:"previousStatus"`
	CurrentStatus  string        `json:"currentStatus"`
	Assignment     assignmentDTO `json:"assignment"`
}

type decisionDTO struct {
	ApprovalRequest approvalDTO   `json:"approvalRequest"`
	Transition      transitionDTO `json:"transition"`
}

type autoEnableDTO struct {
	ModuleID   string            `json:"moduleId"`
	Outcome    string            `json:"outcome"`
	Error      string            `json:"error,omitempty"`
	Assignment *requestResultDTO `json:"result,omitempty"`
}

type statsDTO struct {
	From                        *time.Time     `json:"from,omitempty"`
	To                          *time.Time     `json:"to,omitempty"`
	Total                       int            `json:"totalAssignments"`
	ByStatus                    map[string]int `json:"byStatus"`
	ByHealth                    map[string]int `json:"byHealth"`
	PendingApprovals            int            `json:"pendingApprovals"`
	ApprovedRequests            int            `json:"approvedRequests"`
	DeniedRequests              int            `json:"deniedRequests"`
	CancelledRequests           int            `json:"cancelledRequests"`
	ApprovalRate                *float64       `json:"approvalRate"`
	AverageReviewLatencySeconds *float64       `json:"averageReviewLatencySeconds"`
}

type listDTO[T any] struct {
	Items []T `json:"items"`
}

// encodePayload renders p as its tagged envelope, or nil when it cannot be encoded.
func encodePayload(p status.Payload) json.RawMessage {
	raw, err := status.Encode(p)
	if err != nil {
		return nil
	}
	return raw
}

func toAssignmentDTO(a service.Assignment) assignmentDTO {
	return assignmentDTO{
		TenantID:              a.TenantID,
		ModuleID:              a.ModuleID,
		OperationalStatus:     string(a.Status),
		HealthStatus:          string(a.Health),
		RetryCount:            a.RetryCount,
		ErrorDetails:          encodePayload(a.ErrorDetails),
		LastStatusChange:      a.LastStatusChange,
		StatusChangeReason:    a.StatusChangeReason,
		ProvisioningStartedAt: a.ProvisioningStartedAt,
		ApprovedBy:            a.ApprovedBy,
		ApprovedAt:            a.ApprovedAt,
		Metadata:              a.Metadata,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
	}
}

func toAssignmentDTOs(items []service.Assignment) listDTO[assignmentDTO] {
	out := make([]assignmentDTO, 0, len(items))
	for _, a := range items {
		out = append(out, toAssignmentDTO(a))
	}
	return listDTO[assignmentDTO]{Items: out}
}

func toApprovalDTO(a service.ApprovalRequest) approvalDTO {
	return approvalDTO{
		ID:            a.ID,
		TenantID:      a.TenantID,
		ModuleID:      a.ModuleID,
		RequestedBy:   a.RequestedBy,
		RequestReason: a.RequestReason,
		Status:        string(a.Status),
		ReviewedBy:    a.ReviewedBy,
		ReviewNotes:   a.ReviewNotes,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
		ReviewedAt:    a.ReviewedAt,
	}
}

func toApprovalViews(views []service.ApprovalView) listDTO[approvalViewDTO] {
	out := make([]approvalViewDTO, 0, len(views))
	for _, v := range views {
		dto := approvalViewDTO{
			approvalDTO:   toApprovalDTO(v.Request),
			RequesterName: v.RequesterName,
			ReviewerName:  v.ReviewerName,
		}
		if v.Module != nil {
			dto.ModuleName = v.Module.Name
		}
		out = append(out, dto)
	}
	return listDTO[approvalViewDTO]{Items: out}
}

func toHistoryDTOs(entries []service.HistoryEntry) listDTO[historyDTO] {
	out := make([]historyDTO, 0, len(entries))
	for _, e := range entries {
		dto := historyDTO{
			ID:             e.ID,
			TenantID:       e.TenantID,
			ModuleID:       e.ModuleID,
			NewStatus:      string(e.NewStatus),
			ChangedBy:      e.ChangedBy,
			ActorKind:      string(e.ActorKind),
			ChangeReason:   e.ChangeReason,
			ChangeMetadata: encodePayload(e.ChangeMetadata),
			RequestID:      e.RequestID,
			CreatedAt:      e.CreatedAt,
		}
		if e.PreviousStatus != nil {
			prev := string(*e.PreviousStatus)
			dto.PreviousStatus = &prev
		}
		out = append(out, dto)
	}
	return listDTO[historyDTO]{Items: out}
}

func toRequestResultDTO(res service.RequestResult) requestResultDTO {
	dto := requestResultDTO{Assignment: toAssignmentDTO(res.Assignment)}
	if res.Approval != nil {
		a := toApprovalDTO(*res.Approval)
		dto.ApprovalRequest = &a
	}
	return dto
}

func toTransitionDTO(res service.TransitionResult) transitionDTO {
	return transitionDTO{
		PreviousStatus: string(res.Previous),
		CurrentStatus:  string(res.Current),
		Assignment:     toAssignmentDTO(res.Assignment),
	}
}

func toDecisionDTO(res service.DecisionResult) decisionDTO {
	return decisionDTO{
		ApprovalRequest: toApprovalDTO(res.Request),
		Transition:      toTransitionDTO(res.Transition),
	}
}

func toAutoEnableDTOs(outcomes []service.AutoEnableOutcome) listDTO[autoEnableDTO] {
	out := make([]autoEnableDTO, 0, len(outcomes))
	for _, o := range outcomes {
		dto := autoEnableDTO{ModuleID: o.ModuleID}
		switch {
		case o.Err != nil:
			dto.Outcome = "failed"
			dto.Error = o.Err.Error()
		case o.Skipped:
			dto.Outcome = "skipped"
		default:
			dto.Outcome = "requested"
			if o.Result != nil {
				res := toRequestResultDTO(*o.Result)
				dto.Assignment = &res
			}
		}
		out = append(out, dto)
	}
	return listDTO[autoEnableDTO]{Items: out}
}

func toStatsDTO(r service.StatsReport) statsDTO {
	dto := statsDTO{
		From:              r.Window.From,
		To:                r.Window.To,
		Total:             r.Assignments.Total,
		ByStatus:          make(map[string]int, len(r.Assignments.ByStatus)),
		ByHealth:          make(map[string]int, len(r.Assignments.ByHealth)),
		PendingApprovals:  r.Approvals.Pending,
		ApprovedRequests:  r.Approvals.Approved,
		DeniedRequests:    r.Approvals.Denied,
		CancelledRequests: r.Approvals.Cancelled,
		ApprovalRate:      r.ApprovalRate,
	}
	for s, n := range r.Assignments.ByStatus {
		dto.ByStatus[string(s)] = n
	}
	for h, n := range r.Assignments.ByHealth {
		dto.ByHealth[string(h)] = n
	}
	if r.AverageReviewLatency != nil {
		secs := r.AverageReviewLatency.Seconds()
		dto.AverageReviewLatencySeconds = &secs
	}
	return dto
}
