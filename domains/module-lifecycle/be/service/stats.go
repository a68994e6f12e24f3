package service

import (
	"context"
	"time"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/status"
)

// StatsAggregator reports on assignments and approvals. It never writes.
type StatsAggregator struct {
	source StatsSource
}

func NewStatsAggregator(source StatsSource) *StatsAggregator {
	if source == nil {
		panic("stats source is required")
	}
	return &StatsAggregator{source: source}
}

// StatsReport summarises one window. ApprovalRate and AverageReviewLatency are
// nil when no request in the window was approved or denied.
type StatsReport struct {
	Window               TimeWindow
	Assignments          AssignmentCounts
	Approvals            ApprovalTotals
	ApprovalRate         *float64
	AverageReviewLatency *time.Duration
}

// Report aggregates the window. Assignments are counted by current status
// when their last change falls inside it; approvals when they were created in it.
func (s *StatsAggregator) Report(ctx context.Context, window TimeWindow) (StatsReport, error) {
	if window.From != nil && window.To != nil && window.To.Before(*window.From) {
		return StatsReport{}, newValidationError(map[string]string{"to": "to must not be before from"})
	}

	counts, err := s.source.CountAssignments(ctx, window)
	if err != nil {
		return StatsReport{}, wrapStoreErr("count module assignments", err)
	}
	totals, err := s.source.SummarizeApprovals(ctx, window)
	if err != nil {
		return StatsReport{}, wrapStoreErr("summarize approval requests", err)
	}

	report := StatsReport{
		Window:      window,
		Assignments: zeroFilled(counts),
		Approvals:   totals,
	}
	if decided := totals.Approved + totals.Denied; decided > 0 {
		rate := float64(totals.Approved) / float64(decided)
		report.ApprovalRate = &rate
	}
	if totals.Reviewed > 0 {
		avg := totals.ReviewLatency / time.Duration(totals.Reviewed)
		report.AverageReviewLatency = &avg
	}
	return report, nil
}

func zeroFilled(in AssignmentCounts) AssignmentCounts {
	out := AssignmentCounts{
		ByStatus: make(map[status.Operational]int, len(status.All())),
		ByHealth: make(map[status.Health]int, 4),
	}
	for _, s := range status.All() {
		out.ByStatus[s] = in.ByStatus[s]
		out.Total += in.ByStatus[s]
	}
	for _, h := range []status.Health{status.Healthy, status.Warning, status.Critical, status.Unknown} {
		out.ByHealth[h] = in.ByHealth[h]
	}
	return out
}
