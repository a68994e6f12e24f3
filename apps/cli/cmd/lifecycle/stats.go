package lifecyclecmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/service"
	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/status"
)

// StatsCommand prints lifecycle statistics for a window.
func StatsCommand() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Lifecycle statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			window, err := parseWindow(from, to)
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, err := openServices(ctx, cmd)
			if err != nil {
				return err
			}
			defer svc.close()

			report, err := svc.stats.Report(ctx, window)
			if err != nil {
				return fmt.Errorf("build stats: %w", err)
			}
			printStats(cmd.OutOrStdout(), report)
			return nil
		},
	}
	addConnectionFlags(cmd)

	cmd.Flags().StringVar(&from, "from", "", "Inclusive lower bound (RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "Exclusive upper bound (RFC 3339)")
	return cmd
}

func printStats(w io.Writer, r service.StatsReport) {
	fmt.Fprintf(w, "Window:      %s .. %s\n", formatTime(r.Window.From), formatTime(r.Window.To))
	fmt.Fprintf(w, "Assignments: %d\n", r.Assignments.Total)
	for _, s := range status.All() {
		fmt.Fprintf(w, "  %-17s %d\n", s, r.Assignments.ByStatus[s])
	}
	for _, h := range []status.Health{status.Healthy, status.Warning, status.Critical, status.Unknown} {
		fmt.Fprintf(w, "  health %-10s %d\n", h, r.Assignments.ByHealth[h])
	}
	fmt.Fprintf(w, "Approvals:   pending=%d approved=%d denied=%d cancelled=%d\n",
		r.Approvals.Pending, r.Approvals.Approved, r.Approvals.Denied, r.Approvals.Cancelled)
	if r.ApprovalRate != nil {
		fmt.Fprintf(w, "Approval rate: %.1f%%\n", *r.ApprovalRate*100)
	} else {
		fmt.Fprintln(w, "Approval rate: n/a")
	}
	if r.AverageReviewLatency != nil {
		fmt.Fprintf(w, "Avg review latency: %s\n", r.AverageReviewLatency.Round(time.Second))
	} else {
		fmt.Fprintln(w, "Avg review latency: n/a")
	}
}
