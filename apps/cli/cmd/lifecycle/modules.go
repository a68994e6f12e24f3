package lifecyclecmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/service"
	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/status"
)

// ModulesCommand drives tenant module assignments.
func ModulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "Tenant module assignments (request, status, get, list, history, auto-enable)",
	}
	addConnectionFlags(cmd)

	cmd.AddCommand(requestModuleCommand())
	cmd.AddCommand(updateStatusCommand())
	cmd.AddCommand(getModuleCommand())
	cmd.AddCommand(listModulesCommand())
	cmd.AddCommand(historyCommand())
	cmd.AddCommand(autoEnableCommand())
	return cmd
}

func requestModuleCommand() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "request <tenant-id> <module-id>",
		Short: "Request a module for a tenant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseTenant(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, err := openServices(ctx, cmd)
			if err != nil {
				return err
			}
			defer svc.close()

			res, err := svc.lifecycle.RequestModule(ctx, actor(cmd, "cli-modules-request"), service.RequestInput{
				TenantID: tenantID,
				ModuleID: args[1],
				Reason:   reason,
			})
			if err != nil {
				return fmt.Errorf("request module: %w", err)
			}

			printAssignment(cmd.OutOrStdout(), res.Assignment)
			if res.Approval != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Approval request %s is pending review.\n", res.Approval.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the tenant needs the module")
	return cmd
}

func updateStatusCommand() *cobra.Command {
	var (
		reason  string
		payload string
	)

	cmd := &cobra.Command{
		Use:   "status <tenant-id> <module-id> <status>",
		Short: "Move an assignment to a new operational status",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseTenant(args[0])
			if err != nil {
				return err
			}
			target, err := status.Parse(args[2])
			if err != nil {
				return err
			}
			var details status.Payload
			if strings.TrimSpace(payload) != "" {
				details, err = status.Decode([]byte(payload))
				if err != nil {
					return fmt.Errorf("invalid --payload: %w", err)
				}
			}

			ctx := context.Background()
			svc, err := openServices(ctx, cmd)
			if err != nil {
				return err
			}
			defer svc.close()

			res, err := svc.lifecycle.UpdateStatus(ctx, actor(cmd, "cli-modules-status"), service.UpdateInput{
				TenantID: tenantID,
				ModuleID: args[1],
				Status:   target,
				Reason:   reason,
				Payload:  details,
			})
			if err != nil {
				return fmt.Errorf("update status: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", res.Previous, res.Current)
			printAssignment(cmd.OutOrStdout(), res.Assignment)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in the history")
	cmd.Flags().StringVar(&payload, "payload", "", `Status payload JSON, e.g. {"kind":"provisioning_failed","code":"QUOTA","message":"...","retryable":true}`)
	return cmd
}

func getModuleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <tenant-id> <module-id>",
		Short: "Show one assignment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseTenant(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, err := openServices(ctx, cmd)
			if err != nil {
				return err
			}
			defer svc.close()

			a, err := svc.lifecycle.Get(ctx, tenantID, args[1])
			if err != nil {
				return fmt.Errorf("get assignment: %w", err)
			}
			printAssignment(cmd.OutOrStdout(), a)
			return nil
		},
	}
}

func listModulesCommand() *cobra.Command {
	var tenantInput, moduleInput, statusInput string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assignments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter service.AssignmentFilter
			if tenantInput != "" {
				id, err := parseTenant(tenantInput)
				if err != nil {
					return err
				}
				filter.TenantID = &id
			}
			if moduleInput != "" {
				filter.ModuleID = &moduleInput
			}
			if statusInput != "" {
				s, err := status.Parse(statusInput)
				if err != nil {
					return err
				}
				filter.Status = &s
			}

			ctx := context.Background()
			svc, err := openServices(ctx, cmd)
			if err != nil {
				return err
			}
			defer svc.close()

			items, err := svc.lifecycle.List(ctx, filter)
			if err != nil {
				return fmt.Errorf("list assignments: %w", err)
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No assignments found.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TENANT\tMODULE\tSTATUS\tHEALTH\tRETRIES\tLAST_CHANGE")
			for _, a := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", a.TenantID, a.ModuleID, a.Status, a.Health, a.RetryCount, formatTime(&a.LastStatusChange))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&tenantInput, "tenant", "", "Filter by tenant id")
	cmd.Flags().StringVar(&moduleInput, "module", "", "Filter by module id")
	cmd.Flags().StringVar(&statusInput, "status", "", "Filter by operational status")
	return cmd
}

func historyCommand() *cobra.Command {
	var (
		from, to string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "history <tenant-id> [module-id]",
		Short: "Show status history, oldest first",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseTenant(args[0])
			if err != nil {
				return err
			}
			window, err := parseWindow(from, to)
			if err != nil {
				return err
			}
			q := service.HistoryQuery{TenantID: &tenantID, Window: window, Limit: limit}
			if len(args) == 2 {
				q.ModuleID = &args[1]
			}

			ctx := context.Background()
			svc, err := openServices(ctx, cmd)
			if err != nil {
				return err
			}
			defer svc.close()

			entries, err := svc.audit.Query(ctx, q)
			if err != nil {
				return fmt.Errorf("query history: %w", err)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No history found.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "AT\tMODULE\tFROM\tTO\tBY\tREASON")
			for _, e := range entries {
				prev := "-"
				if e.PreviousStatus != nil {
					prev = string(*e.PreviousStatus)
				}
				by := string(e.ActorKind)
				if e.ChangedBy != nil {
					by = *e.ChangedBy
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", formatTime(&e.CreatedAt), e.ModuleID, prev, e.NewStatus, by, e.ChangeReason)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Inclusive lower bound (RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "Exclusive upper bound (RFC 3339)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum entries (0 for all)")
	return cmd
}

func autoEnableCommand() *cobra.Command {
	var newTenant bool

	cmd := &cobra.Command{
		Use:   "auto-enable <tenant-id>",
		Short: "Request every module whose auto-enable policy matches the tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseTenant(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, err := openServices(ctx, cmd)
			if err != nil {
				return err
			}
			defer svc.close()

			outcomes, err := svc.lifecycle.AutoEnable(ctx, actor(cmd, "cli-modules-auto-enable"), tenantID, newTenant)
			if err != nil {
				return fmt.Errorf("auto-enable: %w", err)
			}
			printOutcomes(cmd.OutOrStdout(), outcomes)
			return nil
		},
	}

	cmd.Flags().BoolVar(&newTenant, "new-tenant", false, "Also apply new_tenants policies")
	return cmd
}

func printAssignment(w io.Writer, a service.Assignment) {
	fmt.Fprintf(w, "Tenant:      %s\n", a.TenantID)
	fmt.Fprintf(w, "Module:      %s\n", a.ModuleID)
	fmt.Fprintf(w, "Status:      %s (%s)\n", a.Status, a.Health)
	fmt.Fprintf(w, "Retries:     %d\n", a.RetryCount)
	fmt.Fprintf(w, "Last change: %s %s\n", formatTime(&a.LastStatusChange), a.StatusChangeReason)
	if a.ErrorDetails != nil {
		fmt.Fprintf(w, "Details:     %s\n", a.ErrorDetails.Kind())
	}
	if a.ApprovedBy != nil {
		fmt.Fprintf(w, "Approved by: %s at %s\n", *a.ApprovedBy, formatTime(a.ApprovedAt))
	}
}

func printOutcomes(w io.Writer, outcomes []service.AutoEnableOutcome) {
	if len(outcomes) == 0 {
		fmt.Fprintln(w, "No modules matched.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODULE\tOUTCOME\tDETAIL")
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			fmt.Fprintf(tw, "%s\tfailed\t%s\n", o.ModuleID, o.Err)
		case o.Skipped:
			fmt.Fprintf(tw, "%s\tskipped\t-\n", o.ModuleID)
		case o.Result != nil:
			fmt.Fprintf(tw, "%s\trequested\t%s\n", o.ModuleID, o.Result.Assignment.Status)
		default:
			fmt.Fprintf(tw, "%s\trequested\t-\n", o.ModuleID)
		}
	}
	_ = tw.Flush()
}
