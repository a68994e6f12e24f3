package lifecyclecmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/service"
)

// ApprovalsCommand reviews module requests. Decisions need --as-user.
func ApprovalsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "Approval requests (pending, tenant, approve, deny, cancel)",
	}
	addConnectionFlags(cmd)

	cmd.AddCommand(pendingCommand())
	cmd.AddCommand(tenantApprovalsCommand())
	cmd.AddCommand(decisionCommand("approve", "Approve a pending request", false))
	cmd.AddCommand(decisionCommand("deny", "Deny a pending request (notes required)", true))
	cmd.AddCommand(cancelCommand())
	return cmd
}

func pendingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List pending requests, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			svc, err := openServices(ctx, cmd)
			if err != nil {
				return err
			}
			defer svc.close()

			views, err := svc.approvals.Pending(ctx)
			if err != nil {
				return fmt.Errorf("list pending approvals: %w", err)
			}
			printApprovals(cmd.OutOrStdout(), views)
			return nil
		},
	}
}

func tenantApprovalsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tenant <tenant-id>",
		Short: "List a tenant's requests, newest first",
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

			views, err := svc.approvals.ForTenant(ctx, tenantID)
			if err != nil {
				return fmt.Errorf("list tenant approvals: %w", err)
			}
			printApprovals(cmd.OutOrStdout(), views)
			return nil
		},
	}
}

func decisionCommand(use, short string, notesRequired bool) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   use + " <request-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requestID, err := uuid.Parse(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("invalid request id %q: %w", args[0], err)
			}

			ctx := context.Background()
			svc, err := openServices(ctx, cmd)
			if err != nil {
				return err
			}
			defer svc.close()

			reviewer := actor(cmd, "cli-approvals-"+use)
			decide := svc.approvals.Approve
			if use == "deny" {
				decide = svc.approvals.Deny
			}
			res, err := decide(ctx, reviewer, requestID, notes)
			if err != nil {
				return fmt.Errorf("%s request: %w", use, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Request %s %s; assignment %s -> %s\n", res.Request.ID, res.Request.Status, res.Transition.Previous, res.Transition.Current)
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "Review notes")
	if notesRequired {
		_ = cmd.MarkFlagRequired("notes")
	}
	return cmd
}

func cancelCommand() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel <request-id>",
		Short: "Withdraw a pending request on behalf of its requester",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requestID, err := uuid.Parse(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("invalid request id %q: %w", args[0], err)
			}

			ctx := context.Background()
			svc, err := openServices(ctx, cmd)
			if err != nil {
				return err
			}
			defer svc.close()

			res, err := svc.approvals.Cancel(ctx, actor(cmd, "cli-approvals-cancel"), requestID, reason)
			if err != nil {
				return fmt.Errorf("cancel request: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Request %s %s; assignment %s -> %s\n", res.Request.ID, res.Request.Status, res.Transition.Previous, res.Transition.Current)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the request is withdrawn")
	return cmd
}

func printApprovals(w io.Writer, views []service.ApprovalView) {
	if len(views) == 0 {
		fmt.Fprintln(w, "No approval requests found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTENANT\tMODULE\tSTATUS\tREQUESTED_BY\tREVIEWED_BY\tCREATED_AT")
	for _, v := range views {
		requester := deref(v.Request.RequestedBy)
		if v.RequesterName != "" {
			requester = v.RequesterName
		}
		reviewer := deref(v.Request.ReviewedBy)
		if v.ReviewerName != "" {
			reviewer = v.ReviewerName
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			v.Request.ID, v.Request.TenantID, v.Request.ModuleID, v.Request.Status, requester, reviewer, formatTime(&v.Request.CreatedAt))
	}
	_ = tw.Flush()
}
