package lifecyclecmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/service"
)

// CatalogCommand manages the module catalog the lifecycle policies read.
func CatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Module catalog (list, upsert, import)",
	}
	addConnectionFlags(cmd)

	cmd.AddCommand(listCatalogCommand())
	cmd.AddCommand(upsertCatalogCommand())
	cmd.AddCommand(importCatalogCommand())
	return cmd
}

func listCatalogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			svc, err := openServices(ctx, cmd)
			if err != nil {
				return err
			}
			defer svc.close()

			modules, err := svc.repo.ListModules(ctx)
			if err != nil {
				return fmt.Errorf("list catalog: %w", err)
			}
			if len(modules) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No catalog modules found.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tVISIBILITY\tREQUEST_POLICY\tAUTO_ENABLE\tDEPENDS_ON")
			for _, m := range modules {
				deps := "-"
				if len(m.Dependencies) > 0 {
					deps = strings.Join(m.Dependencies, ",")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", m.ID, m.Name, m.Visibility, m.RequestPolicy, m.AutoEnablePolicy, deps)
			}
			return tw.Flush()
		},
	}
}

// catalogInput holds the raw upsert flags.
type catalogInput struct {
	id            string
	name          string
	description   string
	visibility    string
	requestPolicy string
	autoEnable    string
	dependsOn     []string
}

func (in catalogInput) module() (service.CatalogModule, error) {
	m := service.CatalogModule{
		ID:               strings.TrimSpace(in.id),
		Name:             strings.TrimSpace(in.name),
		Visibility:       service.Visibility(strings.ToLower(strings.TrimSpace(in.visibility))),
		RequestPolicy:    service.RequestPolicy(strings.ToLower(strings.TrimSpace(in.requestPolicy))),
		AutoEnablePolicy: service.AutoEnablePolicy(strings.ToLower(strings.TrimSpace(in.autoEnable))),
	}
	if m.ID == "" {
		return m, fmt.Errorf("--id is required")
	}
	if m.Name == "" {
		m.Name = m.ID
	}
	if d := strings.TrimSpace(in.description); d != "" {
		m.Description = &d
	}

	switch m.Visibility {
	case service.VisibilityPublic, service.VisibilityPrivate, service.VisibilityRestricted:
	default:
		return m, fmt.Errorf("invalid --visibility %q (public, private, restricted)", in.visibility)
	}
	switch m.RequestPolicy {
	case service.RequestAutoApprove, service.RequestManualApproval, service.RequestDenyAll:
	default:
		return m, fmt.Errorf("invalid --request-policy %q (auto_approve, manual_approval, deny_all)", in.requestPolicy)
	}
	switch m.AutoEnablePolicy {
	case service.AutoEnableAllTenants, service.AutoEnableNewTenants, service.AutoEnableNone:
	default:
		return m, fmt.Errorf("invalid --auto-enable %q (all_tenants, new_tenants, none)", in.autoEnable)
	}

	for _, dep := range in.dependsOn {
		dep = strings.TrimSpace(dep)
		if dep == "" {
			continue
		}
		if dep == m.ID {
			return m, fmt.Errorf("module %q cannot depend on itself", m.ID)
		}
		m.Dependencies = append(m.Dependencies, dep)
	}
	return m, nil
}

func upsertCatalogCommand() *cobra.Command {
	var in catalogInput

	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Create or update a catalog module",
		RunE: func(cmd *cobra.Command, _ []string) error {
			module, err := in.module()
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, err := openServices(ctx, cmd)
			if err != nil {
				return err
			}
			defer svc.close()

			saved, err := svc.repo.UpsertModule(ctx, module)
			if err != nil {
				return fmt.Errorf("upsert catalog module: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved module %s (%s, %s)\n", saved.ID, saved.Visibility, saved.RequestPolicy)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.id, "id", "", "Module id")
	cmd.Flags().StringVar(&in.name, "name", "", "Display name (defaults to id)")
	cmd.Flags().StringVar(&in.description, "description", "", "Description")
	cmd.Flags().StringVar(&in.visibility, "visibility", string(service.VisibilityPublic), "public, private or restricted")
	cmd.Flags().StringVar(&in.requestPolicy, "request-policy", string(service.RequestManualApproval), "auto_approve, manual_approval or deny_all")
	cmd.Flags().StringVar(&in.autoEnable, "auto-enable", string(service.AutoEnableNone), "all_tenants, new_tenants or none")
	cmd.Flags().StringSliceVar(&in.dependsOn, "depends-on", nil, "Required module ids (comma-separated)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
