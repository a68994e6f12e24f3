package lifecyclecmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zenGate-Global/retailops/domains/module-lifecycle/be/service"
)

// catalogFile is the YAML layout accepted by "catalog import".
type catalogFile struct {
	Modules []catalogFileEntry `yaml:"modules"`
}

type catalogFileEntry struct {
	ID               string   `yaml:"id"`
	Name             string   `yaml:"name,omitempty"`
	Description      string   `yaml:"description,omitempty"`
	Visibility       string   `yaml:"visibility,omitempty"`
	RequestPolicy    string   `yaml:"requestPolicy,omitempty"`
	AutoEnablePolicy string   `yaml:"autoEnablePolicy,omitempty"`
	DependsOn        []string `yaml:"dependsOn,omitempty"`
}

// parseCatalogFile decodes and validates every entry. Omitted policies take
// the conservative defaults: private, manual approval, no auto-enable.
func parseCatalogFile(data []byte) ([]service.CatalogModule, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog file: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Modules))
	out := make([]service.CatalogModule, 0, len(f.Modules))
	for i, e := range f.Modules {
		m, err := catalogInput{
			id:            e.ID,
			name:          e.Name,
			description:   e.Description,
			visibility:    orDefault(e.Visibility, string(service.VisibilityPrivate)),
			requestPolicy: orDefault(e.RequestPolicy, string(service.RequestManualApproval)),
			autoEnable:    orDefault(e.AutoEnablePolicy, string(service.AutoEnableNone)),
			dependsOn:     e.DependsOn,
		}.module()
		if err != nil {
			return nil, fmt.Errorf("modules[%d]: %w", i, err)
		}
		if _, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("modules[%d]: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func importCatalogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Upsert every module listed in a YAML catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read catalog file: %w", err)
			}
			modules, err := parseCatalogFile(data)
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, err := openServices(ctx, cmd)
			if err != nil {
				return err
			}
			defer svc.close()

			for _, m := range modules {
				if _, err := svc.repo.UpsertModule(ctx, m); err != nil {
					return fmt.Errorf("upsert %s: %w", m.ID, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d catalog modules.\n", len(modules))
			return nil
		},
	}
}
