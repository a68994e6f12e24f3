package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/zenGate-Global/retailops/platform/go/persistence"
)

// Notes/constraints:
// - The DDL is idempotent; running bootstrap on every deploy is safe.
// - Catalog entries are not seeded here; use "catalog import".

// Command groups bootstrap helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap platform resources (lifecycle schema)",
	}

	cmd.AddCommand(schemaCommand())
	return cmd
}

func schemaCommand() *cobra.Command {
	var (
		databaseURL string
		schema      string
		checkOnly   bool
	)

	c := &cobra.Command{
		Use:   "schema",
		Short: "Create the lifecycle schema and tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(databaseURL) == "" {
				databaseURL = os.Getenv("DATABASE_URL")
			}
			if strings.TrimSpace(databaseURL) == "" {
				return fmt.Errorf("database url is required (--database-url or DATABASE_URL)")
			}

			ctx := context.Background()
			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL, ApplicationName: "retailops-bootstrap", MaxConns: 1})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if !checkOnly {
				if err := persistence.BootstrapLifecycleSchema(ctx, pool, schema); err != nil {
					return err
				}
			}

			missing, err := missingTables(ctx, pool, schema)
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				return fmt.Errorf("schema %q is missing tables: %s", schema, strings.Join(missing, ", "))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Lifecycle schema %q is ready.\n", schema)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string (default $DATABASE_URL)")
	c.Flags().StringVar(&schema, "schema", persistence.DefaultSchema, "Lifecycle schema name")
	c.Flags().BoolVar(&checkOnly, "check", false, "Only verify the tables exist")

	return c
}

var lifecycleTables = []string{
	"module_catalog",
	"module_assignments",
	"module_approval_requests",
	"module_status_history",
}

// missingTables reports which lifecycle tables are absent from schema.
func missingTables(ctx context.Context, pool *pgxpool.Pool, schema string) ([]string, error) {
	var missing []string
	for _, table := range lifecycleTables {
		var exists bool
		if err := pool.QueryRow(ctx, `
            SELECT EXISTS (
                SELECT 1
                FROM pg_class c
                JOIN pg_namespace n ON n.oid = c.relnamespace
                WHERE n.nspname = $1 AND c.relname = $2 AND c.relkind = 'r'
            )`, schema, table).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check %s table: %w", table, err)
		}
		if !exists {
			missing = append(missing, table)
		}
	}
	return missing, nil
}
