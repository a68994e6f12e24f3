package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/zenGate-Global/retailops/database"
)

// BootstrapLifecycleSchema creates the lifecycle schema (if missing) and
// applies the embedded DDL in a single transaction, in this order:
//  1. lifecycle/module_catalog.sql
//  2. lifecycle/module_assignments.sql
//  3. lifecycle/module_approval_requests.sql
//  4. lifecycle/module_status_history.sql
//
// Every statement is idempotent, so the helper is safe to run on each deploy.
func BootstrapLifecycleSchema(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	if pool == nil {
		return fmt.Errorf("bootstrap lifecycle schema: pool is required")
	}
	if strings.TrimSpace(schema) == "" {
		return fmt.Errorf("bootstrap lifecycle schema: schema is required")
	}

	var statements []string
	for _, file := range sqlassets.Lifecycle() {
		statements = append(statements, splitStatements(file)...)
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
		return fmt.Errorf("create lifecycle schema: %w", err)
	}

	if _, err := tx.Exec(ctx, `SELECT set_config('search_path', $1, true)`, schema); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// splitStatements breaks a DDL file on semicolons. The embedded files contain
// no function bodies or literals with semicolons. Comment-only chunks are dropped.
func splitStatements(sql string) []string {
	raw := strings.Split(sql, ";")
	out := make([]string, 0, len(raw))
	for _, chunk := range raw {
		stmt := strings.TrimSpace(chunk)
		if stmt == "" || commentOnly(stmt) {
			continue
		}
		out = append(out, stmt)
	}
	return out
}

func commentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
