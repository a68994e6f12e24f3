package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type txBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// LifecycleDB runs units of work against the lifecycle schema. Each unit is
// one transaction with search_path scoped to that transaction.
type LifecycleDB struct {
	pool   txBeginner
	schema string
}

type LifecycleDBConfig struct {
	Pool   *pgxpool.Pool
	Schema string
}

// DefaultSchema is used when no schema is configured.
const DefaultSchema = "module_lifecycle"

func NewLifecycleDB(cfg LifecycleDBConfig) *LifecycleDB {
	if cfg.Pool == nil {
		panic("LifecycleDB requires pool")
	}

	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = DefaultSchema
	}
	return &LifecycleDB{pool: cfg.Pool, schema: schema}
}

// Schema returns the schema every unit of work runs in.
func (db *LifecycleDB) Schema() string { return db.schema }

// WithTx executes fn inside a transaction. fn's error rolls everything back.
func (db *LifecycleDB) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return db.withTx(ctx, pgx.TxOptions{}, fn)
}

// WithReadTx is WithTx for read-only units.
func (db *LifecycleDB) WithReadTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return db.withTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

func (db *LifecycleDB) withTx(ctx context.Context, opts pgx.TxOptions, fn func(tx pgx.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT set_config('search_path', $1, true)`, db.schema); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
