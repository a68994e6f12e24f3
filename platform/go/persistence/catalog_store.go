package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
)

const catalogColumns = `module_id, name, description, visibility, request_policy, auto_enable_policy, dependencies, created_at, updated_at`

// CatalogStore reads and maintains module_catalog.
type CatalogStore struct {
	db *LifecycleDB
}

func NewCatalogStore(db *LifecycleDB) (*CatalogStore, error) {
	if db == nil {
		return nil, errors.New("lifecycle db is required")
	}
	return &CatalogStore{db: db}, nil
}

// Upsert inserts a module or replaces its policy fields, keeping created_at.
func (s *CatalogStore) Upsert(ctx context.Context, rec CatalogModuleRecord) (CatalogModuleRecord, error) {
	if strings.TrimSpace(rec.ModuleID) == "" {
		return CatalogModuleRecord{}, errors.New("module id is required")
	}
	if rec.Dependencies == nil {
		rec.Dependencies = []string{}
	}

	var out CatalogModuleRecord
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            INSERT INTO module_catalog (
                module_id, name, description, visibility, request_policy, auto_enable_policy, dependencies
            ) VALUES ($1,$2,$3,$4,$5,$6,$7)
            ON CONFLICT (module_id) DO UPDATE SET
                name = EXCLUDED.name,
                description = EXCLUDED.description,
                visibility = EXCLUDED.visibility,
                request_policy = EXCLUDED.request_policy,
                auto_enable_policy = EXCLUDED.auto_enable_policy,
                dependencies = EXCLUDED.dependencies,
                updated_at = NOW()
            RETURNING `+catalogColumns,
			rec.ModuleID, rec.Name, rec.Description, rec.Visibility, rec.RequestPolicy, rec.AutoEnablePolicy, rec.Dependencies,
		)
		var err error
		out, err = scanCatalogModule(row)
		return err
	})
	return out, err
}

func (s *CatalogStore) Get(ctx context.Context, moduleID string) (CatalogModuleRecord, error) {
	var out CatalogModuleRecord
	err := s.db.WithReadTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanCatalogModule(tx.QueryRow(ctx, `SELECT `+catalogColumns+` FROM module_catalog WHERE module_id = $1`, moduleID))
		return err
	})
	return out, err
}

func (s *CatalogStore) List(ctx context.Context) ([]CatalogModuleRecord, error) {
	var out []CatalogModuleRecord
	err := s.db.WithReadTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+catalogColumns+` FROM module_catalog ORDER BY module_id`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanCatalogModule(rows)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	return out, err
}

func scanCatalogModule(row pgx.Row) (CatalogModuleRecord, error) {
	var rec CatalogModuleRecord
	if err := row.Scan(&rec.ModuleID, &rec.Name, &rec.Description, &rec.Visibility, &rec.RequestPolicy,
		&rec.AutoEnablePolicy, &rec.Dependencies, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CatalogModuleRecord{}, ErrNotFound
		}
		return CatalogModuleRecord{}, err
	}
	return rec, nil
}
