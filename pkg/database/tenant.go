package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// WithTenantRLS runs fn inside a transaction scoped to one pharmacy.
//
// Usage in repositories:
//
//	pharmacyID, err := tenant.TenantID(ctx)
//	if err != nil { return err }
//	err = r.db.WithTenantRLS(ctx, pharmacyID, func(ctx context.Context) error {
//	    return r.db.Conn(ctx).GetContext(ctx, &med, "SELECT * FROM medications WHERE id = $1", id)
//	})
//
// The transaction sets search_path and app.current_tenant locally, so row-level
// security policies of the form
//
//	USING (pharmacy_id = current_setting('app.current_tenant')::uuid)
//
// filter every statement issued through Conn(ctx). Both settings vanish at
// commit, which keeps pooled connections clean.
func (db *DB) WithTenantRLS(ctx context.Context, tenantID string, fn func(context.Context) error) error {
	if tx := db.getTx(ctx); tx != nil {
		return fn(ctx)
	}

	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		// search_path comes from configuration, never from a request
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL search_path TO %s", db.searchPath)); err != nil {
			return fmt.Errorf("failed to set search_path to %s: %w", db.searchPath, err)
		}

		if _, err := tx.ExecContext(ctx, "SELECT set_config('app.current_tenant', $1, true)", tenantID); err != nil {
			return fmt.Errorf("failed to set app.current_tenant to %s: %w", tenantID, err)
		}

		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (db *DB) getTx(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}
