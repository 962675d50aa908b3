package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pharmatrack/pharmatrack-backend/internal/alerts"
	"github.com/pharmatrack/pharmatrack-backend/pkg/database"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
	"github.com/pharmatrack/pharmatrack-backend/pkg/tenant"
)

// Scope selects whose stock figures feed the alert engine. An empty BranchID
// means pharmacy-wide stock from medications; otherwise stock and reorder
// level come from that branch's branch_inventory rows.
type Scope struct {
	BranchID string
}

// IsBranch reports whether the scope is a single branch
func (s Scope) IsBranch() bool {
	return s.BranchID != ""
}

const pharmacyInventoryQuery = `
	SELECT id, name, current_stock, reorder_level, unit_cost, selling_price, expiry_date
	FROM medications
	WHERE is_active = TRUE`

// A NULL branch reorder level inherits the medication's level
const branchInventoryQuery = `
	SELECT m.id, m.name, bi.stock AS current_stock,
		COALESCE(bi.reorder_level, m.reorder_level) AS reorder_level,
		m.unit_cost, m.selling_price, m.expiry_date
	FROM branch_inventory bi
	JOIN medications m ON m.id = bi.medication_id
	WHERE bi.branch_id = $1 AND m.is_active = TRUE`

// MedicationRepository projects medications into alert engine input
type MedicationRepository struct {
	db *database.DB
}

// NewMedicationRepository creates a new medication repository
func NewMedicationRepository(db *database.DB) *MedicationRepository {
	return &MedicationRepository{db: db}
}

// ListInventory returns the snapshot of active medications for the scope,
// ordered by name so alert ties keep a stable, readable order
func (r *MedicationRepository) ListInventory(ctx context.Context, scope Scope) ([]alerts.InventoryItem, error) {
	pharmacyID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	query, args := pharmacyInventoryQuery, []interface{}{}
	if scope.IsBranch() {
		query, args = branchInventoryQuery, []interface{}{scope.BranchID}
	}
	query += ` ORDER BY name, id`

	items := []alerts.InventoryItem{}
	err = r.db.WithTenantRLS(ctx, pharmacyID, func(ctx context.Context) error {
		return r.db.Conn(ctx).SelectContext(ctx, &items, query, args...)
	})
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, fmt.Errorf("list inventory: %w", err)
	}

	return items, nil
}

// GetInventoryItem returns one medication projected for the scope
func (r *MedicationRepository) GetInventoryItem(ctx context.Context, scope Scope, medicationID string) (*alerts.InventoryItem, error) {
	pharmacyID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	query, args := pharmacyInventoryQuery+` AND id = $1`, []interface{}{medicationID}
	if scope.IsBranch() {
		query, args = branchInventoryQuery+` AND m.id = $2`, []interface{}{scope.BranchID, medicationID}
	}

	var item alerts.InventoryItem
	err = r.db.WithTenantRLS(ctx, pharmacyID, func(ctx context.Context) error {
		return r.db.Conn(ctx).GetContext(ctx, &item, query, args...)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("medication")
		}
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, fmt.Errorf("get inventory item: %w", err)
	}

	return &item, nil
}
