package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pharmatrack/pharmatrack-backend/pkg/database"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
	"github.com/pharmatrack/pharmatrack-backend/pkg/tenant"
)

// Pharmacy is a tenant
type Pharmacy struct {
	ID         string  `db:"id" json:"id"`
	Name       string  `db:"name" json:"name"`
	AlertPhone *string `db:"alert_phone" json:"alert_phone,omitempty"`
	IsActive   bool    `db:"is_active" json:"is_active"`
}

// Branch is one outlet of a pharmacy
type Branch struct {
	ID         string  `db:"id" json:"id"`
	PharmacyID string  `db:"pharmacy_id" json:"pharmacy_id"`
	Name       string  `db:"name" json:"name"`
	AlertPhone *string `db:"alert_phone" json:"alert_phone,omitempty"`
	IsActive   bool    `db:"is_active" json:"is_active"`
}

// PharmacyRepository reads pharmacies and their branches
type PharmacyRepository struct {
	db *database.DB
}

// NewPharmacyRepository creates a new pharmacy repository
func NewPharmacyRepository(db *database.DB) *PharmacyRepository {
	return &PharmacyRepository{db: db}
}

// ListActiveIDs returns every active pharmacy. The pharmacies registry has
// no RLS, so this runs outside a tenant transaction.
func (r *PharmacyRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	query := `SELECT id FROM pharmacies WHERE is_active = TRUE ORDER BY created_at, id`
	if err := r.db.Conn(ctx).SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list active pharmacies: %w", err)
	}
	return ids, nil
}

// Current returns the pharmacy of the request context
func (r *PharmacyRepository) Current(ctx context.Context) (*Pharmacy, error) {
	pharmacyID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var p Pharmacy
	query := `SELECT id, name, alert_phone, is_active FROM pharmacies WHERE id = $1`
	if err := r.db.Conn(ctx).GetContext(ctx, &p, query, pharmacyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("pharmacy")
		}
		return nil, fmt.Errorf("get pharmacy: %w", err)
	}
	return &p, nil
}

// GetBranch returns a branch of the current pharmacy
func (r *PharmacyRepository) GetBranch(ctx context.Context, branchID string) (*Branch, error) {
	pharmacyID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	var b Branch
	query := `SELECT id, pharmacy_id, name, alert_phone, is_active FROM branches WHERE id = $1`
	err = r.db.WithTenantRLS(ctx, pharmacyID, func(ctx context.Context) error {
		return r.db.Conn(ctx).GetContext(ctx, &b, query, branchID)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("branch")
		}
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, appErr
		}
		return nil, fmt.Errorf("get branch: %w", err)
	}
	return &b, nil
}

// ListActiveBranches returns the active branches of the current pharmacy
func (r *PharmacyRepository) ListActiveBranches(ctx context.Context) ([]Branch, error) {
	pharmacyID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	branches := []Branch{}
	query := `SELECT id, pharmacy_id, name, alert_phone, is_active FROM branches WHERE is_active = TRUE ORDER BY name, id`
	err = r.db.WithTenantRLS(ctx, pharmacyID, func(ctx context.Context) error {
		return r.db.Conn(ctx).SelectContext(ctx, &branches, query)
	})
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return branches, nil
}
