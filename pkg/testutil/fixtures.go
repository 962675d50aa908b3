package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// PharmacyFixture represents a seeded pharmacy (tenant)
type PharmacyFixture struct {
	ID         string
	Name       string
	AlertPhone *string
	IsActive   bool
}

// BranchFixture represents a seeded branch
type BranchFixture struct {
	ID         string
	PharmacyID string
	Name       string
	AlertPhone *string
	IsActive   bool
}

// MedicationFixture represents a seeded medication
type MedicationFixture struct {
	ID           string
	PharmacyID   string
	Name         string
	CurrentStock int
	ReorderLevel int
	UnitCost     decimal.Decimal
	SellingPrice *decimal.Decimal
	ExpiryDate   time.Time
	IsActive     bool
}

// FixtureFactory inserts fixtures through a connection that bypasses RLS
type FixtureFactory struct {
	db       *sqlx.DB
	mu       sync.Mutex
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory(db *sqlx.DB) *FixtureFactory {
	return &FixtureFactory{db: db}
}

func (f *FixtureFactory) nextSeq() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequence++
	return f.sequence
}

// Pharmacy seeds an active pharmacy
func (f *FixtureFactory) Pharmacy(t *testing.T, ctx context.Context, opts ...func(*PharmacyFixture)) PharmacyFixture {
	t.Helper()
	p := PharmacyFixture{
		ID:       uuid.New().String(),
		Name:     fmt.Sprintf("Test Pharmacy %d", f.nextSeq()),
		IsActive: true,
	}
	for _, opt := range opts {
		opt(&p)
	}

	f.mustExec(t, ctx,
		`INSERT INTO pharmacies (id, name, alert_phone, is_active) VALUES ($1, $2, $3, $4)`,
		p.ID, p.Name, p.AlertPhone, p.IsActive)
	return p
}

// WithPharmacyPhone sets the pharmacy alert phone
func WithPharmacyPhone(phone string) func(*PharmacyFixture) {
	return func(p *PharmacyFixture) {
		p.AlertPhone = &phone
	}
}

// Branch seeds an active branch of the pharmacy
func (f *FixtureFactory) Branch(t *testing.T, ctx context.Context, pharmacyID string, opts ...func(*BranchFixture)) BranchFixture {
	t.Helper()
	b := BranchFixture{
		ID:         uuid.New().String(),
		PharmacyID: pharmacyID,
		Name:       fmt.Sprintf("Branch %d", f.nextSeq()),
		IsActive:   true,
	}
	for _, opt := range opts {
		opt(&b)
	}

	f.mustExec(t, ctx,
		`INSERT INTO branches (id, pharmacy_id, name, alert_phone, is_active) VALUES ($1, $2, $3, $4, $5)`,
		b.ID, b.PharmacyID, b.Name, b.AlertPhone, b.IsActive)
	return b
}

// WithBranchPhone sets the branch alert phone
func WithBranchPhone(phone string) func(*BranchFixture) {
	return func(b *BranchFixture) {
		b.AlertPhone = &phone
	}
}

// Medication seeds a medication. Defaults describe a healthy item:
// 100 units, reorder level 10, cost 500, expiring in a year.
func (f *FixtureFactory) Medication(t *testing.T, ctx context.Context, pharmacyID string, opts ...func(*MedicationFixture)) MedicationFixture {
	t.Helper()
	m := MedicationFixture{
		ID:           uuid.New().String(),
		PharmacyID:   pharmacyID,
		Name:         fmt.Sprintf("Medication %d", f.nextSeq()),
		CurrentStock: 100,
		ReorderLevel: 10,
		UnitCost:     decimal.NewFromInt(500),
		ExpiryDate:   time.Now().UTC().AddDate(1, 0, 0),
		IsActive:     true,
	}
	for _, opt := range opts {
		opt(&m)
	}

	f.mustExec(t, ctx, `
		INSERT INTO medications (id, pharmacy_id, name, current_stock, reorder_level,
			unit_cost, selling_price, expiry_date, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.PharmacyID, m.Name, m.CurrentStock, m.ReorderLevel,
		m.UnitCost, m.SellingPrice, m.ExpiryDate.Format("2006-01-02"), m.IsActive)
	return m
}

// WithMedicationName sets the medication name
func WithMedicationName(name string) func(*MedicationFixture) {
	return func(m *MedicationFixture) {
		m.Name = name
	}
}

// WithStock sets current stock and reorder level
func WithStock(current, reorderLevel int) func(*MedicationFixture) {
	return func(m *MedicationFixture) {
		m.CurrentStock = current
		m.ReorderLevel = reorderLevel
	}
}

// WithExpiry sets the expiry date
func WithExpiry(date time.Time) func(*MedicationFixture) {
	return func(m *MedicationFixture) {
		m.ExpiryDate = date
	}
}

// WithPrices sets unit cost and an optional selling price
func WithPrices(unitCost int64, sellingPrice *int64) func(*MedicationFixture) {
	return func(m *MedicationFixture) {
		m.UnitCost = decimal.NewFromInt(unitCost)
		if sellingPrice != nil {
			p := decimal.NewFromInt(*sellingPrice)
			m.SellingPrice = &p
		}
	}
}

// InactiveMedication marks the medication inactive
func InactiveMedication() func(*MedicationFixture) {
	return func(m *MedicationFixture) {
		m.IsActive = false
	}
}

// BranchStock seeds a branch_inventory row. A nil reorderLevel inherits the
// medication's level.
func (f *FixtureFactory) BranchStock(t *testing.T, ctx context.Context, branch BranchFixture, medicationID string, stock int, reorderLevel *int) {
	t.Helper()
	f.mustExec(t, ctx, `
		INSERT INTO branch_inventory (branch_id, medication_id, pharmacy_id, stock, reorder_level)
		VALUES ($1, $2, $3, $4, $5)`,
		branch.ID, medicationID, branch.PharmacyID, stock, reorderLevel)
}

func (f *FixtureFactory) mustExec(t *testing.T, ctx context.Context, query string, args ...interface{}) {
	t.Helper()
	if _, err := f.db.ExecContext(ctx, query, args...); err != nil {
		t.Fatalf("fixture insert failed: %v", err)
	}
}
