package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pharmatrack/pharmatrack-backend/internal/alerts"
	"github.com/pharmatrack/pharmatrack-backend/internal/inventory/repository"
	apperrors "github.com/pharmatrack/pharmatrack-backend/pkg/errors"
	"github.com/pharmatrack/pharmatrack-backend/pkg/tenant"
	"github.com/shopspring/decimal"
)

const (
	pharmacyID = "6f1c2b0e-0d7a-4a53-9a43-2b8f0f3f6a11"
	branchID   = "0b7c3a44-5e0a-4f7e-8d2c-7a8c3f9d1e22"
)

// medication IDs
const (
	amxID = "a1f0c6d2-3b4e-4c5d-8e6f-7a8b9c0d1e2f"
	ibuID = "b2e1d7c3-4c5f-4d6e-9f70-8b9cad1e2f30"
	insID = "c3f2e8d4-5d60-4e7f-a081-9cadbe2f3041"
	cetID = "d4031f95-6e71-4f80-b192-adbecf304152"
	vitID = "e5142096-7f82-4091-82a3-becfd0415263"
)

var (
	wat   = time.FixedZone("WAT", 60*60)
	today = time.Date(2025, time.January, 10, 9, 0, 0, 0, wat)
)

func fixedClock() time.Time { return today }

func pharmacyCtx() context.Context {
	return tenant.WithTenantID(context.Background(), pharmacyID)
}

func medication(id, name string, stock, reorderLevel, expiresInDays int) alerts.InventoryItem {
	return alerts.InventoryItem{
		ID:           id,
		Name:         name,
		CurrentStock: stock,
		ReorderLevel: reorderLevel,
		UnitCost:     decimal.NewFromInt(100),
		ExpiryDate:   time.Date(2025, time.January, 10+expiresInDays, 0, 0, 0, 0, time.UTC),
	}
}

type fakeInventory struct {
	items   map[string][]alerts.InventoryItem // keyed by branch ID, "" for pharmacy-wide
	fail    map[string]error
	lookups []string
}

func (f *fakeInventory) ListInventory(_ context.Context, scope repository.Scope) ([]alerts.InventoryItem, error) {
	if err := f.fail[scope.BranchID]; err != nil {
		return nil, err
	}
	return append([]alerts.InventoryItem{}, f.items[scope.BranchID]...), nil
}

func (f *fakeInventory) GetInventoryItem(_ context.Context, scope repository.Scope, medicationID string) (*alerts.InventoryItem, error) {
	f.lookups = append(f.lookups, medicationID)
	for _, it := range f.items[scope.BranchID] {
		if it.ID == medicationID {
			it := it
			return &it, nil
		}
	}
	return nil, apperrors.NotFound("medication")
}

type fakePharmacies struct {
	ids      []string
	listErr  error
	pharmacy repository.Pharmacy
	branches []repository.Branch
}

func (f *fakePharmacies) ListActiveIDs(context.Context) ([]string, error) {
	return f.ids, f.listErr
}

func (f *fakePharmacies) Current(ctx context.Context) (*repository.Pharmacy, error) {
	if _, err := tenant.TenantID(ctx); err != nil {
		return nil, err
	}
	p := f.pharmacy
	return &p, nil
}

func (f *fakePharmacies) GetBranch(_ context.Context, id string) (*repository.Branch, error) {
	for _, b := range f.branches {
		if b.ID == id {
			b := b
			return &b, nil
		}
	}
	return nil, apperrors.NotFound("branch")
}

func (f *fakePharmacies) ListActiveBranches(context.Context) ([]repository.Branch, error) {
	return f.branches, nil
}

type fakeNotifications struct {
	mu         sync.Mutex
	created    []repository.Notification
	createErr  error
	publishErr error
	lastFilter repository.NotificationFilter
	markedRead []string
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (f *fakeNotifications) Create(_ context.Context, n *repository.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	n.ID = "n" + string(rune('0'+len(f.created)+1))
	n.CreatedAt = today
	f.created = append(f.created, *n)
	return nil
}

// seed stores a row recorded before the test starts
func (f *fakeNotifications) seed(n repository.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = "seed" + string(rune('0'+len(f.created)+1))
	f.created = append(f.created, n)
}

func (f *fakeNotifications) LatestSince(_ context.Context, l repository.NotificationLookup) (*repository.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *repository.Notification
	for i := range f.created {
		n := f.created[i]
		if n.Kind != l.Kind || !sameString(n.BranchID, l.BranchID) || !sameString(n.AlertID, l.AlertID) {
			continue
		}
		if n.CreatedAt.Before(l.Since) {
			continue
		}
		if latest == nil || !n.CreatedAt.Before(latest.CreatedAt) {
			latest = &n
		}
	}
	return latest, nil
}

func (f *fakeNotifications) MarkPublished(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	for i := range f.created {
		if f.created[i].ID == id {
			at := today
			f.created[i].PublishedAt = &at
			return nil
		}
	}
	return apperrors.NotFound("notification")
}

// unpublished returns the recorded rows that never reached the broker
func (f *fakeNotifications) unpublished() []repository.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Notification
	for _, n := range f.created {
		if n.PublishedAt == nil {
			out = append(out, n)
		}
	}
	return out
}

func (f *fakeNotifications) List(_ context.Context, filter repository.NotificationFilter) ([]repository.Notification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	return f.created, int64(len(f.created)), nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.created {
		if n.ID == id {
			f.markedRead = append(f.markedRead, id)
			return nil
		}
	}
	return apperrors.NotFound("notification")
}

var errStoreDown = errors.New("store down")
