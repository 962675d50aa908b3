package service_test

import (
	"net/url"
	"testing"

	"github.com/pharmatrack/pharmatrack-backend/internal/alerts"
	"github.com/pharmatrack/pharmatrack-backend/internal/inventory/repository"
	"github.com/pharmatrack/pharmatrack-backend/internal/inventory/service"
	apperrors "github.com/pharmatrack/pharmatrack-backend/pkg/errors"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
	"github.com/pharmatrack/pharmatrack-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAlertService(inv *fakeInventory, ph *fakePharmacies, defaultPhone string) *service.AlertService {
	return service.NewAlertService(inv, ph, fixedClock, defaultPhone, logger.Nop())
}

func sampleInventory() *fakeInventory {
	return &fakeInventory{items: map[string][]alerts.InventoryItem{
		"": {
			medication(amxID, "Amoxicillin", 10, 5, -1),
			medication(ibuID, "Ibuprofen", 20, 5, 5),
			medication(insID, "Insulin", 0, 5, 200),
			medication(cetID, "Cetirizine", 4, 5, 200),
			medication(vitID, "Vitamin C", 500, 5, 200),
		},
		branchID: {
			medication(amxID, "Amoxicillin", 2, 5, 200),
		},
	}}
}

func samplePharmacies() *fakePharmacies {
	return &fakePharmacies{
		pharmacy: repository.Pharmacy{ID: pharmacyID, Name: "Lekki Pharmacy"},
		branches: []repository.Branch{{ID: branchID, PharmacyID: pharmacyID, Name: "Ikeja"}},
	}
}

func TestListAlerts_RankedWithSummary(t *testing.T) {
	svc := newAlertService(sampleInventory(), samplePharmacies(), "")

	list, summary, err := svc.ListAlerts(pharmacyCtx(), repository.Scope{}, service.AlertFilter{})
	require.NoError(t, err)

	ids := make([]string, len(list))
	for i, a := range list {
		ids[i] = a.ID
	}
	assert.Equal(t, []string{"expiry-" + amxID, "expiry-" + ibuID, "stock-" + insID, "stock-" + cetID}, ids)
	assert.Equal(t, alerts.Summary{Total: 4, High: 3, Low: 1, Expiry: 2, LowStock: 2}, summary)
}

func TestListAlerts_FilterKeepsFullSummary(t *testing.T) {
	svc := newAlertService(sampleInventory(), samplePharmacies(), "")

	list, summary, err := svc.ListAlerts(pharmacyCtx(), repository.Scope{}, service.AlertFilter{
		Type:     alerts.TypeExpiry,
		Priority: alerts.PriorityHigh,
	})
	require.NoError(t, err)

	require.Len(t, list, 2)
	for _, a := range list {
		assert.Equal(t, alerts.TypeExpiry, a.Type)
		assert.Equal(t, alerts.PriorityHigh, a.Priority)
	}
	assert.Equal(t, 4, summary.Total)
}

func TestListAlerts_BranchScope(t *testing.T) {
	svc := newAlertService(sampleInventory(), samplePharmacies(), "")

	list, _, err := svc.ListAlerts(pharmacyCtx(), repository.Scope{BranchID: branchID}, service.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, alerts.TypeLowStock, list[0].Type)
	assert.Equal(t, 2, *list[0].CurrentStock)
}

func TestListAlerts_UnknownBranch(t *testing.T) {
	svc := newAlertService(sampleInventory(), samplePharmacies(), "")

	_, _, err := svc.ListAlerts(pharmacyCtx(), repository.Scope{BranchID: "someone-elses"}, service.AlertFilter{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListAlerts_StoreError(t *testing.T) {
	inv := sampleInventory()
	inv.fail = map[string]error{"": errStoreDown}
	svc := newAlertService(inv, samplePharmacies(), "")

	_, _, err := svc.ListAlerts(pharmacyCtx(), repository.Scope{}, service.AlertFilter{})
	assert.ErrorIs(t, err, errStoreDown)
}

func TestSummary(t *testing.T) {
	svc := newAlertService(sampleInventory(), samplePharmacies(), "")

	summary, err := svc.Summary(pharmacyCtx(), repository.Scope{})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
}

func TestGetAlert(t *testing.T) {
	svc := newAlertService(sampleInventory(), samplePharmacies(), "")

	a, err := svc.GetAlert(pharmacyCtx(), repository.Scope{}, "stock-"+insID)
	require.NoError(t, err)
	assert.Equal(t, alerts.TypeOutOfStock, a.Type)
	assert.Equal(t, "Insulin", a.ProductName)
}

func TestGetAlert_NotFound(t *testing.T) {
	svc := newAlertService(sampleInventory(), samplePharmacies(), "")

	tests := []struct {
		name string
		id   string
	}{
		{"unknown prefix", "batch-" + amxID},
		{"empty medication", "stock-"},
		{"unknown medication", "expiry-0f0e0d0c-0b0a-4908-8706-050403020100"},
		{"healthy medication", "stock-" + vitID},
		{"wrong class", "stock-" + ibuID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GetAlert(pharmacyCtx(), repository.Scope{}, tt.id)
			assert.ErrorIs(t, err, apperrors.ErrNotFound)
		})
	}
}

func TestGetAlert_MalformedMedicationID(t *testing.T) {
	inv := sampleInventory()
	svc := newAlertService(inv, samplePharmacies(), "")

	for _, id := range []string{"expiry-not-a-uuid", "stock-ins", "stock-" + insID + "x"} {
		_, err := svc.GetAlert(pharmacyCtx(), repository.Scope{}, id)
		assert.ErrorIs(t, err, apperrors.ErrNotFound, id)

		_, err = svc.AlertWhatsAppLink(pharmacyCtx(), repository.Scope{}, id, "0801 000 0001")
		assert.ErrorIs(t, err, apperrors.ErrNotFound, id)
	}
	assert.Empty(t, inv.lookups)
}

func TestAlertWhatsAppLink_RecipientFallback(t *testing.T) {
	branchPhone := "0802 000 0002"
	pharmacyPhone := "0801 000 0001"

	tests := []struct {
		name          string
		scope         repository.Scope
		requested     string
		branchPhone   *string
		pharmacyPhone *string
		defaultPhone  string
		wantPath      string
	}{
		{"request wins", repository.Scope{BranchID: branchID}, "+234 809 999 9999", &branchPhone, &pharmacyPhone, "0800", "/2348099999999"},
		{"branch phone", repository.Scope{BranchID: branchID}, "", &branchPhone, &pharmacyPhone, "0800", "/08020000002"},
		{"pharmacy phone for branch", repository.Scope{BranchID: branchID}, "", nil, &pharmacyPhone, "0800", "/08010000001"},
		{"pharmacy phone", repository.Scope{}, "n/a", &branchPhone, &pharmacyPhone, "0800", "/08010000001"},
		{"default phone", repository.Scope{}, "", nil, nil, "0800 123", "/0800123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ph := samplePharmacies()
			ph.branches[0].AlertPhone = tt.branchPhone
			ph.pharmacy.AlertPhone = tt.pharmacyPhone
			inv := sampleInventory()
			inv.items[branchID] = inv.items[""]
			svc := newAlertService(inv, ph, tt.defaultPhone)

			link, err := svc.AlertWhatsAppLink(pharmacyCtx(), tt.scope, "stock-"+insID, tt.requested)
			require.NoError(t, err)

			parsed, err := url.Parse(link)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, parsed.Path)
			assert.Contains(t, parsed.Query().Get("text"), "Product: Insulin")
		})
	}
}

func TestAlertWhatsAppLink_NoRecipient(t *testing.T) {
	svc := newAlertService(sampleInventory(), samplePharmacies(), "")

	_, err := svc.AlertWhatsAppLink(pharmacyCtx(), repository.Scope{}, "stock-"+insID, "")
	assert.ErrorIs(t, err, apperrors.ErrNoRecipient)
}

func TestDigest(t *testing.T) {
	svc := newAlertService(sampleInventory(), samplePharmacies(), "")

	d, err := svc.Digest(pharmacyCtx(), repository.Scope{})
	require.NoError(t, err)

	assert.Equal(t, today, d.GeneratedAt)
	assert.Len(t, d.Alerts, 4)
	assert.Equal(t, 4, d.Summary.Total)
	// 10 expired units at 100 plus 20 units at 100
	assert.True(t, decimal.NewFromInt(3000).Equal(d.TotalValueAtRisk), "total = %s", d.TotalValueAtRisk)
	assert.Equal(t, alerts.DigestMessage(d.Alerts, today), d.Message)
	assert.Contains(t, d.Message, "10 Jan 2025")
}

func TestDigestWhatsAppLink(t *testing.T) {
	ph := samplePharmacies()
	ph.pharmacy.AlertPhone = testutil.PtrString("0801 000 0001")
	svc := newAlertService(sampleInventory(), ph, "")

	link, err := svc.DigestWhatsAppLink(pharmacyCtx(), repository.Scope{}, "")
	require.NoError(t, err)

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/08010000001", parsed.Path)
	assert.Contains(t, parsed.Query().Get("text"), "PharmaTrack Alert Digest")
}
