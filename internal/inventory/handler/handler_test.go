package handler_test

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/pharmatrack/pharmatrack-backend/internal/alerts"
	"github.com/pharmatrack/pharmatrack-backend/internal/inventory/handler"
	"github.com/pharmatrack/pharmatrack-backend/internal/inventory/repository"
	"github.com/pharmatrack/pharmatrack-backend/internal/inventory/service"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
	"github.com/pharmatrack/pharmatrack-backend/pkg/httputil"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
	"github.com/pharmatrack/pharmatrack-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	pharmacyID = "6f1c2b0e-0d7a-4a53-9a43-2b8f0f3f6a11"
	branchID   = "0b7c3a44-5e0a-4f7e-8d2c-7a8c3f9d1e22"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}

	code := m.Run()
	suite.Close()
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

type fakeAlerts struct {
	scope  repository.Scope
	filter service.AlertFilter
	id     string
	phone  string
	err    error
}

var sampleAlert = alerts.Alert{
	ID:          "stock-m1",
	Type:        alerts.TypeOutOfStock,
	Priority:    alerts.PriorityHigh,
	Title:       "Out of Stock: Insulin",
	ProductName: "Insulin",
	ProductID:   "m1",
}

func (f *fakeAlerts) ListAlerts(_ context.Context, scope repository.Scope, filter service.AlertFilter) ([]alerts.Alert, alerts.Summary, error) {
	f.scope, f.filter = scope, filter
	return []alerts.Alert{sampleAlert}, alerts.Summary{Total: 3, High: 1}, f.err
}

func (f *fakeAlerts) Summary(_ context.Context, scope repository.Scope) (alerts.Summary, error) {
	f.scope = scope
	return alerts.Summary{Total: 3, High: 1}, f.err
}

func (f *fakeAlerts) GetAlert(_ context.Context, scope repository.Scope, id string) (*alerts.Alert, error) {
	f.scope, f.id = scope, id
	if f.err != nil {
		return nil, f.err
	}
	a := sampleAlert
	return &a, nil
}

func (f *fakeAlerts) AlertWhatsAppLink(_ context.Context, scope repository.Scope, id, phone string) (string, error) {
	f.scope, f.id, f.phone = scope, id, phone
	return "https://wa.me/1?text=alert", f.err
}

func (f *fakeAlerts) Digest(_ context.Context, scope repository.Scope) (*service.Digest, error) {
	f.scope = scope
	if f.err != nil {
		return nil, f.err
	}
	return &service.Digest{Message: "digest", Alerts: []alerts.Alert{sampleAlert}}, nil
}

func (f *fakeAlerts) DigestWhatsAppLink(_ context.Context, scope repository.Scope, phone string) (string, error) {
	f.scope, f.phone = scope, phone
	return "https://wa.me/1?text=digest", f.err
}

type fakeNotifications struct {
	filter repository.NotificationFilter
	read   string
	err    error
}

func (f *fakeNotifications) List(_ context.Context, filter repository.NotificationFilter) ([]repository.Notification, int64, repository.NotificationFilter, error) {
	f.filter = filter
	filter.Page, filter.PerPage = 2, 10
	return []repository.Notification{{ID: "n1", Kind: repository.NotificationDigest}}, 11, filter, f.err
}

func (f *fakeNotifications) MarkRead(_ context.Context, id string) error {
	f.read = id
	return f.err
}

func newRouter(a handler.AlertReader, n handler.NotificationManager) http.Handler {
	return newLoggedRouter(a, n, logger.Nop())
}

func newLoggedRouter(a handler.AlertReader, n handler.NotificationManager, log *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(httputil.RequestID)
	r.Use(httputil.TenantMiddleware)
	r.Use(httputil.ActorMiddleware)
	handler.RegisterRoutes(r,
		handler.NewAlertHandler(a, log),
		handler.NewNotificationHandler(n, log),
	)
	return r
}

func get(t *testing.T, router http.Handler, path string) (int, httputil.Response) {
	t.Helper()
	req := testutil.WithTenantHeaders(testutil.NewHTTPRequest(http.MethodGet, path, nil), pharmacyID)
	rr := testutil.ExecuteRequest(router, req)
	var resp httputil.Response
	testutil.ParseJSONBody(t, rr, &resp)
	return rr.Code, resp
}

func TestListAlerts(t *testing.T) {
	fake := &fakeAlerts{}
	router := newRouter(fake, &fakeNotifications{})

	req := testutil.WithTenantHeaders(
		testutil.NewHTTPRequest(http.MethodGet, "/api/v1/alerts?type=out_of_stock&priority=high&branch_id="+branchID, nil),
		pharmacyID,
	)
	rr := testutil.ExecuteRequest(router, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		Success bool              `json:"success"`
		Data    handler.AlertList `json:"data"`
	}
	testutil.ParseJSONBody(t, rr, &body)
	assert.True(t, body.Success)
	require.Len(t, body.Data.Alerts, 1)
	assert.Equal(t, "stock-m1", body.Data.Alerts[0].ID)
	assert.Equal(t, 3, body.Data.Summary.Total)

	assert.Equal(t, repository.Scope{BranchID: branchID}, fake.scope)
	assert.Equal(t, service.AlertFilter{Type: alerts.TypeOutOfStock, Priority: alerts.PriorityHigh}, fake.filter)
}

func TestListAlerts_InvalidQuery(t *testing.T) {
	router := newRouter(&fakeAlerts{}, &fakeNotifications{})

	code, resp := get(t, router, "/api/v1/alerts?type=recall&priority=urgent&branch_id=ikeja")
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "must be one of: expiry, low_stock, out_of_stock", resp.Error.Details["type"])
	assert.Equal(t, "must be one of: high, medium, low", resp.Error.Details["priority"])
	assert.Equal(t, "must be a valid UUID", resp.Error.Details["branch_id"])
}

func TestListAlerts_RequiresTenant(t *testing.T) {
	router := newRouter(&fakeAlerts{}, &fakeNotifications{})

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/alerts", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestSummaryRoute(t *testing.T) {
	fake := &fakeAlerts{}
	code, resp := get(t, newRouter(fake, &fakeNotifications{}), "/api/v1/alerts/summary")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]interface{}{
		"total": float64(3), "high": float64(1), "medium": float64(0),
		"low": float64(0), "expiry": float64(0), "low_stock": float64(0),
	}, resp.Data)
	assert.Empty(t, fake.id, "summary must not be routed as an alert id")
}

func TestGetAlert(t *testing.T) {
	fake := &fakeAlerts{}
	code, _ := get(t, newRouter(fake, &fakeNotifications{}), "/api/v1/alerts/stock-m1")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "stock-m1", fake.id)
}

func TestGetAlert_NotFound(t *testing.T) {
	fake := &fakeAlerts{err: errors.NotFound("alert")}
	code, resp := get(t, newRouter(fake, &fakeNotifications{}), "/api/v1/alerts/expiry-gone")

	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestServiceFailuresAreLogged(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter("alert-service", &buf)

	router := newLoggedRouter(&fakeAlerts{err: fmt.Errorf("pq: connection refused")}, &fakeNotifications{}, log)
	code, resp := get(t, router, "/api/v1/alerts/summary")

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.Contains(t, buf.String(), `"message":"request failed"`)
	assert.Contains(t, buf.String(), "connection refused")
	assert.Contains(t, buf.String(), `"path":"/api/v1/alerts/summary"`)
	assert.Contains(t, buf.String(), `"request_id"`)
}

func TestClientErrorsAreNotLogged(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter("alert-service", &buf)

	router := newLoggedRouter(&fakeAlerts{err: errors.NotFound("alert")}, &fakeNotifications{}, log)
	code, _ := get(t, router, "/api/v1/alerts/expiry-gone")

	assert.Equal(t, http.StatusNotFound, code)
	assert.Empty(t, buf.String())
}

func TestAlertWhatsApp(t *testing.T) {
	fake := &fakeAlerts{}
	code, resp := get(t, newRouter(fake, &fakeNotifications{}), "/api/v1/alerts/stock-m1/whatsapp?phone=%2B234+801+234+5678")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]interface{}{"url": "https://wa.me/1?text=alert"}, resp.Data)
	assert.Equal(t, "+234 801 234 5678", fake.phone)
}

func TestAlertWhatsApp_InvalidPhone(t *testing.T) {
	code, resp := get(t, newRouter(&fakeAlerts{}, &fakeNotifications{}), "/api/v1/alerts/stock-m1/whatsapp?phone=12-34")

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "must contain at least 7 digits", resp.Error.Details["phone"])
}

func TestAlertWhatsApp_NoRecipient(t *testing.T) {
	fake := &fakeAlerts{err: errors.NoRecipient()}
	code, resp := get(t, newRouter(fake, &fakeNotifications{}), "/api/v1/alerts/stock-m1/whatsapp")

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "NO_RECIPIENT", resp.Error.Code)
}

func TestDigestRoutes(t *testing.T) {
	fake := &fakeAlerts{}
	router := newRouter(fake, &fakeNotifications{})

	code, resp := get(t, router, "/api/v1/alerts/digest?branch_id="+branchID)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "digest", resp.Data.(map[string]interface{})["message"])
	assert.Equal(t, branchID, fake.scope.BranchID)

	code, resp = get(t, router, "/api/v1/alerts/digest/whatsapp?phone=08012345678")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]interface{}{"url": "https://wa.me/1?text=digest"}, resp.Data)
	assert.Equal(t, "08012345678", fake.phone)
	assert.Empty(t, fake.id)
}

func TestListNotifications(t *testing.T) {
	fake := &fakeNotifications{}
	code, resp := get(t, newRouter(&fakeAlerts{}, fake), "/api/v1/alerts/notifications?unread=true&kind=digest&page=2&per_page=10")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, repository.NotificationFilter{UnreadOnly: true, Kind: "digest", Page: 2, PerPage: 10}, fake.filter)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, httputil.Meta{Page: 2, PerPage: 10, Total: 11, TotalPages: 2}, *resp.Meta)
}

func TestListNotifications_InvalidQuery(t *testing.T) {
	code, resp := get(t, newRouter(&fakeAlerts{}, &fakeNotifications{}), "/api/v1/alerts/notifications?page=two&kind=sms")

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "must be one of: digest, alert", resp.Error.Details["kind"])

	code, resp = get(t, newRouter(&fakeAlerts{}, &fakeNotifications{}), "/api/v1/alerts/notifications?page=two")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "must be a whole number", resp.Error.Details["page"])
}

func TestMarkNotificationRead(t *testing.T) {
	fake := &fakeNotifications{}
	router := newRouter(&fakeAlerts{}, fake)

	id := "3d9a8b1c-7e6f-4a5b-8c9d-0e1f2a3b4c5d"
	req := testutil.WithTenantHeaders(testutil.NewHTTPRequest(http.MethodPut, "/api/v1/alerts/notifications/"+id+"/read", nil), pharmacyID)
	rr := testutil.ExecuteRequest(router, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, id, fake.read)
}

func TestMarkNotificationRead_InvalidID(t *testing.T) {
	fake := &fakeNotifications{}
	router := newRouter(&fakeAlerts{}, fake)

	req := testutil.WithTenantHeaders(testutil.NewHTTPRequest(http.MethodPut, "/api/v1/alerts/notifications/abc/read", nil), pharmacyID)
	rr := testutil.ExecuteRequest(router, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, fake.read)
}
