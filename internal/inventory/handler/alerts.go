package handler

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/pharmatrack/pharmatrack-backend/internal/alerts"
	"github.com/pharmatrack/pharmatrack-backend/internal/inventory/repository"
	"github.com/pharmatrack/pharmatrack-backend/internal/inventory/service"
	"github.com/pharmatrack/pharmatrack-backend/pkg/httputil"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
)

// AlertReader is satisfied by service.AlertService
type AlertReader interface {
	ListAlerts(ctx context.Context, scope repository.Scope, filter service.AlertFilter) ([]alerts.Alert, alerts.Summary, error)
	Summary(ctx context.Context, scope repository.Scope) (alerts.Summary, error)
	GetAlert(ctx context.Context, scope repository.Scope, alertID string) (*alerts.Alert, error)
	AlertWhatsAppLink(ctx context.Context, scope repository.Scope, alertID, phone string) (string, error)
	Digest(ctx context.Context, scope repository.Scope) (*service.Digest, error)
	DigestWhatsAppLink(ctx context.Context, scope repository.Scope, phone string) (string, error)
}

// AlertHandler handles alert endpoints
type AlertHandler struct {
	service AlertReader
	logger  *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(svc AlertReader, log *logger.Logger) *AlertHandler {
	registerValidations()
	return &AlertHandler{
		service: svc,
		logger:  log,
	}
}

type scopeQuery struct {
	BranchID string `query:"branch_id" validate:"omitempty,uuid"`
}

func (q scopeQuery) scope() repository.Scope {
	return repository.Scope{BranchID: q.BranchID}
}

type listAlertsQuery struct {
	scopeQuery
	Type     string `query:"type" validate:"omitempty,oneof=expiry low_stock out_of_stock"`
	Priority string `query:"priority" validate:"omitempty,oneof=high medium low"`
}

type whatsAppQuery struct {
	scopeQuery
	Phone string `query:"phone" validate:"omitempty,phone"`
}

// AlertList is the body of GET /alerts
type AlertList struct {
	Alerts  []alerts.Alert `json:"alerts"`
	Summary alerts.Summary `json:"summary"`
}

// WhatsAppLink is the body of the whatsapp endpoints
type WhatsAppLink struct {
	URL string `json:"url"`
}

// List lists ranked alerts with the summary of the whole scope
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	q := listAlertsQuery{
		scopeQuery: scopeQuery{BranchID: r.URL.Query().Get("branch_id")},
		Type:       r.URL.Query().Get("type"),
		Priority:   r.URL.Query().Get("priority"),
	}
	if err := httputil.Validate(q); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	list, summary, err := h.service.ListAlerts(r.Context(), q.scope(), service.AlertFilter{
		Type:     alerts.Type(q.Type),
		Priority: alerts.Priority(q.Priority),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, AlertList{Alerts: list, Summary: summary})
}

// Summary returns alert counts
func (h *AlertHandler) Summary(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseScope(w, r)
	if !ok {
		return
	}

	summary, err := h.service.Summary(r.Context(), q.scope())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, summary)
}

// Get returns a single alert
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseScope(w, r)
	if !ok {
		return
	}

	alert, err := h.service.GetAlert(r.Context(), q.scope(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}

// WhatsApp returns a wa.me link carrying the alert message
func (h *AlertHandler) WhatsApp(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseWhatsApp(w, r)
	if !ok {
		return
	}

	link, err := h.service.AlertWhatsAppLink(r.Context(), q.scope(), chi.URLParam(r, "id"), q.Phone)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, WhatsAppLink{URL: link})
}

// Digest returns the rendered digest
func (h *AlertHandler) Digest(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseScope(w, r)
	if !ok {
		return
	}

	digest, err := h.service.Digest(r.Context(), q.scope())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, digest)
}

// DigestWhatsApp returns a wa.me link carrying the digest
func (h *AlertHandler) DigestWhatsApp(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseWhatsApp(w, r)
	if !ok {
		return
	}

	link, err := h.service.DigestWhatsAppLink(r.Context(), q.scope(), q.Phone)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, WhatsAppLink{URL: link})
}

func (h *AlertHandler) parseScope(w http.ResponseWriter, r *http.Request) (scopeQuery, bool) {
	q := scopeQuery{BranchID: r.URL.Query().Get("branch_id")}
	if err := httputil.Validate(q); err != nil {
		writeError(w, r, h.logger, err)
		return q, false
	}
	return q, true
}

func (h *AlertHandler) parseWhatsApp(w http.ResponseWriter, r *http.Request) (whatsAppQuery, bool) {
	q := whatsAppQuery{
		scopeQuery: scopeQuery{BranchID: r.URL.Query().Get("branch_id")},
		Phone:      r.URL.Query().Get("phone"),
	}
	if err := httputil.Validate(q); err != nil {
		writeError(w, r, h.logger, err)
		return q, false
	}
	return q, true
}

var validationsOnce sync.Once

func registerValidations() {
	validationsOnce.Do(func() {
		// only fails for an empty tag
		_ = httputil.RegisterCustomValidation("phone", validPhone)
	})
}

// validPhone accepts numbers with at least 7 digits once formatting is stripped
func validPhone(fl validator.FieldLevel) bool {
	return len(alerts.NormalizePhone(fl.Field().String())) >= 7
}
