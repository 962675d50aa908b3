package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pharmatrack/pharmatrack-backend/internal/inventory/repository"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
	"github.com/pharmatrack/pharmatrack-backend/pkg/httputil"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
)

// NotificationManager is satisfied by service.NotificationService
type NotificationManager interface {
	List(ctx context.Context, f repository.NotificationFilter) ([]repository.Notification, int64, repository.NotificationFilter, error)
	MarkRead(ctx context.Context, id string) error
}

// NotificationHandler handles notification endpoints
type NotificationHandler struct {
	service NotificationManager
	logger  *logger.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(svc NotificationManager, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: svc,
		logger:  log,
	}
}

type listNotificationsQuery struct {
	Kind string `query:"kind" validate:"omitempty,oneof=digest alert"`
}

type notificationIDParam struct {
	ID string `json:"id" validate:"required,uuid"`
}

// List lists notifications newest first
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	q := listNotificationsQuery{Kind: query.Get("kind")}
	if err := httputil.Validate(q); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	details := map[string]string{}
	page := parseIntParam(query.Get("page"), "page", details)
	perPage := parseIntParam(query.Get("per_page"), "per_page", details)
	if len(details) > 0 {
		httputil.Error(w, errors.Validation(details))
		return
	}

	items, total, applied, err := h.service.List(r.Context(), repository.NotificationFilter{
		UnreadOnly: query.Get("unread") == "true",
		Kind:       q.Kind,
		Page:       page,
		PerPage:    perPage,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, items, httputil.NewMeta(applied.Page, applied.PerPage, total))
}

// MarkRead flags a notification as read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	p := notificationIDParam{ID: chi.URLParam(r, "id")}
	if err := httputil.Validate(p); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.service.MarkRead(r.Context(), p.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	httputil.NoContent(w)
}

// parseIntParam returns 0 for an empty value so the service default applies
func parseIntParam(raw, name string, details map[string]string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		details[name] = "must be a whole number"
		return 0
	}
	return n
}
