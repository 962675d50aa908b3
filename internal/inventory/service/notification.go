package service

import (
	"context"
	"strconv"

	"github.com/pharmatrack/pharmatrack-backend/internal/inventory/repository"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
)

const (
	defaultNotificationsPerPage = 20
	maxNotificationsPerPage     = 100
	// keeps the row offset far inside int range
	maxNotificationsPage = 10000
)

// NotificationService lists and acknowledges recorded notifications
type NotificationService struct {
	notifications NotificationStore
}

// NewNotificationService creates a new notification service
func NewNotificationService(notifications NotificationStore) *NotificationService {
	return &NotificationService{notifications: notifications}
}

// List returns one page of notifications, newest first. Paging values below
// range fall back to the defaults; pages past maxNotificationsPage are rejected.
func (s *NotificationService) List(ctx context.Context, f repository.NotificationFilter) ([]repository.Notification, int64, repository.NotificationFilter, error) {
	if f.Page > maxNotificationsPage {
		return nil, 0, f, errors.Validation(map[string]string{
			"page": "must be at most " + strconv.Itoa(maxNotificationsPage),
		})
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = defaultNotificationsPerPage
	}
	if f.PerPage > maxNotificationsPerPage {
		f.PerPage = maxNotificationsPerPage
	}

	items, total, err := s.notifications.List(ctx, f)
	if err != nil {
		return nil, 0, f, err
	}
	return items, total, f, nil
}

// MarkRead flags a notification as read
func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	return s.notifications.MarkRead(ctx, id)
}
