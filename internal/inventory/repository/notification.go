package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pharmatrack/pharmatrack-backend/pkg/actor"
	"github.com/pharmatrack/pharmatrack-backend/pkg/database"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
	"github.com/pharmatrack/pharmatrack-backend/pkg/tenant"
	"github.com/shopspring/decimal"
)

// Notification kinds
const (
	NotificationDigest = "digest"
	NotificationAlert  = "alert"
)

// Notification is a record of a generated digest or alert message
type Notification struct {
	ID          string          `db:"id" json:"id"`
	PharmacyID  string          `db:"pharmacy_id" json:"pharmacy_id"`
	BranchID    *string         `db:"branch_id" json:"branch_id,omitempty"`
	Kind        string          `db:"kind" json:"kind"`
	Title       string          `db:"title" json:"title"`
	Message     string          `db:"message" json:"message"`
	WhatsAppURL *string         `db:"whatsapp_url" json:"whatsapp_url,omitempty"`
	AlertID     *string         `db:"alert_id" json:"alert_id,omitempty"`
	AlertCount  int             `db:"alert_count" json:"alert_count"`
	HighCount   int             `db:"high_count" json:"high_count"`
	ValueAtRisk decimal.Decimal `db:"value_at_risk" json:"value_at_risk"`
	IsRead      bool            `db:"is_read" json:"is_read"`
	ReadBy      *string         `db:"read_by" json:"read_by,omitempty"`
	ReadAt      *time.Time      `db:"read_at" json:"read_at,omitempty"`
	PublishedAt *time.Time      `db:"published_at" json:"published_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

const notificationColumns = `id, pharmacy_id, branch_id, kind, title, message, whatsapp_url,
	alert_id, alert_count, high_count, value_at_risk, is_read, read_by, read_at, published_at, created_at`

// NotificationLookup selects notifications of one kind for one scope
type NotificationLookup struct {
	Kind     string
	BranchID *string // nil for the pharmacy-wide scope
	AlertID  *string // set for alert notifications
	Since    time.Time
}

// NotificationFilter narrows List
type NotificationFilter struct {
	UnreadOnly bool
	Kind       string
	Page       int
	PerPage    int
}

// NotificationRepository handles notification persistence
type NotificationRepository struct {
	db *database.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create stores n for the current pharmacy and fills its ID and CreatedAt
func (r *NotificationRepository) Create(ctx context.Context, n *Notification) error {
	pharmacyID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.PharmacyID = pharmacyID

	query := `
		INSERT INTO notifications (
			id, pharmacy_id, branch_id, kind, title, message, whatsapp_url,
			alert_id, alert_count, high_count, value_at_risk
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`

	err = r.db.WithTenantRLS(ctx, pharmacyID, func(ctx context.Context) error {
		return r.db.Conn(ctx).QueryRowxContext(ctx, query,
			n.ID, n.PharmacyID, n.BranchID, n.Kind, n.Title, n.Message,
			n.WhatsAppURL, n.AlertID, n.AlertCount, n.HighCount, n.ValueAtRisk,
		).Scan(&n.CreatedAt)
	})
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// LatestSince returns the newest notification matching l that was recorded at
// or after l.Since, or nil when there is none
func (r *NotificationRepository) LatestSince(ctx context.Context, l NotificationLookup) (*Notification, error) {
	pharmacyID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE kind = $1
			AND branch_id IS NOT DISTINCT FROM $2::uuid
			AND alert_id IS NOT DISTINCT FROM $3
			AND created_at >= $4
		ORDER BY created_at DESC
		LIMIT 1`

	var n Notification
	err = r.db.WithTenantRLS(ctx, pharmacyID, func(ctx context.Context) error {
		return r.db.Conn(ctx).GetContext(ctx, &n, query, l.Kind, l.BranchID, l.AlertID, l.Since)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find %s notification: %w", l.Kind, err)
	}
	return &n, nil
}

// MarkPublished records that the notification reached the broker
func (r *NotificationRepository) MarkPublished(ctx context.Context, id string) error {
	pharmacyID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	var affected int64
	err = r.db.WithTenantRLS(ctx, pharmacyID, func(ctx context.Context) error {
		result, err := r.db.Conn(ctx).ExecContext(ctx,
			`UPDATE notifications SET published_at = NOW() WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("mark notification published: %w", err)
	}

	if affected == 0 {
		return errors.NotFound("notification")
	}
	return nil
}

// List returns notifications newest first together with the total match count
func (r *NotificationRepository) List(ctx context.Context, f NotificationFilter) ([]Notification, int64, error) {
	pharmacyID, err := tenant.TenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := ` WHERE 1=1`
	args := []interface{}{}
	if f.UnreadOnly {
		where += ` AND is_read = FALSE`
	}
	if f.Kind != "" {
		args = append(args, f.Kind)
		where += fmt.Sprintf(` AND kind = $%d`, len(args))
	}

	countQuery := `SELECT COUNT(*) FROM notifications` + where
	query := `SELECT ` + notificationColumns + ` FROM notifications` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)

	var total int64
	notifications := []Notification{}
	err = r.db.WithTenantRLS(ctx, pharmacyID, func(ctx context.Context) error {
		if err := r.db.Conn(ctx).GetContext(ctx, &total, countQuery, args...); err != nil {
			return err
		}
		pageArgs := append(append([]interface{}{}, args...), f.PerPage, (f.Page-1)*f.PerPage)
		return r.db.Conn(ctx).SelectContext(ctx, &notifications, query, pageArgs...)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	return notifications, total, nil
}

const markReadQuery = `UPDATE notifications
	SET is_read = TRUE, read_by = $2::uuid, read_at = NOW()
	WHERE id = $1`

// MarkRead flags a notification as read by the user in ctx. System reads
// leave read_by empty.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	pharmacyID, err := tenant.TenantID(ctx)
	if err != nil {
		return err
	}

	var affected int64
	err = r.db.WithTenantRLS(ctx, pharmacyID, func(ctx context.Context) error {
		result, err := r.db.Conn(ctx).ExecContext(ctx, markReadQuery, id, actor.UserID(ctx))
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("mark notification read: %w", err)
	}

	if affected == 0 {
		return errors.NotFound("notification")
	}
	return nil
}
