// Package tenant carries the pharmacy (tenant) identity through a request.
package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

type contextKey string

const tenantIDKey contextKey = "tenant_id"

var (
	// ErrNoTenantInContext is returned when tenant context is missing
	ErrNoTenantInContext = errors.New("no tenant in context")
	// ErrInvalidTenantID is returned when a tenant ID is not a UUID
	ErrInvalidTenantID = errors.New("tenant id must be a uuid")
)

// WithTenantID adds the pharmacy ID to the context
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// TenantID extracts the pharmacy ID from context
func TenantID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(tenantIDKey).(string)
	if !ok || id == "" {
		return "", ErrNoTenantInContext
	}
	return id, nil
}

// ParseTenantID validates a raw header value and returns its canonical form
func ParseTenantID(raw string) (string, error) {
	if raw == "" {
		return "", ErrNoTenantInContext
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", ErrInvalidTenantID
	}
	return id.String(), nil
}
