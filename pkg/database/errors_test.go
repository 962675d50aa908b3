package database

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
	apperrors "github.com/pharmatrack/pharmatrack-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPQError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "digest unique violation",
			err:        &pq.Error{Code: "23505", Constraint: "notifications_digest_scope_day"},
			wantCode:   "CONFLICT",
			wantStatus: http.StatusConflict,
			wantMsg:    "a digest for this scope was already recorded today",
		},
		{
			name:       "generic unique violation",
			err:        &pq.Error{Code: "23505", Constraint: "something_else"},
			wantCode:   "CONFLICT",
			wantStatus: http.StatusConflict,
			wantMsg:    "a record with these values already exists",
		},
		{
			name:       "negative stock check",
			err:        &pq.Error{Code: "23514", Constraint: "medications_stock_nonnegative"},
			wantCode:   "VALIDATION_ERROR",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "foreign key",
			err:        &pq.Error{Code: "23503"},
			wantCode:   "BAD_REQUEST",
			wantStatus: http.StatusBadRequest,
			wantMsg:    "referenced record does not exist",
		},
		{
			name:       "malformed uuid",
			err:        fmt.Errorf("query: %w", &pq.Error{Code: "22P02"}),
			wantCode:   "BAD_REQUEST",
			wantStatus: http.StatusBadRequest,
			wantMsg:    "malformed identifier",
		},
		{
			name:       "statement timeout",
			err:        &pq.Error{Code: "57014"},
			wantCode:   "QUERY_TIMEOUT",
			wantStatus: http.StatusServiceUnavailable,
			wantMsg:    "inventory query timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapPQError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, got.Message)
			}
		})
	}
}

func TestMapPQError_NotNullUsesColumn(t *testing.T) {
	got := MapPQError(&pq.Error{Code: "23502", Column: "expiry_date"})
	require.NotNil(t, got)
	assert.Equal(t, "must not be empty", got.Details["expiry_date"])
	assert.True(t, apperrors.Is(got, apperrors.ErrValidation))
}

func TestMapPQError_Unmapped(t *testing.T) {
	assert.Nil(t, MapPQError(errors.New("plain")))
	assert.Nil(t, MapPQError(&pq.Error{Code: "40001"}))
}
