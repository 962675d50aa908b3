package database

import (
	"net/http"
	"strings"

	"github.com/lib/pq"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error or has no specific mapping.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case "23514": // check_violation
		return mapCheckConstraint(pqErr)

	case "23505": // unique_violation
		return errors.Conflict(formatConstraintMessage(pqErr))

	case "23503": // foreign_key_violation
		return errors.BadRequest("referenced record does not exist")

	case "23502": // not_null_violation
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	case "22P02": // invalid_text_representation, e.g. a malformed uuid
		return errors.BadRequest("malformed identifier")

	case "57014": // query_canceled, statement_timeout on large inventories
		return errors.Wrap(pqErr, "QUERY_TIMEOUT", "inventory query timed out", http.StatusServiceUnavailable)

	default:
		return nil
	}
}

func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "stock_nonnegative"):
		return errors.Validation(map[string]string{
			"current_stock": "must not be negative",
		})

	case strings.Contains(constraint, "reorder_level_nonnegative"):
		return errors.Validation(map[string]string{
			"reorder_level": "must not be negative",
		})

	case strings.Contains(constraint, "kind_valid"):
		return errors.Validation(map[string]string{
			"kind": "must be one of: digest, alert",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func formatConstraintMessage(pqErr *pq.Error) string {
	switch {
	case strings.Contains(pqErr.Constraint, "notifications_digest"):
		return "a digest for this scope was already recorded today"
	case strings.Contains(pqErr.Constraint, "branch_inventory"):
		return "this medication is already stocked at the branch"
	default:
		return "a record with these values already exists"
	}
}
