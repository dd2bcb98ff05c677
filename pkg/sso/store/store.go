// Package store defines the failure taxonomy and shared defaults for the
// persistence backends. The engine matches on these codes; everything a
// backend cannot classify collapses to Transport.
package store

import (
	"net/http"

	"github.com/gatekit/gatekit/pkg/errx"
	"github.com/gatekit/gatekit/pkg/sso"
	"github.com/google/uuid"
)

var ErrRegistry = errx.NewRegistry("SSO_STORE")

var (
	CodeNotFound  = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Record not found")
	CodeConflict  = ErrRegistry.Register("CONFLICT", errx.TypeConflict, http.StatusConflict, "Record already exists")
	CodeTransport = ErrRegistry.Register("TRANSPORT", errx.TypeInternal, http.StatusInternalServerError, "Database transport failure")
	CodeMigration = ErrRegistry.Register("MIGRATION", errx.TypeInternal, http.StatusInternalServerError, "Database migration failure")
)

func ErrNotFound() *errx.Error { return ErrRegistry.New(CodeNotFound) }
func ErrConflict() *errx.Error { return ErrRegistry.New(CodeConflict) }

func ErrTransport(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeTransport, cause)
}

func ErrMigration(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeMigration, cause)
}

// IsNotFound reports whether err is a store not-found failure.
func IsNotFound(err error) bool { return errx.IsCode(err, CodeNotFound) }

// IsConflict reports whether err is a unique violation.
func IsConflict(err error) bool { return errx.IsCode(err, CodeConflict) }

// DefaultLimit applies when a list query carries no limit.
const DefaultLimit int64 = 50

// MaxLimit caps a single list page.
const MaxLimit int64 = 1000

// ClampLimit normalises a caller-supplied page size.
func ClampLimit(limit int64) int64 {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// AuditPage finalises an audit list page. Rows arrive in query order:
// descending when paging backward from created_le, ascending otherwise.
// The offset id skips rows only when it appears in the fetched set; an
// unmatched offset leaves the page intact. The returned page is always
// ascending.
func AuditPage(rows []sso.Audit, offsetID *uuid.UUID, limit int64, descending bool) []sso.Audit {
	if offsetID != nil {
		for i, row := range rows {
			if row.ID == *offsetID {
				rows = rows[i+1:]
				break
			}
		}
	}
	if int64(len(rows)) > limit {
		rows = rows[:limit]
	}
	if descending {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
	return rows
}
