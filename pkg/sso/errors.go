package sso

import (
	"net/http"

	"github.com/gatekit/gatekit/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("SSO")

var (
	CodeBadRequest   = ErrRegistry.Register("BAD_REQUEST", errx.TypeValidation, http.StatusBadRequest, "Bad request")
	CodeUnauthorized = ErrRegistry.Register("UNAUTHORIZED", errx.TypeAuthentication, http.StatusUnauthorized, "Authentication required")
	CodeForbidden    = ErrRegistry.Register("FORBIDDEN", errx.TypeAuthorization, http.StatusForbidden, "Forbidden")
	CodeNotFound     = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Resource not found")
	CodeConflict     = ErrRegistry.Register("CONFLICT", errx.TypeConflict, http.StatusConflict, "Resource already exists")
	CodeInternal     = ErrRegistry.Register("INTERNAL", errx.TypeInternal, http.StatusInternalServerError, "Internal server error")
)

func ErrBadRequest() *errx.Error   { return ErrRegistry.New(CodeBadRequest) }
func ErrUnauthorized() *errx.Error { return ErrRegistry.New(CodeUnauthorized) }
func ErrForbidden() *errx.Error    { return ErrRegistry.New(CodeForbidden) }
func ErrNotFound() *errx.Error     { return ErrRegistry.New(CodeNotFound) }
func ErrConflict() *errx.Error     { return ErrRegistry.New(CodeConflict) }

func ErrInternal(cause error) *errx.Error {
	if cause == nil {
		return ErrRegistry.New(CodeInternal)
	}
	return ErrRegistry.NewWithCause(CodeInternal, cause)
}

// IsBadRequest reports whether err carries the SSO bad request code.
func IsBadRequest(err error) bool { return errx.IsCode(err, CodeBadRequest) }

// IsForbidden reports whether err carries the SSO forbidden code.
func IsForbidden(err error) bool { return errx.IsCode(err, CodeForbidden) }

// IsNotFound reports whether err carries the SSO not found code.
func IsNotFound(err error) bool { return errx.IsCode(err, CodeNotFound) }

// IsConflict reports whether err carries the SSO conflict code.
func IsConflict(err error) bool { return errx.IsCode(err, CodeConflict) }
