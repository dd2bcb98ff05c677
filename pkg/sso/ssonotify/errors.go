package ssonotify

import (
	"net/http"

	"github.com/gatekit/gatekit/pkg/errx"
)

var ssonotifyErrors = errx.NewRegistry("SSO_NOTIFY")

var (
	// ErrQueueFull indicates the dispatch queue rejected a message.
	ErrQueueFull = ssonotifyErrors.Register("QUEUE_FULL", errx.TypeInternal, http.StatusInternalServerError, "Notification queue is full")

	// ErrQueueClosed indicates the queue backend is gone.
	ErrQueueClosed = ssonotifyErrors.Register("QUEUE_CLOSED", errx.TypeInternal, http.StatusInternalServerError, "Notification queue is closed")

	// ErrEncode indicates a message could not be serialized.
	ErrEncode = ssonotifyErrors.Register("ENCODE", errx.TypeInternal, http.StatusInternalServerError, "Failed to encode notification")
)
