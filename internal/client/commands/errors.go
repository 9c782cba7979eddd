package commands

import (
	"bh/internal/application/common"
	"bh/internal/client"
	"bh/internal/config"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

// Process exit codes.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitUsage        = 2
	ExitUnauthorized = 3
	ExitNotFound     = 4
	ExitConflict     = 5
)

// UsageError reports a missing or malformed command-line argument.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string {
	return e.Err.Error()
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

func usageErrorf(format string, args ...interface{}) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

// messageError replaces the message of err while keeping it matchable.
type messageError struct {
	msg string
	err error
}

func (e *messageError) Error() string { return e.msg }

func (e *messageError) Unwrap() error { return e.err }

func withMessage(err error, msg string) error {
	return &messageError{msg: msg, err: err}
}

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	var usage *UsageError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &usage), common.IsValidationError(err):
		return ExitUsage
	case errors.Is(err, client.ErrUnauthorized),
		errors.Is(err, client.ErrForbidden),
		errors.Is(err, config.ErrMissingToken),
		errors.Is(err, config.ErrInvalidTokenFormat):
		return ExitUnauthorized
	case errors.Is(err, client.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, client.ErrConflict):
		return ExitConflict
	default:
		return ExitFailure
	}
}

// errorCode classifies err for the JSON error envelope.
func errorCode(err error) string {
	var (
		usage  *UsageError
		apiErr *client.APIError
		netErr net.Error
		opErr  *net.OpError
	)

	switch {
	case errors.As(err, &usage), common.IsValidationError(err):
		return client.ErrCodeInvalidInput
	case errors.Is(err, client.ErrUnauthorized),
		errors.Is(err, config.ErrMissingToken),
		errors.Is(err, config.ErrInvalidTokenFormat):
		return client.ErrCodeUnauthorized
	case errors.Is(err, client.ErrForbidden):
		return client.ErrCodeForbidden
	case errors.Is(err, client.ErrNotFound):
		return client.ErrCodeNotFound
	case errors.Is(err, client.ErrConflict):
		return client.ErrCodeConflict
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return client.ErrCodeTimeout
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 500:
		return client.ErrCodeServerError
	case errors.As(err, &opErr):
		return client.ErrCodeConnection
	default:
		return client.ErrCodeInternalError
	}
}

// renderError writes err to stdout as a JSON envelope, or to stderr as
// "Error: <message>" in plain mode.
func renderError(stdout, stderr io.Writer, jsonOutput bool, err error) {
	if jsonOutput {
		_ = client.WriteError(stdout, errorCode(err), err.Error(), nil)
		return
	}
	_, _ = fmt.Fprintf(stderr, "Error: %s\n", err)
}

// isCobraUsageError reports whether err came from cobra's own argument handling.
func isCobraUsageError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "accepts ") ||
		strings.HasPrefix(msg, "requires at least") ||
		strings.HasPrefix(msg, "invalid argument")
}
