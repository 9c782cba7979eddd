// Package client talks to the BountyHub API and renders command results.
// It holds the HTTP client, file transfer helpers, request metrics and the
// JSON envelope written by commands run with --json.
package client

import (
	"encoding/json"
	"io"
	"time"
)

// Machine-readable error codes used in JSON error envelopes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeServerError   = "SERVER_ERROR"
	ErrCodeConnection    = "CONNECTION_ERROR"
	ErrCodeTimeout       = "TIMEOUT"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Response is the JSON envelope for command output.
// Data and Error are mutually exclusive.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *Error      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Error is the error part of a failed Response.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// WriteSuccess writes a success envelope carrying data.
func WriteSuccess(w io.Writer, data interface{}) error {
	response := Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
	return json.NewEncoder(w).Encode(response)
}

// WriteError writes an error envelope. details may be nil.
func WriteError(w io.Writer, code, message string, details interface{}) error {
	response := Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now().UTC(),
	}
	return json.NewEncoder(w).Encode(response)
}
