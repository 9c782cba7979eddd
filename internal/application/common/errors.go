package common

import (
	"errors"
	"fmt"
)

// ServiceError represents a failed command operation with context
type ServiceError struct {
	Operation string
	Cause     error
}

// Error implements the error interface
func (e ServiceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying error
func (e ServiceError) Unwrap() error {
	return e.Cause
}

// WrapServiceError wraps an error with operation context
func WrapServiceError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return ServiceError{
		Operation: operation,
		Cause:     err,
	}
}

// Common error operations for consistent messaging
const (
	OpDownloadJobArtifact      = "download job artifact"
	OpDeleteJobArtifact        = "delete job artifact"
	OpDeleteJob                = "delete job"
	OpDispatchScan             = "dispatch scan"
	OpDownloadBlob             = "download blob file"
	OpUploadBlob               = "upload blob file"
	OpCreateRunnerRegistration = "create runner registration"
	OpCreateBhlastDomain       = "create bhlast domain"
	OpCreateFile               = "create file"
	OpOpenFile                 = "open file"
	OpWriteFile                = "write file"
	OpLoadConfig               = "load configuration"
)

// ValidationError represents invalid user input, such as a bad flag value
type ValidationError struct {
	Field   string
	Message string
	Value   string
}

// Error implements the error interface
func (e ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s: %s (value: %q)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// NewValidationErrorWithValue creates a new ValidationError with a value
func NewValidationErrorWithValue(field, message, value string) ValidationError {
	return ValidationError{Field: field, Message: message, Value: value}
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
