package client

import (
	"bh/internal/application/common/retry"
	"bh/internal/application/dto"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Sentinel errors matched by *APIError through errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 4096

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Method     string
	// URL has its query string removed so presigned signatures never end up in messages.
	URL     string
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("API request failed: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is maps well-known status codes to the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

// Temporary reports whether repeating the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// newAPIError builds an APIError from resp, consuming part of its body.
func newAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if resp.Request != nil {
		apiErr.Method = resp.Request.Method
		u := *resp.Request.URL
		u.RawQuery = ""
		apiErr.URL = u.String()
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(body) == 0 {
		return apiErr
	}

	var errResp dto.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Text() != "" {
		apiErr.Message = errResp.Text()
		return apiErr
	}

	text := strings.TrimSpace(string(body))
	if !strings.HasPrefix(text, "<") && len(text) <= 200 {
		apiErr.Message = text
	}
	return apiErr
}

// httpRetryChecker retries transport failures, 429 and 5xx responses.
type httpRetryChecker struct{}

func (httpRetryChecker) IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return (&retry.DefaultRetryableChecker{}).IsRetryable(err)
}
