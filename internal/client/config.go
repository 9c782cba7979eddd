package client

import (
	"bh/internal/version"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Default configuration values.
const (
	// DefaultBaseURL is the public BountyHub endpoint.
	DefaultBaseURL = "https://bountyhub.org"

	// DefaultTimeout bounds calls to the BountyHub API.
	DefaultTimeout = 10 * time.Second

	// DefaultFileTimeout bounds transfers against presigned storage URLs.
	DefaultFileTimeout = 240 * time.Second

	// DefaultRetries is how many times idempotent GETs are retried.
	DefaultRetries = 2

	// DefaultRetryDelay is the first backoff delay between retries.
	DefaultRetryDelay = 250 * time.Millisecond

	// TokenPrefix is the prefix of every personal access token.
	TokenPrefix = "bhv"
)

// Supported URL schemes.
const (
	schemeHTTP  = "http://"
	schemeHTTPS = "https://"
)

// Config holds the client configuration for connecting to the BountyHub API.
type Config struct {
	// BaseURL is the API origin without a trailing slash (e.g., "https://bountyhub.org").
	BaseURL string

	// Token is the personal access token sent as a Bearer credential.
	Token string

	// UserAgent is sent with every request. Defaults to "bh/<version>".
	UserAgent string

	// Timeout bounds each API request.
	Timeout time.Duration

	// FileTimeout bounds each storage transfer, body included.
	FileTimeout time.Duration

	// Retries is how many times idempotent GETs are retried. Zero disables retries.
	Retries int

	// RetryDelay is the first backoff delay. Zero means DefaultRetryDelay.
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with default values and no token.
func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		UserAgent:   version.UserAgent(),
		Timeout:     DefaultTimeout,
		FileTimeout: DefaultFileTimeout,
		Retries:     DefaultRetries,
		RetryDelay:  DefaultRetryDelay,
	}
}

// Validate validates the configuration and returns an error if any field is invalid.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("invalid configuration: API URL cannot be empty")
	}

	if !strings.HasPrefix(c.BaseURL, schemeHTTP) && !strings.HasPrefix(c.BaseURL, schemeHTTPS) {
		return fmt.Errorf("invalid configuration: API URL must have http:// or https:// scheme, got %q", c.BaseURL)
	}

	if c.Token == "" {
		return errors.New("invalid configuration: token cannot be empty")
	}

	if !strings.HasPrefix(c.Token, TokenPrefix) {
		return errors.New("invalid configuration: token does not start with " + TokenPrefix)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("invalid configuration: timeout must be positive, got %v", c.Timeout)
	}

	if c.FileTimeout <= 0 {
		return fmt.Errorf("invalid configuration: file timeout must be positive, got %v", c.FileTimeout)
	}

	if c.Retries < 0 {
		return fmt.Errorf("invalid configuration: retries cannot be negative, got %d", c.Retries)
	}

	return nil
}
