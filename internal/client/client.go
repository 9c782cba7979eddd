package client

import (
	"bh/internal/application/common/logging"
	"bh/internal/application/common/retry"
	"bh/internal/application/common/slogger"
	"bh/internal/application/dto"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// contentTypeJSON is the Content-Type header value for JSON requests.
	contentTypeJSON = "application/json"

	// logComponent names the client in log entries.
	logComponent = "client"

	// headerCorrelationID carries the invocation's correlation ID to the API.
	headerCorrelationID = "X-Correlation-ID"

	// API endpoint paths.
	pathWorkflows           = "/api/v0/workflows"
	pathBlobs               = "/api/v0/blobs"
	pathBlobFiles           = "/api/v0/blobs/files"
	pathRunnerRegistrations = "/api/v0/runner-registrations"
	pathBhlastDomains       = "/api/v0/bhlast/domains"
)

// emptyObject is sent as the body of POSTs that take no parameters.
var emptyObject = struct{}{} //nolint:gochecknoglobals // immutable request body

// Client provides methods for interacting with the BountyHub API.
// API calls carry the bearer token. Transfers against presigned storage
// URLs use a separate HTTP client with a longer timeout and no credentials.
type Client struct {
	baseURL       string
	authorization string
	userAgent     string
	apiClient     *http.Client
	fileClient    *http.Client
	retryConfig   *retry.RetryConfig
	metrics       *RequestMetrics
	logger        logging.ApplicationLogger
}

// NewClient creates a new API client with the given configuration.
// Returns an error if the configuration is nil or invalid.
func NewClient(config *Config) (*Client, error) {
	return NewClientWithMetrics(config, nil)
}

// NewClientWithMetrics creates a new API client whose requests are recorded
// on metrics. A nil metrics disables instrumentation.
func NewClientWithMetrics(config *Config, metrics *RequestMetrics) (*Client, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = DefaultConfig().UserAgent
	}

	retryDelay := config.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	return &Client{
		baseURL:       strings.TrimRight(config.BaseURL, "/"),
		authorization: "Bearer " + config.Token,
		userAgent:     userAgent,
		apiClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: metrics.Transport(http.DefaultTransport, TargetAPI),
		},
		fileClient: &http.Client{
			Timeout:   config.FileTimeout,
			Transport: metrics.Transport(http.DefaultTransport, TargetFile),
		},
		retryConfig: &retry.RetryConfig{
			MaxRetries:    config.Retries,
			InitialDelay:  retryDelay,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2.0,
			Jitter:        true,
		},
		metrics: metrics,
		logger:  slogger.WithComponent(logComponent),
	}, nil
}

// doRequest performs an authenticated API request and decodes the response.
// If body is non-nil, it is JSON-encoded. If result is non-nil, the response
// body is JSON-decoded into it. GET requests are retried on transient failures.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	do := func(ctx context.Context) error {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return err
		}

		req.Header.Set("Authorization", c.authorization)
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", contentTypeJSON)
		if payload != nil {
			req.Header.Set("Content-Type", contentTypeJSON)
		}
		if id := logging.CorrelationIDFromContext(ctx); id != "" {
			req.Header.Set(headerCorrelationID, id)
		}

		start := time.Now()
		resp, err := c.apiClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		c.logger.Debug(ctx, "API request completed", slogger.Fields{
			"method":      method,
			"path":        path,
			"status_code": resp.StatusCode,
			"duration_ms": time.Since(start).Milliseconds(),
		})

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return newAPIError(resp)
		}

		if result != nil {
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			return nil
		}

		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if method != http.MethodGet {
		return do(ctx)
	}
	return retry.WithRetryAndChecker(ctx, c.retryConfig, httpRetryChecker{}, do)
}

// presignedURL asks the API for a storage URL and checks that one was returned.
func (c *Client) presignedURL(ctx context.Context, method, path string, body interface{}) (string, error) {
	var result dto.URLResponse
	if err := c.doRequest(ctx, method, path, body, &result); err != nil {
		return "", err
	}
	if result.URL == "" {
		return "", errors.New("API response did not contain a url")
	}
	return result.URL, nil
}

// openFile starts a GET against a presigned URL and returns the response body.
// Retries stop once response headers have been received.
func (c *Client) openFile(ctx context.Context, fileURL string) (io.ReadCloser, error) {
	var body io.ReadCloser

	err := retry.WithRetryAndChecker(ctx, c.retryConfig, httpRetryChecker{}, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.fileClient.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			defer resp.Body.Close()
			return newAPIError(resp)
		}

		body = resp.Body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// DownloadJobArtifact resolves the storage URL of a job artifact and opens it.
// The caller must close the returned reader.
func (c *Client) DownloadJobArtifact(ctx context.Context, jobID uuid.UUID, name string) (io.ReadCloser, error) {
	fileURL, err := c.presignedURL(ctx, http.MethodGet, artifactPath(jobID, name), nil)
	if err != nil {
		return nil, err
	}
	return c.openFile(ctx, fileURL)
}

// DeleteJobArtifact deletes a single artifact uploaded by a job.
func (c *Client) DeleteJobArtifact(ctx context.Context, jobID uuid.UUID, name string) error {
	return c.doRequest(ctx, http.MethodDelete, artifactPath(jobID, name), nil, nil)
}

// DeleteJob deletes a job.
func (c *Client) DeleteJob(ctx context.Context, jobID uuid.UUID) error {
	return c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("%s/jobs/%s", pathWorkflows, jobID), nil, nil)
}

// DispatchScan dispatches scanName from the latest revision of the workflow.
// A nil inputs map is sent as "inputs": null.
func (c *Client) DispatchScan(
	ctx context.Context,
	workflowID uuid.UUID,
	scanName string,
	inputs map[string]any,
) error {
	path := fmt.Sprintf("%s/%s/scans/dispatch", pathWorkflows, workflowID)
	return c.doRequest(ctx, http.MethodPost, path, dto.DispatchScanRequest{
		ScanName: scanName,
		Inputs:   inputs,
	}, nil)
}

// DownloadBlobFile resolves the storage URL of a blob and opens it.
// The caller must close the returned reader.
func (c *Client) DownloadBlobFile(ctx context.Context, blobPath string) (io.ReadCloser, error) {
	fileURL, err := c.presignedURL(ctx, http.MethodGet, pathBlobs+"/"+url.PathEscape(blobPath), nil)
	if err != nil {
		return nil, err
	}
	return c.openFile(ctx, fileURL)
}

// UploadBlobFile asks the API for an upload URL for dst and streams size
// bytes from r to it. Storage backends reject chunked uploads, so the
// length is always sent.
func (c *Client) UploadBlobFile(ctx context.Context, r io.Reader, size int64, dst string) error {
	fileURL, err := c.presignedURL(ctx, http.MethodPost, pathBlobFiles, dto.UploadBlobFileRequest{Path: dst})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, fileURL, r)
	if err != nil {
		return err
	}
	req.ContentLength = size
	if size == 0 {
		req.Body = http.NoBody
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.fileClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// CreateRunnerRegistration creates a runner registration token.
func (c *Client) CreateRunnerRegistration(ctx context.Context) (*dto.RunnerRegistrationResponse, error) {
	var result dto.RunnerRegistrationResponse
	if err := c.doRequest(ctx, http.MethodPost, pathRunnerRegistrations, emptyObject, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateBhlastDomain creates a bhlast domain and returns its ID.
func (c *Client) CreateBhlastDomain(ctx context.Context) (string, error) {
	var result dto.CreatedResponse
	if err := c.doRequest(ctx, http.MethodPost, pathBhlastDomains, emptyObject, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

func artifactPath(jobID uuid.UUID, name string) string {
	return fmt.Sprintf("%s/jobs/%s/artifacts/%s", pathWorkflows, jobID, url.PathEscape(name))
}
