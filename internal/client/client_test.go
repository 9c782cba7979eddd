package client_test

import (
	"bh/internal/application/common/logging"
	"bh/internal/application/dto"
	"bh/internal/client"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "bhv_test_token"

func testConfig(baseURL string) *client.Config {
	return &client.Config{
		BaseURL:     baseURL,
		Token:       testToken,
		UserAgent:   "bh/test",
		Timeout:     5 * time.Second,
		FileTimeout: 5 * time.Second,
		Retries:     2,
		RetryDelay:  time.Millisecond,
	}
}

func newTestClient(t *testing.T, router http.Handler) (*client.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	c, err := client.NewClient(testConfig(srv.URL))
	require.NoError(t, err)
	return c, srv
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_NilConfig(t *testing.T) {
	t.Parallel()

	c, err := client.NewClient(nil)

	require.Error(t, err)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "config cannot be nil")
}

func TestNewClient_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*client.Config)
		errMsg string
	}{
		{name: "empty URL", mutate: func(c *client.Config) { c.BaseURL = "" }, errMsg: "API URL cannot be empty"},
		{name: "bad scheme", mutate: func(c *client.Config) { c.BaseURL = "ftp://x" }, errMsg: "http:// or https:// scheme"},
		{name: "missing token", mutate: func(c *client.Config) { c.Token = "" }, errMsg: "token cannot be empty"},
		{name: "foreign token", mutate: func(c *client.Config) { c.Token = "ghp_123" }, errMsg: "does not start with bhv"},
		{name: "zero timeout", mutate: func(c *client.Config) { c.Timeout = 0 }, errMsg: "timeout must be positive"},
		{name: "zero file timeout", mutate: func(c *client.Config) { c.FileTimeout = 0 }, errMsg: "file timeout must be positive"},
		{name: "negative retries", mutate: func(c *client.Config) { c.Retries = -1 }, errMsg: "retries cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig("http://localhost:8080")
			tt.mutate(cfg)

			c, err := client.NewClient(cfg)

			require.Error(t, err)
			assert.Nil(t, c)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestClient_DeleteJob_SendsHeaders(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	var got http.Header

	r := chi.NewRouter()
	r.Delete("/api/v0/workflows/jobs/{jobID}", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, jobID.String(), chi.URLParam(req, "jobID"))
		got = req.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	})
	c, _ := newTestClient(t, r)

	ctx := logging.WithCorrelationID(context.Background(), "corr-123")
	require.NoError(t, c.DeleteJob(ctx, jobID))

	assert.Equal(t, "Bearer "+testToken, got.Get("Authorization"))
	assert.Equal(t, "bh/test", got.Get("User-Agent"))
	assert.Equal(t, "corr-123", got.Get("X-Correlation-ID"))
}

func TestClient_DeleteJobArtifact(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	var deleted string

	r := chi.NewRouter()
	r.Delete("/api/v0/workflows/jobs/{jobID}/artifacts/{name}", func(w http.ResponseWriter, req *http.Request) {
		deleted, _ = url.PathUnescape(chi.URLParam(req, "name"))
		w.WriteHeader(http.StatusOK)
	})
	c, _ := newTestClient(t, r)

	require.NoError(t, c.DeleteJobArtifact(context.Background(), jobID, "report final.zip"))
	assert.Equal(t, "report final.zip", deleted)
}

func TestClient_DispatchScan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		inputs map[string]any
		want   string
	}{
		{
			name: "no inputs are sent as null",
			want: `{"scanName":"example","inputs":null}`,
		},
		{
			name:   "string and bool inputs",
			inputs: map[string]any{"deep": true, "target": "example.com"},
			want:   `{"scanName":"example","inputs":{"deep":true,"target":"example.com"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			workflowID := uuid.New()
			var body []byte

			r := chi.NewRouter()
			r.Post("/api/v0/workflows/{workflowID}/scans/dispatch", func(w http.ResponseWriter, req *http.Request) {
				assert.Equal(t, workflowID.String(), chi.URLParam(req, "workflowID"))
				assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
				body, _ = io.ReadAll(req.Body)
				w.WriteHeader(http.StatusOK)
			})
			c, _ := newTestClient(t, r)

			require.NoError(t, c.DispatchScan(context.Background(), workflowID, "example", tt.inputs))
			assert.JSONEq(t, tt.want, string(body))
		})
	}
}

func TestClient_DownloadJobArtifact(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	var storageAuth atomic.Value

	r := chi.NewRouter()
	var srvURL string
	r.Get("/api/v0/workflows/jobs/{jobID}/artifacts/{name}", func(w http.ResponseWriter, req *http.Request) {
		name, _ := url.PathUnescape(chi.URLParam(req, "name"))
		assert.Equal(t, "output.zip", name)
		writeJSON(w, http.StatusOK, dto.URLResponse{URL: srvURL + "/storage/artifact?sig=secret"})
	})
	r.Get("/storage/artifact", func(w http.ResponseWriter, req *http.Request) {
		storageAuth.Store(req.Header.Get("Authorization"))
		_, _ = w.Write([]byte("artifact-bytes"))
	})
	c, srv := newTestClient(t, r)
	srvURL = srv.URL

	body, err := c.DownloadJobArtifact(context.Background(), jobID, "output.zip")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "artifact-bytes", string(data))
	assert.Empty(t, storageAuth.Load(), "storage requests must not carry the API token")
}

func TestClient_DownloadBlobFile_EscapesPath(t *testing.T) {
	t.Parallel()

	var requested string

	r := chi.NewRouter()
	var srvURL string
	r.Get("/api/v0/blobs/{path}", func(w http.ResponseWriter, req *http.Request) {
		requested, _ = url.PathUnescape(chi.URLParam(req, "path"))
		writeJSON(w, http.StatusOK, dto.URLResponse{URL: srvURL + "/storage/blob"})
	})
	r.Get("/storage/blob", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("blob-bytes"))
	})
	c, srv := newTestClient(t, r)
	srvURL = srv.URL

	body, err := c.DownloadBlobFile(context.Background(), "results/dir/file.txt")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "blob-bytes", string(data))
	assert.Equal(t, "results/dir/file.txt", requested)
}

func TestClient_UploadBlobFile(t *testing.T) {
	t.Parallel()

	var (
		requestedPath string
		uploaded      []byte
		contentLength int64
		uploadAuth    string
	)

	r := chi.NewRouter()
	var srvURL string
	r.Post("/api/v0/blobs/files", func(w http.ResponseWriter, req *http.Request) {
		var body dto.UploadBlobFileRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		requestedPath = body.Path
		writeJSON(w, http.StatusOK, dto.URLResponse{URL: srvURL + "/storage/upload"})
	})
	r.Put("/storage/upload", func(w http.ResponseWriter, req *http.Request) {
		contentLength = req.ContentLength
		uploadAuth = req.Header.Get("Authorization")
		uploaded, _ = io.ReadAll(req.Body)
		w.WriteHeader(http.StatusOK)
	})
	c, srv := newTestClient(t, r)
	srvURL = srv.URL

	payload := "hello blob"
	err := c.UploadBlobFile(context.Background(), strings.NewReader(payload), int64(len(payload)), "uploads/hello.txt")

	require.NoError(t, err)
	assert.Equal(t, "uploads/hello.txt", requestedPath)
	assert.Equal(t, payload, string(uploaded))
	assert.Equal(t, int64(len(payload)), contentLength)
	assert.Empty(t, uploadAuth)
}

func TestClient_UploadBlobFile_StorageRejects(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	var srvURL string
	r.Post("/api/v0/blobs/files", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, dto.URLResponse{URL: srvURL + "/storage/upload"})
	})
	r.Put("/storage/upload", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	c, srv := newTestClient(t, r)
	srvURL = srv.URL

	err := c.UploadBlobFile(context.Background(), strings.NewReader("x"), 1, "f")
	assert.ErrorIs(t, err, client.ErrForbidden)
}

func TestClient_CreateRunnerRegistration(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Post("/api/v0/runner-registrations", func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		assert.JSONEq(t, `{}`, string(body))
		writeJSON(w, http.StatusCreated, dto.RunnerRegistrationResponse{URL: "https://bountyhub.org", Token: "reg-token"})
	})
	c, _ := newTestClient(t, r)

	reg, err := c.CreateRunnerRegistration(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "https://bountyhub.org", reg.URL)
	assert.Equal(t, "reg-token", reg.Token)
}

func TestClient_CreateBhlastDomain(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Post("/api/v0/bhlast/domains", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, dto.CreatedResponse{ID: "dom-42"})
	})
	c, _ := newTestClient(t, r)

	id, err := c.CreateBhlastDomain(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "dom-42", id)
}

func TestClient_APIErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		message  string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, sentinel: client.ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, body: `{"error":"limit reached"}`, sentinel: client.ErrForbidden, message: "limit reached"},
		{name: "not found", status: http.StatusNotFound, body: `{"message":"job not found"}`, sentinel: client.ErrNotFound, message: "job not found"},
		{name: "conflict", status: http.StatusConflict, body: "already deleted", sentinel: client.ErrConflict, message: "already deleted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := chi.NewRouter()
			r.Delete("/api/v0/workflows/jobs/{jobID}", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			c, _ := newTestClient(t, r)

			err := c.DeleteJob(context.Background(), uuid.New())

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var apiErr *client.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, http.MethodDelete, apiErr.Method)
			assert.Equal(t, tt.message, apiErr.Message)
		})
	}
}

func TestClient_APIError_StripsQuery(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	var srvURL string
	r.Get("/api/v0/blobs/{path}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, dto.URLResponse{URL: srvURL + "/storage/blob?X-Signature=secret"})
	})
	r.Get("/storage/blob", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	c, srv := newTestClient(t, r)
	srvURL = srv.URL

	_, err := c.DownloadBlobFile(context.Background(), "missing.txt")

	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.NotContains(t, apiErr.URL, "secret")
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestClient_MissingPresignedURL(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Get("/api/v0/blobs/{path}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	})
	c, _ := newTestClient(t, r)

	_, err := c.DownloadBlobFile(context.Background(), "file.txt")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not contain a url")
}

func TestClient_RetriesTransientGETs(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := chi.NewRouter()
	var srvURL string
	r.Get("/api/v0/blobs/{path}", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, dto.URLResponse{URL: srvURL + "/storage/blob"})
	})
	r.Get("/storage/blob", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	c, srv := newTestClient(t, r)
	srvURL = srv.URL

	body, err := c.DownloadBlobFile(context.Background(), "file.txt")
	require.NoError(t, err)
	_ = body.Close()
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := chi.NewRouter()
	r.Get("/api/v0/blobs/{path}", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	c, _ := newTestClient(t, r)

	_, err := c.DownloadBlobFile(context.Background(), "file.txt")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_DoesNotRetryNotFoundOrPosts(t *testing.T) {
	t.Parallel()

	var gets, posts atomic.Int32
	r := chi.NewRouter()
	r.Get("/api/v0/workflows/jobs/{jobID}/artifacts/{name}", func(w http.ResponseWriter, _ *http.Request) {
		gets.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	r.Post("/api/v0/runner-registrations", func(w http.ResponseWriter, _ *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	c, _ := newTestClient(t, r)

	_, err := c.DownloadJobArtifact(context.Background(), uuid.New(), "a")
	assert.ErrorIs(t, err, client.ErrNotFound)

	_, err = c.CreateRunnerRegistration(context.Background())
	require.Error(t, err)

	assert.Equal(t, int32(1), gets.Load())
	assert.Equal(t, int32(1), posts.Load())
}
