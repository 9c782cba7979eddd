package commands_test

import (
	"bh/internal/application/dto"
	"bh/internal/client/commands"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

const testToken = "bhv_test_token"

// bountyHubEnv lists every variable the CLI reads, so tests start from a clean slate.
var bountyHubEnv = []string{ //nolint:gochecknoglobals // test fixture
	"BOUNTYHUB_URL", "BOUNTYHUB_TOKEN", "BOUNTYHUB_TIMEOUT", "BOUNTYHUB_FILE_TIMEOUT",
	"BOUNTYHUB_RETRIES", "BOUNTYHUB_JSON", "BOUNTYHUB_LOG_LEVEL", "BOUNTYHUB_LOG_FORMAT",
	"BOUNTYHUB_JOB_ID", "BOUNTYHUB_JOB_ARTIFACT_NAME", "BOUNTYHUB_OUTPUT",
	"BOUNTYHUB_WORKFLOW_ID", "BOUNTYHUB_SCAN_NAME",
}

// isolateEnv clears BOUNTYHUB_* variables, points the user config dir at an
// empty directory and runs the test from a temp working directory.
func isolateEnv(t *testing.T) string {
	t.Helper()

	for _, k := range bountyHubEnv {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	wd := t.TempDir()
	t.Chdir(wd)
	return wd
}

type result struct {
	stdout string
	stderr string
	code   int
}

func run(t *testing.T, args ...string) result {
	t.Helper()

	var stdout, stderr bytes.Buffer
	code := commands.Execute(context.Background(), args, &stdout, &stderr)
	return result{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

// fakeBountyHub serves the BountyHub API and a presigned storage backend.
type fakeBountyHub struct {
	srv *httptest.Server

	mu               sync.Mutex
	artifacts        map[string][]byte
	blobs            map[string][]byte
	uploads          map[string][]byte
	deletedJobs      []string
	deletedArtifacts []string
	dispatches       []map[string]interface{}
	authHeaders      []string
	registration     dto.RunnerRegistrationResponse
	domainID         string

	// status, when set, is returned by every API call.
	status  int
	message string
}

// newFakeBountyHub starts the fake server and points the CLI at it.
func newFakeBountyHub(t *testing.T) *fakeBountyHub {
	t.Helper()
	isolateEnv(t)

	f := &fakeBountyHub{
		artifacts:    map[string][]byte{},
		blobs:        map[string][]byte{},
		uploads:      map[string][]byte{},
		registration: dto.RunnerRegistrationResponse{URL: "https://bountyhub.org", Token: "reg_123"},
		domainID:     "0190c3a4-0000-7000-8000-000000000001",
	}

	r := chi.NewRouter()
	r.Route("/api/v0", func(r chi.Router) {
		r.Use(f.apiMiddleware)

		r.Get("/workflows/jobs/{jobID}/artifacts/{name}", f.getArtifact)
		r.Delete("/workflows/jobs/{jobID}/artifacts/{name}", f.deleteArtifact)
		r.Delete("/workflows/jobs/{jobID}", f.deleteJob)
		r.Post("/workflows/{workflowID}/scans/dispatch", f.dispatchScan)
		r.Post("/blobs/files", f.createBlobFile)
		r.Get("/blobs/{path}", f.getBlob)
		r.Post("/runner-registrations", f.createRunnerRegistration)
		r.Post("/bhlast/domains", f.createBhlastDomain)
	})
	r.Get("/storage/artifacts/{name}", f.serveFile(f.artifacts))
	r.Get("/storage/blobs/{path}", f.serveFile(f.blobs))
	r.Put("/storage/uploads/{path}", f.receiveUpload)

	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)

	t.Setenv("BOUNTYHUB_URL", f.srv.URL)
	t.Setenv("BOUNTYHUB_TOKEN", testToken)
	t.Setenv("BOUNTYHUB_RETRIES", "0")
	return f
}

func (f *fakeBountyHub) failWith(status int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.message = message
}

func (f *fakeBountyHub) apiMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
		status, message := f.status, f.message
		f.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, dto.ErrorResponse{Error: message})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func param(r *http.Request, name string) string {
	v, err := url.PathUnescape(chi.URLParam(r, name))
	if err != nil {
		return chi.URLParam(r, name)
	}
	return v
}

func (f *fakeBountyHub) getArtifact(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")

	f.mu.Lock()
	_, ok := f.artifacts[name]
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "artifact not found"})
		return
	}
	writeJSON(w, http.StatusOK, dto.URLResponse{URL: f.srv.URL + "/storage/artifacts/" + url.PathEscape(name) + "?sig=abc"})
}

func (f *fakeBountyHub) deleteArtifact(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.deletedArtifacts = append(f.deletedArtifacts, chi.URLParam(r, "jobID")+"/"+param(r, "name"))
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeBountyHub) deleteJob(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.deletedJobs = append(f.deletedJobs, chi.URLParam(r, "jobID"))
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeBountyHub) dispatchScan(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	body["workflowId"] = chi.URLParam(r, "workflowID")

	f.mu.Lock()
	f.dispatches = append(f.dispatches, body)
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *fakeBountyHub) getBlob(w http.ResponseWriter, r *http.Request) {
	path := param(r, "path")

	f.mu.Lock()
	_, ok := f.blobs[path]
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "blob not found"})
		return
	}
	writeJSON(w, http.StatusOK, dto.URLResponse{URL: f.srv.URL + "/storage/blobs/" + url.PathEscape(path)})
}

func (f *fakeBountyHub) createBlobFile(w http.ResponseWriter, r *http.Request) {
	var body dto.UploadBlobFileRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Path == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "path is required"})
		return
	}
	writeJSON(w, http.StatusOK, dto.URLResponse{URL: f.srv.URL + "/storage/uploads/" + url.PathEscape(body.Path)})
}

func (f *fakeBountyHub) createRunnerRegistration(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, f.registration)
}

func (f *fakeBountyHub) createBhlastDomain(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, dto.CreatedResponse{ID: f.domainID})
}

func (f *fakeBountyHub) serveFile(files map[string][]byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := param(r, "name")
		if name == "" {
			name = param(r, "path")
		}

		f.mu.Lock()
		data, ok := files[name]
		f.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)
	}
}

func (f *fakeBountyHub) receiveUpload(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "" || r.ContentLength < 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	data, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.uploads[param(r, "path")] = data
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
