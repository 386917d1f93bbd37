package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"ingestcore/internal/artifactstore"
	"ingestcore/internal/ingestmodel"
	"ingestcore/internal/jobs"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	backend := jobs.NewMemoryBackend()
	store, err := artifactstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	repos := map[string]jobs.Repository{
		"ingest": backend.Repository("ingest"),
		"prune":  backend.Repository("prune"),
	}
	return NewServer(repos, store, []string{".md"}, "")
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestEnqueueJobEndpointRejectsUnknownQueue(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/jobs", enqueueRequest{
		Queue: "nope",
		Type:  ingestmodel.JobTypeIngest,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnqueueJobEndpointRejectsUnknownType(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/jobs", enqueueRequest{
		Queue: "ingest",
		Type:  "carrier_pigeon",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnqueueGetCancelRetryJobLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/jobs", enqueueRequest{
		Queue: "ingest",
		Type:  ingestmodel.JobTypeIngest,
		Payload: map[string]any{
			"sources": []map[string]any{
				{"type": "local_dir", "path": t.TempDir()},
			},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created ingestmodel.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created.ID)
	require.Equal(t, ingestmodel.JobStatusPending, created.Status)

	getRec := doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, getRec.Code)
	var fetched ingestmodel.Job
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &fetched))
	require.Equal(t, created.ID, fetched.ID)

	cancelRec := doRequest(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/jobs/%d/cancel", created.ID), nil)
	require.Equal(t, http.StatusOK, cancelRec.Code)

	retryRec := doRequest(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/jobs/%d/retry", created.ID), nil)
	require.Equal(t, http.StatusOK, retryRec.Code)

	afterRec := doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d", created.ID), nil)
	var after ingestmodel.Job
	require.NoError(t, json.Unmarshal(afterRec.Body.Bytes(), &after))
	require.Equal(t, ingestmodel.JobStatusPending, after.Status)
}

func TestGetJobEndpointReturnsNotFoundForUnknownID(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/v1/jobs/999999", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListJobsEndpointScopesToQueue(t *testing.T) {
	srv := newTestServer(t)
	doRequest(t, srv, http.MethodPost, "/api/v1/jobs", enqueueRequest{Queue: "ingest", Type: ingestmodel.JobTypeIngest})
	doRequest(t, srv, http.MethodPost, "/api/v1/jobs", enqueueRequest{Queue: "prune", Type: ingestmodel.JobTypePrune, Payload: map[string]any{
		"prune_scope": map[string]any{"metadata_repo_in": []string{"R"}},
	}})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/jobs?queue=ingest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Jobs []ingestmodel.Job `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Jobs, 1)
	require.Equal(t, ingestmodel.JobTypeIngest, out.Jobs[0].Type)
}

func TestCreateManifestEndpointPersistsAndReturnsKey(t *testing.T) {
	srv := newTestServer(t)
	manifest := ingestmodel.NewManifest([]ingestmodel.Item{
		ingestmodel.NewItem("doc-1", "hello world", nil),
	})

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/manifests", manifest)
	require.Equal(t, http.StatusCreated, rec.Code)

	var out struct {
		ArtifactKey string `json:"artifact_key"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.ArtifactKey)
}

func TestHealthzEndpointReturnsOK(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
