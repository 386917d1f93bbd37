// Package httpapi implements the reference front-end surface for the
// external interface spec.md §6 describes as contract-only (C11): enqueue,
// list, get, cancel, retry for jobs, and a manifest pre-materialization
// endpoint, following the teacher's internal/httpapi net/http ServeMux
// routing style (method+pattern routes, JSON request/response helpers).
package httpapi

import (
	"net/http"

	"ingestcore/internal/artifactstore"
	"ingestcore/internal/jobs"
)

// Server exposes the job and manifest HTTP endpoints. Jobs is keyed by
// queue name; a request's "queue" field selects which Repository handles
// the enqueue, while get/cancel/retry scan every repository for the id
// (all repositories share the id space in both the memory and postgres
// backends), and list returns one queue's jobs when ?queue is given and
// every repository's jobs otherwise.
type Server struct {
	Jobs        map[string]jobs.Repository
	Artifacts   artifactstore.Store
	DefaultExts []string
	GitHubToken string

	mux *http.ServeMux
}

// NewServer wires a Server and registers its routes.
func NewServer(jobRepos map[string]jobs.Repository, artifacts artifactstore.Store, defaultExts []string, githubToken string) *Server {
	s := &Server{Jobs: jobRepos, Artifacts: artifacts, DefaultExts: defaultExts, GitHubToken: githubToken, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/v1/jobs", s.handleEnqueueJob)
	s.mux.HandleFunc("GET /api/v1/jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /api/v1/jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("POST /api/v1/jobs/{id}/cancel", s.handleCancelJob)
	s.mux.HandleFunc("POST /api/v1/jobs/{id}/retry", s.handleRetryJob)
	s.mux.HandleFunc("POST /api/v1/manifests", s.handleCreateManifest)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
}

// findJob scans every repository for the given id, since clients don't
// know (or care) which queue a job landed on.
func (s *Server) findJob(r *http.Request, id int64) (jobs.Repository, bool) {
	for _, repo := range s.Jobs {
		if _, ok, err := repo.Get(r.Context(), id); err == nil && ok {
			return repo, true
		}
	}
	return nil, false
}
