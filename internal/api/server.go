// Package api serves the state of a job tree over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"benchtree/internal/core"
	"benchtree/internal/inspect"
	"benchtree/internal/ledger"
	"benchtree/internal/logging"
	"benchtree/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// JobSummary is the list view of a job.
type JobSummary struct {
	ID        string `json:"id"`
	Operation string `json:"operation,omitempty"`
	State     string `json:"state"`
	IsBase    bool   `json:"is_base,omitempty"`
	BaseID    string `json:"base_id,omitempty"`
	View      string `json:"view,omitempty"`
	Steps     int    `json:"steps"`
}

// JobDetail is a job with its statepoint and document.
type JobDetail struct {
	JobSummary
	Statepoint storage.Statepoint `json:"statepoint"`
	Document   *storage.Document  `json:"document"`
}

type LogStatus struct {
	Path     string   `json:"path"`
	Campaign string   `json:"campaign"`
	Tags     []string `json:"tags"`
	Success  bool     `json:"success"`
}

type Server struct {
	project *storage.Project
	ledger  *ledger.Ledger
	// solver is the solver application whose log /jobs/{id}/log returns.
	solver  string
	logRoot string
	logOpts inspect.DiscoverOptions
	logger  *logging.Logger
}

type Options struct {
	Ledger  *ledger.Ledger
	Solver  string
	LogRoot string
	LogOpts inspect.DiscoverOptions
}

func NewServer(project *storage.Project, opts Options, logger *logging.Logger) *Server {
	return &Server{
		project: project.Canonical(),
		ledger:  opts.Ledger,
		solver:  opts.Solver,
		logRoot: opts.LogRoot,
		logOpts: opts.LogOpts,
		logger:  logging.OrNop(logger),
	}
}

// Routes returns the HTTP handler of the server.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/status", s.handleStatus)
	r.Get("/jobs", s.handleListJobs)
	r.Route("/jobs/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetJob)
		r.Get("/history", s.handleGetHistory)
		r.Get("/log", s.handleGetLog)
		r.Post("/merge", s.handleMergeJob)
	})
	r.Get("/logs", s.handleListLogs)
	r.Get("/ledger/verify", s.handleVerifyLedger)
	return r
}

// GET /status counts jobs per state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.project.Jobs()
	if err != nil {
		s.fail(w, "cannot list jobs", err, http.StatusInternalServerError)
		return
	}
	counts := make(map[string]int)
	for _, j := range jobs {
		state := j.Doc.State
		if state == "" {
			state = "pending"
		}
		counts[state]++
	}
	writeJSON(w, map[string]any{"jobs": len(jobs), "states": counts})
}

// GET /jobs?state=&operation=
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.project.Jobs()
	if err != nil {
		s.fail(w, "cannot list jobs", err, http.StatusInternalServerError)
		return
	}
	view, err := core.ReadView(s.project.ViewDir())
	if err != nil {
		s.logger.Warn("cannot read view", "error", err)
	}

	state := r.URL.Query().Get("state")
	operation := r.URL.Query().Get("operation")
	out := make([]JobSummary, 0, len(jobs))
	for _, j := range jobs {
		if state != "" && j.Doc.State != state {
			continue
		}
		if operation != "" && j.Operation() != operation {
			continue
		}
		out = append(out, summarize(j, view))
	}
	writeJSON(w, out)
}

// GET /jobs/{id}
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.job(w, r)
	if !ok {
		return
	}
	view, _ := core.ReadView(s.project.ViewDir())
	writeJSON(w, JobDetail{
		JobSummary: summarize(job, view),
		Statepoint: job.Statepoint,
		Document:   job.Doc,
	})
}

// GET /jobs/{id}/history
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	job, ok := s.job(w, r)
	if !ok {
		return
	}
	writeJSON(w, job.Doc.History)
}

// GET /jobs/{id}/log returns the latest solver log of the job as text.
func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	job, ok := s.job(w, r)
	if !ok {
		return
	}
	solver := r.URL.Query().Get("solver")
	if solver == "" {
		solver = s.solver
	}
	ref := inspect.LatestRelevantLog(job, solver)
	if ref == "" {
		http.Error(w, "no solver log", http.StatusNotFound)
		return
	}

	body := []byte(ref)
	if filepath.IsAbs(ref) {
		data, err := os.ReadFile(ref)
		if err != nil {
			s.fail(w, "cannot read log", err, http.StatusInternalServerError)
			return
		}
		body = data
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(body)
}

// POST /jobs/{id}/merge
func (s *Server) handleMergeJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.job(w, r)
	if !ok {
		return
	}
	if err := storage.Merge(job); err != nil {
		s.fail(w, "merge failed", err, http.StatusInternalServerError)
		return
	}
	view, _ := core.ReadView(s.project.ViewDir())
	writeJSON(w, summarize(job, view))
}

// GET /logs
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	if s.logRoot == "" {
		http.Error(w, "log discovery is not configured", http.StatusNotFound)
		return
	}
	out := make([]LogStatus, 0)
	for lf := range inspect.DiscoverLogs(s.logRoot, s.logOpts) {
		ok, err := inspect.IsSuccessful(lf.Path)
		if err != nil {
			s.logger.Warn("cannot read log", "path", lf.Path, "error", err)
		}
		out = append(out, LogStatus{Path: lf.Path, Campaign: lf.Campaign, Tags: lf.Tags, Success: ok})
	}
	writeJSON(w, out)
}

// GET /ledger/verify
func (s *Server) handleVerifyLedger(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		http.Error(w, "no ledger", http.StatusNotFound)
		return
	}
	if err := s.ledger.VerifyChain(); err != nil {
		http.Error(w, "ledger verification failed: "+err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]any{"status": "ok", "entries": len(s.ledger.Entries())})
}

func (s *Server) job(w http.ResponseWriter, r *http.Request) (*storage.Job, bool) {
	id := chi.URLParam(r, "id")
	if id == "" || strings.ContainsAny(id, `./\`) {
		http.Error(w, "job not found", http.StatusNotFound)
		return nil, false
	}
	job, err := s.project.JobByID(id)
	if errors.Is(err, storage.ErrJobNotFound) {
		http.Error(w, "job not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		s.fail(w, "cannot open job", err, http.StatusInternalServerError)
		return nil, false
	}
	return job, true
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error, code int) {
	s.logger.Error(msg, "error", err)
	http.Error(w, msg+": "+err.Error(), code)
}

func summarize(j *storage.Job, view map[string]string) JobSummary {
	return JobSummary{
		ID:        j.ID,
		Operation: j.Operation(),
		State:     j.Doc.State,
		IsBase:    j.Doc.IsBase,
		BaseID:    j.Doc.BaseID,
		View:      view[j.ID],
		Steps:     len(j.Doc.History),
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
