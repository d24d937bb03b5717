package http

import (
	"errors"
	"net/http"
	"strconv"

	"budgetpipe/internal/core"
	"budgetpipe/internal/log"
	"budgetpipe/internal/pipeline"
	"budgetpipe/internal/rules"
	"budgetpipe/internal/services"
)

const maxListLimit = 500

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	req, err := parseRunRequest(r, s.maxBody)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	cfg := s.rules
	if req.Rules != nil {
		cfg = req.Rules
	}
	if cfg == nil {
		writeError(w, r, http.StatusBadRequest, errors.New("no rules configured and none supplied"))
		return
	}

	out, err := s.svc.Run(r.Context(), req.Transactions, cfg)
	if err != nil {
		writeError(w, r, runErrorStatus(err), err)
		return
	}
	// The first GET caches the run, after any inline export has marked it.
	w.Header().Set("Location", "/api/v1/runs/"+out.Run.ID)
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if out, ok := s.runs.Get(id); ok {
		w.Header().Set("X-Cache", "HIT")
		writeJSON(w, http.StatusOK, out)
		return
	}

	out, err := s.svc.Get(r.Context(), id)
	if err != nil {
		if services.IsNotFound(err) {
			writeError(w, r, http.StatusNotFound, err)
			return
		}
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	s.runs.Set(id, out)
	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			writeError(w, r, http.StatusBadRequest, errors.New("limit must be between 1 and 500"))
			return
		}
		limit = n
	}
	runs, err := s.svc.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"requests":   s.tracer.GetMetrics(),
		"rate_limit": s.limiter.GetMetrics(),
		"run_cache":  s.runs.Stats(),
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeError(w, r, http.StatusTooManyRequests, errors.New("rate limit exceeded, try again later"))
}

// runErrorStatus maps pipeline failures caused by the input data to 422.
func runErrorStatus(err error) int {
	var (
		missing *core.MissingFieldError
		badDate *core.InvalidDateError
		invalid *rules.ConfigValidationError
	)
	switch {
	case errors.As(err, &missing), errors.As(err, &badDate), errors.As(err, &invalid), errors.Is(err, pipeline.ErrNilConfig):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
