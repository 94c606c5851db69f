package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"AShareScreener/internal/logger"
	"AShareScreener/internal/model"
	"AShareScreener/internal/recorder"
	"AShareScreener/internal/scheduler"
	"AShareScreener/internal/store"
)

const DefaultAddr = ":8080"

// Runs exposes screening control to the HTTP layer.
type Runs interface {
	Last() (*model.ScreeningResult, string)
	TriggerScreen() error
	Running() bool
}

// StatsSource reports local data coverage.
type StatsSource interface {
	Stats(ctx context.Context) (*store.Stats, error)
}

// Response is the JSON envelope for every API reply.
type Response[T any] struct {
	Data  *T     `json:"data"`
	Error string `json:"error,omitempty"`
}

// Server holds the handler dependencies.
type Server struct {
	Runs     Runs
	Stats    StatsSource
	Recorder recorder.Recorder
	Gatherer prometheus.Gatherer
}

// Router builds the chi routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/results/latest", s.latest)
		r.Post("/screenings", s.trigger)
		r.Get("/stats", s.stats)
		r.Get("/runs", s.runs)
	})
	return r
}

// NewHTTPServer wraps the router in an http.Server with sane timeouts.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	if addr == "" {
		addr = DefaultAddr
	}
	return &http.Server{
		Addr:           addr,
		Handler:        s.Router(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
}

type latestResponse struct {
	*model.ScreeningResult
	ExportPath string `json:"export_path,omitempty"`
	Running    bool   `json:"running"`
}

func (s *Server) latest(w http.ResponseWriter, r *http.Request) {
	result, path := s.Runs.Last()
	if result == nil {
		writeError(w, http.StatusNotFound, "no screening result yet")
		return
	}
	if passedOnly, _ := strconv.ParseBool(r.URL.Query().Get("passed")); passedOnly {
		view := *result
		view.Rows = result.Passed()
		result = &view
	}
	writeJSON(w, http.StatusOK, latestResponse{ScreeningResult: result, ExportPath: path, Running: s.Runs.Running()})
}

func (s *Server) trigger(w http.ResponseWriter, _ *http.Request) {
	if err := s.Runs.TriggerScreen(); err != nil {
		if errors.Is(err, scheduler.ErrBusy) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Stats.Stats(r.Context())
	if err != nil {
		logger.Errorf("api stats: %v", err)
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) runs(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.Recorder.RecentRuns(limit)
	if err != nil {
		logger.Errorf("api runs: %v", err)
		writeError(w, http.StatusInternalServerError, "run history unavailable")
		return
	}
	if runs == nil {
		runs = []recorder.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func writeJSON[T any](w http.ResponseWriter, status int, data T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Response[T]{Data: &data}); err != nil {
		logger.Warnf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response[any]{Error: msg})
}
