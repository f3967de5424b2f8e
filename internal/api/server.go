// Package api exposes the HTTP interface for the slot crawler service.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/volcanotrek/slotwatch/internal/config"
	"github.com/volcanotrek/slotwatch/internal/crawl"
	"github.com/volcanotrek/slotwatch/internal/storage"
)

// Server wires HTTP handlers to the runner and stores.
type Server struct {
	router   chi.Router
	slots    crawl.SlotStore
	runs     crawl.RunStore
	runner   *crawl.Runner
	clock    crawl.Clock
	cfg      config.Config
	registry *prometheus.Registry
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	slots crawl.SlotStore,
	runs crawl.RunStore,
	runner *crawl.Runner,
	clock crawl.Clock,
	cfg config.Config,
	registry *prometheus.Registry,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		slots:    slots,
		runs:     runs,
		runner:   runner,
		clock:    clock,
		cfg:      cfg,
		registry: registry,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1/slots/{category}", func(r chi.Router) {
		r.Get("/", s.listSlots)
		r.Get("/status", s.getStatus)
		r.Post("/scrape", s.triggerScrape)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) category(r *http.Request) (crawl.Category, bool) {
	return s.cfg.Category(chi.URLParam(r, "category"))
}

// triggerScrape enqueues a background crawl run and returns immediately.
func (s *Server) triggerScrape(w http.ResponseWriter, r *http.Request) {
	cat, ok := s.category(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown category")
		return
	}
	runID, err := s.runner.Trigger(r.Context(), cat)
	if err != nil {
		s.logger.Error("trigger crawl failed", zap.String("category", cat.Slug), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to queue crawl")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id":  runID,
		"message": cat.Product + " slot scraping initiated",
	})
}

// getStatus reports the latest run for a category. Only the run tracker's
// summary string is exposed, never internal stack traces.
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	cat, ok := s.category(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown category")
		return
	}
	run, err := s.runs.Latest(r.Context(), cat.Slug)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no runs recorded")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load run status")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:    string(run.Status),
		Message:   run.Message,
		LastRunAt: run.StartedAt.Format(time.RFC3339),
	})
}

// listSlots returns the snapshot for a category, ascending by date, with
// optional inclusive DD/MM/YYYY start_date/end_date filters.
func (s *Server) listSlots(w http.ResponseWriter, r *http.Request) {
	cat, ok := s.category(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown category")
		return
	}

	var from, to crawl.Date
	if raw := r.URL.Query().Get("start_date"); raw != "" {
		date, err := crawl.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start_date format, expected DD/MM/YYYY")
			return
		}
		from = date
	}
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		date, err := crawl.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end_date format, expected DD/MM/YYYY")
			return
		}
		to = date
	}
	if from != "" && to != "" {
		fromDay, _ := from.Time()
		toDay, _ := to.Time()
		if fromDay.After(toDay) {
			writeError(w, http.StatusBadRequest, "start_date must be before end_date")
			return
		}
	}

	now := s.clock.Now()
	records, err := s.slots.List(r.Context(), cat.Slug, from, to, now)
	if err != nil {
		s.logger.Error("list slots failed", zap.String("category", cat.Slug), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load slots")
		return
	}

	resp := slotsResponse{Slots: make([]slotEntry, 0, len(records)), Total: len(records)}
	var mostRecent time.Time
	for _, rec := range records {
		resp.Slots = append(resp.Slots, slotEntry{
			Date:         rec.Date.String(),
			Slots:        rec.Slots,
			UpdatedAt:    rec.UpdatedAt.Format("2006-01-02 15:04:05"),
			RelativeTime: relativeTime(now, rec.UpdatedAt),
		})
		if rec.UpdatedAt.After(mostRecent) {
			mostRecent = rec.UpdatedAt
		}
	}
	if !mostRecent.IsZero() {
		resp.LastUpdate = relativeTime(now, mostRecent)
	}
	writeJSON(w, http.StatusOK, resp)
}

type statusResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	LastRunAt string `json:"last_run_at"`
}

type slotsResponse struct {
	Slots      []slotEntry `json:"slots"`
	Total      int         `json:"total"`
	LastUpdate string      `json:"last_update,omitempty"`
}

type slotEntry struct {
	Date         string `json:"date"`
	Slots        string `json:"slots"`
	UpdatedAt    string `json:"updated_at"`
	RelativeTime string `json:"relative_time"`
}
