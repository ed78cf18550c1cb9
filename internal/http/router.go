package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"interview-session-service/internal/app"
	"interview-session-service/internal/models"
	"interview-session-service/internal/observability/logging"
	"interview-session-service/internal/service/feedback"
)

const maxBodyBytes = 1 << 20

// Service is the feedback surface served over HTTP.
type Service interface {
	GenerateFeedback(ctx context.Context, id string, req app.GenerateRequest) (feedback.Result, error)
	Feedback(ctx context.Context, id string) (*models.FeedbackReport, error)
}

// GenerateResponse is returned by the generate endpoint.
type GenerateResponse struct {
	Report   models.FeedbackReport `json:"report"`
	Outcome  string                `json:"outcome"`
	Category string                `json:"category"`
	Quality  int                   `json:"qualityScore"`
	Score    int                   `json:"score"`
}

// MergeRequest carries the two copies of a report to reconcile.
type MergeRequest struct {
	Persisted *models.FeedbackReport `json:"persisted"`
	Instant   *models.FeedbackReport `json:"instant"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(svc Service) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	h := &handlers{svc: svc}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/sessions/{id}/feedback", h.generate)
		r.Get("/sessions/{id}/feedback", h.get)
		r.Post("/feedback/merge", h.merge)
	})

	return r
}

type handlers struct {
	svc Service
}

func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req app.GenerateRequest
	if err := decodeOptional(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := h.svc.GenerateFeedback(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, GenerateResponse{
		Report:   res.Report,
		Outcome:  string(res.Outcome),
		Category: string(res.Analysis.Category),
		Quality:  res.Quality,
		Score:    res.Report.AverageScore(),
	})
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report, err := h.svc.Feedback(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handlers) merge(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := decodeOptional(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	merged := feedback.Merge(req.Persisted, req.Instant)
	if merged == nil {
		writeError(w, http.StatusBadRequest, errors.New("at least one report is required"))
		return
	}
	writeJSON(w, http.StatusOK, merged)
}

// decodeOptional decodes a JSON body into v. An empty body leaves v untouched.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeServiceError(w http.ResponseWriter, r *http.Request, id string, err error) {
	switch {
	case errors.Is(err, app.ErrSessionNotFound), errors.Is(err, app.ErrNoFeedback):
		writeError(w, http.StatusNotFound, err)
	default:
		logger := logging.WithSessionComponent(id, "http")
		logger.Error().
			Err(err).
			Str("requestId", middleware.GetReqID(r.Context())).
			Msg("Request failed")
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
