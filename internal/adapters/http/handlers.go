package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/jobrunner/geoalgebra/internal/application"
	"github.com/jobrunner/geoalgebra/internal/domain"
)

// DefaultMaxBodyBytes limits the size of a job request body.
const DefaultMaxBodyBytes int64 = 64 << 20

// handleJob decodes a job request, resolves catalog references, runs the
// job and writes its response. Requests without an id get a generated one.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	limit := s.config.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var req domain.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", limit))
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid job request: "+err.Error())
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	ctx := r.Context()
	job, err := req.Resolve(func(id string) (*domain.Layer, error) {
		return s.deps.Catalog.GetLayer(ctx, id)
	})
	if err != nil {
		s.writeJSON(w, statusFor(err), domain.NewErrorResponse(&domain.Job{ID: req.ID, Type: req.Type}, err))
		return
	}

	resp, err := s.deps.Jobs.Do(ctx, job)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.logger.Info("job abandoned by client", "id", job.ID, "error", err)
			return
		}
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	status := http.StatusOK
	if !resp.OK {
		status = statusFor(resp.Err())
	}
	s.writeJSON(w, status, resp)
}

// handleListLayers returns summaries of all catalog layers.
func (s *Server) handleListLayers(w http.ResponseWriter, r *http.Request) {
	layers := s.deps.Catalog.ListLayers(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"layers": layers,
		"count":  len(layers),
	})
}

// handleGetLayer returns a layer as a FeatureCollection. The crs query
// parameter selects geographic (default) or metric coordinates.
func (s *Server) handleGetLayer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["layerId"]

	crs, err := domain.ParseCRS(r.URL.Query().Get("crs"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fc, err := s.deps.Catalog.LayerFeatures(r.Context(), id, crs)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(fc)
}

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.deps.Health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":        boolToStatus(details.Healthy),
		"ready":         details.Ready,
		"layers_loaded": details.LayersLoaded,
		"workers":       details.Workers,
		"queued_jobs":   details.QueuedJobs,
		"components":    details.Components,
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}

// handleSync triggers a catalog sync.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Sync.TriggerSync(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrRateLimited) {
			w.Header().Set("Retry-After", "30")
			s.writeError(w, http.StatusTooManyRequests, "sync rate limit exceeded, try again later")
			return
		}
		s.logger.Error("sync failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleOpenAPI returns the OpenAPI specification.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	spec, err := getOpenAPIJSON()
	if err != nil {
		s.logger.Error("failed to get OpenAPI spec", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load OpenAPI specification")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(spec)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var validationErr *domain.ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validationErr), errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEmptyResult):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}
