package application

import (
	"context"

	"github.com/jobrunner/geoalgebra/internal/ports/input"
)

// HealthService provides health check functionality.
type HealthService struct {
	catalog    *LayerCatalog
	dispatcher *Dispatcher
}

// NewHealthService creates a new health service.
func NewHealthService(catalog *LayerCatalog, dispatcher *Dispatcher) *HealthService {
	return &HealthService{
		catalog:    catalog,
		dispatcher: dispatcher,
	}
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return true
}

// IsReady returns true once the dispatcher accepts jobs.
func (s *HealthService) IsReady(_ context.Context) bool {
	if s.dispatcher == nil {
		return false
	}
	s.dispatcher.mu.RLock()
	defer s.dispatcher.mu.RUnlock()
	return s.dispatcher.started && !s.dispatcher.closed
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	details := input.HealthDetails{
		Healthy:    s.IsHealthy(ctx),
		Ready:      s.IsReady(ctx),
		Components: map[string]string{},
	}

	if s.catalog != nil {
		details.LayersLoaded = s.catalog.LayerCount()
		details.Components["catalog"] = "ok"
	}
	if s.dispatcher != nil {
		details.Workers = s.dispatcher.Workers()
		details.QueuedJobs = s.dispatcher.QueuedJobs()
		if details.Ready {
			details.Components["dispatcher"] = "ok"
		} else {
			details.Components["dispatcher"] = "stopped"
		}
	}
	return details
}
