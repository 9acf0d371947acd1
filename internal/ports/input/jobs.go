// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/geoalgebra/internal/domain"
)

// JobService defines the primary port for running geometry jobs.
type JobService interface {
	// Submit enqueues a job. The returned channel receives exactly one
	// response carrying the job's id.
	Submit(ctx context.Context, job *domain.Job) (<-chan domain.Response, error)

	// Do submits a job and waits for its response.
	Do(ctx context.Context, job *domain.Job) (domain.Response, error)
}

// LayerCatalog defines the primary port for layer lookup.
type LayerCatalog interface {
	// ListLayers returns summaries of all loaded layers.
	ListLayers(ctx context.Context) []domain.LayerInfo

	// GetLayer returns a layer by ID.
	GetLayer(ctx context.Context, id string) (*domain.Layer, error)

	// LayerFeatures returns a layer's features in the requested CRS.
	LayerFeatures(ctx context.Context, id string, crs domain.CRS) (*geojson.FeatureCollection, error)
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy      bool              // Overall health status
	Ready        bool              // Ready to accept requests
	LayersLoaded int               // Number of loaded layers
	Workers      int               // Number of job workers
	QueuedJobs   int               // Jobs waiting for a worker
	Components   map[string]string // Component statuses
}
