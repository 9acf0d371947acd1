// Package pipeline implements the layer-level polygon algebra on top of the
// geometry library: difference, intersect, union, buffer, area filtering and
// clipping of whole feature collections.
package pipeline

import (
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/geoalgebra/internal/domain"
	"github.com/jobrunner/geoalgebra/internal/geometry"
	"github.com/jobrunner/geoalgebra/internal/ports/output"
)

// Pipeline runs layer operations. It keeps no per-job state and may be
// shared by concurrent workers.
type Pipeline struct {
	lib      *geometry.Library
	metrics  output.MetricsCollector
	logger   *slog.Logger
	segments int
}

// Config holds pipeline tuning.
type Config struct {
	// BufferSegments is the number of vertices of a buffered point.
	BufferSegments int
}

// New creates a pipeline over lib.
func New(lib *geometry.Library, metrics output.MetricsCollector, logger *slog.Logger, cfg Config) *Pipeline {
	if lib == nil {
		lib = geometry.NewLibrary(nil, nil)
	}
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	if cfg.BufferSegments == 0 {
		cfg.BufferSegments = geometry.DefaultSegments
	}
	return &Pipeline{
		lib:      lib,
		metrics:  metrics,
		logger:   logger,
		segments: cfg.BufferSegments,
	}
}

// candidate reports whether a and b pass the bounding box prune and the
// exact intersects predicate.
func candidate(a, b orb.Geometry) bool {
	return geometry.BoundsOverlap(a, b) && geometry.Intersects(a, b)
}

// exact applies op to a and b. On failure both operands are sanitized and
// the operation retried once; a second failure skips the pair, reported
// by ok == false.
func (p *Pipeline) exact(op geometry.Op, a, b *geojson.Feature) (g orb.Geometry, ok bool) {
	g, err := p.lib.Apply(op, a, b)
	if err == nil {
		return g, true
	}

	ca, cb := geometry.Sanitize(a.Geometry), geometry.Sanitize(b.Geometry)
	if ca != nil && cb != nil {
		g, retryErr := p.lib.Apply(op, ca, cb)
		if retryErr == nil {
			p.logger.Debug("primitive recovered after sanitizing", "operation", op.String(), "error", err)
			return g, true
		}
		err = retryErr
	}

	p.metrics.IncSkippedPairs(op.String())
	p.logger.Debug("skipping pair", "operation", op.String(), "error", err)
	return nil, false
}

// polygonal returns the features of fc carrying polygonal geometry.
func polygonal(fc *geojson.FeatureCollection) []*geojson.Feature {
	if fc == nil {
		return nil
	}
	out := make([]*geojson.Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f != nil && geometry.IsPolygonal(f.Geometry) {
			out = append(out, f)
		}
	}
	return out
}

func requirePolygons(field string, fc *geojson.FeatureCollection) ([]*geojson.Feature, error) {
	fs := polygonal(fc)
	if len(fs) == 0 {
		return nil, &domain.ValidationError{
			Field:      field,
			Constraint: "Polygon|MultiPolygon",
			Message:    "layer has no polygon features",
		}
	}
	return fs, nil
}

func newFeature(g orb.Geometry, id interface{}, props geojson.Properties) *geojson.Feature {
	f := geojson.NewFeature(g)
	f.ID = id
	if props != nil {
		f.Properties = props
	}
	return f
}
