package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/geoalgebra/internal/domain"
	"github.com/jobrunner/geoalgebra/internal/pipeline"
	"github.com/jobrunner/geoalgebra/internal/ports/output"
)

// DefaultMaxVertices caps the total positions of a job's operands.
const DefaultMaxVertices = 1_000_000

// Executor runs one job to completion and builds its response.
type Executor struct {
	pipeline    *pipeline.Pipeline
	transformer output.CoordinateTransformer
	metrics     output.MetricsCollector
	logger      *slog.Logger
	maxVertices int
}

// ExecutorConfig holds configuration for the executor.
type ExecutorConfig struct {
	// MaxVertices rejects jobs with more operand positions. Zero disables
	// the check.
	MaxVertices int
}

// NewExecutor creates a new executor.
func NewExecutor(
	p *pipeline.Pipeline,
	transformer output.CoordinateTransformer,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	cfg ExecutorConfig,
) *Executor {
	return &Executor{
		pipeline:    p,
		transformer: transformer,
		metrics:     metrics,
		logger:      logger,
		maxVertices: cfg.MaxVertices,
	}
}

// Execute validates and runs job. It always returns a response carrying
// the job's ID; failures are reported inside the response.
func (e *Executor) Execute(ctx context.Context, job *domain.Job) domain.Response {
	start := time.Now()
	resp := e.execute(job)
	resp.Duration = time.Since(start)

	e.metrics.IncJobCount(string(job.Type), resp.OK)
	e.metrics.ObserveJobDuration(string(job.Type), resp.Duration)

	if resp.OK {
		e.logger.DebugContext(ctx, "job completed",
			"id", job.ID,
			"type", job.Type,
			"duration_ms", resp.Duration.Milliseconds(),
			"features", resp.FeatureCount(),
		)
	} else {
		e.logger.InfoContext(ctx, "job failed",
			"id", job.ID,
			"type", job.Type,
			"duration_ms", resp.Duration.Milliseconds(),
			"error", resp.Error,
		)
	}
	return resp
}

func (e *Executor) execute(job *domain.Job) domain.Response {
	if err := job.Validate(); err != nil {
		return domain.NewErrorResponse(job, err)
	}
	if e.maxVertices > 0 {
		if n := job.VertexCount(); n > e.maxVertices {
			return domain.NewErrorResponse(job, &domain.ValidationError{
				Field:      "job",
				Value:      n,
				Constraint: fmt.Sprintf("<= %d vertices", e.maxVertices),
				Message:    "job exceeds the vertex limit",
			})
		}
	}

	resp := domain.Response{ID: job.ID, OK: true, Type: job.Type}

	switch job.Type {
	case domain.OpClip:
		results, err := e.pipeline.Clip(job.Sources, job.Mask)
		if err != nil {
			return domain.NewErrorResponse(job, err)
		}
		resp.Results = make([]domain.Result, 0, len(results))
		for _, fc := range results {
			r, err := e.withMetric(fc)
			if err != nil {
				return domain.NewErrorResponse(job, err)
			}
			resp.Results = append(resp.Results, r)
		}
		return resp

	case domain.OpBuffer:
		r, err := e.buffer(job)
		if err != nil {
			return domain.NewErrorResponse(job, err)
		}
		resp.Result = &r
		return resp
	}

	var fc *geojson.FeatureCollection
	var err error
	switch job.Type {
	case domain.OpDifference:
		fc, err = e.pipeline.Difference(job.A, job.B)
	case domain.OpIntersect:
		fc, err = e.pipeline.Intersect(job.A, job.B)
	case domain.OpUnion:
		fc, err = e.pipeline.Union(job.Layer)
	case domain.OpAreaFilter:
		fc, err = e.pipeline.AreaFilter(job.Layer, job.MinArea)
	default:
		err = fmt.Errorf("%w: %s", domain.ErrUnknownOperation, job.Type)
	}
	if err != nil {
		return domain.NewErrorResponse(job, err)
	}

	r, err := e.withMetric(fc)
	if err != nil {
		return domain.NewErrorResponse(job, err)
	}
	resp.Result = &r
	return resp
}

// buffer runs in the metric CRS, so the metric half of the result is the
// pipeline output itself.
func (e *Executor) buffer(job *domain.Job) (domain.Result, error) {
	metric, err := e.transformer.Inverse(job.Layer)
	if err != nil {
		return domain.Result{}, err
	}
	buffered, err := e.pipeline.Buffer(metric, job.Distance)
	if err != nil {
		return domain.Result{}, err
	}
	geographic, err := e.transformer.Forward(buffered)
	if err != nil {
		return domain.Result{}, err
	}
	return domain.Result{Geographic: geographic, Metric: buffered}, nil
}

func (e *Executor) withMetric(fc *geojson.FeatureCollection) (domain.Result, error) {
	metric, err := e.transformer.Inverse(fc)
	if err != nil {
		return domain.Result{}, err
	}
	return domain.Result{Geographic: fc, Metric: metric}, nil
}
