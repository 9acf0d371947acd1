package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Operation is the kind of work a job performs.
type Operation string

// Supported operations.
const (
	OpDifference Operation = "difference"
	OpIntersect  Operation = "intersect"
	OpUnion      Operation = "union"
	OpBuffer     Operation = "buffer"
	OpAreaFilter Operation = "areaFilter"
	OpClip       Operation = "clip"
)

// Operations lists every supported operation.
var Operations = []Operation{OpDifference, OpIntersect, OpUnion, OpBuffer, OpAreaFilter, OpClip}

// IsValid reports whether the operation is supported.
func (o Operation) IsValid() bool {
	for _, op := range Operations {
		if op == o {
			return true
		}
	}
	return false
}

// EmptyIsError reports whether a result without features is an error.
func (o Operation) EmptyIsError() bool {
	switch o {
	case OpDifference, OpIntersect, OpUnion:
		return true
	}
	return false
}

// Job is one unit of work: an operation, its operand collections in the
// geographic CRS and its scalar parameters.
type Job struct {
	ID       string                       `json:"id"`
	Type     Operation                    `json:"type"`
	A        *geojson.FeatureCollection   `json:"a,omitempty"`
	B        *geojson.FeatureCollection   `json:"b,omitempty"`
	Layer    *geojson.FeatureCollection   `json:"layer,omitempty"`
	Sources  []*geojson.FeatureCollection `json:"sources,omitempty"`
	Mask     *geojson.FeatureCollection   `json:"mask,omitempty"`
	Distance float64                      `json:"distance,omitempty"`
	MinArea  float64                      `json:"minArea,omitempty"`
}

// Validate checks that the job carries the operands and parameters its
// operation needs.
func (j *Job) Validate() error {
	if j.ID == "" {
		return &ValidationError{Field: "id", Constraint: "non-empty", Message: "job id is required"}
	}
	if !j.Type.IsValid() {
		return &ValidationError{
			Field:      "type",
			Value:      string(j.Type),
			Constraint: "difference|intersect|union|buffer|areaFilter|clip",
			Message:    "unknown operation",
		}
	}

	switch j.Type {
	case OpDifference, OpIntersect:
		if err := requireCollection("a", j.A); err != nil {
			return err
		}
		return requireCollection("b", j.B)
	case OpUnion:
		return requireCollection("layer", j.Layer)
	case OpBuffer:
		if err := requireCollection("layer", j.Layer); err != nil {
			return err
		}
		if math.IsNaN(j.Distance) || math.IsInf(j.Distance, 0) || j.Distance <= 0 {
			return &ValidationError{
				Field:      "distance",
				Value:      j.Distance,
				Constraint: "> 0",
				Message:    "buffer distance must be a positive number of meters",
			}
		}
	case OpAreaFilter:
		if err := requireCollection("layer", j.Layer); err != nil {
			return err
		}
		if math.IsNaN(j.MinArea) || math.IsInf(j.MinArea, 0) || j.MinArea < 0 {
			return &ValidationError{
				Field:      "minArea",
				Value:      j.MinArea,
				Constraint: ">= 0",
				Message:    "minimum area must be a non-negative number of square meters",
			}
		}
	case OpClip:
		if len(j.Sources) == 0 {
			return &ValidationError{Field: "sources", Constraint: "non-empty", Message: "at least one source layer is required"}
		}
		for i, src := range j.Sources {
			if err := requireCollection(fmt.Sprintf("sources[%d]", i), src); err != nil {
				return err
			}
		}
		return requireCollection("mask", j.Mask)
	}
	return nil
}

// Collections returns every operand collection of the job.
func (j *Job) Collections() []*geojson.FeatureCollection {
	var out []*geojson.FeatureCollection
	for _, fc := range []*geojson.FeatureCollection{j.A, j.B, j.Layer, j.Mask} {
		if fc != nil {
			out = append(out, fc)
		}
	}
	for _, fc := range j.Sources {
		if fc != nil {
			out = append(out, fc)
		}
	}
	return out
}

// VertexCount returns the total number of positions over all operands.
func (j *Job) VertexCount() int {
	n := 0
	for _, fc := range j.Collections() {
		for _, f := range fc.Features {
			if f != nil {
				n += CountVertices(f.Geometry)
			}
		}
	}
	return n
}

// CountVertices returns the number of positions in a geometry.
func CountVertices(g orb.Geometry) int {
	switch g := g.(type) {
	case orb.Point:
		return 1
	case orb.MultiPoint:
		return len(g)
	case orb.LineString:
		return len(g)
	case orb.Ring:
		return len(g)
	case orb.MultiLineString:
		n := 0
		for _, ls := range g {
			n += len(ls)
		}
		return n
	case orb.Polygon:
		n := 0
		for _, r := range g {
			n += len(r)
		}
		return n
	case orb.MultiPolygon:
		n := 0
		for _, p := range g {
			n += CountVertices(p)
		}
		return n
	case orb.Collection:
		n := 0
		for _, c := range g {
			n += CountVertices(c)
		}
		return n
	}
	return 0
}

func requireCollection(field string, fc *geojson.FeatureCollection) error {
	if fc == nil {
		return &ValidationError{
			Field:      field,
			Constraint: "FeatureCollection",
			Message:    "operand collection is missing",
		}
	}
	return nil
}

// Result pairs an output collection with its metric reprojection.
type Result struct {
	Geographic *geojson.FeatureCollection `json:"fc_geographic"`
	Metric     *geojson.FeatureCollection `json:"fc_metric"`
}

// Response is the single answer to a job, correlated by ID.
type Response struct {
	ID       string        `json:"id"`
	OK       bool          `json:"ok"`
	Type     Operation     `json:"type"`
	Result   *Result       `json:"result,omitempty"`
	Results  []Result      `json:"results,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"-"`

	err error
}

// NewErrorResponse creates a failed response for the job.
func NewErrorResponse(job *Job, err error) Response {
	return Response{
		ID:    job.ID,
		OK:    false,
		Type:  job.Type,
		Error: err.Error(),
		err:   err,
	}
}

// Err returns the error a failed response was built from.
func (r Response) Err() error {
	return r.err
}

// FeatureCount returns the number of geographic result features.
func (r Response) FeatureCount() int {
	n := 0
	if r.Result != nil && r.Result.Geographic != nil {
		n += len(r.Result.Geographic.Features)
	}
	for _, res := range r.Results {
		if res.Geographic != nil {
			n += len(res.Geographic.Features)
		}
	}
	return n
}
