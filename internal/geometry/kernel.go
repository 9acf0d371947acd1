// Package geometry implements the boolean polygon operations of the engine:
// a pluggable clipping kernel, retrying wrappers around its primitives and
// the planar helpers (sanitizing, predicates, buffering, component
// assembly) the pipeline builds on.
package geometry

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/geoalgebra/internal/domain"
)

// Op is a boolean polygon operation.
type Op int

// Supported boolean operations.
const (
	OpUnion Op = iota
	OpIntersect
	OpDifference
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpUnion:
		return "union"
	case OpIntersect:
		return "intersect"
	case OpDifference:
		return "difference"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Reason classifies a kernel failure.
type Reason int

const (
	// ReasonFatal means the primitive cannot produce a result for this input.
	ReasonFatal Reason = iota
	// ReasonNeedsBatchForm means the two-operand form rejected the input
	// but the batch form may accept the same logical operands.
	ReasonNeedsBatchForm
)

// String returns the reason name.
func (r Reason) String() string {
	if r == ReasonNeedsBatchForm {
		return "needs batch form"
	}
	return "fatal"
}

// Failure is the structured error result of a kernel call.
type Failure struct {
	Op     Op
	Reason Reason
	Err    error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Op, f.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", f.Op, f.Reason, f.Err)
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error {
	return f.Err
}

// toError converts the failure into the domain error reported to callers.
func (f *Failure) toError() error {
	return &domain.PrimitiveError{Op: f.Op.String(), Reason: f.Reason.String(), Err: f.Err}
}

// Kernel is a boolean polygon backend. A nil geometry with a nil failure
// is a valid, empty result.
type Kernel interface {
	// Pair applies op to exactly two features.
	Pair(op Op, a, b *geojson.Feature) (orb.Geometry, *Failure)

	// Batch applies op across a collection of features: the union of all
	// of them, the intersection of all of them, or the first minus the rest.
	Batch(op Op, features []*geojson.Feature) (orb.Geometry, *Failure)
}
