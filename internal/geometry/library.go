package geometry

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/geoalgebra/internal/domain"
)

// FailureObserver is notified of every kernel failure, including the ones
// recovered by the batch-form retry.
type FailureObserver func(op Op, reason Reason)

// Library wraps the three boolean primitives of a Kernel with operand
// normalization and the batch-form retry. It holds no mutable state.
type Library struct {
	kernel  Kernel
	observe FailureObserver
}

// NewLibrary creates a library over kernel. A nil kernel selects the
// polyclip kernel.
func NewLibrary(kernel Kernel, observe FailureObserver) *Library {
	if kernel == nil {
		kernel = PolyclipKernel{}
	}
	if observe == nil {
		observe = func(Op, Reason) {}
	}
	return &Library{kernel: kernel, observe: observe}
}

// Union merges two operands. Operands are *geojson.Feature or orb.Geometry.
func (l *Library) Union(a, b any) (orb.Geometry, error) {
	return l.call(OpUnion, a, b)
}

// Intersect returns the area shared by two operands.
func (l *Library) Intersect(a, b any) (orb.Geometry, error) {
	return l.call(OpIntersect, a, b)
}

// Difference subtracts b from a.
func (l *Library) Difference(a, b any) (orb.Geometry, error) {
	return l.call(OpDifference, a, b)
}

// Apply dispatches to the primitive named by op.
func (l *Library) Apply(op Op, a, b any) (orb.Geometry, error) {
	return l.call(op, a, b)
}

func (l *Library) call(op Op, a, b any) (orb.Geometry, error) {
	fa, err := AsFeature(a)
	if err != nil {
		return nil, err
	}
	fb, err := AsFeature(b)
	if err != nil {
		return nil, err
	}

	g, fail := l.kernel.Pair(op, fa, fb)
	if fail != nil && fail.Reason == ReasonNeedsBatchForm {
		l.observe(op, fail.Reason)
		g, fail = l.kernel.Batch(op, []*geojson.Feature{fa, fb})
	}
	if fail != nil {
		l.observe(op, fail.Reason)
		return nil, fail.toError()
	}
	return g, nil
}

// UnionStats describes how a union of many features was produced.
type UnionStats struct {
	Batch   bool // The single batch union succeeded
	Merged  int  // Features folded into the result
	Skipped int  // Features left out because their fold step failed
}

// UnionAll merges every feature into one geometry. It tries a single batch
// union first and otherwise folds feature by feature, skipping features
// whose merge fails so the result is the union of the largest mergeable
// subset.
func (l *Library) UnionAll(features []*geojson.Feature) (orb.Geometry, UnionStats) {
	switch len(features) {
	case 0:
		return nil, UnionStats{}
	case 1:
		return orb.Clone(features[0].Geometry), UnionStats{Merged: 1}
	}

	g, fail := l.kernel.Batch(OpUnion, features)
	if fail == nil {
		return g, UnionStats{Batch: true, Merged: len(features)}
	}
	l.observe(OpUnion, fail.Reason)

	stats := UnionStats{Merged: 1}
	acc := orb.Clone(features[0].Geometry)
	for _, f := range features[1:] {
		next, err := l.Union(acc, f)
		if err != nil {
			stats.Skipped++
			continue
		}
		acc = next
		stats.Merged++
	}
	return acc, stats
}

// AsFeature normalizes an operand into a feature. Bare geometries are
// wrapped with empty properties.
func AsFeature(v any) (*geojson.Feature, error) {
	switch v := v.(type) {
	case *geojson.Feature:
		if v == nil {
			return nil, operandError(v)
		}
		return v, nil
	case orb.Geometry:
		return geojson.NewFeature(v), nil
	}
	return nil, operandError(v)
}

func operandError(v any) error {
	return &domain.ValidationError{
		Field:      "operand",
		Value:      fmt.Sprintf("%T", v),
		Constraint: "Feature|Geometry",
		Message:    "operand must be a feature or a geometry",
	}
}
