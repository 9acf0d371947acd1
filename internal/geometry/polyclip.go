package geometry

import (
	"errors"
	"fmt"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	errNotPolygonal = errors.New("operand is not polygonal")
	errNonFinite    = errors.New("result contains non-finite coordinates")
)

// PolyclipKernel is the default Kernel, backed by the Martinez polygon
// clipper of github.com/ctessum/geom. Its two-operand form accepts Polygon
// and MultiPolygon operands only; geometry collections need the batch form.
type PolyclipKernel struct{}

// Pair implements Kernel.
func (PolyclipKernel) Pair(op Op, a, b *geojson.Feature) (orb.Geometry, *Failure) {
	for _, f := range []*geojson.Feature{a, b} {
		if f == nil || f.Geometry == nil {
			return nil, &Failure{Op: op, Reason: ReasonFatal, Err: errNotPolygonal}
		}
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		case orb.Collection:
			return nil, &Failure{Op: op, Reason: ReasonNeedsBatchForm,
				Err: errors.New("operand is a GeometryCollection")}
		default:
			return nil, &Failure{Op: op, Reason: ReasonFatal,
				Err: fmt.Errorf("%w: %s", errNotPolygonal, f.Geometry.GeoJSONType())}
		}
	}

	return clip(op, toGeom(Polygons(a.Geometry)), toGeom(Polygons(b.Geometry)))
}

// Batch implements Kernel. Collection members are merged into one operand
// per feature before the operation is applied across features.
func (PolyclipKernel) Batch(op Op, features []*geojson.Feature) (orb.Geometry, *Failure) {
	if len(features) == 0 {
		return nil, nil
	}

	operands := make([]geom.MultiPolygon, 0, len(features))
	for _, f := range features {
		if f == nil || !IsPolygonal(f.Geometry) {
			return nil, &Failure{Op: op, Reason: ReasonFatal, Err: errNotPolygonal}
		}
		parts := Polygons(f.Geometry)
		if _, ok := f.Geometry.(orb.Collection); ok && len(parts) > 1 {
			merged, fail := reduceUnion(op, splitParts(parts))
			if fail != nil {
				return nil, fail
			}
			operands = append(operands, merged)
			continue
		}
		operands = append(operands, toGeom(parts))
	}

	var result geom.MultiPolygon
	var fail *Failure
	switch op {
	case OpUnion:
		result, fail = reduceUnion(op, operands)
	default:
		result = operands[0]
		for _, next := range operands[1:] {
			var g orb.Geometry
			g, fail = clip(op, result, next)
			if fail != nil {
				break
			}
			result = toGeom(Polygons(g))
		}
	}
	if fail != nil {
		return nil, fail
	}
	return normalizeResult(op, result)
}

// reduceUnion merges operands pairwise in a balanced tree. Overlapping
// contours must never share one clipper operand, so each step unions
// exactly two already-valid operands.
func reduceUnion(op Op, operands []geom.MultiPolygon) (geom.MultiPolygon, *Failure) {
	switch len(operands) {
	case 0:
		return nil, nil
	case 1:
		return operands[0], nil
	}

	mid := len(operands) / 2
	left, fail := reduceUnion(op, operands[:mid])
	if fail != nil {
		return nil, fail
	}
	right, fail := reduceUnion(op, operands[mid:])
	if fail != nil {
		return nil, fail
	}

	g, fail := clip(OpUnion, left, right)
	if fail != nil {
		fail.Op = op
		return nil, fail
	}
	return toGeom(Polygons(g)), nil
}

func splitParts(parts []orb.Polygon) []geom.MultiPolygon {
	out := make([]geom.MultiPolygon, 0, len(parts))
	for _, p := range parts {
		if g := toGeom([]orb.Polygon{p}); len(g) > 0 {
			out = append(out, g)
		}
	}
	return out
}

// clip runs one clipper operation, turning panics and non-finite output
// into fatal failures.
func clip(op Op, a, b geom.MultiPolygon) (result orb.Geometry, fail *Failure) {
	switch {
	case len(a) == 0 && len(b) == 0:
		return nil, nil
	case len(b) == 0:
		if op == OpIntersect {
			return nil, nil
		}
		return normalizeResult(op, a)
	case len(a) == 0:
		if op == OpUnion {
			return normalizeResult(op, b)
		}
		return nil, nil
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			fail = &Failure{Op: op, Reason: ReasonFatal, Err: fmt.Errorf("clipper panic: %v", r)}
		}
	}()

	var out geom.Polygon
	switch op {
	case OpUnion:
		out = a.Union(b)
	case OpIntersect:
		out = a.Intersection(b)
	case OpDifference:
		out = a.Difference(b)
	default:
		return nil, &Failure{Op: op, Reason: ReasonFatal, Err: fmt.Errorf("unknown operation %d", int(op))}
	}

	g := fromGeom(out)
	if !finiteGeometry(g) {
		return nil, &Failure{Op: op, Reason: ReasonFatal, Err: errNonFinite}
	}
	return g, nil
}

// normalizeResult assembles a kernel operand back into orb polygons.
func normalizeResult(op Op, mp geom.MultiPolygon) (orb.Geometry, *Failure) {
	var rings geom.Polygon
	for _, p := range mp {
		rings = append(rings, p...)
	}
	g := fromGeom(rings)
	if !finiteGeometry(g) {
		return nil, &Failure{Op: op, Reason: ReasonFatal, Err: errNonFinite}
	}
	return g, nil
}
