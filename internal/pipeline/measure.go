package pipeline

import (
	"math"

	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/geoalgebra/internal/domain"
	"github.com/jobrunner/geoalgebra/internal/geometry"
)

// AreaProperty is the output property holding a component's area in m².
const AreaProperty = "area_m2"

// Buffer expands every feature of fc by distance. The collection must be in
// a planar CRS whose unit is the unit of distance. Features producing no
// geometry are dropped; if fc had features and none produced a geometry
// the result is an EmptyResultError.
func (p *Pipeline) Buffer(fc *geojson.FeatureCollection, distance float64) (*geojson.FeatureCollection, error) {
	if math.IsNaN(distance) || math.IsInf(distance, 0) || distance <= 0 {
		return nil, &domain.ValidationError{
			Field:      "distance",
			Value:      distance,
			Constraint: "> 0",
			Message:    "distance must be a positive finite number",
		}
	}

	out := geojson.NewFeatureCollection()
	if fc == nil || len(fc.Features) == 0 {
		return out, nil
	}

	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		g, stats := p.lib.Buffer(f.Geometry, distance, p.segments)
		p.logUnion(string(domain.OpBuffer), stats)
		if g == nil {
			p.logger.Debug("buffer produced nothing", "feature", i)
			continue
		}
		out.Append(newFeature(g, f.ID, geometry.CloneProperties(f)))
	}

	if len(out.Features) == 0 {
		return nil, &domain.EmptyResultError{Operation: string(domain.OpBuffer)}
	}
	return out, nil
}

// AreaFilter unions the polygon features of fc, splits the union into
// connected components and keeps those whose spherical area is at least
// minArea square meters. fc must be in geographic coordinates. Each output
// feature carries its area under AreaProperty.
func (p *Pipeline) AreaFilter(fc *geojson.FeatureCollection, minArea float64) (*geojson.FeatureCollection, error) {
	if math.IsNaN(minArea) || math.IsInf(minArea, 0) || minArea < 0 {
		return nil, &domain.ValidationError{
			Field:      "minArea",
			Value:      minArea,
			Constraint: ">= 0",
			Message:    "minArea must be a finite number not below zero",
		}
	}

	out := geojson.NewFeatureCollection()
	if fc == nil || len(fc.Features) == 0 {
		return out, nil
	}
	fs, err := requirePolygons("layer", fc)
	if err != nil {
		return nil, err
	}

	g, stats := p.lib.UnionAll(fs)
	p.logUnion(string(domain.OpAreaFilter), stats)

	for _, c := range geometry.Components(g) {
		area := math.Abs(geo.Area(c))
		if area < minArea {
			continue
		}
		out.Append(newFeature(c, nil, geojson.Properties{AreaProperty: area}))
	}
	return out, nil
}
