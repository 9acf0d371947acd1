// Package projection converts feature collections between the engine's
// metric UTM CRS and WGS 84 longitude/latitude.
package projection

import (
	"fmt"
	"math"

	"github.com/ctessum/geom/proj"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"

	"github.com/jobrunner/geoalgebra/internal/domain"
)

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi
)

// Transformer implements the CoordinateTransformer port on top of the
// proj4 UTM implementation. The projection closures are built once and
// only read afterwards, so a Transformer is safe for concurrent use.
type Transformer struct {
	zone         domain.UTMZone
	toMetric     proj.Transformer // radians -> meters
	toGeographic proj.Transformer // meters -> radians
}

// NewTransformer creates a transformer for the given UTM zone.
func NewTransformer(zone domain.UTMZone) (*Transformer, error) {
	if err := zone.Validate(); err != nil {
		return nil, err
	}

	sr, err := proj.Parse(zone.Definition())
	if err != nil {
		return nil, fmt.Errorf("parsing projection %q: %w", zone.Definition(), err)
	}

	fwd, inv, err := sr.Transformers()
	if err != nil {
		return nil, fmt.Errorf("building transformers for %s: %w", zone, err)
	}

	return &Transformer{
		zone:         zone,
		toMetric:     fwd,
		toGeographic: inv,
	}, nil
}

// Zone returns the metric CRS of the transformer.
func (t *Transformer) Zone() domain.UTMZone {
	return t.zone
}

// Forward converts a metric collection into the geographic CRS.
func (t *Transformer) Forward(fc *geojson.FeatureCollection) (*geojson.FeatureCollection, error) {
	return t.collection(fc, "forward", t.ForwardGeometry)
}

// Inverse converts a geographic collection into the metric CRS.
func (t *Transformer) Inverse(fc *geojson.FeatureCollection) (*geojson.FeatureCollection, error) {
	return t.collection(fc, "inverse", t.InverseGeometry)
}

// ForwardGeometry converts a metric geometry into degrees.
func (t *Transformer) ForwardGeometry(g orb.Geometry) (orb.Geometry, error) {
	return walk(g, func(x, y float64) (float64, float64, error) {
		lon, lat, err := t.toGeographic(x, y)
		return lon * rad2deg, lat * rad2deg, err
	})
}

// InverseGeometry converts a geographic geometry into meters.
func (t *Transformer) InverseGeometry(g orb.Geometry) (orb.Geometry, error) {
	return walk(g, func(lon, lat float64) (float64, float64, error) {
		return t.toMetric(lon*deg2rad, lat*deg2rad)
	})
}

func (t *Transformer) collection(
	fc *geojson.FeatureCollection,
	direction string,
	convert func(orb.Geometry) (orb.Geometry, error),
) (*geojson.FeatureCollection, error) {
	out := geojson.NewFeatureCollection()
	if fc == nil {
		return out, nil
	}
	out.Features = make([]*geojson.Feature, 0, len(fc.Features))

	for i, f := range fc.Features {
		if f == nil {
			continue
		}
		g, err := convert(f.Geometry)
		if err != nil {
			return nil, &domain.ProjectionError{Direction: direction, Feature: i, Err: err}
		}

		nf := geojson.NewFeature(g)
		nf.ID = f.ID
		if f.Properties != nil {
			nf.Properties = f.Properties.Clone()
		}
		out.Append(nf)
	}
	return out, nil
}

// walk applies fn to every position of a copy of g.
func walk(g orb.Geometry, fn func(x, y float64) (float64, float64, error)) (orb.Geometry, error) {
	if g == nil {
		return nil, nil
	}

	var walkErr error
	out := project.Geometry(orb.Clone(g), func(p orb.Point) orb.Point {
		if walkErr != nil {
			return p
		}
		if !finite(p[0], p[1]) {
			walkErr = &domain.ValidationError{
				Field:      "coordinates",
				Value:      []float64{p[0], p[1]},
				Constraint: "finite",
				Message:    "coordinate is not a finite number",
			}
			return p
		}

		x, y, err := fn(p[0], p[1])
		if err == nil && !finite(x, y) {
			err = fmt.Errorf("position %v projects to a non-finite value", p)
		}
		if err != nil {
			walkErr = err
			return p
		}
		return orb.Point{x, y}
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
