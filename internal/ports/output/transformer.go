package output

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// CoordinateTransformer defines the secondary port for converting data
// between the metric CRS and the geographic CRS. Implementations never
// modify their input and fail the whole collection on any fault.
type CoordinateTransformer interface {
	// Forward converts a metric collection into the geographic CRS.
	Forward(fc *geojson.FeatureCollection) (*geojson.FeatureCollection, error)

	// Inverse converts a geographic collection into the metric CRS.
	Inverse(fc *geojson.FeatureCollection) (*geojson.FeatureCollection, error)

	// ForwardGeometry converts a single metric geometry.
	ForwardGeometry(g orb.Geometry) (orb.Geometry, error)

	// InverseGeometry converts a single geographic geometry.
	InverseGeometry(g orb.Geometry) (orb.Geometry, error)
}
