package output

import (
	"context"

	"github.com/paulmach/orb/geojson"
)

// LayerReader defines the secondary port for reading feature layers out of
// container files such as GeoPackages.
type LayerReader interface {
	// ReadLayers reads every feature table of the file as a geographic
	// feature collection.
	ReadLayers(ctx context.Context, path string) ([]LayerData, error)
}

// LayerData is one feature table read by a LayerReader.
type LayerData struct {
	Name     string                     // Table name
	Features *geojson.FeatureCollection // Features in the geographic CRS
}
