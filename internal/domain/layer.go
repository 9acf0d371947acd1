package domain

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// LayerFormat identifies the encoding a layer was loaded from.
type LayerFormat string

// Supported layer formats.
const (
	FormatGeoJSON    LayerFormat = "geojson"
	FormatGeoPackage LayerFormat = "gpkg"
)

// FormatOf returns the layer format implied by the extension of path.
func FormatOf(path string) (LayerFormat, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return FormatGeoJSON, true
	case ".gpkg":
		return FormatGeoPackage, true
	}
	return "", false
}

// IsLayerFile reports whether path has an extension a layer can be read from.
func IsLayerFile(path string) bool {
	_, ok := FormatOf(path)
	return ok
}

// Projector converts a geographic collection into the metric CRS.
type Projector interface {
	Inverse(fc *geojson.FeatureCollection) (*geojson.FeatureCollection, error)
}

// Layer is a named feature collection stored in the geographic CRS.
// The metric projection is derived on first use and cached, so the two
// representations cannot drift apart.
type Layer struct {
	ID       string      // Unique identifier (derived from the storage key)
	Name     string      // Display name
	Source   string      // Storage key or path
	Format   LayerFormat // Encoding of the source
	LoadedAt time.Time   // Load timestamp

	features *geojson.FeatureCollection

	metricOnce sync.Once
	metric     *geojson.FeatureCollection
	metricErr  error
}

// NewLayer creates a layer from a geographic feature collection.
func NewLayer(id, name string, fc *geojson.FeatureCollection) *Layer {
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}
	if name == "" {
		name = id
	}
	return &Layer{
		ID:       id,
		Name:     name,
		LoadedAt: time.Now(),
		features: fc,
	}
}

// Features returns the canonical geographic collection. Callers must not
// modify it.
func (l *Layer) Features() *geojson.FeatureCollection {
	return l.features
}

// Metric returns the metric projection of the layer, computing it once.
func (l *Layer) Metric(p Projector) (*geojson.FeatureCollection, error) {
	l.metricOnce.Do(func() {
		l.metric, l.metricErr = p.Inverse(l.features)
	})
	return l.metric, l.metricErr
}

// In returns the layer expressed in the requested CRS.
func (l *Layer) In(crs CRS, p Projector) (*geojson.FeatureCollection, error) {
	if crs == CRSMetric {
		return l.Metric(p)
	}
	return l.features, nil
}

// FeatureCount returns the number of features.
func (l *Layer) FeatureCount() int {
	return len(l.features.Features)
}

// Bound returns the bounding box of all features in geographic coordinates.
func (l *Layer) Bound() orb.Bound {
	var b orb.Bound
	first := true
	for _, f := range l.features.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		if first {
			b = f.Geometry.Bound()
			first = false
			continue
		}
		b = b.Union(f.Geometry.Bound())
	}
	return b
}

// GeometryTypes returns the distinct GeoJSON geometry types in the layer.
func (l *Layer) GeometryTypes() []string {
	seen := make(map[string]bool)
	var types []string
	for _, f := range l.features.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		t := f.Geometry.GeoJSONType()
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	return types
}

// LayerInfo is a summary of a layer without its features.
type LayerInfo struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Source        string      `json:"source,omitempty"`
	Format        LayerFormat `json:"format,omitempty"`
	FeatureCount  int         `json:"feature_count"`
	GeometryTypes []string    `json:"geometry_types"`
	BBox          []float64   `json:"bbox,omitempty"`
	LoadedAt      time.Time   `json:"loaded_at"`
}

// Info returns the summary of the layer.
func (l *Layer) Info() LayerInfo {
	info := LayerInfo{
		ID:            l.ID,
		Name:          l.Name,
		Source:        l.Source,
		Format:        l.Format,
		FeatureCount:  l.FeatureCount(),
		GeometryTypes: l.GeometryTypes(),
		LoadedAt:      l.LoadedAt,
	}
	if info.GeometryTypes == nil {
		info.GeometryTypes = []string{}
	}
	if info.FeatureCount > 0 {
		b := l.Bound()
		info.BBox = []float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()}
	}
	return info
}
