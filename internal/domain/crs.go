// Package domain contains the core business entities and value objects.
package domain

import (
	"fmt"
	"strings"
)

// CRS names one of the two coordinate reference systems a layer can be
// expressed in.
type CRS string

// Supported coordinate reference systems.
const (
	CRSGeographic CRS = "geographic" // WGS 84 longitude/latitude in degrees
	CRSMetric     CRS = "metric"     // WGS 84 / UTM in meters
)

// ParseCRS parses a CRS name. The empty string selects the geographic CRS.
func ParseCRS(s string) (CRS, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "geographic", "wgs84", "4326", "epsg:4326":
		return CRSGeographic, nil
	case "metric", "utm", "projected":
		return CRSMetric, nil
	}
	return "", &ValidationError{
		Field:      "crs",
		Value:      s,
		Constraint: "geographic|metric",
		Message:    "unknown coordinate reference system",
	}
}

// Common SRID constants.
const (
	SRIDWGS84          = 4326  // WGS 84
	SRIDWGS84UTMNorth0 = 32600 // WGS 84 / UTM zone N, add zone number
	SRIDWGS84UTMSouth0 = 32700 // WGS 84 / UTM zone S, add zone number
)

// GeographicDefinition is the proj4 definition of the geographic CRS.
const GeographicDefinition = "+proj=longlat +datum=WGS84 +no_defs"

// UTMZone identifies the metric CRS used by the engine.
type UTMZone struct {
	Zone  int  // 1..60
	South bool // Southern hemisphere
}

// Validate checks that the zone number is in range.
func (z UTMZone) Validate() error {
	if z.Zone < 1 || z.Zone > 60 {
		return &ValidationError{
			Field:      "projection.utm_zone",
			Value:      z.Zone,
			Constraint: "[1, 60]",
			Message:    "UTM zone must be between 1 and 60",
		}
	}
	return nil
}

// SRID returns the EPSG code of the zone.
func (z UTMZone) SRID() int {
	if z.South {
		return SRIDWGS84UTMSouth0 + z.Zone
	}
	return SRIDWGS84UTMNorth0 + z.Zone
}

// Definition returns the proj4 definition of the zone.
func (z UTMZone) Definition() string {
	if z.South {
		return fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", z.Zone)
	}
	return fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", z.Zone)
}

// String returns a human-readable name.
func (z UTMZone) String() string {
	hemi := "N"
	if z.South {
		hemi = "S"
	}
	return fmt.Sprintf("WGS 84 / UTM zone %d%s", z.Zone, hemi)
}
