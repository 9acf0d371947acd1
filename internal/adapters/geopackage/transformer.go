package geopackage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/jobrunner/geoalgebra/internal/domain"
)

// reprojector converts geometries stored in another SRS into WGS 84 with
// SpatiaLite. It uses its own in-memory database because GeoPackage files
// lack the spatial_ref_sys table ST_Transform needs.
type reprojector struct {
	once sync.Once
	db   *sql.DB
	err  error
}

func (r *reprojector) open(ctx context.Context) (*sql.DB, error) {
	r.once.Do(func() {
		db, err := sql.Open(driverName, ":memory:")
		if err != nil {
			r.err = err
			return
		}
		// A single connection keeps the in-memory metadata visible.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "SELECT InitSpatialMetaDataFull(1)"); err != nil {
			_ = db.Close()
			r.err = fmt.Errorf("initializing spatial metadata: %w", err)
			return
		}
		r.db = db
	})
	return r.db, r.err
}

// toGeographic reprojects g from srid into EPSG:4326.
func (r *reprojector) toGeographic(ctx context.Context, g orb.Geometry, srid int) (orb.Geometry, error) {
	if srid == domain.SRIDWGS84 {
		return g, nil
	}
	db, err := r.open(ctx)
	if err != nil {
		return nil, err
	}

	in, err := wkb.Marshal(g)
	if err != nil {
		return nil, err
	}

	var out []byte
	err = db.QueryRowContext(ctx,
		"SELECT AsBinary(ST_Transform(GeomFromWKB(?, ?), ?))",
		in, srid, domain.SRIDWGS84,
	).Scan(&out)
	if err != nil {
		return nil, fmt.Errorf("transforming from SRID %d: %w", srid, err)
	}
	if out == nil {
		return nil, fmt.Errorf("transforming from SRID %d: %w", srid, domain.ErrInvalidCoordinate)
	}
	return wkb.Unmarshal(out)
}

func (r *reprojector) close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
