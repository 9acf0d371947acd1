// Package geopackage reads the feature tables of GeoPackage files with
// SpatiaLite.
package geopackage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/geoalgebra/internal/domain"
	"github.com/jobrunner/geoalgebra/internal/ports/output"
)

const driverName = "sqlite3_spatialite"

var registerOnce sync.Once

// register installs the sqlite3 driver with the SpatiaLite extension.
func register() {
	registerOnce.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			Extensions: spatiaLiteLibraryPaths(),
		})
	})
}

// spatiaLiteLibraryPaths lists where SpatiaLite may be installed.
// SPATIALITE_LIBRARY_PATH overrides the platform defaults.
func spatiaLiteLibraryPaths() []string {
	if env := os.Getenv("SPATIALITE_LIBRARY_PATH"); env != "" {
		return []string{env}
	}
	return []string{
		"/usr/lib/mod_spatialite.so",
		"/usr/lib/x86_64-linux-gnu/mod_spatialite.so",
		"/usr/lib/aarch64-linux-gnu/mod_spatialite.so",
		"/usr/local/lib/mod_spatialite.dylib",
		"/opt/homebrew/lib/mod_spatialite.dylib",
		"mod_spatialite",
	}
}

// Repository implements output.LayerReader for GeoPackage files.
type Repository struct {
	proj reprojector
}

var _ output.LayerReader = (*Repository)(nil)

// NewRepository creates a GeoPackage reader.
func NewRepository() *Repository {
	register()
	return &Repository{}
}

// table describes one feature table listed in gpkg_contents.
type table struct {
	Name           string
	GeometryColumn string
	SRID           int
}

// ReadLayers reads every feature table of the GeoPackage at path.
// Geometries in another SRS are reprojected to WGS 84.
func (r *Repository) ReadLayers(ctx context.Context, path string) ([]output.LayerData, error) {
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, &domain.StorageError{Operation: "open", Key: path, Err: err}
	}
	defer func() { _ = db.Close() }()

	tables, err := listTables(ctx, db)
	if err != nil {
		return nil, &domain.StorageError{Operation: "read", Key: path, Err: err}
	}

	layers := make([]output.LayerData, 0, len(tables))
	for _, t := range tables {
		fc, err := r.readTable(ctx, db, t)
		if err != nil {
			return nil, &domain.LayerError{LayerID: t.Name, Err: err}
		}
		layers = append(layers, output.LayerData{Name: t.Name, Features: fc})
	}
	return layers, nil
}

// Close releases the reprojection database.
func (r *Repository) Close() error {
	return r.proj.close()
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, err
	}
	var version string
	if err := db.QueryRowContext(ctx, "SELECT spatialite_version()").Scan(&version); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("SpatiaLite extension not available: %w", err)
	}
	return db, nil
}

func listTables(ctx context.Context, db *sql.DB) ([]table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.table_name, g.column_name, g.srs_id
		FROM gpkg_contents c
		JOIN gpkg_geometry_columns g ON c.table_name = g.table_name
		WHERE c.data_type = 'features'
		ORDER BY c.table_name
	`)
	if err != nil {
		return nil, fmt.Errorf("listing feature tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []table
	for rows.Next() {
		var t table
		if err := rows.Scan(&t.Name, &t.GeometryColumn, &t.SRID); err != nil {
			return nil, fmt.Errorf("scanning feature table: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// primaryKey returns the integer primary key column of a table, or "".
func primaryKey(ctx context.Context, db *sql.DB, name string) string {
	var col string
	err := db.QueryRowContext(ctx, "SELECT name FROM pragma_table_info(?) WHERE pk = 1", name).Scan(&col)
	if err != nil {
		return ""
	}
	return col
}

func (r *Repository) readTable(ctx context.Context, db *sql.DB, t table) (*geojson.FeatureCollection, error) {
	pk := primaryKey(ctx, db, t.Name)
	query := fmt.Sprintf(
		`SELECT *, AsBinary(CastAutomagic(%s)) FROM %s WHERE %s IS NOT NULL`,
		quoteIdent(t.GeometryColumn), quoteIdent(t.Name), quoteIdent(t.GeometryColumn),
	) //#nosec G201 -- identifiers are quoted and come from gpkg_contents

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying features: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for rows.Next() {
		f, err := r.scanFeature(ctx, rows, columns, t, pk)
		if err != nil {
			return nil, err
		}
		if f != nil {
			fc.Append(f)
		}
	}
	return fc, rows.Err()
}

// scanFeature turns a row into a feature. The last column holds the WKB
// geometry; the raw geometry column is dropped and the primary key
// becomes the feature id.
func (r *Repository) scanFeature(ctx context.Context, rows *sql.Rows, columns []string, t table, pk string) (*geojson.Feature, error) {
	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scanning feature: %w", err)
	}

	raw, ok := values[len(values)-1].([]byte)
	if !ok || len(raw) == 0 {
		return nil, nil
	}
	g, err := wkb.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding geometry: %w", err)
	}
	if g, err = r.proj.toGeographic(ctx, g, t.SRID); err != nil {
		return nil, err
	}

	f := geojson.NewFeature(g)
	for i, col := range columns[:len(columns)-1] {
		switch {
		case col == t.GeometryColumn:
		case col == pk:
			f.ID = values[i]
		case values[i] != nil:
			f.Properties[col] = propertyValue(values[i])
		}
	}
	return f, nil
}

// propertyValue converts a scanned column into a JSON friendly value.
func propertyValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// IsSpatiaLiteAvailable reports whether the SpatiaLite extension can be
// loaded.
func IsSpatiaLiteAvailable(ctx context.Context) bool {
	register()
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return false
	}
	defer func() { _ = db.Close() }()

	var version string
	err = db.QueryRowContext(ctx, "SELECT spatialite_version()").Scan(&version)
	return err == nil
}
