// Package application contains the application services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/geoalgebra/internal/domain"
	"github.com/jobrunner/geoalgebra/internal/ports/output"
)

// LayerCatalog holds the named layers that jobs may reference by ID.
type LayerCatalog struct {
	mu          sync.RWMutex
	layers      map[string]*domain.Layer
	reader      output.LayerReader
	storage     output.ObjectStorage
	transformer output.CoordinateTransformer
	metrics     output.MetricsCollector
	logger      *slog.Logger
	localPath   string
}

// NewLayerCatalog creates an empty catalog. Files are downloaded from
// storage into localPath before they are read.
func NewLayerCatalog(
	reader output.LayerReader,
	storage output.ObjectStorage,
	transformer output.CoordinateTransformer,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	localPath string,
) *LayerCatalog {
	return &LayerCatalog{
		layers:      make(map[string]*domain.Layer),
		reader:      reader,
		storage:     storage,
		transformer: transformer,
		metrics:     metrics,
		logger:      logger,
		localPath:   localPath,
	}
}

// LoadFile reads a layer file and registers its layers. A GeoJSON file is
// one layer named after the file; every feature table of a GeoPackage
// becomes a layer named "<file>.<table>". Reloading a file replaces its
// layers.
func (c *LayerCatalog) LoadFile(ctx context.Context, path string) error {
	format, ok := domain.FormatOf(path)
	if !ok {
		return &domain.StorageError{Operation: "load", Key: path, Err: domain.ErrUnsupportedFormat}
	}
	c.logger.Info("loading layer file", "path", path, "format", format)

	layers, err := c.read(ctx, path, format)
	if err != nil {
		c.logger.Error("failed to read layer file", "path", path, "error", err)
		return err
	}

	c.mu.Lock()
	for _, l := range layers {
		if existing, ok := c.layers[l.ID]; ok && existing.Source != path {
			c.mu.Unlock()
			return &domain.LayerError{
				LayerID: l.ID,
				Err:     fmt.Errorf("%w: %s and %s", domain.ErrDuplicateLayerFound, existing.Source, path),
			}
		}
	}
	c.removeSourceLocked(path)
	for _, l := range layers {
		c.layers[l.ID] = l
	}
	c.mu.Unlock()

	c.updateMetrics()
	c.logger.Info("layer file loaded", "path", path, "layers", len(layers))
	return nil
}

func (c *LayerCatalog) read(ctx context.Context, path string, format domain.LayerFormat) ([]*domain.Layer, error) {
	base := deriveLayerID(path)
	now := time.Now()

	switch format {
	case domain.FormatGeoPackage:
		if c.reader == nil {
			return nil, &domain.StorageError{Operation: "load", Key: path, Err: domain.ErrUnsupportedFormat}
		}
		tables, err := c.reader.ReadLayers(ctx, path)
		if err != nil {
			return nil, err
		}
		out := make([]*domain.Layer, 0, len(tables))
		for _, t := range tables {
			l := domain.NewLayer(base+"."+t.Name, t.Name, t.Features)
			l.Source, l.Format, l.LoadedAt = path, format, now
			out = append(out, l)
		}
		return out, nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &domain.StorageError{Operation: "read", Key: path, Err: err}
		}
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, &domain.StorageError{Operation: "decode", Key: path, Err: err}
		}
		l := domain.NewLayer(base, base, fc)
		l.Source, l.Format, l.LoadedAt = path, format, now
		return []*domain.Layer{l}, nil
	}
}

// UnloadFile removes every layer read from path.
func (c *LayerCatalog) UnloadFile(_ context.Context, path string) int {
	c.mu.Lock()
	n := c.removeSourceLocked(path)
	c.mu.Unlock()

	if n > 0 {
		c.logger.Info("layer file unloaded", "path", path, "layers", n)
		c.updateMetrics()
	}
	return n
}

func (c *LayerCatalog) removeSourceLocked(path string) int {
	n := 0
	for id, l := range c.layers {
		if l.Source == path {
			delete(c.layers, id)
			n++
		}
	}
	return n
}

// ListLayers implements input.LayerCatalog.
func (c *LayerCatalog) ListLayers(_ context.Context) []domain.LayerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]domain.LayerInfo, 0, len(c.layers))
	for _, l := range c.layers {
		infos = append(infos, l.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// GetLayer implements input.LayerCatalog.
func (c *LayerCatalog) GetLayer(_ context.Context, id string) (*domain.Layer, error) {
	return c.Resolve(id)
}

// Resolve looks a layer up by ID. It satisfies domain.LayerResolver.
func (c *LayerCatalog) Resolve(id string) (*domain.Layer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	l, ok := c.layers[id]
	if !ok {
		return nil, &domain.LayerError{LayerID: id, Err: domain.ErrLayerNotFound}
	}
	return l, nil
}

// LayerFeatures returns a layer's features in the requested CRS.
func (c *LayerCatalog) LayerFeatures(ctx context.Context, id string, crs domain.CRS) (*geojson.FeatureCollection, error) {
	l, err := c.GetLayer(ctx, id)
	if err != nil {
		return nil, err
	}
	return l.In(crs, c.transformer)
}

// LayerCount returns the number of loaded layers.
func (c *LayerCatalog) LayerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.layers)
}

// Sources returns the set of files the loaded layers were read from.
func (c *LayerCatalog) Sources() map[string]struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]struct{}, len(c.layers))
	for _, l := range c.layers {
		out[l.Source] = struct{}{}
	}
	return out
}

func (c *LayerCatalog) updateMetrics() {
	c.metrics.SetLayersLoaded(c.LayerCount())
}

// LoadAll downloads and loads every layer file in storage. Files that fail
// to load are logged and skipped.
func (c *LayerCatalog) LoadAll(ctx context.Context) error {
	_, err := c.Sync(ctx)
	return err
}

// SyncStats contains statistics from a sync operation.
type SyncStats struct {
	Added   int
	Removed int
}

// Sync loads storage objects whose files are not loaded yet and drops the
// layers of files that disappeared from storage.
func (c *LayerCatalog) Sync(ctx context.Context) (SyncStats, error) {
	c.logger.Info("syncing layers from storage")

	start := time.Now()
	objects, err := c.storage.List(ctx)
	c.metrics.ObserveStorageDuration("list", time.Since(start))
	c.metrics.IncStorageOperations("list", err == nil)
	if err != nil {
		return SyncStats{}, err
	}

	remote := make(map[string]struct{}, len(objects))
	stats := SyncStats{}
	loaded := c.Sources()

	for _, obj := range objects {
		if !domain.IsLayerFile(obj.Key) {
			continue
		}
		localPath := filepath.Join(c.localPath, obj.Key)
		remote[localPath] = struct{}{}
		if _, ok := loaded[localPath]; ok {
			c.logger.Debug("layer file already loaded, skipping", "key", obj.Key)
			continue
		}

		start := time.Now()
		err := c.storage.Download(ctx, obj.Key, localPath)
		c.metrics.ObserveStorageDuration("download", time.Since(start))
		c.metrics.IncStorageOperations("download", err == nil)
		if err != nil {
			c.logger.Error("failed to download layer file", "key", obj.Key, "error", err)
			continue
		}

		if err := c.LoadFile(ctx, localPath); err != nil {
			c.logger.Error("failed to load layer file", "path", localPath, "error", err)
			continue
		}
		stats.Added++
	}

	for source := range loaded {
		if _, ok := remote[source]; ok {
			continue
		}
		c.logger.Info("removing layer file not in storage", "path", source)
		c.UnloadFile(ctx, source)
		if err := os.Remove(source); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("failed to delete local cache file", "path", source, "error", err)
		}
		stats.Removed++
	}

	c.logger.Info("sync completed", "added", stats.Added, "removed", stats.Removed, "total", c.LayerCount())
	return stats, nil
}

// deriveLayerID extracts a layer ID from a file path or object key.
func deriveLayerID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
