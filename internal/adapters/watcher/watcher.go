// Package watcher reloads catalog layers when files in the layer directory
// change.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jobrunner/geoalgebra/internal/domain"
)

// Change is the net effect of a burst of file system events on one file.
type Change int

// File changes.
const (
	Created Change = iota
	Modified
	Removed
)

// String returns the string representation of the change.
func (c Change) String() string {
	switch c {
	case Created:
		return "create"
	case Modified:
		return "modify"
	case Removed:
		return "remove"
	default:
		return "unknown"
	}
}

// Target is kept in sync with the watched directory. LayerCatalog
// implements it.
type Target interface {
	LoadFile(ctx context.Context, path string) error
	UnloadFile(ctx context.Context, path string) int
}

// Config holds watcher configuration.
type Config struct {
	Dir      string
	Debounce time.Duration // default 500ms
}

// Watcher watches a layer directory tree and applies settled changes to a
// Target. Event paths are joined onto Dir as configured, so they match the
// paths the catalog loaded from the same directory.
type Watcher struct {
	fs       *fsnotify.Watcher
	target   Target
	logger   *slog.Logger
	dir      string
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*pending
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

type pending struct {
	change Change
	timer  *time.Timer
}

// New creates a watcher for cfg.Dir.
func New(cfg Config, target Target, logger *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	return &Watcher{
		fs:       w,
		target:   target,
		logger:   logger,
		dir:      cfg.Dir,
		debounce: cfg.Debounce,
		pending:  make(map[string]*pending),
	}, nil
}

// Start watches the directory and its subdirectories until ctx is done or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.dir); err != nil {
		return err
	}
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()

	w.logger.Info("watching layer directory", "path", w.dir, "debounce", w.debounce)
	return nil
}

// Stop stops watching and waits for running reloads.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.fs.Close()

	w.mu.Lock()
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
	return err
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.fs.Add(path)
	})
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.observe(ctx, event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) observe(ctx context.Context, event fsnotify.Event) {
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}
	if !domain.IsLayerFile(event.Name) {
		return
	}

	change := changeOf(event.Op)
	w.logger.Debug("file event", "path", event.Name, "op", event.Op.String())

	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[event.Name]; ok {
		p.change = merge(p.change, change)
		p.timer.Reset(w.debounce)
		return
	}
	path := event.Name
	w.pending[path] = &pending{
		change: change,
		timer: time.AfterFunc(w.debounce, func() {
			w.fire(ctx, path)
		}),
	}
}

// fire applies the settled change for path.
func (w *Watcher) fire(ctx context.Context, path string) {
	w.mu.Lock()
	p, ok := w.pending[path]
	if ok {
		delete(w.pending, path)
	}
	w.mu.Unlock()
	if !ok || ctx.Err() != nil {
		return
	}

	w.wg.Add(1)
	defer w.wg.Done()

	w.logger.Info("applying layer file change", "path", path, "change", p.change.String())
	switch p.change {
	case Removed:
		w.target.UnloadFile(ctx, path)
	default:
		if err := w.target.LoadFile(ctx, path); err != nil {
			w.logger.Error("failed to reload layer file", "path", path, "error", err)
		}
	}
}

// changeOf maps an fsnotify operation onto a Change. A rename is a
// removal from the old name; the new name arrives as a create.
func changeOf(op fsnotify.Op) Change {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return Removed
	case op.Has(fsnotify.Create):
		return Created
	default:
		return Modified
	}
}

// merge folds a new change into a pending one. A removal wins until the
// file is created again.
func merge(prev, next Change) Change {
	switch {
	case next == Removed:
		return Removed
	case prev == Removed && next == Created:
		return Created
	case prev == Removed:
		return Removed
	case prev == Created:
		return Created
	default:
		return next
	}
}
