package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrRateLimited is returned when a manual sync follows the previous one
// too closely.
var ErrRateLimited = errors.New("rate limit exceeded")

// DefaultSyncCooldown is the minimum time between manual syncs.
const DefaultSyncCooldown = 30 * time.Second

// SyncResult contains the result of a sync operation.
type SyncResult struct {
	FilesAdded      int       `json:"files_added"`
	FilesRemoved    int       `json:"files_removed"`
	LayersTotal     int       `json:"layers_total"`
	SyncedAt        time.Time `json:"synced_at"`
	NextScheduledAt time.Time `json:"next_scheduled_at,omitempty"`
}

// SyncService keeps the layer catalog in step with storage, on a timer
// and on demand.
type SyncService struct {
	catalog  *LayerCatalog
	interval time.Duration
	cooldown time.Duration
	logger   *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// run serializes catalog syncs
	run sync.Mutex

	mu         sync.Mutex
	lastManual time.Time
	nextSync   time.Time
}

// NewSyncService creates a new sync service.
func NewSyncService(catalog *LayerCatalog, interval time.Duration, logger *slog.Logger) *SyncService {
	return &SyncService{
		catalog:  catalog,
		interval: interval,
		cooldown: DefaultSyncCooldown,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sync scheduler.
func (s *SyncService) Start(ctx context.Context) {
	s.logger.Info("starting sync service", "interval", s.interval)

	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *SyncService) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.scheduleNext()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync service stopped", "reason", ctx.Err())
			return
		case <-s.stopCh:
			s.logger.Info("sync service stopped")
			return
		case <-ticker.C:
			if _, err := s.sync(ctx); err != nil {
				s.logger.Error("scheduled sync failed", "error", err)
			}
			s.scheduleNext()
		}
	}
}

// Stop stops the scheduler and waits for a running sync to finish.
func (s *SyncService) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping sync service")
		close(s.stopCh)
	})
	s.wg.Wait()
}

// TriggerSync runs a sync now. It returns ErrRateLimited when called again
// within the cooldown.
func (s *SyncService) TriggerSync(ctx context.Context) (SyncResult, error) {
	s.mu.Lock()
	if !s.lastManual.IsZero() && time.Since(s.lastManual) < s.cooldown {
		s.mu.Unlock()
		return SyncResult{}, ErrRateLimited
	}
	s.lastManual = time.Now()
	s.mu.Unlock()

	return s.sync(ctx)
}

func (s *SyncService) sync(ctx context.Context) (SyncResult, error) {
	s.run.Lock()
	defer s.run.Unlock()

	stats, err := s.catalog.Sync(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	s.mu.Lock()
	next := s.nextSync
	s.mu.Unlock()

	return SyncResult{
		FilesAdded:      stats.Added,
		FilesRemoved:    stats.Removed,
		LayersTotal:     s.catalog.LayerCount(),
		SyncedAt:        time.Now(),
		NextScheduledAt: next,
	}, nil
}

func (s *SyncService) scheduleNext() {
	s.mu.Lock()
	s.nextSync = time.Now().Add(s.interval)
	s.mu.Unlock()
}

// Interval returns the sync interval.
func (s *SyncService) Interval() time.Duration {
	return s.interval
}
