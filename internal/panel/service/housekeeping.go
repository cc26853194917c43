package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/opsdeck/opsdeck/internal/panel/store"
)

// DefaultExpiredInviteRetention keeps expired invites queryable for a while
// so redemption attempts can still get a precise "expired" answer before the
// row disappears.
const DefaultExpiredInviteRetention = 30 * 24 * time.Hour

// HousekeepingService periodically purges stale database records to prevent
// unbounded growth of the invites table.
type HousekeepingService struct {
	Store     store.Store
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service. A zero interval
// defaults to 1 hour; a zero retention defaults to DefaultExpiredInviteRetention.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if retention <= 0 {
		retention = DefaultExpiredInviteRetention
	}

	return &HousekeepingService{
		Store:     store,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

// run is the main background worker loop.
func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup deletes invites that expired longer ago than the retention window.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-s.Retention)

	if err := s.Store.Invites().DeleteExpiredInvitesBefore(ctx, cutoff); err != nil {
		s.Logger.Error("failed to purge expired invites", "error", err)
		return
	}
	s.Logger.Debug("purged expired invites", "cutoff", cutoff)
}
