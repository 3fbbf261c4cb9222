package catalog

import (
	"context"
	"log"
	"time"

	"github.com/Clark-Hu/cinesocial/internal/tmdb"
)

// PageSyncer runs a multi-page listing sync.
type PageSyncer interface {
	SyncPages(ctx context.Context, kind tmdb.ListKind, first, last int) ([]SyncResult, error)
}

// Scheduler syncs the now-playing listing on a fixed interval.
type Scheduler struct {
	syncer   PageSyncer
	interval time.Duration
	pages    int
	logger   *log.Logger
}

// NewScheduler builds a scheduler covering pages 1..pages every interval.
func NewScheduler(syncer PageSyncer, interval time.Duration, pages int, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	if pages <= 0 {
		pages = 1
	}
	return &Scheduler{syncer: syncer, interval: interval, pages: pages, logger: logger}
}

// Run syncs once immediately and then on every tick until ctx is cancelled.
// A failed run is logged and the loop carries on. A non-positive interval
// disables the scheduler.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Println("catalog: scheduler disabled")
		return
	}
	s.logger.Printf("catalog: scheduler started (interval=%s, pages=%d)", s.interval, s.pages)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx)
		select {
		case <-ctx.Done():
			s.logger.Println("catalog: scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	results, err := s.syncer.SyncPages(ctx, tmdb.NowPlaying, 1, s.pages)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Printf("catalog: scheduled sync failed after %d page(s): %v", len(results), err)
		return
	}
	inserted := 0
	for _, r := range results {
		inserted += r.Inserted
	}
	s.logger.Printf("catalog: scheduled sync complete (pages=%d inserted=%d)", len(results), inserted)
}
