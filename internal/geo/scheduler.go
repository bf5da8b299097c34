package geo

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// refreshInterval is how often the scheduler re-downloads the geo
// databases. Upstream publishes daily; weekly staleness is acceptable.
const refreshInterval = 7 * 24 * time.Hour

// Scheduler refreshes the geo databases on a fixed interval. When a
// refresh lands while a tunnel is up, the onUpdated hook lets the caller
// restart it so the new data takes effect.
type Scheduler struct {
	scheduler gocron.Scheduler
	manager   *Manager
	onUpdated func(context.Context)
	log       *zap.Logger
	running   bool
}

// NewScheduler creates a scheduler for the given manager. onUpdated may
// be nil.
func NewScheduler(manager *Manager, onUpdated func(context.Context), log *zap.Logger) (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		scheduler: scheduler,
		manager:   manager,
		onUpdated: onUpdated,
		log:       log,
	}, nil
}

// Start begins periodic refreshes. If the assets are missing it also
// kicks off an immediate download.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	_, err := s.scheduler.NewJob(
		gocron.DurationJob(refreshInterval),
		gocron.NewTask(func() {
			s.refresh(ctx)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create refresh job: %w", err)
	}

	s.scheduler.Start()
	s.running = true

	if !s.manager.AssetsPresent() {
		go s.refresh(ctx)
	}
	return nil
}

// Stop shuts the scheduler down.
func (s *Scheduler) Stop() error {
	if !s.running {
		return fmt.Errorf("scheduler is not running")
	}
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	s.running = false
	return nil
}

func (s *Scheduler) refresh(ctx context.Context) {
	if err := s.manager.Download(ctx); err != nil {
		s.log.Warn("geo refresh failed", zap.Error(err))
		return
	}
	if s.onUpdated != nil {
		s.onUpdated(ctx)
	}
}
