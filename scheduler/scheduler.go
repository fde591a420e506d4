package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"powerball/models"
	"powerball/service"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Syncer runs a synchronisation
type Syncer interface {
	Sync(ctx context.Context, opts service.Options) (*models.SyncResult, error)
}

// Config holds scheduler settings
type Config struct {
	Spec          string // standard five-field cron expression
	Location      *time.Location
	SyncOnStartup bool
}

// SyncScheduler triggers incremental syncs on a cron schedule
type SyncScheduler struct {
	syncer   Syncer
	cfg      Config
	schedule cron.Schedule
	cron     *cron.Cron
	startup  sync.WaitGroup
}

// New parses the schedule and builds a scheduler
func New(syncer Syncer, cfg Config) (*SyncScheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	schedule, err := cron.ParseStandard(cfg.Spec)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schedule %q: %w", cfg.Spec, err)
	}
	return &SyncScheduler{
		syncer:   syncer,
		cfg:      cfg,
		schedule: schedule,
		cron:     cron.New(cron.WithLocation(cfg.Location)),
	}, nil
}

// Start begins firing scheduled syncs and returns a cleanup function.
// The cleanup waits for a running sync, scheduled or startup, to finish.
func (s *SyncScheduler) Start(ctx context.Context) func() {
	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		s.runOnce(ctx, "schedule")
	}))
	s.cron.Start()

	log.WithFields(log.Fields{
		"schedule": s.cfg.Spec,
		"timezone": s.cfg.Location.String(),
		"next":     s.Next(),
	}).Info("Sync scheduler started")

	if s.cfg.SyncOnStartup {
		s.startup.Add(1)
		go func() {
			defer s.startup.Done()
			s.runOnce(ctx, "startup")
		}()
	}

	return func() {
		<-s.cron.Stop().Done()
		s.startup.Wait()
		log.Info("Sync scheduler stopped")
	}
}

// Next returns the next scheduled fire time
func (s *SyncScheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return s.schedule.Next(time.Now().In(s.cfg.Location))
	}
	return entries[0].Next
}

func (s *SyncScheduler) runOnce(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	logger := log.WithField("trigger", trigger)

	result, err := s.syncer.Sync(ctx, service.Options{})
	switch {
	case errors.Is(err, service.ErrSyncInProgress):
		logger.Info("Skipping scheduled sync, another run is in progress")
	case err != nil:
		logger.WithError(err).Error("Scheduled sync failed")
	default:
		logger.WithFields(log.Fields{
			"runID":    result.RunID,
			"upserted": result.Upserted,
			"problems": result.ProblemCount,
		}).Info("Scheduled sync finished")
	}
}
