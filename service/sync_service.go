package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"powerball/events"
	"powerball/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// SyncState is the lifecycle position of the orchestrator
type SyncState string

const (
	SyncStateIdle      SyncState = "idle"
	SyncStateRunning   SyncState = "running"
	SyncStateCompleted SyncState = "completed"
	SyncStateFailed    SyncState = "failed"
)

// Options selects what a sync covers
type Options struct {
	Full       bool
	TargetYear int // incremental only; replaces the computed window
}

// SyncStatus is a point-in-time view of the orchestrator
type SyncStatus struct {
	State      SyncState          `json:"state"`
	RunID      string             `json:"run_id,omitempty"`
	Mode       models.SyncMode    `json:"mode,omitempty"`
	StartedAt  *time.Time         `json:"started_at,omitempty"`
	LastResult *models.SyncResult `json:"last_result,omitempty"`
}

// SyncConfig holds the orchestrator settings
type SyncConfig struct {
	StartYear  int
	StaleAfter time.Duration
	Location   *time.Location
}

// SyncService runs full and incremental synchronisations of the draw store
type SyncService struct {
	source     DrawSource
	reconciler *Reconciler
	uowFactory UnitOfWorkFactory
	draws      DrawRepository
	runs       SyncRunRepository
	guard      SyncGuard
	publisher  events.Publisher
	cfg        SyncConfig
	now        func() time.Time

	mu      sync.Mutex
	state   SyncState
	current *models.SyncResult
	last    *models.SyncResult
}

// NewSyncService creates a new sync service.
// runs and publisher may be nil.
func NewSyncService(
	src DrawSource,
	uowFactory UnitOfWorkFactory,
	draws DrawRepository,
	runs SyncRunRepository,
	guard SyncGuard,
	publisher events.Publisher,
	cfg SyncConfig,
) *SyncService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if guard == nil {
		guard = NewLocalSyncGuard()
	}
	return &SyncService{
		source:     src,
		reconciler: NewReconciler(uowFactory),
		uowFactory: uowFactory,
		draws:      draws,
		runs:       runs,
		guard:      guard,
		publisher:  publisher,
		cfg:        cfg,
		now:        time.Now,
		state:      SyncStateIdle,
	}
}

// Sync runs one synchronisation to completion.
// A busy guard yields a result with status busy and ErrSyncInProgress.
// Store failures yield a result with status failed and a *StoreError.
func (s *SyncService) Sync(ctx context.Context, opts Options) (*models.SyncResult, error) {
	mode := models.SyncModeIncremental
	if opts.Full {
		mode = models.SyncModeFull
	}

	if err := s.validate(opts); err != nil {
		return nil, err
	}

	// Runs are not cancelled by the caller going away
	ctx = context.WithoutCancel(ctx)

	release, err := s.guard.TryAcquire(ctx)
	if err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			busy := models.NewSyncResult("", mode, s.now())
			busy.Status = models.SyncStatusBusy
			busy.FinishedAt = busy.StartedAt
			busy.Error = ErrSyncInProgress.Error()
			log.WithField("mode", mode).Info("Sync requested while another is running")
			return busy, ErrSyncInProgress
		}
		return nil, fmt.Errorf("failed to acquire sync guard: %w", err)
	}
	defer release()

	result := models.NewSyncResult(uuid.NewString(), mode, s.now())
	s.setRunning(result)

	logger := log.WithFields(log.Fields{
		"runID": result.RunID,
		"mode":  mode,
	})
	logger.Info("Starting draw sync")

	runErr := s.run(ctx, opts, result, logger)

	result.FinishedAt = s.now()
	if runErr != nil {
		result.Status = models.SyncStatusFailed
		result.Error = runErr.Error()
	} else {
		result.Status = models.SyncStatusCompleted
	}
	s.setFinished(result)

	fields := log.Fields{
		"years":    result.YearsProcessed,
		"inserted": result.Inserted,
		"updated":  result.Updated,
		"skipped":  result.Skipped,
		"problems": result.ProblemCount,
		"duration": result.Duration().String(),
	}
	if runErr != nil {
		logger.WithFields(fields).WithError(runErr).Error("Draw sync failed")
	} else {
		logger.WithFields(fields).Info("Draw sync completed")
	}

	if s.runs != nil {
		if err := s.runs.Record(ctx, result); err != nil {
			logger.WithError(err).Warn("Failed to record sync run")
		}
	}
	if s.publisher != nil {
		s.publisher.Publish(events.SyncCompletedEvent{Result: *result})
	}

	return result, runErr
}

// Status returns the current state and the last finished result
func (s *SyncService) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SyncStatus{State: s.state, LastResult: s.last}
	if s.current != nil {
		started := s.current.StartedAt
		status.RunID = s.current.RunID
		status.Mode = s.current.Mode
		status.StartedAt = &started
	}
	return status
}

func (s *SyncService) validate(opts Options) error {
	if opts.Full && opts.TargetYear != 0 {
		return fmt.Errorf("%w: a full sync always covers every year", ErrInvalidOptions)
	}
	current := s.now().In(s.cfg.Location).Year()
	if opts.TargetYear < 0 || opts.TargetYear > current {
		return fmt.Errorf("%w: year %d is outside 1..%d", ErrInvalidOptions, opts.TargetYear, current)
	}
	return nil
}

func (s *SyncService) run(ctx context.Context, opts Options, result *models.SyncResult, logger *log.Entry) error {
	years, backfill, err := s.plan(ctx, opts)
	if err != nil {
		return err
	}
	upsert := s.reconciler.Upsert
	if backfill {
		upsert = s.reconciler.Backfill
	}

	if opts.Full {
		removed, err := s.reset(ctx)
		if err != nil {
			return err
		}
		logger.WithField("removed", removed).Info("Cleared draw store for full sync")
	}

	for _, year := range years {
		result.YearsProcessed = append(result.YearsProcessed, year)
		yearLogger := logger.WithField("year", year)

		fetched, err := s.source.FetchYear(ctx, year)
		if err != nil {
			result.AddProblem(fmt.Sprintf("year %d: %v", year, err))
			yearLogger.WithError(err).Warn("Failed to fetch year, continuing")
			continue
		}

		reconciled, err := upsert(ctx, fetched.Entries())
		result.AddCounts(reconciled.Inserted, reconciled.Updated, reconciled.Skipped)
		for _, p := range reconciled.Problems {
			result.AddProblem(fmt.Sprintf("year %d: %s", year, p))
		}
		if err != nil {
			return err
		}

		yearLogger.WithFields(log.Fields{
			"source":   fetched.Source,
			"entries":  fetched.Len(),
			"inserted": reconciled.Inserted,
			"updated":  reconciled.Updated,
			"skipped":  reconciled.Skipped,
			"problems": len(reconciled.Problems),
		}).Info("Processed year")
	}

	return nil
}

// plan returns the years a run covers, ascending, and whether the run
// loads history rather than picking up new draws
func (s *SyncService) plan(ctx context.Context, opts Options) ([]int, bool, error) {
	now := s.now().In(s.cfg.Location)
	current := now.Year()

	if opts.Full {
		start := min(s.cfg.StartYear, current)
		years := make([]int, 0, current-start+1)
		for y := start; y <= current; y++ {
			years = append(years, y)
		}
		return years, true, nil
	}

	if opts.TargetYear != 0 {
		return []int{opts.TargetYear}, false, nil
	}

	latest, err := s.draws.GetLatest(ctx)
	if err != nil {
		return nil, false, storeError("read latest draw", err)
	}
	if latest == nil {
		return []int{current - 1, current}, true, nil
	}

	today := models.DateOnly(now)
	if today.Sub(latest.DrawDate) > s.cfg.StaleAfter {
		return []int{current - 1, current}, false, nil
	}
	return []int{current}, false, nil
}

// reset deletes every stored draw in one transaction
func (s *SyncService) reset(ctx context.Context) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, storeError("begin reset", err)
	}
	defer func() {
		if err := uow.Rollback(); err != nil {
			log.WithError(err).Error("Failed to rollback store reset")
		}
	}()

	removed, err := uow.DrawRepository().DeleteAll(ctx)
	if err != nil {
		return 0, storeError("clear draws", err)
	}
	if err := uow.Commit(); err != nil {
		return 0, storeError("commit reset", err)
	}
	return removed, nil
}

func (s *SyncService) setRunning(result *models.SyncResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SyncStateRunning
	s.current = result
}

func (s *SyncService) setFinished(result *models.SyncResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if result.Status == models.SyncStatusFailed {
		s.state = SyncStateFailed
	} else {
		s.state = SyncStateCompleted
	}
	s.current = nil
	finished := *result
	s.last = &finished
}
