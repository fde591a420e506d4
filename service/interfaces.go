package service

import (
	"context"

	"powerball/events"
	"powerball/models"
	"powerball/source"
)

// UpsertOutcome reports what an upsert did to the stored draw
type UpsertOutcome int

const (
	UpsertUnchanged UpsertOutcome = iota
	UpsertInserted
	UpsertUpdated
)

func (o UpsertOutcome) String() string {
	switch o {
	case UpsertInserted:
		return "inserted"
	case UpsertUpdated:
		return "updated"
	default:
		return "unchanged"
	}
}

// DrawRepository defines the interface for draw data access
type DrawRepository interface {
	// Upsert inserts the draw, or updates it in place when its content differs
	Upsert(ctx context.Context, draw *models.Draw) (UpsertOutcome, error)

	// GetByNumber retrieves a draw by its draw number
	GetByNumber(ctx context.Context, drawNumber int) (*models.Draw, error)

	// GetRecent returns draws newest first; limit <= 0 returns all draws
	GetRecent(ctx context.Context, limit int) ([]*models.Draw, error)

	// GetLatest returns the newest draw, or nil when the store is empty
	GetLatest(ctx context.Context) (*models.Draw, error)

	// Count returns the number of stored draws
	Count(ctx context.Context) (int, error)

	// DeleteAll removes every draw and returns how many were removed
	DeleteAll(ctx context.Context) (int64, error)
}

// SyncRunRepository keeps the history of sync runs
type SyncRunRepository interface {
	// Record stores a finished run
	Record(ctx context.Context, result *models.SyncResult) error

	// GetRecent returns the most recent runs, newest first
	GetRecent(ctx context.Context, limit int) ([]*models.SyncResult, error)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and delivers pending events
	Commit() error

	// Rollback rolls back the transaction and drops pending events
	Rollback() error

	// DrawRepository returns the draw repository bound to the transaction
	DrawRepository() DrawRepository

	// EventBus returns the publisher whose events are delivered after commit
	EventBus() events.Publisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// DrawSource fetches raw draw entries from the outside world
type DrawSource interface {
	FetchYear(ctx context.Context, year int) (*source.FetchResult, error)
	FetchLatest(ctx context.Context) (*source.FetchResult, error)
}

// SyncGuard grants at most one sync run at a time.
// TryAcquire returns ErrSyncInProgress when another run holds the guard.
type SyncGuard interface {
	TryAcquire(ctx context.Context) (release func(), err error)
}
