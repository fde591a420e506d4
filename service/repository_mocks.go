package service

import (
	"context"

	"powerball/events"
	"powerball/models"
	"powerball/source"

	"github.com/stretchr/testify/mock"
)

// MockDrawRepository is a mock implementation of DrawRepository
type MockDrawRepository struct {
	mock.Mock
}

func (m *MockDrawRepository) Upsert(ctx context.Context, draw *models.Draw) (UpsertOutcome, error) {
	args := m.Called(ctx, draw)
	return args.Get(0).(UpsertOutcome), args.Error(1)
}

func (m *MockDrawRepository) GetByNumber(ctx context.Context, drawNumber int) (*models.Draw, error) {
	args := m.Called(ctx, drawNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Draw), args.Error(1)
}

func (m *MockDrawRepository) GetRecent(ctx context.Context, limit int) ([]*models.Draw, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Draw), args.Error(1)
}

func (m *MockDrawRepository) GetLatest(ctx context.Context) (*models.Draw, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Draw), args.Error(1)
}

func (m *MockDrawRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockDrawRepository) DeleteAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockSyncRunRepository is a mock implementation of SyncRunRepository
type MockSyncRunRepository struct {
	mock.Mock
}

func (m *MockSyncRunRepository) Record(ctx context.Context, result *models.SyncResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockSyncRunRepository) GetRecent(ctx context.Context, limit int) ([]*models.SyncResult, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SyncResult), args.Error(1)
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) DrawRepository() DrawRepository {
	args := m.Called()
	return args.Get(0).(DrawRepository)
}

func (m *MockUnitOfWork) EventBus() events.Publisher {
	args := m.Called()
	return args.Get(0).(events.Publisher)
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockEventPublisher is a mock implementation of events.Publisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(e events.Event) {
	m.Called(e)
}

// MockDrawSource is a mock implementation of DrawSource
type MockDrawSource struct {
	mock.Mock
}

func (m *MockDrawSource) FetchYear(ctx context.Context, year int) (*source.FetchResult, error) {
	args := m.Called(ctx, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*source.FetchResult), args.Error(1)
}

func (m *MockDrawSource) FetchLatest(ctx context.Context) (*source.FetchResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*source.FetchResult), args.Error(1)
}
