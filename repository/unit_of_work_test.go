package repository

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"powerball/events"
	"powerball/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitOfWork_CommitFlushesEvents(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	bus := events.NewBus()
	factory := NewUnitOfWorkFactory(testDB.DB, bus)
	ctx := context.Background()

	var delivered atomic.Int32
	bus.Subscribe(events.EventTypeDrawRecorded, func(ctx context.Context, e events.Event) {
		delivered.Add(1)
	})

	draw := testutil.CreateTestDraw(1001, time.Date(2018, 4, 19, 0, 0, 0, 0, time.UTC))

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	_, err := uow.DrawRepository().Upsert(ctx, draw)
	require.NoError(t, err)
	uow.EventBus().Publish(events.DrawRecordedEvent{Draw: *draw, Created: true})
	require.NoError(t, uow.Commit())
	require.NoError(t, uow.Rollback())
	bus.Wait()

	assert.Equal(t, int32(1), delivered.Load())

	stored, err := NewDrawRepository(testDB.DB).GetByNumber(ctx, 1001)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func TestUnitOfWork_RollbackDiscards(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	bus := events.NewBus()
	factory := NewUnitOfWorkFactory(testDB.DB, bus)
	ctx := context.Background()

	var delivered atomic.Int32
	bus.Subscribe(events.EventTypeDrawRecorded, func(ctx context.Context, e events.Event) {
		delivered.Add(1)
	})

	draw := testutil.CreateTestDraw(1001, time.Date(2018, 4, 19, 0, 0, 0, 0, time.UTC))

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	assert.Error(t, uow.Begin(ctx))
	_, err := uow.DrawRepository().Upsert(ctx, draw)
	require.NoError(t, err)
	uow.EventBus().Publish(events.DrawRecordedEvent{Draw: *draw, Created: true})
	require.NoError(t, uow.Rollback())
	bus.Wait()

	assert.Zero(t, delivered.Load())
	count, err := NewDrawRepository(testDB.DB).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUnitOfWork_RepositoryBeforeBeginPanics(t *testing.T) {
	uow := NewUnitOfWorkFactory(nil, events.NewBus()).Create()
	assert.Panics(t, func() { uow.DrawRepository() })
	assert.Error(t, uow.Commit())
	assert.NoError(t, uow.Rollback())
}
