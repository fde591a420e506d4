package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"powerball/events"
	"powerball/models"
	"powerball/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var adelaide = time.FixedZone("ACST", 9*3600+1800)

func newTestSyncService(src DrawSource, store *memStore, now time.Time) *SyncService {
	svc := NewSyncService(src, store, store, nil, NewLocalSyncGuard(), nil, SyncConfig{
		StartYear:  2018,
		StaleAfter: 7 * 24 * time.Hour,
		Location:   adelaide,
	})
	svc.now = func() time.Time { return now }
	return svc
}

func backfill2018() []source.RawEntry {
	return []source.RawEntry{
		apiEntry(1001, "2018-04-19", []int{1, 2, 3, 4, 5, 6, 7}, 10),
		apiEntry(1002, "2018-04-26", []int{8, 9, 10, 11, 12, 13, 14}, 3),
		apiEntry(1000, "2018-04-12", []int{15, 16, 17, 18, 19, 20, 21}, 20),
	}
}

func TestSync_EndToEndBackfill(t *testing.T) {
	store := newMemStore()
	src := newFakeSource()
	src.years[2018] = backfill2018()

	svc := newTestSyncService(src, store, time.Date(2018, 6, 1, 12, 0, 0, 0, adelaide))
	result, err := svc.Sync(context.Background(), Options{Full: true})
	require.NoError(t, err)

	assert.Equal(t, models.SyncStatusCompleted, result.Status)
	assert.Equal(t, models.SyncModeFull, result.Mode)
	assert.Equal(t, []int{2018}, result.YearsProcessed)
	assert.Equal(t, 3, result.Inserted)
	assert.Equal(t, 3, result.Upserted)
	assert.NotEmpty(t, result.RunID)

	query := NewQueryService(store, nil)
	recent, err := query.RecentDraws(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 1002, recent[0].DrawNumber)

	draw1001, err := store.GetByNumber(context.Background(), 1001)
	require.NoError(t, err)
	require.NotNil(t, draw1001)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, draw1001.MainNumbers)
	assert.Equal(t, 10, draw1001.Powerball)
}

func TestSync_FullResetLeavesOnlyFetchedDraws(t *testing.T) {
	store := newMemStore()
	store.seed(mustDraw(5, time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), []int{1, 2, 3, 4, 5, 6, 7}, 1))

	src := newFakeSource()
	src.years[2018] = backfill2018()
	src.years[2019] = []source.RawEntry{apiEntry(1040, "2019-01-17", []int{2, 4, 6, 8, 10, 12, 14}, 7)}

	svc := newTestSyncService(src, store, time.Date(2019, 2, 1, 12, 0, 0, 0, adelaide))
	result, err := svc.Sync(context.Background(), Options{Full: true})
	require.NoError(t, err)

	assert.Equal(t, []int{2018, 2019}, src.called())
	assert.Equal(t, []int{2018, 2019}, result.YearsProcessed)

	stored := store.snapshot()
	assert.Len(t, stored, 4)
	assert.NotContains(t, stored, 5)
	for _, n := range []int{1000, 1001, 1002, 1040} {
		assert.Contains(t, stored, n)
	}
}

func TestSync_FetchFailureIsAProblem(t *testing.T) {
	store := newMemStore()
	src := newFakeSource()
	src.years[2018] = backfill2018()
	src.fail[2019] = errors.New("feed down")
	src.years[2020] = []source.RawEntry{apiEntry(1100, "2020-01-02", []int{1, 3, 5, 7, 9, 11, 13}, 2)}

	svc := newTestSyncService(src, store, time.Date(2020, 3, 1, 12, 0, 0, 0, adelaide))
	result, err := svc.Sync(context.Background(), Options{Full: true})
	require.NoError(t, err)

	assert.Equal(t, models.SyncStatusCompleted, result.Status)
	assert.Equal(t, []int{2018, 2019, 2020}, result.YearsProcessed)
	assert.Equal(t, 4, result.Inserted)
	assert.Equal(t, 1, result.ProblemCount)
	assert.Contains(t, result.Problems[0], "year 2019")
	assert.Equal(t, SyncStateCompleted, svc.Status().State)
}

func TestSync_MalformedEntriesAreProblems(t *testing.T) {
	store := newMemStore()
	src := newFakeSource()
	src.years[2018] = append(backfill2018(), apiEntry(1003, "2018-05-03", []int{1, 2, 3, 4, 5, 6}, 10))

	svc := newTestSyncService(src, store, time.Date(2018, 6, 1, 12, 0, 0, 0, adelaide))
	result, err := svc.Sync(context.Background(), Options{TargetYear: 2018})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Inserted)
	assert.Equal(t, 1, result.ProblemCount)
	assert.Contains(t, result.Problems[0], "draw 1003")
}

func TestSync_IncrementalWindow(t *testing.T) {
	now := time.Date(2024, 1, 10, 20, 0, 0, 0, adelaide)

	tests := []struct {
		name   string
		seed   []*models.Draw
		opts   Options
		expect []int
	}{
		{"empty store looks back a year", nil, Options{}, []int{2023, 2024}},
		{"fresh store fetches current year", []*models.Draw{mustDraw(1450, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), []int{1, 2, 3, 4, 5, 6, 7}, 1)}, Options{}, []int{2024}},
		{"stale store looks back a year", []*models.Draw{mustDraw(1440, time.Date(2023, 12, 21, 0, 0, 0, 0, time.UTC), []int{1, 2, 3, 4, 5, 6, 7}, 1)}, Options{}, []int{2023, 2024}},
		{"target year replaces window", nil, Options{TargetYear: 2019}, []int{2019}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			store.seed(tt.seed...)
			src := newFakeSource()

			svc := newTestSyncService(src, store, now)
			result, err := svc.Sync(context.Background(), tt.opts)
			require.NoError(t, err)

			assert.Equal(t, models.SyncModeIncremental, result.Mode)
			assert.Equal(t, tt.expect, src.called())
			assert.Equal(t, tt.expect, result.YearsProcessed)
			assert.Len(t, store.snapshot(), len(tt.seed))
		})
	}
}

func TestSync_UsesConfiguredTimezoneForCurrentYear(t *testing.T) {
	store := newMemStore()
	store.seed(mustDraw(1450, time.Date(2023, 12, 28, 0, 0, 0, 0, time.UTC), []int{1, 2, 3, 4, 5, 6, 7}, 1))
	src := newFakeSource()

	// Still 2023 in UTC, already 2024 in Adelaide
	svc := newTestSyncService(src, store, time.Date(2023, 12, 31, 15, 0, 0, 0, time.UTC))
	_, err := svc.Sync(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{2024}, src.called())
}

func TestSync_RejectsInvalidOptions(t *testing.T) {
	svc := newTestSyncService(newFakeSource(), newMemStore(), time.Date(2024, 1, 10, 0, 0, 0, 0, adelaide))

	_, err := svc.Sync(context.Background(), Options{Full: true, TargetYear: 2020})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = svc.Sync(context.Background(), Options{TargetYear: 2030})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	assert.Equal(t, SyncStateIdle, svc.Status().State)
}

func TestSync_StoreFailureFailsRun(t *testing.T) {
	store := newMemStore()
	store.failOn[1001] = errors.New("database is gone")
	src := newFakeSource()
	src.years[2018] = backfill2018()

	svc := newTestSyncService(src, store, time.Date(2018, 6, 1, 12, 0, 0, 0, adelaide))
	result, err := svc.Sync(context.Background(), Options{TargetYear: 2018})

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	require.NotNil(t, result)
	assert.Equal(t, models.SyncStatusFailed, result.Status)
	assert.Contains(t, result.Error, "database is gone")

	status := svc.Status()
	assert.Equal(t, SyncStateFailed, status.State)
	require.NotNil(t, status.LastResult)
	assert.Equal(t, result.RunID, status.LastResult.RunID)
}

func TestSync_LatestLookupFailureFailsRun(t *testing.T) {
	draws := new(MockDrawRepository)
	draws.On("GetLatest", mock.Anything).Return(nil, errors.New("timeout"))

	svc := NewSyncService(newFakeSource(), newMemStore(), draws, nil, nil, nil, SyncConfig{StartYear: 2018, StaleAfter: time.Hour})
	result, err := svc.Sync(context.Background(), Options{})

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, models.SyncStatusFailed, result.Status)
}

func TestSync_ConcurrentRunIsRejected(t *testing.T) {
	store := newMemStore()
	src := newFakeSource()
	src.years[2018] = backfill2018()
	src.started = make(chan int, 1)
	src.block = make(chan struct{})

	svc := newTestSyncService(src, store, time.Date(2018, 6, 1, 12, 0, 0, 0, adelaide))

	type outcome struct {
		result *models.SyncResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := svc.Sync(context.Background(), Options{TargetYear: 2018})
		done <- outcome{r, err}
	}()

	select {
	case <-src.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first sync never reached the source")
	}
	assert.Equal(t, SyncStateRunning, svc.Status().State)
	assert.NotEmpty(t, svc.Status().RunID)

	busy, err := svc.Sync(context.Background(), Options{Full: true})
	assert.ErrorIs(t, err, ErrSyncInProgress)
	require.NotNil(t, busy)
	assert.Equal(t, models.SyncStatusBusy, busy.Status)

	close(src.block)
	first := <-done
	require.NoError(t, first.err)
	assert.Equal(t, 3, first.result.Inserted)
	assert.Equal(t, []int{2018}, src.called())

	// Guard is released after the run
	src.started = nil
	_, err = svc.Sync(context.Background(), Options{TargetYear: 2018})
	assert.NoError(t, err)
}

func TestSync_RecordsAndPublishesResult(t *testing.T) {
	store := newMemStore()
	src := newFakeSource()
	src.years[2018] = backfill2018()

	runs := new(MockSyncRunRepository)
	runs.On("Record", mock.Anything, mock.MatchedBy(func(r *models.SyncResult) bool {
		return r.Status == models.SyncStatusCompleted && r.Inserted == 3
	})).Return(nil)

	publisher := new(MockEventPublisher)
	publisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		completed, ok := e.(events.SyncCompletedEvent)
		return ok && completed.Result.Mode == models.SyncModeFull
	})).Return()

	svc := NewSyncService(src, store, store, runs, nil, publisher, SyncConfig{StartYear: 2018, StaleAfter: time.Hour, Location: adelaide})
	svc.now = func() time.Time { return time.Date(2018, 6, 1, 12, 0, 0, 0, adelaide) }

	_, err := svc.Sync(context.Background(), Options{Full: true})
	require.NoError(t, err)

	runs.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestSync_RecordFailureDoesNotFailRun(t *testing.T) {
	store := newMemStore()
	src := newFakeSource()

	runs := new(MockSyncRunRepository)
	runs.On("Record", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	svc := NewSyncService(src, store, store, runs, nil, nil, SyncConfig{StartYear: 2018, StaleAfter: time.Hour})
	result, err := svc.Sync(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusCompleted, result.Status)
}

func TestSync_CancelledCallerDoesNotAbortRun(t *testing.T) {
	store := newMemStore()
	src := newFakeSource()
	src.years[2018] = backfill2018()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newTestSyncService(src, store, time.Date(2018, 6, 1, 12, 0, 0, 0, adelaide))
	result, err := svc.Sync(ctx, Options{TargetYear: 2018})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Inserted)
}

func TestSync_MarksBackfillEvents(t *testing.T) {
	tests := []struct {
		name     string
		seed     bool
		opts     Options
		backfill bool
	}{
		{"full sync", true, Options{Full: true}, true},
		{"first sync into empty store", false, Options{}, true},
		{"incremental sync", true, Options{}, false},
		{"target year", true, Options{TargetYear: 2018}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			if tt.seed {
				store.seed(mustDraw(999, time.Date(2018, 4, 5, 0, 0, 0, 0, time.UTC), []int{1, 2, 3, 4, 5, 6, 7}, 1))
			}

			var mu sync.Mutex
			var got []events.DrawRecordedEvent
			store.bus.Subscribe(events.EventTypeDrawRecorded, func(ctx context.Context, e events.Event) {
				mu.Lock()
				got = append(got, e.(events.DrawRecordedEvent))
				mu.Unlock()
			})

			src := newFakeSource()
			src.years[2018] = backfill2018()
			svc := newTestSyncService(src, store, time.Date(2018, 5, 1, 12, 0, 0, 0, adelaide))
			_, err := svc.Sync(context.Background(), tt.opts)
			require.NoError(t, err)
			store.bus.Wait()

			mu.Lock()
			defer mu.Unlock()
			require.Len(t, got, 3)
			for _, e := range got {
				assert.Equal(t, tt.backfill, e.Backfill, "draw %d", e.Draw.DrawNumber)
			}
		})
	}
}
