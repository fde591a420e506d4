package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"powerball/models"
	"powerball/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	mu    sync.Mutex
	calls []service.Options
	err     error
	done    chan struct{}
	release chan struct{} // when set, Sync blocks until it is closed
}

func (f *fakeSyncer) Sync(ctx context.Context, opts service.Options) (*models.SyncResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.SyncResult{RunID: "run", Status: models.SyncStatusCompleted}, nil
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	_, err := New(&fakeSyncer{}, Config{Spec: "every so often"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse schedule")
}

func TestNext_UsesLocation(t *testing.T) {
	adelaide := time.FixedZone("ACDT", 10*3600+1800)
	s, err := New(&fakeSyncer{}, Config{Spec: "0 21 * * *", Location: adelaide})
	require.NoError(t, err)

	next := s.Next().In(adelaide)
	assert.Equal(t, 21, next.Hour())
	assert.Equal(t, 0, next.Minute())
}

func TestStart_SyncOnStartup(t *testing.T) {
	syncer := &fakeSyncer{done: make(chan struct{}, 1)}
	s, err := New(syncer, Config{Spec: "0 0 1 1 *", SyncOnStartup: true})
	require.NoError(t, err)

	stop := s.Start(context.Background())
	defer stop()

	select {
	case <-syncer.done:
	case <-time.After(2 * time.Second):
		t.Fatal("startup sync did not run")
	}

	syncer.mu.Lock()
	defer syncer.mu.Unlock()
	require.Len(t, syncer.calls, 1)
	assert.Equal(t, service.Options{}, syncer.calls[0])
	assert.False(t, s.Next().IsZero())
}

func TestStart_StopWaitsForStartupSync(t *testing.T) {
	syncer := &fakeSyncer{done: make(chan struct{}, 1), release: make(chan struct{})}
	s, err := New(syncer, Config{Spec: "0 0 1 1 *", SyncOnStartup: true})
	require.NoError(t, err)

	stop := s.Start(context.Background())
	select {
	case <-syncer.done:
	case <-time.After(2 * time.Second):
		t.Fatal("startup sync did not run")
	}

	stopped := make(chan struct{})
	go func() {
		stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("stop returned while the startup sync was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(syncer.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return after the startup sync finished")
	}
}

func TestRunOnce_BusyIsNotAnError(t *testing.T) {
	syncer := &fakeSyncer{err: service.ErrSyncInProgress}
	s, err := New(syncer, Config{Spec: "*/15 * * * *"})
	require.NoError(t, err)

	assert.NotPanics(t, func() { s.runOnce(context.Background(), "test") })
	assert.Len(t, syncer.calls, 1)
}

func TestRunOnce_SkipsAfterShutdown(t *testing.T) {
	syncer := &fakeSyncer{}
	s, err := New(syncer, Config{Spec: "*/15 * * * *"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.runOnce(ctx, "test")
	assert.Empty(t, syncer.calls)
}
