package service

import (
	"context"
	"sync"
	"sync/atomic"
)

// LocalSyncGuard admits one run at a time within the process
type LocalSyncGuard struct {
	running atomic.Bool
}

// NewLocalSyncGuard creates an unheld guard
func NewLocalSyncGuard() *LocalSyncGuard {
	return &LocalSyncGuard{}
}

// TryAcquire implements SyncGuard
func (g *LocalSyncGuard) TryAcquire(ctx context.Context) (func(), error) {
	if !g.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	var once sync.Once
	return func() {
		once.Do(func() { g.running.Store(false) })
	}, nil
}

// Held reports whether a run currently holds the guard
func (g *LocalSyncGuard) Held() bool {
	return g.running.Load()
}

// ChainGuards acquires every guard in order and releases them in reverse.
// If any guard refuses, the ones already taken are released.
func ChainGuards(guards ...SyncGuard) SyncGuard {
	return chainedGuard(guards)
}

type chainedGuard []SyncGuard

func (c chainedGuard) TryAcquire(ctx context.Context) (func(), error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, g := range c {
		release, err := g.TryAcquire(ctx)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}

	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}
