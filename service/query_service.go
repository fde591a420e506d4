package service

import (
	"context"
	"fmt"

	"powerball/models"
)

// QueryService serves read-only views of the draw store
type QueryService struct {
	draws DrawRepository
	runs  SyncRunRepository
}

// NewQueryService creates a new query service. runs may be nil.
func NewQueryService(draws DrawRepository, runs SyncRunRepository) *QueryService {
	return &QueryService{draws: draws, runs: runs}
}

// RecentDraws returns up to limit draws, newest first. limit <= 0 returns every draw.
func (s *QueryService) RecentDraws(ctx context.Context, limit int) ([]*models.Draw, error) {
	draws, err := s.draws.GetRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent draws: %w", err)
	}
	if draws == nil {
		draws = []*models.Draw{}
	}
	return draws, nil
}

// Frequencies counts how often each number came up in the most recent window draws.
// window <= 0, or a window larger than the history, counts every draw.
func (s *QueryService) Frequencies(ctx context.Context, window int) (*models.Frequencies, error) {
	draws, err := s.draws.GetRecent(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to get draws for frequencies: %w", err)
	}

	freq := models.NewFrequencies()
	for _, d := range draws {
		freq.Add(d)
	}
	if window > 0 {
		freq.Window = window
	}
	return freq, nil
}

// LatestDraw returns the newest draw, or nil when nothing is stored
func (s *QueryService) LatestDraw(ctx context.Context) (*models.Draw, error) {
	draw, err := s.draws.GetLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest draw: %w", err)
	}
	return draw, nil
}

// RecentRuns returns the history of sync runs, newest first
func (s *QueryService) RecentRuns(ctx context.Context, limit int) ([]*models.SyncResult, error) {
	if s.runs == nil {
		return []*models.SyncResult{}, nil
	}
	runs, err := s.runs.GetRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync runs: %w", err)
	}
	if runs == nil {
		runs = []*models.SyncResult{}
	}
	return runs, nil
}

// Ping reports whether the store answers
func (s *QueryService) Ping(ctx context.Context) error {
	if _, err := s.draws.Count(ctx); err != nil {
		return fmt.Errorf("failed to reach draw store: %w", err)
	}
	return nil
}
