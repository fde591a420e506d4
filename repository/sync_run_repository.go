package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"powerball/database"
	"powerball/models"

	"github.com/jackc/pgx/v5"
)

// keepRuns bounds the run history table
const keepRuns = 1000

// SyncRunRepository implements the SyncRunRepository interface
type SyncRunRepository struct {
	db *database.DB
}

// NewSyncRunRepository creates a new sync run repository
func NewSyncRunRepository(db *database.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// runSummary is the part of a result kept in the summary column
type runSummary struct {
	YearsProcessed []int    `json:"years_processed"`
	Problems       []string `json:"problems"`
	Error          string   `json:"error,omitempty"`
}

// Record stores a finished run and trims the oldest history
func (r *SyncRunRepository) Record(ctx context.Context, result *models.SyncResult) error {
	summaryJSON, err := json.Marshal(runSummary{
		YearsProcessed: result.YearsProcessed,
		Problems:       result.Problems,
		Error:          result.Error,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		insert := `
			INSERT INTO sync_runs
			(run_id, mode, status, inserted, updated, skipped, problem_count, summary, started_at, finished_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		_, err := tx.Exec(ctx, insert,
			result.RunID,
			string(result.Mode),
			string(result.Status),
			result.Inserted,
			result.Updated,
			result.Skipped,
			result.ProblemCount,
			summaryJSON,
			result.StartedAt,
			result.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to record sync run %s: %w", result.RunID, err)
		}

		prune := `
			DELETE FROM sync_runs
			WHERE run_id NOT IN (
				SELECT run_id FROM sync_runs ORDER BY started_at DESC LIMIT $1
			)
		`
		if _, err := tx.Exec(ctx, prune, keepRuns); err != nil {
			return fmt.Errorf("failed to prune sync runs: %w", err)
		}
		return nil
	})
}

// GetRecent returns the most recent runs, newest first
func (r *SyncRunRepository) GetRecent(ctx context.Context, limit int) ([]*models.SyncResult, error) {
	if limit <= 0 {
		limit = keepRuns
	}

	query := `
		SELECT run_id::text, mode, status, inserted, updated, skipped, problem_count,
		       summary, started_at, finished_at
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.SyncResult{}
	for rows.Next() {
		var run models.SyncResult
		var mode, status string
		var summaryJSON []byte
		err := rows.Scan(
			&run.RunID,
			&mode,
			&status,
			&run.Inserted,
			&run.Updated,
			&run.Skipped,
			&run.ProblemCount,
			&summaryJSON,
			&run.StartedAt,
			&run.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		run.Mode = models.SyncMode(mode)
		run.Status = models.SyncStatus(status)
		run.Upserted = run.Inserted + run.Updated

		var summary runSummary
		if len(summaryJSON) > 0 {
			if err := json.Unmarshal(summaryJSON, &summary); err != nil {
				return nil, fmt.Errorf("failed to unmarshal run summary: %w", err)
			}
		}
		run.YearsProcessed = summary.YearsProcessed
		run.Problems = summary.Problems
		run.Error = summary.Error

		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sync runs: %w", err)
	}

	return runs, nil
}
