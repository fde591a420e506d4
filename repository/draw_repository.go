package repository

import (
	"context"
	"errors"
	"fmt"

	"powerball/database"
	"powerball/models"
	"powerball/service"

	"github.com/jackc/pgx/v5"
)

const drawColumns = `draw_number, draw_date, main_numbers, powerball, source, source_url, created_at, updated_at`

// DrawRepository implements the DrawRepository interface
type DrawRepository struct {
	q Queryable
}

// NewDrawRepository creates a draw repository on the connection pool
func NewDrawRepository(db *database.DB) *DrawRepository {
	return &DrawRepository{q: db.Pool}
}

// newDrawRepositoryWithTx creates a draw repository bound to a transaction
func newDrawRepositoryWithTx(tx Queryable) *DrawRepository {
	return &DrawRepository{q: tx}
}

// Upsert inserts the draw or updates it when the stored results differ.
// A row comes back only when something was written; xmax = 0 marks a fresh insert.
func (r *DrawRepository) Upsert(ctx context.Context, draw *models.Draw) (service.UpsertOutcome, error) {
	query := `
		INSERT INTO draws (draw_number, draw_date, main_numbers, powerball, source, source_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (draw_number) DO UPDATE SET
			draw_date = EXCLUDED.draw_date,
			main_numbers = EXCLUDED.main_numbers,
			powerball = EXCLUDED.powerball,
			source = EXCLUDED.source,
			source_url = EXCLUDED.source_url,
			updated_at = NOW()
		WHERE (draws.draw_date, draws.main_numbers, draws.powerball)
			IS DISTINCT FROM (EXCLUDED.draw_date, EXCLUDED.main_numbers, EXCLUDED.powerball)
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.q.QueryRow(ctx, query,
		draw.DrawNumber,
		models.DateOnly(draw.DrawDate),
		draw.MainNumbers,
		draw.Powerball,
		string(draw.Source),
		draw.SourceURL,
	).Scan(&inserted)

	if errors.Is(err, pgx.ErrNoRows) {
		return service.UpsertUnchanged, nil
	}
	if err != nil {
		return service.UpsertUnchanged, fmt.Errorf("failed to upsert draw %d: %w", draw.DrawNumber, err)
	}
	if inserted {
		return service.UpsertInserted, nil
	}
	return service.UpsertUpdated, nil
}

// GetByNumber retrieves a draw by its draw number
func (r *DrawRepository) GetByNumber(ctx context.Context, drawNumber int) (*models.Draw, error) {
	query := `SELECT ` + drawColumns + ` FROM draws WHERE draw_number = $1`

	draw, err := scanDraw(r.q.QueryRow(ctx, query, drawNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draw %d: %w", drawNumber, err)
	}
	return draw, nil
}

// GetRecent returns draws newest first; limit <= 0 returns all draws
func (r *DrawRepository) GetRecent(ctx context.Context, limit int) ([]*models.Draw, error) {
	query := `
		SELECT ` + drawColumns + `
		FROM draws
		ORDER BY draw_date DESC, draw_number DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent draws: %w", err)
	}
	defer rows.Close()

	draws := []*models.Draw{}
	for rows.Next() {
		draw, err := scanDraw(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draw: %w", err)
		}
		draws = append(draws, draw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate draws: %w", err)
	}

	return draws, nil
}

// GetLatest returns the newest draw, or nil when the store is empty
func (r *DrawRepository) GetLatest(ctx context.Context) (*models.Draw, error) {
	draws, err := r.GetRecent(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(draws) == 0 {
		return nil, nil
	}
	return draws[0], nil
}

// Count returns the number of stored draws
func (r *DrawRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM draws`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count draws: %w", err)
	}
	return count, nil
}

// DeleteAll removes every draw
func (r *DrawRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM draws`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete draws: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanDraw(row pgx.Row) (*models.Draw, error) {
	var draw models.Draw
	var src string
	err := row.Scan(
		&draw.DrawNumber,
		&draw.DrawDate,
		&draw.MainNumbers,
		&draw.Powerball,
		&src,
		&draw.SourceURL,
		&draw.CreatedAt,
		&draw.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	draw.Source = models.SourceTag(src)
	return &draw, nil
}
