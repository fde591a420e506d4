package service

import (
	"context"
	"fmt"
	"iter"

	"powerball/events"
	"powerball/models"
	"powerball/source"

	log "github.com/sirupsen/logrus"
)

// Problem is an entry the reconciler refused to store
type Problem struct {
	Entry  string
	Reason string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s", p.Entry, p.Reason)
}

// ReconcileResult counts what one batch did to the store
type ReconcileResult struct {
	Inserted int
	Updated  int
	Skipped  int
	Problems []Problem
}

// Reconciler validates raw entries and upserts them one transaction at a time
type Reconciler struct {
	uowFactory UnitOfWorkFactory
}

// NewReconciler creates a new reconciler
func NewReconciler(uowFactory UnitOfWorkFactory) *Reconciler {
	return &Reconciler{uowFactory: uowFactory}
}

// Upsert applies entries in order. Invalid entries become problems.
// A store failure stops the batch; entries committed before it stay committed.
func (r *Reconciler) Upsert(ctx context.Context, entries iter.Seq[source.RawEntry]) (ReconcileResult, error) {
	return r.upsert(ctx, entries, false)
}

// Backfill is Upsert for historic loads. Its events are marked so
// notifiers can skip draws that are not news.
func (r *Reconciler) Backfill(ctx context.Context, entries iter.Seq[source.RawEntry]) (ReconcileResult, error) {
	return r.upsert(ctx, entries, true)
}

func (r *Reconciler) upsert(ctx context.Context, entries iter.Seq[source.RawEntry], backfill bool) (ReconcileResult, error) {
	var result ReconcileResult

	for entry := range entries {
		draw, err := entry.ToDraw()
		if err != nil {
			result.Problems = append(result.Problems, Problem{Entry: entry.String(), Reason: err.Error()})
			log.WithFields(log.Fields{
				"entry": entry.String(),
				"error": err,
			}).Debug("Rejected malformed draw entry")
			continue
		}

		outcome, err := r.apply(ctx, draw, backfill)
		if err != nil {
			return result, err
		}

		switch outcome {
		case UpsertInserted:
			result.Inserted++
		case UpsertUpdated:
			result.Updated++
		default:
			result.Skipped++
		}
	}

	return result, nil
}

// apply upserts one draw inside its own unit of work
func (r *Reconciler) apply(ctx context.Context, draw *models.Draw, backfill bool) (UpsertOutcome, error) {
	uow := r.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return UpsertUnchanged, storeError("begin transaction", err)
	}
	defer func() {
		if rbErr := uow.Rollback(); rbErr != nil {
			log.WithError(rbErr).Error("Failed to rollback draw upsert")
		}
	}()

	outcome, err := uow.DrawRepository().Upsert(ctx, draw)
	if err != nil {
		return UpsertUnchanged, storeError(fmt.Sprintf("upsert draw %d", draw.DrawNumber), err)
	}

	if outcome != UpsertUnchanged {
		uow.EventBus().Publish(events.DrawRecordedEvent{
			Draw:     *draw,
			Created:  outcome == UpsertInserted,
			Backfill: backfill,
		})
	}

	if err := uow.Commit(); err != nil {
		return UpsertUnchanged, storeError(fmt.Sprintf("commit draw %d", draw.DrawNumber), err)
	}

	return outcome, nil
}
