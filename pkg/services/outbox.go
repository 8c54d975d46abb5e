package services

import (
	"context"
	"errors"
	"fmt"

	"challenge-hub-backend/pkg/database"
	"challenge-hub-backend/pkg/models"
)

const (
	// drainBatch bounds the events handled by one Drain call.
	drainBatch = 100
	// maxOutboxAttempts moves an event to failed after this many failures.
	maxOutboxAttempts = 5
)

// OutboxRelay applies pending outbox events exactly once.
type OutboxRelay struct {
	base
}

// NewOutboxRelay returns a relay over opts.DB.
func NewOutboxRelay(opts Options) *OutboxRelay {
	return &OutboxRelay{base: newBase(opts, "outbox")}
}

// Apply applies event eventID in its own transaction. An event that is
// no longer pending is left alone. On failure the attempt is recorded on the
// event and the error returned.
func (r *OutboxRelay) Apply(ctx context.Context, eventID string) error {
	var kind models.OutboxKind
	err := r.db.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		ev, err := tx.GetOutboxEvent(ctx, eventID)
		if err != nil {
			return notFound(err, KindOutboxEvent, eventID)
		}
		kind = ev.Kind
		if ev.Status != models.OutboxPending {
			return nil
		}

		now := r.now()
		switch ev.Kind {
		case models.OutboxParticipantAdded:
			if err := tx.IncrementChallengeParticipants(ctx, ev.ChallengeID, 1, now); err != nil {
				return notFound(err, KindChallenge, ev.ChallengeID)
			}
		default:
			return fmt.Errorf("unknown outbox kind %q", ev.Kind)
		}

		ev.Status = models.OutboxProcessed
		ev.Attempts++
		ev.LastError = ""
		ev.ProcessedAt = &now
		return tx.SaveOutboxEvent(ctx, ev)
	})
	if err != nil {
		r.metrics.ObserveOutbox(string(kind), "error")
		r.recordFailure(ctx, eventID, err)
		return err
	}

	r.metrics.ObserveOutbox(string(kind), "ok")
	r.logger.Debug("outbox event applied", "event", eventID, "kind", kind)
	return nil
}

// recordFailure bumps attempts and stores the last error of a pending event.
// After maxOutboxAttempts the event is marked failed.
func (r *OutboxRelay) recordFailure(ctx context.Context, eventID string, cause error) {
	var nf *NotFoundError
	if errors.As(cause, &nf) && nf.Kind == KindOutboxEvent {
		return
	}
	err := r.db.RunTransaction(ctx, func(ctx context.Context, tx database.Tx) error {
		ev, err := tx.GetOutboxEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if ev.Status != models.OutboxPending {
			return nil
		}
		ev.Attempts++
		ev.LastError = cause.Error()
		if ev.Attempts >= maxOutboxAttempts {
			ev.Status = models.OutboxFailed
			r.logger.Error("outbox event gave up", "event", eventID, "attempts", ev.Attempts)
		}
		return tx.SaveOutboxEvent(ctx, ev)
	})
	if err != nil {
		r.logger.Error("failed to record outbox failure", "event", eventID, "err", err)
	}
	r.logger.Warn("outbox event failed", "event", eventID, "err", cause)
}

// Drain applies up to one batch of pending events, oldest first. Every event
// is attempted; the failures are joined into the returned error.
func (r *OutboxRelay) Drain(ctx context.Context) (int, error) {
	events, err := r.db.ListPendingOutbox(ctx, drainBatch)
	if err != nil {
		return 0, err
	}
	r.metrics.SetOutboxPending(len(events))

	var (
		applied int
		errs    []error
	)
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := r.Apply(ctx, ev.ID); err != nil {
			errs = append(errs, fmt.Errorf("event %s: %w", ev.ID, err))
			continue
		}
		applied++
	}
	r.metrics.SetOutboxPending(len(events) - applied)
	if applied > 0 || len(errs) > 0 {
		r.logger.Info("outbox drained", "applied", applied, "failed", len(errs))
	}
	return applied, errors.Join(errs...)
}
