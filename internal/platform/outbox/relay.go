// Package outbox relays committed transition events from the outbox table to
// Kafka. Delivery is at-least-once: rows are marked published only after the
// broker acknowledges them.
package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rrfiler/internal/platform/kafka"
	auditpg "rrfiler/pkg/platform/audit/store/postgres"
	txcontext "rrfiler/pkg/platform/tx"
)

// Source is the outbox table.
type Source interface {
	FetchPending(ctx context.Context, limit int) ([]auditpg.Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Publisher sends messages to the broker.
type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

type Relay struct {
	tx        txcontext.Transactor
	source    Source
	publisher Publisher
	logger    *slog.Logger
	batchSize int
	interval  time.Duration
	now       func() time.Time
}

type Option func(*Relay)

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		r.now = now
	}
}

func New(tx txcontext.Transactor, source Source, publisher Publisher, logger *slog.Logger, opts ...Option) (*Relay, error) {
	if tx == nil || source == nil || publisher == nil {
		return nil, fmt.Errorf("transactor, source and publisher are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Relay{
		tx:        tx,
		source:    source,
		publisher: publisher,
		logger:    logger,
		batchSize: 100,
		interval:  5 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RunOnce publishes one batch and returns how many entries were relayed.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	var relayed int
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		entries, err := r.source.FetchPending(ctx, r.batchSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		msgs := make([]kafka.Message, len(entries))
		ids := make([]uuid.UUID, len(entries))
		for i, e := range entries {
			msgs[i] = kafka.Message{
				Key:   []byte(e.AggregateID),
				Value: e.Payload,
				Headers: map[string]string{
					"event_id":   e.ID.String(),
					"event_type": e.EventType,
				},
			}
			ids[i] = e.ID
		}
		if err := r.publisher.Publish(ctx, msgs...); err != nil {
			return fmt.Errorf("publish outbox batch: %w", err)
		}
		if err := r.source.MarkPublished(ctx, ids, r.now()); err != nil {
			return err
		}
		relayed = len(entries)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return relayed, nil
}

// Run relays until ctx is cancelled. Full batches are followed immediately by
// another pass; otherwise the relay sleeps for the interval.
func (r *Relay) Run(ctx context.Context) error {
	for {
		n, err := r.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
		}
		if n > 0 {
			r.logger.DebugContext(ctx, "outbox entries relayed", "count", n)
		}
		if err == nil && n == r.batchSize {
			continue
		}
		timer := time.NewTimer(r.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
