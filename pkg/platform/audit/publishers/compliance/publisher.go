// Package compliance records filing lifecycle transitions in the audit outbox.
//
// Compliance-category events (filing_created, filing_submitted,
// filing_accepted, filing_rejected, filing_needs_review, filing_requeued) are
// fail-closed: Emit returns the persistence error and the transition must not
// proceed. Operations-category events such as poll_rescheduled are best
// effort unless ctx carries a transaction, in which case the failed write has
// already poisoned the transaction and the error is returned as well.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "rrfiler/pkg/platform/audit"
	txcontext "rrfiler/pkg/platform/tx"
	"rrfiler/pkg/requestcontext"
)

// Publisher writes filing audit events to an outbox-backed store.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// Option configures the Publisher.
type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New creates a publisher over store.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit validates, stamps and persists event. The category always follows the
// action; a caller-supplied category is ignored.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("audit event: %w", err)
	}
	p.stamp(ctx, &event)

	start := time.Now()
	err := p.store.Append(ctx, event)
	if err == nil {
		p.metrics.ObservePersistDuration(time.Since(start).Seconds())
		p.metrics.IncEventsEmitted()
		return nil
	}

	p.metrics.IncPersistFailures()
	attrs := []any{
		"action", event.Action,
		"category", event.Category,
		"submission_id", event.Subject,
		"record_id", event.RecordID,
		"error", err,
	}
	if event.Category != audit.CategoryCompliance {
		if _, inTx := txcontext.From(ctx); !inTx {
			p.logger.WarnContext(ctx, "operations audit event dropped", attrs...)
			return nil
		}
	}
	p.logger.ErrorContext(ctx, "audit persistence failed, aborting transition", attrs...)
	return fmt.Errorf("persist %s audit event: %w", event.Action, err)
}

func (p *Publisher) stamp(ctx context.Context, event *audit.Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ActorID == "" {
		event.ActorID = requestcontext.Actor(ctx)
	}
	event.Category = audit.AuditEvent(event.Action).Category()
}
