// Package service is the filing lifecycle controller. It builds documents,
// transmits them, polls for the regulator's responses and persists every
// transition of a submission.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rrfiler/internal/filing/artifact"
	"rrfiler/internal/filing/builder"
	"rrfiler/internal/filing/lock"
	"rrfiler/internal/filing/metrics"
	"rrfiler/internal/filing/models"
	"rrfiler/internal/filing/transport"
	id "rrfiler/pkg/domain"
	audit "rrfiler/pkg/platform/audit"
	"rrfiler/pkg/platform/sentinel"
	txcontext "rrfiler/pkg/platform/tx"
	"rrfiler/pkg/requestcontext"
)

// Config holds the polling policy and transmitter defaults.
type Config struct {
	// PollBackoff is the delay before each successive poll; the last entry
	// repeats.
	PollBackoff     []time.Duration
	NoResponseAfter time.Duration
	NoReceiptAfter  time.Duration
	PollConcurrency int
	PollBatchSize   int
	// LockWait bounds how long operator calls wait for a busy record.
	LockWait time.Duration
	// Transmitter fills fields the record source leaves empty.
	Transmitter models.Transmitter
}

func DefaultConfig() Config {
	return Config{
		PollBackoff:     []time.Duration{15 * time.Minute, time.Hour, 3 * time.Hour, 6 * time.Hour, 12 * time.Hour},
		NoResponseAfter: 24 * time.Hour,
		NoReceiptAfter:  5 * 24 * time.Hour,
		PollConcurrency: 8,
		PollBatchSize:   200,
		LockWait:        10 * time.Second,
	}
}

type Service struct {
	store     Store
	records   RecordSource
	transport transport.Client
	builder   *builder.Builder
	locker    Locker
	tx        txcontext.Transactor
	audit     AuditPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cfg       Config
}

type Option func(*Service)

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

func WithBuilder(b *builder.Builder) Option {
	return func(s *Service) {
		s.builder = b
	}
}

func WithLocker(l Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func WithTransactor(tx txcontext.Transactor) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.audit = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, records RecordSource, client transport.Client, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("submission store is required")
	}
	if records == nil {
		return nil, errors.New("record source is required")
	}
	if client == nil {
		return nil, errors.New("transport client is required")
	}

	svc := &Service{
		store:     store,
		records:   records,
		transport: client,
		builder:   builder.New(),
		locker:    lock.NewInMemory(2 * time.Minute),
		tx:        txcontext.NoopTransactor{},
		logger:    slog.Default(),
		cfg:       DefaultConfig(),
	}
	for _, opt := range opts {
		opt(svc)
	}

	if len(svc.cfg.PollBackoff) == 0 {
		return nil, errors.New("poll backoff table must not be empty")
	}
	if svc.cfg.PollConcurrency <= 0 {
		svc.cfg.PollConcurrency = 1
	}
	return svc, nil
}

// acquire locks the record. All operations on a submission lock its record,
// since a record owns exactly one submission.
func (s *Service) acquire(ctx context.Context, recordID id.RecordID, wait time.Duration) (lock.Lease, error) {
	lease, err := s.locker.Acquire(ctx, "record:"+recordID.String(), wait)
	if err != nil {
		return nil, fmt.Errorf("lock record %s: %w", recordID, err)
	}
	return lease, nil
}

func (s *Service) release(ctx context.Context, lease lock.Lease) {
	if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
		s.logger.WarnContext(ctx, "failed to release record lock", "error", err)
	}
}

// save persists sub and its events as one unit of work. Version zero means
// the submission has never been stored.
func (s *Service) save(ctx context.Context, sub *models.Submission, events ...audit.Event) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if sub.Version == 0 {
			err = s.store.Create(ctx, sub)
		} else {
			err = s.store.Update(ctx, sub)
		}
		if err != nil {
			return fmt.Errorf("persist submission %s: %w", sub.ID, err)
		}
		if s.audit == nil {
			return nil
		}
		for _, ev := range events {
			if err := s.audit.Emit(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})
}

// transitioned persists a status change and its compliance event.
func (s *Service) transitioned(ctx context.Context, sub *models.Submission, from models.Status, action audit.AuditEvent, reason, reference string) error {
	if err := s.save(ctx, sub, s.event(ctx, sub, action, from, reason, reference)); err != nil {
		return err
	}
	s.metrics.IncrementTransition(string(sub.Status))
	s.logger.InfoContext(ctx, "filing submission transitioned",
		"submission_id", sub.ID.String(),
		"record_id", sub.RecordID.String(),
		"from", string(from),
		"status", string(sub.Status),
		"attempt", sub.Attempt,
	)
	return nil
}

func (s *Service) event(ctx context.Context, sub *models.Submission, action audit.AuditEvent, from models.Status, reason, reference string) audit.Event {
	return audit.Event{
		Timestamp: requestcontext.Now(ctx),
		Subject:   sub.ID.String(),
		RecordID:  sub.RecordID.String(),
		Action:    string(action),
		From:      string(from),
		To:        string(sub.Status),
		Attempt:   sub.Attempt,
		Reason:    reason,
		Reference: reference,
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   requestcontext.Actor(ctx),
	}
}

// keep appends raw as a new artifact unless it repeats the latest artifact of
// the same kind for the current attempt.
func (s *Service) keep(sub *models.Submission, kind models.ArtifactKind, filename string, raw []byte, now time.Time) error {
	if latest, ok := sub.LatestArtifact(kind, sub.Attempt); ok && artifact.Same(latest, raw) {
		return nil
	}
	a, err := artifact.Seal(kind, sub.Attempt, filename, raw, now)
	if err != nil {
		return err
	}
	sub.Artifacts = append(sub.Artifacts, a)
	return nil
}

// nextDelay returns the backoff entry for the given poll number, repeating
// the last entry.
func (s *Service) nextDelay(poll int) time.Duration {
	table := s.cfg.PollBackoff
	if poll < 0 {
		poll = 0
	}
	if poll >= len(table) {
		return table[len(table)-1]
	}
	return table[poll]
}

func (s *Service) withTransmitterDefaults(rec *models.TransactionRecord) *models.TransactionRecord {
	out := *rec
	t, d := &out.Transmitter, s.cfg.Transmitter
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&t.Name, d.Name)
	fill(&t.TIN, d.TIN)
	fill(&t.TCC, d.TCC)
	fill(&t.AccountID, d.AccountID)
	fill(&t.Contact.Name, d.Contact.Name)
	fill(&t.Contact.Phone, d.Contact.Phone)
	fill(&t.Contact.Email, d.Contact.Email)
	if t.Address == (models.Address{}) {
		t.Address = d.Address
	}
	return &out
}

func isNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
