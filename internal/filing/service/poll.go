package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"rrfiler/internal/filing/models"
	"rrfiler/internal/filing/response"
	"rrfiler/internal/filing/transport"
	id "rrfiler/pkg/domain"
	audit "rrfiler/pkg/platform/audit"
	"rrfiler/pkg/platform/sentinel"
	"rrfiler/pkg/platform/tracing"
	"rrfiler/pkg/requestcontext"
)

// Poll outcomes, as counted in PollReport and the poll outcome metric.
const (
	OutcomeAccepted        = "accepted"
	OutcomeRejected        = "rejected"
	OutcomeNeedsReview     = "needs_review"
	OutcomePending         = "pending"
	OutcomeAwaitingReceipt = "awaiting_receipt"
	OutcomeTransportError  = "transport_error"
	OutcomeParseError      = "parse_error"
	OutcomeSkipped         = "skipped"
	OutcomeLocked          = "locked"
	OutcomeFailed          = "failed"
)

// PollReport summarizes one poll cycle.
type PollReport struct {
	Due      int            `json:"due"`
	Outcomes map[string]int `json:"outcomes"`
	Started  time.Time      `json:"started_at"`
	Duration time.Duration  `json:"duration_ns"`
}

// Poll checks the transfer host for the regulator's responses to a submitted
// filing. Transport and parse failures reschedule the next poll and are not
// returned; errors only report a missing submission, a busy record or a
// failed write. Submissions that are not submitted are returned unchanged.
func (s *Service) Poll(ctx context.Context, subID id.SubmissionID) (*models.Submission, error) {
	sub, _, err := s.poll(ctx, subID, s.cfg.LockWait)
	return sub, err
}

func (s *Service) poll(ctx context.Context, subID id.SubmissionID, wait time.Duration) (sub *models.Submission, outcome string, err error) {
	ctx, span := tracing.Start(ctx, "filing.Poll", attribute.String("submission_id", subID.String()))
	defer func() {
		span.SetAttributes(attribute.String("outcome", outcome))
		tracing.End(span, err)
	}()

	sub, err = s.store.FindByID(ctx, subID)
	if err != nil {
		return nil, OutcomeFailed, err
	}
	lease, err := s.acquire(ctx, sub.RecordID, wait)
	if err != nil {
		if errors.Is(err, sentinel.ErrLocked) {
			return sub, OutcomeLocked, err
		}
		return sub, OutcomeFailed, err
	}
	defer s.release(ctx, lease)

	if sub, err = s.store.FindByID(ctx, subID); err != nil {
		return nil, OutcomeFailed, err
	}
	if sub.Status != models.StatusSubmitted {
		return sub, OutcomeSkipped, nil
	}

	outcome, err = s.advance(ctx, sub, requestcontext.Now(ctx))
	if err != nil {
		outcome = OutcomeFailed
	}
	s.metrics.IncrementPollOutcome(outcome)
	return sub, outcome, err
}

// advance runs one poll step on a submitted submission and persists the
// result.
func (s *Service) advance(ctx context.Context, sub *models.Submission, now time.Time) (string, error) {
	if sub.AcceptedAt == nil {
		name := response.MessagesFilename(sub.TransmittedFilename)
		data, err := s.transport.Download(ctx, response.OutboxDir, name)
		switch {
		case errors.Is(err, transport.ErrNotFound):
			if sub.SubmittedAt != nil && now.Sub(*sub.SubmittedAt) >= s.cfg.NoResponseAfter {
				reason := fmt.Sprintf("no response received within %s of submission", s.cfg.NoResponseAfter)
				return OutcomeNeedsReview, s.escalate(ctx, sub, now, reason)
			}
			return OutcomePending, s.reschedule(ctx, sub, now, OutcomePending)
		case err != nil:
			s.logger.WarnContext(ctx, "messages download failed, poll rescheduled",
				"submission_id", sub.ID.String(),
				"error", err,
			)
			return OutcomeTransportError, s.reschedule(ctx, sub, now, OutcomeTransportError)
		}

		if err := s.keep(sub, models.ArtifactMessages, name, data, now); err != nil {
			return OutcomeFailed, err
		}
		result, err := response.ParseMessages(data)
		if err != nil {
			s.logger.WarnContext(ctx, "messages blob unreadable, poll rescheduled",
				"submission_id", sub.ID.String(),
				"error", err,
			)
			return OutcomeParseError, s.reschedule(ctx, sub, now, OutcomeParseError)
		}

		switch result.Outcome {
		case response.OutcomeRejected:
			rej := result.Rejection()
			if err := sub.MarkRejected(rej.Code, rej.Message, now); err != nil {
				return OutcomeFailed, err
			}
			return OutcomeRejected, s.transitioned(ctx, sub, models.StatusSubmitted, audit.EventFilingRejected, rej.Error(), rej.Code)
		case response.OutcomeAcceptedWithWarnings:
			return OutcomeNeedsReview, s.escalate(ctx, sub, now, result.WarningSummary()...)
		}
		sub.NoteMessagesAccepted(now)
	}

	name := response.ReceiptFilename(sub.TransmittedFilename)
	data, err := s.transport.Download(ctx, response.OutboxDir, name)
	switch {
	case errors.Is(err, transport.ErrNotFound):
		if now.Sub(*sub.AcceptedAt) >= s.cfg.NoReceiptAfter {
			reason := fmt.Sprintf("no receipt received within %s of acceptance", s.cfg.NoReceiptAfter)
			return OutcomeNeedsReview, s.escalate(ctx, sub, now, reason)
		}
		return OutcomeAwaitingReceipt, s.reschedule(ctx, sub, now, OutcomeAwaitingReceipt)
	case err != nil:
		s.logger.WarnContext(ctx, "receipt download failed, poll rescheduled",
			"submission_id", sub.ID.String(),
			"error", err,
		)
		return OutcomeTransportError, s.reschedule(ctx, sub, now, OutcomeTransportError)
	}

	if err := s.keep(sub, models.ArtifactReceipt, name, data, now); err != nil {
		return OutcomeFailed, err
	}
	receipt, err := response.ParseReceipt(data)
	if err != nil {
		s.logger.WarnContext(ctx, "receipt blob unreadable, poll rescheduled",
			"submission_id", sub.ID.String(),
			"error", err,
		)
		return OutcomeParseError, s.reschedule(ctx, sub, now, OutcomeParseError)
	}
	if err := sub.MarkAccepted(receipt.ReceiptID, receipt.ReceivedAt, now); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeAccepted, s.transitioned(ctx, sub, models.StatusSubmitted, audit.EventFilingAccepted, "", receipt.ReceiptID)
}

func (s *Service) reschedule(ctx context.Context, sub *models.Submission, now time.Time, outcome string) error {
	sub.Reschedule(now.Add(s.nextDelay(sub.PollSchedule.Attempt + 1)))
	ev := s.event(ctx, sub, audit.EventPollRescheduled, sub.Status, outcome, sub.PollSchedule.NextPollAt.UTC().Format(time.RFC3339))
	return s.save(ctx, sub, ev)
}

// PollDue polls every submitted submission whose next poll has elapsed, up to
// the configured batch size, with bounded concurrency. Records locked by
// another worker are skipped until the next cycle.
func (s *Service) PollDue(ctx context.Context) (*PollReport, error) {
	now := requestcontext.Now(ctx)
	ctx = requestcontext.WithTime(ctx, now)
	ctx, span := tracing.Start(ctx, "filing.PollDue")
	start := time.Now()

	due, err := s.store.ListDue(ctx, now, s.cfg.PollBatchSize)
	if err != nil {
		tracing.End(span, err)
		return nil, fmt.Errorf("list due submissions: %w", err)
	}
	span.SetAttributes(attribute.Int("due", len(due)))

	report := &PollReport{Due: len(due), Outcomes: make(map[string]int), Started: now}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.PollConcurrency)
	for _, sub := range due {
		g.Go(func() error {
			_, outcome, err := s.poll(gctx, sub.ID, 0)
			if err != nil && outcome != OutcomeLocked {
				s.logger.ErrorContext(gctx, "poll failed",
					"submission_id", sub.ID.String(),
					"record_id", sub.RecordID.String(),
					"error", err,
				)
			}
			mu.Lock()
			report.Outcomes[outcome]++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(start)
	s.metrics.ObservePollCycle(report.Duration)
	s.logger.InfoContext(ctx, "poll cycle finished",
		"due", report.Due,
		"outcomes", report.Outcomes,
		"duration", report.Duration,
	)
	tracing.End(span, nil)
	return report, nil
}
