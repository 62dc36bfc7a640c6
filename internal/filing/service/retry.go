package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"rrfiler/internal/filing/models"
	id "rrfiler/pkg/domain"
	audit "rrfiler/pkg/platform/audit"
	"rrfiler/pkg/platform/sentinel"
	"rrfiler/pkg/platform/tracing"
	"rrfiler/pkg/requestcontext"
)

// Retry re-queues a rejected or needs_review submission. The closed attempt
// moves to History; the next Submit builds a new document under a new
// filename.
func (s *Service) Retry(ctx context.Context, subID id.SubmissionID) (sub *models.Submission, err error) {
	ctx, span := tracing.Start(ctx, "filing.Retry", attribute.String("submission_id", subID.String()))
	defer func() { tracing.End(span, err) }()

	sub, err = s.store.FindByID(ctx, subID)
	if err != nil {
		return nil, err
	}
	lease, err := s.acquire(ctx, sub.RecordID, s.cfg.LockWait)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, lease)

	if sub, err = s.store.FindByID(ctx, subID); err != nil {
		return nil, err
	}
	if !sub.Status.Retryable() {
		return sub, fmt.Errorf("retry submission in status %s: %w", sub.Status, sentinel.ErrInvalidState)
	}

	from := sub.Status
	reason := sub.RejectionMessage
	if from == models.StatusNeedsReview && len(sub.ReviewReasons) > 0 {
		reason = sub.ReviewReasons[0]
	}
	if err := sub.Requeue(requestcontext.Now(ctx)); err != nil {
		return sub, err
	}
	if err := s.transitioned(ctx, sub, from, audit.EventFilingRequeued, reason, ""); err != nil {
		return sub, err
	}
	return sub, nil
}
