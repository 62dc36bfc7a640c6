package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"rrfiler/internal/filing/artifact"
	"rrfiler/internal/filing/builder"
	"rrfiler/internal/filing/models"
	"rrfiler/internal/filing/response"
	"rrfiler/internal/filing/transport"
	id "rrfiler/pkg/domain"
	audit "rrfiler/pkg/platform/audit"
	"rrfiler/pkg/platform/sentinel"
	"rrfiler/pkg/platform/tracing"
	"rrfiler/pkg/requestcontext"
)

// Submit files the record. It creates the submission on first use and drives
// a queued submission through build and upload. Submissions that are
// submitted or accepted are returned unchanged, as are rejected and
// needs_review ones until an operator calls Retry.
//
// A preflight failure moves the submission to needs_review and returns the
// *builder.PreflightError. A transport failure leaves it queued and returns
// the *transport.TransportError; calling Submit again re-sends the same
// stored document. If the host already holds a file under that name, it
// counts as landed only when its bytes match the stored document.
func (s *Service) Submit(ctx context.Context, recordID id.RecordID) (sub *models.Submission, err error) {
	ctx, span := tracing.Start(ctx, "filing.Submit", attribute.String("record_id", recordID.String()))
	defer func() { tracing.End(span, err) }()

	lease, err := s.acquire(ctx, recordID, s.cfg.LockWait)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, lease)

	var rec *models.TransactionRecord
	sub, err = s.store.FindByRecord(ctx, recordID)
	switch {
	case isNotFound(err):
		rec, err = s.records.Get(ctx, recordID)
		if err != nil {
			return nil, fmt.Errorf("load record %s: %w", recordID, err)
		}
		sub = models.NewSubmission(recordID, requestcontext.Now(ctx))
	case err != nil:
		return nil, err
	}
	span.SetAttributes(attribute.String("submission_id", sub.ID.String()))

	if sub.Status != models.StatusQueued {
		s.logger.InfoContext(ctx, "submit absorbed",
			"submission_id", sub.ID.String(),
			"record_id", recordID.String(),
			"status", string(sub.Status),
		)
		return sub, nil
	}
	return s.drive(ctx, sub, rec)
}

// maxFilenameClaims bounds how many seconds a build moves forward looking for
// a filename no other submission has reserved.
const maxFilenameClaims = 30

// drive takes a queued submission to submitted. rec may be nil, in which case
// it is loaded when a document has to be built.
func (s *Service) drive(ctx context.Context, sub *models.Submission, rec *models.TransactionRecord) (*models.Submission, error) {
	now := requestcontext.Now(ctx)

	data, doc, err := s.storedDocument(sub)
	if err != nil {
		return sub, err
	}

	if data == nil {
		if rec == nil {
			if rec, err = s.records.Get(ctx, sub.RecordID); err != nil {
				return sub, fmt.Errorf("load record %s: %w", sub.RecordID, err)
			}
		}
		built, err := s.claim(ctx, sub, s.withTransmitterDefaults(rec), now)
		if err != nil {
			var pf *builder.PreflightError
			if errors.As(err, &pf) {
				s.metrics.IncrementPreflightFailure(string(pf.Stage))
				return sub, s.escalatePreflight(ctx, sub, pf, now)
			}
			return sub, err
		}
		data = built.Bytes
		doc, _ = sub.Document()
	}

	err = s.transport.Upload(ctx, response.InboxDir, sub.TransmittedFilename, data)
	switch {
	case err == nil:
	case errors.Is(err, transport.ErrAlreadyExists):
		ours, checkErr := s.hostHoldsDocument(ctx, sub.TransmittedFilename, doc)
		if checkErr != nil {
			s.logger.WarnContext(ctx, "could not verify existing file on transfer host, submission stays queued",
				"submission_id", sub.ID.String(),
				"filename", sub.TransmittedFilename,
				"error", checkErr,
			)
			return sub, checkErr
		}
		if !ours {
			reason := fmt.Sprintf("transfer host holds a file named %s that differs from the stored document", sub.TransmittedFilename)
			if escErr := s.escalate(ctx, sub, now, reason); escErr != nil {
				return sub, escErr
			}
			return sub, err
		}
		s.logger.InfoContext(ctx, "document already on transfer host, treating upload as landed",
			"submission_id", sub.ID.String(),
			"filename", sub.TransmittedFilename,
		)
	default:
		s.logger.WarnContext(ctx, "document upload failed, submission stays queued",
			"submission_id", sub.ID.String(),
			"record_id", sub.RecordID.String(),
			"error", err,
		)
		return sub, err
	}

	if err := sub.MarkSubmitted(now, now.Add(s.nextDelay(0))); err != nil {
		return sub, err
	}
	if err := s.transitioned(ctx, sub, models.StatusQueued, audit.EventFilingSubmitted, "", sub.TransmittedFilename); err != nil {
		return sub, err
	}
	return sub, nil
}

// storedDocument returns the bytes of the current attempt's document when one
// was already written, verified against its digest.
func (s *Service) storedDocument(sub *models.Submission) ([]byte, models.Artifact, error) {
	a, ok := sub.Document()
	if !ok {
		return nil, models.Artifact{}, nil
	}
	data, err := artifact.Open(a)
	if err != nil {
		return nil, a, fmt.Errorf("stored document of submission %s: %w", sub.ID, err)
	}
	if sub.TransmittedFilename == "" {
		sub.TransmittedFilename = a.Filename
	}
	return data, a, nil
}

// hostHoldsDocument reports whether the inbox file named name is byte for
// byte the stored document. A torn upload or another sender's file is not.
func (s *Service) hostHoldsDocument(ctx context.Context, name string, doc models.Artifact) (bool, error) {
	remote, err := s.transport.Download(ctx, response.InboxDir, name)
	if err != nil {
		return false, err
	}
	return artifact.Same(doc, remote), nil
}

// claim builds the document and stores it together with its filename. When
// another submission already reserved the filename, the build moves to the
// next second and tries again.
func (s *Service) claim(ctx context.Context, sub *models.Submission, rec *models.TransactionRecord, now time.Time) (*builder.Document, error) {
	at := now
	for range maxFilenameClaims {
		doc, builtAt, err := s.build(sub, rec, at)
		if err != nil {
			return nil, err
		}
		a, err := artifact.Seal(models.ArtifactDocument, sub.Attempt, doc.Filename, doc.Bytes, now)
		if err != nil {
			return nil, err
		}

		prevName, prevVersion := sub.TransmittedFilename, sub.Version
		sub.Artifacts = append(sub.Artifacts, a)
		sub.TransmittedFilename = doc.Filename
		var events []audit.Event
		if sub.Version == 0 {
			events = append(events, s.event(ctx, sub, audit.EventFilingCreated, "", "", doc.Filename))
		}
		err = s.save(ctx, sub, events...)
		if err == nil {
			return doc, nil
		}

		sub.Artifacts = sub.Artifacts[:len(sub.Artifacts)-1]
		sub.TransmittedFilename, sub.Version = prevName, prevVersion
		if !errors.Is(err, models.ErrFilenameTaken) {
			return nil, err
		}
		s.logger.InfoContext(ctx, "filename reserved by another submission, rebuilding",
			"submission_id", sub.ID.String(),
			"filename", doc.Filename,
		)
		at = builtAt.Add(time.Second)
	}
	return nil, fmt.Errorf("no free filename for submission %s: %w", sub.ID, sentinel.ErrConflict)
}

// build renders the document, moving the transmission time forward a second
// at a time until the filename differs from every earlier attempt. It
// returns the transmission time that was used.
func (s *Service) build(sub *models.Submission, rec *models.TransactionRecord, from time.Time) (*builder.Document, time.Time, error) {
	at := from.UTC().Truncate(time.Second)
	for i := 0; ; i++ {
		doc, err := s.builder.Build(rec, at).Unwrap()
		if err != nil {
			return nil, at, err
		}
		if !slices.Contains(sub.Filenames(), doc.Filename) {
			return doc, at, nil
		}
		if i > len(sub.History) {
			return nil, at, fmt.Errorf("no unused filename for submission %s: %w", sub.ID, sentinel.ErrConflict)
		}
		at = at.Add(time.Second)
	}
}

func (s *Service) escalatePreflight(ctx context.Context, sub *models.Submission, pf *builder.PreflightError, now time.Time) error {
	var events []audit.Event
	if sub.Version == 0 {
		events = append(events, s.event(ctx, sub, audit.EventFilingCreated, "", "", ""))
	}
	from := sub.Status
	if err := sub.MarkNeedsReview(pf.Reasons, now); err != nil {
		return err
	}
	events = append(events, s.event(ctx, sub, audit.EventFilingNeedsReview, from, "preflight "+string(pf.Stage)+": "+strings.Join(pf.Reasons, "; "), ""))
	if err := s.save(ctx, sub, events...); err != nil {
		return err
	}
	s.metrics.IncrementTransition(string(sub.Status))
	s.logger.WarnContext(ctx, "preflight failed, submission needs review",
		"submission_id", sub.ID.String(),
		"record_id", sub.RecordID.String(),
		"stage", string(pf.Stage),
		"reasons", len(pf.Reasons),
	)
	return pf
}

// escalate moves an active submission to needs_review.
func (s *Service) escalate(ctx context.Context, sub *models.Submission, now time.Time, reasons ...string) error {
	from := sub.Status
	if err := sub.MarkNeedsReview(reasons, now); err != nil {
		return err
	}
	return s.transitioned(ctx, sub, from, audit.EventFilingNeedsReview, strings.Join(reasons, "; "), "")
}
