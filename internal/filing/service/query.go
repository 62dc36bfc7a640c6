package service

import (
	"context"
	"fmt"

	"rrfiler/internal/filing/artifact"
	"rrfiler/internal/filing/models"
	id "rrfiler/pkg/domain"
	dErrors "rrfiler/pkg/domain-errors"
	"rrfiler/pkg/platform/sentinel"
)

func (s *Service) Get(ctx context.Context, subID id.SubmissionID) (*models.Submission, error) {
	return s.store.FindByID(ctx, subID)
}

// LatestForRecord returns the record's submission.
func (s *Service) LatestForRecord(ctx context.Context, recordID id.RecordID) (*models.Submission, error) {
	return s.store.FindByRecord(ctx, recordID)
}

// History lists every attempt for the record, oldest first. The last entry is
// the current attempt and has a zero ClosedAt.
func (s *Service) History(ctx context.Context, recordID id.RecordID) ([]models.AttemptRecord, error) {
	sub, err := s.store.FindByRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	out := append([]models.AttemptRecord(nil), sub.History...)
	return append(out, models.AttemptRecord{
		Attempt:             sub.Attempt,
		TransmittedFilename: sub.TransmittedFilename,
		Status:              sub.Status,
		RejectionCode:       sub.RejectionCode,
		RejectionMessage:    sub.RejectionMessage,
		ReviewReasons:       sub.ReviewReasons,
		SubmittedAt:         sub.SubmittedAt,
	}), nil
}

// ArtifactContent is a stored artifact with its decoded bytes.
type ArtifactContent struct {
	models.Artifact
	Data []byte
}

// Artifact returns the index-th artifact of kind in storage order, or the
// latest when index is negative. The bytes are checked against the stored
// digest.
func (s *Service) Artifact(ctx context.Context, subID id.SubmissionID, kind models.ArtifactKind, index int) (*ArtifactContent, error) {
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown artifact kind %q", kind))
	}
	sub, err := s.store.FindByID(ctx, subID)
	if err != nil {
		return nil, err
	}
	list := sub.ArtifactsOf(kind)
	if index < 0 {
		index = len(list) - 1
	}
	if index < 0 || index >= len(list) {
		return nil, fmt.Errorf("%s artifact %d of submission %s: %w", kind, index, subID, sentinel.ErrNotFound)
	}
	a := list[index]
	data, err := artifact.Open(a)
	if err != nil {
		return nil, fmt.Errorf("%s artifact %s: %w", kind, a.ID, err)
	}
	return &ArtifactContent{Artifact: a, Data: data}, nil
}
