package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"rrfiler/internal/filing/models"
	id "rrfiler/pkg/domain"
	"rrfiler/pkg/platform/sentinel"
)

var t0 = time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func submitted(recordID id.RecordID, nextPoll time.Time) *models.Submission {
	sub := models.NewSubmission(recordID, t0)
	sub.TransmittedFilename = "RRE.20260115093000." + string(recordID) + ".xml"
	sub.Artifacts = append(sub.Artifacts, models.Artifact{
		ID: uuid.New(), Kind: models.ArtifactDocument, Attempt: 1, Filename: sub.TransmittedFilename, SHA256: "aa",
	})
	if err := sub.MarkSubmitted(t0, nextPoll); err != nil {
		panic(err)
	}
	return sub
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	s.Run("returns a copy of the stored submission", func() {
		sub := models.NewSubmission("txn-find", t0)
		s.Require().NoError(s.store.Create(s.ctx, sub))
		s.Equal(int64(1), sub.Version)

		byID, err := s.store.FindByID(s.ctx, sub.ID)
		s.Require().NoError(err)
		s.Equal(sub, byID)

		byRecord, err := s.store.FindByRecord(s.ctx, "txn-find")
		s.Require().NoError(err)
		s.Equal(sub.ID, byRecord.ID)

		byID.Status = models.StatusNeedsReview
		again, err := s.store.FindByID(s.ctx, sub.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusQueued, again.Status)
	})

	s.Run("one submission per record", func() {
		s.Require().NoError(s.store.Create(s.ctx, models.NewSubmission("txn-dup", t0)))
		err := s.store.Create(s.ctx, models.NewSubmission("txn-dup", t0))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("missing submission", func() {
		_, err := s.store.FindByID(s.ctx, id.NewSubmissionID())
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByRecord(s.ctx, "txn-none")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects a submission breaking invariants", func() {
		sub := models.NewSubmission("txn-bad", t0)
		sub.ReceiptID = "31000012345678"
		s.Error(s.store.Create(s.ctx, sub))
	})
}

func (s *InMemoryStoreSuite) TestUpdate() {
	s.Run("bumps version and persists changes", func() {
		sub := models.NewSubmission("txn-upd", t0)
		s.Require().NoError(s.store.Create(s.ctx, sub))

		s.Require().NoError(sub.MarkNeedsReview([]string{"missing TIN"}, t0))
		s.Require().NoError(s.store.Update(s.ctx, sub))
		s.Equal(int64(2), sub.Version)

		found, err := s.store.FindByID(s.ctx, sub.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusNeedsReview, found.Status)
		s.Equal([]string{"missing TIN"}, found.ReviewReasons)
	})

	s.Run("stale version conflicts", func() {
		sub := models.NewSubmission("txn-stale", t0)
		s.Require().NoError(s.store.Create(s.ctx, sub))
		stale := sub.Clone()

		s.Require().NoError(sub.MarkNeedsReview([]string{"first"}, t0))
		s.Require().NoError(s.store.Update(s.ctx, sub))

		s.Require().NoError(stale.MarkNeedsReview([]string{"second"}, t0))
		s.ErrorIs(s.store.Update(s.ctx, stale), sentinel.ErrConflict)
	})

	s.Run("artifacts are append-only", func() {
		sub := submitted("txn-artifacts", t0)
		s.Require().NoError(s.store.Create(s.ctx, sub))

		replaced := sub.Clone()
		replaced.Artifacts[0].SHA256 = "bb"
		s.ErrorIs(s.store.Update(s.ctx, replaced), sentinel.ErrInvalidState)

		dropped := sub.Clone()
		dropped.Artifacts = nil
		dropped.Status = models.StatusQueued
		s.ErrorIs(s.store.Update(s.ctx, dropped), sentinel.ErrInvalidState)
	})

	s.Run("unknown submission", func() {
		s.ErrorIs(s.store.Update(s.ctx, models.NewSubmission("txn-ghost", t0)), sentinel.ErrNotFound)
	})

	s.Run("concurrent writers with the same version: exactly one wins", func() {
		sub := models.NewSubmission("txn-race", t0)
		s.Require().NoError(s.store.Create(s.ctx, sub))

		var wg sync.WaitGroup
		var wins atomic.Int32
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c := sub.Clone()
				if err := c.MarkNeedsReview([]string{"race"}, t0); err != nil {
					return
				}
				if s.store.Update(s.ctx, c) == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		s.Equal(int32(1), wins.Load())
	})
}

func (s *InMemoryStoreSuite) TestFilenameReservation() {
	const name = "RRE.20260115093000.SHARED.xml"
	claim := func(sub *models.Submission) {
		sub.TransmittedFilename = name
		sub.Artifacts = append(sub.Artifacts, models.Artifact{
			ID: uuid.New(), Kind: models.ArtifactDocument, Attempt: sub.Attempt, Filename: name, SHA256: "cc",
		})
	}

	owner := models.NewSubmission("txn-owner", t0)
	claim(owner)
	s.Require().NoError(s.store.Create(s.ctx, owner))

	s.Run("another record cannot create with the name", func() {
		other := models.NewSubmission("txn-other", t0)
		claim(other)
		s.ErrorIs(s.store.Create(s.ctx, other), models.ErrFilenameTaken)
		s.ErrorIs(s.store.Create(s.ctx, other), sentinel.ErrConflict)

		_, err := s.store.FindByRecord(s.ctx, "txn-other")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("the owner keeps updating under its name", func() {
		s.Require().NoError(owner.MarkNeedsReview([]string{"no response"}, t0))
		s.NoError(s.store.Update(s.ctx, owner))
	})

	s.Run("the name stays reserved after the owner moves on", func() {
		s.Require().NoError(owner.Requeue(t0.Add(time.Hour)))
		s.Require().NoError(s.store.Update(s.ctx, owner))

		late := models.NewSubmission("txn-late-claim", t0)
		s.Require().NoError(s.store.Create(s.ctx, late))
		claim(late)
		s.ErrorIs(s.store.Update(s.ctx, late), models.ErrFilenameTaken)
	})
}

func (s *InMemoryStoreSuite) TestListDue() {
	early := submitted("txn-early", t0.Add(5*time.Minute))
	late := submitted("txn-late", t0.Add(10*time.Minute))
	future := submitted("txn-future", t0.Add(2*time.Hour))
	queued := models.NewSubmission("txn-queued", t0)
	for _, sub := range []*models.Submission{late, future, early, queued} {
		s.Require().NoError(s.store.Create(s.ctx, sub))
	}

	due, err := s.store.ListDue(s.ctx, t0.Add(10*time.Minute), 0)
	s.Require().NoError(err)
	s.Require().Len(due, 2)
	s.Equal(early.ID, due[0].ID)
	s.Equal(late.ID, due[1].ID)

	limited, err := s.store.ListDue(s.ctx, t0.Add(time.Hour), 1)
	s.Require().NoError(err)
	s.Len(limited, 1)
}
