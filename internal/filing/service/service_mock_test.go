package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rrfiler/internal/filing/filingtest"
	"rrfiler/internal/filing/models"
	"rrfiler/internal/filing/service"
	"rrfiler/internal/filing/service/mocks"
	"rrfiler/internal/filing/transport"
	audit "rrfiler/pkg/platform/audit"
	"rrfiler/pkg/platform/sentinel"
	"rrfiler/pkg/requestcontext"
)

// Collaborator failures that the in-memory implementations cannot produce.

type ServiceFailureSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	store   *mocks.MockStore
	records *mocks.MockRecordSource
	locker  *mocks.MockLocker
	audit   *mocks.MockAuditPublisher
	host    *transport.MemoryClient
	svc     *service.Service
}

func TestServiceFailureSuite(t *testing.T) {
	suite.Run(t, new(ServiceFailureSuite))
}

type noopLease struct{}

func (noopLease) Release(context.Context) error { return nil }

func (s *ServiceFailureSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.records = mocks.NewMockRecordSource(s.ctrl)
	s.locker = mocks.NewMockLocker(s.ctrl)
	s.audit = mocks.NewMockAuditPublisher(s.ctrl)
	s.host = transport.NewMemoryClient()

	svc, err := service.New(s.store, s.records, s.host,
		service.WithLocker(s.locker),
		service.WithAuditPublisher(s.audit),
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	s.svc = svc
}

func (s *ServiceFailureSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceFailureSuite) unlocked() {
	s.locker.EXPECT().Acquire(gomock.Any(), "record:txn-1", gomock.Any()).Return(noopLease{}, nil).AnyTimes()
}

func (s *ServiceFailureSuite) submittedSubmission() *models.Submission {
	sub := models.NewSubmission("txn-1", t0)
	sub.Artifacts = append(sub.Artifacts, models.Artifact{Kind: models.ArtifactDocument, Attempt: 1, Filename: "RRE.20260115093000.ACME01.xml"})
	sub.TransmittedFilename = "RRE.20260115093000.ACME01.xml"
	s.Require().NoError(sub.MarkSubmitted(t0, t0.Add(15*time.Minute)))
	sub.Version = 2
	return sub
}

func (s *ServiceFailureSuite) TestSubmit() {
	s.Run("busy record is reported as locked", func() {
		s.locker.EXPECT().Acquire(gomock.Any(), "record:txn-1", 10*time.Second).
			Return(nil, fmt.Errorf("key record:txn-1: %w", sentinel.ErrLocked))

		_, err := s.svc.Submit(context.Background(), "txn-1")
		s.ErrorIs(err, sentinel.ErrLocked)
	})

	s.Run("store outage surfaces without loading the record", func() {
		s.unlocked()
		s.store.EXPECT().FindByRecord(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrUnavailable)

		_, err := s.svc.Submit(context.Background(), "txn-1")
		s.ErrorIs(err, sentinel.ErrUnavailable)
	})

	s.Run("record source outage creates nothing", func() {
		s.unlocked()
		s.store.EXPECT().FindByRecord(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		s.records.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrUnavailable)

		_, err := s.svc.Submit(context.Background(), "txn-1")
		s.ErrorIs(err, sentinel.ErrUnavailable)
	})

	s.Run("audit failure aborts before upload", func() {
		s.unlocked()
		auditErr := errors.New("audit store down")
		s.store.EXPECT().FindByRecord(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		s.records.EXPECT().Get(gomock.Any(), gomock.Any()).Return(filingtest.ValidRecord("txn-1"), nil)
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev audit.Event) error {
			s.Equal(string(audit.EventFilingCreated), ev.Action)
			return auditErr
		})

		uploads := s.host.Calls(transport.OpUpload)
		_, err := s.svc.Submit(s.ctx(), "txn-1")
		s.ErrorIs(err, auditErr)
		s.Equal(uploads, s.host.Calls(transport.OpUpload))
	})
}

func (s *ServiceFailureSuite) TestPoll() {
	s.Run("version conflict is returned", func() {
		s.unlocked()
		sub := s.submittedSubmission()
		s.store.EXPECT().FindByID(gomock.Any(), sub.ID).Return(sub.Clone(), nil).Times(2)
		s.store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)

		_, err := s.svc.Poll(s.ctx(), sub.ID)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("submission deleted while waiting for the lock", func() {
		s.unlocked()
		sub := s.submittedSubmission()
		gomock.InOrder(
			s.store.EXPECT().FindByID(gomock.Any(), sub.ID).Return(sub.Clone(), nil),
			s.store.EXPECT().FindByID(gomock.Any(), sub.ID).Return(nil, sentinel.ErrNotFound),
		)

		_, err := s.svc.Poll(s.ctx(), sub.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *ServiceFailureSuite) TestPollDue() {
	s.Run("list failure is returned", func() {
		s.store.EXPECT().ListDue(gomock.Any(), gomock.Any(), 200).Return(nil, sentinel.ErrUnavailable)

		_, err := s.svc.PollDue(s.ctx())
		s.ErrorIs(err, sentinel.ErrUnavailable)
	})

	s.Run("locked records are counted and skipped", func() {
		sub := s.submittedSubmission()
		s.store.EXPECT().ListDue(gomock.Any(), gomock.Any(), 200).Return([]*models.Submission{sub}, nil)
		s.store.EXPECT().FindByID(gomock.Any(), sub.ID).Return(sub.Clone(), nil)
		s.locker.EXPECT().Acquire(gomock.Any(), "record:txn-1", time.Duration(0)).Return(nil, sentinel.ErrLocked)

		report, err := s.svc.PollDue(s.ctx())
		s.Require().NoError(err)
		s.Equal(1, report.Due)
		s.Equal(map[string]int{service.OutcomeLocked: 1}, report.Outcomes)
	})
}

func (s *ServiceFailureSuite) TestRetry() {
	s.Run("audit failure leaves the caller with the error", func() {
		s.unlocked()
		sub := s.submittedSubmission()
		s.Require().NoError(sub.MarkRejected("E001", "bad TIN", t0))
		s.store.EXPECT().FindByID(gomock.Any(), sub.ID).Return(sub.Clone(), nil).Times(2)
		s.store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
		s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit store down"))

		_, err := s.svc.Retry(s.ctx(), sub.ID)
		s.Error(err)
	})
}

func (s *ServiceFailureSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), t0.Add(20*time.Minute))
}
