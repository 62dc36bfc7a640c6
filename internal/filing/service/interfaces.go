package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"rrfiler/internal/filing/lock"
	"rrfiler/internal/filing/models"
	id "rrfiler/pkg/domain"
	audit "rrfiler/pkg/platform/audit"
)

// Store persists submissions. Update must fail with sentinel.ErrConflict when
// the stored version differs from sub.Version.
type Store interface {
	Create(ctx context.Context, sub *models.Submission) error
	FindByID(ctx context.Context, subID id.SubmissionID) (*models.Submission, error)
	FindByRecord(ctx context.Context, recordID id.RecordID) (*models.Submission, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Submission, error)
	Update(ctx context.Context, sub *models.Submission) error
}

// RecordSource supplies finished transaction records.
type RecordSource interface {
	Get(ctx context.Context, recordID id.RecordID) (*models.TransactionRecord, error)
}

// Locker serializes work on one transaction record.
type Locker interface {
	Acquire(ctx context.Context, key string, wait time.Duration) (lock.Lease, error)
}

// AuditPublisher records transitions. Emit failures abort the transition.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
