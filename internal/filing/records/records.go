// Package records fetches finished transaction records from the collaborator
// that owns them.
package records

import (
	"context"

	"rrfiler/internal/filing/models"
	id "rrfiler/pkg/domain"
)

// Source returns the record with the given id, or an error wrapping
// sentinel.ErrNotFound.
type Source interface {
	Get(ctx context.Context, recordID id.RecordID) (*models.TransactionRecord, error)
}
