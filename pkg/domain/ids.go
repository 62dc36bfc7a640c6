// Package domain holds the identifier types shared across the filing pipeline.
// Distinct named types keep submission and record identifiers from being
// swapped at call sites.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// ErrInvalidID is returned (wrapped) by every Parse function.
var ErrInvalidID = errors.New("invalid identifier")

const maxRecordIDLength = 128

// SubmissionID identifies one filing attempt.
type SubmissionID uuid.UUID

// RecordID identifies a transaction record owned by the record source
// collaborator. The format is opaque to this module.
type RecordID string

// NewSubmissionID returns a random submission identifier.
func NewSubmissionID() SubmissionID {
	return SubmissionID(uuid.New())
}

func (id SubmissionID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the identifier is the zero UUID.
func (id SubmissionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id RecordID) String() string { return string(id) }

// ParseSubmissionID parses a non-nil UUID.
func ParseSubmissionID(s string) (SubmissionID, error) {
	if s == "" {
		return SubmissionID{}, fmt.Errorf("%w: submission id is required", ErrInvalidID)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return SubmissionID{}, fmt.Errorf("%w: submission id: %v", ErrInvalidID, err)
	}
	if parsed == uuid.Nil {
		return SubmissionID{}, fmt.Errorf("%w: submission id must not be nil", ErrInvalidID)
	}
	return SubmissionID(parsed), nil
}

// ParseRecordID accepts any printable, space-free token up to 128 bytes.
func ParseRecordID(s string) (RecordID, error) {
	if s == "" {
		return "", fmt.Errorf("%w: record id is required", ErrInvalidID)
	}
	if len(s) > maxRecordIDLength {
		return "", fmt.Errorf("%w: record id exceeds %d bytes", ErrInvalidID, maxRecordIDLength)
	}
	if strings.IndexFunc(s, func(r rune) bool { return unicode.IsSpace(r) || !unicode.IsPrint(r) }) >= 0 {
		return "", fmt.Errorf("%w: record id contains whitespace or control characters", ErrInvalidID)
	}
	return RecordID(s), nil
}

func (id SubmissionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *SubmissionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSubmissionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
