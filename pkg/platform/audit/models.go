package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// every status change of a filing and every transmission.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for operational visibility,
	// such as rescheduled polls.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID
	Category  EventCategory
	Timestamp time.Time
	// Subject is the submission the event is about.
	Subject  string
	RecordID string
	Action   string
	From     string
	To       string
	Attempt  int
	// Reason carries review reasons or the rejection message.
	Reason string
	// Reference carries the transmitted filename, receipt id or rejection
	// code, depending on Action.
	Reference string
	RequestID string
	ActorID   string
}

type AuditEvent string

const (
	EventFilingCreated     AuditEvent = "filing_created"
	EventFilingSubmitted   AuditEvent = "filing_submitted"
	EventFilingAccepted    AuditEvent = "filing_accepted"
	EventFilingRejected    AuditEvent = "filing_rejected"
	EventFilingNeedsReview AuditEvent = "filing_needs_review"
	EventFilingRequeued    AuditEvent = "filing_requeued"

	EventPollRescheduled AuditEvent = "poll_rescheduled"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventFilingCreated:     CategoryCompliance,
	EventFilingSubmitted:   CategoryCompliance,
	EventFilingAccepted:    CategoryCompliance,
	EventFilingRejected:    CategoryCompliance,
	EventFilingNeedsReview: CategoryCompliance,
	EventFilingRequeued:    CategoryCompliance,

	EventPollRescheduled: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// ErrInvalidEvent is returned for events missing mandatory fields.
var ErrInvalidEvent = errors.New("invalid audit event")

// Validate checks the fields every stored event needs.
func (e Event) Validate() error {
	switch {
	case e.Subject == "":
		return errors.Join(ErrInvalidEvent, errors.New("subject is required"))
	case e.Action == "":
		return errors.Join(ErrInvalidEvent, errors.New("action is required"))
	}
	return nil
}

// Store persists audit events. Implementations backed by a database join
// the transaction carried on ctx.
type Store interface {
	Append(ctx context.Context, event Event) error
}
