package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	id "rrfiler/pkg/domain"
	"rrfiler/pkg/platform/sentinel"
)

// ErrFilenameTaken is returned by stores when a transmitted filename or a
// document artifact filename already belongs to another submission. Once
// built, a filename is reserved for good since the transfer host keeps it.
var ErrFilenameTaken = fmt.Errorf("transmitted filename already reserved: %w", sentinel.ErrConflict)

// Status is the lifecycle position of a filing submission.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusSubmitted   Status = "submitted"
	StatusAccepted    Status = "accepted"
	StatusRejected    Status = "rejected"
	StatusNeedsReview Status = "needs_review"
)

// IsValid reports whether s is one of the five known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusSubmitted, StatusAccepted, StatusRejected, StatusNeedsReview:
		return true
	}
	return false
}

// IsActive reports whether the submission still has work pending.
func (s Status) IsActive() bool {
	return s == StatusQueued || s == StatusSubmitted
}

// IsTerminal is the complement of IsActive.
func (s Status) IsTerminal() bool {
	return s.IsValid() && !s.IsActive()
}

// Retryable reports whether an operator may re-drive the submission.
func (s Status) Retryable() bool {
	return s == StatusNeedsReview || s == StatusRejected
}

var allowedTransitions = map[Status][]Status{
	StatusQueued:      {StatusSubmitted, StatusNeedsReview},
	StatusSubmitted:   {StatusAccepted, StatusRejected, StatusNeedsReview},
	StatusRejected:    {StatusQueued},
	StatusNeedsReview: {StatusQueued},
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ArtifactKind names what an artifact holds.
type ArtifactKind string

const (
	ArtifactDocument ArtifactKind = "document"
	ArtifactMessages ArtifactKind = "acknowledgementMessages"
	ArtifactReceipt  ArtifactKind = "acknowledgementReceipt"
)

// IsValid reports whether k is a known artifact kind.
func (k ArtifactKind) IsValid() bool {
	return k == ArtifactDocument || k == ArtifactMessages || k == ArtifactReceipt
}

// Artifact is one immutable blob exchanged with the regulator. Content holds
// the zstd-compressed, base64-encoded bytes; SHA256 and Size describe the raw
// payload.
type Artifact struct {
	ID        uuid.UUID    `json:"id"`
	Kind      ArtifactKind `json:"kind"`
	Attempt   int          `json:"attempt"`
	Filename  string       `json:"filename"`
	Content   string       `json:"-"`
	SHA256    string       `json:"sha256"`
	Size      int64        `json:"size"`
	CreatedAt time.Time    `json:"created_at"`
}

// PollSchedule tracks when the next response check is due. Attempt counts
// polls made for the current filing attempt.
type PollSchedule struct {
	NextPollAt *time.Time `json:"next_poll_at,omitempty"`
	Attempt    int        `json:"attempt"`
}

// AttemptRecord preserves the outcome of an attempt that was re-driven via
// Retry.
type AttemptRecord struct {
	Attempt             int        `json:"attempt"`
	TransmittedFilename string     `json:"transmitted_filename,omitempty"`
	Status              Status     `json:"status"`
	RejectionCode       string     `json:"rejection_code,omitempty"`
	RejectionMessage    string     `json:"rejection_message,omitempty"`
	ReviewReasons       []string   `json:"review_reasons,omitempty"`
	SubmittedAt         *time.Time `json:"submitted_at,omitempty"`
	ClosedAt            time.Time  `json:"closed_at"`
}

// Submission is one filing obligation for a transaction record. It is never
// deleted; retries append to History and bump Attempt.
type Submission struct {
	ID                  id.SubmissionID `json:"id"`
	RecordID            id.RecordID     `json:"transaction_record_id"`
	Status              Status          `json:"status"`
	Attempt             int             `json:"attempt"`
	TransmittedFilename string          `json:"transmitted_filename,omitempty"`
	ReceiptID           string          `json:"receipt_id,omitempty"`
	ReceiptAt           *time.Time      `json:"receipt_at,omitempty"`
	RejectionCode       string          `json:"rejection_code,omitempty"`
	RejectionMessage    string          `json:"rejection_message,omitempty"`
	ReviewReasons       []string        `json:"review_reasons,omitempty"`
	Artifacts           []Artifact      `json:"artifacts"`
	PollSchedule        PollSchedule    `json:"poll_schedule"`
	SubmittedAt         *time.Time      `json:"submitted_at,omitempty"`
	AcceptedAt          *time.Time      `json:"accepted_at,omitempty"`
	History             []AttemptRecord `json:"history,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	LastTransitionAt    time.Time       `json:"last_transition_at"`
	Version             int64           `json:"version"`
}

// NewSubmission creates a queued submission for the first attempt.
func NewSubmission(recordID id.RecordID, now time.Time) *Submission {
	return &Submission{
		ID:               id.NewSubmissionID(),
		RecordID:         recordID,
		Status:           StatusQueued,
		Attempt:          1,
		CreatedAt:        now,
		LastTransitionAt: now,
	}
}

// TransitionError reports an illegal status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}

func (s *Submission) transition(to Status, now time.Time) error {
	if !s.Status.CanTransitionTo(to) {
		return &TransitionError{From: s.Status, To: to}
	}
	s.Status = to
	s.LastTransitionAt = now
	return nil
}

// Document returns the document artifact of the current attempt, if stored.
func (s *Submission) Document() (Artifact, bool) {
	return s.LatestArtifact(ArtifactDocument, s.Attempt)
}

// LatestArtifact returns the most recent artifact of kind for the given
// attempt. attempt <= 0 matches any attempt.
func (s *Submission) LatestArtifact(kind ArtifactKind, attempt int) (Artifact, bool) {
	for i := len(s.Artifacts) - 1; i >= 0; i-- {
		a := s.Artifacts[i]
		if a.Kind == kind && (attempt <= 0 || a.Attempt == attempt) {
			return a, true
		}
	}
	return Artifact{}, false
}

// ArtifactsOf lists every artifact of kind in append order.
func (s *Submission) ArtifactsOf(kind ArtifactKind) []Artifact {
	var out []Artifact
	for _, a := range s.Artifacts {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// Filenames returns every filename the submission has claimed: the current
// transmitted filename and the filename of each document it built.
func (s *Submission) Filenames() []string {
	var names []string
	seen := make(map[string]bool)
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	add(s.TransmittedFilename)
	for _, a := range s.ArtifactsOf(ArtifactDocument) {
		add(a.Filename)
	}
	return names
}

// MarkSubmitted records a successful upload and schedules the first poll.
func (s *Submission) MarkSubmitted(now, firstPoll time.Time) error {
	if s.TransmittedFilename == "" {
		return fmt.Errorf("submission %s has no transmitted filename", s.ID)
	}
	if _, ok := s.Document(); !ok {
		return fmt.Errorf("submission %s has no document artifact for attempt %d", s.ID, s.Attempt)
	}
	if err := s.transition(StatusSubmitted, now); err != nil {
		return err
	}
	s.SubmittedAt = &now
	s.PollSchedule = PollSchedule{NextPollAt: &firstPoll}
	return nil
}

// NoteMessagesAccepted records the time the regulator accepted the messages
// file. Status stays submitted until the receipt arrives.
func (s *Submission) NoteMessagesAccepted(now time.Time) {
	if s.AcceptedAt == nil {
		s.AcceptedAt = &now
	}
}

// MarkAccepted stores the receipt identifier. It is the only path that sets
// ReceiptID.
func (s *Submission) MarkAccepted(receiptID string, receiptAt, now time.Time) error {
	if receiptID == "" {
		return fmt.Errorf("receipt id is required")
	}
	if err := s.transition(StatusAccepted, now); err != nil {
		return err
	}
	s.ReceiptID = receiptID
	s.ReceiptAt = &receiptAt
	s.NoteMessagesAccepted(now)
	s.PollSchedule.NextPollAt = nil
	return nil
}

// MarkRejected records the regulator's rejection.
func (s *Submission) MarkRejected(code, message string, now time.Time) error {
	if code == "" {
		return fmt.Errorf("rejection code is required")
	}
	if err := s.transition(StatusRejected, now); err != nil {
		return err
	}
	s.RejectionCode = code
	s.RejectionMessage = message
	s.PollSchedule.NextPollAt = nil
	return nil
}

// MarkNeedsReview escalates to a human with the given reasons.
func (s *Submission) MarkNeedsReview(reasons []string, now time.Time) error {
	if len(reasons) == 0 {
		return fmt.Errorf("needs_review requires at least one reason")
	}
	if err := s.transition(StatusNeedsReview, now); err != nil {
		return err
	}
	s.ReviewReasons = append([]string(nil), reasons...)
	s.PollSchedule.NextPollAt = nil
	return nil
}

// Reschedule moves the next poll and counts the attempt.
func (s *Submission) Reschedule(next time.Time) {
	s.PollSchedule.NextPollAt = &next
	s.PollSchedule.Attempt++
}

// Requeue closes the current attempt into History and starts a fresh one.
// Stored artifacts stay attached and keep their attempt number.
func (s *Submission) Requeue(now time.Time) error {
	if !s.Status.Retryable() {
		return &TransitionError{From: s.Status, To: StatusQueued}
	}
	s.History = append(s.History, AttemptRecord{
		Attempt:             s.Attempt,
		TransmittedFilename: s.TransmittedFilename,
		Status:              s.Status,
		RejectionCode:       s.RejectionCode,
		RejectionMessage:    s.RejectionMessage,
		ReviewReasons:       s.ReviewReasons,
		SubmittedAt:         s.SubmittedAt,
		ClosedAt:            now,
	})
	if err := s.transition(StatusQueued, now); err != nil {
		return err
	}
	s.Attempt++
	s.TransmittedFilename = ""
	s.RejectionCode = ""
	s.RejectionMessage = ""
	s.ReviewReasons = nil
	s.SubmittedAt = nil
	s.AcceptedAt = nil
	s.PollSchedule = PollSchedule{}
	return nil
}

// CheckInvariants verifies the status-dependent field rules. Stores call it
// before persisting.
func (s *Submission) CheckInvariants() error {
	if !s.Status.IsValid() {
		return fmt.Errorf("unknown status %q", s.Status)
	}
	if (s.ReceiptID != "") != (s.Status == StatusAccepted) {
		return fmt.Errorf("receipt id must be set iff status is accepted (status=%s)", s.Status)
	}
	if (s.RejectionCode != "") != (s.Status == StatusRejected) {
		return fmt.Errorf("rejection code must be set iff status is rejected (status=%s)", s.Status)
	}
	if s.Status == StatusSubmitted {
		if _, ok := s.Document(); !ok {
			return fmt.Errorf("submitted without document artifact")
		}
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (s *Submission) Clone() *Submission {
	if s == nil {
		return nil
	}
	c := *s
	c.ReceiptAt = cloneTime(s.ReceiptAt)
	c.SubmittedAt = cloneTime(s.SubmittedAt)
	c.AcceptedAt = cloneTime(s.AcceptedAt)
	c.PollSchedule.NextPollAt = cloneTime(s.PollSchedule.NextPollAt)
	c.ReviewReasons = append([]string(nil), s.ReviewReasons...)
	c.Artifacts = append([]Artifact(nil), s.Artifacts...)
	if s.History != nil {
		c.History = make([]AttemptRecord, len(s.History))
		for i, h := range s.History {
			h.ReviewReasons = append([]string(nil), h.ReviewReasons...)
			h.SubmittedAt = cloneTime(h.SubmittedAt)
			c.History[i] = h
		}
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
