// Package store persists filing submissions. Both implementations enforce one
// submission per transaction record, filenames unique across submissions, and
// optimistic version checks on update.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"rrfiler/internal/filing/models"
	id "rrfiler/pkg/domain"
	"rrfiler/pkg/platform/sentinel"
)

// InMemoryStore keeps submissions in process memory. Reads and writes go
// through deep copies.
type InMemoryStore struct {
	mu       sync.RWMutex
	byID     map[id.SubmissionID]*models.Submission
	byRecord map[id.RecordID]id.SubmissionID
	// filenames maps every claimed filename to its owner.
	filenames map[string]id.SubmissionID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:      make(map[id.SubmissionID]*models.Submission),
		byRecord:  make(map[id.RecordID]id.SubmissionID),
		filenames: make(map[string]id.SubmissionID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, sub *models.Submission) error {
	if err := sub.CheckInvariants(); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byRecord[sub.RecordID]; exists {
		return fmt.Errorf("submission for record %s: %w", sub.RecordID, sentinel.ErrConflict)
	}
	if _, exists := s.byID[sub.ID]; exists {
		return fmt.Errorf("submission %s: %w", sub.ID, sentinel.ErrConflict)
	}
	if err := s.checkFilenames(sub); err != nil {
		return err
	}
	sub.Version = 1
	s.byID[sub.ID] = sub.Clone()
	s.byRecord[sub.RecordID] = sub.ID
	s.claimFilenames(sub)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, subID id.SubmissionID) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.byID[subID]
	if !ok {
		return nil, fmt.Errorf("submission %s: %w", subID, sentinel.ErrNotFound)
	}
	return sub.Clone(), nil
}

func (s *InMemoryStore) FindByRecord(_ context.Context, recordID id.RecordID) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subID, ok := s.byRecord[recordID]
	if !ok {
		return nil, fmt.Errorf("submission for record %s: %w", recordID, sentinel.ErrNotFound)
	}
	return s.byID[subID].Clone(), nil
}

// ListDue returns submitted submissions whose next poll is at or before now,
// earliest first.
func (s *InMemoryStore) ListDue(_ context.Context, now time.Time, limit int) ([]*models.Submission, error) {
	s.mu.RLock()
	var due []*models.Submission
	for _, sub := range s.byID {
		next := sub.PollSchedule.NextPollAt
		if sub.Status == models.StatusSubmitted && next != nil && !next.After(now) {
			due = append(due, sub.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(due, func(i, j int) bool {
		a, b := due[i].PollSchedule.NextPollAt, due[j].PollSchedule.NextPollAt
		if a.Equal(*b) {
			return due[i].ID.String() < due[j].ID.String()
		}
		return a.Before(*b)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// Update replaces the stored submission if its version still matches, then
// bumps sub.Version. Stored artifacts must be a prefix of sub.Artifacts.
func (s *InMemoryStore) Update(_ context.Context, sub *models.Submission) error {
	if err := sub.CheckInvariants(); err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[sub.ID]
	if !ok {
		return fmt.Errorf("submission %s: %w", sub.ID, sentinel.ErrNotFound)
	}
	if current.Version != sub.Version {
		return fmt.Errorf("submission %s version %d (stored %d): %w", sub.ID, sub.Version, current.Version, sentinel.ErrConflict)
	}
	if err := checkAppendOnly(current.Artifacts, sub.Artifacts); err != nil {
		return err
	}
	if err := s.checkFilenames(sub); err != nil {
		return err
	}
	sub.Version++
	s.byID[sub.ID] = sub.Clone()
	s.claimFilenames(sub)
	return nil
}

func (s *InMemoryStore) checkFilenames(sub *models.Submission) error {
	for _, name := range sub.Filenames() {
		if owner, ok := s.filenames[name]; ok && owner != sub.ID {
			return fmt.Errorf("filename %s: %w", name, models.ErrFilenameTaken)
		}
	}
	return nil
}

func (s *InMemoryStore) claimFilenames(sub *models.Submission) {
	for _, name := range sub.Filenames() {
		s.filenames[name] = sub.ID
	}
}

func checkAppendOnly(stored, next []models.Artifact) error {
	if len(next) < len(stored) {
		return fmt.Errorf("artifacts cannot be removed: %w", sentinel.ErrInvalidState)
	}
	for i, a := range stored {
		if next[i].ID != a.ID || next[i].SHA256 != a.SHA256 {
			return fmt.Errorf("artifact %s cannot be replaced: %w", a.ID, sentinel.ErrInvalidState)
		}
	}
	return nil
}
