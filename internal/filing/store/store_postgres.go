package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"rrfiler/internal/filing/models"
	id "rrfiler/pkg/domain"
	"rrfiler/pkg/platform/sentinel"
	txcontext "rrfiler/pkg/platform/tx"
)

const uniqueViolation = "23505"

var filenameConstraints = map[string]bool{
	"idx_submissions_transmitted_filename":       true,
	"idx_submission_artifacts_document_filename": true,
}

// PostgresStore persists submissions and their artifacts. It joins a
// transaction carried on the context when present.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const submissionColumns = `
	id, record_id, status, attempt, transmitted_filename, receipt_id, receipt_at,
	rejection_code, rejection_message, review_reasons, poll_next_at, poll_attempt,
	submitted_at, accepted_at, history, created_at, last_transition_at, version`

func (s *PostgresStore) Create(ctx context.Context, sub *models.Submission) error {
	if err := sub.CheckInvariants(); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	reasons, history, err := encodeJSONColumns(sub)
	if err != nil {
		return err
	}
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		query := `
			INSERT INTO submissions (` + submissionColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, 1)
		`
		_, err := s.execer(ctx).ExecContext(ctx, query,
			uuid.UUID(sub.ID), string(sub.RecordID), string(sub.Status), sub.Attempt,
			sub.TransmittedFilename, sub.ReceiptID, sub.ReceiptAt,
			sub.RejectionCode, sub.RejectionMessage, reasons,
			sub.PollSchedule.NextPollAt, sub.PollSchedule.Attempt,
			sub.SubmittedAt, sub.AcceptedAt, history, sub.CreatedAt, sub.LastTransitionAt,
		)
		if err != nil {
			if isFilenameViolation(err) {
				return fmt.Errorf("filename %s: %w", sub.TransmittedFilename, models.ErrFilenameTaken)
			}
			if isUniqueViolation(err) {
				return fmt.Errorf("submission for record %s: %w", sub.RecordID, sentinel.ErrConflict)
			}
			return fmt.Errorf("insert submission: %w", err)
		}
		if err := s.insertArtifacts(ctx, sub.ID, sub.Artifacts); err != nil {
			return err
		}
		sub.Version = 1
		return nil
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, subID id.SubmissionID) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	sub, err := scanSubmission(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(subID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("submission %s: %w", subID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	if err := s.loadArtifacts(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *PostgresStore) FindByRecord(ctx context.Context, recordID id.RecordID) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE record_id = $1`
	sub, err := scanSubmission(s.execer(ctx).QueryRowContext(ctx, query, string(recordID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("submission for record %s: %w", recordID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find submission by record: %w", err)
	}
	if err := s.loadArtifacts(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// ListDue returns submitted submissions whose next poll is at or before now,
// earliest first.
func (s *PostgresStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Submission, error) {
	if limit <= 0 {
		limit = 1000
	}
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE status = 'submitted' AND poll_next_at IS NOT NULL AND poll_next_at <= $1
		ORDER BY poll_next_at, id
		LIMIT $2
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due submissions: %w", err)
	}
	defer rows.Close()

	var due []*models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due submission: %w", err)
		}
		due = append(due, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due submissions: %w", err)
	}
	for _, sub := range due {
		if err := s.loadArtifacts(ctx, sub); err != nil {
			return nil, err
		}
	}
	return due, nil
}

// Update writes sub if the stored version still equals sub.Version, appends
// artifacts not yet stored, and bumps sub.Version.
func (s *PostgresStore) Update(ctx context.Context, sub *models.Submission) error {
	if err := sub.CheckInvariants(); err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	reasons, history, err := encodeJSONColumns(sub)
	if err != nil {
		return err
	}
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		query := `
			UPDATE submissions SET
				status = $3, attempt = $4, transmitted_filename = $5, receipt_id = $6, receipt_at = $7,
				rejection_code = $8, rejection_message = $9, review_reasons = $10,
				poll_next_at = $11, poll_attempt = $12, submitted_at = $13, accepted_at = $14,
				history = $15, last_transition_at = $16, version = version + 1
			WHERE id = $1 AND version = $2
		`
		res, err := s.execer(ctx).ExecContext(ctx, query,
			uuid.UUID(sub.ID), sub.Version, string(sub.Status), sub.Attempt,
			sub.TransmittedFilename, sub.ReceiptID, sub.ReceiptAt,
			sub.RejectionCode, sub.RejectionMessage, reasons,
			sub.PollSchedule.NextPollAt, sub.PollSchedule.Attempt,
			sub.SubmittedAt, sub.AcceptedAt, history, sub.LastTransitionAt,
		)
		if err != nil {
			if isFilenameViolation(err) {
				return fmt.Errorf("filename %s: %w", sub.TransmittedFilename, models.ErrFilenameTaken)
			}
			return fmt.Errorf("update submission: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update submission: %w", err)
		}
		if n == 0 {
			if _, findErr := s.FindByID(ctx, sub.ID); findErr != nil {
				return findErr
			}
			return fmt.Errorf("submission %s version %d: %w", sub.ID, sub.Version, sentinel.ErrConflict)
		}

		stored, err := s.artifactIDs(ctx, sub.ID)
		if err != nil {
			return err
		}
		var fresh []models.Artifact
		for _, a := range sub.Artifacts {
			if !stored[a.ID] {
				fresh = append(fresh, a)
			}
		}
		if err := s.insertArtifacts(ctx, sub.ID, fresh); err != nil {
			return err
		}
		sub.Version++
		return nil
	})
}

func (s *PostgresStore) insertArtifacts(ctx context.Context, subID id.SubmissionID, artifacts []models.Artifact) error {
	query := `
		INSERT INTO submission_artifacts (id, submission_id, kind, attempt, filename, content, sha256, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, a := range artifacts {
		_, err := s.execer(ctx).ExecContext(ctx, query,
			a.ID, uuid.UUID(subID), string(a.Kind), a.Attempt, a.Filename, a.Content, a.SHA256, a.Size, a.CreatedAt,
		)
		if err != nil {
			if isFilenameViolation(err) {
				return fmt.Errorf("document filename %s: %w", a.Filename, models.ErrFilenameTaken)
			}
			if isUniqueViolation(err) {
				return fmt.Errorf("artifact %s %s: %w", a.Kind, a.ID, sentinel.ErrConflict)
			}
			return fmt.Errorf("insert artifact: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) artifactIDs(ctx context.Context, subID id.SubmissionID) (map[uuid.UUID]bool, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT id FROM submission_artifacts WHERE submission_id = $1`, uuid.UUID(subID))
	if err != nil {
		return nil, fmt.Errorf("query artifact ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[uuid.UUID]bool)
	for rows.Next() {
		var aid uuid.UUID
		if err := rows.Scan(&aid); err != nil {
			return nil, fmt.Errorf("scan artifact id: %w", err)
		}
		ids[aid] = true
	}
	return ids, rows.Err()
}

func (s *PostgresStore) loadArtifacts(ctx context.Context, sub *models.Submission) error {
	query := `
		SELECT id, kind, attempt, filename, content, sha256, size, created_at
		FROM submission_artifacts
		WHERE submission_id = $1
		ORDER BY seq
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(sub.ID))
	if err != nil {
		return fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.Artifact
		var kind string
		if err := rows.Scan(&a.ID, &kind, &a.Attempt, &a.Filename, &a.Content, &a.SHA256, &a.Size, &a.CreatedAt); err != nil {
			return fmt.Errorf("scan artifact: %w", err)
		}
		a.Kind = models.ArtifactKind(kind)
		sub.Artifacts = append(sub.Artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate artifacts: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*models.Submission, error) {
	var (
		sub         models.Submission
		subID       uuid.UUID
		recordID    string
		status      string
		receiptAt   sql.NullTime
		pollNextAt  sql.NullTime
		submittedAt sql.NullTime
		acceptedAt  sql.NullTime
		reasons     []byte
		history     []byte
	)
	err := row.Scan(
		&subID, &recordID, &status, &sub.Attempt, &sub.TransmittedFilename, &sub.ReceiptID, &receiptAt,
		&sub.RejectionCode, &sub.RejectionMessage, &reasons, &pollNextAt, &sub.PollSchedule.Attempt,
		&submittedAt, &acceptedAt, &history, &sub.CreatedAt, &sub.LastTransitionAt, &sub.Version,
	)
	if err != nil {
		return nil, err
	}
	sub.ID = id.SubmissionID(subID)
	sub.RecordID = id.RecordID(recordID)
	sub.Status = models.Status(status)
	sub.ReceiptAt = nullTime(receiptAt)
	sub.PollSchedule.NextPollAt = nullTime(pollNextAt)
	sub.SubmittedAt = nullTime(submittedAt)
	sub.AcceptedAt = nullTime(acceptedAt)
	if err := json.Unmarshal(reasons, &sub.ReviewReasons); err != nil {
		return nil, fmt.Errorf("decode review reasons: %w", err)
	}
	if err := json.Unmarshal(history, &sub.History); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if len(sub.ReviewReasons) == 0 {
		sub.ReviewReasons = nil
	}
	if len(sub.History) == 0 {
		sub.History = nil
	}
	return &sub, nil
}

func encodeJSONColumns(sub *models.Submission) (reasons, history []byte, err error) {
	r := sub.ReviewReasons
	if r == nil {
		r = []string{}
	}
	h := sub.History
	if h == nil {
		h = []models.AttemptRecord{}
	}
	if reasons, err = json.Marshal(r); err != nil {
		return nil, nil, fmt.Errorf("encode review reasons: %w", err)
	}
	if history, err = json.Marshal(h); err != nil {
		return nil, nil, fmt.Errorf("encode history: %w", err)
	}
	return reasons, history, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func isFilenameViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && filenameConstraints[pqErr.Constraint]
}
