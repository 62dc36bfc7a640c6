package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, locks and transports return
// these (optionally wrapped) so the filing service can translate them into
// submission state or operator-facing errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: submission, artifact or remote blob does not exist
// - ErrConflict: a competing write won (version mismatch, active submission exists)
// - ErrInvalidState: submission is in the wrong status for the requested operation
// - ErrUnavailable: dependency (SFTP endpoint, lock service) temporarily unavailable
// - ErrLocked: another worker currently holds the submission lock
//
// For preflight failures use builder.PreflightError directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrLocked       = errors.New("locked")
)
