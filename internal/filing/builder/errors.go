package builder

import (
	"errors"
	"fmt"
	"strings"
)

// Stage identifies which preflight pass rejected the record.
type Stage string

const (
	// StageData runs on the input record before serialization.
	StageData Stage = "data"
	// StageStructural runs on the serialized document.
	StageStructural Stage = "structural"
)

// PreflightError carries every human-readable reason a record or document
// failed validation. Documents that fail are discarded, never transmitted.
type PreflightError struct {
	Stage   Stage
	Reasons []string
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("%s preflight failed: %s", e.Stage, strings.Join(e.Reasons, "; "))
}

// IsPreflight reports whether err is (or wraps) a PreflightError.
func IsPreflight(err error) bool {
	var pe *PreflightError
	return errors.As(err, &pe)
}

// Reasons extracts the reasons from a PreflightError, or nil.
func Reasons(err error) []string {
	var pe *PreflightError
	if errors.As(err, &pe) {
		return pe.Reasons
	}
	return nil
}
