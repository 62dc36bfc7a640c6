package response

import (
	"errors"
	"fmt"
)

// BlobKind names the response blob being parsed.
type BlobKind string

const (
	BlobMessages BlobKind = "messages"
	BlobReceipt  BlobKind = "receipt"
)

// ParseError reports a malformed response blob. Parsers never return a
// partially populated result alongside it.
type ParseError struct {
	Kind   BlobKind
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s blob: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s blob: %s", e.Kind, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// ProtocolRejection is the regulator's explicit refusal of a filing. It is
// terminal and never retried automatically.
type ProtocolRejection struct {
	Code    string
	Message string
}

func (e *ProtocolRejection) Error() string {
	return fmt.Sprintf("regulator rejected filing: %s: %s", e.Code, e.Message)
}
