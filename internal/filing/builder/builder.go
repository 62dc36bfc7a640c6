// Package builder turns a transaction record into the regulator's batch XML
// document. It is pure: no network, storage or clock access. Output is only
// produced when both the data and the structural preflight pass.
package builder

import (
	"fmt"
	"strings"
	"time"

	"rrfiler/internal/filing/models"
)

// DefaultDocumentPrefix is the document-type prefix of real-estate reports.
const DefaultDocumentPrefix = "RRE"

const filenameTimeLayout = "20060102150405"

// Document is a validated, ready-to-transmit filing.
type Document struct {
	Filename string
	Bytes    []byte
}

// Result is either Ok (Document set) or Invalid (Preflight set), never both.
type Result struct {
	Document  *Document
	Preflight *PreflightError
}

// OK reports whether the build produced a document.
func (r Result) OK() bool {
	return r.Document != nil && r.Preflight == nil
}

// Unwrap converts the result into the conventional (value, error) pair.
func (r Result) Unwrap() (*Document, error) {
	if r.Preflight != nil {
		return nil, r.Preflight
	}
	return r.Document, nil
}

func invalid(stage Stage, reasons []string) Result {
	return Result{Preflight: &PreflightError{Stage: stage, Reasons: reasons}}
}

// Builder renders documents. The zero value is not usable; call New.
type Builder struct {
	prefix      string
	tccOverride string
}

// Option configures a Builder.
type Option func(*Builder)

// WithDocumentPrefix overrides the filename prefix.
func WithDocumentPrefix(prefix string) Option {
	return func(b *Builder) {
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

// WithTCCOverride replaces the record's transmission control code. Used in
// the sandbox environment, which only accepts its own TCC.
func WithTCCOverride(tcc string) Option {
	return func(b *Builder) {
		b.tccOverride = tcc
	}
}

// New creates a Builder.
func New(opts ...Option) *Builder {
	b := &Builder{prefix: DefaultDocumentPrefix}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build validates rec, serializes it with transmission time at, and
// re-validates the produced bytes.
func (b *Builder) Build(rec *models.TransactionRecord, at time.Time) Result {
	if rec == nil {
		return invalid(StageData, []string{"transaction record is required"})
	}
	in := *rec
	if b.tccOverride != "" {
		in.Transmitter.TCC = b.tccOverride
	}

	if reasons := checkRecord(&in); len(reasons) > 0 {
		return invalid(StageData, reasons)
	}

	data, err := render(&in, at)
	if err != nil {
		return invalid(StageStructural, []string{fmt.Sprintf("serialization failed: %v", err)})
	}
	if reasons := checkDocument(data); len(reasons) > 0 {
		return invalid(StageStructural, reasons)
	}

	return Result{Document: &Document{
		Filename: Filename(b.prefix, at, in.Transmitter.AccountID),
		Bytes:    data,
	}}
}

// Validate runs the structural preflight on already serialized bytes.
func Validate(data []byte) error {
	if reasons := checkDocument(data); len(reasons) > 0 {
		return &PreflightError{Stage: StageStructural, Reasons: reasons}
	}
	return nil
}

// Filename derives the upload name {prefix}.{YYYYMMDDHHMMSS}.{account}.xml
// with the timestamp in UTC.
func Filename(prefix string, at time.Time, accountID string) string {
	return fmt.Sprintf("%s.%s.%s.xml", prefix, at.UTC().Format(filenameTimeLayout), accountID)
}

// FilenameParts is the decoded form of an upload name.
type FilenameParts struct {
	Prefix        string
	TransmittedAt time.Time
	AccountID     string
}

// ParseFilename reverses Filename. Response blob suffixes are not accepted.
func ParseFilename(name string) (FilenameParts, error) {
	base, ok := strings.CutSuffix(name, ".xml")
	if !ok {
		return FilenameParts{}, fmt.Errorf("filename %q lacks .xml suffix", name)
	}
	parts := strings.Split(base, ".")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return FilenameParts{}, fmt.Errorf("filename %q does not match prefix.timestamp.account.xml", name)
	}
	at, err := time.ParseInLocation(filenameTimeLayout, parts[1], time.UTC)
	if err != nil {
		return FilenameParts{}, fmt.Errorf("filename %q timestamp: %w", name, err)
	}
	return FilenameParts{Prefix: parts[0], TransmittedAt: at, AccountID: parts[2]}, nil
}
