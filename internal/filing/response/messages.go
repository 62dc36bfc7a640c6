package response

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Outcome is the regulator's verdict in a messages blob.
type Outcome string

const (
	OutcomeAccepted             Outcome = "accepted"
	OutcomeAcceptedWithWarnings Outcome = "accepted_with_warnings"
	OutcomeRejected             Outcome = "rejected"
)

// Issue is one error or warning entry.
type Issue struct {
	Code    string
	Message string
	Element string
}

// MessagesResult is the interpreted messages blob.
type MessagesResult struct {
	Outcome  Outcome
	Errors   []Issue
	Warnings []Issue
}

// Rejection returns the first error as a ProtocolRejection, or nil when the
// filing was accepted.
func (r *MessagesResult) Rejection() *ProtocolRejection {
	if r.Outcome != OutcomeRejected || len(r.Errors) == 0 {
		return nil
	}
	first := r.Errors[0]
	msg := first.Message
	if extra := len(r.Errors) - 1; extra > 0 {
		msg = fmt.Sprintf("%s (and %d more)", msg, extra)
	}
	return &ProtocolRejection{Code: first.Code, Message: msg}
}

// WarningSummary renders warnings as operator-facing review reasons.
func (r *MessagesResult) WarningSummary() []string {
	out := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		line := w.Message
		if w.Code != "" {
			line = w.Code + ": " + line
		}
		if w.Element != "" {
			line += " (" + w.Element + ")"
		}
		out = append(out, "regulator warning "+line)
	}
	return out
}

const messagesRoot = "EFilingSubmissionXML"

type xmlMessages struct {
	XMLName    xml.Name   `xml:"EFilingSubmissionXML"`
	StatusCode string     `xml:"SubmissionStatusCode,attr"`
	Entries    []xmlIssue `xml:"EFilingSubmissionErrorXML"`
}

type xmlIssue struct {
	Level   string `xml:"ErrorLevelText"`
	Code    string `xml:"ErrorTypeCode"`
	Message string `xml:"ErrorText"`
	Element string `xml:"ErrorElementNameText"`
}

var declaredOutcomes = map[string]Outcome{
	"A":   OutcomeAccepted,
	"A_W": OutcomeAcceptedWithWarnings,
	"R":   OutcomeRejected,
}

// ParseMessages interprets a messages blob.
func ParseMessages(data []byte) (*MessagesResult, error) {
	fail := func(reason string, err error) (*MessagesResult, error) {
		return nil, &ParseError{Kind: BlobMessages, Reason: reason, Err: err}
	}

	if err := checkWellFormed(data, messagesRoot); err != nil {
		return fail("malformed document", err)
	}
	var doc xmlMessages
	if err := xml.Unmarshal(data, &doc); err != nil {
		return fail("unexpected structure", err)
	}

	result := &MessagesResult{}
	for i, entry := range doc.Entries {
		issue := Issue{
			Code:    strings.TrimSpace(entry.Code),
			Message: strings.TrimSpace(entry.Message),
			Element: strings.TrimSpace(entry.Element),
		}
		switch strings.ToUpper(strings.TrimSpace(entry.Level)) {
		case "FATAL", "ERROR":
			if issue.Code == "" {
				return fail(fmt.Sprintf("error entry %d has no code", i+1), nil)
			}
			result.Errors = append(result.Errors, issue)
		case "WARN", "WARNING":
			result.Warnings = append(result.Warnings, issue)
		default:
			return fail(fmt.Sprintf("entry %d has unknown level %q", i+1, entry.Level), nil)
		}
	}

	switch {
	case len(result.Errors) > 0:
		result.Outcome = OutcomeRejected
	case len(result.Warnings) > 0:
		result.Outcome = OutcomeAcceptedWithWarnings
	default:
		result.Outcome = OutcomeAccepted
	}

	if code := strings.TrimSpace(doc.StatusCode); code != "" {
		declared, ok := declaredOutcomes[code]
		if !ok {
			return fail(fmt.Sprintf("unknown status code %q", code), nil)
		}
		if declared != result.Outcome {
			return fail(fmt.Sprintf("declared status %q contradicts %d errors and %d warnings",
				code, len(result.Errors), len(result.Warnings)), nil)
		}
	}
	return result, nil
}

// checkWellFormed walks every token so truncated or garbled blobs fail
// loudly, and confirms the root element.
func checkWellFormed(data []byte, root string) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.New("empty blob")
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	sawRoot := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if start, ok := tok.(xml.StartElement); ok && !sawRoot {
			sawRoot = true
			if start.Name.Local != root {
				return fmt.Errorf("root element %q, expected %q", start.Name.Local, root)
			}
		}
	}
	if !sawRoot {
		return errors.New("no root element")
	}
	return nil
}
