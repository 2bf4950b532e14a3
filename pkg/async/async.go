// Package async resolves in-flight platform operations. A write request
// answers with a Location header naming a transient status resource; the
// resolver polls that URL until the server redirects to the finished
// resource, the status document reports a terminal state, or the
// wall-clock budget runs out.
package async

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OutcomeKind tags the classification of a single poll response.
type OutcomeKind int

const (
	// Pending means the operation is still running and should be polled
	// again.
	Pending OutcomeKind = iota

	// Redirect means the server answered 303: the operation is finished
	// and Location names the resulting resource.
	Redirect

	// Completed means the status document reported terminal success.
	Completed

	// Failed means the status document reported an error or abort.
	Failed
)

// String returns the label used in logs and metrics.
func (k OutcomeKind) String() string {
	switch k {
	case Pending:
		return "pending"
	case Redirect:
		return "redirect"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is a decoded async status document.
type Status struct {
	// Status is the platform's progress string, e.g. "RUNNING",
	// "COMPLETED", "ERROR".
	Status string

	// Message is the platform's progress or failure description, when
	// the document carries one.
	Message string

	// Fields holds the complete decoded document. Layouts vary between
	// the generic status resource and the legacy job documents, so
	// callers read extra fields from here.
	Fields map[string]any
}

// Classify maps a status string onto its outcome kind. The vocabulary is
// open-ended: "completed" (any case) is terminal success, a prefix of
// "error" or "abort" (any case) is terminal failure, and everything else
// means the operation is still running. The matching rules are the wire
// contract of the platform and must not be tightened.
func Classify(status string) OutcomeKind {
	lower := strings.ToLower(status)
	switch {
	case lower == "completed":
		return Completed
	case strings.HasPrefix(lower, "error"), strings.HasPrefix(lower, "abort"):
		return Failed
	default:
		return Pending
	}
}

// Outcome is the classified result of one poll.
type Outcome struct {
	Kind OutcomeKind

	// Location is the finished resource URL. Set when Kind is Redirect.
	Location string

	// Status is the decoded status document. Set when the response
	// carried one (Pending, Completed, Failed).
	Status Status

	// StatusCode and Body are the raw poll response, kept for timeout
	// and failure diagnostics.
	StatusCode int
	Body       string
}

// parseStatus decodes a 200 poll body into a Status. A document without
// a string status field is out of contract.
func parseStatus(data []byte) (Status, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return Status{}, err
	}

	s, ok := fields["status"].(string)
	if !ok {
		return Status{}, fmt.Errorf("status document has no status field")
	}

	st := Status{Status: s, Fields: fields}
	if m, ok := fields["message"].(string); ok {
		st.Message = m
	}
	return st, nil
}
