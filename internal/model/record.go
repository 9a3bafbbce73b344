package model

import "github.com/honeyhiveai/semconv-collector/internal/semconv"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Record is one exported span enrichment. Matched spans carry the
// reconstructed Document and the convention that produced it; unmatched
// spans pass their original flat attributes through untouched.
type Record struct {
	ID        string  `json:"id"`
	TraceID   string  `json:"trace_id"`
	ParentID  *string `json:"parent_id,omitempty"`
	Name      *string `json:"name,omitempty"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
	Status    *string `json:"status,omitempty"`
	Error     *string `json:"error,omitempty"`
	Project   *string `json:"project,omitempty"`

	Convention  *string              `json:"convention,omitempty"`
	Document    *semconv.Document    `json:"document,omitempty"`
	Attributes  semconv.AttributeMap `json:"attributes,omitempty"`
	FieldErrors []string             `json:"field_errors,omitempty"`
}

// Matched reports whether a convention was detected for this span.
func (r *Record) Matched() bool { return r.Convention != nil }
