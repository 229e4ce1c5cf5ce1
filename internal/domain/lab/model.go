package lab

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Lab test statuses.
const (
	StatusPending         = "Pending"
	StatusOrdered         = "Ordered"
	StatusSampleCollected = "Sample Collected"
	StatusInProgress      = "In Progress"
	StatusCompleted       = "Completed"
	StatusCancelled       = "Cancelled"
)

// Test priorities.
const (
	PriorityRoutine = "Routine"
	PriorityUrgent  = "Urgent"
	PrioritySTAT    = "STAT"
)

var validStatuses = map[string]bool{
	StatusPending: true, StatusOrdered: true, StatusSampleCollected: true,
	StatusInProgress: true, StatusCompleted: true, StatusCancelled: true,
}

var validPriorities = map[string]bool{
	PriorityRoutine: true, PriorityUrgent: true, PrioritySTAT: true,
}

// LabTest maps to the lab_tests table. Results holds a JSON-encoded
// ResultEnvelope; legacy rows may carry free-form text instead.
type LabTest struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	VisitID     *uuid.UUID `db:"visit_id" json:"visit_id,omitempty"`
	TestName    string     `db:"test_name" json:"test_name"`
	Status      string     `db:"status" json:"status"`
	Priority    string     `db:"priority" json:"priority"`
	Results     *string    `db:"results" json:"results,omitempty"`
	OrderedBy   *uuid.UUID `db:"ordered_by" json:"ordered_by,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// ResultValue is a single measured value inside a result envelope.
type ResultValue struct {
	Value       string `json:"value"`
	Unit        string `json:"unit,omitempty"`
	NormalRange string `json:"normal_range,omitempty"`
	Status      string `json:"status,omitempty"`
}

// ResultEnvelope is the structured form stored in the results column,
// keyed by test name.
type ResultEnvelope struct {
	TestDate        string                 `json:"test_date"`
	PerformedBy     string                 `json:"performed_by"`
	Results         map[string]ResultValue `json:"results"`
	Interpretation  string                 `json:"interpretation,omitempty"`
	Recommendations string                 `json:"recommendations,omitempty"`
}

// ParsedResults is the tolerant read of a results column: either a decoded
// envelope or, for legacy free-form rows, the raw text.
type ParsedResults struct {
	Envelope   *ResultEnvelope `json:"envelope,omitempty"`
	Raw        string          `json:"raw,omitempty"`
	Structured bool            `json:"structured"`
}

// ParseResults decodes a results column. Non-JSON legacy strings come back
// as raw text rather than an error.
func ParseResults(raw string) ParsedResults {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ParsedResults{}
	}
	var env ResultEnvelope
	if err := json.Unmarshal([]byte(trimmed), &env); err == nil && env.Results != nil {
		return ParsedResults{Envelope: &env, Structured: true}
	}
	return ParsedResults{Raw: raw}
}
