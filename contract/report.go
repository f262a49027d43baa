package contract

import (
	"fmt"
	"strings"
)

// ViolationKind classifies a single contract violation.
type ViolationKind string

const (
	// ViolationConstraint: the field is present but its value breaks the constraint.
	ViolationConstraint ViolationKind = "constraint"
	// ViolationMissing: a declared field is absent.
	ViolationMissing ViolationKind = "missing"
	// ViolationUnexpected: the response carries a field the schema does not declare.
	ViolationUnexpected ViolationKind = "unexpected"
	// ViolationUnparsable: the response is not a structured object at all.
	ViolationUnparsable ViolationKind = "unparsable"
)

// ResponseField names the pseudo-field used for whole-response violations.
const ResponseField = "response"

// Violation is one field's failure to satisfy its declared constraint.
type Violation struct {
	Field    string        `json:"field"`
	Kind     ViolationKind `json:"kind"`
	Expected string        `json:"expected"`
	Actual   string        `json:"actual"`
}

// Describe renders the violation as "field X expected <constraint>, got <actual>".
// The text is fed back to the backend verbatim on retry.
func (v Violation) Describe() string {
	return fmt.Sprintf("field %s expected %s, got %s", v.Field, v.Expected, v.Actual)
}

// String implements fmt.Stringer.
func (v Violation) String() string { return v.Describe() }

// ValidationReport is the result of checking one raw response against a schema.
// Value is populated whenever parsing succeeded, but only a Succeeded report's
// value is contract-conformant. Reports are never mutated after creation.
type ValidationReport struct {
	Succeeded  bool           `json:"succeeded"`
	Value      map[string]any `json:"value,omitempty"`
	Violations []Violation    `json:"violations,omitempty"`
}

// Descriptions returns Describe() for every violation, in order.
func (r *ValidationReport) Descriptions() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		out[i] = v.Describe()
	}
	return out
}

// HasViolation reports whether any violation names field.
func (r *ValidationReport) HasViolation(field string) bool {
	if r == nil {
		return false
	}
	for _, v := range r.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// Error summarises the violations; useful for logging near-misses.
func (r *ValidationReport) Error() string {
	if r == nil || r.Succeeded {
		return ""
	}
	descs := r.Descriptions()
	if len(descs) == 1 {
		return descs[0]
	}
	return fmt.Sprintf("%d violations: %s", len(descs), strings.Join(descs, "; "))
}
