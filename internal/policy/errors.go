package policy

import (
	"fmt"
	"strings"
)

// Severity distinguishes fatal violations from advisory ones.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Violation is one semantic rule violation found during validation.
// Field names the document section the violation belongs to
// (e.g. "access_lists", "service_policies").
type Violation struct {
	Field    string
	Message  string
	Severity Severity
}

func (v Violation) String() string {
	return fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(v.Severity)), v.Field, v.Message)
}

// DocumentError reports a structurally malformed policy document: missing
// required fields, wrong value types, or unknown enumeration values.
// Parsing fails fast on the first structural problem.
type DocumentError struct {
	Message string
	Err     error
}

func (e *DocumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid policy document: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("invalid policy document: %s", e.Message)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// NewDocumentError creates a DocumentError with an optional cause.
func NewDocumentError(message string, err error) *DocumentError {
	return &DocumentError{Message: message, Err: err}
}

// ValidationError aggregates every error-severity violation found in one
// validation pass. It is only returned non-empty; a document with warnings
// alone compiles successfully.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return fmt.Sprintf("policy validation failed: %s", e.Violations[0])
	}
	return fmt.Sprintf("policy validation failed with %d violations", len(e.Violations))
}

// Detail returns a numbered, one-per-line rendering of all violations.
func (e *ValidationError) Detail() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Policy validation failed with %d violation(s):\n", len(e.Violations)))
	for i, v := range e.Violations {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, v))
	}
	return sb.String()
}

// SplitSeverity separates violations into warnings and errors.
func SplitSeverity(violations []Violation) (warnings, errors []Violation) {
	for _, v := range violations {
		if v.Severity == SeverityWarning {
			warnings = append(warnings, v)
		} else {
			errors = append(errors, v)
		}
	}
	return warnings, errors
}
