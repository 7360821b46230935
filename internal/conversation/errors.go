// ABOUTME: Error types for the conversation service
// ABOUTME: ValidationError marks caller mistakes as distinct from store failures

package conversation

import "fmt"

// ValidationError reports invalid caller input, such as an empty message or
// a missing participant. It is distinct from access and storage errors so
// callers can map it to a 4xx-style response.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
