package core

import "fmt"

// InputError indicates the raw log batch could not be parsed at all.
// It is the only error that aborts a pipeline run; per-field problems
// degrade into RunWarnings instead.
type InputError struct {
	Source string
	Err    error
}

func (e *InputError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("input batch unreadable (%s): %v", e.Source, e.Err)
	}
	return fmt.Sprintf("input batch unreadable: %v", e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// NewInputError wraps err as a fatal batch-level input failure.
func NewInputError(source string, err error) *InputError {
	return &InputError{Source: source, Err: err}
}
