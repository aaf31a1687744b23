package source

import (
	"errors"
	"fmt"
)

// ErrNoMatch indicates no registered source recognized the label set.
var ErrNoMatch = errors.New("no source matched the provided labels")

// DuplicateSourceError reports a second registration under the same name.
type DuplicateSourceError struct {
	Name string
}

func (e *DuplicateSourceError) Error() string {
	return fmt.Sprintf("source %q already registered", e.Name)
}

// ErrDuplicateSource builds a DuplicateSourceError.
func ErrDuplicateSource(name string) error {
	return &DuplicateSourceError{Name: name}
}

// SourceNotFoundError reports a lookup of an unregistered source.
type SourceNotFoundError struct {
	Name string
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("source %q not found", e.Name)
}

// ErrSourceNotFound builds a SourceNotFoundError.
func ErrSourceNotFound(name string) error {
	return &SourceNotFoundError{Name: name}
}

// ExtractionError wraps a label-parsing failure with the source's name.
type ExtractionError struct {
	Source  string
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("source %s: %s: %v", e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("source %s: %s", e.Source, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// WrapExtractionError builds an ExtractionError around err.
func WrapExtractionError(source, message string, err error) error {
	return &ExtractionError{Source: source, Message: message, Err: err}
}
