package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures
type ErrorKind string

const (
	KindInvalidCUFE      ErrorKind = "INVALID_CUFE"
	KindDuplicateCUFE    ErrorKind = "DUPLICATE_CUFE"
	KindNetwork          ErrorKind = "NETWORK_ERROR"
	KindProcessingFailed ErrorKind = "PROCESSING_FAILED"
	KindExtractionFailed ErrorKind = "EXTRACTION_FAILED"
	KindSaveFailed       ErrorKind = "SAVE_FAILED"
)

// Sentinels for errors.Is matching by kind
var (
	ErrInvalidCUFE      = &ProcessingError{Kind: KindInvalidCUFE}
	ErrDuplicateCUFE    = &ProcessingError{Kind: KindDuplicateCUFE}
	ErrNetwork          = &ProcessingError{Kind: KindNetwork}
	ErrProcessingFailed = &ProcessingError{Kind: KindProcessingFailed}
	ErrExtractionFailed = &ProcessingError{Kind: KindExtractionFailed}
	ErrSaveFailed       = &ProcessingError{Kind: KindSaveFailed}
)

// ProcessingError is a classified failure surfaced to callers
type ProcessingError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Is matches any ProcessingError of the same kind
func (e *ProcessingError) Is(target error) bool {
	t, ok := target.(*ProcessingError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewProcessingError creates a new processing error
func NewProcessingError(kind ErrorKind, message string, cause error) *ProcessingError {
	return &ProcessingError{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// KindOf returns the kind of err, or "" when err is not a ProcessingError
func KindOf(err error) ErrorKind {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// ParseError represents a failure decoding a payload field
type ParseError struct {
	Source  string
	Field   string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Source, e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Source, e.Field, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a new parse error
func NewParseError(source, field, message string, cause error) *ParseError {
	return &ParseError{
		Source:  source,
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed on %s: %s (value=%v, rule=%s)", e.Field, e.Message, e.Value, e.Rule)
	}
	return fmt.Sprintf("validation failed on %s: %s (rule=%s)", e.Field, e.Message, e.Rule)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, rule, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Rule:    rule,
		Message: message,
	}
}

// ExtractionError represents extraction failures
type ExtractionError struct {
	Method  string
	Message string
	Cause   error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction failed [%s]: %s (%v)", e.Method, e.Message, e.Cause)
	}
	return fmt.Sprintf("extraction failed [%s]: %s", e.Method, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// NewExtractionError creates a new extraction error
func NewExtractionError(method, message string, cause error) *ExtractionError {
	return &ExtractionError{
		Method:  method,
		Message: message,
		Cause:   cause,
	}
}
