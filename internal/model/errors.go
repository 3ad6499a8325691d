package model

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Sentinels marked onto wrapped errors; match with errors.Is
var (
	ErrNotFound         = errors.New("invoice not found")
	ErrAlreadyExists    = errors.New("invoice already exists")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidRequest   = errors.New("invalid request")
)

// EncodingError represents a missing structural field at encode time
type EncodingError struct {
	Field   string
	Message string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding failed on %s: %s", e.Field, e.Message)
}

// NewEncodingError creates a new encoding error
func NewEncodingError(field, message string) *EncodingError {
	return &EncodingError{
		Field:   field,
		Message: message,
	}
}

// DecodeError represents an input that is not well-formed XML
type DecodeError struct {
	Message string
	Cause   error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode failed: %s (%v)", e.Message, e.Cause)
	}
	return fmt.Sprintf("decode failed: %s", e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// NewDecodeError creates a new decode error
func NewDecodeError(message string, cause error) *DecodeError {
	return &DecodeError{
		Message: message,
		Cause:   cause,
	}
}

// UnknownRuleSetError represents a request for an unregistered rule set
type UnknownRuleSetError struct {
	Name      string
	Available []string
}

func (e *UnknownRuleSetError) Error() string {
	if len(e.Available) > 0 {
		return fmt.Sprintf("unknown rule set %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
	}
	return fmt.Sprintf("unknown rule set %q", e.Name)
}

// NewUnknownRuleSetError creates a new unknown rule set error
func NewUnknownRuleSetError(name string, available []string) *UnknownRuleSetError {
	return &UnknownRuleSetError{
		Name:      name,
		Available: available,
	}
}
