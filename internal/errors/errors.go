// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// ErrCacheMiss reports that no artifact exists for a cache key. The fetch
// client treats it as "go remote"; any other cache error is fatal.
var ErrCacheMiss = errors.New("cache miss")

// FetchError represents a transport-level failure against a remote source.
// Fetches are not retried automatically; the error surfaces to the caller
// and a rerun short-circuits through the cache for already-succeeded keys.
type FetchError struct {
	Source string
	Key    string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch error [%s] %s: %v", e.Source, e.Key, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError.
func NewFetchError(source, key string, err error) *FetchError {
	return &FetchError{Source: source, Key: key, Err: err}
}

// ParseError represents an unexpected document shape for a single record.
// The pipeline skips the offending record and continues, logging the key.
type ParseError struct {
	Source string
	Key    string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error [%s] %s: %s: %v", e.Source, e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse error [%s] %s: %s", e.Source, e.Key, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(source, key, reason string, err error) *ParseError {
	return &ParseError{Source: source, Key: key, Reason: reason, Err: err}
}

// AmbiguousMatchError records an ambiguous-match condition during
// reconciliation. It is diagnostic, not fatal: the affected rows stay
// unmatched and are excluded from the reconciled catalog unless a manual
// override disambiguates them.
type AmbiguousMatchError struct {
	Pass       int
	Key        string
	Candidates []string
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous match [pass %d] %s: %d candidates %v", e.Pass, e.Key, len(e.Candidates), e.Candidates)
}

// NewAmbiguousMatchError creates a new AmbiguousMatchError.
func NewAmbiguousMatchError(pass int, key string, candidates []string) *AmbiguousMatchError {
	return &AmbiguousMatchError{Pass: pass, Key: key, Candidates: candidates}
}

// ValidationError reports a rejected configuration value.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
