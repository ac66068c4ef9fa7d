package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifies domain failures for callers and transport mapping.
type ErrorKind string

const (
	// KindNotFound marks a missing request, order, item or warehouse.
	KindNotFound ErrorKind = "not_found"
	// KindValidation marks bad input detected before any mutation.
	KindValidation ErrorKind = "validation"
	// KindAuthorization marks a caller acting outside its role or pinned approval.
	KindAuthorization ErrorKind = "authorization"
	// KindConflict marks state conflicts, including concurrent updates.
	KindConflict ErrorKind = "conflict"
)

// Error is the domain error carried across package boundaries.
// Two errors match under errors.Is when their codes are equal, so sentinels keep
// matching after With attaches line context.
type Error struct {
	Kind      ErrorKind
	Code      string
	Message   string
	Retryable bool
	Details   map[string]any
}

// NewError constructs a sentinel.
func NewError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// NotFound builds a not-found sentinel.
func NotFound(code, message string) *Error { return NewError(KindNotFound, code, message) }

// Validation builds a validation sentinel.
func Validation(code, message string) *Error { return NewError(KindValidation, code, message) }

// Authorization builds an authorization sentinel.
func Authorization(code, message string) *Error { return NewError(KindAuthorization, code, message) }

// Conflict builds a conflict sentinel.
func Conflict(code, message string) *Error { return NewError(KindConflict, code, message) }

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if len(e.Details) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Details[k]))
	}
	return e.Message + " (" + strings.Join(parts, ", ") + ")"
}

// Is matches errors by code.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// With returns a copy carrying an extra detail entry.
func (e *Error) With(key string, value any) *Error {
	clone := *e
	clone.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	clone.Details[key] = fmt.Sprint(value)
	return &clone
}

// KindOf extracts the kind of a domain error, or "" for infrastructure errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsRetryable reports whether the caller may retry the operation unchanged.
func IsRetryable(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = NotFound("not_found", "not found")
	// ErrUnauthenticated indicates a mutating call without an acting identity.
	ErrUnauthenticated = Authorization("unauthenticated", "acting user and role are required")
	// ErrConcurrentUpdate is returned when a transaction lost a race to a concurrent writer.
	ErrConcurrentUpdate = &Error{
		Kind:      KindConflict,
		Code:      "concurrent_update",
		Message:   "concurrent update detected, retry the operation",
		Retryable: true,
	}
)
