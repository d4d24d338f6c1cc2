// Package apperr defines the error taxonomy shared across mnemo's components.
//
// Components raise the most specific kind available; callers compare with
// errors.Is against a Kind value, or errors.As against *Error to recover
// metadata attached along the way (tool name, masked input preview, ...).
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure per the taxonomy. Kind implements
// error so bare kinds can be used directly with errors.Is.
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	NotFound              Kind = "not_found"
	AlreadyExists         Kind = "already_exists"
	ParseError            Kind = "parse_error"
	SchemaValidationError Kind = "schema_validation_error"
	WriteError            Kind = "write_error"
	DatabaseError         Kind = "database_error"
	IndexingError         Kind = "indexing_error"
	SearchError           Kind = "search_error"
	GraphError            Kind = "graph_error"
	Timeout               Kind = "timeout"
	InvalidRequest        Kind = "invalid_request"
	ToolError             Kind = "tool_error"
	IntegrityError        Kind = "integrity_error"
	Internal              Kind = "internal"
)

// retryable lists the kinds §7 permits a policy to retry.
var retryable = map[Kind]bool{
	WriteError:    true,
	DatabaseError: true,
	Timeout:       true,
}

// Retryable reports whether err carries a Kind eligible for retry.
func Retryable(err error) bool {
	return retryable[KindOf(err)]
}

// Error is the taxonomy carrier. Message is human readable; Meta holds
// layer-attached context (e.g. "tool", "uid") without inventing a new
// error type per call site.
type Error struct {
	Kind    Kind
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets both errors.Is(err, apperr.NotFound) and errors.Is(err, otherErr)
// (where otherErr is itself an *Error) succeed by Kind comparison.
func (e *Error) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return e.Kind == k
	}
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an *Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind, preserving cause for Unwrap.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithMeta returns a shallow copy of e with a metadata key attached.
func (e *Error) WithMeta(key, value string) *Error {
	cp := *e
	cp.Meta = make(map[string]string, len(e.Meta)+1)
	for k, v := range e.Meta {
		cp.Meta[k] = v
	}
	cp.Meta[key] = value
	return &cp
}

// KindOf extracts the Kind from err, defaulting to Internal for untyped errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
