// Package core defines the closed set of error kinds that the dialogue
// components return; the handle_turn entry point itself lives in package
// dialogue.
package core

import "errors"

// ErrKind is the closed set of error kinds a downstream component may
// surface. Every kind has a documented recovery policy; handle_turn never
// lets one escape as an unhandled exception.
type ErrKind string

const (
	KindConfigInvalid      ErrKind = "ConfigInvalid"
	KindCatalogUnavailable ErrKind = "CatalogUnavailable"
	KindVectorUnavailable  ErrKind = "VectorUnavailable"
	KindLLMUnavailable     ErrKind = "LLMUnavailable"
	KindLLMTimeout         ErrKind = "LLMTimeout"
	KindLLMEmpty           ErrKind = "LLMEmpty"
	KindParseFailure       ErrKind = "ParseFailure"
	KindTableShapeError    ErrKind = "TableShapeError"
	KindDataUnavailable    ErrKind = "DataUnavailable"
	KindRetrievalTimeout   ErrKind = "RetrievalTimeout"
	KindSessionNotFound    ErrKind = "SessionNotFound"
	KindSessionExpired     ErrKind = "SessionExpired"
	KindInvalidAnswer      ErrKind = "InvalidAnswer"
	KindUnknownSeries      ErrKind = "UnknownSeries"
)

// Error is a typed error carrying one of the closed ErrKind values plus a
// human-readable message. Components return *Error rather than raising.
// Data optionally carries a kind-specific structured payload (e.g.
// retrieval.DataUnavailableInfo) for a caller that wants more than the
// message string.
type Error struct {
	Kind    ErrKind
	Message string
	Err     error
	Data    any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind ErrKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind around a lower-level error.
func Wrap(kind ErrKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithData builds an *Error of the given kind carrying a structured payload.
func WithData(kind ErrKind, message string, data any) *Error {
	return &Error{Kind: kind, Message: message, Data: data}
}

// DataOf extracts the Data payload from err, if it (or something it
// wraps) is an *Error.
func DataOf(err error) (any, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Data, e.Data != nil
	}
	return nil, false
}

// KindOf extracts the ErrKind from err, if it (or something it wraps) is an
// *Error. ok is false for plain errors.
func KindOf(err error) (ErrKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
