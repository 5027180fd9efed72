// Package errors defines the application-level error kinds used to map
// internal failures onto the HTTP status table in spec.md §7.
package errors

import "fmt"

// Kind classifies an AppError for the HTTP boundary.
type Kind string

const (
	KindBadRequest          Kind = "bad_request"
	KindNotFound            Kind = "not_found"
	KindForbidden           Kind = "forbidden"
	KindConflict            Kind = "conflict"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindInternal            Kind = "internal"
)

// AppError is the error type every service-layer function returns for
// caller-visible failures. Handlers translate Kind into an HTTP status.
type AppError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

func new(kind Kind, msg string) *AppError {
	return &AppError{Kind: kind, Message: msg}
}

func NewBadRequestError(msg string) *AppError          { return new(KindBadRequest, msg) }
func NewNotFoundError(msg string) *AppError            { return new(KindNotFound, msg) }
func NewForbiddenError(msg string) *AppError            { return new(KindForbidden, msg) }
func NewConflictError(msg string) *AppError             { return new(KindConflict, msg) }
func NewUpstreamUnavailableError(msg string) *AppError  { return new(KindUpstreamUnavailable, msg) }
func NewInternalServerError(msg string) *AppError       { return new(KindInternal, msg) }

// Wrap attaches a cause to a newly built AppError of the given kind.
func Wrap(kind Kind, msg string, cause error) *AppError {
	return &AppError{Kind: kind, Message: msg, Cause: cause}
}

// HTTPStatus returns the status code for a Kind, per spec.md §7.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBadRequest:
		return 400
	case KindNotFound:
		return 404
	case KindForbidden:
		return 403
	case KindConflict:
		return 409
	case KindUpstreamUnavailable:
		return 502
	default:
		return 500
	}
}
