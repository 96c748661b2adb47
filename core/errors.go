package core

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// ErrUnauthenticated is returned when an operation requiring a principal is called anonymously.
var ErrUnauthenticated = errors.New("authentication credentials were not provided")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(field, msg string) error {
	return &ValidationError{errors.New(msg), []FieldError{{Field: field, Error: msg}}}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// AuthorizationError is returned when a principal's role does not allow an action on a resource.
type AuthorizationError struct {
	Action   string
	Resource string
	Reason   string
}

func NewAuthorizationError(action, resource string, reason ...string) error {
	err := &AuthorizationError{Action: action, Resource: resource}
	if len(reason) > 0 {
		err.Reason = reason[0]
	}
	return err
}

func (err AuthorizationError) Error() string {
	if err.Reason != "" {
		return err.Reason
	}
	return fmt.Sprintf("permission denied: %s %s", err.Action, err.Resource)
}

type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

// UpstreamError wraps failures of a collaborator: record store, cache or mail transport.
type UpstreamError struct {
	Service string
	Err     error
}

func NewUpstreamError(service string, err error) error {
	return &UpstreamError{Service: service, Err: err}
}

func (err UpstreamError) Error() string {
	return err.Service + ": " + err.Err.Error()
}

func (err UpstreamError) Unwrap() error { return err.Err }

// IsValidation also holds for raw validator errors.
func IsValidation(err error) bool {
	var target *ValidationError
	var fieldErrs validator.ValidationErrors
	return errors.As(err, &target) || errors.As(err, &fieldErrs)
}

func IsAuthorization(err error) bool {
	var target *AuthorizationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsUpstream(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
