package utils

import (
	"errors"
	"fmt"
)

// Error kinds. Every APIError carries exactly one of them so callers can
// branch with errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrEmptyResult  = errors.New("empty result")
	ErrTransport    = errors.New("transport error")
	ErrInvalidInput = errors.New("invalid input")
	ErrSystem       = errors.New("system error")
)

type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`

	kind  error
	cause error
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

func (e *APIError) Unwrap() []error {
	errs := []error{e.kind}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// Kind returns the sentinel this error was created with.
func (e *APIError) Kind() error {
	return e.kind
}

func NewTransportError(op string, err error) *APIError {
	return &APIError{
		Code:    1001,
		Message: fmt.Sprintf("%s failed", op),
		Details: errString(err),
		kind:    ErrTransport,
		cause:   err,
	}
}

// NewDeployError reports a failed deployment step. The kind of err is kept
// when it is already an APIError, otherwise the step is a transport failure.
func NewDeployError(step string, err error) *APIError {
	kind := ErrTransport
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		kind = apiErr.kind
	}
	return &APIError{
		Code:    2001,
		Message: fmt.Sprintf("deployment step %s failed", step),
		Details: errString(err),
		kind:    kind,
		cause:   err,
	}
}

func NewValidationError(field string, value interface{}) *APIError {
	return &APIError{
		Code:    3001,
		Message: fmt.Sprintf("%s is not specified", field),
		Details: valueDetails(value),
		kind:    ErrValidation,
	}
}

func NewInvalidInputError(what string, value interface{}) *APIError {
	return &APIError{
		Code:    3002,
		Message: fmt.Sprintf("invalid %s", what),
		Details: valueDetails(value),
		kind:    ErrInvalidInput,
	}
}

// NewBusyError reports that what is locked by another deployment.
func NewBusyError(what string) *APIError {
	return &APIError{
		Code:    3003,
		Message: fmt.Sprintf("%s: deployment already in progress", what),
		kind:    ErrValidation,
	}
}

func NewNotFoundError(what, location string) *APIError {
	return &APIError{
		Code:    4001,
		Message: fmt.Sprintf("%s '%s' doesn't exist", what, location),
		kind:    ErrNotFound,
	}
}

func NewEmptyResultError(configured string) *APIError {
	return &APIError{
		Code:    4002,
		Message: "no deployments found",
		Details: fmt.Sprintf("configured value: %s", configured),
		kind:    ErrEmptyResult,
	}
}

func NewSystemError(err error) *APIError {
	return &APIError{
		Code:    5001,
		Message: "system error",
		Details: errString(err),
		kind:    ErrSystem,
		cause:   err,
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func valueDetails(value interface{}) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok && s == "" {
		return ""
	}
	return fmt.Sprintf("value: %v", value)
}
