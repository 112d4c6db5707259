package services

import (
	"errors"
	"net/http"
	"time"
)

type ErrorCode string

const (
	CodeForbidden           ErrorCode = "FORBIDDEN"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeInvalidTransition   ErrorCode = "INVALID_TRANSITION"
	CodeSequenceViolation   ErrorCode = "SEQUENCE_VIOLATION"
	CodeIncompleteSubSteps  ErrorCode = "INCOMPLETE_SUB_STEPS"
	CodeStepsIncomplete     ErrorCode = "STEPS_INCOMPLETE"
	CodeValidation          ErrorCode = "VALIDATION_ERROR"
	CodeConflict            ErrorCode = "CONFLICT"
	CodeNoApproverAvailable ErrorCode = "NO_APPROVER_AVAILABLE"
)

// Error is a caller-visible service failure. Validation and state-machine
// failures surface as these; infra failures stay plain errors and map to 500.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`

	// Populated for CodeConflict so the caller can reconcile.
	ClientVersion *time.Time `json:"clientVersion,omitempty"`
	ServerVersion *time.Time `json:"serverVersion,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func ErrForbidden(message string) *Error {
	return newError(CodeForbidden, message)
}

func ErrNotFound(entity string) *Error {
	return newError(CodeNotFound, entity+" not found")
}

func ErrInvalidTransition(message string) *Error {
	return newError(CodeInvalidTransition, message)
}

func ErrValidation(message string) *Error {
	return newError(CodeValidation, message)
}

// AsServiceError unwraps err into a *Error if it is one.
func AsServiceError(err error) (*Error, bool) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// HTTPStatus maps a service error code to the status the controllers return.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeNoApproverAvailable:
		return http.StatusInternalServerError
	case CodeInvalidTransition, CodeSequenceViolation, CodeIncompleteSubSteps,
		CodeStepsIncomplete, CodeValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
