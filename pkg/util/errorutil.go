package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes used across the service. Every collaborator failure is
// mapped onto one of these before it crosses the API boundary.
const (
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeConflict             = "CONFLICT"
	CodeNotFound             = "NOT_FOUND"
	CodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	CodeForbidden            = "FORBIDDEN"
	CodeInvalidState         = "INVALID_STATE"
	CodeEmptyResult          = "EMPTY_RESULT"
	CodePersistenceFailed    = "PERSISTENCE_FAILED"
	CodeStorageFailed        = "STORAGE_FAILED"
	CodeInternal             = "INTERNAL_ERROR"
	CodeUnauthorized         = "UNAUTHORIZED"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewNotFound(message string, details map[string]any) error {
	return NewDomainError(CodeNotFound, message, http.StatusNotFound, details)
}

func NewAuthenticationError(message string) error {
	return NewDomainError(CodeAuthenticationFailed, message, http.StatusUnauthorized, nil)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewInvalidState(message string) error {
	return NewDomainError(CodeInvalidState, message, http.StatusConflict, nil)
}

func NewEmptyResult(message string) error {
	return NewDomainError(CodeEmptyResult, message, http.StatusNotFound, nil)
}

func NewPersistenceError(message string, err error) error {
	return &DomainError{
		Code:       CodePersistenceFailed,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewStorageError(message string, err error) error {
	return &DomainError{
		Code:       CodeStorageFailed,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to a DomainError, defaulting to
// the internal catch-all so raw collaborator errors never leak.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// CodeOf returns the domain code for an error, or the internal catch-all.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Code
}
