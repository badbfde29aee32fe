// Package domainerrors defines the error taxonomy shared by services and the
// HTTP layer. Services return these so transport can translate them into
// consistent JSON envelopes without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies the class of a domain error. The string value doubles as the
// machine-readable "error" field in HTTP responses.
type Code string

const (
	CodeValidation          Code = "validation_error"
	CodeBadRequest          Code = "bad_request"
	CodeNotFound            Code = "not_found"
	CodeUnauthorized        Code = "unauthorized"
	CodeForbidden           Code = "forbidden"
	CodeInvalidState        Code = "invalid_state"
	CodeInvalidTransition   Code = "invalid_transition"
	CodeIncompleteDocuments Code = "incomplete_documents"
	CodeConflict            Code = "conflict"
	CodeInternal            Code = "internal_error"
)

// DomainError carries a code, a human-readable message and optional detail
// payloads (field-level validation messages, missing document keys).
type DomainError struct {
	Code    Code
	Message string
	// Fields holds per-field validation messages for CodeValidation errors.
	Fields map[string]string
	// Missing lists the absent required document types for
	// CodeIncompleteDocuments errors.
	Missing []string

	cause error
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.cause }

// New creates a DomainError with the given code and message.
func New(code Code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Wrap annotates err with a code and message while preserving the cause for
// errors.Is / errors.As chains.
func Wrap(err error, code Code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, cause: err}
}

// NewValidation creates a validation error carrying per-field messages.
func NewValidation(message string, fields map[string]string) *DomainError {
	return &DomainError{Code: CodeValidation, Message: message, Fields: fields}
}

// NewIncompleteDocuments creates the submit-gate error listing missing keys.
func NewIncompleteDocuments(missing []string) *DomainError {
	return &DomainError{
		Code:    CodeIncompleteDocuments,
		Message: "required documents are missing",
		Missing: missing,
	}
}

// HasCode reports whether err (or anything it wraps) is a DomainError with
// the given code.
func HasCode(err error, code Code) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that did not originate in the domain layer.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code onto its canonical HTTP status.
// State-gate and completeness failures are client errors per the API contract.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest, CodeInvalidState, CodeInvalidTransition,
		CodeIncompleteDocuments, CodeConflict:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
