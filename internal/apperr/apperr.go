// Package apperr defines the typed errors returned by CRUD services and
// mapped to HTTP responses by the admin API.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an error that knows its HTTP status and a stable code.
type AppError interface {
	error
	HTTPStatus() int
	Code() string
}

// NotFoundError is returned when a record or entity does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) HTTPStatus() int { return http.StatusNotFound }
func (e *NotFoundError) Code() string    { return "NOT_FOUND" }

// NewNotFound creates a NotFoundError.
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError is returned for invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) HTTPStatus() int { return http.StatusBadRequest }
func (e *ValidationError) Code() string    { return "VALIDATION_ERROR" }

// NewValidation creates a ValidationError.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConflictError is returned when a write collides with existing data.
type ConflictError struct {
	Resource string
	Field    string
	Value    string
}

func (e *ConflictError) Error() string {
	if e.Field != "" && e.Value != "" {
		return fmt.Sprintf("%s already exists with %s='%s'", e.Resource, e.Field, e.Value)
	}
	return fmt.Sprintf("%s already exists", e.Resource)
}

func (e *ConflictError) HTTPStatus() int { return http.StatusConflict }
func (e *ConflictError) Code() string    { return "CONFLICT" }

// NewConflict creates a ConflictError.
func NewConflict(resource, field, value string) *ConflictError {
	return &ConflictError{Resource: resource, Field: field, Value: value}
}

// ForbiddenError is returned when an entity does not expose an action.
type ForbiddenError struct {
	Action   string
	Resource string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("action %s is not enabled on %s", e.Action, e.Resource)
}

func (e *ForbiddenError) HTTPStatus() int { return http.StatusForbidden }
func (e *ForbiddenError) Code() string    { return "FORBIDDEN" }

// NewForbidden creates a ForbiddenError.
func NewForbidden(action, resource string) *ForbiddenError {
	return &ForbiddenError{Action: action, Resource: resource}
}

// UpstreamError is a non-2xx answer from a remote API.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("upstream returned %d", e.Status)
}

// HTTPStatus passes 4xx answers through and reports 5xx as a bad gateway.
func (e *UpstreamError) HTTPStatus() int {
	if e.Status >= 400 && e.Status < 500 {
		return e.Status
	}
	return http.StatusBadGateway
}

func (e *UpstreamError) Code() string { return "UPSTREAM_ERROR" }

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Status returns the HTTP status for err, 500 for untyped errors.
func Status(err error) int {
	var ae AppError
	if errors.As(err, &ae) {
		return ae.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// Code returns the stable code for err, UNKNOWN_ERROR for untyped errors.
func Code(err error) string {
	var ae AppError
	if errors.As(err, &ae) {
		return ae.Code()
	}
	return "UNKNOWN_ERROR"
}

// Response is the JSON error body.
type Response struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ToResponse converts err into a Response.
func ToResponse(err error) Response {
	return Response{Code: Code(err), Message: err.Error()}
}
