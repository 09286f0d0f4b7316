// Package apperrors holds the caller-facing error taxonomy. Every value
// carries a stable machine-readable code and the HTTP status it maps to.
package apperrors

import (
	"errors"
	"net/http"
)

// Stable codes surfaced in the response envelope.
const (
	CodeUnauthorized              = "UNAUTHORIZED"
	CodeForbidden                 = "FORBIDDEN"
	CodeNotFound                  = "NOT_FOUND"
	CodeBadRequest                = "BAD_REQUEST"
	CodeInvalidQualification      = "INVALID_QUALIFICATION"
	CodeNoLeaderInProject         = "NO_LEADER_IN_PROJECT"
	CodeLastLeaderCannotBeRemoved = "LAST_LEADER_CANNOT_BE_REMOVED"
	CodeCannotRemoveSelf          = "CANNOT_REMOVE_SELF"
	CodeConflict                  = "CONFLICT"
	CodeRedundantChange           = "REDUNDANT_CHANGE"
	CodeTooManyRequests           = "TOO_MANY_REQUESTS"
	CodeInternal                  = "INTERNAL_ERROR"
)

// AppError is an error that is safe to show to the caller.
type AppError struct {
	HTTPStatus int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

// Is matches on Code, so a sentinel still matches after WithMessage.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *AppError) WithMessage(msg string) *AppError {
	return &AppError{HTTPStatus: e.HTTPStatus, Code: e.Code, Message: msg}
}

var (
	ErrUnauthorized              = &AppError{http.StatusUnauthorized, CodeUnauthorized, "authentication required"}
	ErrForbidden                 = &AppError{http.StatusForbidden, CodeForbidden, "permission denied"}
	ErrNotFound                  = &AppError{http.StatusNotFound, CodeNotFound, "resource not found"}
	ErrBadRequest                = &AppError{http.StatusBadRequest, CodeBadRequest, "invalid request"}
	ErrInvalidQualification      = &AppError{http.StatusBadRequest, CodeInvalidQualification, "cannot approve a user into pending"}
	ErrNoLeaderInProject         = &AppError{http.StatusBadRequest, CodeNoLeaderInProject, "project must have at least one leader"}
	ErrLastLeaderCannotBeRemoved = &AppError{http.StatusBadRequest, CodeLastLeaderCannotBeRemoved, "cannot remove the last leader of a project"}
	ErrCannotRemoveSelf          = &AppError{http.StatusBadRequest, CodeCannotRemoveSelf, "cannot remove yourself from a project"}
	ErrConflict                  = &AppError{http.StatusConflict, CodeConflict, "resource already exists"}
	ErrRedundantChange           = &AppError{http.StatusConflict, CodeRedundantChange, "state already matches the requested value"}
	ErrTooManyRequests           = &AppError{http.StatusTooManyRequests, CodeTooManyRequests, "too many requests, please try again later"}
	ErrInternal                  = &AppError{http.StatusInternalServerError, CodeInternal, "internal server error"}
)

func NewNotFound(msg string) *AppError   { return ErrNotFound.WithMessage(msg) }
func NewForbidden(msg string) *AppError  { return ErrForbidden.WithMessage(msg) }
func NewBadRequest(msg string) *AppError { return ErrBadRequest.WithMessage(msg) }

// From extracts the AppError in err's chain. Anything else becomes
// ErrInternal and ok is false.
func From(err error) (appErr *AppError, ok bool) {
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return ErrInternal, false
}
