// Package apperr defines the error taxonomy shared by the edit session core,
// the persistence layer and the HTTP handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure.
type Code string

const (
	CodePersistence       Code = "PERSISTENCE_FAILURE"
	CodePermissionDenied  Code = "PERMISSION_DENIED"
	CodeInvalidRole       Code = "INVALID_ROLE"
	CodeCannotRemoveOwner Code = "CANNOT_REMOVE_OWNER"
	CodeCannotDemoteOwner Code = "CANNOT_DEMOTE_OWNER"
	CodeNotFound          Code = "NOT_FOUND"
	CodeInvalidInput      Code = "INVALID_INPUT"
	CodeDuplicate         Code = "DUPLICATE"
	CodeUnauthenticated   Code = "UNAUTHENTICATED"
)

// Error is an application error carrying a Code.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Code, so that
// errors.Is(err, apperr.ErrNotFound) matches any not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrPersistence       = &Error{Code: CodePersistence, Message: "persistence failed"}
	ErrPermissionDenied  = &Error{Code: CodePermissionDenied, Message: "permission denied"}
	ErrInvalidRole       = &Error{Code: CodeInvalidRole, Message: "invalid role"}
	ErrCannotRemoveOwner = &Error{Code: CodeCannotRemoveOwner, Message: "the owner cannot be removed"}
	ErrCannotDemoteOwner = &Error{Code: CodeCannotDemoteOwner, Message: "the owner's role cannot be changed"}
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrInvalidInput      = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	ErrDuplicate         = &Error{Code: CodeDuplicate, Message: "already exists"}
	ErrUnauthenticated   = &Error{Code: CodeUnauthenticated, Message: "no authenticated user"}
)

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the Code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HTTPStatus maps an error onto the status code the handlers respond with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeNotFound:
		return http.StatusNotFound
	case CodePermissionDenied, CodeCannotRemoveOwner, CodeCannotDemoteOwner:
		return http.StatusForbidden
	case CodeInvalidRole, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeDuplicate:
		return http.StatusConflict
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
