// Package apperr is the failure taxonomy surfaced to callers of the API.
// Every failure carries a stable machine-readable Code.
package apperr

import (
	"errors"
	"fmt"

	"github.com/geocoder89/shifthub/internal/domain/organization"
	"github.com/geocoder89/shifthub/internal/domain/shift"
	"github.com/geocoder89/shifthub/internal/domain/user"
	"github.com/geocoder89/shifthub/internal/geo"
)

type Code string

const (
	CodeUnauthenticated Code = "unauthenticated"
	CodeForbidden       Code = "forbidden"
	CodeNotFound        Code = "not_found"
	CodeOutsideGeofence Code = "outside_geofence"
	CodeAlreadyActive   Code = "already_active"
	CodeNoActiveShift   Code = "no_active_shift"
	CodeNoOrganization  Code = "no_organization"
	CodeInvalidInput    Code = "invalid_input"
	CodeConflict        Code = "conflict"
	CodeInternal        Code = "internal_error"
)

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func Unauthenticated() *Error {
	return New(CodeUnauthenticated, "Not authenticated")
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, message)
}

func InvalidInput(message string) *Error {
	return New(CodeInvalidInput, message)
}

func Internal(err error) *Error {
	return Wrap(CodeInternal, "Internal server error", err)
}

// From classifies err. Known domain sentinels get their own code; anything
// else is an internal error whose cause stays in Err and is never shown.
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, shift.ErrAlreadyActive):
		return Wrap(CodeAlreadyActive, "User already has an active shift", err)
	case errors.Is(err, shift.ErrNoActiveShift):
		return Wrap(CodeNoActiveShift, "No active shift found", err)
	case errors.Is(err, shift.ErrNotFound):
		return Wrap(CodeNotFound, "Shift not found", err)
	case errors.Is(err, user.ErrNotFound):
		return Wrap(CodeNotFound, "User not found", err)
	case errors.Is(err, user.ErrAlreadyExists):
		return Wrap(CodeConflict, "User profile already exists", err)
	case errors.Is(err, organization.ErrNotFound):
		return Wrap(CodeNotFound, "Organization not found", err)
	case errors.Is(err, organization.ErrInvalidRadius):
		return Wrap(CodeInvalidInput, "Perimeter radius must be positive", err)
	case errors.Is(err, geo.ErrInvalidCoordinate):
		return Wrap(CodeInvalidInput, err.Error(), err)
	default:
		return Internal(err)
	}
}

// CodeOf returns the classified code of err, or "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return From(err).Code
}
