// Package apperror defines the error taxonomy shared by the client SDK and the
// companion backend.
//
// Every error surfaced by a Session Manager, Synchronizer or handler operation is an
// *AppError. The Err field holds one of the sentinels below so callers can branch with
// errors.Is; Message is the human-readable string shown to the user.
//
//	err := mgr.Login(ctx, creds)
//	if errors.Is(err, apperror.ErrTransport) { ... }   // backend unreachable
//	fmt.Println(apperror.Message(err))                  // "Invalid email or password"
package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport means no usable response arrived: network failure, timeout or an
	// undecodable body.
	ErrTransport = errors.New("transport error")
	// ErrRejected means the backend answered with a structured failure.
	ErrRejected = errors.New("rejected")
	// ErrNotAuthenticated means an identity is required but absent (locally or per the backend).
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrValidation       = errors.New("validation error")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrForbidden        = errors.New("forbidden")
)

// genericMessage is what Message returns for errors outside the taxonomy.
const genericMessage = "Something went wrong. Please try again."

type AppError struct {
	Err     error  // sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error (transport failures)
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause, so errors.Is matches either one.
func (e *AppError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Transport wraps a failure to reach the backend during op.
func Transport(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrTransport,
		Message: fmt.Sprintf("Could not reach MoodMingle (%s). Check your connection and try again.", op),
		Cause:   cause,
	}
}

// Rejected carries the backend's own failure message.
func Rejected(message string) *AppError {
	return &AppError{
		Err:     ErrRejected,
		Message: message,
	}
}

func NotAuthenticated(message string) *AppError {
	if message == "" {
		message = "not logged in"
	}
	return &AppError{
		Err:     ErrNotAuthenticated,
		Message: message,
	}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation, e.g. a username that is already taken.
func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Message returns the human string for any error: the AppError message when err
// carries one, a generic fallback otherwise, and "" for nil.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return genericMessage
}

// Ensure converts any error into an *AppError. Errors already in the taxonomy are
// returned as-is; anything else is treated as a transport failure of op. A nil err
// stays nil.
func Ensure(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Transport(op, err)
}
