package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
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

// Is matches on code and status so wrapped copies compare equal to the sentinels below.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.HTTPStatus == t.HTTPStatus
}

// Wrap returns a copy of the error carrying cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	cp := *e
	cp.Err = cause
	return &cp
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// Auth error kinds. Handlers and middleware return these directly; the error
// middleware renders them.
var (
	ErrBadCredentials         = NewDomainError("AUTH_BAD_CREDENTIALS", "invalid email or password", http.StatusUnauthorized, nil)
	ErrRefreshTokenMissing    = NewDomainError("AUTH_REFRESH_TOKEN_MISSING", "refresh token missing, please sign in again", http.StatusBadRequest, nil)
	ErrRefreshTokenInvalid    = NewDomainError("AUTH_REFRESH_TOKEN_INVALID", "refresh token is invalid or expired", http.StatusUnauthorized, nil)
	ErrRefreshTokenMismatch   = NewDomainError("AUTH_REFRESH_TOKEN_MISMATCH", "refresh token does not match the current session", http.StatusUnauthorized, nil)
	ErrSessionTerminated      = NewDomainError("AUTH_ACCESS_DENIED", "session terminated", http.StatusUnauthorized, nil)
	ErrAccessDenied           = NewDomainError("AUTH_ACCESS_DENIED", "access denied", http.StatusForbidden, nil)
	ErrAuthenticationRequired = NewDomainError("UNAUTHORIZED", "authentication required", http.StatusUnauthorized, nil)
	ErrStoreUnavailable       = NewDomainError("STORE_UNAVAILABLE", "session store unavailable", http.StatusServiceUnavailable, nil)
	ErrDuplicateEmail         = NewDomainError("SIGNUP_DUPLICATE_EMAIL", "email already registered", http.StatusConflict, nil)
	ErrDuplicateNickname      = NewDomainError("SIGNUP_DUPLICATE_NICKNAME", "nickname already taken", http.StatusConflict, nil)
)

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewStoreUnavailable wraps a cache failure so callers fail closed.
func NewStoreUnavailable(err error) error {
	return ErrStoreUnavailable.Wrap(err)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	return ToDomainError(err)
}
