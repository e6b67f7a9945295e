package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrMalformedPayload = &AppError{
		Code:       "MALFORMED_PAYLOAD",
		Message:    "Inbound message could not be parsed",
		StatusCode: 422,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Avatar state failed structural validation",
		StatusCode: 422,
	}

	ErrInvalidResponse = &AppError{
		Code:       "INVALID_RESPONSE",
		Message:    "Backend returned an empty avatar record",
		StatusCode: 502,
	}

	ErrPersistenceFailed = &AppError{
		Code:       "PERSISTENCE_FAILED",
		Message:    "Avatar record could not be stored",
		StatusCode: 500,
	}

	ErrBackendSyncFailed = &AppError{
		Code:       "BACKEND_SYNC_FAILED",
		Message:    "Avatar will sync to your profile later",
		StatusCode: 502,
	}

	ErrSessionTimeout = &AppError{
		Code:       "SESSION_TIMEOUT",
		Message:    "Avatar creation timed out",
		StatusCode: 408,
	}

	ErrProviderReported = &AppError{
		Code:       "PROVIDER_ERROR",
		Message:    "Avatar creation surface reported an error",
		StatusCode: 502,
	}

	ErrAvatarNotFound = &AppError{
		Code:       "AVATAR_NOT_FOUND",
		Message:    "Avatar not found",
		StatusCode: 404,
	}
)

// Session-specific errors
var (
	ErrSessionNotFound = &AppError{
		Code:       "SESSION_NOT_FOUND",
		Message:    "Creation session not found or expired",
		StatusCode: 404,
	}

	ErrSessionClosed = &AppError{
		Code:       "SESSION_CLOSED",
		Message:    "Creation session already terminated",
		StatusCode: 409,
	}

	ErrInvalidTransition = &AppError{
		Code:       "INVALID_TRANSITION",
		Message:    "Action not allowed in the current session state",
		StatusCode: 409,
	}
)
