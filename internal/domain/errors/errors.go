package errors

import (
	"errors"
	"fmt"
)

// Error types for different domains
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeBusiness   ErrorType = "business"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeExternal   ErrorType = "external"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeTimeout    ErrorType = "timeout"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

func NewBusinessError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeBusiness,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 422,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "RESOURCE_NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		Retryable:  false,
		StatusCode: 404,
	}
}

func NewConflictError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 409,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Retryable:  true,
		StatusCode: 500,
	}
}

func NewExternalError(service, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       "EXTERNAL_SERVICE_ERROR",
		Message:    fmt.Sprintf("%s service error: %s", service, message),
		Retryable:  true,
		StatusCode: 502,
		Details:    map[string]interface{}{"service": service},
	}
}

// NewAlreadyPublishedError marks a publish attempt that lost the race or
// repeated a prior publish. Expected under concurrent polling, not a fault.
func NewAlreadyPublishedError(exerciseID, definitionID string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       "ALREADY_PUBLISHED",
		Message:    "event definition already published for this exercise",
		Retryable:  false,
		StatusCode: 409,
		Details: map[string]interface{}{
			"exercise_id":         exerciseID,
			"event_definition_id": definitionID,
		},
	}
}

// NewAlreadyCancelledError marks a definition that was terminated by a
// cancellation record before it could fire.
func NewAlreadyCancelledError(exerciseID, definitionID string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       "ALREADY_CANCELLED",
		Message:    "event definition already cancelled for this exercise",
		Retryable:  false,
		StatusCode: 409,
		Details: map[string]interface{}{
			"exercise_id":         exerciseID,
			"event_definition_id": definitionID,
		},
	}
}

// NewConditionEvaluationError marks a malformed condition trigger. The
// definition is skipped until the condition spec is fixed.
func NewConditionEvaluationError(definitionID, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       "CONDITION_EVALUATION_ERROR",
		Message:    message,
		Retryable:  false,
		StatusCode: 422,
		Details:    map[string]interface{}{"event_definition_id": definitionID},
	}
}

// NewSideEffectFailureError triggers full rollback of a publish attempt.
func NewSideEffectFailureError(kind string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "SIDE_EFFECT_CREATION_FAILURE",
		Message:    fmt.Sprintf("failed to create %s side effect", kind),
		Cause:      cause,
		Retryable:  true,
		StatusCode: 500,
		Details:    map[string]interface{}{"side_effect_kind": kind},
	}
}

// NewStageTimeoutError marks a content-generation stage that exceeded its
// bounded timeout; the current escalation cycle halts and retries next tick.
func NewStageTimeoutError(stage string) *AppError {
	return &AppError{
		Type:       ErrorTypeTimeout,
		Code:       "STAGE_GENERATION_TIMEOUT",
		Message:    fmt.Sprintf("generation stage %s timed out", stage),
		Retryable:  true,
		StatusCode: 504,
		Details:    map[string]interface{}{"stage": stage},
	}
}

// NewStageOutputError marks generator output that failed validation. The
// output is rejected, never coerced into range.
func NewStageOutputError(stage, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       "STAGE_OUTPUT_INVALID",
		Message:    message,
		Retryable:  true,
		StatusCode: 502,
		Details:    map[string]interface{}{"stage": stage},
	}
}

// Predefined common errors
var (
	ErrInvalidInput       = NewValidationError("INVALID_INPUT", "Invalid input provided")
	ErrExerciseNotFound   = NewNotFoundError("exercise")
	ErrDefinitionNotFound = NewNotFoundError("event definition")
	ErrSnapshotNotFound   = NewNotFoundError("escalation snapshot")
)

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsCode checks if an error carries a specific application code
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsAlreadyPublished reports a benign duplicate-publish outcome.
func IsAlreadyPublished(err error) bool {
	return IsCode(err, "ALREADY_PUBLISHED")
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetStatusCode extracts HTTP status code from error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 500
}
