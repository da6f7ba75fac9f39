package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeFormat             ErrorType = "FORMAT"
	ErrTypeShapeMismatch      ErrorType = "SHAPE_MISMATCH"
	ErrTypeMissingCalibration ErrorType = "MISSING_CALIBRATION"
	ErrTypeFitConvergence     ErrorType = "FIT_CONVERGENCE"
	ErrTypeMissingData        ErrorType = "MISSING_DATA"
	ErrTypeStorage            ErrorType = "STORAGE"
	ErrTypeValidation         ErrorType = "VALIDATION"
	ErrTypeNotFound           ErrorType = "NOT_FOUND"
	ErrTypeConfig             ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Recoverable reports whether processing may continue past this error.
// Format, storage and config errors abort the current file or request.
func (e *AppError) Recoverable() bool {
	switch e.Type {
	case ErrTypeShapeMismatch, ErrTypeMissingCalibration, ErrTypeFitConvergence, ErrTypeMissingData:
		return true
	}
	return false
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Helper functions for common error types

// NewFormatError reports an unparseable layout. offset is the byte offset in binary input,
// or -1 when the error is not tied to a position.
func NewFormatError(message string, offset int) *AppError {
	err := NewAppError(ErrTypeFormat, message, nil)
	if offset >= 0 {
		err.Message = fmt.Sprintf("%s at offset %d", message, offset)
		err.WithContext("offset", offset)
	}
	return err
}

// NewMissingColumnsError reports that none of a device's expected columns were found
func NewMissingColumnsError(device string, missing []string) *AppError {
	return NewAppError(ErrTypeFormat, fmt.Sprintf("no %s columns found, wrong device selected?", device), nil).
		WithContext("device", device).
		WithContext("missing_columns", missing)
}

// NewShapeMismatchError reports aligned inputs of different lengths
func NewShapeMismatchError(message string, got, want int) *AppError {
	return NewAppError(ErrTypeShapeMismatch,
		fmt.Sprintf("%s: dimensions must be equal, found %d and %d", message, got, want), nil).
		WithContext("shapes", [2]int{got, want})
}

// NewMissingCalibrationError reports that a required offset is absent
func NewMissingCalibrationError(message string, cause error) *AppError {
	return NewAppError(ErrTypeMissingCalibration, message, cause)
}

// NewFitConvergenceError reports a nonlinear solver that did not converge
func NewFitConvergenceError(model string, cause error) *AppError {
	return NewAppError(ErrTypeFitConvergence, fmt.Sprintf("%s fit did not converge", model), cause).
		WithContext("model", model)
}

// NewMissingDataError reports a selection with no valid samples
func NewMissingDataError(message string) *AppError {
	return NewAppError(ErrTypeMissingData, message, nil)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// TypeOf returns the ErrorType of the first AppError in err's chain
func TypeOf(err error) (ErrorType, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type, true
	}
	return "", false
}

// IsType reports whether err's chain holds an AppError of the given type
func IsType(err error, t ErrorType) bool {
	got, ok := TypeOf(err)
	return ok && got == t
}

// IsRecoverable reports whether err is a recoverable AppError
func IsRecoverable(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Recoverable()
}
