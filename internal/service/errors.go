package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/forgo/taskboard/internal/model"
)

// Centralized service layer errors.
// Every error a service method returns either matches one of the sentinels
// below with errors.Is or is a server error.

// ===== Error Kinds =====
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// ===== Task Errors =====
var (
	ErrTaskNotFound  = fmt.Errorf("task %w", ErrNotFound)
	ErrDuplicateTask = errors.New("duplicate task")
)

// ===== User Errors =====
var (
	ErrUserNotFound   = fmt.Errorf("user %w", ErrNotFound)
	ErrDuplicateUser  = errors.New("duplicate user")
	ErrDuplicateEmail = errors.New("duplicate email")
)

// ValidationError carries the per-field problems of a rejected request
type ValidationError struct {
	Message string
	Fields  []model.FieldError
}

// NewValidationError builds a validation error for a single field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Message: "Validation failed",
		Fields:  []model.FieldError{{Field: field, Message: message}},
	}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// DuplicateError reports a write that collided with a unique key.
// Err names what collided and Value is the colliding key.
type DuplicateError struct {
	Err   error
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Value)
}

func (e *DuplicateError) Unwrap() error {
	return e.Err
}

// Is makes every DuplicateError match ErrDuplicateKey
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicateKey
}
