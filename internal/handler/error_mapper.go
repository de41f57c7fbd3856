package handler

import (
	"errors"
	"net/http"

	"github.com/forgo/taskboard/internal/service"
)

// MapServiceError converts a service error to an error response.
// Anything outside the known set becomes a 500 without internal detail.
func MapServiceError(err error) *APIError {
	if err == nil {
		return nil
	}

	var validationErr *service.ValidationError
	var duplicateErr *service.DuplicateError

	switch {
	// ===== Validation Errors → 400 =====
	case errors.As(err, &validationErr):
		return &APIError{
			Status:  http.StatusBadRequest,
			Message: validationErr.Message,
			Errors:  validationErr.Fields,
		}

	// ===== Not Found Errors → 404 =====
	case errors.Is(err, service.ErrTaskNotFound):
		return &APIError{Status: http.StatusNotFound, Message: "Task not found"}
	case errors.Is(err, service.ErrUserNotFound):
		return &APIError{Status: http.StatusNotFound, Message: "User not found"}

	// ===== Duplicate Key Errors → 400 =====
	case errors.As(err, &duplicateErr):
		return &APIError{Status: http.StatusBadRequest, Message: duplicateMessage(duplicateErr)}

	// ===== Default → 500 =====
	default:
		return &APIError{Status: http.StatusInternalServerError, Message: "Server error"}
	}
}

func duplicateMessage(err *service.DuplicateError) string {
	var label string
	switch {
	case errors.Is(err.Err, service.ErrDuplicateEmail):
		label = "Duplicate email"
	case errors.Is(err.Err, service.ErrDuplicateUser):
		label = "Duplicate user"
	default:
		label = "Duplicate task"
	}
	if err.Value == "" {
		return label
	}
	return label + ": " + err.Value
}
