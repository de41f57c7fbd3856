// Package service implements the business logic layer for the taskboard API.
//
// Services validate payloads, resolve assignees and translate storage
// failures into a closed set of errors. Handlers never see database errors
// directly.
//
// # Service Pattern
//
//   - Constructor function (NewXxxService) accepts a config struct with repository dependencies
//   - Repository interfaces are declared here, next to the service that needs them
//   - Context is passed through for cancellation and request-scoped values
//
// # Error Handling
//
// Every error a service returns matches one of these with errors.Is, or is
// a server error:
//
//	ErrValidation    *ValidationError carrying per-field messages
//	ErrNotFound      ErrTaskNotFound, ErrUserNotFound
//	ErrDuplicateKey  *DuplicateError wrapping ErrDuplicateTask, ErrDuplicateUser or ErrDuplicateEmail
//
// # Reverse Index
//
// TaskService keeps each user's pendingTasks in step with task assignments:
// the repository writes the task and both affected pending lists in one
// transaction. ReconcileService repairs whatever drift remains, for example
// after a client writes pendingTasks directly.
//
// # Example Usage
//
//	tasks := NewTaskService(TaskServiceConfig{
//	    TaskRepo:    taskRepository,
//	    UserRepo:    userRepository,
//	    Validator:   validate.MustNew(),
//	    LimitPolicy: query.LimitPolicy{Default: 100, ResetInvalid: true},
//	})
//	task, err := tasks.Create(ctx, model.Document{"name": "Ship it", "deadline": "2026-03-01T12:00:00Z"})
package service
