package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/forgo/taskboard/internal/database"
	"github.com/forgo/taskboard/internal/model"
	"github.com/forgo/taskboard/internal/query"
	"github.com/forgo/taskboard/internal/repository"
	"github.com/forgo/taskboard/internal/validate"
)

// TaskRepository defines the interface for task storage.
// Writes that touch an assignment also maintain the reverse index.
type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	GetByID(ctx context.Context, id string) (*model.Task, error)
	List(ctx context.Context, p *query.Params) ([]*model.Task, error)
	Count(ctx context.Context, p *query.Params) (int, error)
	Update(ctx context.Context, task *model.Task, change model.AssignmentChange) error
	Delete(ctx context.Context, task *model.Task) error
}

// UserLookup resolves assignees
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// TaskService handles task business logic
type TaskService struct {
	tasks     TaskRepository
	users     UserLookup
	validator DocumentValidator
	limits    query.LimitPolicy
}

// TaskServiceConfig holds configuration for the task service
type TaskServiceConfig struct {
	TaskRepo    TaskRepository
	UserRepo    UserLookup
	Validator   DocumentValidator
	LimitPolicy query.LimitPolicy
}

// NewTaskService creates a new task service
func NewTaskService(cfg TaskServiceConfig) *TaskService {
	return &TaskService{
		tasks:     cfg.TaskRepo,
		users:     cfg.UserRepo,
		validator: cfg.Validator,
		limits:    cfg.LimitPolicy,
	}
}

// Create validates payload and stores it as a new task. An assigned task
// is added to its assignee's pending list in the same write.
func (s *TaskService) Create(ctx context.Context, payload model.Document) (*model.Task, error) {
	payload = clearNullAssignee(payload.Without(model.FieldDateCreated))
	if err := validateDocument(s.validator, validate.Task, payload); err != nil {
		return nil, err
	}

	var task model.Task
	if err := model.FromDocument(payload, &task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	task.AssignedUser = model.NormalizeAssignee(task.AssignedUser)

	if err := s.resolveAssignee(ctx, &task, payload.Has("assignedUserName")); err != nil {
		return nil, err
	}

	if err := s.tasks.Create(ctx, &task); err != nil {
		return nil, taskWriteError(err, task.ID)
	}
	return &task, nil
}

// List returns the tasks selected by the query parameters in values
func (s *TaskService) List(ctx context.Context, values url.Values) (*ListResult, error) {
	p, err := parseList(values, query.TaskSchema, s.limits)
	if err != nil {
		return nil, err
	}

	if p.Count {
		n, err := s.tasks.Count(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("count tasks: %w", err)
		}
		return &ListResult{Count: n, Counted: true}, nil
	}

	tasks, err := s.tasks.List(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	docs, err := toDocuments(tasks, p.Projection)
	if err != nil {
		return nil, err
	}
	return &ListResult{Documents: docs}, nil
}

// Get returns one task as a document, projected by the select parameter
func (s *TaskService) Get(ctx context.Context, id string, values url.Values) (model.Document, error) {
	proj, err := parseSelect(values, query.TaskSchema)
	if err != nil {
		return nil, err
	}

	task, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := model.ToDocument(task)
	if err != nil {
		return nil, err
	}
	return proj.Apply(doc), nil
}

// GetByID returns the task with the given key
func (s *TaskService) GetByID(ctx context.Context, id string) (*model.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// Update merges patch into the stored task and validates the result.
// Moving the task to another assignee rewrites both pending lists in the
// same write as the task itself.
func (s *TaskService) Update(ctx context.Context, id string, patch model.Document) (*model.Task, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	patch = clearNullAssignee(patch)
	merged, err := mergeForUpdate(existing, patch)
	if err != nil {
		return nil, err
	}
	if err := validateDocument(s.validator, validate.Task, merged); err != nil {
		return nil, err
	}

	var updated model.Task
	if err := model.FromDocument(merged, &updated); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	updated.ID = existing.ID
	updated.DateCreated = existing.DateCreated
	updated.AssignedUser = model.NormalizeAssignee(updated.AssignedUser)

	change := model.NewAssignmentChange(existing.AssignedUser, updated.AssignedUser)
	switch {
	case change.Changed():
		if err := s.resolveAssignee(ctx, &updated, patch.Has("assignedUserName")); err != nil {
			return nil, err
		}
	case !updated.IsAssigned():
		updated.AssignedUserName = model.UnassignedUserName
	}

	if err := s.tasks.Update(ctx, &updated, change); err != nil {
		return nil, taskWriteError(err, updated.ID)
	}
	return &updated, nil
}

// Delete removes the task and drops it from its assignee's pending list
func (s *TaskService) Delete(ctx context.Context, id string) error {
	task, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, task); err != nil {
		return taskWriteError(err, id)
	}
	return nil
}

// resolveAssignee checks that the assignee exists and fills the cached
// display name. A name carried by the payload is kept.
func (s *TaskService) resolveAssignee(ctx context.Context, task *model.Task, keepName bool) error {
	if !task.IsAssigned() {
		task.AssignedUserName = model.UnassignedUserName
		return nil
	}

	user, err := s.users.GetByID(ctx, task.AssignedUser)
	if errors.Is(err, database.ErrNotFound) {
		return NewValidationError("assignedUser", fmt.Sprintf("user %q does not exist", task.AssignedUser))
	}
	if err != nil {
		return fmt.Errorf("look up assignee: %w", err)
	}

	if !keepName || task.AssignedUserName == "" {
		task.AssignedUserName = user.Name
	}
	return nil
}

// clearNullAssignee treats a null assignedUser as unassigned and a null
// assignedUserName as absent, so the name is derived again.
func clearNullAssignee(doc model.Document) model.Document {
	out := doc.Without()
	if v, ok := out["assignedUser"]; ok && v == nil {
		out["assignedUser"] = ""
	}
	if v, ok := out["assignedUserName"]; ok && v == nil {
		delete(out, "assignedUserName")
	}
	return out
}

func taskWriteError(err error, id string) error {
	switch {
	case errors.Is(err, database.ErrDuplicate):
		return &DuplicateError{Err: ErrDuplicateTask, Value: id}
	case errors.Is(err, repository.ErrAssigneeNotFound):
		// The assignee was deleted between the lookup and the write
		return NewValidationError("assignedUser", "assigned user does not exist")
	case errors.Is(err, database.ErrNotFound):
		return ErrTaskNotFound
	}
	return fmt.Errorf("write task: %w", err)
}
