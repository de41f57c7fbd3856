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

// UserRepository defines the interface for user storage
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context, p *query.Params) ([]*model.User, error)
	Count(ctx context.Context, p *query.Params) (int, error)
	Update(ctx context.Context, user *model.User) error
	// Delete also unassigns every task that pointed at the user
	Delete(ctx context.Context, id string) error
}

// UserService handles user business logic
type UserService struct {
	users     UserRepository
	validator DocumentValidator
	limits    query.LimitPolicy
}

// UserServiceConfig holds configuration for the user service
type UserServiceConfig struct {
	UserRepo    UserRepository
	Validator   DocumentValidator
	LimitPolicy query.LimitPolicy
}

// NewUserService creates a new user service
func NewUserService(cfg UserServiceConfig) *UserService {
	return &UserService{
		users:     cfg.UserRepo,
		validator: cfg.Validator,
		limits:    cfg.LimitPolicy,
	}
}

// Create validates payload and stores it as a new user. A supplied
// pendingTasks list is stored as given, minus duplicates.
func (s *UserService) Create(ctx context.Context, payload model.Document) (*model.User, error) {
	payload = payload.Without(model.FieldDateCreated)
	if err := validateDocument(s.validator, validate.User, payload); err != nil {
		return nil, err
	}

	var user model.User
	if err := model.FromDocument(payload, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	user.PendingTasks = model.UniqueTaskIDs(user.PendingTasks)

	if err := s.users.Create(ctx, &user); err != nil {
		return nil, userWriteError(err, &user)
	}
	return &user, nil
}

// List returns the users selected by the query parameters in values
func (s *UserService) List(ctx context.Context, values url.Values) (*ListResult, error) {
	p, err := parseList(values, query.UserSchema, s.limits)
	if err != nil {
		return nil, err
	}

	if p.Count {
		n, err := s.users.Count(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("count users: %w", err)
		}
		return &ListResult{Count: n, Counted: true}, nil
	}

	users, err := s.users.List(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	docs, err := toDocuments(users, p.Projection)
	if err != nil {
		return nil, err
	}
	return &ListResult{Documents: docs}, nil
}

// Get returns one user as a document, projected by the select parameter
func (s *UserService) Get(ctx context.Context, id string, values url.Values) (model.Document, error) {
	proj, err := parseSelect(values, query.UserSchema)
	if err != nil {
		return nil, err
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := model.ToDocument(user)
	if err != nil {
		return nil, err
	}
	return proj.Apply(doc), nil
}

// GetByID returns the user with the given key
func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Update merges patch into the stored user. Tasks are not touched: a
// pendingTasks written here is trusted until the next reconcile pass.
func (s *UserService) Update(ctx context.Context, id string, patch model.Document) (*model.User, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	merged, err := mergeForUpdate(existing, patch)
	if err != nil {
		return nil, err
	}
	if err := validateDocument(s.validator, validate.User, merged); err != nil {
		return nil, err
	}

	var updated model.User
	if err := model.FromDocument(merged, &updated); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	updated.ID = existing.ID
	updated.DateCreated = existing.DateCreated
	updated.PendingTasks = model.UniqueTaskIDs(updated.PendingTasks)

	if err := s.users.Update(ctx, &updated); err != nil {
		return nil, userWriteError(err, &updated)
	}
	return &updated, nil
}

// Delete removes the user and unassigns its tasks
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return userWriteError(err, &model.User{ID: id})
	}
	return nil
}

func userWriteError(err error, user *model.User) error {
	switch {
	case errors.Is(err, repository.ErrEmailTaken):
		return &DuplicateError{Err: ErrDuplicateEmail, Value: user.Email}
	case errors.Is(err, database.ErrDuplicate):
		return &DuplicateError{Err: ErrDuplicateUser, Value: user.ID}
	case errors.Is(err, database.ErrNotFound):
		return ErrUserNotFound
	}
	return fmt.Errorf("write user: %w", err)
}
