package service

import (
	"context"
	"time"

	"github.com/forgo/taskboard/internal/database"
	"github.com/forgo/taskboard/internal/model"
	"github.com/forgo/taskboard/internal/query"
	"github.com/forgo/taskboard/internal/repository"
	"github.com/forgo/taskboard/internal/validate"
)

// ============================================================================
// Mock Repositories
// ============================================================================

type mockTaskRepo struct {
	createFunc  func(ctx context.Context, task *model.Task) error
	getByIDFunc func(ctx context.Context, id string) (*model.Task, error)
	listFunc    func(ctx context.Context, p *query.Params) ([]*model.Task, error)
	countFunc   func(ctx context.Context, p *query.Params) (int, error)
	updateFunc  func(ctx context.Context, task *model.Task, change model.AssignmentChange) error
	deleteFunc  func(ctx context.Context, task *model.Task) error
}

func (m *mockTaskRepo) Create(ctx context.Context, task *model.Task) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, task)
	}
	if task.ID == "" {
		task.ID = "generated"
	}
	return nil
}

func (m *mockTaskRepo) GetByID(ctx context.Context, id string) (*model.Task, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, database.ErrNotFound
}

func (m *mockTaskRepo) List(ctx context.Context, p *query.Params) ([]*model.Task, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, p)
	}
	return nil, nil
}

func (m *mockTaskRepo) Count(ctx context.Context, p *query.Params) (int, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, p)
	}
	return 0, nil
}

func (m *mockTaskRepo) Update(ctx context.Context, task *model.Task, change model.AssignmentChange) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, task, change)
	}
	return nil
}

func (m *mockTaskRepo) Delete(ctx context.Context, task *model.Task) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, task)
	}
	return nil
}

type mockUserRepo struct {
	createFunc  func(ctx context.Context, user *model.User) error
	getByIDFunc func(ctx context.Context, id string) (*model.User, error)
	listFunc    func(ctx context.Context, p *query.Params) ([]*model.User, error)
	countFunc   func(ctx context.Context, p *query.Params) (int, error)
	updateFunc  func(ctx context.Context, user *model.User) error
	deleteFunc  func(ctx context.Context, id string) error
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	if user.ID == "" {
		user.ID = "generated"
	}
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, database.ErrNotFound
}

func (m *mockUserRepo) List(ctx context.Context, p *query.Params) ([]*model.User, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, p)
	}
	return nil, nil
}

func (m *mockUserRepo) Count(ctx context.Context, p *query.Params) (int, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, p)
	}
	return 0, nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *model.User) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

type mockReconcileRepo struct {
	assignmentsFunc  func(ctx context.Context) (map[string]string, error)
	pendingTasksFunc func(ctx context.Context) (map[string][]string, error)
	applyFunc        func(ctx context.Context, repair repository.IndexRepair) error
}

func (m *mockReconcileRepo) Assignments(ctx context.Context) (map[string]string, error) {
	if m.assignmentsFunc != nil {
		return m.assignmentsFunc(ctx)
	}
	return map[string]string{}, nil
}

func (m *mockReconcileRepo) PendingTasks(ctx context.Context) (map[string][]string, error) {
	if m.pendingTasksFunc != nil {
		return m.pendingTasksFunc(ctx)
	}
	return map[string][]string{}, nil
}

func (m *mockReconcileRepo) Apply(ctx context.Context, repair repository.IndexRepair) error {
	if m.applyFunc != nil {
		return m.applyFunc(ctx, repair)
	}
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

var testValidator = validate.MustNew()

var testDeadline = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func usersByID(users ...*model.User) func(ctx context.Context, id string) (*model.User, error) {
	return func(_ context.Context, id string) (*model.User, error) {
		for _, u := range users {
			if u.ID == id {
				return u, nil
			}
		}
		return nil, database.ErrNotFound
	}
}

func newTestTaskService(tasks *mockTaskRepo, users *mockUserRepo) *TaskService {
	return NewTaskService(TaskServiceConfig{
		TaskRepo:    tasks,
		UserRepo:    users,
		Validator:   testValidator,
		LimitPolicy: query.LimitPolicy{Default: 100, ResetInvalid: true},
	})
}

func newTestUserService(users *mockUserRepo) *UserService {
	return NewUserService(UserServiceConfig{
		UserRepo:    users,
		Validator:   testValidator,
		LimitPolicy: query.LimitPolicy{Default: 0, ResetInvalid: false},
	})
}
