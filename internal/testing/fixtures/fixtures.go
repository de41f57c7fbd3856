// Package fixtures provides task and user factories for integration tests.
//
// Factories insert through the repositories, so the reverse index is kept
// consistent exactly as the API would keep it. Option functions override
// the defaults.
//
// Usage:
//
//	f := fixtures.New(tdb.DB)
//	user := f.CreateUser(t)
//	task := f.CreateTask(t, fixtures.AssignedTo(user))
package fixtures

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/forgo/taskboard/internal/database"
	"github.com/forgo/taskboard/internal/model"
	"github.com/forgo/taskboard/internal/repository"
)

// Factory creates test entities in the database
type Factory struct {
	db    database.Database
	tasks *repository.TaskRepository
	users *repository.UserRepository
}

// New creates a new fixture factory
func New(db database.Database) *Factory {
	return &Factory{
		db:    db,
		tasks: repository.NewTaskRepository(db),
		users: repository.NewUserRepository(db),
	}
}

// randomID generates a short unique suffix
func randomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func testCtx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return c
}

// ============================================================================
// User Fixtures
// ============================================================================

// CreateUser creates a user with optional customizations
func (f *Factory) CreateUser(t *testing.T, opts ...func(*model.User)) *model.User {
	t.Helper()

	suffix := randomID()
	user := &model.User{
		Name:         "User " + suffix,
		Email:        fmt.Sprintf("user_%s@test.local", suffix),
		PendingTasks: []string{},
	}
	for _, fn := range opts {
		fn(user)
	}

	if err := f.users.Create(testCtx(t), user); err != nil {
		t.Fatalf("fixtures: create user: %v", err)
	}
	return user
}

// WithEmail sets the user's email
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) { u.Email = email }
}

// ============================================================================
// Task Fixtures
// ============================================================================

// CreateTask creates a task with optional customizations
func (f *Factory) CreateTask(t *testing.T, opts ...func(*model.Task)) *model.Task {
	t.Helper()

	task := &model.Task{
		Name:             "Task " + randomID(),
		Description:      "fixture",
		Deadline:         time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second),
		AssignedUserName: model.UnassignedUserName,
	}
	for _, fn := range opts {
		fn(task)
	}

	if err := f.tasks.Create(testCtx(t), task); err != nil {
		t.Fatalf("fixtures: create task: %v", err)
	}
	return task
}

// AssignedTo assigns the task to user
func AssignedTo(user *model.User) func(*model.Task) {
	return func(task *model.Task) {
		task.AssignedUser = user.ID
		task.AssignedUserName = user.Name
	}
}

// Completed marks the task completed
func Completed() func(*model.Task) {
	return func(task *model.Task) { task.Completed = true }
}

// DueAt sets the task deadline
func DueAt(deadline time.Time) func(*model.Task) {
	return func(task *model.Task) { task.Deadline = deadline.UTC() }
}

// ============================================================================
// Drift Fixtures
// ============================================================================

// SetPendingTasks overwrites a user's reverse index without touching tasks
func (f *Factory) SetPendingTasks(t *testing.T, userID string, taskIDs []string) {
	t.Helper()
	err := f.db.Execute(testCtx(t),
		`UPDATE type::thing("user", $id) SET pendingTasks = $tasks`,
		map[string]interface{}{"id": userID, "tasks": taskIDs})
	if err != nil {
		t.Fatalf("fixtures: set pending tasks: %v", err)
	}
}

// SetAssignee overwrites a task's assignedUser without touching users
func (f *Factory) SetAssignee(t *testing.T, taskID, userID string) {
	t.Helper()
	err := f.db.Execute(testCtx(t),
		`UPDATE type::thing("task", $id) SET assignedUser = $user`,
		map[string]interface{}{"id": taskID, "user": userID})
	if err != nil {
		t.Fatalf("fixtures: set assignee: %v", err)
	}
}

// GetUser reloads a user
func (f *Factory) GetUser(t *testing.T, id string) *model.User {
	t.Helper()
	user, err := f.users.GetByID(testCtx(t), id)
	if err != nil {
		t.Fatalf("fixtures: get user %s: %v", id, err)
	}
	return user
}

// GetTask reloads a task
func (f *Factory) GetTask(t *testing.T, id string) *model.Task {
	t.Helper()
	task, err := f.tasks.GetByID(testCtx(t), id)
	if err != nil {
		t.Fatalf("fixtures: get task %s: %v", id, err)
	}
	return task
}
