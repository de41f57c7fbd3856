package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/forgo/taskboard/internal/database"
	"github.com/forgo/taskboard/internal/model"
	"github.com/forgo/taskboard/internal/query"
)

// ErrAssigneeNotFound is returned when a write names a user that does not exist
var ErrAssigneeNotFound = errors.New("assigned user not found")

// TaskRepository handles task data access
type TaskRepository struct {
	db database.Database
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db database.Database) *TaskRepository {
	return &TaskRepository{db: db}
}

const createTaskQuery = `
	CREATE type::thing("task", $id) CONTENT {
		name: $name,
		description: $description,
		deadline: <datetime>$deadline,
		completed: $completed,
		assignedUser: $assignedUser,
		assignedUserName: $assignedUserName,
		dateCreated: time::now()
	}
`

// Create inserts task and registers it with its assignee in one transaction.
// A missing ID is minted here so the reverse index can reference it.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}

	batch := database.NewAtomicBatch()
	batch.Add(createTaskQuery, taskVars(task))
	addAssignmentChange(batch, task.ID, model.NewAssignmentChange("", task.AssignedUser))

	results, err := batch.Query(ctx, r.db)
	if err != nil {
		return mapWriteError(err)
	}

	row, ok := findRecord(results, "task", task.ID)
	if !ok {
		return fmt.Errorf("%w: created task missing from result", database.ErrQuery)
	}
	*task = *parseTask(row)
	return nil
}

// GetByID retrieves a task by its key
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*model.Task, error) {
	row, err := r.db.QueryOne(ctx, `SELECT * FROM type::thing("task", $id)`, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	m, ok := row.(map[string]interface{})
	if !ok {
		return nil, database.ErrNotFound
	}
	return parseTask(m), nil
}

// List returns the tasks matching p, sorted and paginated
func (r *TaskRepository) List(ctx context.Context, p *query.Params) ([]*model.Task, error) {
	q, vars := p.SelectQuery()
	results, err := r.db.Query(ctx, q, vars)
	if err != nil {
		return nil, err
	}

	rows := records(results)
	tasks := make([]*model.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, parseTask(row))
	}
	return tasks, nil
}

// Count returns the number of tasks matching p's filter
func (r *TaskRepository) Count(ctx context.Context, p *query.Params) (int, error) {
	q, vars := p.CountQuery()
	results, err := r.db.Query(ctx, q, vars)
	if err != nil {
		return 0, err
	}
	return extractCount(results), nil
}

const updateTaskQuery = `
	UPDATE type::thing("task", $id) SET
		name = $name,
		description = $description,
		deadline = <datetime>$deadline,
		completed = $completed,
		assignedUser = $assignedUser,
		assignedUserName = $assignedUserName
`

// Update writes every mutable field of task and applies change to the
// reverse index, atomically. The task must already exist.
func (r *TaskRepository) Update(ctx context.Context, task *model.Task, change model.AssignmentChange) error {
	batch := database.NewAtomicBatch()
	requireRecord(batch, "task", task.ID, recordMissingMsg)
	batch.Add(updateTaskQuery, taskVars(task))
	addAssignmentChange(batch, task.ID, change)

	results, err := batch.Query(ctx, r.db)
	if err != nil {
		return mapWriteError(err)
	}

	row, ok := findRecord(results, "task", task.ID)
	if !ok {
		return database.ErrNotFound
	}
	*task = *parseTask(row)
	return nil
}

// Delete removes task and pulls it from its assignee's pending list in one
// transaction. An unassigned task only needs the delete.
func (r *TaskRepository) Delete(ctx context.Context, task *model.Task) error {
	batch := database.NewAtomicBatch()
	requireRecord(batch, "task", task.ID, recordMissingMsg)
	batch.Add(`DELETE type::thing("task", $id)`, map[string]interface{}{"id": task.ID})
	addAssignmentChange(batch, task.ID, model.NewAssignmentChange(task.AssignedUser, ""))

	if err := batch.Execute(ctx, r.db); err != nil {
		return mapWriteError(err)
	}
	return nil
}

// Assignments returns every task key with its raw assignedUser value
func (r *TaskRepository) Assignments(ctx context.Context) (map[string]string, error) {
	results, err := r.db.Query(ctx, `SELECT id, assignedUser FROM task`, nil)
	if err != nil {
		return nil, err
	}

	rows := records(results)
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[recordKey(row["id"])] = model.NormalizeAssignee(getString(row, "assignedUser"))
	}
	return out, nil
}

func taskVars(task *model.Task) map[string]interface{} {
	return map[string]interface{}{
		"id":               task.ID,
		"name":             task.Name,
		"description":      task.Description,
		"deadline":         task.Deadline.UTC().Format(time.RFC3339Nano),
		"completed":        task.Completed,
		"assignedUser":     model.NormalizeAssignee(task.AssignedUser),
		"assignedUserName": task.AssignedUserName,
	}
}

func parseTask(row map[string]interface{}) *model.Task {
	return &model.Task{
		ID:               recordKey(row["id"]),
		Name:             getString(row, "name"),
		Description:      getString(row, "description"),
		Deadline:         parseTime(row["deadline"]),
		Completed:        getBool(row, "completed"),
		AssignedUser:     getString(row, "assignedUser"),
		AssignedUserName: getString(row, "assignedUserName"),
		DateCreated:      parseTime(row["dateCreated"]),
	}
}

// mapWriteError turns guard failures into sentinel errors
func mapWriteError(err error) error {
	switch {
	case isGuardError(err, assigneeMissingMsg):
		return fmt.Errorf("%w: %v", ErrAssigneeNotFound, err)
	case isGuardError(err, recordMissingMsg):
		return fmt.Errorf("%w: %v", database.ErrNotFound, err)
	}
	return err
}
