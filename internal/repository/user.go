package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/forgo/taskboard/internal/database"
	"github.com/forgo/taskboard/internal/model"
	"github.com/forgo/taskboard/internal/query"
)

// ErrEmailTaken is returned when a write collides with the unique email index
var ErrEmailTaken = errors.New("email already in use")

// UserRepository handles user data access
type UserRepository struct {
	db database.Database
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.Database) *UserRepository {
	return &UserRepository{db: db}
}

const createUserQuery = `
	CREATE type::thing("user", $id) CONTENT {
		name: $name,
		email: $email,
		pendingTasks: $pendingTasks,
		dateCreated: time::now()
	}
`

// Create inserts a new user. A duplicate email fails with database.ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	results, err := database.NewAtomicBatch().
		Add(createUserQuery, userVars(user)).
		Query(ctx, r.db)
	if err != nil {
		return mapUserWriteError(err)
	}

	row, ok := findRecord(results, "user", user.ID)
	if !ok {
		return fmt.Errorf("%w: created user missing from result", database.ErrQuery)
	}
	*user = *parseUser(row)
	return nil
}

// GetByID retrieves a user by its key
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	row, err := r.db.QueryOne(ctx, `SELECT * FROM type::thing("user", $id)`, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	m, ok := row.(map[string]interface{})
	if !ok {
		return nil, database.ErrNotFound
	}
	return parseUser(m), nil
}

// List returns the users matching p, sorted and paginated
func (r *UserRepository) List(ctx context.Context, p *query.Params) ([]*model.User, error) {
	q, vars := p.SelectQuery()
	results, err := r.db.Query(ctx, q, vars)
	if err != nil {
		return nil, err
	}

	rows := records(results)
	users := make([]*model.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, parseUser(row))
	}
	return users, nil
}

// Count returns the number of users matching p's filter
func (r *UserRepository) Count(ctx context.Context, p *query.Params) (int, error) {
	q, vars := p.CountQuery()
	results, err := r.db.Query(ctx, q, vars)
	if err != nil {
		return 0, err
	}
	return extractCount(results), nil
}

// Update overwrites the mutable fields of an existing user. Tasks are not
// touched, so a caller writing pendingTasks directly is trusted.
func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	batch := database.NewAtomicBatch()
	requireRecord(batch, "user", user.ID, recordMissingMsg)
	batch.Add(`
		UPDATE type::thing("user", $id) SET
			name = $name,
			email = $email,
			pendingTasks = $pendingTasks
	`, userVars(user))

	results, err := batch.Query(ctx, r.db)
	if err != nil {
		return mapUserWriteError(err)
	}

	row, ok := findRecord(results, "user", user.ID)
	if !ok {
		return database.ErrNotFound
	}
	*user = *parseUser(row)
	return nil
}

// Delete removes the user and unassigns every task that pointed at it, in
// one transaction. The tasks themselves survive.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	batch := database.NewAtomicBatch()
	requireRecord(batch, "user", id, recordMissingMsg)
	batch.Add(`DELETE type::thing("user", $id)`, map[string]interface{}{"id": id})
	batch.Add(unassignTasksOfUserQuery, map[string]interface{}{
		"user":       id,
		"unassigned": model.UnassignedUserName,
	})

	if err := batch.Execute(ctx, r.db); err != nil {
		return mapWriteError(err)
	}
	return nil
}

// PendingTasks returns every user key with its stored reverse index
func (r *UserRepository) PendingTasks(ctx context.Context) (map[string][]string, error) {
	results, err := r.db.Query(ctx, `SELECT id, pendingTasks FROM user`, nil)
	if err != nil {
		return nil, err
	}

	rows := records(results)
	out := make(map[string][]string, len(rows))
	for _, row := range rows {
		out[recordKey(row["id"])] = getStringSlice(row, "pendingTasks")
	}
	return out, nil
}

func userVars(user *model.User) map[string]interface{} {
	pending := model.UniqueTaskIDs(user.PendingTasks)
	return map[string]interface{}{
		"id":           user.ID,
		"name":         user.Name,
		"email":        user.Email,
		"pendingTasks": pending,
	}
}

func parseUser(row map[string]interface{}) *model.User {
	return &model.User{
		ID:           recordKey(row["id"]),
		Name:         getString(row, "name"),
		Email:        getString(row, "email"),
		PendingTasks: getStringSlice(row, "pendingTasks"),
		DateCreated:  parseTime(row["dateCreated"]),
	}
}

// A duplicate on the user_email index is told apart from a reused record key
func mapUserWriteError(err error) error {
	if errors.Is(err, database.ErrDuplicate) && strings.Contains(err.Error(), "user_email") {
		return fmt.Errorf("%w: %w", ErrEmailTaken, err)
	}
	return mapWriteError(err)
}
