package service

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/forgo/taskboard/internal/database"
	"github.com/forgo/taskboard/internal/model"
	"github.com/forgo/taskboard/internal/query"
	"github.com/forgo/taskboard/internal/repository"
)

func validTaskPayload() model.Document {
	return model.Document{
		"name":     "Write report",
		"deadline": "2026-03-01T12:00:00Z",
	}
}

// ============================================================================
// Create
// ============================================================================

func TestTaskService_Create_Unassigned(t *testing.T) {
	t.Parallel()

	var stored *model.Task
	tasks := &mockTaskRepo{createFunc: func(_ context.Context, task *model.Task) error {
		task.ID = "t1"
		stored = task
		return nil
	}}
	svc := newTestTaskService(tasks, &mockUserRepo{})

	task, err := svc.Create(context.Background(), validTaskPayload())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored == nil {
		t.Fatal("expected repository Create to be called")
	}
	if task.AssignedUserName != model.UnassignedUserName {
		t.Errorf("expected assignedUserName %q, got %q", model.UnassignedUserName, task.AssignedUserName)
	}
	if !task.Deadline.Equal(testDeadline) {
		t.Errorf("expected deadline %v, got %v", testDeadline, task.Deadline)
	}
	if task.Completed {
		t.Error("expected completed to default to false")
	}
}

func TestTaskService_Create_FillsAssigneeName(t *testing.T) {
	t.Parallel()

	users := &mockUserRepo{getByIDFunc: usersByID(&model.User{ID: "u1", Name: "Ada"})}
	svc := newTestTaskService(&mockTaskRepo{}, users)

	payload := validTaskPayload()
	payload["assignedUser"] = " u1 "

	task, err := svc.Create(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.AssignedUser != "u1" {
		t.Errorf("expected normalized assignee u1, got %q", task.AssignedUser)
	}
	if task.AssignedUserName != "Ada" {
		t.Errorf("expected assignedUserName Ada, got %q", task.AssignedUserName)
	}
}

func TestTaskService_Create_KeepsSuppliedAssigneeName(t *testing.T) {
	t.Parallel()

	users := &mockUserRepo{getByIDFunc: usersByID(&model.User{ID: "u1", Name: "Ada"})}
	svc := newTestTaskService(&mockTaskRepo{}, users)

	payload := validTaskPayload()
	payload["assignedUser"] = "u1"
	payload["assignedUserName"] = "Countess"

	task, err := svc.Create(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.AssignedUserName != "Countess" {
		t.Errorf("expected supplied name to be kept, got %q", task.AssignedUserName)
	}
}

func TestTaskService_Create_MissingAssignee(t *testing.T) {
	t.Parallel()

	tasks := &mockTaskRepo{createFunc: func(context.Context, *model.Task) error {
		t.Error("repository must not be called for a missing assignee")
		return nil
	}}
	svc := newTestTaskService(tasks, &mockUserRepo{})

	payload := validTaskPayload()
	payload["assignedUser"] = "ghost"

	_, err := svc.Create(context.Background(), payload)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Fields) != 1 || ve.Fields[0].Field != "assignedUser" {
		t.Errorf("expected assignedUser field error, got %+v", ve.Fields)
	}
}

func TestTaskService_Create_InvalidPayload(t *testing.T) {
	t.Parallel()

	svc := newTestTaskService(&mockTaskRepo{}, &mockUserRepo{})

	tests := []struct {
		name    string
		payload model.Document
		field   string
	}{
		{"missing name", model.Document{"deadline": "2026-03-01T12:00:00Z"}, "name"},
		{"missing deadline", model.Document{"name": "x"}, "deadline"},
		{"bad deadline", model.Document{"name": "x", "deadline": "tomorrow"}, "deadline"},
		{"unknown field", model.Document{"name": "x", "deadline": "2026-03-01T12:00:00Z", "owner": "me"}, "owner"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.payload)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var ve *ValidationError
			errors.As(err, &ve)
			found := false
			for _, f := range ve.Fields {
				if f.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected an error on %q, got %+v", tt.field, ve.Fields)
			}
		})
	}
}

func TestTaskService_Create_Duplicate(t *testing.T) {
	t.Parallel()

	tasks := &mockTaskRepo{createFunc: func(context.Context, *model.Task) error {
		return database.ErrDuplicate
	}}
	svc := newTestTaskService(tasks, &mockUserRepo{})

	payload := validTaskPayload()
	payload["_id"] = "t1"

	_, err := svc.Create(context.Background(), payload)
	if !errors.Is(err, ErrDuplicateTask) || !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected duplicate task error, got %v", err)
	}
	var dup *DuplicateError
	if !errors.As(err, &dup) || dup.Value != "t1" {
		t.Errorf("expected duplicate value t1, got %+v", dup)
	}
}

func TestTaskService_Create_AssigneeDeletedBeforeWrite(t *testing.T) {
	t.Parallel()

	users := &mockUserRepo{getByIDFunc: usersByID(&model.User{ID: "u1", Name: "Ada"})}
	tasks := &mockTaskRepo{createFunc: func(context.Context, *model.Task) error {
		return repository.ErrAssigneeNotFound
	}}
	svc := newTestTaskService(tasks, users)

	payload := validTaskPayload()
	payload["assignedUser"] = "u1"

	if _, err := svc.Create(context.Background(), payload); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestTaskService_Create_StoreFailure(t *testing.T) {
	t.Parallel()

	tasks := &mockTaskRepo{createFunc: func(context.Context, *model.Task) error {
		return database.ErrConnection
	}}
	svc := newTestTaskService(tasks, &mockUserRepo{})

	_, err := svc.Create(context.Background(), validTaskPayload())
	if !errors.Is(err, database.ErrConnection) {
		t.Errorf("expected connection error to pass through, got %v", err)
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateKey) {
		t.Errorf("store failure must not look like a client error: %v", err)
	}
}

// ============================================================================
// List / Get
// ============================================================================

func TestTaskService_List_Count(t *testing.T) {
	t.Parallel()

	tasks := &mockTaskRepo{
		countFunc: func(_ context.Context, p *query.Params) (int, error) {
			if !p.HasFilter() {
				t.Error("expected the filter to reach Count")
			}
			return 7, nil
		},
		listFunc: func(context.Context, *query.Params) ([]*model.Task, error) {
			t.Error("List must not be called for a count")
			return nil, nil
		},
	}
	svc := newTestTaskService(tasks, &mockUserRepo{})

	res, err := svc.List(context.Background(), url.Values{
		"where": {`{"completed": false}`},
		"count": {"true"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Counted || res.Count != 7 {
		t.Errorf("expected count 7, got %+v", res)
	}
}

func TestTaskService_List_AppliesProjectionAndDefaultLimit(t *testing.T) {
	t.Parallel()

	tasks := &mockTaskRepo{listFunc: func(_ context.Context, p *query.Params) ([]*model.Task, error) {
		if p.Limit != 100 {
			t.Errorf("expected invalid limit to reset to 100, got %d", p.Limit)
		}
		return []*model.Task{{ID: "t1", Name: "A", Deadline: testDeadline}}, nil
	}}
	svc := newTestTaskService(tasks, &mockUserRepo{})

	res, err := svc.List(context.Background(), url.Values{
		"select": {`{"name": 1}`},
		"limit":  {"abc"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Documents) != 1 {
		t.Fatalf("expected one document, got %d", len(res.Documents))
	}
	doc := res.Documents[0]
	if doc["_id"] != "t1" || doc["name"] != "A" {
		t.Errorf("unexpected projected document: %v", doc)
	}
	if doc.Has("deadline") {
		t.Errorf("expected deadline to be projected away: %v", doc)
	}
}

func TestTaskService_List_InvalidQuery(t *testing.T) {
	t.Parallel()

	svc := newTestTaskService(&mockTaskRepo{}, &mockUserRepo{})

	_, err := svc.List(context.Background(), url.Values{"where": {`{"name":`}})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Fields) != 1 || ve.Fields[0].Field != "where" {
		t.Errorf("expected a where field error, got %+v", ve.Fields)
	}
}

func TestTaskService_Get_NotFound(t *testing.T) {
	t.Parallel()

	svc := newTestTaskService(&mockTaskRepo{}, &mockUserRepo{})

	_, err := svc.Get(context.Background(), "missing", url.Values{})
	if !errors.Is(err, ErrTaskNotFound) || !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestTaskService_Get_Projection(t *testing.T) {
	t.Parallel()

	tasks := &mockTaskRepo{getByIDFunc: func(_ context.Context, id string) (*model.Task, error) {
		return &model.Task{ID: id, Name: "A", Description: "long text", Deadline: testDeadline}, nil
	}}
	svc := newTestTaskService(tasks, &mockUserRepo{})

	doc, err := svc.Get(context.Background(), "t1", url.Values{"select": {`{"description": 0}`}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Has("description") {
		t.Errorf("expected description to be excluded: %v", doc)
	}
	if doc["name"] != "A" || doc["_id"] != "t1" {
		t.Errorf("unexpected document: %v", doc)
	}
}

// ============================================================================
// Update
// ============================================================================

func existingTask(assignee, name string) *mockTaskRepo {
	return &mockTaskRepo{getByIDFunc: func(_ context.Context, id string) (*model.Task, error) {
		return &model.Task{
			ID:               id,
			Name:             "Original",
			Deadline:         testDeadline,
			AssignedUser:     assignee,
			AssignedUserName: name,
		}, nil
	}}
}

func TestTaskService_Update_Reassign(t *testing.T) {
	t.Parallel()

	tasks := existingTask("u1", "Ada")
	var gotChange model.AssignmentChange
	tasks.updateFunc = func(_ context.Context, task *model.Task, change model.AssignmentChange) error {
		gotChange = change
		return nil
	}
	users := &mockUserRepo{getByIDFunc: usersByID(
		&model.User{ID: "u1", Name: "Ada"},
		&model.User{ID: "u2", Name: "Grace"},
	)}
	svc := newTestTaskService(tasks, users)

	task, err := svc.Update(context.Background(), "t1", model.Document{"assignedUser": "u2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotChange != (model.AssignmentChange{From: "u1", To: "u2"}) {
		t.Errorf("unexpected assignment change: %+v", gotChange)
	}
	if task.AssignedUserName != "Grace" {
		t.Errorf("expected assignedUserName Grace, got %q", task.AssignedUserName)
	}
	if task.Name != "Original" {
		t.Errorf("expected unpatched fields to survive, got name %q", task.Name)
	}
}

func TestTaskService_Update_Unassign(t *testing.T) {
	t.Parallel()

	tasks := existingTask("u1", "Ada")
	var gotChange model.AssignmentChange
	tasks.updateFunc = func(_ context.Context, _ *model.Task, change model.AssignmentChange) error {
		gotChange = change
		return nil
	}
	svc := newTestTaskService(tasks, &mockUserRepo{})

	task, err := svc.Update(context.Background(), "t1", model.Document{"assignedUser": "  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotChange != (model.AssignmentChange{From: "u1", To: ""}) {
		t.Errorf("unexpected assignment change: %+v", gotChange)
	}
	if task.AssignedUserName != model.UnassignedUserName {
		t.Errorf("expected %q, got %q", model.UnassignedUserName, task.AssignedUserName)
	}
}

func TestTaskService_Update_NullUnassigns(t *testing.T) {
	t.Parallel()

	tasks := existingTask("u1", "Ada")
	var gotChange model.AssignmentChange
	tasks.updateFunc = func(_ context.Context, _ *model.Task, change model.AssignmentChange) error {
		gotChange = change
		return nil
	}
	svc := newTestTaskService(tasks, &mockUserRepo{})

	task, err := svc.Update(context.Background(), "t1", model.Document{
		"assignedUser":     nil,
		"assignedUserName": nil,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotChange != (model.AssignmentChange{From: "u1", To: ""}) {
		t.Errorf("unexpected assignment change: %+v", gotChange)
	}
	if task.AssignedUser != "" || task.AssignedUserName != model.UnassignedUserName {
		t.Errorf("expected unassigned task, got %q / %q", task.AssignedUser, task.AssignedUserName)
	}
}

func TestTaskService_Create_NullAssignee(t *testing.T) {
	t.Parallel()

	users := &mockUserRepo{getByIDFunc: func(context.Context, string) (*model.User, error) {
		t.Error("no assignee lookup expected for a null assignee")
		return nil, database.ErrNotFound
	}}
	svc := newTestTaskService(&mockTaskRepo{}, users)

	payload := validTaskPayload().Merge(model.Document{"assignedUser": nil, "assignedUserName": nil})
	task, err := svc.Create(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.IsAssigned() || task.AssignedUserName != model.UnassignedUserName {
		t.Errorf("expected unassigned task, got %+v", task)
	}
}

func TestTaskService_Update_SameAssigneeSkipsLookup(t *testing.T) {
	t.Parallel()

	tasks := existingTask("u1", "Ada")
	users := &mockUserRepo{getByIDFunc: func(context.Context, string) (*model.User, error) {
		t.Error("assignee lookup is not needed when the assignee is unchanged")
		return nil, database.ErrNotFound
	}}
	svc := newTestTaskService(tasks, users)

	task, err := svc.Update(context.Background(), "t1", model.Document{"completed": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !task.Completed || task.AssignedUserName != "Ada" {
		t.Errorf("unexpected task after update: %+v", task)
	}
}

func TestTaskService_Update_IgnoresServerFields(t *testing.T) {
	t.Parallel()

	svc := newTestTaskService(existingTask("", model.UnassignedUserName), &mockUserRepo{})

	task, err := svc.Update(context.Background(), "t1", model.Document{
		"_id":         "hijacked",
		"dateCreated": "1999-01-01T00:00:00Z",
		"name":        "Renamed",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.ID != "t1" {
		t.Errorf("expected id to stay t1, got %q", task.ID)
	}
	if task.Name != "Renamed" {
		t.Errorf("expected name Renamed, got %q", task.Name)
	}
}

func TestTaskService_Update_ValidatesMergedDocument(t *testing.T) {
	t.Parallel()

	tasks := existingTask("", model.UnassignedUserName)
	tasks.updateFunc = func(context.Context, *model.Task, model.AssignmentChange) error {
		t.Error("repository must not be called for an invalid update")
		return nil
	}
	svc := newTestTaskService(tasks, &mockUserRepo{})

	if _, err := svc.Update(context.Background(), "t1", model.Document{"name": ""}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestTaskService_Update_NotFound(t *testing.T) {
	t.Parallel()

	svc := newTestTaskService(&mockTaskRepo{}, &mockUserRepo{})

	if _, err := svc.Update(context.Background(), "missing", model.Document{"name": "x"}); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestTaskService_Update_DeletedDuringWrite(t *testing.T) {
	t.Parallel()

	tasks := existingTask("", model.UnassignedUserName)
	tasks.updateFunc = func(context.Context, *model.Task, model.AssignmentChange) error {
		return database.ErrNotFound
	}
	svc := newTestTaskService(tasks, &mockUserRepo{})

	if _, err := svc.Update(context.Background(), "t1", model.Document{"name": "x"}); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

// ============================================================================
// Delete
// ============================================================================

func TestTaskService_Delete(t *testing.T) {
	t.Parallel()

	tasks := existingTask("u1", "Ada")
	var deleted *model.Task
	tasks.deleteFunc = func(_ context.Context, task *model.Task) error {
		deleted = task
		return nil
	}
	svc := newTestTaskService(tasks, &mockUserRepo{})

	if err := svc.Delete(context.Background(), "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted == nil || deleted.AssignedUser != "u1" {
		t.Errorf("expected the stored task with its assignee to be deleted, got %+v", deleted)
	}
}

func TestTaskService_Delete_NotFound(t *testing.T) {
	t.Parallel()

	svc := newTestTaskService(&mockTaskRepo{}, &mockUserRepo{})

	if err := svc.Delete(context.Background(), "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}
