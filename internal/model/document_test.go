package model

import (
	"testing"
	"time"
)

func TestToDocument_UsesWireNames(t *testing.T) {
	t.Parallel()

	task := &Task{
		ID:               "t1",
		Name:             "Write report",
		Deadline:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		AssignedUserName: UnassignedUserName,
	}

	doc, err := ToDocument(task)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc[FieldID] != "t1" {
		t.Errorf("expected _id t1, got %v", doc[FieldID])
	}
	if doc["deadline"] != "2026-01-02T03:04:05Z" {
		t.Errorf("expected RFC 3339 deadline, got %v", doc["deadline"])
	}
	if doc["assignedUser"] != "" {
		t.Errorf("expected empty assignedUser, got %v", doc["assignedUser"])
	}
}

func TestFromDocument_RoundTripsTask(t *testing.T) {
	t.Parallel()

	doc := Document{"name": "x", "deadline": "2026-01-02T03:04:05Z", "completed": true}

	var task Task
	if err := FromDocument(doc, &task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Name != "x" || !task.Completed || task.Deadline.Year() != 2026 {
		t.Errorf("unexpected task %+v", task)
	}
}

func TestDocument_MergeAndWithout(t *testing.T) {
	t.Parallel()

	base := Document{"_id": "t1", "name": "old", "completed": false}
	merged := base.Merge(Document{"name": "new"}).Without(FieldID)

	if merged["name"] != "new" || merged["completed"] != false {
		t.Errorf("unexpected merge result %v", merged)
	}
	if merged.Has(FieldID) {
		t.Error("expected _id to be removed")
	}
	if base["name"] != "old" || !base.Has(FieldID) {
		t.Error("expected base document to be left untouched")
	}
}
