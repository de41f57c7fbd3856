package model

import (
	"strings"
	"time"
)

// UnassignedUserName is the display name cached on a task with no assignee
const UnassignedUserName = "unassigned"

// Task is a unit of work that may be assigned to a user
type Task struct {
	ID               string    `json:"_id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Deadline         time.Time `json:"deadline"`
	Completed        bool      `json:"completed"`
	AssignedUser     string    `json:"assignedUser"`
	AssignedUserName string    `json:"assignedUserName"`
	DateCreated      time.Time `json:"dateCreated"`
}

// IsAssigned reports whether the task references a user
func (t *Task) IsAssigned() bool {
	return NormalizeAssignee(t.AssignedUser) != ""
}

// NormalizeAssignee returns the canonical form of an assignedUser value.
// Blank values mean unassigned and normalize to "".
func NormalizeAssignee(userID string) string {
	return strings.TrimSpace(userID)
}

// AssignmentChange describes how a write moves a task between assignees.
// Empty From or To means unassigned on that side.
type AssignmentChange struct {
	From string
	To   string
}

// NewAssignmentChange normalizes both sides of a reassignment
func NewAssignmentChange(from, to string) AssignmentChange {
	return AssignmentChange{From: NormalizeAssignee(from), To: NormalizeAssignee(to)}
}

// Changed reports whether the reverse index needs to be touched
func (c AssignmentChange) Changed() bool {
	return c.From != c.To
}
