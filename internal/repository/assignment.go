package repository

import (
	"strings"

	"github.com/forgo/taskboard/internal/database"
	"github.com/forgo/taskboard/internal/model"
)

// Messages raised by THROW guards inside batches. The database reports them
// as query errors whose text contains the message.
const (
	recordMissingMsg   = "record not found"
	assigneeMissingMsg = "assignee not found"
)

// Reverse index maintenance. UPDATE on a record id never creates the
// record, so a push or pull against a user that no longer exists is a no-op.
const (
	pushPendingTaskQuery = `UPDATE type::thing("user", $user) SET pendingTasks = array::union(pendingTasks ?? [], [$task])`
	pullPendingTaskQuery = `UPDATE type::thing("user", $user) SET pendingTasks = array::complement(pendingTasks ?? [], [$task])`

	unassignTasksOfUserQuery = `UPDATE task SET assignedUser = "", assignedUserName = $unassigned WHERE assignedUser = $user`
)

// requireRecord adds a guard that cancels the batch when table:key is absent
func requireRecord(batch *database.AtomicBatch, table, key, msg string) {
	batch.Add(
		`LET $guard = type::thing($tb, $key); IF !$guard.id { THROW "`+msg+`" }`,
		map[string]interface{}{"tb": table, "key": key},
	)
}

// addAssignmentChange queues the reverse-index writes that move taskID from
// change.From to change.To. The new assignee must exist or the batch fails.
func addAssignmentChange(batch *database.AtomicBatch, taskID string, change model.AssignmentChange) {
	if !change.Changed() {
		return
	}
	if change.From != "" {
		batch.Add(pullPendingTaskQuery, map[string]interface{}{"user": change.From, "task": taskID})
	}
	if change.To != "" {
		requireRecord(batch, "user", change.To, assigneeMissingMsg)
		batch.Add(pushPendingTaskQuery, map[string]interface{}{"user": change.To, "task": taskID})
	}
}

// isGuardError reports whether err came from the named THROW guard
func isGuardError(err error, msg string) bool {
	return err != nil && strings.Contains(err.Error(), msg)
}
