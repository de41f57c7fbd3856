package repository

import (
	"context"
	"sort"

	"github.com/forgo/taskboard/internal/database"
	"github.com/forgo/taskboard/internal/model"
)

// IndexRepair is a set of writes that restores the task/user reverse index
type IndexRepair struct {
	// Rewrite maps a user key to the pending list it should hold
	Rewrite map[string][]string
	// Unassign maps a task key to the missing user it still points at
	Unassign map[string]string
}

// Empty reports whether the repair has nothing to write
func (r IndexRepair) Empty() bool {
	return len(r.Rewrite) == 0 && len(r.Unassign) == 0
}

// Rebuilding from task rows at write time keeps a concurrent assignment
// made after the snapshot from being dropped.
const rebuildPendingTasksQuery = `
	UPDATE type::thing("user", $id) SET pendingTasks =
		(SELECT VALUE record::id(id) FROM task WHERE assignedUser = $id)
`

// A task reassigned since the snapshot no longer matches $user and is left alone
const unassignStaleTaskQuery = `
	UPDATE type::thing("task", $id) SET assignedUser = "", assignedUserName = $unassigned
	WHERE assignedUser = $user
`

// ReconcileRepository applies reverse-index repairs
type ReconcileRepository struct {
	db database.Database
}

// NewReconcileRepository creates a new reconcile repository
func NewReconcileRepository(db database.Database) *ReconcileRepository {
	return &ReconcileRepository{db: db}
}

// Apply writes every repair in a single transaction
func (r *ReconcileRepository) Apply(ctx context.Context, repair IndexRepair) error {
	if repair.Empty() {
		return nil
	}

	batch := database.NewAtomicBatch()
	for _, taskID := range sortedKeys(repair.Unassign) {
		batch.Add(unassignStaleTaskQuery, map[string]interface{}{
			"id":         taskID,
			"user":       repair.Unassign[taskID],
			"unassigned": model.UnassignedUserName,
		})
	}
	for _, userID := range sortedKeys(repair.Rewrite) {
		batch.Add(rebuildPendingTasksQuery, map[string]interface{}{"id": userID})
	}
	return batch.Execute(ctx, r.db)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
