// Package repository implements SurrealDB data access for tasks and users.
//
// Each repository wraps a database.Database and maps rows to model structs.
// Record keys are minted here (UUID v4) unless the caller supplied one, and
// are exposed without their table prefix.
//
// # Cross-collection writes
//
// A task's assignedUser and its assignee's pendingTasks are written in the
// same database.AtomicBatch:
//
//   - TaskRepository.Create inserts the task and pushes it onto the assignee
//   - TaskRepository.Update rewrites the task and moves it between assignees
//   - TaskRepository.Delete removes the task and pulls it from the assignee
//   - UserRepository.Delete removes the user and unassigns its tasks
//
// THROW guards inside the batch cancel it when the target record or the new
// assignee is missing; those failures surface as database.ErrNotFound and
// ErrAssigneeNotFound.
//
// # Example Usage
//
//	repo := repository.NewTaskRepository(db)
//	task, err := repo.GetByID(ctx, "6f1e0b9a-...")
//	if errors.Is(err, database.ErrNotFound) {
//	    // Handle not found
//	}
package repository
