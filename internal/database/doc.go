// Package database provides the SurrealDB access layer for the taskboard API.
//
// The Database interface abstracts SurrealDB so repositories can be tested
// against a real instance (see internal/testing/testdb) or a fake.
//
// # Query Methods
//
//   - Query: one {status, result} entry per statement in the query
//   - QueryOne: the first record of the first statement, or ErrNotFound
//   - Execute: mutations whose results are not needed
//
// # Transactions
//
// Transactions are BATCH-BASED, not connection-level. Statements accumulate in
// memory and run together inside BEGIN TRANSACTION / COMMIT TRANSACTION:
//
//	err := database.NewAtomicBatch().
//	    Add("CREATE type::thing('task', $id) CONTENT $doc", taskVars).
//	    Add("UPDATE user SET pendingTasks = array::union(pendingTasks, [$task]) WHERE id = $user", userVars).
//	    Execute(ctx, db)
//
// Variables are namespaced per statement by TxBuilder, so two statements may
// both bind $id without colliding.
//
// # Error Types
//
//   - ErrNotFound: Record does not exist
//   - ErrDuplicate: Unique index violation
//   - ErrConnection: Database connection failed
//   - ErrQuery: Query execution failed
//
// # Migrations
//
// Migrate applies the embedded *.surql files from the migrations package in
// lexical order. Every statement in them is idempotent (IF NOT EXISTS).
package database
