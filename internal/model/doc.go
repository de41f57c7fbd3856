// Package model defines the task and user records and the response shapes
// shared by every layer of the taskboard API.
//
// # Records
//
//   - Task: a unit of work with an optional assignee (assignedUser) and a
//     cached display name for it (assignedUserName)
//   - User: a person with a unique email and a cached reverse index of the
//     tasks assigned to them (pendingTasks)
//
// Both serialize with the public field names used on the wire, with the
// record key exposed as "_id".
//
// # Documents
//
// Document is the untyped JSON object form used for payload merging,
// schema validation and field projection.
//
// # Envelope
//
// Every response body is an Envelope:
//
//	{"message": "Found task", "data": {...}}
//	{"message": "Validation failed", "data": null, "errors": [{"field": "name", "message": "..."}]}
package model
