// Package handler provides HTTP request handlers for the taskboard API.
//
// # Handler Pattern
//
//   - Constructor function (NewXxxHandler) accepts the service it fronts
//   - Services are consumed through small interfaces declared here
//   - RegisterRoutes wires the handler's method+path patterns onto a ServeMux
//
// # Response Format
//
// Every body is an envelope:
//
//	{"message": "Found task", "data": {...}}
//	{"message": "Validation failed", "data": null, "errors": [{"field": "deadline", "message": "is required"}]}
//
// DELETE responds 204 with no body. MapServiceError is the single table from
// service errors to status codes: validation and duplicate keys are 400,
// missing records 404, everything else 500 with the detail logged, not sent.
//
// # Example Usage
//
//	mux := http.NewServeMux()
//	handler.NewTaskHandler(taskService).RegisterRoutes(mux)
//	handler.NewUserHandler(userService).RegisterRoutes(mux)
//	mux.HandleFunc("GET /health", handler.NewHealthHandler(db).Health)
package handler
