package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/forgo/taskboard/internal/middleware"
	"github.com/forgo/taskboard/internal/model"
	"github.com/forgo/taskboard/internal/service"
)

// TaskService defines the task operations the handler needs
type TaskService interface {
	Create(ctx context.Context, payload model.Document) (*model.Task, error)
	List(ctx context.Context, values url.Values) (*service.ListResult, error)
	Get(ctx context.Context, id string, values url.Values) (model.Document, error)
	Update(ctx context.Context, id string, patch model.Document) (*model.Task, error)
	Delete(ctx context.Context, id string) error
}

// TaskHandler handles task HTTP requests
type TaskHandler struct {
	tasks TaskService
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(tasks TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// RegisterRoutes registers task routes
func (h *TaskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /tasks", h.Create)
	mux.HandleFunc("GET /tasks", h.List)
	mux.HandleFunc("GET /tasks/{id}", h.Get)
	mux.HandleFunc("PUT /tasks/{id}", h.Update)
	mux.HandleFunc("DELETE /tasks/{id}", h.Delete)
}

// Create handles POST /tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	payload, err := DecodeDocument(w, r)
	if err != nil {
		WriteError(w, NewBadRequestError("Invalid request body: "+err.Error()))
		return
	}

	task, err := h.tasks.Create(r.Context(), payload)
	if err != nil {
		handleError(w, r, err)
		return
	}

	WriteData(w, http.StatusCreated, "Task created", task)
}

// List handles GET /tasks with where, select, sort, skip, limit and count
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	res, err := h.tasks.List(r.Context(), r.URL.Query())
	if err != nil {
		handleError(w, r, err)
		return
	}

	if res.Counted {
		WriteData(w, http.StatusOK, "Document count", res.Count)
		return
	}
	WriteData(w, http.StatusOK, "Tasks", res.Documents)
}

// Get handles GET /tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.tasks.Get(r.Context(), r.PathValue("id"), r.URL.Query())
	if err != nil {
		handleError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, "Found task", doc)
}

// Update handles PUT /tasks/{id}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	patch, err := DecodeDocument(w, r)
	if err != nil {
		WriteError(w, NewBadRequestError("Invalid request body: "+err.Error()))
		return
	}

	task, err := h.tasks.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		handleError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, "Task updated successfully", task)
}

// Delete handles DELETE /tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.Delete(r.Context(), r.PathValue("id")); err != nil {
		handleError(w, r, err)
		return
	}

	WriteNoContent(w)
}

// handleError writes the mapped error response. Server errors are logged
// with the request id since their detail never reaches the client.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := MapServiceError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
	}
	WriteError(w, apiErr)
}
