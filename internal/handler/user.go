package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/forgo/taskboard/internal/model"
	"github.com/forgo/taskboard/internal/service"
)

// UserService defines the user operations the handler needs
type UserService interface {
	Create(ctx context.Context, payload model.Document) (*model.User, error)
	List(ctx context.Context, values url.Values) (*service.ListResult, error)
	Get(ctx context.Context, id string, values url.Values) (model.Document, error)
	Update(ctx context.Context, id string, patch model.Document) (*model.User, error)
	Delete(ctx context.Context, id string) error
}

// UserHandler handles user HTTP requests
type UserHandler struct {
	users UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(users UserService) *UserHandler {
	return &UserHandler{users: users}
}

// RegisterRoutes registers user routes
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /users", h.Create)
	mux.HandleFunc("GET /users", h.List)
	mux.HandleFunc("GET /users/{id}", h.Get)
	mux.HandleFunc("PUT /users/{id}", h.Update)
	mux.HandleFunc("DELETE /users/{id}", h.Delete)
}

// Create handles POST /users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	payload, err := DecodeDocument(w, r)
	if err != nil {
		WriteError(w, NewBadRequestError("Invalid request body: "+err.Error()))
		return
	}

	user, err := h.users.Create(r.Context(), payload)
	if err != nil {
		handleError(w, r, err)
		return
	}

	WriteData(w, http.StatusCreated, "User created", user)
}

// List handles GET /users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	res, err := h.users.List(r.Context(), r.URL.Query())
	if err != nil {
		handleError(w, r, err)
		return
	}

	if res.Counted {
		WriteData(w, http.StatusOK, "Document count", res.Count)
		return
	}
	WriteData(w, http.StatusOK, "Users", res.Documents)
}

// Get handles GET /users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.users.Get(r.Context(), r.PathValue("id"), r.URL.Query())
	if err != nil {
		handleError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, "Found user", doc)
}

// Update handles PUT /users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	patch, err := DecodeDocument(w, r)
	if err != nil {
		WriteError(w, NewBadRequestError("Invalid request body: "+err.Error()))
		return
	}

	user, err := h.users.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		handleError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, "User updated", user)
}

// Delete handles DELETE /users/{id}. The user's tasks are unassigned.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), r.PathValue("id")); err != nil {
		handleError(w, r, err)
		return
	}

	WriteNoContent(w)
}
