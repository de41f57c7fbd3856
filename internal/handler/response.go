package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/forgo/taskboard/internal/model"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// APIError is an error response ready to be written
type APIError struct {
	Status  int
	Message string
	Errors  []model.FieldError
}

// NewBadRequestError creates a 400 response without field errors
func NewBadRequestError(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: message}
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteData writes a successful {message, data} envelope
func WriteData(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, model.Envelope{Message: message, Data: data})
}

// WriteError writes an error envelope. Data is always null.
func WriteError(w http.ResponseWriter, err *APIError) {
	WriteJSON(w, err.Status, model.Envelope{Message: err.Message, Errors: err.Errors})
}

// WriteNoContent writes a 204 No Content response
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// DecodeDocument decodes a JSON object request body
func DecodeDocument(w http.ResponseWriter, r *http.Request) (model.Document, error) {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))

	var doc model.Document
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("request body is empty")
		}
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("request body must be a JSON object")
	}
	if decoder.More() {
		return nil, fmt.Errorf("unexpected data after JSON object")
	}
	return doc, nil
}
