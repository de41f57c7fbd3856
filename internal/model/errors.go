package model

// FieldError represents a validation error on a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Envelope is the uniform response body: {message, data} plus field errors
// on validation failures. Data is always present and null when empty.
type Envelope struct {
	Message string       `json:"message"`
	Data    interface{}  `json:"data"`
	Errors  []FieldError `json:"errors,omitempty"`
}
