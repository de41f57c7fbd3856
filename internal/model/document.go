package model

import (
	"encoding/json"
	"fmt"
)

// Document is the JSON object form of a task or user as it leaves the API.
// Projections operate on documents rather than on the typed structs.
type Document map[string]interface{}

// Server-managed document fields
const (
	FieldID          = "_id"
	FieldDateCreated = "dateCreated"
)

// ToDocument converts a typed record into its JSON object form
func ToDocument(v interface{}) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// FromDocument decodes a document into a typed record
func FromDocument(doc Document, v interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// Merge returns a copy of d with every key of patch applied over it
func (d Document) Merge(patch Document) Document {
	out := make(Document, len(d)+len(patch))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Without returns a copy of d with the given keys removed
func (d Document) Without(keys ...string) Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// String returns the value at key if it is a string
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Has reports whether key is present, even with a null value
func (d Document) Has(key string) bool {
	_, ok := d[key]
	return ok
}
