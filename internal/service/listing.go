package service

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/forgo/taskboard/internal/model"
	"github.com/forgo/taskboard/internal/query"
)

// DocumentValidator checks a payload against a named JSON schema
type DocumentValidator interface {
	Document(name string, doc model.Document) ([]model.FieldError, error)
}

// ListResult is the outcome of a list request: a page of documents, or
// only the number of matches when the request asked for a count.
type ListResult struct {
	Documents []model.Document
	Count     int
	Counted   bool
}

func parseList(values url.Values, schema query.Schema, policy query.LimitPolicy) (*query.Params, error) {
	p, err := query.Parse(values, schema, policy)
	if err != nil {
		return nil, queryError(err)
	}
	return p, nil
}

func parseSelect(values url.Values, schema query.Schema) (query.Projection, error) {
	proj, err := query.ParseSelect(values, schema)
	if err != nil {
		return query.Projection{}, queryError(err)
	}
	return proj, nil
}

// queryError reports a malformed query parameter as a validation failure
func queryError(err error) error {
	var pe *query.ParamError
	if errors.As(err, &pe) {
		return &ValidationError{
			Message: "Invalid query parameter",
			Fields:  []model.FieldError{{Field: pe.Param, Message: pe.Reason}},
		}
	}
	if errors.Is(err, query.ErrInvalidParam) {
		return &ValidationError{Message: err.Error()}
	}
	return err
}

func validateDocument(v DocumentValidator, schema string, doc model.Document) error {
	fields, err := v.Document(schema, doc)
	if err != nil {
		return fmt.Errorf("validate %s: %w", schema, err)
	}
	if len(fields) > 0 {
		return &ValidationError{Message: "Validation failed", Fields: fields}
	}
	return nil
}

// toDocuments converts records to documents and applies proj
func toDocuments[T any](items []T, proj query.Projection) ([]model.Document, error) {
	docs := make([]model.Document, 0, len(items))
	for _, item := range items {
		doc, err := model.ToDocument(item)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return proj.ApplyAll(docs), nil
}

// mergeForUpdate overlays patch on the stored form of current. Server-managed
// fields are dropped from both sides.
func mergeForUpdate(current interface{}, patch model.Document) (model.Document, error) {
	base, err := model.ToDocument(current)
	if err != nil {
		return nil, err
	}
	return base.
		Without(model.FieldID, model.FieldDateCreated).
		Merge(patch.Without(model.FieldID, model.FieldDateCreated)), nil
}
