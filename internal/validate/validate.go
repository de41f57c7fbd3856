// Package validate checks task and user payloads against embedded JSON Schemas.
package validate

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/forgo/taskboard/internal/model"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names
const (
	Task = "task.json"
	User = "user.json"
)

// Validator holds the compiled resource schemas
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// New compiles the embedded schemas
func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	names := []string{Task, User}
	for _, name := range names {
		data, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}

	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(names))}
	for _, name := range names {
		schema, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		v.schemas[name] = schema
	}
	return v, nil
}

// MustNew is New for program initialization and tests
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Document validates doc against the named schema. A nil result means the
// document is valid; otherwise every failing field is reported once.
func (v *Validator) Document(name string, doc model.Document) ([]model.FieldError, error) {
	schema, ok := v.schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}

	// The compiled schema expects plain JSON values
	err := schema.Validate(map[string]interface{}(doc))
	if err == nil {
		return nil, nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("validate %s: %w", name, err)
	}
	return fieldErrors(ve), nil
}

var quotedName = regexp.MustCompile(`'([^']+)'`)

// fieldErrors flattens the leaves of a validation error tree
func fieldErrors(ve *jsonschema.ValidationError) []model.FieldError {
	var leaves []*jsonschema.ValidationError
	collectLeaves(ve, &leaves)

	seen := map[string]bool{}
	var out []model.FieldError
	add := func(field, msg string) {
		key := field + "\x00" + msg
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, model.FieldError{Field: field, Message: msg})
	}

	for _, leaf := range leaves {
		field := pointerToField(leaf.InstanceLocation)

		// Root-level errors name the offending properties in the message
		if field == "" {
			switch {
			case strings.HasPrefix(leaf.Message, "missing properties"):
				for _, m := range quotedName.FindAllStringSubmatch(leaf.Message, -1) {
					add(m[1], "is required")
				}
				continue
			case strings.HasPrefix(leaf.Message, "additionalProperties"):
				for _, m := range quotedName.FindAllStringSubmatch(leaf.Message, -1) {
					add(m[1], "is not allowed")
				}
				continue
			}
			field = "body"
		}
		add(field, leaf.Message)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func collectLeaves(ve *jsonschema.ValidationError, out *[]*jsonschema.ValidationError) {
	if len(ve.Causes) == 0 {
		*out = append(*out, ve)
		return
	}
	for _, c := range ve.Causes {
		collectLeaves(c, out)
	}
}

// pointerToField turns "/pendingTasks/2" into "pendingTasks.2"
func pointerToField(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "#")
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}
	parts := strings.Split(ptr, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return strings.Join(parts, ".")
}
