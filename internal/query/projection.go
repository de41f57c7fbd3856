package query

import (
	"encoding/json"
	"strconv"

	"github.com/forgo/taskboard/internal/model"
)

// Projection selects which document fields are returned. The zero value
// returns every field.
type Projection struct {
	fields    map[string]bool
	exclusive bool
	dropID    bool
	onlyID    bool
}

// IsZero reports whether the projection leaves documents untouched
func (p Projection) IsZero() bool {
	return len(p.fields) == 0 && !p.dropID && !p.onlyID
}

func parseProjection(raw string, schema Schema) (Projection, error) {
	keys, vals, err := decodeOrdered(raw)
	if err != nil {
		return Projection{}, paramErr("select", "malformed JSON: %v", err)
	}

	p := Projection{fields: map[string]bool{}}
	sawInclude, sawExclude, sawID := false, false, false
	for i, key := range keys {
		if _, ok := schema.Kind(key); !ok {
			return Projection{}, paramErr("select", "unknown field %q", key)
		}
		include, ok := projectionFlag(vals[i])
		if !ok {
			return Projection{}, paramErr("select", "%q must be 1, 0, true or false", key)
		}

		if key == model.FieldID {
			p.dropID = !include
			sawID = include
			continue
		}
		if include {
			sawInclude = true
		} else {
			sawExclude = true
		}
		p.fields[key] = true
	}

	if sawInclude && sawExclude {
		return Projection{}, paramErr("select", "cannot mix inclusion and exclusion")
	}
	p.exclusive = sawExclude
	// {"_id": 1} alone is an inclusion of _id and nothing else
	p.onlyID = sawID && len(p.fields) == 0
	return p, nil
}

func projectionFlag(v interface{}) (bool, bool) {
	switch f := v.(type) {
	case bool:
		return f, true
	case json.Number:
		n, err := strconv.ParseFloat(string(f), 64)
		if err != nil {
			return false, false
		}
		return n != 0, true
	}
	return false, false
}

// Apply returns the projected copy of doc
func (p Projection) Apply(doc model.Document) model.Document {
	if p.IsZero() {
		return doc
	}

	out := make(model.Document, len(doc))
	for k, v := range doc {
		switch {
		case k == model.FieldID:
			if !p.dropID {
				out[k] = v
			}
		case p.exclusive:
			if !p.fields[k] {
				out[k] = v
			}
		case len(p.fields) == 0:
			// {"_id": 0} alone keeps every other field
			if !p.onlyID {
				out[k] = v
			}
		default:
			if p.fields[k] {
				out[k] = v
			}
		}
	}
	return out
}

// ApplyAll projects every document in docs
func (p Projection) ApplyAll(docs []model.Document) []model.Document {
	if p.IsZero() {
		return docs
	}
	out := make([]model.Document, len(docs))
	for i, d := range docs {
		out[i] = p.Apply(d)
	}
	return out
}
