package query

import (
	"encoding/json"
	"strings"
)

// SortKey is one ORDER BY term
type SortKey struct {
	Field string
	Desc  bool

	column string
}

func parseSort(raw string, schema Schema) ([]SortKey, error) {
	keys, vals, err := decodeOrdered(raw)
	if err != nil {
		return nil, paramErr("sort", "malformed JSON: %v", err)
	}

	out := make([]SortKey, 0, len(keys))
	for i, key := range keys {
		kind, ok := schema.Kind(key)
		if !ok {
			return nil, paramErr("sort", "unknown field %q", key)
		}
		desc, ok := sortDirection(vals[i])
		if !ok {
			return nil, paramErr("sort", "%q must be 1, -1, \"asc\" or \"desc\"", key)
		}
		out = append(out, SortKey{Field: key, Desc: desc, column: column(key, kind)})
	}
	return out, nil
}

func sortDirection(v interface{}) (desc bool, ok bool) {
	switch d := v.(type) {
	case json.Number:
		switch string(d) {
		case "1":
			return false, true
		case "-1":
			return true, true
		}
	case string:
		switch strings.ToLower(d) {
		case "asc", "ascending":
			return false, true
		case "desc", "descending":
			return true, true
		}
	}
	return false, false
}
