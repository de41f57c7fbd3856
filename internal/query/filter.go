package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// compiler accumulates bound variables while a filter is translated
type compiler struct {
	schema Schema
	vars   map[string]interface{}
}

func compileFilter(raw string, schema Schema) (string, map[string]interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var filter interface{}
	if err := dec.Decode(&filter); err != nil {
		return "", nil, paramErr("where", "malformed JSON: %v", err)
	}
	if dec.More() {
		return "", nil, paramErr("where", "trailing data after filter object")
	}
	obj, ok := filter.(map[string]interface{})
	if !ok {
		return "", nil, paramErr("where", "must be a JSON object")
	}

	c := &compiler{schema: schema, vars: map[string]interface{}{}}
	cond, err := c.object(obj)
	if err != nil {
		return "", nil, err
	}
	return cond, c.vars, nil
}

// bind stores v under a fresh variable name and returns its reference
func (c *compiler) bind(v interface{}) string {
	name := "w" + strconv.Itoa(len(c.vars))
	c.vars[name] = v
	return "$" + name
}

// object compiles {k1: ..., k2: ...} as the conjunction of its entries.
// Keys are visited in sorted order so the output is deterministic.
func (c *compiler) object(obj map[string]interface{}) (string, error) {
	if len(obj) == 0 {
		return "true", nil
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		var (
			cond string
			err  error
		)
		switch key {
		case "$and", "$or":
			cond, err = c.logical(key, obj[key])
		default:
			if strings.HasPrefix(key, "$") {
				return "", paramErr("where", "unsupported top-level operator %s", key)
			}
			cond, err = c.field(key, obj[key])
		}
		if err != nil {
			return "", err
		}
		parts = append(parts, cond)
	}
	return joinConds(parts, " AND "), nil
}

func (c *compiler) logical(op string, v interface{}) (string, error) {
	list, ok := v.([]interface{})
	if !ok || len(list) == 0 {
		return "", paramErr("where", "%s must be a non-empty array", op)
	}

	parts := make([]string, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return "", paramErr("where", "%s entries must be objects", op)
		}
		cond, err := c.object(obj)
		if err != nil {
			return "", err
		}
		parts = append(parts, cond)
	}

	sep := " AND "
	if op == "$or" {
		sep = " OR "
	}
	return joinConds(parts, sep), nil
}

func (c *compiler) field(name string, v interface{}) (string, error) {
	kind, ok := c.schema.Kind(name)
	if !ok {
		return "", paramErr("where", "unknown field %q", name)
	}

	ops, isOps := v.(map[string]interface{})
	if isOps && hasOperatorKeys(ops) {
		opNames := make([]string, 0, len(ops))
		for op := range ops {
			opNames = append(opNames, op)
		}
		sort.Strings(opNames)

		parts := make([]string, 0, len(ops))
		for _, op := range opNames {
			cond, err := c.operator(name, kind, op, ops[op])
			if err != nil {
				return "", err
			}
			parts = append(parts, cond)
		}
		return joinConds(parts, " AND "), nil
	}

	return c.operator(name, kind, "$eq", v)
}

func (c *compiler) operator(name string, kind FieldKind, op string, v interface{}) (string, error) {
	col := column(name, kind)

	switch op {
	case "$exists":
		want, ok := v.(bool)
		if !ok {
			return "", paramErr("where", "$exists on %q takes a boolean", name)
		}
		if want {
			return fmt.Sprintf("%s != NONE", col), nil
		}
		return fmt.Sprintf("%s = NONE", col), nil

	case "$eq", "$ne":
		if v == nil {
			if op == "$eq" {
				return fmt.Sprintf("(%s = NONE OR %s = NULL)", col, col), nil
			}
			return fmt.Sprintf("(%s != NONE AND %s != NULL)", col, col), nil
		}
		if kind == KindStringList {
			return c.listEquality(name, col, op, v)
		}
		ref, err := c.value(name, kind, v)
		if err != nil {
			return "", err
		}
		if op == "$eq" {
			return fmt.Sprintf("%s = %s", col, ref), nil
		}
		return fmt.Sprintf("%s != %s", col, ref), nil

	case "$gt", "$gte", "$lt", "$lte":
		if kind == KindStringList || kind == KindBool {
			return "", paramErr("where", "%s is not supported on %q", op, name)
		}
		ref, err := c.value(name, kind, v)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", col, comparisonOps[op], ref), nil

	case "$in", "$nin":
		list, ok := v.([]interface{})
		if !ok {
			return "", paramErr("where", "%s on %q takes an array", op, name)
		}
		elemKind := kind
		if kind == KindStringList {
			elemKind = KindString
		}
		refs := make([]string, 0, len(list))
		for _, item := range list {
			ref, err := c.value(name, elemKind, item)
			if err != nil {
				return "", err
			}
			refs = append(refs, ref)
		}
		set := "[" + strings.Join(refs, ", ") + "]"

		switch {
		case kind == KindStringList && op == "$in":
			return fmt.Sprintf("%s CONTAINSANY %s", col, set), nil
		case kind == KindStringList:
			return fmt.Sprintf("%s CONTAINSNONE %s", col, set), nil
		case op == "$in":
			return fmt.Sprintf("%s IN %s", col, set), nil
		default:
			return fmt.Sprintf("%s NOT IN %s", col, set), nil
		}

	default:
		return "", paramErr("where", "unsupported operator %s on %q", op, name)
	}
}

var comparisonOps = map[string]string{
	"$gt":  ">",
	"$gte": ">=",
	"$lt":  "<",
	"$lte": "<=",
}

// listEquality gives array fields element semantics for scalars and exact
// match semantics for arrays.
func (c *compiler) listEquality(name, col, op string, v interface{}) (string, error) {
	if list, ok := v.([]interface{}); ok {
		ids := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return "", paramErr("where", "%q holds strings", name)
			}
			ids = append(ids, s)
		}
		ref := c.bind(ids)
		if op == "$eq" {
			return fmt.Sprintf("%s = %s", col, ref), nil
		}
		return fmt.Sprintf("%s != %s", col, ref), nil
	}

	s, ok := v.(string)
	if !ok {
		return "", paramErr("where", "%q holds strings", name)
	}
	ref := c.bind(s)
	if op == "$eq" {
		return fmt.Sprintf("%s CONTAINS %s", col, ref), nil
	}
	return fmt.Sprintf("%s CONTAINSNOT %s", col, ref), nil
}

// value binds a scalar and returns the expression that reads it back with
// the field's type.
func (c *compiler) value(name string, kind FieldKind, v interface{}) (string, error) {
	switch kind {
	case KindID:
		s, ok := v.(string)
		if !ok || s == "" {
			return "", paramErr("where", "%q must be a non-empty string", name)
		}
		return fmt.Sprintf("type::thing(%q, %s)", c.schema.Table, c.bind(s)), nil

	case KindBool:
		switch b := v.(type) {
		case bool:
			return c.bind(b), nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return "", paramErr("where", "%q must be a boolean", name)
			}
			return c.bind(parsed), nil
		}
		return "", paramErr("where", "%q must be a boolean", name)

	case KindDatetime:
		s, ok := v.(string)
		if !ok {
			return "", paramErr("where", "%q must be an RFC 3339 date-time string", name)
		}
		if _, err := time.Parse(time.RFC3339Nano, s); err != nil {
			return "", paramErr("where", "%q must be an RFC 3339 date-time string", name)
		}
		return "<datetime>" + c.bind(s), nil

	default:
		s, ok := v.(string)
		if !ok {
			return "", paramErr("where", "%q must be a string", name)
		}
		return c.bind(s), nil
	}
}

func hasOperatorKeys(obj map[string]interface{}) bool {
	if len(obj) == 0 {
		return false
	}
	for k := range obj {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func joinConds(parts []string, sep string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// decodeOrdered reads a flat JSON object keeping key order
func decodeOrdered(raw string) ([]string, []interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected a JSON object")
	}

	var keys []string
	var vals []interface{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected an object key")
		}
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		vals = append(vals, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	if dec.More() {
		return nil, nil, fmt.Errorf("trailing data after object")
	}
	return keys, vals, nil
}
