// Package query turns list query-string parameters into SurrealQL.
//
// Supported parameters, all optional:
//
//	where  JSON filter: {"completed": false, "deadline": {"$lt": "2026-01-01T00:00:00Z"}}
//	select JSON projection: {"name": 1, "deadline": 1} or {"pendingTasks": 0}
//	sort   JSON sort spec, key order significant: {"deadline": 1, "name": -1}
//	skip   number of documents to skip
//	limit  maximum number of documents to return, subject to a LimitPolicy
//	count  when present and non-empty, return only the number of matching documents
//
// Field names are checked against the resource's Schema and every value is
// bound as a query variable. Malformed input yields an error wrapping
// ErrInvalidParam.
package query

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidParam is wrapped by every parse failure
var ErrInvalidParam = errors.New("invalid query parameter")

// ParamError reports which parameter failed to parse
type ParamError struct {
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s: %s", e.Param, e.Reason)
}

func (e *ParamError) Unwrap() error {
	return ErrInvalidParam
}

func paramErr(param, format string, args ...interface{}) error {
	return &ParamError{Param: param, Reason: fmt.Sprintf(format, args...)}
}

// LimitPolicy decides how a missing or unusable limit is treated.
// A Default of 0 means unlimited.
type LimitPolicy struct {
	Default      int
	ResetInvalid bool
}

// Params is a parsed and validated list request
type Params struct {
	Schema     Schema
	Projection Projection
	Sort       []SortKey
	Skip       int
	Limit      int
	Count      bool

	where string
	vars  map[string]interface{}
}

// Parse validates the list parameters in values against schema
func Parse(values url.Values, schema Schema, policy LimitPolicy) (*Params, error) {
	p := &Params{
		Schema: schema,
		vars:   map[string]interface{}{},
	}

	if raw := values.Get("where"); raw != "" {
		where, vars, err := compileFilter(raw, schema)
		if err != nil {
			return nil, err
		}
		p.where = where
		p.vars = vars
	}

	if raw := values.Get("select"); raw != "" {
		proj, err := parseProjection(raw, schema)
		if err != nil {
			return nil, err
		}
		p.Projection = proj
	}

	if raw := values.Get("sort"); raw != "" {
		keys, err := parseSort(raw, schema)
		if err != nil {
			return nil, err
		}
		p.Sort = keys
	}

	if raw := values.Get("skip"); raw != "" {
		skip, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || skip < 0 {
			return nil, paramErr("skip", "must be a non-negative integer")
		}
		p.Skip = skip
	}

	limit, err := parseLimit(values, policy)
	if err != nil {
		return nil, err
	}
	p.Limit = limit

	// Any non-empty count value requests the count, including "false"
	p.Count = values.Get("count") != ""

	return p, nil
}

// ParseSelect parses only the select parameter, for single-document reads
func ParseSelect(values url.Values, schema Schema) (Projection, error) {
	raw := values.Get("select")
	if raw == "" {
		return Projection{}, nil
	}
	return parseProjection(raw, schema)
}

func parseLimit(values url.Values, policy LimitPolicy) (int, error) {
	if !values.Has("limit") {
		return policy.Default, nil
	}

	limit, err := strconv.Atoi(strings.TrimSpace(values.Get("limit")))
	switch {
	case err == nil && limit > 0:
		return limit, nil
	case policy.ResetInvalid:
		return policy.Default, nil
	case err != nil || limit < 0:
		return 0, paramErr("limit", "must be a non-negative integer")
	default:
		// limit=0 asks for everything
		return 0, nil
	}
}

// HasFilter reports whether a where clause was supplied
func (p *Params) HasFilter() bool {
	return p.where != ""
}

// SelectQuery builds the SELECT statement and its variables. Sort, skip and
// limit are applied in that order.
func (p *Params) SelectQuery() (string, map[string]interface{}) {
	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(p.Schema.Table)
	if p.where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(p.where)
	}
	if len(p.Sort) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, k := range p.Sort {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k.column)
			if k.Desc {
				sb.WriteString(" DESC")
			} else {
				sb.WriteString(" ASC")
			}
		}
	}
	if p.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", p.Limit)
	}
	if p.Skip > 0 {
		fmt.Fprintf(&sb, " START %d", p.Skip)
	}
	return sb.String(), p.copyVars()
}

// CountQuery builds a statement returning {count: N} for the filter.
// Sort, skip and limit do not apply to counts.
func (p *Params) CountQuery() (string, map[string]interface{}) {
	q := "SELECT count() AS count FROM " + p.Schema.Table
	if p.where != "" {
		q += " WHERE " + p.where
	}
	return q + " GROUP ALL", p.copyVars()
}

func (p *Params) copyVars() map[string]interface{} {
	out := make(map[string]interface{}, len(p.vars))
	for k, v := range p.vars {
		out[k] = v
	}
	return out
}
