package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/forgo/taskboard/internal/database"
)

// recordKey reduces a SurrealDB record id to the bare key exposed as _id.
// The Go client returns models.RecordID; string forms look like
// "task:abc" or "task:⟨6f1e-...⟩".
func recordKey(id interface{}) string {
	switch v := id.(type) {
	case models.RecordID:
		return fmt.Sprintf("%v", v.ID)
	case *models.RecordID:
		if v != nil {
			return fmt.Sprintf("%v", v.ID)
		}
		return ""
	case string:
		if i := strings.Index(v, ":"); i >= 0 {
			v = v[i+1:]
		}
		v = strings.TrimPrefix(strings.TrimSuffix(v, "⟩"), "⟨")
		return strings.Trim(v, "`")
	case map[string]interface{}:
		// {"tb": "task", "id": "abc"} from older clients
		if key, ok := v["id"]; ok {
			return recordKey(key)
		}
		if key, ok := v["ID"]; ok {
			return recordKey(key)
		}
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", id)
}

// parseTime parses time from the formats the client may return
func parseTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
	case models.CustomDateTime:
		return t.Time
	case *models.CustomDateTime:
		if t != nil {
			return t.Time
		}
	}
	return time.Time{}
}

// records returns the rows of the first statement in a query result
func records(results []interface{}) []map[string]interface{} {
	rows := database.StatementRecords(results, 0)
	out := make([]map[string]interface{}, 0, len(rows))
	for _, r := range rows {
		if m, ok := r.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

// findRecord scans every statement of a batch result for the row whose id
// is table:key. Transaction results carry one entry per statement, so the
// row's position depends on which optional statements were added.
func findRecord(results []interface{}, table, key string) (map[string]interface{}, bool) {
	for i := range results {
		for _, r := range database.StatementRecords(results, i) {
			m, ok := r.(map[string]interface{})
			if !ok {
				continue
			}
			if recordTable(m["id"]) == table && recordKey(m["id"]) == key {
				return m, true
			}
		}
	}
	return nil, false
}

func recordTable(id interface{}) string {
	switch v := id.(type) {
	case models.RecordID:
		return v.Table
	case *models.RecordID:
		if v != nil {
			return v.Table
		}
	case string:
		if i := strings.Index(v, ":"); i >= 0 {
			return v[:i]
		}
	case map[string]interface{}:
		if tb, ok := v["tb"].(string); ok {
			return tb
		}
		if tb, ok := v["Table"].(string); ok {
			return tb
		}
	}
	return ""
}

// extractCount reads {count: N} from the first row of a count query.
// GROUP ALL over zero rows yields no row at all, which means 0.
func extractCount(results []interface{}) int {
	rows := records(results)
	if len(rows) == 0 {
		return 0
	}
	return extractCountValue(rows[0]["count"])
}

// extractCountValue converts various numeric types to int
func extractCountValue(v interface{}) int {
	switch c := v.(type) {
	case float64:
		return int(c)
	case float32:
		return int(c)
	case int:
		return c
	case int64:
		return int(c)
	case uint64:
		return int(c)
	case uint32:
		return int(c)
	case int32:
		return int(c)
	}
	return 0
}

// getString extracts a string value from a map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// getBool extracts a bool value from a map
func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

// getStringSlice extracts a string slice from a map
func getStringSlice(m map[string]interface{}, key string) []string {
	switch v := m[key].(type) {
	case []interface{}:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	case []string:
		return append([]string(nil), v...)
	}
	return []string{}
}
