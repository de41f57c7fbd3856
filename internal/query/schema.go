package query

// FieldKind tells the compiler how to bind and compare a field's values
type FieldKind int

const (
	KindString FieldKind = iota
	KindBool
	KindDatetime
	KindStringList
	KindID
)

// Schema lists the fields of a table that may appear in where, select and sort
type Schema struct {
	Table  string
	Fields map[string]FieldKind
}

// Kind returns the kind of field and whether the field is known
func (s Schema) Kind(field string) (FieldKind, bool) {
	k, ok := s.Fields[field]
	return k, ok
}

// TaskSchema describes the task table
var TaskSchema = Schema{
	Table: "task",
	Fields: map[string]FieldKind{
		"_id":              KindID,
		"name":             KindString,
		"description":      KindString,
		"deadline":         KindDatetime,
		"completed":        KindBool,
		"assignedUser":     KindString,
		"assignedUserName": KindString,
		"dateCreated":      KindDatetime,
	},
}

// UserSchema describes the user table
var UserSchema = Schema{
	Table: "user",
	Fields: map[string]FieldKind{
		"_id":          KindID,
		"name":         KindString,
		"email":        KindString,
		"pendingTasks": KindStringList,
		"dateCreated":  KindDatetime,
	},
}

// column maps a public field name to the SurrealQL idiom that stores it
func column(field string, kind FieldKind) string {
	if kind == KindID {
		return "id"
	}
	return field
}
