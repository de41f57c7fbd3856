package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// failedTransactionMsg is what SurrealDB reports for every statement of a
// cancelled transaction except the one that actually failed.
const failedTransactionMsg = "not executed due to a failed transaction"

// SurrealDB implements the Database interface for SurrealDB
type SurrealDB struct {
	db     *surrealdb.DB
	config Config
}

// NewSurrealDB creates a new SurrealDB instance
func NewSurrealDB(cfg Config) *SurrealDB {
	return &SurrealDB{
		config: cfg,
	}
}

// Connect establishes a connection to SurrealDB
func (s *SurrealDB) Connect(ctx context.Context) error {
	endpoint := fmt.Sprintf("ws://%s:%s", s.config.Host, s.config.Port)

	db, err := surrealdb.FromEndpointURLString(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	_, err = db.SignIn(ctx, &surrealdb.Auth{
		Username: s.config.User,
		Password: s.config.Password,
	})
	if err != nil {
		_ = db.Close(ctx)
		return fmt.Errorf("%w: signin failed: %v", ErrConnection, err)
	}

	if err := db.Use(ctx, s.config.Namespace, s.config.Database); err != nil {
		_ = db.Close(ctx)
		return fmt.Errorf("%w: use failed: %v", ErrConnection, err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SurrealDB) Close() error {
	if s.db != nil {
		return s.db.Close(context.Background())
	}
	return nil
}

// Ping checks the database connection
func (s *SurrealDB) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrConnection
	}
	if _, err := s.db.Version(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Query executes a query and returns one {status, result} map per statement.
// A statement error fails the whole call; unique index violations are
// reported as ErrDuplicate.
func (s *SurrealDB) Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
	if s.db == nil {
		return nil, ErrConnection
	}

	results, err := surrealdb.Query[interface{}](ctx, s.db, query, vars)
	if results != nil {
		// A failed statement also surfaces in err as a join of every
		// statement error; the per-statement view names the root cause.
		output, stmtErr := statementResults(*results)
		if stmtErr != nil {
			return nil, stmtErr
		}
		if err == nil {
			return output, nil
		}
	}
	if err != nil {
		return nil, classifyError(err.Error())
	}
	return nil, nil
}

// statementResults converts driver results to {status, result} maps. Any
// failed statement fails the batch with its classified root cause.
func statementResults(results []surrealdb.QueryResult[interface{}]) ([]interface{}, error) {
	output := make([]interface{}, 0, len(results))
	var messages []string
	for _, r := range results {
		if r.Status != "OK" {
			msg := "statement failed"
			if r.Error != nil {
				msg = r.Error.Message
			}
			messages = append(messages, msg)
			continue
		}
		output = append(output, map[string]interface{}{
			"status": r.Status,
			"result": r.Result,
		})
	}

	if len(messages) > 0 {
		return nil, classifyError(rootCause(messages))
	}
	return output, nil
}

// QueryOne executes a query and returns a single result
func (s *SurrealDB) QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error) {
	results, err := s.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return FirstRecord(results)
}

// Execute runs a query without returning results
func (s *SurrealDB) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	_, err := s.Query(ctx, query, vars)
	return err
}

// FirstRecord unwraps the first statement's result and returns its first
// record. Scalar results are returned as-is.
func FirstRecord(results []interface{}) (interface{}, error) {
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	resp, ok := results[0].(map[string]interface{})
	if !ok {
		return results[0], nil
	}
	switch data := resp["result"].(type) {
	case []interface{}:
		if len(data) == 0 {
			return nil, ErrNotFound
		}
		return data[0], nil
	case nil:
		return nil, ErrNotFound
	default:
		return data, nil
	}
}

// StatementRecords returns the records produced by statement idx
func StatementRecords(results []interface{}, idx int) []interface{} {
	if idx < 0 || idx >= len(results) {
		return nil
	}
	resp, ok := results[idx].(map[string]interface{})
	if !ok {
		return nil
	}
	switch data := resp["result"].(type) {
	case []interface{}:
		return data
	case nil:
		return nil
	default:
		return []interface{}{data}
	}
}

// rootCause picks the statement error that cancelled a transaction over the
// generic cancellation notices of its siblings.
func rootCause(messages []string) string {
	for _, m := range messages {
		if !strings.Contains(m, failedTransactionMsg) {
			return m
		}
	}
	return messages[0]
}

func classifyError(msg string) error {
	if isUniqueViolation(msg) {
		return fmt.Errorf("%w: %s", ErrDuplicate, msg)
	}
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "connection") || strings.Contains(lower, "websocket") {
		return fmt.Errorf("%w: %s", ErrConnection, msg)
	}
	return fmt.Errorf("%w: %s", ErrQuery, msg)
}

// isUniqueViolation matches SurrealDB's index violation wording, e.g.
// "Database index `user_email` already contains 'a@b.c', with record `user:x`".
func isUniqueViolation(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "already contains") ||
		strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "already exists")
}
