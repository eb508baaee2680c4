package db

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
)

// ForbiddenError reports SQL rejected by the read-only filter, as opposed to
// SQL the database itself refused. The message is deliberately distinct from
// driver error text so callers (and the model) can tell "refused" from
// "failed".
type ForbiddenError struct {
	SQL string
}

func (e *ForbiddenError) Error() string {
	return "only SELECT queries are allowed; no INSERT, UPDATE, DELETE, or other modification queries"
}

// NotFoundError reports an unknown table or column, with a hint the model
// can act on (which introspection tool to call next).
type NotFoundError struct {
	Kind    string // "table" or "column"
	Message string // original driver message, if any
	Hint    string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s does not exist", e.Kind)
}

// ExecError reports a driver-level execution failure other than not-found.
// It carries the attempted SQL so the failure can be reported back verbatim.
type ExecError struct {
	SQL     string
	Message string
}

func (e *ExecError) Error() string {
	return e.Message
}

// classifyQueryError maps a driver error to the typed taxonomy. Detection is
// by pattern-matching the driver message: Postgres says `column "x" does not
// exist` and `relation "t" does not exist`, DuckDB says `Table with name t
// does not exist` and `Referenced column "x" not found`.
func classifyQueryError(err error, sqlText string) error {
	msg := strings.ToLower(err.Error())
	missing := strings.Contains(msg, "does not exist") || strings.Contains(msg, "not found")

	switch {
	case missing && strings.Contains(msg, "column"):
		return &NotFoundError{
			Kind:    "column",
			Message: err.Error(),
			Hint:    "Check the exact column names and casing with get_table_schema; quote mixed-case names with double quotes.",
		}
	case missing && (strings.Contains(msg, "table") || strings.Contains(msg, "relation")):
		return &NotFoundError{
			Kind:    "table",
			Message: err.Error(),
			Hint:    "Use get_table_names to see the available tables.",
		}
	}
	return &ExecError{SQL: sqlText, Message: err.Error()}
}

// IsUnavailable reports whether err means the database itself is
// unreachable, rather than a problem with one statement. Matching is by
// error text since drivers rarely expose typed transport errors.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "EOF")
}
