// Package dbtools exposes the database introspection and query operations as
// tools the agent loop can declare and dispatch.
package dbtools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/askdblabs/askdb/internal/agent"
	"github.com/askdblabs/askdb/internal/db"
	"github.com/askdblabs/askdb/internal/metrics"
)

const (
	ToolGetTableNames   = "get_table_names"
	ToolGetTableSchema  = "get_table_schema"
	ToolExecuteSQLQuery = "execute_sql_query"
)

// Client implements agent.ToolClient over a live database connection.
type Client struct {
	log          *slog.Logger
	introspector *db.Introspector
	executor     *db.Executor
}

func NewClient(log *slog.Logger, introspector *db.Introspector, executor *db.Executor) *Client {
	return &Client{
		log:          log,
		introspector: introspector,
		executor:     executor,
	}
}

// ListTools returns the available tools.
func (c *Client) ListTools(ctx context.Context) ([]agent.Tool, error) {
	return []agent.Tool{
		{
			Name:        ToolGetTableNames,
			Description: "Get the names of all tables in the database to understand the database structure.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        ToolGetTableSchema,
			Description: "Get the schema/column information for a specific table to understand its structure.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"table_name": map[string]any{
						"type":        "string",
						"description": "The name of the table to get schema information for",
					},
				},
				"required": []string{"table_name"},
			},
		},
		{
			Name:        ToolExecuteSQLQuery,
			Description: "Execute a SELECT query against the database and return the results. Only SELECT queries are allowed.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"sql_query": map[string]any{
						"type":        "string",
						"description": "The SELECT SQL query to execute",
					},
				},
				"required": []string{"sql_query"},
			},
		},
	}, nil
}

// CallToolText dispatches a tool call and returns its result as a JSON
// payload. Recoverable failures (rejected SQL, unknown table or column,
// unknown tool) come back as isError payloads for the model to react to; the
// returned error is reserved for an unreachable database and aborts the run.
func (c *Client) CallToolText(ctx context.Context, name string, args map[string]any) (string, bool, error) {
	start := time.Now()
	result, isError, err := c.dispatch(ctx, name, args)

	status := "ok"
	if isError || err != nil {
		status = "error"
	}
	metrics.ToolCallsTotal.WithLabelValues(name, status).Inc()
	metrics.ToolCallDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	return result, isError, err
}

func (c *Client) dispatch(ctx context.Context, name string, args map[string]any) (string, bool, error) {
	switch name {
	case ToolGetTableNames:
		return c.getTableNames(ctx)
	case ToolGetTableSchema:
		tableName, ok := args["table_name"].(string)
		if !ok || tableName == "" {
			return marshalPayload(errorPayload{Error: "table_name is required"})
		}
		return c.getTableSchema(ctx, tableName)
	case ToolExecuteSQLQuery:
		sqlQuery, ok := args["sql_query"].(string)
		if !ok || sqlQuery == "" {
			return marshalPayload(errorPayload{Error: "sql_query is required"})
		}
		return c.executeSQLQuery(ctx, sqlQuery)
	default:
		return marshalPayload(errorPayload{
			Error:   fmt.Sprintf("Unknown function: %s", name),
			Message: "Function not implemented",
		})
	}
}

// tablesPayload is the result of get_table_names.
type tablesPayload struct {
	Success bool     `json:"success"`
	Tables  []string `json:"tables"`
	Message string   `json:"message"`
}

// schemaPayload is the result of get_table_schema.
type schemaPayload struct {
	Success bool        `json:"success"`
	Table   string      `json:"table"`
	Columns []db.Column `json:"columns"`
	Message string      `json:"message"`
}

// queryPayload is the result of execute_sql_query.
type queryPayload struct {
	Success  bool             `json:"success"`
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
	Message  string           `json:"message"`
}

// errorPayload is the shape of every recoverable failure.
type errorPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

func (c *Client) getTableNames(ctx context.Context) (string, bool, error) {
	tables, err := c.introspector.ListTables(ctx)
	if err != nil {
		if db.IsUnavailable(err) {
			return "", true, err
		}
		return marshalPayload(errorPayload{Error: err.Error(), Message: "Failed to get table names"})
	}
	return marshalPayload(tablesPayload{
		Success: true,
		Tables:  tables,
		Message: fmt.Sprintf("Found %d tables: %s", len(tables), strings.Join(tables, ", ")),
	})
}

func (c *Client) getTableSchema(ctx context.Context, tableName string) (string, bool, error) {
	schema, err := c.introspector.DescribeTable(ctx, tableName)
	if err != nil {
		if db.IsUnavailable(err) {
			return "", true, err
		}
		var notFound *db.NotFoundError
		if errors.As(err, &notFound) {
			return marshalPayload(errorPayload{
				Error:   notFound.Message,
				Message: fmt.Sprintf("Failed to get schema for table '%s'", tableName),
				Hint:    notFound.Hint,
			})
		}
		return marshalPayload(errorPayload{
			Error:   err.Error(),
			Message: fmt.Sprintf("Failed to get schema for table '%s'", tableName),
		})
	}
	return marshalPayload(schemaPayload{
		Success: true,
		Table:   schema.Table,
		Columns: schema.Columns,
		Message: fmt.Sprintf("Schema for table '%s'", schema.Table),
	})
}

func (c *Client) executeSQLQuery(ctx context.Context, sqlQuery string) (string, bool, error) {
	if c.log != nil {
		c.log.Info("executing query", "sql", sqlQuery)
	}

	result, err := c.executor.Execute(ctx, sqlQuery)
	if err != nil {
		if db.IsUnavailable(err) {
			return "", true, err
		}
		return marshalPayload(classifyExecuteError(err))
	}

	rows := result.Rows
	if rows == nil {
		rows = []map[string]any{}
	}
	return marshalPayload(queryPayload{
		Success:  true,
		Columns:  result.Columns,
		Rows:     rows,
		RowCount: result.Count,
		Message:  fmt.Sprintf("Query executed successfully. Returned %d rows.", result.Count),
	})
}

func classifyExecuteError(err error) errorPayload {
	var forbidden *db.ForbiddenError
	if errors.As(err, &forbidden) {
		return errorPayload{
			Error:   "Only SELECT queries are allowed",
			Message: "Security restriction: Only SELECT statements are permitted",
		}
	}

	var notFound *db.NotFoundError
	if errors.As(err, &notFound) {
		return errorPayload{
			Error:   notFound.Message,
			Message: "SQL execution failed",
			Hint:    notFound.Hint,
		}
	}

	var execErr *db.ExecError
	if errors.As(err, &execErr) {
		return errorPayload{
			Error:   execErr.Message,
			Message: "SQL execution failed",
		}
	}

	return errorPayload{Error: err.Error(), Message: "SQL execution failed"}
}

// marshalPayload serializes a tool payload, reporting isError for the
// recoverable failure shape.
func marshalPayload(payload any) (string, bool, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", true, fmt.Errorf("failed to marshal tool payload: %w", err)
	}
	_, isError := payload.(errorPayload)
	return string(data), isError, nil
}
