package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/askdblabs/askdb/internal/db"
	"github.com/askdblabs/askdb/internal/dbtools"
	"github.com/askdblabs/askdb/internal/metrics"
)

type QueryInput struct {
	SQLQuery string `json:"sql_query"`
}

type QueryOutput struct {
	Columns []string   `json:"columns"`
	Rows    []QueryRow `json:"rows"`
	Count   int        `json:"count"`
}

type QueryRow map[string]any

func RegisterQueryTool(log *slog.Logger, server *mcp.Server, executor *db.Executor) error {
	req, err := jsonschema.For[QueryInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create query input schema: %w", err)
	}

	res, err := jsonschema.For[QueryOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create query output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name: dbtools.ToolExecuteSQLQuery,
		Description: `Execute a SELECT query against the database and return the results.

USAGE RULES:
- Consult get_table_names and get_table_schema before writing any SQL. Do not guess column names.
- Column names are case-sensitive; quote them when they contain special characters or mixed case.
- Aggregate data using 'GROUP BY' and apply 'LIMIT' to keep result sets small.

IMPORTANT CONSTRAINTS:
- Only SELECT queries are allowed. INSERT, UPDATE, DELETE, and other data modification statements are rejected.`,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req QueryInput) (*mcp.CallToolResult, QueryOutput, error) {
		startTime := time.Now()
		toolName := dbtools.ToolExecuteSQLQuery

		log.Debug("mcp/tool: handling query", "sql", req.SQLQuery)

		res, err := handleQuery(ctx, executor, req)
		duration := time.Since(startTime).Seconds()

		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(toolName, "error").Inc()
			metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
			return nil, QueryOutput{}, err
		}
		metrics.ToolCallsTotal.WithLabelValues(toolName, "success").Inc()
		metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
		return nil, res, nil
	})
	return nil
}

func handleQuery(ctx context.Context, executor *db.Executor, req QueryInput) (QueryOutput, error) {
	resp, err := executor.Execute(ctx, req.SQLQuery)
	if err != nil {
		return QueryOutput{}, fmt.Errorf("failed to execute query: %w", err)
	}

	rows := make([]QueryRow, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		queryRow := make(QueryRow, len(resp.Columns))
		for _, col := range resp.Columns {
			queryRow[col] = row[col]
		}
		rows = append(rows, queryRow)
	}

	return QueryOutput{
		Columns: resp.Columns,
		Rows:    rows,
		Count:   resp.Count,
	}, nil
}
