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

type TableNamesInput struct{}

type TableNamesOutput struct {
	Tables []string `json:"tables"`
	Count  int      `json:"count"`
}

func RegisterTableNamesTool(log *slog.Logger, server *mcp.Server, introspector *db.Introspector) error {
	req, err := jsonschema.For[TableNamesInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create table names input schema: %w", err)
	}

	res, err := jsonschema.For[TableNamesOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create table names output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         dbtools.ToolGetTableNames,
		Description:  "Get the names of all tables in the database to understand the database structure.",
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ TableNamesInput) (*mcp.CallToolResult, TableNamesOutput, error) {
		startTime := time.Now()
		toolName := dbtools.ToolGetTableNames

		log.Debug("mcp/tool: listing tables")

		tables, err := introspector.ListTables(ctx)
		duration := time.Since(startTime).Seconds()

		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(toolName, "error").Inc()
			metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
			return nil, TableNamesOutput{}, fmt.Errorf("failed to list tables: %w", err)
		}
		metrics.ToolCallsTotal.WithLabelValues(toolName, "success").Inc()
		metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
		return nil, TableNamesOutput{Tables: tables, Count: len(tables)}, nil
	})
	return nil
}
