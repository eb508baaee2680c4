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

type TableSchemaInput struct {
	TableName string `json:"table_name"`
}

type TableSchemaOutput struct {
	Table   string         `json:"table"`
	Columns []SchemaColumn `json:"columns"`
}

type SchemaColumn struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
}

func RegisterTableSchemaTool(log *slog.Logger, server *mcp.Server, introspector *db.Introspector) error {
	req, err := jsonschema.For[TableSchemaInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create table schema input schema: %w", err)
	}

	res, err := jsonschema.For[TableSchemaOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create table schema output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         dbtools.ToolGetTableSchema,
		Description:  "Get the schema/column information for a specific table, including exact column names, types, nullability, and primary keys.",
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req TableSchemaInput) (*mcp.CallToolResult, TableSchemaOutput, error) {
		startTime := time.Now()
		toolName := dbtools.ToolGetTableSchema

		log.Debug("mcp/tool: describing table", "table", req.TableName)

		schema, err := introspector.DescribeTable(ctx, req.TableName)
		duration := time.Since(startTime).Seconds()

		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(toolName, "error").Inc()
			metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
			return nil, TableSchemaOutput{}, fmt.Errorf("failed to describe table: %w", err)
		}

		columns := make([]SchemaColumn, 0, len(schema.Columns))
		for _, col := range schema.Columns {
			columns = append(columns, SchemaColumn{
				Name:       col.Name,
				Type:       col.Type,
				Nullable:   col.Nullable,
				PrimaryKey: col.PrimaryKey,
			})
		}

		metrics.ToolCallsTotal.WithLabelValues(toolName, "success").Inc()
		metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration)
		return nil, TableSchemaOutput{Table: schema.Table, Columns: columns}, nil
	})
	return nil
}
