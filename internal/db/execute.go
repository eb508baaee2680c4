package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/askdblabs/askdb/internal/sqlguard"
)

// QueryResult holds the materialized rows of one SELECT. Rows are keyed by
// the column names the result set reported, since a SELECT may alias or
// compute columns that the table schema never mentions.
type QueryResult struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Count   int              `json:"count"`
}

// Executor runs read-only statements. Every execution passes through the
// sqlguard filter first; there is no bypass path.
type Executor struct {
	log *slog.Logger
	db  DB
}

func NewExecutor(log *slog.Logger, db DB) *Executor {
	return &Executor{
		log: log,
		db:  db,
	}
}

// Ping verifies the database connection is alive.
func (e *Executor) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// Execute runs sqlText and fetches all rows. It returns *ForbiddenError if
// the statement fails the read-only filter, *NotFoundError for unknown
// tables or columns, and *ExecError for any other driver failure.
func (e *Executor) Execute(ctx context.Context, sqlText string) (*QueryResult, error) {
	if !sqlguard.IsReadOnly(sqlText) {
		if e.log != nil {
			e.log.Warn("db: rejected non-read-only query", "sql", sqlText)
		}
		return nil, &ForbiddenError{SQL: sqlText}
	}

	if e.log != nil {
		e.log.Debug("db: executing query", "sql", sqlText)
	}

	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		if IsUnavailable(err) {
			return nil, fmt.Errorf("database unavailable: %w", err)
		}
		return nil, classifyQueryError(err, sqlText)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get result columns: %w", err)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			switch v := values[i].(type) {
			case []byte:
				row[col] = string(v)
			default:
				row[col] = values[i]
			}
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyQueryError(err, sqlText)
	}

	return &QueryResult{
		Columns: columns,
		Rows:    resultRows,
		Count:   len(resultRows),
	}, nil
}
