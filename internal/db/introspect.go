package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Column describes one column of a table as reported by the catalog.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
}

// TableSchema is a point-in-time snapshot of one table's columns, in
// ordinal order.
type TableSchema struct {
	Table   string   `json:"table"`
	Columns []Column `json:"columns"`
}

// Introspector reads catalog metadata through a Dialect. Results are never
// cached; the schema may change between calls.
type Introspector struct {
	log     *slog.Logger
	db      DB
	dialect Dialect
}

func NewIntrospector(log *slog.Logger, db DB, dialect Dialect) *Introspector {
	return &Introspector{
		log:     log,
		db:      db,
		dialect: dialect,
	}
}

// ListTables returns the base table names visible in the default schema,
// sorted by name.
func (s *Introspector) ListTables(ctx context.Context) ([]string, error) {
	if s.log != nil {
		s.log.Debug("db: listing tables", "dialect", s.dialect.Name())
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.TableNamesQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table names: %w", err)
	}
	return tables, nil
}

// DescribeTable returns the column metadata for one table. An unknown table
// yields a *NotFoundError carrying a hint, not a driver error.
func (s *Introspector) DescribeTable(ctx context.Context, table string) (*TableSchema, error) {
	if s.log != nil {
		s.log.Debug("db: describing table", "table", table, "dialect", s.dialect.Name())
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.ColumnsQuery(), table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe table %q: %w", table, err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var name, declaredType, nullable string
		if err := rows.Scan(&name, &declaredType, &nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		columns = append(columns, Column{
			Name:     name,
			Type:     declaredType,
			Nullable: strings.EqualFold(nullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}

	if len(columns) == 0 {
		return nil, &NotFoundError{
			Kind:    "table",
			Message: fmt.Sprintf("table %q does not exist", table),
			Hint:    "Use get_table_names to see the available tables.",
		}
	}

	primaryKeys, err := s.primaryKeyColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	for i := range columns {
		if _, ok := primaryKeys[columns[i].Name]; ok {
			columns[i].PrimaryKey = true
		}
	}

	return &TableSchema{Table: table, Columns: columns}, nil
}

func (s *Introspector) primaryKeyColumns(ctx context.Context, table string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.PrimaryKeyQuery(), table)
	if err != nil {
		return nil, fmt.Errorf("failed to read primary key of %q: %w", table, err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan primary key column: %w", err)
		}
		keys[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating primary key columns: %w", err)
	}
	return keys, nil
}
