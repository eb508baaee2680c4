package db

import (
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func testConn(t *testing.T) *sql.DB {
	t.Helper()
	handle, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })
	return handle
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestDB_Introspector_ListTables(t *testing.T) {
	t.Parallel()

	handle := testConn(t)
	_, err := handle.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, username VARCHAR NOT NULL, email VARCHAR)`)
	require.NoError(t, err)
	_, err = handle.Exec(`CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER)`)
	require.NoError(t, err)

	intro := NewIntrospector(testLogger(t), handle, DuckDBDialect{})

	tables, err := intro.ListTables(t.Context())
	require.NoError(t, err)
	require.Equal(t, []string{"orders", "users"}, tables)
}

func TestDB_Introspector_ListTables_Empty(t *testing.T) {
	t.Parallel()

	intro := NewIntrospector(testLogger(t), testConn(t), DuckDBDialect{})

	tables, err := intro.ListTables(t.Context())
	require.NoError(t, err)
	require.Empty(t, tables)
}

func TestDB_Introspector_DescribeTable(t *testing.T) {
	t.Parallel()

	handle := testConn(t)
	_, err := handle.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, username VARCHAR NOT NULL, email VARCHAR)`)
	require.NoError(t, err)

	intro := NewIntrospector(testLogger(t), handle, DuckDBDialect{})

	schema, err := intro.DescribeTable(t.Context(), "users")
	require.NoError(t, err)
	require.Equal(t, "users", schema.Table)
	require.Len(t, schema.Columns, 3)

	require.Equal(t, "id", schema.Columns[0].Name)
	require.True(t, schema.Columns[0].PrimaryKey)
	require.False(t, schema.Columns[0].Nullable)

	require.Equal(t, "username", schema.Columns[1].Name)
	require.False(t, schema.Columns[1].PrimaryKey)
	require.False(t, schema.Columns[1].Nullable)

	require.Equal(t, "email", schema.Columns[2].Name)
	require.False(t, schema.Columns[2].PrimaryKey)
	require.True(t, schema.Columns[2].Nullable)
}

func TestDB_Introspector_DescribeTable_NotFound(t *testing.T) {
	t.Parallel()

	intro := NewIntrospector(testLogger(t), testConn(t), DuckDBDialect{})

	_, err := intro.DescribeTable(t.Context(), "nonexistent")
	require.Error(t, err)

	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	require.Equal(t, "table", notFound.Kind)
	require.Contains(t, notFound.Hint, "get_table_names")
}
