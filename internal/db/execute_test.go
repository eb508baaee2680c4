package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDB_Executor_Execute(t *testing.T) {
	t.Parallel()

	handle := testConn(t)
	_, err := handle.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, username VARCHAR, email VARCHAR)`)
	require.NoError(t, err)
	_, err = handle.Exec(`INSERT INTO users VALUES
		(1, 'alice_smith', 'alice@example.com'),
		(2, 'bob_jones', 'bob@example.com'),
		(3, 'charlie_brown', NULL)`)
	require.NoError(t, err)

	exec := NewExecutor(testLogger(t), handle)

	t.Run("select all", func(t *testing.T) {
		result, err := exec.Execute(t.Context(), "SELECT id, username, email FROM users ORDER BY id")
		require.NoError(t, err)
		require.Equal(t, []string{"id", "username", "email"}, result.Columns)
		require.Equal(t, 3, result.Count)
		require.Equal(t, "alice_smith", result.Rows[0]["username"])
		require.Nil(t, result.Rows[2]["email"])
	})

	t.Run("aliased and computed columns", func(t *testing.T) {
		result, err := exec.Execute(t.Context(), "SELECT COUNT(*) AS total FROM users")
		require.NoError(t, err)
		require.Equal(t, []string{"total"}, result.Columns)
		require.Equal(t, 1, result.Count)
		require.EqualValues(t, 3, result.Rows[0]["total"])
	})

	t.Run("empty result", func(t *testing.T) {
		result, err := exec.Execute(t.Context(), "SELECT * FROM users WHERE id = 99")
		require.NoError(t, err)
		require.Equal(t, 0, result.Count)
		require.Empty(t, result.Rows)
	})
}

func TestDB_Executor_Execute_Forbidden(t *testing.T) {
	t.Parallel()

	handle := testConn(t)
	_, err := handle.Exec(`CREATE TABLE users (id INTEGER)`)
	require.NoError(t, err)
	_, err = handle.Exec(`INSERT INTO users VALUES (1)`)
	require.NoError(t, err)

	exec := NewExecutor(testLogger(t), handle)

	for _, sqlText := range []string{
		"DELETE FROM users",
		"DROP TABLE users",
		"SELECT 1; DELETE FROM users",
		"UPDATE users SET id = 2",
	} {
		_, err := exec.Execute(t.Context(), sqlText)
		require.Error(t, err)

		var forbidden *ForbiddenError
		require.True(t, errors.As(err, &forbidden), "expected ForbiddenError for %q, got %v", sqlText, err)
		require.Equal(t, sqlText, forbidden.SQL)
	}

	// Nothing reached the database: the table is intact.
	var count int
	require.NoError(t, handle.QueryRow("SELECT COUNT(*) FROM users").Scan(&count))
	require.Equal(t, 1, count)
}

func TestDB_Executor_Execute_NotFound(t *testing.T) {
	t.Parallel()

	handle := testConn(t)
	_, err := handle.Exec(`CREATE TABLE users (id INTEGER)`)
	require.NoError(t, err)

	exec := NewExecutor(testLogger(t), handle)

	t.Run("unknown table", func(t *testing.T) {
		_, err := exec.Execute(t.Context(), "SELECT * FROM nonexistent")
		require.Error(t, err)

		var notFound *NotFoundError
		require.True(t, errors.As(err, &notFound))
		require.Equal(t, "table", notFound.Kind)
		require.Contains(t, notFound.Hint, "get_table_names")
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := exec.Execute(t.Context(), "SELECT missing_column FROM users")
		require.Error(t, err)

		var notFound *NotFoundError
		require.True(t, errors.As(err, &notFound))
		require.Equal(t, "column", notFound.Kind)
		require.Contains(t, notFound.Hint, "get_table_schema")
	})
}

func TestDB_Executor_Execute_Unavailable(t *testing.T) {
	t.Parallel()

	handle := testConn(t)
	exec := NewExecutor(testLogger(t), handle)
	require.NoError(t, handle.Close())

	_, err := exec.Execute(t.Context(), "SELECT 1")
	require.Error(t, err)
	require.True(t, IsUnavailable(err))

	var forbidden *ForbiddenError
	require.False(t, errors.As(err, &forbidden))
}
