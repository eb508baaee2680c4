package db

// Dialect supplies the catalog queries for one database family. All queries
// read catalog metadata only; ColumnsQuery and PrimaryKeyQuery take the
// table name as their single bind argument, using the family's own
// placeholder style.
type Dialect interface {
	Name() string
	TableNamesQuery() string
	ColumnsQuery() string
	PrimaryKeyQuery() string
}

// PostgresDialect reads the information_schema of the public schema.
type PostgresDialect struct{}

func (PostgresDialect) Name() string { return "postgres" }

func (PostgresDialect) TableNamesQuery() string {
	return `SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name`
}

func (PostgresDialect) ColumnsQuery() string {
	return `SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`
}

func (PostgresDialect) PrimaryKeyQuery() string {
	return `SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = 'public'
			AND tc.table_name = $1`
}

// DuckDBDialect reads the information_schema of the main schema plus
// DuckDB's constraint table function, which information_schema does not
// cover.
type DuckDBDialect struct{}

func (DuckDBDialect) Name() string { return "duckdb" }

func (DuckDBDialect) TableNamesQuery() string {
	return `SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'main' AND table_type = 'BASE TABLE'
		ORDER BY table_name`
}

func (DuckDBDialect) ColumnsQuery() string {
	return `SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = 'main' AND table_name = ?
		ORDER BY ordinal_position`
}

func (DuckDBDialect) PrimaryKeyQuery() string {
	return `SELECT unnest(constraint_column_names) AS column_name
		FROM duckdb_constraints()
		WHERE table_name = ? AND constraint_type = 'PRIMARY KEY'`
}
