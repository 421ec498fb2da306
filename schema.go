package pggw

import (
	"context"
	"fmt"
)

// Introspection tools. Values reach the server as bound parameters; no
// caller-supplied text is interpolated into these statements.

const listDatabasesSQL = `
SELECT d.datname AS name,
       pg_catalog.pg_get_userbyid(d.datdba) AS owner,
       pg_catalog.pg_encoding_to_char(d.encoding) AS encoding
FROM pg_catalog.pg_database d
WHERE d.datistemplate = false
ORDER BY d.datname;
`

const listTablesSQL = `
SELECT table_name, table_schema, table_type
FROM information_schema.tables
WHERE table_schema = $1
ORDER BY table_name;
`

const describeColumnsSQL = `
SELECT
    c.column_name AS name,
    c.data_type AS type,
    CASE c.is_nullable WHEN 'YES' THEN true ELSE false END AS nullable,
    COALESCE(c.column_default, '') AS default_val,
    CASE WHEN pk.column_name IS NOT NULL THEN true ELSE false END AS is_primary_key
FROM information_schema.columns c
LEFT JOIN (
    SELECT kcu.column_name
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
        ON tc.constraint_name = kcu.constraint_name
        AND tc.table_schema = kcu.table_schema
    WHERE tc.constraint_type = 'PRIMARY KEY'
        AND tc.table_schema = $1
        AND tc.table_name = $2
) pk ON pk.column_name = c.column_name
WHERE c.table_schema = $1
    AND c.table_name = $2
ORDER BY c.ordinal_position;
`

const describeConstraintsSQL = `
SELECT
    con.conname AS name,
    CASE con.contype
        WHEN 'p' THEN 'PRIMARY KEY'
        WHEN 'f' THEN 'FOREIGN KEY'
        WHEN 'u' THEN 'UNIQUE'
        WHEN 'c' THEN 'CHECK'
        WHEN 'x' THEN 'EXCLUSION'
    END AS type,
    pg_catalog.pg_get_constraintdef(con.oid, true) AS definition
FROM pg_catalog.pg_constraint con
JOIN pg_catalog.pg_class c ON c.oid = con.conrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1
  AND c.relname = $2
ORDER BY con.conname;
`

const describeIndexesSQL = `
SELECT
    pi.indexname AS name,
    pi.indexdef AS definition,
    i.indisunique AS is_unique,
    i.indisprimary AS is_primary
FROM pg_catalog.pg_indexes pi
JOIN pg_catalog.pg_class c ON c.relname = pi.indexname AND c.relnamespace = (
    SELECT oid FROM pg_catalog.pg_namespace WHERE nspname = pi.schemaname
)
JOIN pg_catalog.pg_index i ON i.indexrelid = c.oid
WHERE pi.schemaname = $1
  AND pi.tablename = $2
ORDER BY pi.indexname;
`

const listExtensionsSQL = `
SELECT name,
       default_version,
       COALESCE(installed_version, '') AS installed_version,
       COALESCE(comment, '') AS comment
FROM pg_catalog.pg_available_extensions
ORDER BY name;
`

func (e *Executor) execListDatabases(ctx context.Context, store Store) (any, error) {
	out, err := store.Select(ctx, listDatabasesSQL)
	if err != nil {
		return nil, err
	}
	databases := make([]DatabaseEntry, 0, len(out.Rows))
	for _, row := range out.Rows {
		databases = append(databases, DatabaseEntry{
			Name:     rowString(row, "name"),
			Owner:    rowString(row, "owner"),
			Encoding: rowString(row, "encoding"),
		})
	}
	return &DatabasesOutput{Databases: databases}, nil
}

func (e *Executor) execListTables(ctx context.Context, store Store, a listTablesArgs) (any, error) {
	out, err := store.Select(ctx, listTablesSQL, a.Schema)
	if err != nil {
		return nil, err
	}
	tables := make([]TableEntry, 0, len(out.Rows))
	for _, row := range out.Rows {
		tables = append(tables, TableEntry{
			TableName: rowString(row, "table_name"),
			Schema:    rowString(row, "table_schema"),
			Type:      rowString(row, "table_type"),
		})
	}
	return &TablesOutput{Tables: tables}, nil
}

func (e *Executor) execDescribeTable(ctx context.Context, store Store, a describeTableArgs) (any, error) {
	colsOut, err := store.Select(ctx, describeColumnsSQL, a.Schema, a.Table)
	if err != nil {
		return nil, err
	}
	if len(colsOut.Rows) == 0 {
		return nil, StoreErr(fmt.Errorf("relation %q.%q does not exist or has no columns", a.Schema, a.Table))
	}
	columns := make([]ColumnInfo, 0, len(colsOut.Rows))
	for _, row := range colsOut.Rows {
		columns = append(columns, ColumnInfo{
			Name:         rowString(row, "name"),
			Type:         rowString(row, "type"),
			Nullable:     rowBool(row, "nullable"),
			Default:      rowString(row, "default_val"),
			IsPrimaryKey: rowBool(row, "is_primary_key"),
		})
	}

	consOut, err := store.Select(ctx, describeConstraintsSQL, a.Schema, a.Table)
	if err != nil {
		return nil, err
	}
	constraints := make([]ConstraintInfo, 0, len(consOut.Rows))
	for _, row := range consOut.Rows {
		constraints = append(constraints, ConstraintInfo{
			Name:       rowString(row, "name"),
			Type:       rowString(row, "type"),
			Definition: rowString(row, "definition"),
		})
	}

	idxOut, err := store.Select(ctx, describeIndexesSQL, a.Schema, a.Table)
	if err != nil {
		return nil, err
	}
	indexes := make([]IndexInfo, 0, len(idxOut.Rows))
	for _, row := range idxOut.Rows {
		indexes = append(indexes, IndexInfo{
			Name:       rowString(row, "name"),
			Definition: rowString(row, "definition"),
			IsUnique:   rowBool(row, "is_unique"),
			IsPrimary:  rowBool(row, "is_primary"),
		})
	}

	return &DescribeTableOutput{
		Schema:      a.Schema,
		Name:        a.Table,
		Columns:     columns,
		Constraints: constraints,
		Indexes:     indexes,
	}, nil
}

func (e *Executor) execListExtensions(ctx context.Context, store Store) (any, error) {
	out, err := store.Select(ctx, listExtensionsSQL)
	if err != nil {
		return nil, err
	}
	extensions := make([]ExtensionEntry, 0, len(out.Rows))
	for _, row := range out.Rows {
		extensions = append(extensions, ExtensionEntry{
			Name:             rowString(row, "name"),
			DefaultVersion:   rowString(row, "default_version"),
			InstalledVersion: rowString(row, "installed_version"),
			Comment:          rowString(row, "comment"),
		})
	}
	return &ExtensionsOutput{Extensions: extensions}, nil
}

func (e *Executor) execServerVersion(ctx context.Context, store Store) (any, error) {
	out, err := store.Select(ctx, "SELECT version() AS version;")
	if err != nil {
		return nil, err
	}
	if len(out.Rows) == 0 {
		return nil, StoreErr(fmt.Errorf("version() returned no rows"))
	}
	return &VersionOutput{Version: rowString(out.Rows[0], "version")}, nil
}

func rowString(row map[string]interface{}, key string) string {
	s, _ := row[key].(string)
	return s
}

func rowBool(row map[string]interface{}, key string) bool {
	b, _ := row[key].(bool)
	return b
}
