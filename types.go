package pggw

// QueryOutput is the normalized result of the generic query tool.
type QueryOutput struct {
	Columns      []string                 `json:"columns"`
	Rows         []map[string]interface{} `json:"rows"`
	RowsAffected int64                    `json:"rows_affected"`
	Truncated    bool                     `json:"truncated,omitempty"`
}

// ExecOutput is the normalized result of DDL and DML tools that do not
// return rows.
type ExecOutput struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	RowsAffected int64  `json:"rows_affected,omitempty"`
}

// DatabaseEntry is one database in the list_databases output.
type DatabaseEntry struct {
	Name     string `json:"name"`
	Owner    string `json:"owner"`
	Encoding string `json:"encoding"`
}

// DatabasesOutput is the output of the list_databases tool.
type DatabasesOutput struct {
	Databases []DatabaseEntry `json:"databases"`
}

// TableEntry is one table in the list_tables output.
type TableEntry struct {
	TableName string `json:"table_name"`
	Schema    string `json:"schema"`
	Type      string `json:"type"` // "BASE TABLE", "VIEW", "FOREIGN", "LOCAL TEMPORARY"
}

// TablesOutput is the output of the list_tables tool, ordered by table name.
type TablesOutput struct {
	Tables []TableEntry `json:"tables"`
}

// ColumnInfo describes a single column.
type ColumnInfo struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Nullable     bool   `json:"nullable"`
	Default      string `json:"default,omitempty"`
	IsPrimaryKey bool   `json:"is_primary_key"`
}

// ConstraintInfo describes a single constraint.
type ConstraintInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"` // PRIMARY KEY, FOREIGN KEY, UNIQUE, CHECK, EXCLUSION
	Definition string `json:"definition"`
}

// IndexInfo describes a single index.
type IndexInfo struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
	IsUnique   bool   `json:"is_unique"`
	IsPrimary  bool   `json:"is_primary"`
}

// DescribeTableOutput is the output of the describe_table tool.
type DescribeTableOutput struct {
	Schema      string           `json:"schema"`
	Name        string           `json:"name"`
	Columns     []ColumnInfo     `json:"columns"`
	Constraints []ConstraintInfo `json:"constraints"`
	Indexes     []IndexInfo      `json:"indexes"`
}

// ExtensionEntry is one extension in the list_extensions output.
type ExtensionEntry struct {
	Name             string `json:"name"`
	DefaultVersion   string `json:"default_version"`
	InstalledVersion string `json:"installed_version,omitempty"`
	Comment          string `json:"comment,omitempty"`
}

// ExtensionsOutput is the output of the list_extensions tool.
type ExtensionsOutput struct {
	Extensions []ExtensionEntry `json:"extensions"`
}

// VersionOutput is the output of the server_version tool.
type VersionOutput struct {
	Version string `json:"version"`
}
