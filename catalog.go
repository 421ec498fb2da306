package pggw

// ToolKind is the closed set of operations the gateway exposes. The Executor
// dispatches over it with one exhaustive switch; there is no string-keyed
// handler lookup.
type ToolKind int

const (
	ToolQuery ToolKind = iota
	ToolListDatabases
	ToolListTables
	ToolDescribeTable
	ToolCreateTable
	ToolDropTable
	ToolListExtensions
	ToolEnableExtension
	ToolCreateFunction
	ToolDropFunction
	ToolCreateIndex
	ToolDropIndex
	ToolInsert
	ToolUpdate
	ToolDelete
	ToolServerVersion
)

// ArgSpec describes one argument of a tool: its JSON type, whether it is
// required, and the default used when it is omitted. The schema is published
// through tools/list; presence and shape are enforced by the Executor.
type ArgSpec struct {
	Name        string
	Type        string // "string", "boolean", "object", "array"
	Required    bool
	Default     string
	Description string
}

// ToolDefinition is one immutable catalog entry. Write marks tools that can
// mutate data or schema; they are gated on Config.WritesEnabled.
type ToolDefinition struct {
	Kind        ToolKind
	Name        string
	Description string
	Args        []ArgSpec
	Write       bool
}

// Catalog is the static, ordered registry of the sixteen tools. Defined once
// at process start, queried but never mutated at runtime.
type Catalog struct {
	tools  []ToolDefinition
	byName map[string]int
}

// NewCatalog builds the canonical tool catalog.
func NewCatalog() *Catalog {
	tools := []ToolDefinition{
		{
			Kind:        ToolQuery,
			Name:        "query",
			Description: "Execute a SQL statement against the target database. Values should be passed as bound parameters where possible. Mutating statements are rejected when writes are disabled.",
			Args: []ArgSpec{
				{Name: "sql", Type: "string", Required: true, Description: "The SQL statement to execute"},
			},
		},
		{
			Kind:        ToolListDatabases,
			Name:        "list_databases",
			Description: "List all non-template databases on the server.",
		},
		{
			Kind:        ToolListTables,
			Name:        "list_tables",
			Description: "List tables in a schema, ordered by name.",
			Args: []ArgSpec{
				{Name: "schema", Type: "string", Default: "public", Description: "Schema to list tables from"},
			},
		},
		{
			Kind:        ToolDescribeTable,
			Name:        "describe_table",
			Description: "Describe a table: columns, constraints, and indexes.",
			Args: []ArgSpec{
				{Name: "table", Type: "string", Required: true, Description: "Table name"},
				{Name: "schema", Type: "string", Default: "public", Description: "Schema name"},
			},
		},
		{
			Kind:        ToolCreateTable,
			Name:        "create_table",
			Description: "Create a table from a JSON column specification.",
			Args: []ArgSpec{
				{Name: "table", Type: "string", Required: true, Description: "Table name"},
				{Name: "columns", Type: "string", Required: true, Description: `JSON array of {"name","type","constraints"} column specs`},
				{Name: "schema", Type: "string", Default: "public", Description: "Schema name"},
			},
			Write: true,
		},
		{
			Kind:        ToolDropTable,
			Name:        "drop_table",
			Description: "Drop a table. Uses IF EXISTS by default, so dropping an absent table succeeds.",
			Args: []ArgSpec{
				{Name: "table", Type: "string", Required: true, Description: "Table name"},
				{Name: "schema", Type: "string", Default: "public", Description: "Schema name"},
				{Name: "if_exists", Type: "boolean", Default: "true", Description: "Use IF EXISTS semantics"},
			},
			Write: true,
		},
		{
			Kind:        ToolListExtensions,
			Name:        "list_extensions",
			Description: "List available extensions and their installed versions.",
		},
		{
			Kind:        ToolEnableExtension,
			Name:        "enable_extension",
			Description: "Enable an extension with CREATE EXTENSION IF NOT EXISTS.",
			Args: []ArgSpec{
				{Name: "name", Type: "string", Required: true, Description: "Extension name"},
			},
			Write: true,
		},
		{
			Kind:        ToolCreateFunction,
			Name:        "create_function",
			Description: "Create or replace a SQL function.",
			Args: []ArgSpec{
				{Name: "name", Type: "string", Required: true, Description: "Function name"},
				{Name: "body", Type: "string", Required: true, Description: "Function body"},
				{Name: "params", Type: "string", Description: "Parameter list, e.g. \"a integer, b text\""},
				{Name: "returns", Type: "string", Default: "void", Description: "Return type"},
				{Name: "language", Type: "string", Default: "plpgsql", Description: "Function language"},
				{Name: "schema", Type: "string", Default: "public", Description: "Schema name"},
			},
			Write: true,
		},
		{
			Kind:        ToolDropFunction,
			Name:        "drop_function",
			Description: "Drop a function. Uses IF EXISTS by default.",
			Args: []ArgSpec{
				{Name: "name", Type: "string", Required: true, Description: "Function name"},
				{Name: "params", Type: "string", Description: "Parameter list to disambiguate overloads"},
				{Name: "schema", Type: "string", Default: "public", Description: "Schema name"},
				{Name: "if_exists", Type: "boolean", Default: "true", Description: "Use IF EXISTS semantics"},
			},
			Write: true,
		},
		{
			Kind:        ToolCreateIndex,
			Name:        "create_index",
			Description: "Create an index on a table.",
			Args: []ArgSpec{
				{Name: "table", Type: "string", Required: true, Description: "Table name"},
				{Name: "columns", Type: "string", Required: true, Description: "JSON array of column names, or a single column name"},
				{Name: "name", Type: "string", Description: "Index name; derived from table and columns when omitted"},
				{Name: "unique", Type: "boolean", Default: "false", Description: "Create a UNIQUE index"},
				{Name: "method", Type: "string", Default: "btree", Description: "Index method (btree, hash, gin, gist, brin)"},
				{Name: "schema", Type: "string", Default: "public", Description: "Schema name"},
			},
			Write: true,
		},
		{
			Kind:        ToolDropIndex,
			Name:        "drop_index",
			Description: "Drop an index. Uses IF EXISTS by default.",
			Args: []ArgSpec{
				{Name: "name", Type: "string", Required: true, Description: "Index name"},
				{Name: "schema", Type: "string", Default: "public", Description: "Schema name"},
				{Name: "if_exists", Type: "boolean", Default: "true", Description: "Use IF EXISTS semantics"},
			},
			Write: true,
		},
		{
			Kind:        ToolInsert,
			Name:        "insert",
			Description: "Insert one row. Keys of the JSON data object become columns; values are bound parameters.",
			Args: []ArgSpec{
				{Name: "table", Type: "string", Required: true, Description: "Table name"},
				{Name: "data", Type: "string", Required: true, Description: "JSON object of column to value"},
				{Name: "schema", Type: "string", Default: "public", Description: "Schema name"},
			},
			Write: true,
		},
		{
			Kind:        ToolUpdate,
			Name:        "update",
			Description: "Update rows matching a filter. An empty filter is rejected.",
			Args: []ArgSpec{
				{Name: "table", Type: "string", Required: true, Description: "Table name"},
				{Name: "data", Type: "string", Required: true, Description: "JSON object of column to new value"},
				{Name: "filter", Type: "string", Required: true, Description: "JSON object of column to value, ANDed equality"},
				{Name: "schema", Type: "string", Default: "public", Description: "Schema name"},
			},
			Write: true,
		},
		{
			Kind:        ToolDelete,
			Name:        "delete",
			Description: "Delete rows matching a filter. An empty filter is rejected.",
			Args: []ArgSpec{
				{Name: "table", Type: "string", Required: true, Description: "Table name"},
				{Name: "filter", Type: "string", Required: true, Description: "JSON object of column to value, ANDed equality"},
				{Name: "schema", Type: "string", Default: "public", Description: "Schema name"},
			},
			Write: true,
		},
		{
			Kind:        ToolServerVersion,
			Name:        "server_version",
			Description: "Return the PostgreSQL server version.",
		},
	}

	byName := make(map[string]int, len(tools))
	for i, tool := range tools {
		byName[tool.Name] = i
	}
	return &Catalog{tools: tools, byName: byName}
}

// Tools returns all tool definitions in stable, published order.
func (c *Catalog) Tools() []ToolDefinition {
	out := make([]ToolDefinition, len(c.tools))
	copy(out, c.tools)
	return out
}

// Lookup returns the definition for name.
func (c *Catalog) Lookup(name string) (ToolDefinition, bool) {
	i, ok := c.byName[name]
	if !ok {
		return ToolDefinition{}, false
	}
	return c.tools[i], true
}

// Size returns the number of tools in the catalog.
func (c *Catalog) Size() int {
	return len(c.tools)
}

// ToolSchema is the published listing shape for one tool.
type ToolSchema struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema is a JSON-schema-shaped description of a tool's arguments.
type InputSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]PropertyDef `json:"properties"`
	Required   []string               `json:"required,omitempty"`
}

// PropertyDef describes one argument in the published schema.
type PropertyDef struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Default     string `json:"default,omitempty"`
}

// Schemas renders the catalog as the tools/list payload, in catalog order.
func (c *Catalog) Schemas() []ToolSchema {
	out := make([]ToolSchema, len(c.tools))
	for i, tool := range c.tools {
		props := make(map[string]PropertyDef, len(tool.Args))
		var required []string
		for _, arg := range tool.Args {
			props[arg.Name] = PropertyDef{Type: arg.Type, Description: arg.Description, Default: arg.Default}
			if arg.Required {
				required = append(required, arg.Name)
			}
		}
		out[i] = ToolSchema{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: InputSchema{Type: "object", Properties: props, Required: required},
		}
	}
	return out
}
