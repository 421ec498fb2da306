package pggw

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rickchristie/pg-gateway/internal/errprompt"
	"github.com/rickchristie/pg-gateway/internal/guard"
	"github.com/rickchristie/pg-gateway/internal/ident"
	"github.com/rickchristie/pg-gateway/internal/sanitize"
	"github.com/rickchristie/pg-gateway/internal/timeout"
)

// Executor validates and runs tool invocations against call-scoped target
// stores. All exported methods are safe for concurrent use from multiple
// goroutines.
type Executor struct {
	cfg        Config
	catalog    *Catalog
	opener     StoreOpener
	semaphore  chan struct{}
	sanitizer  *sanitize.Sanitizer
	errPrompts *errprompt.Matcher
	timeouts   *timeout.Manager
	logger     zerolog.Logger
}

// NewExecutor creates an Executor. Panics on invalid config (programmer
// error); returns an error only for bad rule patterns.
func NewExecutor(cfg Config, catalog *Catalog, opener StoreOpener, logger zerolog.Logger) (*Executor, error) {
	if cfg.Pool.MaxConns <= 0 {
		panic("pggw: pool.max_conns must be > 0")
	}
	if cfg.Query.DefaultTimeoutSeconds <= 0 {
		panic("pggw: query.default_timeout_seconds must be > 0")
	}
	if cfg.Query.MaxSQLLength == 0 {
		cfg.Query.MaxSQLLength = 100000
	}
	if cfg.Query.MaxResultLength == 0 {
		cfg.Query.MaxResultLength = 100000
	}
	if cfg.Query.MaxSQLLength < 0 {
		panic("pggw: query.max_sql_length must be > 0")
	}
	if cfg.Query.MaxResultLength < 0 {
		panic("pggw: query.max_result_length must be > 0")
	}

	sanitizeRules := make([]sanitize.Rule, len(cfg.Sanitization))
	for i, r := range cfg.Sanitization {
		sanitizeRules[i] = sanitize.Rule{Pattern: r.Pattern, Replacement: r.Replacement}
	}
	sanitizer, err := sanitize.New(sanitizeRules)
	if err != nil {
		return nil, err
	}

	promptRules := make([]errprompt.Rule, len(cfg.ErrorPrompts))
	for i, r := range cfg.ErrorPrompts {
		promptRules[i] = errprompt.Rule{Pattern: r.Pattern, Message: r.Message}
	}
	prompts, err := errprompt.New(promptRules)
	if err != nil {
		return nil, err
	}

	timeoutRules := make([]timeout.Rule, len(cfg.Query.TimeoutRules))
	for i, r := range cfg.Query.TimeoutRules {
		if r.TimeoutSeconds <= 0 {
			panic(fmt.Sprintf("pggw: timeout_rule with pattern %q has timeout_seconds <= 0", r.Pattern))
		}
		timeoutRules[i] = timeout.Rule{
			Pattern: r.Pattern,
			Timeout: time.Duration(r.TimeoutSeconds) * time.Second,
		}
	}
	timeouts, err := timeout.NewManager(timeout.Config{
		DefaultTimeout: time.Duration(cfg.Query.DefaultTimeoutSeconds) * time.Second,
		Rules:          timeoutRules,
	})
	if err != nil {
		return nil, err
	}

	return &Executor{
		cfg:        cfg,
		catalog:    catalog,
		opener:     opener,
		semaphore:  make(chan struct{}, cfg.Pool.MaxConns),
		sanitizer:  sanitizer,
		errPrompts: prompts,
		timeouts:   timeouts,
		logger:     logger,
	}, nil
}

// Execute runs one tool invocation against the target store and returns the
// normalized result or a typed *Error. Every precondition — tool resolution,
// argument shape, identifier safety, filter presence, the write gate — is
// checked before any store is opened; the store is released on every exit
// path once acquired.
func (e *Executor) Execute(ctx context.Context, target, name string, args map[string]any) (any, error) {
	start := time.Now()

	def, ok := e.catalog.Lookup(name)
	if !ok {
		return nil, Errf(KindUnknownTool, "unknown tool: %s", name)
	}

	inv, err := e.parseInvocation(def, args)
	if err != nil {
		return nil, err
	}

	if def.Write && !e.cfg.WritesEnabled {
		return nil, Errf(KindWritesDisabled, "writes are disabled: tool %s mutates the store", name)
	}
	if q, isQuery := inv.(queryArgs); isQuery && !e.cfg.WritesEnabled && guard.HasMutatingPrefix(q.SQL) {
		return nil, Errf(KindWritesDisabled, "writes are disabled: statement begins with a mutating keyword")
	}

	// One slot per in-flight store call; respects cancellation while waiting.
	select {
	case e.semaphore <- struct{}{}:
	case <-ctx.Done():
		// No store was touched yet, so this carries no store_error kind.
		return nil, fmt.Errorf("failed to acquire call slot: all %d slots in use, context cancelled while waiting: %w", cap(e.semaphore), ctx.Err())
	}
	defer func() { <-e.semaphore }()

	store, err := e.opener.Open(ctx, target)
	if err != nil {
		return nil, e.withGuidance(err)
	}
	defer store.Close()

	result, err := e.run(ctx, store, inv)
	if err != nil {
		err = e.withGuidance(err)
		e.logger.Error().Err(err).Str("tool", name).Dur("duration", time.Since(start)).Msg("tool call failed")
		return nil, err
	}

	e.logger.Info().Str("tool", name).Dur("duration", time.Since(start)).Msg("tool call")
	return result, nil
}

// run dispatches over the closed set of tool kinds. Adding a tool means
// adding a case here; the compiler has no default path to hide behind.
func (e *Executor) run(ctx context.Context, store Store, inv invocation) (any, error) {
	// The generic query tool carries its own pattern-based timeout; all other
	// tools get the default.
	if _, isQuery := inv.(queryArgs); !isQuery {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.Query.DefaultTimeoutSeconds)*time.Second)
		defer cancel()
	}

	switch a := inv.(type) {
	case queryArgs:
		return e.execQuery(ctx, store, a)
	case listDatabasesArgs:
		return e.execListDatabases(ctx, store)
	case listTablesArgs:
		return e.execListTables(ctx, store, a)
	case describeTableArgs:
		return e.execDescribeTable(ctx, store, a)
	case createTableArgs:
		return e.execCreateTable(ctx, store, a)
	case dropTableArgs:
		return e.execDropTable(ctx, store, a)
	case listExtensionsArgs:
		return e.execListExtensions(ctx, store)
	case enableExtensionArgs:
		return e.execEnableExtension(ctx, store, a)
	case createFunctionArgs:
		return e.execCreateFunction(ctx, store, a)
	case dropFunctionArgs:
		return e.execDropFunction(ctx, store, a)
	case createIndexArgs:
		return e.execCreateIndex(ctx, store, a)
	case dropIndexArgs:
		return e.execDropIndex(ctx, store, a)
	case insertArgs:
		return e.execInsert(ctx, store, a)
	case updateArgs:
		return e.execUpdate(ctx, store, a)
	case deleteArgs:
		return e.execDelete(ctx, store, a)
	case serverVersionArgs:
		return e.execServerVersion(ctx, store)
	default:
		return nil, Errf(KindUnknownTool, "unhandled tool kind %T", inv)
	}
}

// withGuidance appends configured error-prompt guidance to store errors.
// The underlying store message itself stays verbatim.
func (e *Executor) withGuidance(err error) error {
	storeErr, ok := err.(*Error)
	if !ok || storeErr.Kind != KindStoreError || storeErr.Err == nil {
		return err
	}
	prompt, patterns := e.errPrompts.Guidance(storeErr.Err.Error())
	if prompt == "" {
		return err
	}
	e.logger.Debug().Strs("error_prompts", patterns).Msg("error guidance matched")
	return &Error{
		Kind:    KindStoreError,
		Message: storeErr.Err.Error() + "\n\n" + prompt,
		Err:     storeErr.Err,
	}
}

// --- Typed argument records (one per tool kind) ---

type invocation interface{ isInvocation() }

type queryArgs struct{ SQL string }
type listDatabasesArgs struct{}
type listTablesArgs struct{ Schema string }
type describeTableArgs struct{ Schema, Table string }

type columnSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Constraints string `json:"constraints,omitempty"`
}

type createTableArgs struct {
	Schema, Table string
	Columns       []columnSpec
}

type dropTableArgs struct {
	Schema, Table string
	IfExists      bool
}

type listExtensionsArgs struct{}
type enableExtensionArgs struct{ Name string }

type createFunctionArgs struct {
	Schema, Name, Params, Returns, Language, Body string
}

type dropFunctionArgs struct {
	Schema, Name, Params string
	IfExists             bool
}

type createIndexArgs struct {
	Schema, Table, Name, Method string
	Columns                     []string
	Unique                      bool
}

type dropIndexArgs struct {
	Schema, Name string
	IfExists     bool
}

type insertArgs struct {
	Schema, Table string
	Columns       []string
	Values        []any
}

type updateArgs struct {
	Schema, Table string
	SetColumns    []string
	SetValues     []any
	FilterColumns []string
	FilterValues  []any
}

type deleteArgs struct {
	Schema, Table string
	FilterColumns []string
	FilterValues  []any
}

type serverVersionArgs struct{}

func (queryArgs) isInvocation()           {}
func (listDatabasesArgs) isInvocation()   {}
func (listTablesArgs) isInvocation()      {}
func (describeTableArgs) isInvocation()   {}
func (createTableArgs) isInvocation()     {}
func (dropTableArgs) isInvocation()       {}
func (listExtensionsArgs) isInvocation()  {}
func (enableExtensionArgs) isInvocation() {}
func (createFunctionArgs) isInvocation()  {}
func (dropFunctionArgs) isInvocation()    {}
func (createIndexArgs) isInvocation()     {}
func (dropIndexArgs) isInvocation()       {}
func (insertArgs) isInvocation()          {}
func (updateArgs) isInvocation()          {}
func (deleteArgs) isInvocation()          {}
func (serverVersionArgs) isInvocation()   {}

// parseInvocation turns raw arguments into a typed record, performing every
// store-free validation: shape checks, identifier safety, filter presence.
func (e *Executor) parseInvocation(def ToolDefinition, args map[string]any) (invocation, error) {
	switch def.Kind {
	case ToolQuery:
		sql, err := requireStringArg(args, "sql")
		if err != nil {
			return nil, err
		}
		if len(sql) > e.cfg.Query.MaxSQLLength {
			return nil, Errf(KindMalformedArguments, "SQL query too long: %d bytes exceeds maximum of %d bytes", len(sql), e.cfg.Query.MaxSQLLength)
		}
		return queryArgs{SQL: sql}, nil

	case ToolListDatabases:
		return listDatabasesArgs{}, nil

	case ToolListTables:
		schema, err := schemaArg(args)
		if err != nil {
			return nil, err
		}
		return listTablesArgs{Schema: schema}, nil

	case ToolDescribeTable:
		table, schema, err := tableAndSchemaArgs(args)
		if err != nil {
			return nil, err
		}
		return describeTableArgs{Schema: schema, Table: table}, nil

	case ToolCreateTable:
		table, schema, err := tableAndSchemaArgs(args)
		if err != nil {
			return nil, err
		}
		columns, err := parseColumnSpecs(args)
		if err != nil {
			return nil, err
		}
		return createTableArgs{Schema: schema, Table: table, Columns: columns}, nil

	case ToolDropTable:
		table, schema, err := tableAndSchemaArgs(args)
		if err != nil {
			return nil, err
		}
		ifExists, err := boolArg(args, "if_exists", true)
		if err != nil {
			return nil, err
		}
		return dropTableArgs{Schema: schema, Table: table, IfExists: ifExists}, nil

	case ToolListExtensions:
		return listExtensionsArgs{}, nil

	case ToolEnableExtension:
		name, err := requireStringArg(args, "name")
		if err != nil {
			return nil, err
		}
		if !ident.IsValid(name) {
			return nil, Errf(KindInvalidIdentifier, "invalid extension name: %q", name)
		}
		return enableExtensionArgs{Name: name}, nil

	case ToolCreateFunction:
		name, err := requireStringArg(args, "name")
		if err != nil {
			return nil, err
		}
		if !ident.IsValid(name) {
			return nil, Errf(KindInvalidIdentifier, "invalid function name: %q", name)
		}
		body, err := requireStringArg(args, "body")
		if err != nil {
			return nil, err
		}
		schema, err := schemaArg(args)
		if err != nil {
			return nil, err
		}
		params, err := stringArg(args, "params", "")
		if err != nil {
			return nil, err
		}
		returns, err := stringArg(args, "returns", "void")
		if err != nil {
			return nil, err
		}
		language, err := stringArg(args, "language", "plpgsql")
		if err != nil {
			return nil, err
		}
		if !ident.IsValid(language) {
			return nil, Errf(KindInvalidIdentifier, "invalid function language: %q", language)
		}
		if err := safeFragment(params, "params"); err != nil {
			return nil, err
		}
		if err := safeFragment(returns, "returns"); err != nil {
			return nil, err
		}
		if strings.Contains(body, functionBodyTag) {
			return nil, Errf(KindMalformedArguments, "function body must not contain the %s quoting tag", functionBodyTag)
		}
		return createFunctionArgs{Schema: schema, Name: name, Params: params, Returns: returns, Language: language, Body: body}, nil

	case ToolDropFunction:
		name, err := requireStringArg(args, "name")
		if err != nil {
			return nil, err
		}
		if !ident.IsValid(name) {
			return nil, Errf(KindInvalidIdentifier, "invalid function name: %q", name)
		}
		schema, err := schemaArg(args)
		if err != nil {
			return nil, err
		}
		params, err := stringArg(args, "params", "")
		if err != nil {
			return nil, err
		}
		if err := safeFragment(params, "params"); err != nil {
			return nil, err
		}
		ifExists, err := boolArg(args, "if_exists", true)
		if err != nil {
			return nil, err
		}
		return dropFunctionArgs{Schema: schema, Name: name, Params: params, IfExists: ifExists}, nil

	case ToolCreateIndex:
		table, schema, err := tableAndSchemaArgs(args)
		if err != nil {
			return nil, err
		}
		columns, err := parseColumnNames(args, "columns")
		if err != nil {
			return nil, err
		}
		if len(columns) == 0 {
			return nil, Errf(KindMalformedArguments, "columns must name at least one column")
		}
		name, err := stringArg(args, "name", "")
		if err != nil {
			return nil, err
		}
		if name == "" {
			name = "idx_" + table + "_" + strings.Join(columns, "_")
		}
		if !ident.IsValid(name) {
			return nil, Errf(KindInvalidIdentifier, "invalid index name: %q", name)
		}
		method, err := stringArg(args, "method", "btree")
		if err != nil {
			return nil, err
		}
		if !ident.IsValid(method) {
			return nil, Errf(KindInvalidIdentifier, "invalid index method: %q", method)
		}
		unique, err := boolArg(args, "unique", false)
		if err != nil {
			return nil, err
		}
		return createIndexArgs{Schema: schema, Table: table, Name: name, Method: method, Columns: columns, Unique: unique}, nil

	case ToolDropIndex:
		name, err := requireStringArg(args, "name")
		if err != nil {
			return nil, err
		}
		if !ident.IsValid(name) {
			return nil, Errf(KindInvalidIdentifier, "invalid index name: %q", name)
		}
		schema, err := schemaArg(args)
		if err != nil {
			return nil, err
		}
		ifExists, err := boolArg(args, "if_exists", true)
		if err != nil {
			return nil, err
		}
		return dropIndexArgs{Schema: schema, Name: name, IfExists: ifExists}, nil

	case ToolInsert:
		table, schema, err := tableAndSchemaArgs(args)
		if err != nil {
			return nil, err
		}
		columns, values, err := parseObjectArg(args, "data")
		if err != nil {
			return nil, err
		}
		if len(columns) == 0 {
			return nil, Errf(KindMalformedArguments, "data must set at least one column")
		}
		return insertArgs{Schema: schema, Table: table, Columns: columns, Values: values}, nil

	case ToolUpdate:
		table, schema, err := tableAndSchemaArgs(args)
		if err != nil {
			return nil, err
		}
		setColumns, setValues, err := parseObjectArg(args, "data")
		if err != nil {
			return nil, err
		}
		if len(setColumns) == 0 {
			return nil, Errf(KindMalformedArguments, "data must set at least one column")
		}
		filterColumns, filterValues, err := parseFilterArg(args)
		if err != nil {
			return nil, err
		}
		return updateArgs{Schema: schema, Table: table, SetColumns: setColumns, SetValues: setValues, FilterColumns: filterColumns, FilterValues: filterValues}, nil

	case ToolDelete:
		table, schema, err := tableAndSchemaArgs(args)
		if err != nil {
			return nil, err
		}
		filterColumns, filterValues, err := parseFilterArg(args)
		if err != nil {
			return nil, err
		}
		return deleteArgs{Schema: schema, Table: table, FilterColumns: filterColumns, FilterValues: filterValues}, nil

	case ToolServerVersion:
		return serverVersionArgs{}, nil

	default:
		return nil, Errf(KindUnknownTool, "unhandled tool kind: %d", def.Kind)
	}
}

// --- Argument helpers ---

func stringArg(args map[string]any, name, fallback string) (string, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return fallback, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", Errf(KindMalformedArguments, "argument %q must be a string, got %T", name, raw)
	}
	if s == "" {
		return fallback, nil
	}
	return s, nil
}

func requireStringArg(args map[string]any, name string) (string, error) {
	s, err := stringArg(args, name, "")
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", Errf(KindMalformedArguments, "argument %q is required", name)
	}
	return s, nil
}

func boolArg(args map[string]any, name string, fallback bool) (bool, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return fallback, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(v) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "":
			return fallback, nil
		}
	}
	return false, Errf(KindMalformedArguments, "argument %q must be a boolean", name)
}

func schemaArg(args map[string]any) (string, error) {
	schema, err := stringArg(args, "schema", "public")
	if err != nil {
		return "", err
	}
	if !ident.IsValid(schema) {
		return "", Errf(KindInvalidIdentifier, "invalid schema name: %q", schema)
	}
	return schema, nil
}

func tableAndSchemaArgs(args map[string]any) (table, schema string, err error) {
	table, err = requireStringArg(args, "table")
	if err != nil {
		return "", "", err
	}
	if !ident.IsValid(table) {
		return "", "", Errf(KindInvalidIdentifier, "invalid table name: %q", table)
	}
	schema, err = schemaArg(args)
	if err != nil {
		return "", "", err
	}
	return table, schema, nil
}

// parseObjectArg decodes a JSON-object argument (given as a JSON string or a
// native object) into validated column identifiers and their values, in
// stable sorted-key order.
func parseObjectArg(args map[string]any, name string) ([]string, []any, error) {
	obj, err := objectArg(args, name)
	if err != nil {
		return nil, nil, err
	}
	columns := make([]string, 0, len(obj))
	for k := range obj {
		if !ident.IsValid(k) {
			return nil, nil, Errf(KindInvalidIdentifier, "invalid column name in %q: %q", name, k)
		}
		columns = append(columns, k)
	}
	sort.Strings(columns)
	values := make([]any, len(columns))
	for i, col := range columns {
		values[i] = obj[col]
	}
	return columns, values, nil
}

func objectArg(args map[string]any, name string) (map[string]any, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(v), &obj); err != nil {
			return nil, Errf(KindMalformedArguments, "argument %q is not a valid JSON object: %v", name, err)
		}
		return obj, nil
	default:
		return nil, Errf(KindMalformedArguments, "argument %q must be a JSON object or JSON-encoded string, got %T", name, raw)
	}
}

// parseFilterArg decodes the filter argument for update/delete. An absent or
// empty filter is a MissingFilter failure: unfiltered mutation is never
// accepted.
func parseFilterArg(args map[string]any) ([]string, []any, error) {
	columns, values, err := parseObjectArg(args, "filter")
	if err != nil {
		return nil, nil, err
	}
	if len(columns) == 0 {
		return nil, nil, Errf(KindMissingFilter, "filter must match at least one column")
	}
	return columns, values, nil
}

// parseColumnNames accepts a JSON array string, a native array, or a single
// column name, and validates every element as an identifier.
func parseColumnNames(args map[string]any, name string) ([]string, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return nil, nil
	}
	var names []string
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, Errf(KindMalformedArguments, "argument %q must be an array of strings", name)
			}
			names = append(names, s)
		}
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil, nil
		}
		if strings.HasPrefix(trimmed, "[") {
			if err := json.Unmarshal([]byte(trimmed), &names); err != nil {
				return nil, Errf(KindMalformedArguments, "argument %q is not a valid JSON array: %v", name, err)
			}
		} else {
			names = []string{trimmed}
		}
	default:
		return nil, Errf(KindMalformedArguments, "argument %q must be an array of column names, got %T", name, raw)
	}
	for _, col := range names {
		if !ident.IsValid(col) {
			return nil, Errf(KindInvalidIdentifier, "invalid column name: %q", col)
		}
	}
	return names, nil
}

func parseColumnSpecs(args map[string]any) ([]columnSpec, error) {
	raw, err := requireStringArg(args, "columns")
	if err != nil {
		return nil, err
	}
	var specs []columnSpec
	if err := json.Unmarshal([]byte(raw), &specs); err != nil {
		return nil, Errf(KindMalformedArguments, "columns is not a valid JSON array of column specs: %v", err)
	}
	if len(specs) == 0 {
		return nil, Errf(KindMalformedArguments, "columns must define at least one column")
	}
	for _, spec := range specs {
		if !ident.IsValid(spec.Name) {
			return nil, Errf(KindInvalidIdentifier, "invalid column name: %q", spec.Name)
		}
		if spec.Type == "" {
			return nil, Errf(KindMalformedArguments, "column %q has no type", spec.Name)
		}
		if err := safeFragment(spec.Type, "column type"); err != nil {
			return nil, err
		}
		if err := safeFragment(spec.Constraints, "column constraints"); err != nil {
			return nil, err
		}
	}
	return specs, nil
}

// safeFragment rejects SQL fragments (type names, parameter lists) that
// could smuggle in statement separators or comments. Fragments are not full
// identifiers, so they only get this negative check.
func safeFragment(s, what string) error {
	if strings.Contains(s, ";") || strings.Contains(s, "--") || strings.Contains(s, "/*") {
		return Errf(KindInvalidIdentifier, "%s contains disallowed SQL sequences", what)
	}
	return nil
}
