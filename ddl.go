package pggw

import (
	"context"
	"fmt"
	"strings"
)

// DDL tools. Structural names are interpolated only after identifier
// validation in parseInvocation; free-text fragments (column types,
// parameter lists) have passed safeFragment.

// functionBodyTag is the dollar-quoting tag wrapping function bodies.
// Bodies containing the tag are rejected at parse time.
const functionBodyTag = "$pggw_fn$"

func (e *Executor) execCreateTable(ctx context.Context, store Store, a createTableArgs) (any, error) {
	defs := make([]string, len(a.Columns))
	for i, col := range a.Columns {
		def := col.Name + " " + col.Type
		if col.Constraints != "" {
			def += " " + col.Constraints
		}
		defs[i] = def
	}
	sql := fmt.Sprintf("CREATE TABLE %s.%s (%s)", a.Schema, a.Table, strings.Join(defs, ", "))
	if _, err := store.Exec(ctx, sql); err != nil {
		return nil, err
	}
	return &ExecOutput{Success: true, Message: fmt.Sprintf("table %s.%s created", a.Schema, a.Table)}, nil
}

func (e *Executor) execDropTable(ctx context.Context, store Store, a dropTableArgs) (any, error) {
	sql := fmt.Sprintf("DROP TABLE %s%s.%s", ifExistsClause(a.IfExists), a.Schema, a.Table)
	if _, err := store.Exec(ctx, sql); err != nil {
		return nil, err
	}
	return &ExecOutput{Success: true, Message: fmt.Sprintf("table %s.%s dropped", a.Schema, a.Table)}, nil
}

func (e *Executor) execEnableExtension(ctx context.Context, store Store, a enableExtensionArgs) (any, error) {
	sql := fmt.Sprintf("CREATE EXTENSION IF NOT EXISTS %s", a.Name)
	if _, err := store.Exec(ctx, sql); err != nil {
		return nil, err
	}
	return &ExecOutput{Success: true, Message: fmt.Sprintf("extension %s enabled", a.Name)}, nil
}

func (e *Executor) execCreateFunction(ctx context.Context, store Store, a createFunctionArgs) (any, error) {
	sql := fmt.Sprintf("CREATE OR REPLACE FUNCTION %s.%s(%s) RETURNS %s LANGUAGE %s AS %s%s%s",
		a.Schema, a.Name, a.Params, a.Returns, a.Language,
		functionBodyTag, a.Body, functionBodyTag)
	if _, err := store.Exec(ctx, sql); err != nil {
		return nil, err
	}
	return &ExecOutput{Success: true, Message: fmt.Sprintf("function %s.%s created", a.Schema, a.Name)}, nil
}

func (e *Executor) execDropFunction(ctx context.Context, store Store, a dropFunctionArgs) (any, error) {
	signature := fmt.Sprintf("%s.%s", a.Schema, a.Name)
	if a.Params != "" {
		signature += "(" + a.Params + ")"
	}
	sql := fmt.Sprintf("DROP FUNCTION %s%s", ifExistsClause(a.IfExists), signature)
	if _, err := store.Exec(ctx, sql); err != nil {
		return nil, err
	}
	return &ExecOutput{Success: true, Message: fmt.Sprintf("function %s.%s dropped", a.Schema, a.Name)}, nil
}

func (e *Executor) execCreateIndex(ctx context.Context, store Store, a createIndexArgs) (any, error) {
	unique := ""
	if a.Unique {
		unique = "UNIQUE "
	}
	sql := fmt.Sprintf("CREATE %sINDEX %s ON %s.%s USING %s (%s)",
		unique, a.Name, a.Schema, a.Table, a.Method, strings.Join(a.Columns, ", "))
	if _, err := store.Exec(ctx, sql); err != nil {
		return nil, err
	}
	return &ExecOutput{Success: true, Message: fmt.Sprintf("index %s created on %s.%s", a.Name, a.Schema, a.Table)}, nil
}

func (e *Executor) execDropIndex(ctx context.Context, store Store, a dropIndexArgs) (any, error) {
	sql := fmt.Sprintf("DROP INDEX %s%s.%s", ifExistsClause(a.IfExists), a.Schema, a.Name)
	if _, err := store.Exec(ctx, sql); err != nil {
		return nil, err
	}
	return &ExecOutput{Success: true, Message: fmt.Sprintf("index %s.%s dropped", a.Schema, a.Name)}, nil
}

func ifExistsClause(ifExists bool) string {
	if ifExists {
		return "IF EXISTS "
	}
	return ""
}
