package pggw

import (
	"context"
	"fmt"
	"strings"
)

// DML tools. Column names are validated identifiers in sorted order; every
// value travels as a bound parameter.

func (e *Executor) execInsert(ctx context.Context, store Store, a insertArgs) (any, error) {
	placeholders := make([]string, len(a.Columns))
	for i := range a.Columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sql := fmt.Sprintf("INSERT INTO %s.%s (%s) VALUES (%s)",
		a.Schema, a.Table, strings.Join(a.Columns, ", "), strings.Join(placeholders, ", "))
	affected, err := store.Exec(ctx, sql, a.Values...)
	if err != nil {
		return nil, err
	}
	return &ExecOutput{
		Success:      true,
		Message:      fmt.Sprintf("inserted into %s.%s", a.Schema, a.Table),
		RowsAffected: affected,
	}, nil
}

func (e *Executor) execUpdate(ctx context.Context, store Store, a updateArgs) (any, error) {
	assignments := make([]string, len(a.SetColumns))
	for i, col := range a.SetColumns {
		assignments[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	where := filterClause(a.FilterColumns, len(a.SetColumns))
	sql := fmt.Sprintf("UPDATE %s.%s SET %s WHERE %s",
		a.Schema, a.Table, strings.Join(assignments, ", "), where)

	args := append(append([]any{}, a.SetValues...), a.FilterValues...)
	affected, err := store.Exec(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &ExecOutput{
		Success:      true,
		Message:      fmt.Sprintf("updated %s.%s", a.Schema, a.Table),
		RowsAffected: affected,
	}, nil
}

func (e *Executor) execDelete(ctx context.Context, store Store, a deleteArgs) (any, error) {
	where := filterClause(a.FilterColumns, 0)
	sql := fmt.Sprintf("DELETE FROM %s.%s WHERE %s", a.Schema, a.Table, where)
	affected, err := store.Exec(ctx, sql, a.FilterValues...)
	if err != nil {
		return nil, err
	}
	return &ExecOutput{
		Success:      true,
		Message:      fmt.Sprintf("deleted from %s.%s", a.Schema, a.Table),
		RowsAffected: affected,
	}, nil
}

// filterClause renders an ANDed equality WHERE body for the given columns,
// numbering placeholders after offset prior parameters.
func filterClause(columns []string, offset int) string {
	conditions := make([]string, len(columns))
	for i, col := range columns {
		conditions[i] = fmt.Sprintf("%s = $%d", col, offset+i+1)
	}
	return strings.Join(conditions, " AND ")
}
