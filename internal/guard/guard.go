// Package guard classifies SQL statements for the write gate and for
// transaction handling of the generic query tool.
package guard

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// mutatingVerbs are the leading keywords that mark a statement as mutating
// for the write gate. This is a heuristic, not a SQL classifier: statements
// that hide a write behind a non-mutating leading keyword (e.g. a CTE) are
// not caught. That limitation is documented and accepted.
var mutatingVerbs = []string{
	"insert",
	"update",
	"delete",
	"drop",
	"truncate",
	"alter",
	"create",
	"grant",
	"revoke",
}

// HasMutatingPrefix reports whether sql begins with a known mutating verb,
// case-insensitively, ignoring leading whitespace.
func HasMutatingPrefix(sql string) bool {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return false
	}
	end := strings.IndexFunc(trimmed, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '(' || r == ';'
	})
	if end == -1 {
		end = len(trimmed)
	}
	leading := strings.ToLower(trimmed[:end])
	for _, verb := range mutatingVerbs {
		if leading == verb {
			return true
		}
	}
	return false
}

// IsReadOnly reports whether sql is a read-only statement, using the actual
// PostgreSQL parser. Unparsable SQL is treated as not read-only so that the
// surrounding transaction commits only when the server accepted the
// statement anyway.
func IsReadOnly(sql string) bool {
	result, err := pg_query.Parse(sql)
	if err != nil || len(result.Stmts) == 0 {
		return false
	}
	for _, stmt := range result.Stmts {
		switch stmt.Stmt.Node.(type) {
		case *pg_query.Node_SelectStmt:
		case *pg_query.Node_ExplainStmt:
		case *pg_query.Node_VariableShowStmt:
		default:
			return false
		}
	}
	return true
}
