package pggw

import (
	"context"
	"encoding/json"
	"unicode/utf8"

	"github.com/rickchristie/pg-gateway/internal/guard"
)

// execQuery runs the generic query tool. The statement executes inside a
// transaction: read-only statements are rolled back after collecting rows,
// writes are committed. Results pass through sanitization and truncation.
func (e *Executor) execQuery(ctx context.Context, store Store, a queryArgs) (any, error) {
	d, rule := e.timeouts.GetTimeoutWithPattern(a.SQL)
	queryCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	commit := !guard.IsReadOnly(a.SQL)
	out, err := store.QueryTx(queryCtx, a.SQL, commit)
	if err != nil {
		return nil, err
	}

	out.Rows = e.sanitizer.Rows(out.Rows)
	e.truncateIfNeeded(out)

	logEvent := e.logger.Debug().
		Str("sql", truncateForLog(a.SQL, 200)).
		Int("row_count", len(out.Rows)).
		Int64("rows_affected", out.RowsAffected)
	if rule != "" {
		logEvent = logEvent.Str("timeout_rule", rule)
	}
	if e.sanitizer.Active() {
		logEvent = logEvent.Bool("sanitized", true)
	}
	logEvent.Msg("query executed")

	return out, nil
}

// truncateIfNeeded drops rows whose JSON encoding exceeds MaxResultLength
// (in characters) and marks the output truncated.
func (e *Executor) truncateIfNeeded(out *QueryOutput) {
	jsonBytes, _ := json.Marshal(out.Rows)
	if utf8.RuneCount(jsonBytes) <= e.cfg.Query.MaxResultLength {
		return
	}
	out.Rows = nil
	out.Truncated = true
}

// truncateForLog shortens a string for log output without splitting runes.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
