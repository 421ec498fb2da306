package pggw

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExecuteUnknownTool(t *testing.T) {
	t.Parallel()
	exec, opener := newTestExecutor(t, testConfig())
	_, err := exec.Execute(context.Background(), testTarget, "explode", nil)
	if KindOf(err) != KindUnknownTool {
		t.Fatalf("expected unknown_tool, got %v", err)
	}
	if opener.openCount() != 0 {
		t.Errorf("expected no store to be opened, got %d opens", opener.openCount())
	}
}

func TestExecuteWritesDisabledBlocksWriteTools(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.WritesEnabled = false
	exec, opener := newTestExecutor(t, cfg)

	writeCalls := map[string]map[string]any{
		"insert":           {"table": "users", "data": map[string]any{"name": "bob"}},
		"update":           {"table": "users", "data": map[string]any{"name": "bob"}, "filter": map[string]any{"id": 1}},
		"delete":           {"table": "users", "filter": map[string]any{"id": 1}},
		"create_table":     {"table": "users", "columns": `[{"name":"id","type":"serial"}]`},
		"drop_table":       {"table": "users"},
		"enable_extension": {"name": "pgcrypto"},
		"create_function":  {"name": "f", "body": "BEGIN END"},
		"drop_function":    {"name": "f"},
		"create_index":     {"table": "users", "columns": "id"},
		"drop_index":       {"name": "idx_users_id"},
	}
	for name, args := range writeCalls {
		_, err := exec.Execute(context.Background(), testTarget, name, args)
		if KindOf(err) != KindWritesDisabled {
			t.Errorf("tool %q: expected writes_disabled, got %v", name, err)
		}
	}
	if opener.openCount() != 0 {
		t.Errorf("expected no store to be opened, got %d opens", opener.openCount())
	}
}

func TestExecuteMissingFilterWinsOverWriteGate(t *testing.T) {
	t.Parallel()
	for _, writesEnabled := range []bool{true, false} {
		cfg := testConfig()
		cfg.WritesEnabled = writesEnabled
		exec, opener := newTestExecutor(t, cfg)

		_, err := exec.Execute(context.Background(), testTarget, "delete", map[string]any{
			"table":  "users",
			"filter": map[string]any{},
		})
		if KindOf(err) != KindMissingFilter {
			t.Errorf("writes_enabled=%v: expected missing_filter, got %v", writesEnabled, err)
		}
		_, err = exec.Execute(context.Background(), testTarget, "update", map[string]any{
			"table": "users",
			"data":  map[string]any{"name": "bob"},
		})
		if KindOf(err) != KindMissingFilter {
			t.Errorf("writes_enabled=%v: update without filter: expected missing_filter, got %v", writesEnabled, err)
		}
		if opener.openCount() != 0 {
			t.Errorf("writes_enabled=%v: expected no store to be opened", writesEnabled)
		}
	}
}

func TestExecuteQueryMutatingPrefixGate(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.WritesEnabled = false
	exec, opener := newTestExecutor(t, cfg)

	for _, sql := range []string{
		"DROP TABLE users",
		"  delete from users",
		"Insert into users values (1)",
		"TRUNCATE users",
	} {
		_, err := exec.Execute(context.Background(), testTarget, "query", map[string]any{"sql": sql})
		if KindOf(err) != KindWritesDisabled {
			t.Errorf("sql %q: expected writes_disabled, got %v", sql, err)
		}
	}
	if opener.openCount() != 0 {
		t.Errorf("expected no store to be opened, got %d opens", opener.openCount())
	}

	// Reads pass the gate even with writes disabled.
	if _, err := exec.Execute(context.Background(), testTarget, "query", map[string]any{"sql": "SELECT 1"}); err != nil {
		t.Fatalf("SELECT with writes disabled should succeed, got %v", err)
	}
}

func TestExecuteInvalidIdentifiers(t *testing.T) {
	t.Parallel()
	exec, opener := newTestExecutor(t, testConfig())

	cases := []struct {
		name string
		tool string
		args map[string]any
	}{
		{"bad table", "insert", map[string]any{"table": "users; DROP TABLE x", "data": map[string]any{"a": 1}}},
		{"bad schema", "list_tables", map[string]any{"schema": "public; --"}},
		{"bad data column", "insert", map[string]any{"table": "users", "data": map[string]any{"name\"); --": "x"}}},
		{"bad filter column", "delete", map[string]any{"table": "users", "filter": map[string]any{"1=1; --": "x"}}},
		{"bad index method", "create_index", map[string]any{"table": "users", "columns": "id", "method": "btree; --"}},
		{"bad extension", "enable_extension", map[string]any{"name": "pgcrypto CASCADE"}},
	}
	for _, tc := range cases {
		_, err := exec.Execute(context.Background(), testTarget, tc.tool, tc.args)
		if KindOf(err) != KindInvalidIdentifier {
			t.Errorf("%s: expected invalid_identifier, got %v", tc.name, err)
		}
	}
	if opener.openCount() != 0 {
		t.Errorf("expected no store to be opened, got %d opens", opener.openCount())
	}
}

func TestExecuteInsertBuildsBoundStatement(t *testing.T) {
	t.Parallel()
	exec, opener := newTestExecutor(t, testConfig())
	opener.store.execAffected = 1

	result, err := exec.Execute(context.Background(), testTarget, "insert", map[string]any{
		"table": "users",
		"data":  map[string]any{"name": "bob", "age": 30},
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	call := opener.store.lastCall(t)
	if call.SQL != "INSERT INTO public.users (age, name) VALUES ($1, $2)" {
		t.Errorf("unexpected SQL: %q", call.SQL)
	}
	if len(call.Args) != 2 || call.Args[0] != 30 || call.Args[1] != "bob" {
		t.Errorf("unexpected args: %v", call.Args)
	}
	out := result.(*ExecOutput)
	if !out.Success || out.RowsAffected != 1 {
		t.Errorf("unexpected output: %+v", out)
	}
}

func TestExecuteInsertAcceptsJSONStringData(t *testing.T) {
	t.Parallel()
	exec, opener := newTestExecutor(t, testConfig())

	_, err := exec.Execute(context.Background(), testTarget, "insert", map[string]any{
		"table": "events",
		"data":  `{"kind": "login", "user_id": 7}`,
	})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	call := opener.store.lastCall(t)
	if call.SQL != "INSERT INTO public.events (kind, user_id) VALUES ($1, $2)" {
		t.Errorf("unexpected SQL: %q", call.SQL)
	}
}

func TestExecuteUpdateNumbersFilterAfterSet(t *testing.T) {
	t.Parallel()
	exec, opener := newTestExecutor(t, testConfig())

	_, err := exec.Execute(context.Background(), testTarget, "update", map[string]any{
		"table":  "users",
		"data":   map[string]any{"name": "alice", "age": 31},
		"filter": map[string]any{"id": 7},
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	call := opener.store.lastCall(t)
	if call.SQL != "UPDATE public.users SET age = $1, name = $2 WHERE id = $3" {
		t.Errorf("unexpected SQL: %q", call.SQL)
	}
	if len(call.Args) != 3 || call.Args[0] != 31 || call.Args[1] != "alice" || call.Args[2] != 7 {
		t.Errorf("unexpected args: %v", call.Args)
	}
}

func TestExecuteDeleteANDsFilterColumns(t *testing.T) {
	t.Parallel()
	exec, opener := newTestExecutor(t, testConfig())

	_, err := exec.Execute(context.Background(), testTarget, "delete", map[string]any{
		"table":  "users",
		"filter": map[string]any{"status": "stale", "id": 7},
	})
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	call := opener.store.lastCall(t)
	if call.SQL != "DELETE FROM public.users WHERE id = $1 AND status = $2" {
		t.Errorf("unexpected SQL: %q", call.SQL)
	}
	if len(call.Args) != 2 || call.Args[0] != 7 || call.Args[1] != "stale" {
		t.Errorf("unexpected args: %v", call.Args)
	}
}

func TestExecuteDropTableIfExists(t *testing.T) {
	t.Parallel()
	exec, opener := newTestExecutor(t, testConfig())

	_, err := exec.Execute(context.Background(), testTarget, "drop_table", map[string]any{"table": "tmp"})
	if err != nil {
		t.Fatalf("drop_table failed: %v", err)
	}
	if call := opener.store.lastCall(t); call.SQL != "DROP TABLE IF EXISTS public.tmp" {
		t.Errorf("unexpected SQL: %q", call.SQL)
	}

	_, err = exec.Execute(context.Background(), testTarget, "drop_table", map[string]any{"table": "tmp", "if_exists": false})
	if err != nil {
		t.Fatalf("drop_table failed: %v", err)
	}
	if call := opener.store.lastCall(t); call.SQL != "DROP TABLE public.tmp" {
		t.Errorf("unexpected SQL: %q", call.SQL)
	}
}

func TestExecuteCreateTableFromColumnSpecs(t *testing.T) {
	t.Parallel()
	exec, opener := newTestExecutor(t, testConfig())

	_, err := exec.Execute(context.Background(), testTarget, "create_table", map[string]any{
		"table":   "users",
		"columns": `[{"name":"id","type":"serial","constraints":"PRIMARY KEY"},{"name":"name","type":"text","constraints":"NOT NULL"}]`,
	})
	if err != nil {
		t.Fatalf("create_table failed: %v", err)
	}
	call := opener.store.lastCall(t)
	want := "CREATE TABLE public.users (id serial PRIMARY KEY, name text NOT NULL)"
	if call.SQL != want {
		t.Errorf("unexpected SQL: %q, want %q", call.SQL, want)
	}
}

func TestExecuteCreateTableRejectsUnsafeFragments(t *testing.T) {
	t.Parallel()
	exec, _ := newTestExecutor(t, testConfig())

	_, err := exec.Execute(context.Background(), testTarget, "create_table", map[string]any{
		"table":   "users",
		"columns": `[{"name":"id","type":"serial; DROP TABLE x"}]`,
	})
	if KindOf(err) != KindInvalidIdentifier {
		t.Fatalf("expected invalid_identifier, got %v", err)
	}
}

func TestExecuteCreateIndexDerivesName(t *testing.T) {
	t.Parallel()
	exec, opener := newTestExecutor(t, testConfig())

	_, err := exec.Execute(context.Background(), testTarget, "create_index", map[string]any{
		"table":   "users",
		"columns": `["email", "tenant_id"]`,
		"unique":  true,
	})
	if err != nil {
		t.Fatalf("create_index failed: %v", err)
	}
	call := opener.store.lastCall(t)
	want := "CREATE UNIQUE INDEX idx_users_email_tenant_id ON public.users USING btree (email, tenant_id)"
	if call.SQL != want {
		t.Errorf("unexpected SQL: %q, want %q", call.SQL, want)
	}
}

func TestExecuteCreateFunctionDollarQuotesBody(t *testing.T) {
	t.Parallel()
	exec, opener := newTestExecutor(t, testConfig())

	_, err := exec.Execute(context.Background(), testTarget, "create_function", map[string]any{
		"name":    "add_one",
		"params":  "a integer",
		"returns": "integer",
		"language": "sql",
		"body":    "SELECT a + 1",
	})
	if err != nil {
		t.Fatalf("create_function failed: %v", err)
	}
	call := opener.store.lastCall(t)
	want := "CREATE OR REPLACE FUNCTION public.add_one(a integer) RETURNS integer LANGUAGE sql AS $pggw_fn$SELECT a + 1$pggw_fn$"
	if call.SQL != want {
		t.Errorf("unexpected SQL: %q, want %q", call.SQL, want)
	}
}

func TestExecuteCreateFunctionRejectsQuotingTagInBody(t *testing.T) {
	t.Parallel()
	exec, _ := newTestExecutor(t, testConfig())

	_, err := exec.Execute(context.Background(), testTarget, "create_function", map[string]any{
		"name": "sneaky",
		"body": "x$pggw_fn$; DROP TABLE users; --",
	})
	if KindOf(err) != KindMalformedArguments {
		t.Fatalf("expected malformed_arguments, got %v", err)
	}
}

func TestExecuteQueryCommitDecision(t *testing.T) {
	t.Parallel()
	exec, opener := newTestExecutor(t, testConfig())

	_, err := exec.Execute(context.Background(), testTarget, "query", map[string]any{"sql": "SELECT * FROM users"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if call := opener.store.lastCall(t); call.Commit {
		t.Error("read-only statement should roll back, not commit")
	}

	_, err = exec.Execute(context.Background(), testTarget, "query", map[string]any{"sql": "UPDATE users SET x = 1"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if call := opener.store.lastCall(t); !call.Commit {
		t.Error("mutating statement should commit")
	}
}

func TestExecuteQueryTooLong(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Query.MaxSQLLength = 20
	exec, opener := newTestExecutor(t, cfg)

	_, err := exec.Execute(context.Background(), testTarget, "query", map[string]any{
		"sql": "SELECT * FROM a_table_with_a_long_name",
	})
	if KindOf(err) != KindMalformedArguments {
		t.Fatalf("expected malformed_arguments, got %v", err)
	}
	if opener.openCount() != 0 {
		t.Error("expected no store to be opened")
	}
}

func TestExecuteQueryTruncatesLargeResults(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Query.MaxResultLength = 50
	exec, opener := newTestExecutor(t, cfg)
	opener.store.queryTxOut = &QueryOutput{
		Columns: []string{"blob"},
		Rows: []map[string]interface{}{
			{"blob": strings.Repeat("x", 200)},
		},
	}

	result, err := exec.Execute(context.Background(), testTarget, "query", map[string]any{"sql": "SELECT blob FROM blobs"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	out := result.(*QueryOutput)
	if !out.Truncated {
		t.Error("expected output to be marked truncated")
	}
	if len(out.Rows) != 0 {
		t.Errorf("expected rows to be dropped, got %d", len(out.Rows))
	}
}

func TestExecuteAppendsErrorGuidance(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.ErrorPrompts = []ErrorPromptRule{
		{Pattern: "deadlock detected", Message: "Retry the transaction after a short delay."},
	}
	exec, opener := newTestExecutor(t, cfg)
	opener.store.queryTxErr = errors.New("ERROR: deadlock detected (SQLSTATE 40P01)")

	_, err := exec.Execute(context.Background(), testTarget, "query", map[string]any{"sql": "SELECT 1"})
	if KindOf(err) != KindStoreError {
		t.Fatalf("expected store_error, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "deadlock detected (SQLSTATE 40P01)") {
		t.Errorf("original store message should be preserved verbatim: %q", msg)
	}
	if !strings.Contains(msg, "Retry the transaction after a short delay.") {
		t.Errorf("guidance should be appended: %q", msg)
	}
}

func TestExecuteSanitizesQueryResults(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Sanitization = []SanitizationRule{
		{Pattern: `\b\d{3}-\d{2}-\d{4}\b`, Replacement: "[REDACTED]"},
	}
	exec, opener := newTestExecutor(t, cfg)
	opener.store.queryTxOut = &QueryOutput{
		Columns: []string{"ssn"},
		Rows:    []map[string]interface{}{{"ssn": "123-45-6789"}},
	}

	result, err := exec.Execute(context.Background(), testTarget, "query", map[string]any{"sql": "SELECT ssn FROM people"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	out := result.(*QueryOutput)
	if out.Rows[0]["ssn"] != "[REDACTED]" {
		t.Errorf("expected sanitized value, got %v", out.Rows[0]["ssn"])
	}
}

func TestExecuteReleasesStore(t *testing.T) {
	t.Parallel()
	exec, opener := newTestExecutor(t, testConfig())
	opener.store.execErr = errors.New("connection reset")

	_, err := exec.Execute(context.Background(), testTarget, "insert", map[string]any{
		"table": "users",
		"data":  map[string]any{"name": "bob"},
	})
	if KindOf(err) != KindStoreError {
		t.Fatalf("expected store_error, got %v", err)
	}
	if !opener.store.closed {
		t.Error("store should be closed on the error path")
	}
}

func TestExecuteServerVersion(t *testing.T) {
	t.Parallel()
	exec, opener := newTestExecutor(t, testConfig())
	opener.store.selectOut = &QueryOutput{
		Columns: []string{"version"},
		Rows:    []map[string]interface{}{{"version": "PostgreSQL 16.3"}},
	}

	result, err := exec.Execute(context.Background(), testTarget, "server_version", nil)
	if err != nil {
		t.Fatalf("server_version failed: %v", err)
	}
	out := result.(*VersionOutput)
	if out.Version != "PostgreSQL 16.3" {
		t.Errorf("unexpected version: %q", out.Version)
	}
}

type openerFunc func(ctx context.Context, target string) (Store, error)

func (f openerFunc) Open(ctx context.Context, target string) (Store, error) { return f(ctx, target) }

// blockingStore parks the first Select until released, holding its call slot.
type blockingStore struct {
	started chan struct{}
	release chan struct{}
}

func (s *blockingStore) Select(ctx context.Context, sql string, args ...any) (*QueryOutput, error) {
	close(s.started)
	<-s.release
	return &QueryOutput{Columns: []string{}, Rows: []map[string]interface{}{}}, nil
}

func (s *blockingStore) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	return 0, nil
}

func (s *blockingStore) QueryTx(ctx context.Context, sql string, commit bool) (*QueryOutput, error) {
	return &QueryOutput{Columns: []string{}, Rows: []map[string]interface{}{}}, nil
}

func (s *blockingStore) Close() {}

func TestExecuteSlotWaitCancellation(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Pool.MaxConns = 1
	bs := &blockingStore{started: make(chan struct{}), release: make(chan struct{})}
	exec, err := NewExecutor(cfg, NewCatalog(), openerFunc(func(ctx context.Context, target string) (Store, error) {
		return bs, nil
	}), testLogger())
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		exec.Execute(context.Background(), testTarget, "server_version", nil)
	}()
	<-bs.started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = exec.Execute(ctx, testTarget, "server_version", nil)
	if err == nil {
		t.Fatal("expected an error when cancelled while waiting for a slot")
	}
	// No store was reached, so the failure must not be classified store_error.
	if KindOf(err) == KindStoreError {
		t.Errorf("slot-wait cancellation classified store_error: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in the chain, got %v", err)
	}

	close(bs.release)
	<-done
}

func TestExecuteDescribeTableMissingRelation(t *testing.T) {
	t.Parallel()
	exec, _ := newTestExecutor(t, testConfig())

	_, err := exec.Execute(context.Background(), testTarget, "describe_table", map[string]any{"table": "nope"})
	if KindOf(err) != KindStoreError {
		t.Fatalf("expected store_error for absent relation, got %v", err)
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}
