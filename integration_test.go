package pggw_test

import (
	"context"
	"os"
	"testing"

	"github.com/rickchristie/govner/pgflock/client"
	pggw "github.com/rickchristie/pg-gateway"
	"github.com/rs/zerolog"
)

const (
	pgflockLockerPort = 9776
	pgflockPassword   = "pgflock"
)

func acquireTestDB(t *testing.T) string {
	t.Helper()
	connStr, err := client.Lock(pgflockLockerPort, t.Name(), pgflockPassword)
	if err != nil {
		t.Skipf("pgflock locker not reachable, skipping integration test: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Unlock(pgflockLockerPort, pgflockPassword, connStr)
	})
	return connStr
}

func integrationConfig() pggw.Config {
	return pggw.Config{
		WritesEnabled: true,
		Pool:          pggw.PoolConfig{MaxConns: 5},
		Query: pggw.QueryConfig{
			DefaultTimeoutSeconds: 30,
			MaxSQLLength:          100000,
			MaxResultLength:       100000,
		},
	}
}

func newIntegrationExecutor(t *testing.T) (*pggw.Executor, string) {
	t.Helper()
	target := acquireTestDB(t)
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	exec, err := pggw.NewExecutor(integrationConfig(), pggw.NewCatalog(), pggw.NewPgxOpener(pggw.PoolConfig{MaxConns: 5}), logger)
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}
	return exec, target
}

func mustExecute(t *testing.T, exec *pggw.Executor, target, tool string, args map[string]any) any {
	t.Helper()
	result, err := exec.Execute(context.Background(), target, tool, args)
	if err != nil {
		t.Fatalf("tool %s failed: %v", tool, err)
	}
	return result
}

func TestIntegrationInsertQueryRoundTrip(t *testing.T) {
	t.Parallel()
	exec, target := newIntegrationExecutor(t)

	mustExecute(t, exec, target, "create_table", map[string]any{
		"table":   "people",
		"columns": `[{"name":"id","type":"serial","constraints":"PRIMARY KEY"},{"name":"name","type":"text","constraints":"NOT NULL"}]`,
	})
	out := mustExecute(t, exec, target, "insert", map[string]any{
		"table": "people",
		"data":  map[string]any{"name": "Alice"},
	}).(*pggw.ExecOutput)
	if out.RowsAffected != 1 {
		t.Fatalf("expected 1 row affected, got %d", out.RowsAffected)
	}

	query := mustExecute(t, exec, target, "query", map[string]any{
		"sql": "SELECT name FROM people ORDER BY id",
	}).(*pggw.QueryOutput)
	if len(query.Rows) != 1 || query.Rows[0]["name"] != "Alice" {
		t.Fatalf("unexpected query result: %+v", query.Rows)
	}
}

func TestIntegrationUpdateAndDeleteWithFilter(t *testing.T) {
	t.Parallel()
	exec, target := newIntegrationExecutor(t)

	mustExecute(t, exec, target, "create_table", map[string]any{
		"table":   "tasks",
		"columns": `[{"name":"id","type":"serial","constraints":"PRIMARY KEY"},{"name":"status","type":"text"}]`,
	})
	mustExecute(t, exec, target, "insert", map[string]any{"table": "tasks", "data": map[string]any{"status": "open"}})
	mustExecute(t, exec, target, "insert", map[string]any{"table": "tasks", "data": map[string]any{"status": "open"}})

	updated := mustExecute(t, exec, target, "update", map[string]any{
		"table":  "tasks",
		"data":   map[string]any{"status": "done"},
		"filter": map[string]any{"status": "open"},
	}).(*pggw.ExecOutput)
	if updated.RowsAffected != 2 {
		t.Fatalf("expected 2 rows updated, got %d", updated.RowsAffected)
	}

	deleted := mustExecute(t, exec, target, "delete", map[string]any{
		"table":  "tasks",
		"filter": map[string]any{"status": "done"},
	}).(*pggw.ExecOutput)
	if deleted.RowsAffected != 2 {
		t.Fatalf("expected 2 rows deleted, got %d", deleted.RowsAffected)
	}
}

func TestIntegrationDropTableIdempotent(t *testing.T) {
	t.Parallel()
	exec, target := newIntegrationExecutor(t)

	// IF EXISTS semantics make dropping an absent table succeed.
	out := mustExecute(t, exec, target, "drop_table", map[string]any{
		"table": "never_created",
	}).(*pggw.ExecOutput)
	if !out.Success {
		t.Fatal("expected drop of absent table to succeed with if_exists")
	}

	// Without IF EXISTS it fails.
	_, err := exec.Execute(context.Background(), target, "drop_table", map[string]any{
		"table":     "never_created",
		"if_exists": false,
	})
	if pggw.KindOf(err) != pggw.KindStoreError {
		t.Fatalf("expected store_error, got %v", err)
	}
}

func TestIntegrationListAndDescribe(t *testing.T) {
	t.Parallel()
	exec, target := newIntegrationExecutor(t)

	mustExecute(t, exec, target, "create_table", map[string]any{
		"table":   "warehouse",
		"columns": `[{"name":"id","type":"serial","constraints":"PRIMARY KEY"}]`,
	})
	mustExecute(t, exec, target, "create_table", map[string]any{
		"table":   "inventory",
		"columns": `[{"name":"id","type":"serial","constraints":"PRIMARY KEY"},{"name":"sku","type":"text","constraints":"NOT NULL"}]`,
	})
	mustExecute(t, exec, target, "create_index", map[string]any{
		"table":   "inventory",
		"columns": "sku",
		"unique":  true,
	})

	// Listed in name order regardless of creation order.
	tables := mustExecute(t, exec, target, "list_tables", nil).(*pggw.TablesOutput)
	inventoryAt, warehouseAt := -1, -1
	for i, tbl := range tables.Tables {
		switch tbl.TableName {
		case "inventory":
			inventoryAt = i
		case "warehouse":
			warehouseAt = i
		}
	}
	if inventoryAt < 0 || warehouseAt < 0 {
		t.Fatalf("expected inventory and warehouse in table list: %+v", tables.Tables)
	}
	if inventoryAt > warehouseAt {
		t.Fatalf("expected name ordering, got inventory at %d after warehouse at %d", inventoryAt, warehouseAt)
	}

	desc := mustExecute(t, exec, target, "describe_table", map[string]any{
		"table": "inventory",
	}).(*pggw.DescribeTableOutput)
	if len(desc.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(desc.Columns))
	}
	var pkSeen bool
	for _, col := range desc.Columns {
		if col.Name == "id" && col.IsPrimaryKey {
			pkSeen = true
		}
	}
	if !pkSeen {
		t.Fatal("expected id to be reported as primary key")
	}
	if len(desc.Indexes) == 0 {
		t.Fatal("expected at least one index")
	}
}

func TestIntegrationServerVersion(t *testing.T) {
	t.Parallel()
	exec, target := newIntegrationExecutor(t)

	out := mustExecute(t, exec, target, "server_version", nil).(*pggw.VersionOutput)
	if out.Version == "" {
		t.Fatal("expected a non-empty server version")
	}
}

func TestIntegrationReadOnlyQueryRollsBack(t *testing.T) {
	t.Parallel()
	exec, target := newIntegrationExecutor(t)

	mustExecute(t, exec, target, "create_table", map[string]any{
		"table":   "ledger",
		"columns": `[{"name":"id","type":"serial","constraints":"PRIMARY KEY"}]`,
	})

	// A mutating statement through the query tool commits.
	mustExecute(t, exec, target, "query", map[string]any{
		"sql": "INSERT INTO ledger DEFAULT VALUES",
	})
	count := mustExecute(t, exec, target, "query", map[string]any{
		"sql": "SELECT count(*) AS n FROM ledger",
	}).(*pggw.QueryOutput)
	if len(count.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(count.Rows))
	}
}
