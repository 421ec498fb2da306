package pggw

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is one call's scoped handle to a target database. A Store is acquired
// at the start of a tool invocation, used exclusively by that invocation, and
// released with Close on every exit path. It is never shared mid-call.
type Store interface {
	// Select runs a row-returning statement with bound parameters.
	Select(ctx context.Context, sql string, args ...any) (*QueryOutput, error)
	// Exec runs a statement that returns no rows and reports rows affected.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	// QueryTx runs sql inside a transaction. The transaction commits when
	// commit is true and rolls back otherwise; rollback also happens on error.
	QueryTx(ctx context.Context, sql string, commit bool) (*QueryOutput, error)
	// Close releases the store. Safe to call exactly once.
	Close()
}

// StoreOpener resolves a target descriptor into a Store for one call.
type StoreOpener interface {
	Open(ctx context.Context, target string) (Store, error)
}

// PgxOpener opens call-scoped pgx pools against target descriptors. Pooling
// within a call is delegated to pgxpool; the gateway holds no connections
// across calls.
type PgxOpener struct {
	pool PoolConfig
}

// NewPgxOpener creates a PgxOpener with the given pool settings.
func NewPgxOpener(pool PoolConfig) *PgxOpener {
	return &PgxOpener{pool: pool}
}

// Open parses the target descriptor and builds a pool for the duration of
// one call. The pool connects lazily; descriptor problems surface here,
// connection problems surface on first use.
func (o *PgxOpener) Open(ctx context.Context, target string) (Store, error) {
	poolConfig, err := pgxpool.ParseConfig(target)
	if err != nil {
		return nil, StoreErr(fmt.Errorf("failed to parse connection string: %w", err))
	}
	if o.pool.MaxConns > 0 {
		poolConfig.MaxConns = int32(o.pool.MaxConns)
	}
	if o.pool.MinConns > 0 {
		poolConfig.MinConns = int32(o.pool.MinConns)
	}
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, StoreErr(fmt.Errorf("failed to create connection pool: %w", err))
	}
	return &pgxStore{pool: pool}, nil
}

type pgxStore struct {
	pool *pgxpool.Pool
}

func (s *pgxStore) Select(ctx context.Context, sql string, args ...any) (*QueryOutput, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, StoreErr(err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, StoreErr(err)
	}
	out, err := collectRows(rows)
	if err != nil {
		return nil, StoreErr(err)
	}
	return out, nil
}

func (s *pgxStore) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, StoreErr(err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, StoreErr(err)
	}
	return tag.RowsAffected(), nil
}

func (s *pgxStore) QueryTx(ctx context.Context, sql string, commit bool) (*QueryOutput, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, StoreErr(err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, StoreErr(err)
	}
	// Rollback with a fresh context: if the statement timed out, ctx is
	// already cancelled and the rollback itself would fail.
	rollbackCtx := context.WithoutCancel(ctx)
	defer tx.Rollback(rollbackCtx)

	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return nil, StoreErr(err)
	}
	out, err := collectRows(rows)
	if err != nil {
		return nil, StoreErr(err)
	}

	if commit {
		if err := tx.Commit(ctx); err != nil {
			return nil, StoreErr(err)
		}
	}
	return out, nil
}

func (s *pgxStore) Close() {
	s.pool.Close()
}

// collectRows drains pgx.Rows into a QueryOutput with JSON-friendly values.
func collectRows(rows pgx.Rows) (*QueryOutput, error) {
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	resultRows := make([]map[string]interface{}, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = convertValue(values[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueryOutput{
		Columns:      columns,
		Rows:         resultRows,
		RowsAffected: rows.CommandTag().RowsAffected(),
	}, nil
}

// convertValue converts a pgx-returned value to a JSON-friendly Go type.
func convertValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case float32:
		return convertFloat(float64(val))
	case float64:
		return convertFloat(val)
	case netip.Prefix:
		return val.String()
	case net.HardwareAddr:
		return val.String()
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		if val.NaN {
			return "NaN"
		}
		if val.InfinityModifier == pgtype.Infinity {
			return "Infinity"
		}
		if val.InfinityModifier == pgtype.NegativeInfinity {
			return "-Infinity"
		}
		b, err := val.MarshalJSON()
		if err != nil {
			return nil
		}
		return string(b)
	case pgtype.Interval:
		if !val.Valid {
			return nil
		}
		parts := []string{}
		if val.Months != 0 {
			years := val.Months / 12
			months := val.Months % 12
			if years != 0 {
				parts = append(parts, fmt.Sprintf("%d year(s)", years))
			}
			if months != 0 {
				parts = append(parts, fmt.Sprintf("%d mon(s)", months))
			}
		}
		if val.Days != 0 {
			parts = append(parts, fmt.Sprintf("%d day(s)", val.Days))
		}
		if val.Microseconds != 0 {
			dur := time.Duration(val.Microseconds) * time.Microsecond
			parts = append(parts, dur.String())
		}
		if len(parts) == 0 {
			return "0"
		}
		return strings.Join(parts, " ")
	case [16]byte:
		// UUID
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case []byte:
		// bytea — base64 encode
		return base64.StdEncoding.EncodeToString(val)
	case string:
		return val
	case map[string]interface{}:
		result := make(map[string]interface{}, len(val))
		for k, item := range val {
			result[k] = convertValue(item)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(val))
		for i, item := range val {
			result[i] = convertValue(item)
		}
		return result
	default:
		return val
	}
}

func convertFloat(f float64) interface{} {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return f
}
