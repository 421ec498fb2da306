// Package pggw is a tool-invocation gateway for PostgreSQL. It exposes a
// fixed catalog of relational tools — from a generic query runner to typed
// DDL and DML operations — over a JSON-RPC-style protocol served on two HTTP
// surfaces: a server-sent event stream with session correlation, and a plain
// request/response endpoint.
//
// Every tool invocation runs against a call-scoped target database resolved
// per call, per request, or per session. Invocations pass a validation
// pipeline before any connection is opened: tool resolution, argument
// parsing, identifier validation, filter presence, and the write gate. All
// values are bound through the pgx extended query protocol
// (QueryExecModeExec); identifiers are interpolated only after strict
// character-set validation.
//
// # Library Usage
//
//	gw, err := pggw.New(pggw.ServerConfig{
//		Config: pggw.Config{
//			WritesEnabled: false,
//			Pool:          pggw.PoolConfig{MaxConns: 10},
//			Query:         pggw.QueryConfig{DefaultTimeoutSeconds: 30},
//		},
//		Server: pggw.ServerSettings{Port: 8080, APIKey: key},
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer gw.Close()
//
//	http.ListenAndServe(":8080", gw.Handler())
//
// Write-classified tools (insert, update, delete, create_table, and the rest
// of the DDL set) are rejected unless WritesEnabled is set; the generic query
// tool additionally refuses statements with a mutating leading verb when
// writes are disabled. Results pass regex-based sanitization and length
// truncation before they leave the gateway, and store errors can carry
// configured guidance text appended to the original message.
package pggw
