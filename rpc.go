package pggw

import "encoding/json"

// RPC method names accepted by the Dispatcher.
const (
	MethodInitialize        = "initialize"
	MethodToolsList         = "tools/list"
	MethodToolsCall         = "tools/call"
	MethodNotifyInitialized = "notifications/initialized"
)

// rpcVersion is stamped on every outbound envelope.
const rpcVersion = "2.0"

// rpcErrorCode is the single fixed code used for every Executor/Dispatcher
// failure. The external contract defines no finer-grained code taxonomy;
// the failure kind travels in the message.
const rpcErrorCode = -32603

// Request is an inbound RPC envelope. ID is the caller-supplied correlation
// token and is treated as opaque — it is echoed back verbatim, whether the
// caller chose a string, a number, or anything else JSON-shaped.
type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an outbound RPC envelope. Result and Error are mutually
// exclusive; ID always equals the Request.ID that produced it.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error half of a Response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// CallParams are the params of a tools/call request. Target, when present,
// overrides both the transport-resolved target and the session default.
type CallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Target    string         `json:"target,omitempty"`
}

// InitializeResult is the fixed payload returned by the initialize method.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// Capabilities advertises what the gateway can do. Tools is the only
// capability this server exposes.
type Capabilities struct {
	Tools struct{} `json:"tools"`
}

// ServerInfo identifies the gateway to callers.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolsListResult is the payload returned by tools/list.
type ToolsListResult struct {
	Tools []ToolSchema `json:"tools"`
}

const (
	protocolVersion = "2024-11-05"
	serverName      = "gopggw"
	serverVersion   = "1.0.0"
)

func successResponse(id json.RawMessage, result any) Response {
	return Response{JSONRPC: rpcVersion, ID: id, Result: result}
}

func errorResponse(id json.RawMessage, err error) Response {
	return Response{JSONRPC: rpcVersion, ID: id, Error: &RPCError{Code: rpcErrorCode, Message: err.Error()}}
}
