package pggw

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/rickchristie/pg-gateway/internal/ident"
)

// Dispatcher resolves inbound RPC envelopes to handlers. It is stateless
// across requests except for session lookups; one Response comes out of
// every Dispatch, carrying the request's correlation id.
type Dispatcher struct {
	catalog       *Catalog
	executor      *Executor
	sessions      *Registry
	defaultTarget string
	logger        zerolog.Logger
}

// NewDispatcher creates a Dispatcher. defaultTarget is the configured
// server-wide target, applied only when a call supplies none of its own.
func NewDispatcher(catalog *Catalog, executor *Executor, sessions *Registry, defaultTarget string, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{catalog: catalog, executor: executor, sessions: sessions, defaultTarget: defaultTarget, logger: logger}
}

// Dispatch handles one request. callTarget is the transport-resolved target
// for this call (may be empty); sess is the session the request arrived on
// behalf of (nil for plain request/response callers). When sess is non-nil
// the response is also pushed to its outbound channel; both deliveries carry
// identical content.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request, callTarget string, sess *Session) Response {
	resp := d.handle(ctx, req, callTarget, sess)
	if sess != nil {
		sess.PushJSON(EventResponse, resp)
	}
	return resp
}

func (d *Dispatcher) handle(ctx context.Context, req *Request, callTarget string, sess *Session) Response {
	switch req.Method {
	case MethodInitialize:
		return successResponse(req.ID, InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: serverName, Version: serverVersion},
		})

	case MethodToolsList:
		return successResponse(req.ID, ToolsListResult{Tools: d.catalog.Schemas()})

	case MethodNotifyInitialized:
		return successResponse(req.ID, struct{}{})

	case MethodToolsCall:
		return d.handleToolsCall(ctx, req, callTarget, sess)

	default:
		return errorResponse(req.ID, Errf(KindUnknownMethod, "unknown method: %s", req.Method))
	}
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, req *Request, callTarget string, sess *Session) Response {
	var params CallParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, Errf(KindMalformedArguments, "invalid tools/call params: %v", err))
		}
	}
	if params.Name == "" {
		return errorResponse(req.ID, Errf(KindMalformedArguments, "tools/call requires a tool name"))
	}

	// Explicit per-call override wins, then the transport-supplied target,
	// then the session-bound default. The configured server-wide default is
	// the last resort.
	target := params.Target
	if target == "" {
		target = callTarget
	}
	if target == "" && sess != nil {
		target = sess.Target
	}
	if target == "" {
		target = d.defaultTarget
	}
	if target == "" {
		return errorResponse(req.ID, Errf(KindMissingTarget, "no target database resolved for this call"))
	}
	if !ident.IsValidTarget(target) {
		return errorResponse(req.ID, Errf(KindMissingTarget, "target descriptor is not a postgres connection URI"))
	}

	result, err := d.executor.Execute(ctx, target, params.Name, params.Arguments)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	return successResponse(req.ID, result)
}
