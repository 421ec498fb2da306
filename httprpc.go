package pggw

import (
	"encoding/json"
	"net/http"
)

// maxRequestBody caps inbound RPC envelopes at 1MB.
const maxRequestBody = 1 << 20

// handleRPC serves the plain request/response surface. Each POST carries one
// RPC envelope; the response is always written back on the HTTP response, and
// additionally pushed to the session's stream when the request names a live
// session via the session_id query parameter.
func (g *Gateway) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !g.authenticate(r) {
		writeRPCError(w, http.StatusUnauthorized, nil, Errf(KindAuthRejected, "missing or invalid credential"))
		return
	}

	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeRPCError(w, http.StatusBadRequest, nil, Errf(KindMalformedArguments, "invalid request body: %v", err))
		return
	}

	// Unknown session ids are tolerated: the call still runs, the response
	// just has no stream to be mirrored onto.
	var sess *Session
	if id := r.URL.Query().Get("session_id"); id != "" {
		if s, ok := g.sessions.Lookup(id); ok {
			sess = s
		}
	}

	resp := g.dispatcher.Dispatch(r.Context(), &req, g.resolveCallTarget(r), sess)
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeRPCError(w http.ResponseWriter, status int, id json.RawMessage, err error) {
	writeJSON(w, status, errorResponse(id, err))
}
