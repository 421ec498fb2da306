package pggw

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"

	"github.com/rickchristie/pg-gateway/internal/ident"
)

// ConnectedPayload is the first event on every stream. It tells the caller
// which session id to correlate RPC posts with and what surface it is
// talking to.
type ConnectedPayload struct {
	SessionID     string `json:"session_id"`
	Tools         int    `json:"tools"`
	WritesEnabled bool   `json:"writes_enabled"`
}

// handleStream upgrades a GET request to a server-sent event stream, registers
// a session for it, and drains the session's outbound channel onto the wire
// until the client disconnects.
func (g *Gateway) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !g.authenticate(r) {
		writeRPCError(w, http.StatusUnauthorized, nil, Errf(KindAuthRejected, "missing or invalid credential"))
		return
	}

	target := g.resolveCallTarget(r)
	if target != "" && !ident.IsValidTarget(target) {
		writeRPCError(w, http.StatusBadRequest, nil, Errf(KindMissingTarget, "target descriptor is not a postgres connection URI"))
		return
	}

	sess := NewSession(uuid.NewString(), target)
	if err := g.sessions.Register(sess); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer g.sessions.Unregister(sess.ID)

	stream, err := sse.Upgrade(w, r)
	if err != nil {
		g.logger.Error().Err(err).Msg("failed to upgrade stream")
		http.Error(w, "failed to upgrade stream", http.StatusInternalServerError)
		return
	}

	g.logger.Info().
		Str("session_id", sess.ID).
		Bool("has_target", target != "").
		Msg("stream connected")

	sess.PushJSON(EventConnected, ConnectedPayload{
		SessionID:     sess.ID,
		Tools:         g.catalog.Size(),
		WritesEnabled: g.config.WritesEnabled,
	})

	for {
		select {
		case <-r.Context().Done():
			g.logger.Info().Str("session_id", sess.ID).Msg("stream disconnected")
			return
		case <-sess.Done():
			return
		case evt := <-sess.Events():
			msg := sse.Message{Type: sse.Type(evt.Type)}
			msg.AppendData(string(evt.Data))
			if err := stream.Send(&msg); err != nil {
				g.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("stream send failed")
				return
			}
			if err := stream.Flush(); err != nil {
				g.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("stream flush failed")
				return
			}
		}
	}
}
