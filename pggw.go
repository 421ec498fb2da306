package pggw

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/rickchristie/pg-gateway/internal/ident"
)

// Default HTTP surface paths. The streaming endpoint accepts GET only; the
// RPC endpoint accepts POST only.
const (
	StreamPath = "/sse"
	RPCPath    = "/rpc"

	defaultHealthCheckPath = "/health"
	defaultKeepAliveSecs   = 30
)

// Gateway is the tool-invocation gateway. It owns the catalog, the executor,
// the session registry, and the dispatcher, and serves them over HTTP.
// All exported methods are safe for concurrent use from multiple goroutines.
type Gateway struct {
	config     ServerConfig
	catalog    *Catalog
	executor   *Executor
	sessions   *Registry
	dispatcher *Dispatcher
	logger     zerolog.Logger
}

// Option is a functional option for New().
type Option func(*options)

type options struct {
	opener StoreOpener
}

// WithStoreOpener replaces the default pgx-backed store opener. Used by tests
// to run the full request path against an in-memory store.
func WithStoreOpener(opener StoreOpener) Option {
	return func(o *options) {
		o.opener = opener
	}
}

// New creates a Gateway. Panics on invalid config (programmer error); returns
// an error only for bad rule patterns.
func New(config ServerConfig, logger zerolog.Logger, opts ...Option) (*Gateway, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if config.DefaultTarget != "" && !ident.IsValidTarget(config.DefaultTarget) {
		panic("pggw: default_target must be a postgres:// or postgresql:// URI")
	}
	if config.Server.KeepAliveSeconds == 0 {
		config.Server.KeepAliveSeconds = defaultKeepAliveSecs
	}
	if config.Server.KeepAliveSeconds < 0 {
		panic("pggw: server.keep_alive_seconds must be > 0")
	}
	if config.Server.HealthCheckPath == "" {
		config.Server.HealthCheckPath = defaultHealthCheckPath
	}

	opener := o.opener
	if opener == nil {
		opener = NewPgxOpener(config.Pool)
	}

	catalog := NewCatalog()
	executor, err := NewExecutor(config.Config, catalog, opener, logger)
	if err != nil {
		return nil, err
	}

	sessions := NewRegistry(time.Duration(config.Server.KeepAliveSeconds)*time.Second, logger)
	dispatcher := NewDispatcher(catalog, executor, sessions, config.DefaultTarget, logger)

	return &Gateway{
		config:     config,
		catalog:    catalog,
		executor:   executor,
		sessions:   sessions,
		dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

// Handler returns the HTTP surface: the streaming endpoint, the RPC endpoint,
// and the optional health check, wrapped with the configured CORS policy.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(StreamPath, g.handleStream)
	mux.HandleFunc(RPCPath, g.handleRPC)
	if g.config.Server.HealthCheckEnabled {
		mux.HandleFunc(g.config.Server.HealthCheckPath, g.handleHealth)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: g.config.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key", "X-Target-DB"},
	})
	return c.Handler(mux)
}

// Close terminates every active session. In-flight calls run to completion on
// their own contexts.
func (g *Gateway) Close() {
	g.sessions.CloseAll()
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// authenticate verifies the caller credential. The key may arrive as a
// bearer token, an X-API-Key header, or an api_key query parameter. An empty
// configured key rejects every caller.
func (g *Gateway) authenticate(r *http.Request) bool {
	configured := g.config.Server.APIKey
	if configured == "" {
		return false
	}

	presented := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		presented = strings.TrimPrefix(auth, "Bearer ")
	} else if key := r.Header.Get("X-API-Key"); key != "" {
		presented = key
	} else if key := r.URL.Query().Get("api_key"); key != "" {
		presented = key
	}
	if presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1
}

// resolveCallTarget picks the target descriptor the request itself supplies.
// Returns "" when the request carries none; the dispatcher falls back to the
// session-bound target and then the configured default, in that order.
func (g *Gateway) resolveCallTarget(r *http.Request) string {
	if t := r.Header.Get("X-Target-DB"); t != "" {
		return t
	}
	return r.URL.Query().Get("target")
}
