package pggw

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Streaming event types pushed to a session's outbound channel.
const (
	EventConnected = "connected"
	EventResponse  = "response"
	EventPing      = "ping"
)

// Event is one message on a session's outbound channel.
type Event struct {
	Type string
	Data []byte
}

// Session is one registered streaming connection. It is looked up by id for
// response-push correlation only; the registry removal path frees it
// unconditionally on disconnect.
type Session struct {
	ID        string
	Target    string
	CreatedAt time.Time

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession creates a session bound to an optional default target store.
func NewSession(id, target string) *Session {
	return &Session{
		ID:        id,
		Target:    target,
		CreatedAt: time.Now(),
		events:    make(chan Event, 16),
		done:      make(chan struct{}),
	}
}

// Events is the outbound channel the transport drains.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed when the session is torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Push queues an event for delivery. Pushing to a closed session is a no-op;
// a full buffer drops the event rather than blocking the caller. A slow or
// gone consumer must never stall a tool invocation.
func (s *Session) Push(eventType string, data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- Event{Type: eventType, Data: data}:
		return true
	case <-s.done:
		return false
	default:
		return false
	}
}

// PushJSON marshals v and pushes it as an event of the given type.
func (s *Session) PushJSON(eventType string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return s.Push(eventType, data)
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Registry tracks live streaming sessions by id. Safe for concurrent
// register, lookup, and unregister.
type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	keepAlive time.Duration
	logger    zerolog.Logger
}

// NewRegistry creates a Registry. keepAlive is the ping interval for
// registered sessions; zero disables pings (used by tests).
func NewRegistry(keepAlive time.Duration, logger zerolog.Logger) *Registry {
	return &Registry{
		sessions:  make(map[string]*Session),
		keepAlive: keepAlive,
		logger:    logger,
	}
}

// Register adds the session and starts its keep-alive task. Ids are unique:
// registering a second session with the same id is rejected.
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.ID]; exists {
		return fmt.Errorf("session %s already registered", s.ID)
	}
	r.sessions[s.ID] = s
	if r.keepAlive > 0 {
		go r.keepAliveLoop(s)
	}
	r.logger.Debug().Str("session_id", s.ID).Msg("session registered")
	return nil
}

// Lookup returns the session with the given id.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Unregister removes the session and stops its keep-alive task. Safe to call
// for ids that are already gone.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return
	}
	s.close()
	r.logger.Debug().Str("session_id", id).Msg("session unregistered")
}

// CloseAll tears down every live session. Used at shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	for _, s := range all {
		s.close()
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// keepAliveLoop is the session-owned ping task. The ticker stops when the
// session is torn down; pings carry a timestamp and require no ack.
func (r *Registry) keepAliveLoop(s *Session) {
	ticker := time.NewTicker(r.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case t := <-ticker.C:
			s.PushJSON(EventPing, map[string]string{"ts": t.UTC().Format(time.RFC3339)})
		}
	}
}
