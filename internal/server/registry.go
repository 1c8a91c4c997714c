// Package server tracks live connections in the connection registry, the
// leaf dependency consumed by the matchmaking queue and the room manager.
package server

import "time"

// SessionState is the per-connection lifecycle state driven by the session
// supervisor.
type SessionState int

// Session states. Left and Disconnected are terminal; Left recycles back to
// Queued when the client asks for a new peer, Disconnected never does.
const (
	StateIdle SessionState = iota
	StateQueued
	StatePaired
	StateActive
	StateLeft
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateQueued:
		return "queued"
	case StatePaired:
		return "paired"
	case StateActive:
		return "active"
	case StateLeft:
		return "left"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// MessageSink delivers an encoded frame to one connection. The WebSocket
// client implements it with a buffered channel; tests substitute an in-memory
// recorder.
type MessageSink interface {
	// Send queues the payload for delivery. It must not block; it reports
	// false when the frame was dropped because the connection is saturated
	// or already closed.
	Send(payload []byte) bool
}

// Connection is the registry's record of one live client link. The id is
// opaque and stable for the connection's lifetime; the identity is optional
// and stamped by the external auth service before registration.
type Connection struct {
	ID           string
	Identity     *Identity
	RoomID       string
	State        SessionState
	sink         MessageSink
	registeredAt time.Time
}

// NewConnection creates a registry record delivering through sink.
func NewConnection(id string, identity *Identity, sink MessageSink) *Connection {
	return &Connection{
		ID:       id,
		Identity: identity,
		State:    StateIdle,
		sink:     sink,
	}
}

// send encodes and delivers one outbound event to this connection. Delivery
// failures are reported, not fatal: a saturated client will be torn down by
// its own read pump shortly.
func (c *Connection) send(event string, data any) bool {
	if c.sink == nil {
		return false
	}
	payload, err := encodeEnvelope(event, data)
	if err != nil {
		return false
	}
	return c.sink.Send(payload)
}

// Registry owns every live Connection. It is owned by the session supervisor
// and mutated only from the supervisor's event loop, so it needs no lock of
// its own.
type Registry struct {
	conns map[string]*Connection
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Register makes the connection visible to the queue and the room manager.
func (r *Registry) Register(conn *Connection) {
	conn.registeredAt = time.Now()
	r.conns[conn.ID] = conn
}

// Unregister removes the connection. Unknown ids are a no-op so duplicate
// disconnect signals stay idempotent.
func (r *Registry) Unregister(id string) {
	delete(r.conns, id)
}

// Lookup returns the connection for id, or ErrNotFound when it has already
// disconnected.
func (r *Registry) Lookup(id string) (*Connection, error) {
	conn, ok := r.conns[id]
	if !ok {
		return nil, ErrNotFound
	}
	return conn, nil
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	return len(r.conns)
}
