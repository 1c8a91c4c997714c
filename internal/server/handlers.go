// Package server exposes HTTP handlers, including the WebSocket upgrade and
// health check endpoints.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler handles WebSocket upgrade requests. It validates the
// method, optionally verifies an identity token from the auth service,
// upgrades the connection, and hands the new client to the session
// supervisor, which enqueues it for pairing.
func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	identity := identityFromRequest(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, supervisor, r.RemoteAddr, identity)

	// The supervisor launches the pump goroutines and starts matchmaking.
	supervisor.RegisterClient(client)
}

// identityFromRequest verifies the optional token query parameter. A missing
// or invalid token leaves the connection anonymous; anonymous pairing is
// allowed.
func identityFromRequest(r *http.Request) *Identity {
	token := r.URL.Query().Get("token")
	if token == "" {
		return nil
	}

	cfg := currentConfig()
	if cfg.JWTSecret == "" {
		return nil
	}

	identity, err := IdentityFromToken(token, cfg.JWTSecret)
	if err != nil {
		log.Printf("Rejected identity token from %s: %v", r.RemoteAddr, err)
		return nil
	}
	return identity
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "PairWire server is running!")
}
