// Package testhelpers provides common utilities and helper functions for testing the PairWire server.
//
// This package contains reusable test utilities that are shared across unit and integration tests.
// It provides functions for creating test servers, dialing WebSocket connections, exchanging
// signaling envelopes, and asserting response properties to reduce code duplication in test files.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Envelope mirrors the wire format exchanged with the server. Tests decode
// incoming frames into this shape and inspect Event and Data directly.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// CreateTestServerWithConfig creates a test server with custom timeout configuration.
// It allows specifying custom read, write, and idle timeouts for testing server behavior
// under different timeout conditions.
func CreateTestServerWithConfig(
	handler http.Handler,
	readTimeout, writeTimeout, idleTimeout time.Duration,
) *httptest.Server {
	server := &http.Server{
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	testServer := httptest.NewUnstartedServer(handler)
	testServer.Config = server
	testServer.Start()
	return testServer
}

// AssertStatusCode checks if the HTTP response has the expected status code.
// It fails the test with a descriptive error message if the status codes don't match.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
// It fails the test with a descriptive error message if the content types don't match.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// ConnectWebSocket creates a WebSocket connection to the specified URL using
// the given Origin header. It returns the connection or an error if the
// handshake fails.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendEvent marshals data into the envelope format and writes it as a single
// text frame. A nil data sends an envelope with no payload.
func SendEvent(conn *websocket.Conn, event string, data interface{}) error {
	env := struct {
		Event string      `json:"event"`
		Data  interface{} `json:"data,omitempty"`
	}{Event: event, Data: data}
	return conn.WriteJSON(env)
}

// ReceiveEnvelope reads a single frame from the connection and decodes it as
// an envelope. The read is bounded by the given timeout.
func ReceiveEnvelope(conn *websocket.Conn, timeout time.Duration) (Envelope, error) {
	var env Envelope
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return env, err
	}
	err := conn.ReadJSON(&env)
	return env, err
}

// ExpectEvent reads the next frame and fails the test unless it carries the
// expected event name. It returns the decoded envelope for further inspection.
func ExpectEvent(t *testing.T, conn *websocket.Conn, event string, timeout time.Duration) Envelope {
	t.Helper()

	env, err := ReceiveEnvelope(conn, timeout)
	if err != nil {
		t.Fatalf("Expected %q event but read failed: %v", event, err)
	}
	if env.Event != event {
		t.Fatalf("Expected %q event, got %q (data: %s)", event, env.Event, env.Data)
	}
	return env
}

// ExpectNoEvent asserts that no frame arrives on the connection within the
// given window. Paired clients use it to verify that relays exclude senders.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, window time.Duration) {
	t.Helper()

	// Peek on the underlying connection rather than the websocket: a timed-out
	// read through gorilla/websocket sets a sticky read error that makes every
	// later read on the same connection fail.
	raw := conn.UnderlyingConn()
	if err := raw.SetReadDeadline(time.Now().Add(window)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	buf := make([]byte, 1)
	if n, err := raw.Read(buf); err == nil {
		t.Fatalf("Expected no message, got data starting with %q", buf[:n])
	} else if !isTimeout(err) {
		t.Fatalf("Expected read timeout, got: %v", err)
	}
	if err := raw.SetReadDeadline(time.Time{}); err != nil {
		t.Fatalf("Failed to clear read deadline: %v", err)
	}
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	te, ok := err.(timeout)
	return ok && te.Timeout()
}

// RoomID extracts the roomId field from an envelope payload. It fails the
// test if the payload does not carry one.
func RoomID(t *testing.T, env Envelope) string {
	t.Helper()

	var payload struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("Failed to decode room payload: %v", err)
	}
	if payload.RoomID == "" {
		t.Fatalf("Envelope %q carries no roomId: %s", env.Event, env.Data)
	}
	return payload.RoomID
}

// SendRawMessage sends a raw byte message over the WebSocket connection.
func SendRawMessage(conn *websocket.Conn, messageType int, data []byte) error {
	return conn.WriteMessage(messageType, data)
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
