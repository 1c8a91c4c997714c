// Package unit contains unit tests for individual components of the PairWire server.
//
// These tests focus on testing specific functions and methods in isolation,
// using mocks and stubs where necessary to avoid dependencies on external systems.
// Unit tests ensure that each component behaves correctly under various conditions.
package unit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/pairwire/internal/server"
)

// TestHealthHandlerUnit tests the health handler function in isolation.
// It verifies that the handler responds correctly to different HTTP methods
// and returns the expected status code and response body.
func TestHealthHandlerUnit(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "GET request to health endpoint",
			method:         "GET",
			expectedStatus: http.StatusOK,
			expectedBody:   "PairWire server is running!",
		},
		{
			name:           "POST request to health endpoint",
			method:         "POST",
			expectedStatus: http.StatusOK,
			expectedBody:   "PairWire server is running!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, "/", http.NoBody)
			if err != nil {
				t.Fatal(err)
			}

			rr := httptest.NewRecorder()

			server.HealthHandler(rr, req)

			if status := rr.Code; status != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v",
					status, tt.expectedStatus)
			}

			if rr.Body.String() != tt.expectedBody {
				t.Errorf("handler returned unexpected body: got %v want %v",
					rr.Body.String(), tt.expectedBody)
			}
		})
	}
}

// TestWebSocketHandlerMethodValidation tests that the signaling endpoint
// rejects every non-GET method with a 405 and a descriptive body.
func TestWebSocketHandlerMethodValidation(t *testing.T) {
	methods := []string{"POST", "PUT", "DELETE", "PATCH", "OPTIONS"}

	for _, method := range methods {
		t.Run("Reject_"+method, func(t *testing.T) {
			req, err := http.NewRequest(method, "/ws", http.NoBody)
			if err != nil {
				t.Fatal(err)
			}

			rr := httptest.NewRecorder()
			server.WebSocketHandler(rr, req)

			if status := rr.Code; status != http.StatusMethodNotAllowed {
				t.Errorf("handler returned wrong status code for %s: got %v want %v",
					method, status, http.StatusMethodNotAllowed)
			}

			expected := "Method not allowed. WebSocket endpoint only accepts GET requests."
			if !strings.Contains(rr.Body.String(), expected) {
				t.Errorf("handler returned unexpected body for %s: got %v",
					method, rr.Body.String())
			}
		})
	}
}

// TestWebSocketHandlerGETWithoutUpgrade verifies that a plain GET request
// without WebSocket upgrade headers is rejected by the upgrader.
func TestWebSocketHandlerGETWithoutUpgrade(t *testing.T) {
	req, err := http.NewRequest("GET", "/ws", http.NoBody)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	server.WebSocketHandler(rr, req)

	if status := rr.Code; status != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v",
			status, http.StatusBadRequest)
	}
}

// TestSetupRoutes tests the route setup function.
// It verifies that SetupRoutes returns a properly configured ServeMux
// with the expected routes and handlers properly registered.
func TestSetupRoutes(t *testing.T) {
	mux := server.SetupRoutes()

	if mux == nil {
		t.Fatal("SetupRoutes returned nil mux")
	}

	req, err := http.NewRequest("GET", "/", http.NoBody)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v",
			status, http.StatusOK)
	}

	expected := "PairWire server is running!"
	if rr.Body.String() != expected {
		t.Errorf("handler returned unexpected body: got %v want %v",
			rr.Body.String(), expected)
	}
}

// TestCreateServer tests the server creation function.
// It verifies that CreateServer returns an HTTP server with the correct
// configuration including address, handler, and timeout settings.
func TestCreateServer(t *testing.T) {
	port := ":8080"
	mux := server.SetupRoutes()

	srv := server.CreateServer(port, mux)

	if srv.Addr != port {
		t.Errorf("Expected server addr %s, got %s", port, srv.Addr)
	}

	if srv.Handler != mux {
		t.Error("Server handler not set correctly")
	}

	expectedReadTimeout := 15 * time.Second
	expectedWriteTimeout := 15 * time.Second
	expectedIdleTimeout := 60 * time.Second

	if srv.ReadTimeout != expectedReadTimeout {
		t.Errorf("Expected ReadTimeout %v, got %v", expectedReadTimeout, srv.ReadTimeout)
	}

	if srv.WriteTimeout != expectedWriteTimeout {
		t.Errorf("Expected WriteTimeout %v, got %v", expectedWriteTimeout, srv.WriteTimeout)
	}

	if srv.IdleTimeout != expectedIdleTimeout {
		t.Errorf("Expected IdleTimeout %v, got %v", expectedIdleTimeout, srv.IdleTimeout)
	}
}

// TestNewConfig tests the configuration creation function.
// It verifies that NewConfig returns a properly initialized Config
// struct with the expected default values.
func TestNewConfig(t *testing.T) {
	config := server.NewConfig()

	if config == nil {
		t.Fatal("NewConfig returned nil")
	}

	expectedPort := ":8080"
	if config.Port != expectedPort {
		t.Errorf("Expected default port %s, got %s", expectedPort, config.Port)
	}

	if config.MaxMessageSize != 64*1024 {
		t.Errorf("Expected default max message size %d, got %d", 64*1024, config.MaxMessageSize)
	}

	if config.RateLimit.Burst <= 0 {
		t.Errorf("Expected a positive rate limit burst, got %d", config.RateLimit.Burst)
	}

	if config.JWTSecret != "" {
		t.Errorf("Expected identity verification to be disabled by default, got secret %q", config.JWTSecret)
	}
}
