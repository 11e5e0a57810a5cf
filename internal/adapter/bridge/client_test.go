package bridge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/domain"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func TestRemoteStartTransaction_RelaysCommand(t *testing.T) {
	// Arrange
	var gotPath, gotAuth string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"Accepted"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-key", 5*time.Second, newTestLogger())

	// Act
	out, err := client.RemoteStartTransaction(context.Background(), "CP-001", "U-42", 2)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out["status"] != "Accepted" {
		t.Errorf("expected Accepted, got %v", out["status"])
	}
	if gotPath != "/v1/bridge/commands" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("unexpected authorization header %q", gotAuth)
	}
	if gotBody["command"] != "RemoteStartTransaction" {
		t.Errorf("unexpected command %v", gotBody["command"])
	}
	params := gotBody["params"].(map[string]interface{})
	if params["cpId"] != "CP-001" || params["idTag"] != "U-42" || params["connectorId"] != float64(2) {
		t.Errorf("unexpected params %v", params)
	}
}

func TestRemoteStopTransaction_RelaysCommand(t *testing.T) {
	// Arrange
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"status":"Accepted"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second, newTestLogger())

	// Act
	_, err := client.RemoteStopTransaction(context.Background(), "CP-001", 777)

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotBody["command"] != "RemoteStopTransaction" {
		t.Errorf("unexpected command %v", gotBody["command"])
	}
	params := gotBody["params"].(map[string]interface{})
	if params["transactionId"] != float64(777) {
		t.Errorf("unexpected params %v", params)
	}
}

func TestSend_ErrorStatusIsBridgeError(t *testing.T) {
	// Arrange
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "command rejected", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second, newTestLogger())

	// Act
	_, err := client.RemoteStartTransaction(context.Background(), "CP-001", "U-42", 1)

	// Assert
	if err != domain.ErrBridgeError {
		t.Fatalf("expected ErrBridgeError, got %v", err)
	}
}

func TestSend_TransportFailureIsUnreachable(t *testing.T) {
	// Arrange: a server that is already gone.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, "", time.Second, newTestLogger())

	// Act
	_, err := client.RemoteStopTransaction(context.Background(), "CP-001", 1)

	// Assert
	if err != domain.ErrBridgeUnreachable {
		t.Fatalf("expected ErrBridgeUnreachable, got %v", err)
	}
}

func TestSend_OpensCircuitAfterRepeatedFailures(t *testing.T) {
	// Arrange
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second, newTestLogger())

	// Act: three straight failures trip the breaker.
	for i := 0; i < 3; i++ {
		_, _ = client.RemoteStartTransaction(context.Background(), "CP-001", "U-42", 1)
	}
	_, err := client.RemoteStartTransaction(context.Background(), "CP-001", "U-42", 1)

	// Assert
	if err != domain.ErrBridgeUnreachable {
		t.Fatalf("expected ErrBridgeUnreachable from an open breaker, got %v", err)
	}
}
