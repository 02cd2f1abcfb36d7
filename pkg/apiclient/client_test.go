package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittosmb/pkg/adapter/smb"
	"github.com/marmos91/dittosmb/pkg/history"
)

func TestNew(t *testing.T) {
	assert.Equal(t, "http://localhost:8080", New("localhost:8080").baseURL)
	assert.Equal(t, "https://status.example", New("https://status.example/").baseURL)
}

func TestWithToken(t *testing.T) {
	client := New("http://localhost:8080")
	tokenClient := client.WithToken("test-token")

	assert.Empty(t, client.token)
	assert.Equal(t, "test-token", tokenClient.token)
	assert.Equal(t, "http://localhost:8080", tokenClient.baseURL)
}

// respond writes the API envelope around data.
func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"data":      data,
	})
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		respond(w, http.StatusOK, map[string]string{"service": "dittosmb", "uptime": "1m5s"})
	}))
	defer server.Close()

	h, err := New(server.URL).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dittosmb", h.Service)
	assert.Equal(t, "1m5s", h.Uptime)
}

func TestReadyUnhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "unhealthy", "error": "SMB listener not started"})
	}))
	defer server.Close()

	err := New(server.URL).Ready(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "SMB listener not started", apiErr.Detail)
}

func TestConnectionsWithToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		respond(w, http.StatusOK, map[string]any{
			"count":       1,
			"connections": []smb.ConnectionInfo{{ID: "c1", State: "Complete"}},
		})
	}))
	defer server.Close()

	conns, err := New(server.URL).WithToken("test-token").Connections(context.Background())
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "Complete", conns[0].State)
}

func TestProblemErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		switch r.URL.Path {
		case "/api/v1/connections/gone":
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(APIError{StatusCode: 404, Title: "Not Found", Detail: "connection gone is not open"})
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(APIError{StatusCode: 401, Title: "Unauthorized"})
		}
	}))
	defer server.Close()

	client := New(server.URL)

	_, err := client.Connection(context.Background(), "gone")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
	assert.Equal(t, "Not Found: connection gone is not open", apiErr.Error())

	_, err = client.History(context.Background(), 0)
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsAuthError())
}

func TestHistoryLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		respond(w, http.StatusOK, []history.Entry{{ID: "a", Outcome: history.OutcomeCompleted}})
	}))
	defer server.Close()

	entries, err := New(server.URL).History(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.OutcomeCompleted, entries[0].Outcome)
}

func TestPlainTextError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL).HistoryEntry(context.Background(), "x")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Bad Gateway: boom", apiErr.Error())
}
